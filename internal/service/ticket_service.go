package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/events"
	"github.com/spec-kit/erp-workflow/internal/repository"
	"github.com/spec-kit/erp-workflow/internal/workflow"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

// TicketService coordinates help-ticket workflows.
type TicketService struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
	users   repository.UserRepository
	rt      Runtime
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	UserRepo    repository.UserRepository
	Runtime     Runtime
}

// RaiseTicketInput describes a new help ticket.
type RaiseTicketInput struct {
	IssueDescription string
	PCAccountable    string
	Priority         domain.TicketPriority
	ImageUpload      string
}

// TicketListFilter describes ticket listing filters.
type TicketListFilter struct {
	RaisedBy      *string
	PCAccountable *string
	ProblemSolver *string
	Involving     *string
	Stage         *domain.TicketStage
	Status        *domain.TicketStatus
	Limit         int
	Offset        int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets: deps.TicketRepo,
		history: deps.HistoryRepo,
		users:   deps.UserRepo,
		rt:      deps.Runtime.withDefaults(),
	}
}

// RaiseTicket opens a ticket at stage 1 on behalf of actor.
func (s *TicketService) RaiseTicket(ctx context.Context, actor string, input RaiseTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	description := strings.TrimSpace(input.IssueDescription)
	if description == "" {
		return nil, apperrors.NewValidationError("issue_description required", map[string]any{"field": "issue_description"})
	}
	priority := input.Priority
	switch priority {
	case "":
		priority = domain.TicketPriorityMedium
	case domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh:
	default:
		return nil, apperrors.NewValidationError("priority must be one of LOW, MEDIUM, HIGH",
			map[string]any{"field": "priority", "value": string(priority)})
	}
	pc := strings.TrimSpace(input.PCAccountable)
	if err := workflow.RequireActorRef(ctx, s.users, "pc_accountable", pc); err != nil {
		return nil, err
	}

	now := s.rt.now()
	ticket := &domain.Ticket{
		ID:               uuid.NewString(),
		TicketNo:         generateNumber("HT-"),
		IssueDescription: description,
		Priority:         priority,
		CurrentStage:     domain.StageRaised,
		Status:           domain.TicketStatusOpen,
		RaisedBy:         actor,
		PCAccountable:    pc,
		ImageUpload:      strings.TrimSpace(input.ImageUpload),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, storageError(err, "ticket", ticket.ID)
	}

	s.rt.Logger.Info("ticket raised",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_no", ticket.TicketNo),
		zap.String("actor", actor))
	s.rt.publish(ctx, events.Event{
		Type:          events.EventTicketRaised,
		AggregateType: events.AggregateTicket,
		AggregateID:   ticket.ID,
		ActorID:       actor,
		Payload: events.TicketRaisedPayload{
			TicketNo:      ticket.TicketNo,
			Priority:      ticket.Priority,
			PCAccountable: ticket.PCAccountable,
		},
	})
	return ticket, nil
}

// GetTicket loads a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "ticket", id)
	}
	return ticket, nil
}

// ListTickets returns a page of tickets matching filter.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		RaisedBy:      filter.RaisedBy,
		PCAccountable: filter.PCAccountable,
		ProblemSolver: filter.ProblemSolver,
		Involving:     filter.Involving,
		Stage:         filter.Stage,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	}
	if filter.Status != nil {
		repoFilter.Statuses = []domain.TicketStatus{*filter.Status}
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, storageError(err, "ticket", "")
	}
	return tickets, nil
}

// GetTicketHistory returns the ticket's history in append order.
func (s *TicketService) GetTicketHistory(ctx context.Context, id string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, id)
	if err != nil {
		return nil, storageError(err, "ticket history", id)
	}
	return entries, nil
}

// PlanTicket assigns the problem solver and planned date (stage 1/2 -> 3).
func (s *TicketService) PlanTicket(ctx context.Context, id, actor string, input workflow.PlanInput) (*domain.Ticket, error) {
	return s.transition(ctx, id, actor, input, func(ctx context.Context) error {
		return workflow.RequireActorRef(ctx, s.users, workflow.FieldProblemSolver, input.ProblemSolver)
	})
}

// SolveTicket records the solver's resolution (stage 3 -> 4).
func (s *TicketService) SolveTicket(ctx context.Context, id, actor string, input workflow.SolveInput) (*domain.Ticket, error) {
	return s.transition(ctx, id, actor, input, nil)
}

// ReviseTicketDate moves the solver's planned date; the stage stays at 3.
func (s *TicketService) ReviseTicketDate(ctx context.Context, id, actor string, input workflow.ReviseInput) (*domain.Ticket, error) {
	return s.transition(ctx, id, actor, input, nil)
}

// ConfirmTicket records the PC verdict (stage 4 -> 5 unless Pending).
func (s *TicketService) ConfirmTicket(ctx context.Context, id, actor string, input workflow.ConfirmInput) (*domain.Ticket, error) {
	return s.transition(ctx, id, actor, input, nil)
}

// CloseTicket records the raiser's closing feedback.
func (s *TicketService) CloseTicket(ctx context.Context, id, actor string, input workflow.CloseInput) (*domain.Ticket, error) {
	return s.transition(ctx, id, actor, input, nil)
}

// ReraiseTicket sends a confirmed or closed ticket back to stage 1.
func (s *TicketService) ReraiseTicket(ctx context.Context, id, actor string, input workflow.ReraiseInput) (*domain.Ticket, error) {
	return s.transition(ctx, id, actor, input, nil)
}

// transition runs one read-modify-write under the ticket lock. check runs
// after the pure transition accepted the command and before anything is
// written.
func (s *TicketService) transition(ctx context.Context, id, actor string, cmd workflow.Command, check func(context.Context) error) (ticket *domain.Ticket, err error) {
	defer func() {
		s.rt.Metrics.RecordTransition(string(events.AggregateTicket), string(cmd.Action()), outcome(err))
	}()

	release, err := s.rt.acquire(ctx, events.AggregateTicket, id)
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	current, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "ticket", id)
	}

	next, entry, err := workflow.ApplyTicket(*current, actor, cmd, s.rt.now())
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(ctx); err != nil {
			return nil, err
		}
	}

	entry.ID = uuid.NewString()
	if err := s.tickets.SaveTransition(ctx, &next, current.Version, &entry); err != nil {
		return nil, storageError(err, "ticket", id)
	}

	s.rt.Logger.Info("ticket transitioned",
		zap.String("ticket_id", next.ID),
		zap.String("action", string(entry.ActionType)),
		zap.String("actor", actor),
		zap.Int("from_stage", int(current.CurrentStage)),
		zap.Int("to_stage", int(next.CurrentStage)))
	s.rt.publish(ctx, events.Event{
		Type:          events.EventTicketTransitioned,
		AggregateType: events.AggregateTicket,
		AggregateID:   next.ID,
		ActorID:       actor,
		Timestamp:     entry.ActionDate,
		Payload: events.TicketTransitionedPayload{
			TicketNo:  next.TicketNo,
			Action:    entry.ActionType,
			OldStage:  current.CurrentStage,
			NewStage:  next.CurrentStage,
			OldStatus: current.Status,
			NewStatus: next.Status,
			HistoryID: entry.ID,
		},
	})
	return &next, nil
}
