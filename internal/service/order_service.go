package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/events"
	"github.com/spec-kit/erp-workflow/internal/repository"
	"github.com/spec-kit/erp-workflow/internal/workflow"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

// OrderService coordinates O2D orders and their steps.
type OrderService struct {
	orders   repository.OrderRepository
	users    repository.UserRepository
	template []domain.StepTemplate
	rt       Runtime
}

// OrderDependencies bundles collaborators for the order service.
type OrderDependencies struct {
	OrderRepo repository.OrderRepository
	UserRepo  repository.UserRepository
	// StepTemplate is used when an order is created without steps.
	StepTemplate []domain.StepTemplate
	Runtime      Runtime
}

// CreateOrderInput describes a new order.
type CreateOrderInput struct {
	PartyName     string
	CustomerType  string
	ContactPerson string
	ContactNumber string
	ContactEmail  string
	Address       string
	Items         []workflow.ItemInput
	Steps         []workflow.StepInput
}

// OrderListFilter describes order listing filters.
type OrderListFilter struct {
	OverallStatus *domain.OrderStatus
	CreatedBy     *string
	Limit         int
	Offset        int
}

// StepChange is the result of a step transition: the changed step and the
// order it belongs to, both as persisted.
type StepChange struct {
	Order *domain.Order
	Step  domain.Step
}

// NewOrderService constructs the service.
func NewOrderService(deps OrderDependencies) *OrderService {
	template := deps.StepTemplate
	if len(template) == 0 {
		template = workflow.DefaultStepTemplate()
	}
	return &OrderService{
		orders:   deps.OrderRepo,
		users:    deps.UserRepo,
		template: template,
		rt:       deps.Runtime.withDefaults(),
	}
}

// StepTemplate returns the steps new orders receive by default.
func (s *OrderService) StepTemplate() []domain.StepTemplate {
	return append([]domain.StepTemplate(nil), s.template...)
}

// CreateOrder validates and stores a new order with all steps PENDING.
func (s *OrderService) CreateOrder(ctx context.Context, actor string, input CreateOrderInput) (*domain.Order, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	party := strings.TrimSpace(input.PartyName)
	if party == "" {
		return nil, apperrors.NewValidationError("party_name required", map[string]any{"field": "party_name"})
	}
	items, err := workflow.NormalizeItems(input.Items)
	if err != nil {
		return nil, err
	}
	steps, err := workflow.BuildSteps(input.Steps, s.template)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:            uuid.NewString(),
		OrderNo:       generateNumber("O2D-"),
		PartyName:     party,
		CustomerType:  strings.TrimSpace(input.CustomerType),
		ContactPerson: strings.TrimSpace(input.ContactPerson),
		ContactNumber: strings.TrimSpace(input.ContactNumber),
		ContactEmail:  strings.TrimSpace(input.ContactEmail),
		Address:       strings.TrimSpace(input.Address),
		Items:         items,
		Steps:         steps,
		CreatedBy:     actor,
		Version:       1,
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.NewString()
	}
	for i := range order.Steps {
		order.Steps[i].ID = uuid.NewString()
		order.Steps[i].OrderID = order.ID
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, storageError(err, "order", order.ID)
	}

	s.rt.Logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_no", order.OrderNo),
		zap.Int("steps", len(order.Steps)),
		zap.String("actor", actor))
	s.rt.publish(ctx, events.Event{
		Type:          events.EventOrderCreated,
		AggregateType: events.AggregateOrder,
		AggregateID:   order.ID,
		ActorID:       actor,
		Payload: events.OrderCreatedPayload{
			OrderNo:   order.OrderNo,
			PartyName: order.PartyName,
			Steps:     len(order.Steps),
			Items:     len(order.Items),
		},
	})
	return order, nil
}

// GetOrder loads an order with its items and steps.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "order", id)
	}
	return order, nil
}

// ListOrders returns a page of orders matching filter.
func (s *OrderService) ListOrders(ctx context.Context, filter OrderListFilter) ([]domain.Order, error) {
	orders, err := s.orders.ListWithFilter(ctx, repository.OrderFilter{
		OverallStatus: filter.OverallStatus,
		CreatedBy:     filter.CreatedBy,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
	if err != nil {
		return nil, storageError(err, "order", "")
	}
	return orders, nil
}

// AssignStep sets the step's assignee and moves it to ASSIGNED. Dependency
// groups are not consulted.
func (s *OrderService) AssignStep(ctx context.Context, orderID, stepID, actor, assignee string, plannedDate *time.Time) (*StepChange, error) {
	return s.stepTransition(ctx, orderID, "ASSIGN", events.EventStepAssigned, actor,
		func(ctx context.Context, order *domain.Order, now time.Time) (*domain.Step, error) {
			step, err := workflow.AssignStep(order, stepID, assignee, plannedDate, now)
			if err != nil {
				return nil, err
			}
			if err := workflow.RequireActorRef(ctx, s.users, "assigned_to", *step.AssignedTo); err != nil {
				return nil, err
			}
			return step, nil
		})
}

// CompleteStep completes an ASSIGNED step once every lower dependency group
// is done. The caller is recorded but not checked against the assignee.
func (s *OrderService) CompleteStep(ctx context.Context, orderID, stepID, actor, remarks string) (*StepChange, error) {
	return s.stepTransition(ctx, orderID, "COMPLETE", events.EventStepCompleted, actor,
		func(_ context.Context, order *domain.Order, now time.Time) (*domain.Step, error) {
			return workflow.CompleteStep(order, stepID, remarks, actor, now)
		})
}

type stepMutation func(ctx context.Context, order *domain.Order, now time.Time) (*domain.Step, error)

func (s *OrderService) stepTransition(ctx context.Context, orderID, action string, eventType events.EventType, actor string, mutate stepMutation) (change *StepChange, err error) {
	defer func() {
		s.rt.Metrics.RecordTransition(string(events.AggregateOrder), action, outcome(err))
	}()
	if strings.TrimSpace(actor) == "" {
		return nil, apperrors.NewUnauthorized("actor required")
	}

	release, err := s.rt.acquire(ctx, events.AggregateOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	current, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, storageError(err, "order", orderID)
	}

	now := s.rt.now()
	working := current.Clone()
	step, err := mutate(ctx, working, now)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SaveStep(ctx, working, current.Version, step, now); err != nil {
		return nil, storageError(err, "order", orderID)
	}

	s.rt.Logger.Info("order step transitioned",
		zap.String("order_id", working.ID),
		zap.String("step_id", step.ID),
		zap.String("step_name", step.StepName),
		zap.String("status", string(step.Status)),
		zap.String("actor", actor))
	s.rt.publish(ctx, events.Event{
		Type:          eventType,
		AggregateType: events.AggregateOrder,
		AggregateID:   working.ID,
		ActorID:       actor,
		Timestamp:     now,
		Payload: events.StepChangedPayload{
			OrderNo:       working.OrderNo,
			StepID:        step.ID,
			StepName:      step.StepName,
			Status:        step.Status,
			AssignedTo:    step.AssignedTo,
			OverallStatus: working.OverallStatus(),
		},
	})
	return &StepChange{Order: working, Step: *step}, nil
}
