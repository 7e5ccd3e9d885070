package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/erp-workflow/internal/api/dto"
	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/service"
	"github.com/spec-kit/erp-workflow/internal/workflow"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

// TicketsHandler manages help-ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// RaiseTicket POST /tickets.
func (h *TicketsHandler) RaiseTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RaiseTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.RaiseTicket(c.UserContext(), actor, service.RaiseTicketInput{
		IssueDescription: req.IssueDescription,
		PCAccountable:    req.PCAccountable,
		Priority:         req.Priority,
		ImageUpload:      req.ImageUpload,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, actor)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c, actor)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i], actor))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, actor)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	entries, err := h.service.GetTicketHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewTicketHistoryResponse(entry))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Plan POST /tickets/:id/plan.
func (h *TicketsHandler) Plan(c *fiber.Ctx) error {
	var req dto.PlanTicketRequest
	return h.transition(c, &req, func(actor string) (*domain.Ticket, error) {
		date, err := dto.ParseDate(workflow.FieldSolverPlannedDate, req.SolverPlannedDate)
		if err != nil {
			return nil, err
		}
		return h.service.PlanTicket(c.UserContext(), c.Params("id"), actor, workflow.PlanInput{
			ProblemSolver:     req.ProblemSolver,
			SolverPlannedDate: date,
			PCStatus:          req.PCStatus,
			PCRemark:          req.PCRemark,
		})
	})
}

// Solve POST /tickets/:id/solve.
func (h *TicketsHandler) Solve(c *fiber.Ctx) error {
	var req dto.SolveTicketRequest
	return h.transition(c, &req, func(actor string) (*domain.Ticket, error) {
		return h.service.SolveTicket(c.UserContext(), c.Params("id"), actor, workflow.SolveInput{
			SolverRemark: req.SolverRemark,
			ProofUpload:  req.ProofUpload,
		})
	})
}

// Revise POST /tickets/:id/revise.
func (h *TicketsHandler) Revise(c *fiber.Ctx) error {
	var req dto.ReviseTicketRequest
	return h.transition(c, &req, func(actor string) (*domain.Ticket, error) {
		date, err := dto.ParseDate(workflow.FieldSolverPlannedDate, req.SolverPlannedDate)
		if err != nil {
			return nil, err
		}
		return h.service.ReviseTicketDate(c.UserContext(), c.Params("id"), actor, workflow.ReviseInput{
			SolverPlannedDate: date,
			SolverRemark:      req.SolverRemark,
		})
	})
}

// Confirm POST /tickets/:id/confirm.
func (h *TicketsHandler) Confirm(c *fiber.Ctx) error {
	var req dto.ConfirmTicketRequest
	return h.transition(c, &req, func(actor string) (*domain.Ticket, error) {
		return h.service.ConfirmTicket(c.UserContext(), c.Params("id"), actor, workflow.ConfirmInput{
			PCStatusStage4: req.PCStatusStage4,
			PCRemarkStage4: req.PCRemarkStage4,
		})
	})
}

// Close POST /tickets/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	var req dto.CloseTicketRequest
	return h.transition(c, &req, func(actor string) (*domain.Ticket, error) {
		return h.service.CloseTicket(c.UserContext(), c.Params("id"), actor, workflow.CloseInput{
			ClosingRating: req.ClosingRating,
			ClosingStatus: req.ClosingStatus,
			Remarks:       req.Remarks,
		})
	})
}

// Reraise POST /tickets/:id/reraise.
func (h *TicketsHandler) Reraise(c *fiber.Ctx) error {
	var req dto.ReraiseTicketRequest
	return h.transition(c, &req, func(actor string) (*domain.Ticket, error) {
		return h.service.ReraiseTicket(c.UserContext(), c.Params("id"), actor, workflow.ReraiseInput{
			Remarks: req.Remarks,
		})
	})
}

func (h *TicketsHandler) transition(c *fiber.Ctx, req any, run func(actor string) (*domain.Ticket, error)) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := bind(c, req); err != nil {
		return err
	}
	ticket, err := run(actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, actor)})
}

// parseTicketQuery reads list filters. mine=true narrows to tickets where the
// caller holds any role.
func parseTicketQuery(c *fiber.Ctx, actor string) (service.TicketListFilter, error) {
	limit, offset, err := paging(c)
	if err != nil {
		return service.TicketListFilter{}, err
	}
	filter := service.TicketListFilter{
		RaisedBy:      queryString(c, "raised_by"),
		PCAccountable: queryString(c, "pc_accountable"),
		ProblemSolver: queryString(c, "problem_solver"),
		Limit:         limit,
		Offset:        offset,
	}
	if c.QueryBool("mine") {
		filter.Involving = &actor
	}
	if raw := queryString(c, "stage"); raw != nil {
		v, err := strconv.Atoi(*raw)
		stage := domain.TicketStage(v)
		if err != nil || !stage.Valid() {
			return filter, apperrors.NewValidationError("stage must be between 1 and 5", map[string]any{"field": "stage"})
		}
		filter.Stage = &stage
	}
	if raw := queryString(c, "status"); raw != nil {
		status := domain.TicketStatus(*raw)
		filter.Status = &status
	}
	return filter, nil
}
