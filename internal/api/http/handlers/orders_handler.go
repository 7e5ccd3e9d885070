package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/erp-workflow/internal/api/dto"
	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/service"
	"github.com/spec-kit/erp-workflow/internal/workflow"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

// OrdersHandler manages O2D order endpoints.
type OrdersHandler struct {
	service *service.OrderService
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(orderService *service.OrderService) *OrdersHandler {
	return &OrdersHandler{service: orderService}
}

// CreateOrder POST /orders.
func (h *OrdersHandler) CreateOrder(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	input := service.CreateOrderInput{
		PartyName:     req.PartyName,
		CustomerType:  req.CustomerType,
		ContactPerson: req.ContactPerson,
		ContactNumber: req.ContactNumber,
		ContactEmail:  req.ContactEmail,
		Address:       req.Address,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, workflow.ItemInput{ItemName: item.ItemName, Qty: item.Qty})
	}
	for _, step := range req.Steps {
		planned, err := dto.ParseDate("planned_date", step.PlannedDate)
		if err != nil {
			return err
		}
		input.Steps = append(input.Steps, workflow.StepInput{
			StepName:        step.StepName,
			DependencyGroup: step.DependencyGroup,
			PlannedDate:     planned,
		})
	}

	order, err := h.service.CreateOrder(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewOrderResponse(order)})
}

// ListOrders GET /orders.
func (h *OrdersHandler) ListOrders(c *fiber.Ctx) error {
	limit, offset, err := paging(c)
	if err != nil {
		return err
	}
	filter := service.OrderListFilter{
		CreatedBy: queryString(c, "created_by"),
		Limit:     limit,
		Offset:    offset,
	}
	if raw := queryString(c, "overall_status"); raw != nil {
		status := domain.OrderStatus(*raw)
		switch status {
		case domain.OrderStatusPending, domain.OrderStatusInProgress, domain.OrderStatusComplete:
		default:
			return apperrors.NewValidationError("overall_status must be PENDING, IN_PROGRESS or COMPLETE",
				map[string]any{"field": "overall_status"})
		}
		filter.OverallStatus = &status
	}

	orders, err := h.service.ListOrders(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, dto.NewOrderResponse(&orders[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetOrder GET /orders/:id.
func (h *OrdersHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOrderResponse(order)})
}

// StepTemplate GET /orders/step-template.
func (h *OrdersHandler) StepTemplate(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.service.StepTemplate()})
}

// AssignStep POST /orders/:id/steps/:stepId/assign.
func (h *OrdersHandler) AssignStep(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignStepRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	planned, err := dto.ParseDate("planned_date", req.PlannedDate)
	if err != nil {
		return err
	}
	change, err := h.service.AssignStep(c.UserContext(), c.Params("id"), c.Params("stepId"), actor, req.AssignedTo, planned)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stepChange(change)})
}

// CompleteStep POST /orders/:id/steps/:stepId/complete.
func (h *OrdersHandler) CompleteStep(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CompleteStepRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	change, err := h.service.CompleteStep(c.UserContext(), c.Params("id"), c.Params("stepId"), actor, req.Remarks)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stepChange(change)})
}

func stepChange(change *service.StepChange) dto.StepChangeResponse {
	return dto.StepChangeResponse{
		Step:          dto.NewStepResponse(change.Step),
		OrderID:       change.Order.ID,
		OverallStatus: change.Order.OverallStatus(),
		Version:       change.Order.Version,
	}
}
