package dto

import (
	"time"

	"github.com/spec-kit/erp-workflow/internal/domain"
)

// OrderItemRequest is one submitted line. Qty may be a number or a numeric string.
type OrderItemRequest struct {
	ItemName string `json:"item_name"`
	Qty      any    `json:"qty"`
}

// OrderStepRequest is a caller-defined step.
type OrderStepRequest struct {
	StepName        string `json:"step_name" validate:"required"`
	DependencyGroup int    `json:"dependency_group" validate:"min=1"`
	PlannedDate     string `json:"planned_date"`
}

// CreateOrderRequest payload.
type CreateOrderRequest struct {
	PartyName     string             `json:"party_name" validate:"required"`
	CustomerType  string             `json:"customer_type"`
	ContactPerson string             `json:"contact_person"`
	ContactNumber string             `json:"contact_number"`
	ContactEmail  string             `json:"contact_email" validate:"omitempty,email"`
	Address       string             `json:"address"`
	Items         []OrderItemRequest `json:"items" validate:"required,min=1"`
	Steps         []OrderStepRequest `json:"steps" validate:"omitempty,dive"`
}

// AssignStepRequest payload.
type AssignStepRequest struct {
	AssignedTo  string `json:"assigned_to"`
	PlannedDate string `json:"planned_date"`
}

// CompleteStepRequest payload.
type CompleteStepRequest struct {
	Remarks string `json:"remarks"`
}

// OrderItemResponse represents an order line.
type OrderItemResponse struct {
	ID       string `json:"id"`
	ItemName string `json:"item_name"`
	Qty      int    `json:"qty"`
}

// StepResponse represents an order step.
type StepResponse struct {
	ID              string            `json:"id"`
	OrderID         string            `json:"order_id"`
	StepName        string            `json:"step_name"`
	DependencyGroup int               `json:"dependency_group"`
	Position        int               `json:"position"`
	AssignedTo      *string           `json:"assigned_to"`
	PlannedDate     *string           `json:"planned_date"`
	ActualDate      *time.Time        `json:"actual_date"`
	Status          domain.StepStatus `json:"status"`
	Remarks         string            `json:"remarks,omitempty"`
	CompletedBy     *string           `json:"completed_by,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// OrderResponse represents an order with its derived status.
type OrderResponse struct {
	ID            string              `json:"id"`
	OrderNo       string              `json:"order_no"`
	PartyName     string              `json:"party_name"`
	CustomerType  string              `json:"customer_type,omitempty"`
	ContactPerson string              `json:"contact_person,omitempty"`
	ContactNumber string              `json:"contact_number,omitempty"`
	ContactEmail  string              `json:"contact_email,omitempty"`
	Address       string              `json:"address,omitempty"`
	OverallStatus domain.OrderStatus  `json:"overall_status"`
	Items         []OrderItemResponse `json:"items"`
	Steps         []StepResponse      `json:"steps"`
	CreatedBy     string              `json:"created_by"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// StepChangeResponse is returned by step transitions.
type StepChangeResponse struct {
	Step          StepResponse       `json:"step"`
	OrderID       string             `json:"order_id"`
	OverallStatus domain.OrderStatus `json:"overall_status"`
	Version       int                `json:"version"`
}

// NewStepResponse maps a step.
func NewStepResponse(s domain.Step) StepResponse {
	return StepResponse{
		ID:              s.ID,
		OrderID:         s.OrderID,
		StepName:        s.StepName,
		DependencyGroup: s.DependencyGroup,
		Position:        s.Position,
		AssignedTo:      s.AssignedTo,
		PlannedDate:     formatDate(s.PlannedDate),
		ActualDate:      s.ActualDate,
		Status:          s.Status,
		Remarks:         s.Remarks,
		CompletedBy:     s.CompletedBy,
		UpdatedAt:       s.UpdatedAt,
	}
}

// NewOrderResponse maps an order.
func NewOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{ID: item.ID, ItemName: item.ItemName, Qty: item.Qty})
	}
	steps := make([]StepResponse, 0, len(o.Steps))
	for _, step := range o.Steps {
		steps = append(steps, NewStepResponse(step))
	}
	return OrderResponse{
		ID:            o.ID,
		OrderNo:       o.OrderNo,
		PartyName:     o.PartyName,
		CustomerType:  o.CustomerType,
		ContactPerson: o.ContactPerson,
		ContactNumber: o.ContactNumber,
		ContactEmail:  o.ContactEmail,
		Address:       o.Address,
		OverallStatus: o.OverallStatus(),
		Items:         items,
		Steps:         steps,
		CreatedBy:     o.CreatedBy,
		Version:       o.Version,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}
