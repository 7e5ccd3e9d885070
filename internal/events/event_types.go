package events

import (
	"time"

	"github.com/spec-kit/erp-workflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAny                EventType = "*"
	EventTicketRaised       EventType = "ticket_raised"
	EventTicketTransitioned EventType = "ticket_transitioned"
	EventOrderCreated       EventType = "order_created"
	EventStepAssigned       EventType = "step_assigned"
	EventStepCompleted      EventType = "step_completed"
)

// Aggregate names the kind of record an event is about.
type Aggregate string

const (
	AggregateTicket Aggregate = "ticket"
	AggregateOrder  Aggregate = "order"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	AggregateType Aggregate `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	ActorID       string    `json:"actor_id"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload"`
}

// TicketRaisedPayload payload.
type TicketRaisedPayload struct {
	TicketNo      string                `json:"ticket_no"`
	Priority      domain.TicketPriority `json:"priority"`
	PCAccountable string                `json:"pc_accountable"`
}

// TicketTransitionedPayload payload.
type TicketTransitionedPayload struct {
	TicketNo  string               `json:"ticket_no"`
	Action    domain.HistoryAction `json:"action"`
	OldStage  domain.TicketStage   `json:"old_stage"`
	NewStage  domain.TicketStage   `json:"new_stage"`
	OldStatus domain.TicketStatus  `json:"old_status"`
	NewStatus domain.TicketStatus  `json:"new_status"`
	HistoryID string               `json:"history_id"`
}

// OrderCreatedPayload payload.
type OrderCreatedPayload struct {
	OrderNo   string `json:"order_no"`
	PartyName string `json:"party_name"`
	Steps     int    `json:"steps"`
	Items     int    `json:"items"`
}

// StepChangedPayload is shared by step_assigned and step_completed.
type StepChangedPayload struct {
	OrderNo       string             `json:"order_no"`
	StepID        string             `json:"step_id"`
	StepName      string             `json:"step_name"`
	Status        domain.StepStatus  `json:"status"`
	AssignedTo    *string            `json:"assigned_to,omitempty"`
	OverallStatus domain.OrderStatus `json:"overall_status"`
}
