package domain

import "time"

// HistoryAction names the transition recorded by a history entry.
type HistoryAction string

const (
	ActionPlanned     HistoryAction = "PLANNED"
	ActionSolved      HistoryAction = "SOLVED"
	ActionDateRevised HistoryAction = "DATE_REVISED"
	ActionPCPending   HistoryAction = "PC_PENDING"
	ActionConfirmed   HistoryAction = "CONFIRMED"
	ActionClosed      HistoryAction = "CLOSED"
	ActionReraised    HistoryAction = "RERAISED"
)

// TicketHistory is an immutable audit trail entry. Stage is the stage the
// ticket was in when the action was taken.
type TicketHistory struct {
	ID         string
	TicketID   string
	ActionType HistoryAction
	ActionBy   string
	ActionDate time.Time
	OldValues  map[string]any
	NewValues  map[string]any
	Remarks    string
	Stage      TicketStage
}
