package domain

import "time"

// TicketStage is the numeric checkpoint of the help-ticket lifecycle.
type TicketStage int

const (
	StageRaised       TicketStage = 1
	StagePlanning     TicketStage = 2
	StageSolving      TicketStage = 3
	StageConfirmation TicketStage = 4
	StageClosure      TicketStage = 5
)

// Valid reports whether the stage is inside the 1-5 range.
func (s TicketStage) Valid() bool {
	return s >= StageRaised && s <= StageClosure
}

// TicketStatus is the label shown alongside the stage.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "OPEN"
	TicketStatusSolved    TicketStatus = "SOLVED"
	TicketStatusConfirmed TicketStatus = "CONFIRMED"
	TicketStatusClosed    TicketStatus = "CLOSED"
	TicketStatusReraised  TicketStatus = "RERAISED"
)

// PC confirmation outcomes at stage 4.
const (
	PCStatusPending      = "Pending"
	PCStatusConfident    = "Confident"
	PCStatusNotConfident = "Not Confident"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// Ticket is the help-ticket aggregate.
type Ticket struct {
	ID                string
	TicketNo          string
	IssueDescription  string
	Priority          TicketPriority
	CurrentStage      TicketStage
	Status            TicketStatus
	RaisedBy          string
	PCAccountable     string
	ProblemSolver     *string
	SolverPlannedDate *time.Time
	SolverRemark      string
	PCStatus          string
	PCRemark          string
	PCStatusStage4    string
	PCRemarkStage4    string
	ClosingRating     *int
	ClosingStatus     string
	Remarks           string
	ImageUpload       string
	ProofUpload       string
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ClosedAt          *time.Time
}
