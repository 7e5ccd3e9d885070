package dto

import (
	"time"

	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/workflow"
)

// RaiseTicketRequest payload.
type RaiseTicketRequest struct {
	IssueDescription string                `json:"issue_description" validate:"required"`
	PCAccountable    string                `json:"pc_accountable" validate:"required"`
	Priority         domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	ImageUpload      string                `json:"image_upload"`
}

// Transition payloads carry no validate tags: required fields are checked by
// the workflow after the stage and actor checks.

// PlanTicketRequest payload.
type PlanTicketRequest struct {
	ProblemSolver     string `json:"problem_solver"`
	SolverPlannedDate string `json:"solver_planned_date"`
	PCStatus          string `json:"pc_status"`
	PCRemark          string `json:"pc_remark"`
}

// SolveTicketRequest payload.
type SolveTicketRequest struct {
	SolverRemark string `json:"solver_remark"`
	ProofUpload  string `json:"proof_upload"`
}

// ReviseTicketRequest payload.
type ReviseTicketRequest struct {
	SolverPlannedDate string `json:"solver_planned_date"`
	SolverRemark      string `json:"solver_remark"`
}

// ConfirmTicketRequest payload.
type ConfirmTicketRequest struct {
	PCStatusStage4 string `json:"pc_status_stage4"`
	PCRemarkStage4 string `json:"pc_remark_stage4"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	ClosingRating int    `json:"closing_rating"`
	ClosingStatus string `json:"closing_status"`
	Remarks       string `json:"remarks"`
}

// ReraiseTicketRequest payload.
type ReraiseTicketRequest struct {
	Remarks string `json:"remarks"`
}

// TicketResponse represents a ticket and the actions open to the caller.
type TicketResponse struct {
	ID                string                `json:"id"`
	TicketNo          string                `json:"ticket_no"`
	IssueDescription  string                `json:"issue_description"`
	Priority          domain.TicketPriority `json:"priority"`
	CurrentStage      domain.TicketStage    `json:"current_stage"`
	Status            domain.TicketStatus   `json:"status"`
	State             workflow.State        `json:"state"`
	RaisedBy          string                `json:"raised_by"`
	PCAccountable     string                `json:"pc_accountable"`
	ProblemSolver     *string               `json:"problem_solver"`
	SolverPlannedDate *string               `json:"solver_planned_date"`
	SolverRemark      string                `json:"solver_remark,omitempty"`
	PCStatus          string                `json:"pc_status,omitempty"`
	PCRemark          string                `json:"pc_remark,omitempty"`
	PCStatusStage4    string                `json:"pc_status_stage4,omitempty"`
	PCRemarkStage4    string                `json:"pc_remark_stage4,omitempty"`
	ClosingRating     *int                  `json:"closing_rating"`
	ClosingStatus     string                `json:"closing_status,omitempty"`
	Remarks           string                `json:"remarks,omitempty"`
	ImageUpload       string                `json:"image_upload,omitempty"`
	ProofUpload       string                `json:"proof_upload,omitempty"`
	Version           int                   `json:"version"`
	AllowedActions    []workflow.Action     `json:"allowed_actions"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	ClosedAt          *time.Time            `json:"closed_at"`
}

// NewTicketResponse maps a ticket as seen by actor.
func NewTicketResponse(t *domain.Ticket, actor string) TicketResponse {
	allowed := workflow.Allowed(t, actor)
	if allowed == nil {
		allowed = []workflow.Action{}
	}
	return TicketResponse{
		ID:                t.ID,
		TicketNo:          t.TicketNo,
		IssueDescription:  t.IssueDescription,
		Priority:          t.Priority,
		CurrentStage:      t.CurrentStage,
		Status:            t.Status,
		State:             workflow.StateOf(t),
		RaisedBy:          t.RaisedBy,
		PCAccountable:     t.PCAccountable,
		ProblemSolver:     t.ProblemSolver,
		SolverPlannedDate: formatDate(t.SolverPlannedDate),
		SolverRemark:      t.SolverRemark,
		PCStatus:          t.PCStatus,
		PCRemark:          t.PCRemark,
		PCStatusStage4:    t.PCStatusStage4,
		PCRemarkStage4:    t.PCRemarkStage4,
		ClosingRating:     t.ClosingRating,
		ClosingStatus:     t.ClosingStatus,
		Remarks:           t.Remarks,
		ImageUpload:       t.ImageUpload,
		ProofUpload:       t.ProofUpload,
		Version:           t.Version,
		AllowedActions:    allowed,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
		ClosedAt:          t.ClosedAt,
	}
}

// TicketHistoryResponse is one audit entry plus its display diff.
type TicketHistoryResponse struct {
	ID         string                 `json:"id"`
	ActionType domain.HistoryAction   `json:"action_type"`
	ActionBy   string                 `json:"action_by"`
	ActionDate time.Time              `json:"action_date"`
	Stage      domain.TicketStage     `json:"stage"`
	Remarks    string                 `json:"remarks,omitempty"`
	OldValues  map[string]any         `json:"old_values"`
	NewValues  map[string]any         `json:"new_values"`
	Changes    []workflow.FieldChange `json:"changes"`
}

// NewTicketHistoryResponse maps a history entry.
func NewTicketHistoryResponse(h domain.TicketHistory) TicketHistoryResponse {
	return TicketHistoryResponse{
		ID:         h.ID,
		ActionType: h.ActionType,
		ActionBy:   h.ActionBy,
		ActionDate: h.ActionDate,
		Stage:      h.Stage,
		Remarks:    h.Remarks,
		OldValues:  h.OldValues,
		NewValues:  h.NewValues,
		Changes:    workflow.DiffHistory(h.ActionType, h.OldValues, h.NewValues),
	}
}
