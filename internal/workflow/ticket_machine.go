package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/erp-workflow/internal/domain"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

// Action is an operator request against a ticket.
type Action string

const (
	ActionPlan    Action = "PLAN"
	ActionSolve   Action = "SOLVE"
	ActionRevise  Action = "REVISE_DATE"
	ActionConfirm Action = "CONFIRM"
	ActionClose   Action = "CLOSE"
	ActionReraise Action = "RERAISE"
)

// State is the explicit lifecycle state derived from stage and status.
type State string

const (
	StateUnknown              State = "UNKNOWN"
	StateUnplanned            State = "UNPLANNED"
	StateWithSolver           State = "WITH_SOLVER"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateAwaitingClosure      State = "AWAITING_CLOSURE"
	StateClosed               State = "CLOSED"
)

// Ticket field names used in history values.
const (
	FieldCurrentStage      = "current_stage"
	FieldStatus            = "status"
	FieldProblemSolver     = "problem_solver"
	FieldSolverPlannedDate = "solver_planned_date"
	FieldSolverRemark      = "solver_remark"
	FieldProofUpload       = "proof_upload"
	FieldPCStatus          = "pc_status"
	FieldPCRemark          = "pc_remark"
	FieldPCStatusStage4    = "pc_status_stage4"
	FieldPCRemarkStage4    = "pc_remark_stage4"
	FieldClosingRating     = "closing_rating"
	FieldClosingStatus     = "closing_status"
	FieldRemarks           = "remarks"
)

const dateLayout = "2006-01-02"

// StateOf maps the persisted stage/status pair onto a lifecycle state.
func StateOf(t *domain.Ticket) State {
	switch t.CurrentStage {
	case domain.StageRaised, domain.StagePlanning:
		return StateUnplanned
	case domain.StageSolving:
		return StateWithSolver
	case domain.StageConfirmation:
		return StateAwaitingConfirmation
	case domain.StageClosure:
		if t.Status == domain.TicketStatusClosed {
			return StateClosed
		}
		return StateAwaitingClosure
	}
	return StateUnknown
}

// Command is a transition request. Implementations are the *Input types below.
type Command interface {
	Action() Action
	// values returns the submitted fields keyed by ticket field name.
	values() map[string]any
	validate() error
	apply(t *domain.Ticket)
	remark() string
}

type outcome struct {
	stage  domain.TicketStage
	status domain.TicketStatus
	action domain.HistoryAction
}

type rule struct {
	role     Role
	required []string
	resolve  func(t *domain.Ticket) outcome
}

type ruleKey struct {
	state  State
	action Action
}

func keep(action domain.HistoryAction) func(*domain.Ticket) outcome {
	return func(t *domain.Ticket) outcome {
		return outcome{stage: t.CurrentStage, status: t.Status, action: action}
	}
}

func moveTo(stage domain.TicketStage, status domain.TicketStatus, action domain.HistoryAction) func(*domain.Ticket) outcome {
	return func(*domain.Ticket) outcome {
		return outcome{stage: stage, status: status, action: action}
	}
}

var reraiseRule = rule{
	role:     RoleRaiser,
	required: []string{FieldRemarks},
	resolve:  moveTo(domain.StageRaised, domain.TicketStatusReraised, domain.ActionReraised),
}

// ticketRules is the transition table: (state, action) -> who may act, what
// must be supplied, where the ticket lands.
var ticketRules = map[ruleKey]rule{
	{StateUnplanned, ActionPlan}: {
		role:     RolePCAccountable,
		required: []string{FieldProblemSolver, FieldSolverPlannedDate},
		resolve:  moveTo(domain.StageSolving, domain.TicketStatusOpen, domain.ActionPlanned),
	},
	{StateWithSolver, ActionSolve}: {
		role:     RoleProblemSolver,
		required: []string{FieldSolverRemark},
		resolve:  moveTo(domain.StageConfirmation, domain.TicketStatusSolved, domain.ActionSolved),
	},
	{StateWithSolver, ActionRevise}: {
		role:     RoleProblemSolver,
		required: []string{FieldSolverPlannedDate, FieldSolverRemark},
		resolve:  keep(domain.ActionDateRevised),
	},
	{StateAwaitingConfirmation, ActionConfirm}: {
		role:     RolePCAccountable,
		required: []string{FieldPCStatusStage4},
		resolve: func(t *domain.Ticket) outcome {
			if t.PCStatusStage4 == domain.PCStatusPending {
				return keep(domain.ActionPCPending)(t)
			}
			return outcome{stage: domain.StageClosure, status: domain.TicketStatusConfirmed, action: domain.ActionConfirmed}
		},
	},
	{StateAwaitingClosure, ActionClose}: {
		role:     RoleRaiser,
		required: []string{FieldClosingRating, FieldClosingStatus},
		resolve:  moveTo(domain.StageClosure, domain.TicketStatusClosed, domain.ActionClosed),
	},
	{StateAwaitingClosure, ActionReraise}: reraiseRule,
	{StateClosed, ActionReraise}:          reraiseRule,
}

// Allowed reports the actions the actor may take on the ticket right now.
func Allowed(t *domain.Ticket, actor string) []Action {
	state := StateOf(t)
	var actions []Action
	for _, action := range []Action{ActionPlan, ActionSolve, ActionRevise, ActionConfirm, ActionClose, ActionReraise} {
		r, ok := ticketRules[ruleKey{state, action}]
		if !ok {
			continue
		}
		if Authorize(t, r.role, actor) == nil {
			actions = append(actions, action)
		}
	}
	return actions
}

// ApplyTicket validates cmd against the current ticket and returns the next
// ticket plus the history entry describing the change. The input ticket is
// never modified; on error nothing is returned.
func ApplyTicket(current domain.Ticket, actor string, cmd Command, now time.Time) (domain.Ticket, domain.TicketHistory, error) {
	state := StateOf(&current)
	r, ok := ticketRules[ruleKey{state, cmd.Action()}]
	if !ok {
		return domain.Ticket{}, domain.TicketHistory{}, apperrors.NewStateError(
			fmt.Sprintf("%s not allowed while ticket is %s", cmd.Action(), state),
			map[string]any{"ticket_id": current.ID, "stage": int(current.CurrentStage), "status": string(current.Status)})
	}
	if err := Authorize(&current, r.role, actor); err != nil {
		return domain.Ticket{}, domain.TicketHistory{}, err
	}
	submitted := cmd.values()
	if missing := missingFields(submitted, r.required); len(missing) > 0 {
		return domain.Ticket{}, domain.TicketHistory{}, apperrors.NewValidationError(
			"missing required fields: "+strings.Join(missing, ", "),
			map[string]any{"missing": missing})
	}
	if err := cmd.validate(); err != nil {
		return domain.Ticket{}, domain.TicketHistory{}, err
	}

	before := snapshot(&current)
	next := current
	cmd.apply(&next)
	out := r.resolve(&next)
	next.CurrentStage = out.stage
	next.Status = out.status
	next.UpdatedAt = now
	switch out.status {
	case domain.TicketStatusClosed:
		closedAt := now
		next.ClosedAt = &closedAt
	case domain.TicketStatusReraised:
		next.ClosedAt = nil
	}
	after := snapshot(&next)

	oldValues := make(map[string]any, len(submitted)+2)
	newValues := make(map[string]any, len(submitted)+2)
	for field := range submitted {
		oldValues[field] = before[field]
		newValues[field] = after[field]
	}
	for _, field := range []string{FieldCurrentStage, FieldStatus} {
		if before[field] != after[field] {
			oldValues[field] = before[field]
			newValues[field] = after[field]
		}
	}

	entry := domain.TicketHistory{
		TicketID:   current.ID,
		ActionType: out.action,
		ActionBy:   actor,
		ActionDate: now,
		OldValues:  oldValues,
		NewValues:  newValues,
		Remarks:    cmd.remark(),
		Stage:      current.CurrentStage,
	}
	return next, entry, nil
}

// PlanInput assigns a problem solver and target date.
type PlanInput struct {
	ProblemSolver     string
	SolverPlannedDate *time.Time
	PCStatus          string
	PCRemark          string
}

func (PlanInput) Action() Action { return ActionPlan }

func (in PlanInput) values() map[string]any {
	return map[string]any{
		FieldProblemSolver:     strings.TrimSpace(in.ProblemSolver),
		FieldSolverPlannedDate: dateValue(in.SolverPlannedDate),
		FieldPCStatus:          strings.TrimSpace(in.PCStatus),
		FieldPCRemark:          strings.TrimSpace(in.PCRemark),
	}
}

func (PlanInput) validate() error { return nil }

func (in PlanInput) apply(t *domain.Ticket) {
	solver := strings.TrimSpace(in.ProblemSolver)
	t.ProblemSolver = &solver
	t.SolverPlannedDate = dayOf(in.SolverPlannedDate)
	t.PCStatus = strings.TrimSpace(in.PCStatus)
	t.PCRemark = strings.TrimSpace(in.PCRemark)
}

func (in PlanInput) remark() string { return strings.TrimSpace(in.PCRemark) }

// SolveInput marks the ticket solved by the problem solver.
type SolveInput struct {
	SolverRemark string
	ProofUpload  string
}

func (SolveInput) Action() Action { return ActionSolve }

func (in SolveInput) values() map[string]any {
	vals := map[string]any{FieldSolverRemark: strings.TrimSpace(in.SolverRemark)}
	if proof := strings.TrimSpace(in.ProofUpload); proof != "" {
		vals[FieldProofUpload] = proof
	}
	return vals
}

func (SolveInput) validate() error { return nil }

func (in SolveInput) apply(t *domain.Ticket) {
	t.SolverRemark = strings.TrimSpace(in.SolverRemark)
	if proof := strings.TrimSpace(in.ProofUpload); proof != "" {
		t.ProofUpload = proof
	}
}

func (in SolveInput) remark() string { return strings.TrimSpace(in.SolverRemark) }

// ReviseInput moves the solver's planned date without advancing the stage.
type ReviseInput struct {
	SolverPlannedDate *time.Time
	SolverRemark      string
}

func (ReviseInput) Action() Action { return ActionRevise }

func (in ReviseInput) values() map[string]any {
	return map[string]any{
		FieldSolverPlannedDate: dateValue(in.SolverPlannedDate),
		FieldSolverRemark:      strings.TrimSpace(in.SolverRemark),
	}
}

func (ReviseInput) validate() error { return nil }

func (in ReviseInput) apply(t *domain.Ticket) {
	t.SolverPlannedDate = dayOf(in.SolverPlannedDate)
	t.SolverRemark = strings.TrimSpace(in.SolverRemark)
}

func (in ReviseInput) remark() string { return strings.TrimSpace(in.SolverRemark) }

// ConfirmInput records the PC's stage-4 verdict.
type ConfirmInput struct {
	PCStatusStage4 string
	PCRemarkStage4 string
}

func (ConfirmInput) Action() Action { return ActionConfirm }

func (in ConfirmInput) values() map[string]any {
	return map[string]any{
		FieldPCStatusStage4: strings.TrimSpace(in.PCStatusStage4),
		FieldPCRemarkStage4: strings.TrimSpace(in.PCRemarkStage4),
	}
}

func (in ConfirmInput) validate() error {
	switch strings.TrimSpace(in.PCStatusStage4) {
	case domain.PCStatusPending, domain.PCStatusConfident, domain.PCStatusNotConfident:
		return nil
	}
	return apperrors.NewValidationError("pc_status_stage4 must be one of Pending, Confident, Not Confident",
		map[string]any{"field": FieldPCStatusStage4, "value": in.PCStatusStage4})
}

func (in ConfirmInput) apply(t *domain.Ticket) {
	t.PCStatusStage4 = strings.TrimSpace(in.PCStatusStage4)
	t.PCRemarkStage4 = strings.TrimSpace(in.PCRemarkStage4)
}

func (in ConfirmInput) remark() string { return strings.TrimSpace(in.PCRemarkStage4) }

// CloseInput is the raiser's closing feedback.
type CloseInput struct {
	ClosingRating int
	ClosingStatus string
	Remarks       string
}

func (CloseInput) Action() Action { return ActionClose }

func (in CloseInput) values() map[string]any {
	vals := map[string]any{
		FieldClosingStatus: strings.TrimSpace(in.ClosingStatus),
		FieldRemarks:       strings.TrimSpace(in.Remarks),
	}
	if in.ClosingRating != 0 {
		vals[FieldClosingRating] = in.ClosingRating
	} else {
		vals[FieldClosingRating] = nil
	}
	return vals
}

func (in CloseInput) validate() error {
	if in.ClosingRating < 1 || in.ClosingRating > 5 {
		return apperrors.NewValidationError("closing_rating must be between 1 and 5",
			map[string]any{"field": FieldClosingRating, "value": in.ClosingRating})
	}
	return nil
}

func (in CloseInput) apply(t *domain.Ticket) {
	rating := in.ClosingRating
	t.ClosingRating = &rating
	t.ClosingStatus = strings.TrimSpace(in.ClosingStatus)
	t.Remarks = strings.TrimSpace(in.Remarks)
}

func (in CloseInput) remark() string { return strings.TrimSpace(in.Remarks) }

// ReraiseInput reopens a confirmed or closed ticket.
type ReraiseInput struct {
	Remarks string
}

func (ReraiseInput) Action() Action { return ActionReraise }

func (in ReraiseInput) values() map[string]any {
	return map[string]any{FieldRemarks: strings.TrimSpace(in.Remarks)}
}

func (ReraiseInput) validate() error { return nil }

func (in ReraiseInput) apply(t *domain.Ticket) {
	t.Remarks = strings.TrimSpace(in.Remarks)
}

func (in ReraiseInput) remark() string { return strings.TrimSpace(in.Remarks) }

func missingFields(values map[string]any, required []string) []string {
	var missing []string
	for _, field := range required {
		if IsEmptyValue(values[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}

// snapshot renders the workflow fields in the canonical form stored in history.
func snapshot(t *domain.Ticket) map[string]any {
	snap := map[string]any{
		FieldCurrentStage:      int(t.CurrentStage),
		FieldStatus:            string(t.Status),
		FieldProblemSolver:     nil,
		FieldSolverPlannedDate: dateValue(t.SolverPlannedDate),
		FieldSolverRemark:      t.SolverRemark,
		FieldProofUpload:       t.ProofUpload,
		FieldPCStatus:          t.PCStatus,
		FieldPCRemark:          t.PCRemark,
		FieldPCStatusStage4:    t.PCStatusStage4,
		FieldPCRemarkStage4:    t.PCRemarkStage4,
		FieldClosingRating:     nil,
		FieldClosingStatus:     t.ClosingStatus,
		FieldRemarks:           t.Remarks,
	}
	if t.ProblemSolver != nil {
		snap[FieldProblemSolver] = *t.ProblemSolver
	}
	if t.ClosingRating != nil {
		snap[FieldClosingRating] = *t.ClosingRating
	}
	return snap
}

func dateValue(d *time.Time) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Format(dateLayout)
}

func dayOf(d *time.Time) *time.Time {
	if d == nil {
		return nil
	}
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return &day
}
