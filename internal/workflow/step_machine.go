package workflow

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/erp-workflow/internal/domain"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

// BlockingStep returns the earliest step in a strictly lower dependency group
// than group that is not yet completed. Steps in the same group never block
// each other.
func BlockingStep(steps []domain.Step, group int) *domain.Step {
	var blocking *domain.Step
	for i := range steps {
		s := &steps[i]
		if s.DependencyGroup >= group || s.Status == domain.StepStatusCompleted {
			continue
		}
		if blocking == nil || s.DependencyGroup < blocking.DependencyGroup ||
			(s.DependencyGroup == blocking.DependencyGroup && s.Position < blocking.Position) {
			blocking = s
		}
	}
	return blocking
}

// LowerTiersComplete reports whether every step below group is completed.
func LowerTiersComplete(steps []domain.Step, group int) bool {
	return BlockingStep(steps, group) == nil
}

// AssignStep moves a step to ASSIGNED. Dependency groups are not consulted.
func AssignStep(order *domain.Order, stepID, assignee string, plannedDate *time.Time, now time.Time) (*domain.Step, error) {
	step := order.StepByID(stepID)
	if step == nil {
		return nil, apperrors.NewNotFound("step", map[string]any{"order_id": order.ID, "step_id": stepID})
	}
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, apperrors.NewValidationError("assigned_to required", map[string]any{"field": "assigned_to"})
	}
	if step.Status == domain.StepStatusCompleted {
		return nil, apperrors.NewStateError("completed step cannot be reassigned",
			map[string]any{"step_id": step.ID, "status": string(step.Status)})
	}
	step.AssignedTo = &assignee
	if plannedDate != nil {
		step.PlannedDate = dayOf(plannedDate)
	}
	step.Status = domain.StepStatusAssigned
	step.UpdatedAt = now
	return step, nil
}

// CompleteStep moves an ASSIGNED step to COMPLETED once all earlier tiers are
// done. order is left untouched when an error is returned.
func CompleteStep(order *domain.Order, stepID, remarks, actor string, now time.Time) (*domain.Step, error) {
	step := order.StepByID(stepID)
	if step == nil {
		return nil, apperrors.NewNotFound("step", map[string]any{"order_id": order.ID, "step_id": stepID})
	}
	if step.Status != domain.StepStatusAssigned || step.AssignedTo == nil || *step.AssignedTo == "" {
		return nil, apperrors.NewStateError("step must be assigned before completion",
			map[string]any{"step_id": step.ID, "status": string(step.Status)})
	}
	if blocking := BlockingStep(order.Steps, step.DependencyGroup); blocking != nil {
		return nil, apperrors.NewDependencyError(blocking.StepName, map[string]any{
			"step_id":                   step.ID,
			"blocking_step_id":          blocking.ID,
			"blocking_dependency_group": blocking.DependencyGroup,
		})
	}

	actual := now
	step.Status = domain.StepStatusCompleted
	step.ActualDate = &actual
	if remarks = strings.TrimSpace(remarks); remarks != "" {
		if step.Remarks != "" {
			step.Remarks += "\n" + remarks
		} else {
			step.Remarks = remarks
		}
	}
	if actor = strings.TrimSpace(actor); actor != "" {
		step.CompletedBy = &actor
	}
	step.UpdatedAt = now
	return step, nil
}

// StepInput is a caller-supplied step definition.
type StepInput struct {
	StepName        string
	DependencyGroup int
	PlannedDate     *time.Time
}

// BuildSteps validates step definitions and returns them as PENDING steps
// ordered by dependency group. An empty input falls back to template.
func BuildSteps(inputs []StepInput, template []domain.StepTemplate) ([]domain.Step, error) {
	if len(inputs) == 0 {
		for _, tpl := range template {
			inputs = append(inputs, StepInput{StepName: tpl.Name, DependencyGroup: tpl.DependencyGroup})
		}
	}
	if len(inputs) == 0 {
		return nil, apperrors.NewValidationError("at least one step required", nil)
	}

	seen := make(map[string]struct{}, len(inputs))
	steps := make([]domain.Step, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.StepName)
		if name == "" {
			return nil, apperrors.NewValidationError("step_name required", map[string]any{"index": i})
		}
		if in.DependencyGroup < 1 {
			return nil, apperrors.NewValidationError("dependency_group must be >= 1",
				map[string]any{"index": i, "step_name": name})
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, apperrors.NewValidationError("duplicate step_name", map[string]any{"step_name": name})
		}
		seen[key] = struct{}{}
		steps = append(steps, domain.Step{
			StepName:        name,
			DependencyGroup: in.DependencyGroup,
			PlannedDate:     dayOf(in.PlannedDate),
			Status:          domain.StepStatusPending,
		})
	}

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].DependencyGroup < steps[j].DependencyGroup
	})
	for i := range steps {
		steps[i].Position = i + 1
	}
	return steps, nil
}

// DefaultStepTemplate is the order-to-delivery flow used when no template file is configured.
func DefaultStepTemplate() []domain.StepTemplate {
	return []domain.StepTemplate{
		{Name: "Order Confirmation", DependencyGroup: 1},
		{Name: "Material Procurement", DependencyGroup: 2},
		{Name: "Production Planning", DependencyGroup: 2},
		{Name: "Quality Check", DependencyGroup: 3},
		{Name: "Packing", DependencyGroup: 3},
		{Name: "Dispatch", DependencyGroup: 4},
		{Name: "Invoice", DependencyGroup: 5},
		{Name: "Delivery Confirmation", DependencyGroup: 5},
	}
}
