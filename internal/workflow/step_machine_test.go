package workflow

import (
	"testing"

	"github.com/spec-kit/erp-workflow/internal/domain"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

func packShipOrder(t *testing.T) *domain.Order {
	t.Helper()
	steps, err := BuildSteps([]StepInput{
		{StepName: "Ship", DependencyGroup: 2},
		{StepName: "Pack", DependencyGroup: 1},
	}, nil)
	if err != nil {
		t.Fatalf("build steps: %v", err)
	}
	steps[0].ID, steps[1].ID = "pack", "ship"
	return &domain.Order{ID: "o-1", Steps: steps}
}

func TestBuildStepsOrdersByGroup(t *testing.T) {
	order := packShipOrder(t)
	if order.Steps[0].StepName != "Pack" || order.Steps[0].Position != 1 || order.Steps[1].Position != 2 {
		t.Fatalf("unexpected ordering %+v", order.Steps)
	}
	for _, s := range order.Steps {
		if s.Status != domain.StepStatusPending {
			t.Fatalf("new steps must be PENDING, got %s", s.Status)
		}
	}
}

func TestBuildStepsValidation(t *testing.T) {
	cases := []struct {
		name   string
		inputs []StepInput
	}{
		{"blank name", []StepInput{{StepName: " ", DependencyGroup: 1}}},
		{"zero group", []StepInput{{StepName: "Pack", DependencyGroup: 0}}},
		{"duplicate", []StepInput{{StepName: "Pack", DependencyGroup: 1}, {StepName: "pack", DependencyGroup: 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := BuildSteps(tc.inputs, nil); !apperrors.HasCode(err, apperrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if _, err := BuildSteps(nil, nil); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("no steps and no template must fail, got %v", err)
	}
}

func TestBuildStepsFallsBackToTemplate(t *testing.T) {
	steps, err := BuildSteps(nil, DefaultStepTemplate())
	if err != nil {
		t.Fatalf("template steps: %v", err)
	}
	if len(steps) != len(DefaultStepTemplate()) {
		t.Fatalf("expected %d steps, got %d", len(DefaultStepTemplate()), len(steps))
	}
}

func TestCompletePendingStepIsStateError(t *testing.T) {
	order := packShipOrder(t)
	if _, err := CompleteStep(order, "pack", "done", "emp", clock); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected state error, got %v", err)
	}
	if order.Steps[0].Status != domain.StepStatusPending {
		t.Fatalf("failed completion mutated step")
	}
}

func TestUnknownStepIsNotFound(t *testing.T) {
	order := packShipOrder(t)
	if _, err := AssignStep(order, "missing", "emp1", nil, clock); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := CompleteStep(order, "missing", "", "", clock); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPackShipScenario(t *testing.T) {
	order := packShipOrder(t)

	if _, err := AssignStep(order, "ship", "emp1", nil, clock); err != nil {
		t.Fatalf("assign ship: %v", err)
	}
	_, err := CompleteStep(order, "ship", "shipped", "emp1", clock)
	if !apperrors.HasCode(err, apperrors.CodeDependencyBlocked) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if apperrors.ToDomainError(err).Details["blocking_step"] != "Pack" {
		t.Fatalf("dependency error must name Pack: %+v", apperrors.ToDomainError(err).Details)
	}
	if order.OverallStatus() != domain.OrderStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", order.OverallStatus())
	}

	if _, err := AssignStep(order, "pack", "emp2", nil, clock); err != nil {
		t.Fatalf("assign pack: %v", err)
	}
	if _, err := CompleteStep(order, "pack", "packed", "emp2", clock); err != nil {
		t.Fatalf("complete pack: %v", err)
	}
	step, err := CompleteStep(order, "ship", "shipped", "emp1", clock)
	if err != nil {
		t.Fatalf("complete ship: %v", err)
	}
	if step.ActualDate == nil || !step.ActualDate.Equal(clock) || step.Remarks != "shipped" {
		t.Fatalf("completion fields not set: %+v", step)
	}
	if order.OverallStatus() != domain.OrderStatusComplete {
		t.Fatalf("expected COMPLETE, got %s", order.OverallStatus())
	}
}

func TestSameGroupStepsAreIndependent(t *testing.T) {
	steps, err := BuildSteps([]StepInput{
		{StepName: "Invoice", DependencyGroup: 3},
		{StepName: "Delivery", DependencyGroup: 3},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	steps[0].ID, steps[1].ID = "a", "b"
	order := &domain.Order{ID: "o", Steps: steps}
	if _, err := AssignStep(order, "b", "emp", nil, clock); err != nil {
		t.Fatal(err)
	}
	if _, err := CompleteStep(order, "b", "", "emp", clock); err != nil {
		t.Fatalf("same-tier step must not block: %v", err)
	}
}

func TestCompletedStepCannotBeReassigned(t *testing.T) {
	order := packShipOrder(t)
	if _, err := AssignStep(order, "pack", "emp1", nil, clock); err != nil {
		t.Fatal(err)
	}
	if _, err := AssignStep(order, "pack", "emp3", nil, clock); err != nil {
		t.Fatalf("reassigning an assigned step is allowed: %v", err)
	}
	if _, err := CompleteStep(order, "pack", "", "emp3", clock); err != nil {
		t.Fatal(err)
	}
	if _, err := AssignStep(order, "pack", "emp1", nil, clock); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected state error, got %v", err)
	}
	if _, err := CompleteStep(order, "pack", "", "emp3", clock); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("completing twice must fail, got %v", err)
	}
}

func TestOverallStatusIffAllCompleted(t *testing.T) {
	statuses := []domain.StepStatus{domain.StepStatusPending, domain.StepStatusAssigned, domain.StepStatusCompleted}
	for _, a := range statuses {
		for _, b := range statuses {
			order := &domain.Order{Steps: []domain.Step{{Status: a}, {Status: b}}}
			all := a == domain.StepStatusCompleted && b == domain.StepStatusCompleted
			if (order.OverallStatus() == domain.OrderStatusComplete) != all {
				t.Fatalf("steps %s/%s gave %s", a, b, order.OverallStatus())
			}
			if a == domain.StepStatusPending && b == domain.StepStatusPending && order.OverallStatus() != domain.OrderStatusPending {
				t.Fatalf("untouched order must be PENDING")
			}
		}
	}
}
