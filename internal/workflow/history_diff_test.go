package workflow

import (
	"testing"

	"github.com/spec-kit/erp-workflow/internal/domain"
)

func TestValueChanged(t *testing.T) {
	cases := []struct {
		name     string
		old, new any
		want     bool
	}{
		{"nil to value", nil, "U1", true},
		{"blank to value", "", "U1", true},
		{"different values", "2026-02-01", "2026-02-05", true},
		{"same values", "U1", "U1", false},
		{"value cleared", "U1", "", false},
		{"both empty", nil, "", false},
		{"json number vs int", float64(4), 4, false},
		{"int change", 3, 4, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValueChanged(tc.old, tc.new); got != tc.want {
				t.Fatalf("ValueChanged(%v, %v) = %v, want %v", tc.old, tc.new, got, tc.want)
			}
		})
	}
}

func TestDiffHistoryReportsChangedAndImportant(t *testing.T) {
	changes := DiffHistory(domain.ActionDateRevised,
		map[string]any{"solver_planned_date": "2026-02-01", "solver_remark": "first"},
		map[string]any{"solver_planned_date": "2026-02-01", "solver_remark": "second"},
	)
	if len(changes) != 2 {
		t.Fatalf("expected 2 rows, got %+v", changes)
	}
	if changes[0].Field != "solver_planned_date" || !changes[0].Important || changes[0].Changed {
		t.Fatalf("unexpected first row %+v", changes[0])
	}
	if changes[1].Field != "solver_remark" || changes[1].Important || !changes[1].Changed {
		t.Fatalf("unexpected second row %+v", changes[1])
	}
}

func TestDiffHistoryOmitsUnchangedOrdinaryFields(t *testing.T) {
	changes := DiffHistory(domain.ActionSolved,
		map[string]any{"proof_upload": "a.jpg", "solver_remark": ""},
		map[string]any{"proof_upload": "a.jpg", "solver_remark": "fixed"},
	)
	if len(changes) != 1 || changes[0].Field != "solver_remark" {
		t.Fatalf("expected only solver_remark, got %+v", changes)
	}
}

func TestDiffHistoryIsPure(t *testing.T) {
	oldVals := map[string]any{"remarks": "a"}
	newVals := map[string]any{"remarks": "b"}
	_ = DiffHistory(domain.ActionReraised, oldVals, newVals)
	if len(oldVals) != 1 || len(newVals) != 1 || oldVals["remarks"] != "a" || newVals["remarks"] != "b" {
		t.Fatalf("inputs mutated: %v %v", oldVals, newVals)
	}
	fields := ImportantFields(domain.ActionClosed)
	fields[0] = "tampered"
	if ImportantFields(domain.ActionClosed)[0] == "tampered" {
		t.Fatalf("important field table exposed by reference")
	}
}
