package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/erp-workflow/internal/domain"
)

// FieldChange is one row of a history entry as shown to operators.
type FieldChange struct {
	Field     string `json:"field"`
	Old       any    `json:"old"`
	New       any    `json:"new"`
	Changed   bool   `json:"changed"`
	Important bool   `json:"important"`
}

// importantFields are highlighted for an action even when their value did not move.
var importantFields = map[domain.HistoryAction][]string{
	domain.ActionPlanned:     {FieldProblemSolver, FieldSolverPlannedDate},
	domain.ActionDateRevised: {FieldSolverPlannedDate},
	domain.ActionSolved:      {FieldSolverRemark},
	domain.ActionPCPending:   {FieldPCStatusStage4},
	domain.ActionConfirmed:   {FieldPCStatusStage4},
	domain.ActionClosed:      {FieldClosingRating, FieldClosingStatus},
	domain.ActionReraised:    {FieldRemarks},
}

// ImportantFields returns the highlighted fields for action.
func ImportantFields(action domain.HistoryAction) []string {
	return append([]string(nil), importantFields[action]...)
}

// DiffHistory compares two value sets by key. Only changed or important fields
// are returned, sorted by field name.
func DiffHistory(action domain.HistoryAction, oldValues, newValues map[string]any) []FieldChange {
	important := make(map[string]bool)
	for _, field := range importantFields[action] {
		important[field] = true
	}

	keys := make(map[string]struct{}, len(oldValues)+len(newValues))
	for k := range oldValues {
		keys[k] = struct{}{}
	}
	for k := range newValues {
		keys[k] = struct{}{}
	}
	for k := range important {
		keys[k] = struct{}{}
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	changes := make([]FieldChange, 0, len(names))
	for _, field := range names {
		oldVal, newVal := oldValues[field], newValues[field]
		changed := ValueChanged(oldVal, newVal)
		if !changed && !important[field] {
			continue
		}
		changes = append(changes, FieldChange{
			Field:     field,
			Old:       oldVal,
			New:       newVal,
			Changed:   changed,
			Important: important[field],
		})
	}
	return changes
}

// ValueChanged reports empty -> value, or value -> different value. A value
// cleared to empty is not a change.
func ValueChanged(oldVal, newVal any) bool {
	if IsEmptyValue(newVal) {
		return false
	}
	if IsEmptyValue(oldVal) {
		return true
	}
	return canonical(oldVal) != canonical(newVal)
}

// IsEmptyValue treats nil, blank strings and nil string pointers as empty.
func IsEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case *string:
		return val == nil || strings.TrimSpace(*val) == ""
	}
	return false
}

// canonical lets values that went through JSON (float64) compare with ints.
func canonical(v any) string {
	switch val := v.(type) {
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
	case *string:
		return *val
	}
	return fmt.Sprintf("%v", v)
}
