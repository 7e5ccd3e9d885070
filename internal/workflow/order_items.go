package workflow

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/spec-kit/erp-workflow/internal/domain"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

// ItemInput is a raw order line as submitted; Qty may be a number or a string.
type ItemInput struct {
	ItemName string
	Qty      any
}

// CoerceQty converts a submitted quantity to a positive integer, truncating
// fractions. ok is false when the value is absent, unparseable or below 1.
func CoerceQty(v any) (int, bool) {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case float64:
		f = val
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	qty := int(math.Trunc(f))
	if qty < 1 {
		return 0, false
	}
	return qty, true
}

// NormalizeItems drops lines without a name or a usable quantity. It fails only
// when nothing is left.
func NormalizeItems(inputs []ItemInput) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.ItemName)
		if name == "" {
			continue
		}
		qty, ok := CoerceQty(in.Qty)
		if !ok {
			continue
		}
		items = append(items, domain.OrderItem{ItemName: name, Qty: qty})
	}
	if len(items) == 0 {
		return nil, apperrors.NewValidationError("at least one item with item_name and qty required",
			map[string]any{"submitted": len(inputs)})
	}
	return items, nil
}
