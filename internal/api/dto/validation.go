package dto

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks request shape rules declared in `validate` tags.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	fields := make([]map[string]string, 0, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, map[string]string{"field": fe.Namespace(), "rule": fe.Tag()})
		names = append(names, fe.Field())
	}
	return apperrors.NewValidationError("invalid fields: "+strings.Join(names, ", "), map[string]any{"fields": fields})
}

// ParseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// Blank input yields nil.
func ParseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{DateLayout, time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, apperrors.NewValidationError(field+" must be a date (YYYY-MM-DD)", map[string]any{
		"field": field,
		"value": raw,
	})
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
