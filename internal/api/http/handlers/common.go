package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/erp-workflow/internal/api/dto"
	"github.com/spec-kit/erp-workflow/internal/auth"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

func actorFrom(c *fiber.Ctx) (string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.ActorID() == "" {
		return "", apperrors.NewUnauthorized("user required")
	}
	return principal.ActorID(), nil
}

// bind parses the JSON body into req and applies its validate tags.
func bind(c *fiber.Ctx, req any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
		}
	}
	return dto.Validate(req)
}

func paging(c *fiber.Ctx) (limit, offset int, err error) {
	if limit, err = queryInt(c, "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = queryInt(c, "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewValidationError(key+" must be a non-negative integer", map[string]any{"field": key})
	}
	return v, nil
}

func queryString(c *fiber.Ctx, key string) *string {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	return &raw
}
