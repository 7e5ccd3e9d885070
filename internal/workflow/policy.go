package workflow

import (
	"context"
	"strings"

	"github.com/spec-kit/erp-workflow/internal/domain"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

// Role is the relationship an actor holds to a ticket.
type Role string

const (
	RoleRaiser        Role = "RAISED_BY"
	RolePCAccountable Role = "PC_ACCOUNTABLE"
	RoleProblemSolver Role = "PROBLEM_SOLVER"
)

// Holder returns the user id occupying role on the ticket, or "" when unset.
func Holder(t *domain.Ticket, role Role) string {
	switch role {
	case RoleRaiser:
		return t.RaisedBy
	case RolePCAccountable:
		return t.PCAccountable
	case RoleProblemSolver:
		if t.ProblemSolver != nil {
			return *t.ProblemSolver
		}
	}
	return ""
}

// Authorize is the single "who may act" check consulted by every ticket
// transition.
func Authorize(t *domain.Ticket, role Role, actor string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return apperrors.NewUnauthorized("actor required")
	}
	holder := Holder(t, role)
	if holder == "" || holder != actor {
		return apperrors.NewForbidden("actor not permitted for current stage", map[string]any{
			"ticket_id":     t.ID,
			"required_role": string(role),
			"stage":         int(t.CurrentStage),
		})
	}
	return nil
}

// ActorDirectory resolves whether a user id names an existing active actor.
type ActorDirectory interface {
	ActorExists(ctx context.Context, id string) (bool, error)
}

// RequireActorRef validates a caller-supplied actor reference for field.
func RequireActorRef(ctx context.Context, dir ActorDirectory, field, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError(field+" required", map[string]any{"field": field})
	}
	if dir == nil {
		return nil
	}
	exists, err := dir.ActorExists(ctx, id)
	if err != nil {
		return apperrors.NewTransientError(err)
	}
	if !exists {
		return apperrors.NewValidationError(field+" does not reference an active user", map[string]any{
			"field": field,
			"value": id,
		})
	}
	return nil
}
