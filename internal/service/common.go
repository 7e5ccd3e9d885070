package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/erp-workflow/internal/events"
	"github.com/spec-kit/erp-workflow/internal/lock"
	"github.com/spec-kit/erp-workflow/internal/observability"
	"github.com/spec-kit/erp-workflow/internal/repository"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

// Runtime bundles the collaborators every workflow service shares.
type Runtime struct {
	Locker     lock.Locker
	LockPrefix string
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

func (r Runtime) withDefaults() Runtime {
	if r.Locker == nil {
		r.Locker = lock.Nop{}
	}
	if r.LockPrefix == "" {
		r.LockPrefix = "erp:lock"
	}
	if r.Logger == nil {
		r.Logger = zap.NewNop()
	}
	if r.Clock == nil {
		r.Clock = time.Now
	}
	return r
}

func (r Runtime) now() time.Time {
	return r.Clock().UTC()
}

// acquire takes the transition lock for one aggregate.
func (r Runtime) acquire(ctx context.Context, aggregate events.Aggregate, id string) (func(context.Context), error) {
	release, err := r.Locker.Acquire(ctx, lock.Key(r.LockPrefix, string(aggregate), id))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperrors.NewConflict("another change is in progress", map[string]any{
				string(aggregate) + "_id": id,
			})
		}
		return nil, apperrors.NewTransientError(err)
	}
	return func(ctx context.Context) {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.Logger.Warn("release transition lock", zap.String("id", id), zap.Error(err))
		}
	}, nil
}

func (r Runtime) publish(ctx context.Context, event events.Event) {
	if r.Dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}
	if err := r.Dispatcher.Publish(ctx, event); err != nil {
		r.Logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// outcome labels a transition result for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(apperrors.ToDomainError(err).Code)
}

// storageError maps repository failures onto the error taxonomy.
func storageError(err error, resource, id string) error {
	var domainErr *apperrors.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict(resource+" was modified concurrently; reload and retry", map[string]any{"id": id})
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", nil)
	default:
		return apperrors.NewTransientError(err)
	}
}

func generateNumber(prefix string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
