package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/events"
	"github.com/spec-kit/erp-workflow/internal/lock"
	"github.com/spec-kit/erp-workflow/internal/observability"
	"github.com/spec-kit/erp-workflow/internal/repository/memory"
)

const (
	raiserID = "u-raiser"
	pcID     = "u-pc"
	solverID = "U1"
	emp1ID   = "emp1"
	emp2ID   = "emp2"
)

type fixture struct {
	store      *memory.Store
	tickets    *TicketService
	orders     *OrderService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics

	mu        sync.Mutex
	published []events.Event
}

func (f *fixture) events() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.published...)
}

func newFixture(t *testing.T, locker lock.Locker) *fixture {
	t.Helper()
	f := &fixture{
		store:      memory.NewStore(),
		dispatcher: events.NewInMemoryDispatcher(),
		metrics:    observability.NewMetrics(),
	}
	for _, id := range []string{raiserID, pcID, solverID, emp1ID, emp2ID} {
		if err := f.store.Users().Create(context.Background(), &domain.User{
			ID:     id,
			Name:   id,
			Email:  id + "@example.com",
			Role:   domain.UserRoleEmployee,
			Active: true,
		}); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
	f.dispatcher.Subscribe(events.EventAny, func(_ context.Context, ev events.Event) error {
		f.mu.Lock()
		f.published = append(f.published, ev)
		f.mu.Unlock()
		return nil
	})

	rt := Runtime{
		Locker:     locker,
		Dispatcher: f.dispatcher,
		Metrics:    f.metrics,
		Clock:      func() time.Time { return time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC) },
	}
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:  f.store.Tickets(),
		HistoryRepo: f.store.History(),
		UserRepo:    f.store.Users(),
		Runtime:     rt,
	})
	f.orders = NewOrderService(OrderDependencies{
		OrderRepo: f.store.Orders(),
		UserRepo:  f.store.Users(),
		Runtime:   rt,
	})
	return f
}

func date(y int, m time.Month, d int) *time.Time {
	v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &v
}

// blockingLocker reports every key as held.
type blockingLocker struct{}

func (blockingLocker) Acquire(context.Context, string) (lock.ReleaseFunc, error) {
	return nil, lock.ErrNotAcquired
}
