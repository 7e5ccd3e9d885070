// Package memory holds process-local repository implementations used when no
// Postgres DSN is configured and by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/repository"
)

// Store keeps every aggregate behind one mutex so a ticket write and its
// history entry become visible together.
type Store struct {
	mu      sync.RWMutex
	now     func() time.Time
	users   map[string]domain.User
	tickets map[string]domain.Ticket
	history map[string][]domain.TicketHistory
	orders  map[string]*domain.Order
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		now:     time.Now,
		users:   map[string]domain.User{},
		tickets: map[string]domain.Ticket{},
		history: map[string][]domain.TicketHistory{},
		orders:  map[string]*domain.Order{},
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Tickets returns the ticket repository view of the store.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// History returns the ticket history repository view of the store.
func (s *Store) History() repository.TicketHistoryRepository { return historyRepo{s} }

// Orders returns the order repository view of the store.
func (s *Store) Orders() repository.OrderRepository { return orderRepo{s} }

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) ActorExists(_ context.Context, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	return ok && user.Active, nil
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[ticket.ID]; ok {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = now
	}
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := []domain.Ticket{}
	for _, ticket := range r.s.tickets {
		if matchTicket(ticket, filter) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, filter.Limit, filter.Offset), nil
}

func (r ticketRepo) SaveTransition(_ context.Context, ticket *domain.Ticket, expectedVersion int, entry *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	ticket.Version = expectedVersion + 1
	r.s.tickets[ticket.ID] = *ticket
	r.s.history[ticket.ID] = append(r.s.history[ticket.ID], *entry)
	return nil
}

func matchTicket(t domain.Ticket, f repository.TicketFilter) bool {
	if f.RaisedBy != nil && t.RaisedBy != *f.RaisedBy {
		return false
	}
	if f.PCAccountable != nil && t.PCAccountable != *f.PCAccountable {
		return false
	}
	if f.ProblemSolver != nil && (t.ProblemSolver == nil || *t.ProblemSolver != *f.ProblemSolver) {
		return false
	}
	if f.Involving != nil {
		id := *f.Involving
		solver := t.ProblemSolver != nil && *t.ProblemSolver == id
		if t.RaisedBy != id && t.PCAccountable != id && !solver {
			return false
		}
	}
	if f.Stage != nil && t.CurrentStage != *f.Stage {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, status := range f.Statuses {
			if t.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

type historyRepo struct{ s *Store }

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.TicketHistory{}, r.s.history[ticketID]...), nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[order.ID]; ok {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Steps {
		order.Steps[i].OrderID = order.ID
		order.Steps[i].UpdatedAt = now
	}
	r.s.orders[order.ID] = order.Clone()
	return nil
}

func (r orderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	order, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return order.Clone(), nil
}

func (r orderRepo) ListWithFilter(_ context.Context, filter repository.OrderFilter) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := []domain.Order{}
	for _, order := range r.s.orders {
		if filter.CreatedBy != nil && order.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.OverallStatus != nil && order.OverallStatus() != *filter.OverallStatus {
			continue
		}
		result = append(result, *order.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return page(result, filter.Limit, filter.Offset), nil
}

func (r orderRepo) SaveStep(_ context.Context, order *domain.Order, expectedVersion int, step *domain.Step, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	target := stored.StepByID(step.ID)
	if target == nil {
		return repository.ErrNotFound
	}
	*target = *step
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = now
	order.Version = stored.Version
	order.UpdatedAt = now
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	limit, offset = repository.PageBounds(limit, offset)
	if offset >= len(items) {
		return items[:0]
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
