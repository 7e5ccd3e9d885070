package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/repository"
)

func TestSaveTransitionChecksVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	tickets := store.Tickets()

	ticket := &domain.Ticket{ID: "t1", CurrentStage: domain.StageRaised, Status: domain.TicketStatusOpen, Version: 1}
	if err := tickets.Create(ctx, ticket); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := *ticket
	next.CurrentStage = domain.StageSolving
	entry := &domain.TicketHistory{ID: "h1", TicketID: "t1", ActionType: domain.ActionPlanned}
	if err := tickets.SaveTransition(ctx, &next, 1, entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	if next.Version != 2 {
		t.Fatalf("expected version 2, got %d", next.Version)
	}

	stale := *ticket
	err := tickets.SaveTransition(ctx, &stale, 1, &domain.TicketHistory{ID: "h2", TicketID: "t1"})
	if !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	entries, _ := store.History().ListByTicket(ctx, "t1")
	if len(entries) != 1 || entries[0].ID != "h1" {
		t.Fatalf("rejected write must not append history, got %+v", entries)
	}
	stored, _ := tickets.GetByID(ctx, "t1")
	if stored.CurrentStage != domain.StageSolving {
		t.Fatalf("unexpected stage %d", stored.CurrentStage)
	}
}

func TestOrdersAreCopiedOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	orders := store.Orders()

	order := &domain.Order{ID: "o1", Version: 1, Steps: []domain.Step{{ID: "s1", StepName: "Pack", DependencyGroup: 1, Status: domain.StepStatusPending}}}
	if err := orders.Create(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}
	order.Steps[0].Status = domain.StepStatusCompleted

	loaded, err := orders.GetByID(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Steps[0].Status != domain.StepStatusPending {
		t.Fatalf("caller mutation leaked into store")
	}

	status := domain.OrderStatusPending
	list, _ := orders.ListWithFilter(ctx, repository.OrderFilter{OverallStatus: &status})
	if len(list) != 1 {
		t.Fatalf("expected pending order, got %d", len(list))
	}

	step := loaded.Steps[0]
	step.Status = domain.StepStatusAssigned
	if err := orders.SaveStep(ctx, loaded, 1, &step, store.now()); err != nil {
		t.Fatalf("save step: %v", err)
	}
	if err := orders.SaveStep(ctx, loaded, 1, &step, store.now()); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected conflict on stale version, got %v", err)
	}
}

func TestUserLookups(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()
	if err := users.Create(ctx, &domain.User{ID: "u1", Email: "Ops@Example.com", Active: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := users.Create(ctx, &domain.User{ID: "u2", Email: "ops@example.com"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := users.GetByEmail(ctx, "OPS@example.com"); err != nil {
		t.Fatalf("email lookup must ignore case: %v", err)
	}
	if ok, _ := users.ActorExists(ctx, "u1"); !ok {
		t.Fatalf("expected actor u1 to exist")
	}
	if ok, _ := users.ActorExists(ctx, "ghost"); ok {
		t.Fatalf("unknown actor reported as existing")
	}
}
