package service

import (
	"context"
	"sync"
	"testing"

	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/events"
	"github.com/spec-kit/erp-workflow/internal/lock"
	"github.com/spec-kit/erp-workflow/internal/workflow"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

func packShip(t *testing.T, f *fixture) *domain.Order {
	t.Helper()
	order, err := f.orders.CreateOrder(context.Background(), raiserID, CreateOrderInput{
		PartyName: "Acme Traders",
		Items: []workflow.ItemInput{
			{ItemName: "Bolts", Qty: "12"},
			{ItemName: "", Qty: 3},
			{ItemName: "Nuts", Qty: nil},
		},
		Steps: []workflow.StepInput{
			{StepName: "Ship", DependencyGroup: 2},
			{StepName: "Pack", DependencyGroup: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func stepNamed(t *testing.T, order *domain.Order, name string) domain.Step {
	t.Helper()
	for _, step := range order.Steps {
		if step.StepName == name {
			return step
		}
	}
	t.Fatalf("step %s not found", name)
	return domain.Step{}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, lock.NewLocalLocker())
	order := packShip(t, f)

	if len(order.Items) != 1 || order.Items[0].Qty != 12 {
		t.Fatalf("expected one coerced item, got %+v", order.Items)
	}
	if order.Steps[0].StepName != "Pack" || order.Steps[1].StepName != "Ship" {
		t.Fatalf("steps must be ordered by group, got %+v", order.Steps)
	}
	if order.OverallStatus() != domain.OrderStatusPending {
		t.Fatalf("new order must be pending")
	}
	if published := f.events(); len(published) != 1 || published[0].Type != events.EventOrderCreated {
		t.Fatalf("expected order_created event, got %+v", published)
	}

	withTemplate, err := f.orders.CreateOrder(context.Background(), raiserID, CreateOrderInput{
		PartyName: "Template Co",
		Items:     []workflow.ItemInput{{ItemName: "Widget", Qty: 1.9}},
	})
	if err != nil {
		t.Fatalf("create with template: %v", err)
	}
	if len(withTemplate.Steps) != len(workflow.DefaultStepTemplate()) {
		t.Fatalf("expected template steps, got %d", len(withTemplate.Steps))
	}

	_, err = f.orders.CreateOrder(context.Background(), raiserID, CreateOrderInput{
		PartyName: "Empty",
		Items:     []workflow.ItemInput{{ItemName: "Widget", Qty: 0}},
	})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("order without usable items must fail validation, got %v", err)
	}
}

func TestPackShipScenarioThroughService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, lock.NewLocalLocker())
	order := packShip(t, f)
	pack, ship := stepNamed(t, order, "Pack"), stepNamed(t, order, "Ship")

	if _, err := f.orders.AssignStep(ctx, order.ID, ship.ID, raiserID, emp1ID, nil); err != nil {
		t.Fatalf("assign ship: %v", err)
	}
	_, err := f.orders.CompleteStep(ctx, order.ID, ship.ID, emp1ID, "loaded")
	if !apperrors.HasCode(err, apperrors.CodeDependencyBlocked) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if apperrors.ToDomainError(err).Details["blocking_step"] != "Pack" {
		t.Fatalf("dependency error must name Pack, got %+v", apperrors.ToDomainError(err).Details)
	}

	if _, err := f.orders.AssignStep(ctx, order.ID, pack.ID, raiserID, emp2ID, date(2026, 1, 22)); err != nil {
		t.Fatalf("assign pack: %v", err)
	}
	if _, err := f.orders.CompleteStep(ctx, order.ID, pack.ID, emp2ID, "packed"); err != nil {
		t.Fatalf("complete pack: %v", err)
	}
	change, err := f.orders.CompleteStep(ctx, order.ID, ship.ID, emp1ID, "loaded")
	if err != nil {
		t.Fatalf("complete ship: %v", err)
	}
	if change.Step.Status != domain.StepStatusCompleted || change.Step.ActualDate == nil {
		t.Fatalf("unexpected step %+v", change.Step)
	}
	if change.Order.OverallStatus() != domain.OrderStatusComplete {
		t.Fatalf("expected COMPLETE, got %s", change.Order.OverallStatus())
	}

	stored, _ := f.orders.GetOrder(ctx, order.ID)
	if stored.OverallStatus() != domain.OrderStatusComplete || stored.Version != 5 {
		t.Fatalf("stored order not updated: status=%s version=%d", stored.OverallStatus(), stored.Version)
	}
	complete := domain.OrderStatusComplete
	done, _ := f.orders.ListOrders(ctx, OrderListFilter{OverallStatus: &complete})
	if len(done) != 1 || done[0].ID != order.ID {
		t.Fatalf("expected order in COMPLETE listing")
	}
}

func TestStepErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, lock.NewLocalLocker())
	order := packShip(t, f)
	pack := stepNamed(t, order, "Pack")

	if _, err := f.orders.CompleteStep(ctx, order.ID, pack.ID, emp1ID, ""); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("completing a pending step must be a state error, got %v", err)
	}
	if _, err := f.orders.AssignStep(ctx, order.ID, pack.ID, raiserID, "ghost", nil); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("unknown assignee must be a validation error, got %v", err)
	}
	if _, err := f.orders.AssignStep(ctx, order.ID, "nope", raiserID, emp1ID, nil); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("unknown step must be not found, got %v", err)
	}
	if _, err := f.orders.AssignStep(ctx, "nope", pack.ID, raiserID, emp1ID, nil); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("unknown order must be not found, got %v", err)
	}

	stored, _ := f.orders.GetOrder(ctx, order.ID)
	if stored.Version != 1 || stepNamed(t, stored, "Pack").Status != domain.StepStatusPending {
		t.Fatalf("failed transitions must not write")
	}
}

func TestConcurrentCompleteHasOneWinner(t *testing.T) {
	for name, locker := range map[string]lock.Locker{
		"local lock":    lock.NewLocalLocker(),
		"version check": lock.Nop{},
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, locker)
			order := packShip(t, f)
			pack := stepNamed(t, order, "Pack")
			if _, err := f.orders.AssignStep(ctx, order.ID, pack.ID, raiserID, emp1ID, nil); err != nil {
				t.Fatalf("assign: %v", err)
			}

			const callers = 8
			var wg sync.WaitGroup
			errs := make(chan error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := f.orders.CompleteStep(ctx, order.ID, pack.ID, emp1ID, "packed")
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			wins := 0
			for err := range errs {
				switch {
				case err == nil:
					wins++
				case apperrors.HasCode(err, apperrors.CodeConflict), apperrors.HasCode(err, apperrors.CodeInvalidState):
				default:
					t.Fatalf("unexpected error %v", err)
				}
			}
			if wins != 1 {
				t.Fatalf("expected exactly one winner, got %d", wins)
			}
			stored, _ := f.orders.GetOrder(ctx, order.ID)
			if stepNamed(t, stored, "Pack").Remarks != "packed" {
				t.Fatalf("remarks appended more than once: %q", stepNamed(t, stored, "Pack").Remarks)
			}
		})
	}
}
