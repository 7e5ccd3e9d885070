package observability

import (
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets/:id/plan", "POST", 200, 15*time.Millisecond)
	m.RecordRequest("/tickets/:id/plan", "POST", 200, 5*time.Millisecond)
	m.RecordError("/orders", "POST", "VALIDATION_FAILED")
	m.RecordTransition("order", "COMPLETE_STEP", "DEPENDENCY_BLOCKED")

	snap := m.Snapshot()
	if snap.Requests["/tickets/:id/plan|POST|200"] != 2 {
		t.Fatalf("unexpected request count %+v", snap.Requests)
	}
	if snap.RequestDurationMS["/tickets/:id/plan|POST|200"] != 20 {
		t.Fatalf("unexpected duration %+v", snap.RequestDurationMS)
	}
	if snap.Errors["/orders|POST|VALIDATION_FAILED"] != 1 {
		t.Fatalf("unexpected errors %+v", snap.Errors)
	}
	if snap.Transitions["order|COMPLETE_STEP|DEPENDENCY_BLOCKED"] != 1 {
		t.Fatalf("unexpected transitions %+v", snap.Transitions)
	}

	snap.Requests["/tickets/:id/plan|POST|200"] = 99
	if m.Snapshot().Requests["/tickets/:id/plan|POST|200"] != 2 {
		t.Fatalf("snapshot must be a copy")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordTransition("ticket", "PLAN", "ok")
	if len(m.Snapshot().Requests) != 0 {
		t.Fatalf("nil metrics snapshot must be empty")
	}
}
