package worker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/erp-workflow/internal/config"
	"github.com/spec-kit/erp-workflow/internal/events"
	"github.com/spec-kit/erp-workflow/internal/service"
)

func TestWorkerDeliversToWebhook(t *testing.T) {
	received := make(chan events.Event, 1)
	hook := fiber.New(fiber.Config{DisableStartupMessage: true})
	hook.Post("/hook", func(c *fiber.Ctx) error {
		var ev events.Event
		if err := c.BodyParser(&ev); err != nil {
			return err
		}
		received <- ev
		return c.SendStatus(fiber.StatusNoContent)
	})
	ln := listen(t)
	go func() { _ = hook.Listener(ln) }()
	defer hook.Shutdown()

	dispatcher := events.NewInMemoryDispatcher()
	svc := service.NewNotificationService(dispatcher, nil, config.NotificationConfig{
		WebhookURL:            "http://" + ln.Addr().String() + "/hook",
		WebhookTimeoutSeconds: 2,
	})
	w := StartNotificationWorker(context.Background(), svc)
	defer w.Stop()

	if err := dispatcher.Publish(context.Background(), events.Event{
		ID:            "ev-1",
		Type:          events.EventStepCompleted,
		AggregateType: events.AggregateOrder,
		AggregateID:   "o1",
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-received:
		if ev.ID != "ev-1" || ev.Type != events.EventStepCompleted || ev.AggregateID != "o1" {
			t.Fatalf("unexpected webhook body %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("webhook not called")
	}
}

func TestStopWithoutService(t *testing.T) {
	w := StartNotificationWorker(context.Background(), nil)
	w.Stop()
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}
