package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/erp-workflow/internal/config"
	"github.com/spec-kit/erp-workflow/internal/events"
)

const notificationQueueSize = 256

// NotificationService fans workflow events out to the log and the webhook.
// Delivery happens off the request path on Run's goroutine.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	queue      chan events.Event
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		queue:      make(chan events.Event, notificationQueueSize),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAny, n.enqueue)
}

func (n *NotificationService) enqueue(_ context.Context, event events.Event) error {
	select {
	case n.queue <- event:
		return nil
	default:
		n.logger.Warn("notification queue full; event dropped",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return nil
	}
}

// Run delivers queued events until ctx is done, then drains what is left.
func (n *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case event := <-n.queue:
			n.deliver(ctx, event)
		case <-ctx.Done():
			for {
				select {
				case event := <-n.queue:
					n.deliver(context.WithoutCancel(ctx), event)
				default:
					return
				}
			}
		}
	}
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event) {
	n.logger.Info(string(event.Type),
		zap.String("aggregate_type", string(event.AggregateType)),
		zap.String("aggregate_id", event.AggregateID),
		zap.String("actor", event.ActorID),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	if err := n.sendWebhook(event); err != nil {
		n.logger.Warn("webhook delivery failed",
			zap.String("event_id", event.ID),
			zap.String("url", n.cfg.WebhookURL),
			zap.Error(err))
	}
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("aggregate_id", event.AggregateID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhook(event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	agent := fiber.Post(url).
		JSON(event).
		Timeout(n.cfg.WebhookTimeout())
	status, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errs[0]
	}
	if status >= fiber.StatusBadRequest {
		return fmt.Errorf("webhook responded with status %d", status)
	}
	return nil
}
