package worker

import (
	"context"
	"sync"

	"github.com/spec-kit/erp-workflow/internal/service"
)

// NotificationWorker owns the goroutine that delivers workflow events.
type NotificationWorker struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartNotificationWorker registers notification handlers and starts delivery.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService) *NotificationWorker {
	w := &NotificationWorker{}
	if notificationService == nil {
		return w
	}
	notificationService.RegisterHandlers()

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		notificationService.Run(runCtx)
	}()
	return w
}

// Stop halts delivery after queued events are flushed.
func (w *NotificationWorker) Stop() {
	if w == nil || w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}
