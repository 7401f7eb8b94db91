// Package notify bridges domain events onto the background queue.
package notify

import (
	"context"
	"log/slog"

	"github.com/codigix/nobal-casting-sub005/jobs"
)

// Notifier publishes fire-and-forget domain events through Asynq. Failures
// are the caller's to log; the services treat publishing as best-effort.
type Notifier struct {
	client *jobs.Client
	logger *slog.Logger
}

// New builds Notifier.
func New(client *jobs.Client, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, logger: logger}
}

// Publish enqueues one domain event.
func (n *Notifier) Publish(ctx context.Context, event string, payload map[string]any) error {
	if n == nil || n.client == nil {
		return nil
	}
	_, err := n.client.EnqueueNotifyEvent(ctx, jobs.NotifyEventPayload{Event: event, Payload: payload})
	return err
}
