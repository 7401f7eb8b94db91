// Package integration bridges stock movement events to downstream
// consumers.
package integration

import (
	"context"
	"log/slog"

	"github.com/codigix/nobal-casting-sub005/internal/inventory"
)

// Publisher delivers fire-and-forget domain events.
type Publisher interface {
	Publish(ctx context.Context, event string, payload map[string]any) error
}

// MovementCounter records posted movements for observability.
type MovementCounter interface {
	CountMovement(txType string)
}

// Hooks fans a committed stock movement out to the event queue and the
// metrics registry. Both sides are best-effort; Post never rolls back on
// hook failure.
type Hooks struct {
	publisher Publisher
	metrics   MovementCounter
	logger    *slog.Logger
}

// NewHooks constructs integration hooks.
func NewHooks(publisher Publisher, metrics MovementCounter, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{publisher: publisher, metrics: metrics, logger: logger}
}

// HandleMovementPosted implements inventory.IntegrationHandler.
func (h *Hooks) HandleMovementPosted(ctx context.Context, evt inventory.MovementPostedEvent) error {
	if h == nil {
		return nil
	}
	if h.metrics != nil {
		h.metrics.CountMovement(string(evt.Type))
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, "stock.movement_posted", movementPayload(evt)); err != nil {
			h.logger.Warn("movement event publish failed", slog.Any("error", err))
		}
	}
	return nil
}
