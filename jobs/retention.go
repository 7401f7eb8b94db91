package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskRetentionSweep prunes expired idempotency keys.
const TaskRetentionSweep = "retention:sweep"

// RetentionSweepPayload carries the retention window.
type RetentionSweepPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// KeySweeper is the slice of the idempotency store the sweep needs.
type KeySweeper interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewRetentionSweepTask constructs an Asynq task for the sweep. A zero
// window means the store's default retention.
func NewRetentionSweepTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(RetentionSweepPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewRetentionSweepHandler prunes idempotency keys past retention.
func NewRetentionSweepHandler(sweeper KeySweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RetentionSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := sweeper.Cleanup(ctx, payload.OlderThan); err != nil {
			return err
		}
		logger.Info("retention sweep finished")
		return nil
	}
}
