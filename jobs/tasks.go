package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyEvent delivers a domain event to interested listeners.
	TaskNotifyEvent = "notify:event"
)

// NotifyEventPayload carries one domain event through the queue.
type NotifyEventPayload struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// NewNotifyEventTask constructs an Asynq task for a domain event.
func NewNotifyEventTask(payload NotifyEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyEvent, data, asynq.Queue(QueueDefault)), nil
}

// NewNotifyEventHandler processes TaskNotifyEvent tasks. Delivery is a log
// line for now; webhook and mail fan-out hang off the same handler later.
func NewNotifyEventHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload NotifyEventPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("domain event",
			slog.String("event", payload.Event),
			slog.Any("payload", payload.Payload))
		return nil
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueNotifyEvent enqueues a domain event for delivery.
func (c *Client) EnqueueNotifyEvent(ctx context.Context, payload NotifyEventPayload) (*asynq.TaskInfo, error) {
	task, err := NewNotifyEventTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
