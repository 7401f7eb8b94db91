package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// TaskValuationSync refreshes every item master's derived valuation rate
// from the warehouse balances.
const TaskValuationSync = "valuation:sync"

// ValuationSyncPayload carries scheduling metadata.
type ValuationSyncPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// ValuationSource is the slice of the stock service the sync needs.
type ValuationSource interface {
	ListItemCodes(ctx context.Context) ([]string, error)
}

// RateSyncer pushes one item's recomputed rate into the master.
type RateSyncer interface {
	SyncItemRate(ctx context.Context, itemCode string) error
}

// NewValuationSyncTask constructs an Asynq task for the valuation refresh.
func NewValuationSyncTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ValuationSyncPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskValuationSync, body, asynq.Queue(QueueDefault)), nil
}

// NewValuationSyncHandler walks all items with ledger history and syncs
// their master rates. Per-item failures are logged and skipped so one bad
// item cannot starve the rest.
func NewValuationSyncHandler(source ValuationSource, syncer RateSyncer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ValuationSyncPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		codes, err := source.ListItemCodes(ctx)
		if err != nil {
			return err
		}
		var synced atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for _, code := range codes {
			g.Go(func() error {
				if err := syncer.SyncItemRate(gctx, code); err != nil {
					logger.Warn("valuation sync failed", slog.String("item", code), slog.Any("error", err))
					return nil
				}
				synced.Add(1)
				return nil
			})
		}
		_ = g.Wait()
		logger.Info("valuation sync finished", slog.Int64("items", synced.Load()))
		return nil
	}
}
