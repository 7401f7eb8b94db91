package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/codigix/nobal-casting-sub005/internal/inventory"
	jobmetrics "github.com/codigix/nobal-casting-sub005/internal/jobs"
)

// TaskLedgerIntegrity triggers the nightly ledger-vs-balance consistency
// scan.
const TaskLedgerIntegrity = "ledger:integrity"

// LedgerIntegrityPayload carries scheduling metadata.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Limit        int       `json:"limit"`
}

// DriftSource lists (item, warehouse) pairs whose cached balance has
// drifted from the ledger's running balance.
type DriftSource interface {
	LedgerDrift(ctx context.Context, limit int) ([]inventory.Balance, error)
}

// NewLedgerIntegrityTask constructs an Asynq task for the integrity scan.
func NewLedgerIntegrityTask(at time.Time, limit int) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at, Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// NewLedgerIntegrityHandler reports drifted balances. Drift is logged, never
// auto-corrected; the repair path is the job card resync endpoint plus a
// manual balance rebuild.
func NewLedgerIntegrityHandler(source DriftSource, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LedgerIntegrityPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		limit := payload.Limit
		if limit <= 0 {
			limit = 100
		}
		drifted, err := source.LedgerDrift(ctx, limit)
		if err != nil {
			return err
		}
		metrics.SetDriftedBalances(len(drifted))
		if len(drifted) == 0 {
			logger.Info("ledger integrity clean")
			return nil
		}
		for _, bal := range drifted {
			logger.Warn("ledger drift detected",
				slog.String("item", bal.ItemCode),
				slog.Int64("warehouse", bal.WarehouseID),
				slog.Float64("cached_qty", bal.CurrentQty))
		}
		return nil
	}
}
