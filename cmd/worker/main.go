package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/codigix/nobal-casting-sub005/internal/app"
	"github.com/codigix/nobal-casting-sub005/internal/inventory"
	jobmetrics "github.com/codigix/nobal-casting-sub005/internal/jobs"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata/items"
	"github.com/codigix/nobal-casting-sub005/internal/platform/cache"
	"github.com/codigix/nobal-casting-sub005/internal/platform/db"
	"github.com/codigix/nobal-casting-sub005/internal/shared"
	"github.com/codigix/nobal-casting-sub005/jobs"
)

// itemValuation adapts the item master service for rate lookups during
// valuation sync.
type itemValuation struct {
	svc *items.Service
}

func (a itemValuation) ValuationInfo(ctx context.Context, code string) (inventory.ItemInfo, error) {
	it, err := a.svc.Get(ctx, code)
	if err != nil {
		return inventory.ItemInfo{}, err
	}
	return inventory.ItemInfo{
		Code:          it.Code,
		Method:        it.ValuationMethod,
		ValuationRate: it.ValuationRate,
	}, nil
}

func (a itemValuation) UpdateValuationRate(ctx context.Context, code string, rate float64) error {
	return a.svc.UpdateValuationRate(ctx, code, rate)
}

func tracked(metrics *jobmetrics.Metrics, job string, h asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return metrics.Track(job).End(h(ctx, t))
	}
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Asynq cannot operate without Redis, so fail fast here.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	itemService := items.NewService(items.NewRepository(pool), logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventory.ServiceDeps{
		Repo:        inventoryRepo,
		Items:       itemValuation{svc: itemService},
		Periods:     shared.NewPeriodGuard(pool),
		Cache:       inventory.NewBalanceCache(redisClient, logger),
		Audit:       shared.NewAuditLogger(pool),
		Idempotency: idempotencyStore,
		Logger:      logger,
	}, inventory.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock})

	metrics := jobmetrics.NewMetrics(nil)

	integrityTask, err := jobs.NewLedgerIntegrityTask(time.Now().UTC(), 0)
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}
	valuationTask, err := jobs.NewValuationSyncTask(time.Now().UTC())
	if err != nil {
		logger.Error("build valuation task", slog.Any("error", err))
		os.Exit(1)
	}
	sweepTask, err := jobs.NewRetentionSweepTask(0)
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotifyEvent, Handler: tracked(metrics, "notify_event", jobs.NewNotifyEventHandler(logger))},
			{Type: jobs.TaskLedgerIntegrity, Handler: tracked(metrics, "ledger_integrity", jobs.NewLedgerIntegrityHandler(inventoryRepo, metrics, logger))},
			{Type: jobs.TaskValuationSync, Handler: tracked(metrics, "valuation_sync", jobs.NewValuationSyncHandler(inventoryRepo, inventoryService, logger))},
			{Type: jobs.TaskRetentionSweep, Handler: tracked(metrics, "retention_sweep", jobs.NewRetentionSweepHandler(idempotencyStore, logger))},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: valuationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 2 * * 0", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
