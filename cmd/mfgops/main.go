package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/codigix/nobal-casting-sub005/internal/allocation"
	"github.com/codigix/nobal-casting-sub005/internal/app"
	"github.com/codigix/nobal-casting-sub005/internal/bom"
	"github.com/codigix/nobal-casting-sub005/internal/integration"
	"github.com/codigix/nobal-casting-sub005/internal/inventory"
	"github.com/codigix/nobal-casting-sub005/internal/jobcard"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata/items"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata/warehouses"
	"github.com/codigix/nobal-casting-sub005/internal/notify"
	"github.com/codigix/nobal-casting-sub005/internal/observability"
	"github.com/codigix/nobal-casting-sub005/internal/platform/db"
	"github.com/codigix/nobal-casting-sub005/internal/shared"
	"github.com/codigix/nobal-casting-sub005/internal/workorder"
	"github.com/codigix/nobal-casting-sub005/jobs"
)

// itemValuation adapts the item master service to the slice of master data
// the valuation engine reads and writes.
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

// salesOrderSync forwards work order completion to the sales side as a
// queue event. Sales order management lives outside this service.
type salesOrderSync struct {
	notifier *notify.Notifier
}

func (a salesOrderSync) SyncStatus(ctx context.Context, salesOrderRef, workOrderID string, status workorder.Status) error {
	return a.notifier.Publish(ctx, "sales_order.status_sync", map[string]any{
		"sales_order_ref": salesOrderRef,
		"work_order_id":   workOrderID,
		"status":          string(status),
	})
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	periodGuard := shared.NewPeriodGuard(dbpool)

	itemService := items.NewService(items.NewRepository(dbpool), logger)
	warehouseService := warehouses.NewService(warehouses.NewRepository(dbpool))

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	notifier := notify.New(jobClient, logger)

	metrics := observability.NewMetrics()
	hooks := integration.NewHooks(notifier, metrics, logger)

	inventoryRepo := inventory.NewRepository(dbpool)
	balanceCache := inventory.NewBalanceCache(redisClient, logger)
	inventoryService := inventory.NewService(inventory.ServiceDeps{
		Repo:        inventoryRepo,
		Items:       itemValuation{svc: itemService},
		Periods:     periodGuard,
		Cache:       balanceCache,
		Audit:       auditLogger,
		Idempotency: idempotencyStore,
		Integration: hooks,
		Logger:      logger,
	}, inventory.ServiceConfig{AllowNegativeStock: cfg.AllowNegativeStock})

	allocationService := allocation.NewService(allocation.NewRepository(dbpool), inventoryService, auditLogger, logger)
	bomService := bom.NewService(bom.NewRepository(dbpool))

	cardService := jobcard.NewService(jobcard.ServiceDeps{
		Repo:        jobcard.NewRepository(dbpool),
		Allocations: allocationService,
		Notify:      notifier,
		Logger:      logger,
	})
	workOrderService := workorder.NewService(workorder.ServiceDeps{
		Repo:        workorder.NewRepository(dbpool),
		BOMs:        bomService,
		Cards:       cardService,
		Allocations: allocationService,
		Stock:       inventoryService,
		Items:       itemService,
		Warehouses:  warehouseService,
		Notify:      notifier,
		Audit:       auditLogger,
		Logger:      logger,
	}, workorder.ServiceConfig{DirectDeductionFallback: cfg.DirectDeductionFallback})
	cardService.SetDispatcher(workOrderService)
	cardService.SetProgress(workOrderService)
	cardService.SetWorkOrders(workOrderService)
	workOrderService.SetSalesOrders(salesOrderSync{notifier: notifier})

	stockHandler := inventory.NewHandler(logger, inventoryService, warehouseService)
	workOrderHandler := workorder.NewHandler(logger, workOrderService)
	jobCardHandler := jobcard.NewHandler(logger, cardService)
	masterDataHandler := masterdata.NewHandler(logger, itemService, warehouseService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		StockHandler:      stockHandler,
		WorkOrderHandler:  workOrderHandler,
		JobCardHandler:    jobCardHandler,
		MasterDataHandler: masterDataHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
