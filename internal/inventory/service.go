package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, itemCode string, warehouseID int64) (Balance, error)
	GetLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
	GetEntry(ctx context.Context, id int64) (LedgerEntry, error)
	WeightedAverageRate(ctx context.Context, itemCode string) (float64, error)
}

// ItemPort supplies valuation master data and accepts rate sync-backs.
type ItemPort interface {
	ValuationInfo(ctx context.Context, code string) (ItemInfo, error)
	UpdateValuationRate(ctx context.Context, code string, rate float64) error
}

// PeriodPort guards postings against closed accounting periods.
type PeriodPort interface {
	EnsureOpen(ctx context.Context, at time.Time) error
}

// CachePort abstracts the balance cache.
type CachePort interface {
	Get(ctx context.Context, itemCode string, warehouseID int64) (Balance, bool)
	Set(ctx context.Context, balance Balance)
	Invalidate(ctx context.Context, itemCode string, warehouseID int64)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock movements: ledger append, balance upsert and
// valuation in one transaction.
type Service struct {
	repo        RepositoryPort
	items       ItemPort
	periods     PeriodPort
	cache       CachePort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	integration IntegrationHandler
	logger      *slog.Logger
	allowNeg    bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// ServiceDeps groups service collaborators.
type ServiceDeps struct {
	Repo        RepositoryPort
	Items       ItemPort
	Periods     PeriodPort
	Cache       CachePort
	Audit       AuditPort
	Idempotency *shared.IdempotencyStore
	Integration IntegrationHandler
	Logger      *slog.Logger
}

// NewService builds Service.
func NewService(deps ServiceDeps, cfg ServiceConfig) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        deps.Repo,
		items:       deps.Items,
		periods:     deps.Periods,
		cache:       deps.Cache,
		audit:       deps.Audit,
		idempotency: deps.Idempotency,
		integration: deps.Integration,
		logger:      logger,
		allowNeg:    cfg.AllowNegativeStock,
	}
}

// Post appends one ledger entry and upserts the matching balance inside a
// single transaction. The valuation rate comes from the explicit input rate,
// or the item's costing policy for issues, or the incoming rate for receipts.
func (s *Service) Post(ctx context.Context, input MovementInput) (LedgerEntry, error) {
	if input.ItemCode == "" || input.WarehouseID == 0 {
		return LedgerEntry{}, errors.New("inventory: item and warehouse required")
	}
	if input.Type == "" {
		return LedgerEntry{}, errors.New("inventory: transaction type required")
	}
	if input.QtyIn < 0 || input.QtyOut < 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}
	if input.QtyIn > 0 && input.QtyOut > 0 {
		return LedgerEntry{}, fmt.Errorf("%w: movement cannot be both in and out", ErrInvalidQuantity)
	}
	if input.QtyIn == 0 && input.QtyOut == 0 {
		return LedgerEntry{}, ErrInvalidQuantity
	}
	if input.IncomingRate < 0 || (input.Rate != nil && *input.Rate < 0) {
		return LedgerEntry{}, ErrInvalidRate
	}
	postedAt := input.PostedAt
	if postedAt.IsZero() {
		postedAt = time.Now().UTC()
	}
	// Fail fast before any row is locked.
	if s.periods != nil {
		if err := s.periods.EnsureOpen(ctx, postedAt); err != nil {
			return LedgerEntry{}, err
		}
	}

	info, err := s.itemInfo(ctx, input.ItemCode)
	if err != nil {
		return LedgerEntry{}, err
	}

	key := ""
	if s.idempotency != nil && input.RefID != "" {
		key = fmt.Sprintf("%s:%s:%s:%s:%d", input.Type, input.RefDoctype, input.RefID, input.ItemCode, input.WarehouseID)
		if err := s.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
			return LedgerEntry{}, err
		}
	}

	var entry LedgerEntry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.GetBalanceForUpdate(ctx, input.ItemCode, input.WarehouseID)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}

		rate, err := s.resolveRate(ctx, tx, input, info, balance)
		if err != nil {
			return err
		}

		prevQty, err := tx.LastBalanceQty(ctx, input.ItemCode, input.WarehouseID)
		if err != nil {
			return err
		}
		newQty := prevQty + input.QtyIn - input.QtyOut
		if !s.allowNeg && input.QtyOut > 0 && newQty < -0.0001 {
			return fmt.Errorf("%w: %s has %.4f in warehouse %d, requested %.4f",
				shared.ErrInsufficientStock, input.ItemCode, prevQty, input.WarehouseID, input.QtyOut)
		}

		qty := input.QtyIn
		if input.QtyOut > 0 {
			qty = input.QtyOut
		}
		entry = LedgerEntry{
			ItemCode:         input.ItemCode,
			WarehouseID:      input.WarehouseID,
			Type:             input.Type,
			QtyIn:            input.QtyIn,
			QtyOut:           input.QtyOut,
			ValuationRate:    rate,
			BalanceQty:       newQty,
			TransactionValue: qty * rate,
			RefDoctype:       input.RefDoctype,
			RefID:            input.RefID,
			Remarks:          input.Remarks,
			PostedAt:         postedAt,
			CreatedBy:        input.Actor,
		}
		entryID, err := tx.InsertLedgerEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = entryID

		// Receipts with a rate refresh the balance's moving average even for
		// FIFO/LIFO items; the ledger keeps the batch rates for future walks.
		balanceRate := balance.ValuationRate
		if input.QtyIn > 0 {
			incoming := input.IncomingRate
			if incoming == 0 {
				incoming = rate
			}
			if incoming > 0 {
				balanceRate = IncomingAverage(balance.CurrentQty, balance.ValuationRate, input.QtyIn, incoming)
			}
		}
		reserved := balance.ReservedQty - input.ReleaseReserved
		if reserved < 0 {
			reserved = 0
		}
		balance.ItemCode = input.ItemCode
		balance.WarehouseID = input.WarehouseID
		balance.CurrentQty = newQty
		balance.ReservedQty = reserved
		balance.ValuationRate = balanceRate
		balance.TotalValue = newQty * balanceRate
		return tx.UpsertBalance(ctx, balance)
	})
	if err != nil {
		if key != "" {
			_ = s.idempotency.Delete(ctx, key)
		}
		return LedgerEntry{}, err
	}

	s.afterMovement(ctx, entry, input.Actor)
	return entry, nil
}

// Reverse undoes a posted entry by appending a new movement with opposite
// quantities at the original rate. The ledger stays append-only; nothing is
// deleted. Reversing twice dedupes through the idempotency key.
func (s *Service) Reverse(ctx context.Context, entryID int64, actor string) (LedgerEntry, error) {
	orig, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return LedgerEntry{}, err
	}
	rate := orig.ValuationRate
	return s.Post(ctx, MovementInput{
		ItemCode:    orig.ItemCode,
		WarehouseID: orig.WarehouseID,
		Type:        orig.Type.Reversal(),
		QtyIn:       orig.QtyOut,
		QtyOut:      orig.QtyIn,
		Rate:        &rate,
		RefDoctype:  "Stock Ledger",
		RefID:       fmt.Sprintf("%d", orig.ID),
		Remarks:     fmt.Sprintf("reversal of entry %d", orig.ID),
		Actor:       actor,
	})
}

// Reserve raises reserved_qty after checking on-hand quantity under lock.
func (s *Service) Reserve(ctx context.Context, itemCode string, warehouseID int64, qty float64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.GetBalanceForUpdate(ctx, itemCode, warehouseID)
		if err != nil && !errors.Is(err, ErrBalanceNotFound) {
			return err
		}
		// Guard on the unreserved remainder, not raw on-hand quantity,
		// so concurrent work orders cannot promise the same stock twice.
		if available := balance.AvailableQty(); available < qty {
			return fmt.Errorf("%w: %s has %.4f available in warehouse %d, requested %.4f",
				shared.ErrInsufficientStock, itemCode, available, warehouseID, qty)
		}
		balance.ItemCode = itemCode
		balance.WarehouseID = warehouseID
		balance.ReservedQty += qty
		return tx.UpsertBalance(ctx, balance)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, itemCode, warehouseID)
	}
	return nil
}

// Release lowers reserved_qty, never below zero.
func (s *Service) Release(ctx context.Context, itemCode string, warehouseID int64, qty float64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.GetBalanceForUpdate(ctx, itemCode, warehouseID)
		if err != nil {
			if errors.Is(err, ErrBalanceNotFound) {
				return nil
			}
			return err
		}
		balance.ReservedQty -= qty
		if balance.ReservedQty < 0 {
			balance.ReservedQty = 0
		}
		return tx.UpsertBalance(ctx, balance)
	})
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, itemCode, warehouseID)
	}
	return nil
}

// GetBalance reads the cached balance, falling through to the store. A pair
// with no movements yet reads as all zeroes.
func (s *Service) GetBalance(ctx context.Context, itemCode string, warehouseID int64) (Balance, error) {
	if itemCode == "" || warehouseID == 0 {
		return Balance{}, errors.New("inventory: item and warehouse required")
	}
	if s.cache != nil {
		if bal, ok := s.cache.Get(ctx, itemCode, warehouseID); ok {
			return bal, nil
		}
	}
	bal, err := s.repo.GetBalance(ctx, itemCode, warehouseID)
	if err != nil {
		if errors.Is(err, ErrBalanceNotFound) {
			return Balance{ItemCode: itemCode, WarehouseID: warehouseID}, nil
		}
		return Balance{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, bal)
	}
	return bal, nil
}

// GetLedger lists movement history for a stock card view.
func (s *Service) GetLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	if filter.ItemCode == "" || filter.WarehouseID == 0 {
		return nil, errors.New("inventory: item and warehouse required")
	}
	return s.repo.GetLedger(ctx, filter)
}

// SyncItemRate recomputes the item master's derived rate from warehouse
// balances. Called after movements and by the nightly valuation job.
func (s *Service) SyncItemRate(ctx context.Context, itemCode string) error {
	if s.items == nil {
		return nil
	}
	rate, err := s.repo.WeightedAverageRate(ctx, itemCode)
	if err != nil {
		return err
	}
	if rate <= 0 {
		return nil
	}
	return s.items.UpdateValuationRate(ctx, itemCode, rate)
}

func (s *Service) itemInfo(ctx context.Context, code string) (ItemInfo, error) {
	if s.items == nil {
		return ItemInfo{Code: code}, nil
	}
	info, err := s.items.ValuationInfo(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ItemInfo{}, fmt.Errorf("%w: item %s", shared.ErrNotFound, code)
		}
		return ItemInfo{}, err
	}
	return info, nil
}

func (s *Service) resolveRate(ctx context.Context, tx TxRepository, input MovementInput, info ItemInfo, balance Balance) (float64, error) {
	if input.Rate != nil {
		return *input.Rate, nil
	}
	if input.QtyIn > 0 {
		if input.IncomingRate > 0 {
			return input.IncomingRate, nil
		}
		return info.ValuationRate, nil
	}
	receipts, err := tx.ListReceipts(ctx, input.ItemCode, input.WarehouseID)
	if err != nil {
		return 0, err
	}
	consumed, err := tx.ConsumedQty(ctx, input.ItemCode, input.WarehouseID)
	if err != nil {
		return 0, err
	}
	return OutgoingRate(OutgoingRateInput{
		Method:         info.Method,
		Receipts:       receipts,
		ConsumedBefore: consumed,
		QtyOut:         input.QtyOut,
		BalanceRate:    balance.ValuationRate,
		MasterRate:     info.ValuationRate,
	}), nil
}

// afterMovement runs the best-effort side effects of a committed movement.
func (s *Service) afterMovement(ctx context.Context, entry LedgerEntry, actor string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, entry.ItemCode, entry.WarehouseID)
	}
	if err := s.SyncItemRate(ctx, entry.ItemCode); err != nil {
		s.logger.Warn("item rate sync failed", slog.String("item", entry.ItemCode), slog.Any("error", err))
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   fmt.Sprintf("stock:%s", entry.Type),
			Entity:   "stock_ledger",
			EntityID: fmt.Sprintf("%d", entry.ID),
			Meta: map[string]any{
				"item_code":    entry.ItemCode,
				"warehouse_id": entry.WarehouseID,
				"qty_in":       entry.QtyIn,
				"qty_out":      entry.QtyOut,
				"rate":         entry.ValuationRate,
			},
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
	if s.integration != nil {
		evt := MovementPostedEvent{
			EntryID:     entry.ID,
			ItemCode:    entry.ItemCode,
			WarehouseID: entry.WarehouseID,
			Type:        entry.Type,
			QtyIn:       entry.QtyIn,
			QtyOut:      entry.QtyOut,
			Rate:        entry.ValuationRate,
			RefDoctype:  entry.RefDoctype,
			RefID:       entry.RefID,
			PostedAt:    entry.PostedAt,
		}
		if err := s.integration.HandleMovementPosted(ctx, evt); err != nil {
			s.logger.Warn("movement event dispatch failed", slog.Any("error", err))
		}
	}
}
