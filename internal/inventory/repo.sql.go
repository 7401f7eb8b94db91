package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// Repository persists the stock ledger and balances in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// Everything a movement touches goes through one of these inside WithTx.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, itemCode string, warehouseID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error)
	LastBalanceQty(ctx context.Context, itemCode string, warehouseID int64) (float64, error)
	ListReceipts(ctx context.Context, itemCode string, warehouseID int64) ([]Receipt, error)
	ConsumedQty(ctx context.Context, itemCode string, warehouseID int64) (float64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// GetBalance reads the cached balance outside a transaction.
func (r *Repository) GetBalance(ctx context.Context, itemCode string, warehouseID int64) (Balance, error) {
	if r == nil {
		return Balance{}, errors.New("inventory repository not initialised")
	}
	return scanBalance(r.pool.QueryRow(ctx, `SELECT item_code, warehouse_id, current_qty, reserved_qty, valuation_rate, total_value, updated_at
FROM stock_balances WHERE item_code=$1 AND warehouse_id=$2`, itemCode, warehouseID), itemCode, warehouseID)
}

// GetLedger lists ledger entries in posting order.
func (r *Repository) GetLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, item_code, warehouse_id, tx_type, qty_in, qty_out, valuation_rate, balance_qty, transaction_value, ref_doctype, ref_id, remarks, posted_at, created_by, created_at
FROM stock_ledger
WHERE item_code=$1 AND warehouse_id=$2 AND posted_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $5`, filter.ItemCode, filter.WarehouseID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.ItemCode, &e.WarehouseID, &e.Type, &e.QtyIn, &e.QtyOut, &e.ValuationRate, &e.BalanceQty, &e.TransactionValue, &e.RefDoctype, &e.RefID, &e.Remarks, &e.PostedAt, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetEntry fetches one ledger entry by id.
func (r *Repository) GetEntry(ctx context.Context, id int64) (LedgerEntry, error) {
	if r == nil {
		return LedgerEntry{}, errors.New("inventory repository not initialised")
	}
	var e LedgerEntry
	err := r.pool.QueryRow(ctx, `SELECT id, item_code, warehouse_id, tx_type, qty_in, qty_out, valuation_rate, balance_qty, transaction_value, ref_doctype, ref_id, remarks, posted_at, created_by, created_at
FROM stock_ledger WHERE id=$1`, id).
		Scan(&e.ID, &e.ItemCode, &e.WarehouseID, &e.Type, &e.QtyIn, &e.QtyOut, &e.ValuationRate, &e.BalanceQty, &e.TransactionValue, &e.RefDoctype, &e.RefID, &e.Remarks, &e.PostedAt, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LedgerEntry{}, shared.ErrNotFound
		}
		return LedgerEntry{}, err
	}
	return e, nil
}

// WeightedAverageRate aggregates one item's rate across warehouses, weighted
// by on-hand quantity. Feeds the item master's derived rate.
func (r *Repository) WeightedAverageRate(ctx context.Context, itemCode string) (float64, error) {
	if r == nil {
		return 0, errors.New("inventory repository not initialised")
	}
	var rate *float64
	err := r.pool.QueryRow(ctx, `SELECT SUM(current_qty*valuation_rate)/NULLIF(SUM(current_qty),0)
FROM stock_balances WHERE item_code=$1 AND current_qty > 0`, itemCode).Scan(&rate)
	if err != nil {
		return 0, err
	}
	if rate == nil {
		return 0, nil
	}
	return *rate, nil
}

// LedgerDrift reports (item, warehouse) pairs whose cached balance no longer
// matches the latest ledger balance_qty. Used by the integrity job.
func (r *Repository) LedgerDrift(ctx context.Context, limit int) ([]Balance, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
SELECT b.item_code, b.warehouse_id, b.current_qty, b.reserved_qty, b.valuation_rate, b.total_value, b.updated_at
FROM stock_balances b
JOIN LATERAL (
    SELECT balance_qty FROM stock_ledger l
    WHERE l.item_code = b.item_code AND l.warehouse_id = b.warehouse_id
    ORDER BY l.posted_at DESC, l.id DESC LIMIT 1
) last ON TRUE
WHERE ABS(last.balance_qty - b.current_qty) > 0.0001
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Balance{}
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ItemCode, &b.WarehouseID, &b.CurrentQty, &b.ReservedQty, &b.ValuationRate, &b.TotalValue, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListItemCodes returns distinct item codes present in stock_balances.
func (r *Repository) ListItemCodes(ctx context.Context) ([]string, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT item_code FROM stock_balances ORDER BY item_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, itemCode string, warehouseID int64) (Balance, error) {
	return scanBalance(r.tx.QueryRow(ctx, `SELECT item_code, warehouse_id, current_qty, reserved_qty, valuation_rate, total_value, updated_at
FROM stock_balances WHERE item_code=$1 AND warehouse_id=$2 FOR UPDATE`, itemCode, warehouseID), itemCode, warehouseID)
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_balances (item_code, warehouse_id, current_qty, reserved_qty, valuation_rate, total_value, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (item_code, warehouse_id) DO UPDATE SET
  current_qty=EXCLUDED.current_qty,
  reserved_qty=EXCLUDED.reserved_qty,
  valuation_rate=EXCLUDED.valuation_rate,
  total_value=EXCLUDED.total_value,
  updated_at=NOW()`,
		balance.ItemCode, balance.WarehouseID, balance.CurrentQty, balance.ReservedQty, balance.ValuationRate, balance.TotalValue)
	return err
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_ledger (item_code, warehouse_id, tx_type, qty_in, qty_out, valuation_rate, balance_qty, transaction_value, ref_doctype, ref_id, remarks, posted_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW()) RETURNING id`,
		entry.ItemCode, entry.WarehouseID, string(entry.Type), entry.QtyIn, entry.QtyOut, entry.ValuationRate, entry.BalanceQty, entry.TransactionValue, entry.RefDoctype, entry.RefID, entry.Remarks, entry.PostedAt, entry.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) LastBalanceQty(ctx context.Context, itemCode string, warehouseID int64) (float64, error) {
	var qty float64
	err := r.tx.QueryRow(ctx, `SELECT balance_qty FROM stock_ledger
WHERE item_code=$1 AND warehouse_id=$2
ORDER BY posted_at DESC, id DESC LIMIT 1`, itemCode, warehouseID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

func (r *txRepository) ListReceipts(ctx context.Context, itemCode string, warehouseID int64) ([]Receipt, error) {
	rows, err := r.tx.Query(ctx, `SELECT qty_in, valuation_rate FROM stock_ledger
WHERE item_code=$1 AND warehouse_id=$2 AND qty_in > 0
ORDER BY posted_at ASC, id ASC`, itemCode, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	receipts := []Receipt{}
	for rows.Next() {
		var rec Receipt
		if err := rows.Scan(&rec.Qty, &rec.Rate); err != nil {
			return nil, err
		}
		receipts = append(receipts, rec)
	}
	return receipts, rows.Err()
}

func (r *txRepository) ConsumedQty(ctx context.Context, itemCode string, warehouseID int64) (float64, error) {
	var consumed float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(qty_out),0) FROM stock_ledger
WHERE item_code=$1 AND warehouse_id=$2`, itemCode, warehouseID).Scan(&consumed)
	return consumed, err
}

func scanBalance(row pgx.Row, itemCode string, warehouseID int64) (Balance, error) {
	var bal Balance
	err := row.Scan(&bal.ItemCode, &bal.WarehouseID, &bal.CurrentQty, &bal.ReservedQty, &bal.ValuationRate, &bal.TotalValue, &bal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{ItemCode: itemCode, WarehouseID: warehouseID}, ErrBalanceNotFound
		}
		return Balance{}, err
	}
	return bal, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
