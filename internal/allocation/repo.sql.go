package allocation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// Repository persists material allocations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const allocationColumns = `id, work_order_id, item_code, warehouse_id, allocated_qty, consumed_qty, wasted_qty, returned_qty, status, created_at, updated_at`

func scanAllocation(row pgx.Row) (Allocation, error) {
	var a Allocation
	err := row.Scan(&a.ID, &a.WorkOrderID, &a.ItemCode, &a.WarehouseID, &a.AllocatedQty, &a.ConsumedQty, &a.WastedQty, &a.ReturnedQty, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Allocation{}, shared.ErrNotFound
		}
		return Allocation{}, err
	}
	return a, nil
}

// Insert stores a fresh allocation row.
func (r *Repository) Insert(ctx context.Context, a Allocation) (Allocation, error) {
	if r == nil {
		return Allocation{}, errors.New("allocation repository not initialised")
	}
	return scanAllocation(r.pool.QueryRow(ctx, `INSERT INTO material_allocations
(work_order_id, item_code, warehouse_id, allocated_qty, consumed_qty, wasted_qty, returned_qty, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,0,0,$5,NOW(),NOW())
RETURNING `+allocationColumns, a.WorkOrderID, a.ItemCode, a.WarehouseID, a.AllocatedQty, string(StatusPending)))
}

// Delete removes an allocation row. Only used to unwind a partially
// applied allocation.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	if r == nil {
		return errors.New("allocation repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM material_allocations WHERE id=$1`, id)
	return err
}

// Get fetches one allocation by work order and item.
func (r *Repository) Get(ctx context.Context, workOrderID, itemCode string) (Allocation, error) {
	if r == nil {
		return Allocation{}, errors.New("allocation repository not initialised")
	}
	return scanAllocation(r.pool.QueryRow(ctx, `SELECT `+allocationColumns+` FROM material_allocations
WHERE work_order_id=$1 AND item_code=$2`, workOrderID, itemCode))
}

// ListByWorkOrder returns all allocations of a work order.
func (r *Repository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]Allocation, error) {
	if r == nil {
		return nil, errors.New("allocation repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+allocationColumns+` FROM material_allocations
WHERE work_order_id=$1 ORDER BY item_code`, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Allocation{}
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.WorkOrderID, &a.ItemCode, &a.WarehouseID, &a.AllocatedQty, &a.ConsumedQty, &a.WastedQty, &a.ReturnedQty, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasAllocations reports whether any allocation exists for the work order.
func (r *Repository) HasAllocations(ctx context.Context, workOrderID string) (bool, error) {
	if r == nil {
		return false, errors.New("allocation repository not initialised")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM material_allocations WHERE work_order_id=$1)`, workOrderID).Scan(&exists)
	return exists, err
}

// AddConsumption raises consumed_qty and moves pending rows to partial.
func (r *Repository) AddConsumption(ctx context.Context, workOrderID, itemCode string, delta float64) (Allocation, error) {
	if r == nil {
		return Allocation{}, errors.New("allocation repository not initialised")
	}
	return scanAllocation(r.pool.QueryRow(ctx, `UPDATE material_allocations SET
consumed_qty = consumed_qty + $3,
status = CASE WHEN consumed_qty + $3 >= allocated_qty THEN 'issued' WHEN status = 'pending' THEN 'partial' ELSE status END,
updated_at = NOW()
WHERE work_order_id=$1 AND item_code=$2 AND status IN ('pending','partial','issued')
RETURNING `+allocationColumns, workOrderID, itemCode, delta))
}

// AddWaste raises wasted_qty.
func (r *Repository) AddWaste(ctx context.Context, workOrderID, itemCode string, delta float64) (Allocation, error) {
	if r == nil {
		return Allocation{}, errors.New("allocation repository not initialised")
	}
	return scanAllocation(r.pool.QueryRow(ctx, `UPDATE material_allocations SET
wasted_qty = wasted_qty + $3,
status = CASE WHEN status = 'pending' THEN 'partial' ELSE status END,
updated_at = NOW()
WHERE work_order_id=$1 AND item_code=$2 AND status IN ('pending','partial','issued')
RETURNING `+allocationColumns, workOrderID, itemCode, delta))
}

// Close marks an allocation completed with its final returned quantity.
func (r *Repository) Close(ctx context.Context, id int64, returnedQty float64) error {
	if r == nil {
		return errors.New("allocation repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE material_allocations SET
returned_qty=$2, status='completed', updated_at=NOW()
WHERE id=$1 AND status IN ('pending','partial','issued')`, id, returnedQty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
