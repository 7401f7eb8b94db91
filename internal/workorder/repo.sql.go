package workorder

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codigix/nobal-casting-sub005/internal/platform/db"
	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// Repository persists work orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const workOrderColumns = `id, item_code, bom_id, quantity, status, unit_cost, total_cost, COALESCE(parent_wo_id, ''), COALESCE(sales_order_ref, ''), created_at, updated_at`

func scanWorkOrder(row pgx.Row) (WorkOrder, error) {
	var wo WorkOrder
	err := row.Scan(&wo.ID, &wo.ItemCode, &wo.BOMID, &wo.Quantity, &wo.Status, &wo.UnitCost, &wo.TotalCost, &wo.ParentID, &wo.SalesOrderRef, &wo.CreatedAt, &wo.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WorkOrder{}, shared.ErrNotFound
		}
		return WorkOrder{}, err
	}
	return wo, nil
}

// Insert stores the work order with its exploded items and operations in one
// transaction.
func (r *Repository) Insert(ctx context.Context, wo WorkOrder, items []Item, ops []Operation) error {
	if r == nil {
		return errors.New("workorder repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		parent := any(nil)
		if wo.ParentID != "" {
			parent = wo.ParentID
		}
		salesOrder := any(nil)
		if wo.SalesOrderRef != "" {
			salesOrder = wo.SalesOrderRef
		}
		_, err := tx.Exec(ctx, `INSERT INTO work_orders
(id, item_code, bom_id, quantity, status, unit_cost, total_cost, parent_wo_id, sales_order_ref, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,0,0,$6,$7,NOW(),NOW())`,
			wo.ID, wo.ItemCode, wo.BOMID, wo.Quantity, string(wo.Status), parent, salesOrder)
		if err != nil {
			return err
		}
		for _, it := range items {
			_, err = tx.Exec(ctx, `INSERT INTO work_order_items
(work_order_id, item_code, required_qty, consumed_qty, source_warehouse_id)
VALUES ($1,$2,$3,0,$4)`,
				wo.ID, it.ItemCode, it.RequiredQty, it.SourceWarehouseID)
			if err != nil {
				return err
			}
		}
		for _, op := range ops {
			_, err = tx.Exec(ctx, `INSERT INTO work_order_operations
(work_order_id, sequence, name, workstation, execution_mode, time_in_minutes, hourly_rate, vendor_rate, completed_qty, process_loss_qty)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,0)`,
				wo.ID, op.Sequence, op.Name, op.Workstation, op.ExecutionMode, op.TimeInMinutes, op.HourlyRate, op.VendorRate)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Get fetches one work order.
func (r *Repository) Get(ctx context.Context, id string) (WorkOrder, error) {
	if r == nil {
		return WorkOrder{}, errors.New("workorder repository not initialised")
	}
	return scanWorkOrder(r.pool.QueryRow(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE id=$1`, id))
}

// UpdateStatus stores the derived status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	if r == nil {
		return errors.New("workorder repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE work_orders SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateCosts stores the rolled-up costs.
func (r *Repository) UpdateCosts(ctx context.Context, id string, unitCost, totalCost float64) error {
	if r == nil {
		return errors.New("workorder repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `UPDATE work_orders SET unit_cost=$2, total_cost=$3, updated_at=NOW() WHERE id=$1`, id, unitCost, totalCost)
	return err
}

// ListItems returns the work order's material lines.
func (r *Repository) ListItems(ctx context.Context, workOrderID string) ([]Item, error) {
	if r == nil {
		return nil, errors.New("workorder repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT work_order_id, item_code, required_qty, consumed_qty, source_warehouse_id
FROM work_order_items WHERE work_order_id=$1 ORDER BY item_code`, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.WorkOrderID, &it.ItemCode, &it.RequiredQty, &it.ConsumedQty, &it.SourceWarehouseID); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// AddItemConsumption raises a material line's consumed quantity.
func (r *Repository) AddItemConsumption(ctx context.Context, workOrderID, itemCode string, delta float64) error {
	if r == nil {
		return errors.New("workorder repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE work_order_items SET consumed_qty = consumed_qty + $3
WHERE work_order_id=$1 AND item_code=$2`, workOrderID, itemCode, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListOperations returns the routed steps in sequence order.
func (r *Repository) ListOperations(ctx context.Context, workOrderID string) ([]Operation, error) {
	if r == nil {
		return nil, errors.New("workorder repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT work_order_id, sequence, name, workstation, execution_mode, time_in_minutes, hourly_rate, vendor_rate, completed_qty, process_loss_qty
FROM work_order_operations WHERE work_order_id=$1 ORDER BY sequence`, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Operation{}
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.WorkOrderID, &op.Sequence, &op.Name, &op.Workstation, &op.ExecutionMode, &op.TimeInMinutes, &op.HourlyRate, &op.VendorRate, &op.CompletedQty, &op.ProcessLossQty); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// UpdateOperationProgress stores execution progress on one routed step.
func (r *Repository) UpdateOperationProgress(ctx context.Context, workOrderID string, sequence int, completedQty, processLossQty float64) error {
	if r == nil {
		return errors.New("workorder repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `UPDATE work_order_operations SET completed_qty=$3, process_loss_qty=$4
WHERE work_order_id=$1 AND sequence=$2`, workOrderID, sequence, completedQty, processLossQty)
	return err
}

// HasIncompleteChildren reports whether any sub-assembly work order is still
// not completed.
func (r *Repository) HasIncompleteChildren(ctx context.Context, parentID string) (bool, error) {
	if r == nil {
		return false, errors.New("workorder repository not initialised")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM work_orders
WHERE parent_wo_id=$1 AND status NOT IN ('completed','cancelled'))`, parentID).Scan(&exists)
	return exists, err
}

// ListChildren returns sub-assembly work orders of a parent.
func (r *Repository) ListChildren(ctx context.Context, parentID string) ([]WorkOrder, error) {
	if r == nil {
		return nil, errors.New("workorder repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+workOrderColumns+` FROM work_orders WHERE parent_wo_id=$1 ORDER BY id`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WorkOrder{}
	for rows.Next() {
		var wo WorkOrder
		if err := rows.Scan(&wo.ID, &wo.ItemCode, &wo.BOMID, &wo.Quantity, &wo.Status, &wo.UnitCost, &wo.TotalCost, &wo.ParentID, &wo.SalesOrderRef, &wo.CreatedAt, &wo.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, wo)
	}
	return out, rows.Err()
}
