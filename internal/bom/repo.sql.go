package bom

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// Repository reads bills of materials from PostgreSQL. The core never writes
// BOMs; authoring lives elsewhere.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetDetails loads one BOM with components and operations.
func (r *Repository) GetDetails(ctx context.Context, id int64) (Details, error) {
	if r == nil {
		return Details{}, errors.New("bom repository not initialised")
	}
	var d Details
	err := r.pool.QueryRow(ctx, `SELECT id, item_code, created_at FROM boms WHERE id=$1`, id).
		Scan(&d.ID, &d.ItemCode, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Details{}, shared.ErrNotFound
		}
		return Details{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT item_code, qty_per_unit, source_warehouse_id
FROM bom_components WHERE bom_id=$1 ORDER BY item_code`, id)
	if err != nil {
		return Details{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c Component
		if err := rows.Scan(&c.ItemCode, &c.QtyPerUnit, &c.SourceWarehouseID); err != nil {
			return Details{}, err
		}
		d.Components = append(d.Components, c)
	}
	if err := rows.Err(); err != nil {
		return Details{}, err
	}

	opRows, err := r.pool.Query(ctx, `SELECT sequence, name, workstation, execution_mode, time_in_minutes, hourly_rate, vendor_rate
FROM bom_operations WHERE bom_id=$1 ORDER BY sequence`, id)
	if err != nil {
		return Details{}, err
	}
	defer opRows.Close()
	for opRows.Next() {
		var op Operation
		if err := opRows.Scan(&op.Sequence, &op.Name, &op.Workstation, &op.ExecutionMode, &op.TimeInMinutes, &op.HourlyRate, &op.VendorRate); err != nil {
			return Details{}, err
		}
		d.Operations = append(d.Operations, op)
	}
	return d, opRows.Err()
}
