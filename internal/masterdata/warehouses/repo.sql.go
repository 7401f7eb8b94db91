package warehouses

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// Repository persists warehouses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanWarehouse(row pgx.Row) (Warehouse, error) {
	var wh Warehouse
	err := row.Scan(&wh.ID, &wh.Code, &wh.Name, &wh.Type, &wh.IsActive, &wh.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, shared.ErrNotFound
		}
		return Warehouse{}, err
	}
	return wh, nil
}

const warehouseColumns = `id, code, name, wh_type, is_active, created_at`

// Get fetches one warehouse by id.
func (r *Repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	if r == nil {
		return Warehouse{}, errors.New("warehouses repository not initialised")
	}
	return scanWarehouse(r.pool.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id=$1`, id))
}

// GetByCode resolves a warehouse code to its record.
func (r *Repository) GetByCode(ctx context.Context, code string) (Warehouse, error) {
	if r == nil {
		return Warehouse{}, errors.New("warehouses repository not initialised")
	}
	return scanWarehouse(r.pool.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE code=$1`, code))
}

// GetDefaultByType returns the first active warehouse of the given role.
func (r *Repository) GetDefaultByType(ctx context.Context, t Type) (Warehouse, error) {
	if r == nil {
		return Warehouse{}, errors.New("warehouses repository not initialised")
	}
	return scanWarehouse(r.pool.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE wh_type=$1 AND is_active ORDER BY id LIMIT 1`, t))
}

// List returns active warehouses.
func (r *Repository) List(ctx context.Context) ([]Warehouse, error) {
	if r == nil {
		return nil, errors.New("warehouses repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Warehouse{}
	for rows.Next() {
		var wh Warehouse
		if err := rows.Scan(&wh.ID, &wh.Code, &wh.Name, &wh.Type, &wh.IsActive, &wh.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}
