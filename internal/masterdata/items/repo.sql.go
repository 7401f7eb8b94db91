package items

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// Repository persists items in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches one item by code.
func (r *Repository) Get(ctx context.Context, code string) (Item, error) {
	if r == nil {
		return Item{}, errors.New("items repository not initialised")
	}
	var it Item
	var method string
	err := r.pool.QueryRow(ctx, `SELECT item_code, item_name, uom, valuation_method, valuation_rate, is_active, updated_at
FROM items WHERE item_code=$1`, code).
		Scan(&it.Code, &it.Name, &it.UOM, &method, &it.ValuationRate, &it.IsActive, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	it.ValuationMethod, err = ParseValuationMethod(method)
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

// UpdateValuationRate overwrites the cached master rate.
func (r *Repository) UpdateValuationRate(ctx context.Context, code string, rate float64) error {
	if r == nil {
		return errors.New("items repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE items SET valuation_rate=$2, updated_at=NOW() WHERE item_code=$1`, code, rate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns active items, capped for listing screens.
func (r *Repository) List(ctx context.Context, limit int) ([]Item, error) {
	if r == nil {
		return nil, errors.New("items repository not initialised")
	}
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT item_code, item_name, uom, valuation_method, valuation_rate, is_active, updated_at
FROM items WHERE is_active ORDER BY item_code LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Item{}
	for rows.Next() {
		var it Item
		var method string
		if err := rows.Scan(&it.Code, &it.Name, &it.UOM, &method, &it.ValuationRate, &it.IsActive, &it.UpdatedAt); err != nil {
			return nil, err
		}
		if it.ValuationMethod, err = ParseValuationMethod(method); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
