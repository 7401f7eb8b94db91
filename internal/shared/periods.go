package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PeriodStatusOpen is the only status postings are allowed into. Closed and
// locked periods both reject with ErrPeriodClosed.
const PeriodStatusOpen = "OPEN"

// PeriodGuard answers whether a posting date falls inside an open period.
// Every stock mutation checks it before touching the ledger.
type PeriodGuard struct {
	pool *pgxpool.Pool
}

// NewPeriodGuard returns a guard backed by accounting_periods.
func NewPeriodGuard(pool *pgxpool.Pool) *PeriodGuard {
	return &PeriodGuard{pool: pool}
}

// EnsureOpen returns ErrPeriodClosed when the period covering at is closed or
// locked. Dates with no period row are treated as open.
func (g *PeriodGuard) EnsureOpen(ctx context.Context, at time.Time) error {
	if g == nil {
		return nil
	}
	var status string
	err := g.pool.QueryRow(ctx, `
		SELECT status FROM accounting_periods
		WHERE $1::date BETWEEN start_date AND end_date
		ORDER BY start_date DESC
		LIMIT 1`, at).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("shared: period lookup: %w", err)
	}
	if status != PeriodStatusOpen {
		return fmt.Errorf("%w: period status %s", ErrPeriodClosed, status)
	}
	return nil
}
