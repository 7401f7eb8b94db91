package jobcard

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// Repository persists job cards and their raw execution events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const cardColumns = `id, work_order_id, operation, operation_sequence, planned_qty, produced_qty, accepted_qty, rejected_qty, scrap_qty, operating_cost, execution_mode, hourly_rate, vendor_rate, status, created_at, updated_at`

func scanCard(row pgx.Row) (JobCard, error) {
	var c JobCard
	err := row.Scan(&c.ID, &c.WorkOrderID, &c.Operation, &c.OperationSequence, &c.PlannedQty, &c.ProducedQty, &c.AcceptedQty, &c.RejectedQty, &c.ScrapQty, &c.OperatingCost, &c.Mode, &c.HourlyRate, &c.VendorRate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JobCard{}, shared.ErrNotFound
		}
		return JobCard{}, err
	}
	return c, nil
}

// Get fetches one job card.
func (r *Repository) Get(ctx context.Context, id string) (JobCard, error) {
	if r == nil {
		return JobCard{}, errors.New("jobcard repository not initialised")
	}
	return scanCard(r.pool.QueryRow(ctx, `SELECT `+cardColumns+` FROM job_cards WHERE id=$1`, id))
}

// ListByWorkOrder returns a work order's cards in operation order.
func (r *Repository) ListByWorkOrder(ctx context.Context, workOrderID string) ([]JobCard, error) {
	if r == nil {
		return nil, errors.New("jobcard repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+cardColumns+` FROM job_cards WHERE work_order_id=$1 ORDER BY operation_sequence`, workOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []JobCard{}
	for rows.Next() {
		var c JobCard
		if err := rows.Scan(&c.ID, &c.WorkOrderID, &c.Operation, &c.OperationSequence, &c.PlannedQty, &c.ProducedQty, &c.AcceptedQty, &c.RejectedQty, &c.ScrapQty, &c.OperatingCost, &c.Mode, &c.HourlyRate, &c.VendorRate, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertCards stores the cards materialized for a work order.
func (r *Repository) InsertCards(ctx context.Context, cards []JobCard) error {
	if r == nil {
		return errors.New("jobcard repository not initialised")
	}
	for _, c := range cards {
		if _, err := r.pool.Exec(ctx, `INSERT INTO job_cards
(id, work_order_id, operation, operation_sequence, planned_qty, produced_qty, accepted_qty, rejected_qty, scrap_qty, operating_cost, execution_mode, hourly_rate, vendor_rate, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,0,0,0,0,0,$6,$7,$8,$9,NOW(),NOW())`,
			c.ID, c.WorkOrderID, c.Operation, c.OperationSequence, c.PlannedQty, string(c.Mode), c.HourlyRate, c.VendorRate, string(c.Status)); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTotals persists the synchronizer's canonical quantities and cost.
func (r *Repository) UpdateTotals(ctx context.Context, id string, totals Totals, operatingCost float64) error {
	if r == nil {
		return errors.New("jobcard repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE job_cards SET
produced_qty=$2, accepted_qty=$3, rejected_qty=$4, scrap_qty=$5, operating_cost=$6, updated_at=NOW()
WHERE id=$1`, id, totals.Produced, totals.Accepted, totals.Rejected, totals.Scrap, operatingCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateStatus stores a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	if r == nil {
		return errors.New("jobcard repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE job_cards SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// PromoteToReady hands a draft card the upstream accepted quantity as its
// plan. A no-op for cards past draft.
func (r *Repository) PromoteToReady(ctx context.Context, id string, plannedQty float64) error {
	if r == nil {
		return errors.New("jobcard repository not initialised")
	}
	_, err := r.pool.Exec(ctx, `UPDATE job_cards SET status=$2, planned_qty=$3, updated_at=NOW()
WHERE id=$1 AND status=$4`, id, string(StatusReady), plannedQty, string(StatusDraft))
	return err
}

// InsertTimeLog appends one time log.
func (r *Repository) InsertTimeLog(ctx context.Context, tl TimeLog) (TimeLog, error) {
	if r == nil {
		return TimeLog{}, errors.New("jobcard repository not initialised")
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO job_card_time_logs
(job_card_id, day_number, shift, completed_qty, rejected_qty, scrap_qty, time_in_minutes, operator, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id, created_at`,
		tl.JobCardID, tl.DayNumber, tl.Shift, tl.CompletedQty, tl.RejectedQty, tl.ScrapQty, tl.TimeInMinutes, tl.Operator).
		Scan(&tl.ID, &tl.CreatedAt)
	return tl, err
}

// InsertRejection appends one quality review entry.
func (r *Repository) InsertRejection(ctx context.Context, re RejectionEntry) (RejectionEntry, error) {
	if r == nil {
		return RejectionEntry{}, errors.New("jobcard repository not initialised")
	}
	if re.Status == "" {
		re.Status = RejectionPending
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO job_card_rejections
(job_card_id, day_number, shift, accepted_qty, rejected_qty, scrap_qty, status, reason, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id, created_at`,
		re.JobCardID, re.DayNumber, re.Shift, re.AcceptedQty, re.RejectedQty, re.ScrapQty, string(re.Status), re.Reason).
		Scan(&re.ID, &re.CreatedAt)
	return re, err
}

// InsertChallan appends one inward challan.
func (r *Repository) InsertChallan(ctx context.Context, ch InwardChallan) (InwardChallan, error) {
	if r == nil {
		return InwardChallan{}, errors.New("jobcard repository not initialised")
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO job_card_challans
(job_card_id, challan_no, received_qty, accepted_qty, rejected_qty, received_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id, created_at`,
		ch.JobCardID, ch.ChallanNo, ch.ReceivedQty, ch.AcceptedQty, ch.RejectedQty, ch.ReceivedAt).
		Scan(&ch.ID, &ch.CreatedAt)
	return ch, err
}

// Sources loads every raw event of one job card.
func (r *Repository) Sources(ctx context.Context, jobCardID string) (SyncSources, error) {
	if r == nil {
		return SyncSources{}, errors.New("jobcard repository not initialised")
	}
	var src SyncSources

	rows, err := r.pool.Query(ctx, `SELECT id, job_card_id, day_number, shift, completed_qty, rejected_qty, scrap_qty, time_in_minutes, operator, created_at
FROM job_card_time_logs WHERE job_card_id=$1 ORDER BY id`, jobCardID)
	if err != nil {
		return SyncSources{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var tl TimeLog
		if err := rows.Scan(&tl.ID, &tl.JobCardID, &tl.DayNumber, &tl.Shift, &tl.CompletedQty, &tl.RejectedQty, &tl.ScrapQty, &tl.TimeInMinutes, &tl.Operator, &tl.CreatedAt); err != nil {
			return SyncSources{}, err
		}
		src.TimeLogs = append(src.TimeLogs, tl)
	}
	if err := rows.Err(); err != nil {
		return SyncSources{}, err
	}

	reRows, err := r.pool.Query(ctx, `SELECT id, job_card_id, day_number, shift, accepted_qty, rejected_qty, scrap_qty, status, reason, created_at
FROM job_card_rejections WHERE job_card_id=$1 ORDER BY id`, jobCardID)
	if err != nil {
		return SyncSources{}, err
	}
	defer reRows.Close()
	for reRows.Next() {
		var re RejectionEntry
		if err := reRows.Scan(&re.ID, &re.JobCardID, &re.DayNumber, &re.Shift, &re.AcceptedQty, &re.RejectedQty, &re.ScrapQty, &re.Status, &re.Reason, &re.CreatedAt); err != nil {
			return SyncSources{}, err
		}
		src.Rejections = append(src.Rejections, re)
	}
	if err := reRows.Err(); err != nil {
		return SyncSources{}, err
	}

	chRows, err := r.pool.Query(ctx, `SELECT id, job_card_id, challan_no, received_qty, accepted_qty, rejected_qty, received_at, created_at
FROM job_card_challans WHERE job_card_id=$1 ORDER BY id`, jobCardID)
	if err != nil {
		return SyncSources{}, err
	}
	defer chRows.Close()
	for chRows.Next() {
		var ch InwardChallan
		if err := chRows.Scan(&ch.ID, &ch.JobCardID, &ch.ChallanNo, &ch.ReceivedQty, &ch.AcceptedQty, &ch.RejectedQty, &ch.ReceivedAt, &ch.CreatedAt); err != nil {
			return SyncSources{}, err
		}
		src.Challans = append(src.Challans, ch)
	}
	return src, chRows.Err()
}

// GetRejection fetches one rejection entry of a card.
func (r *Repository) GetRejection(ctx context.Context, jobCardID string, id int64) (RejectionEntry, error) {
	if r == nil {
		return RejectionEntry{}, errors.New("jobcard repository not initialised")
	}
	var re RejectionEntry
	err := r.pool.QueryRow(ctx, `SELECT id, job_card_id, day_number, shift, accepted_qty, rejected_qty, scrap_qty, status, reason, created_at
FROM job_card_rejections WHERE job_card_id=$1 AND id=$2`, jobCardID, id).
		Scan(&re.ID, &re.JobCardID, &re.DayNumber, &re.Shift, &re.AcceptedQty, &re.RejectedQty, &re.ScrapQty, &re.Status, &re.Reason, &re.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RejectionEntry{}, shared.ErrNotFound
		}
		return RejectionEntry{}, err
	}
	return re, nil
}

// SetRejectionStatus stores the review outcome.
func (r *Repository) SetRejectionStatus(ctx context.Context, id int64, status RejectionStatus) error {
	if r == nil {
		return errors.New("jobcard repository not initialised")
	}
	tag, err := r.pool.Exec(ctx, `UPDATE job_card_rejections SET status=$2 WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
