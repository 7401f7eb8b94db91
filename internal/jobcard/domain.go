package jobcard

import (
	"strings"
	"time"
)

// Status is a job card's lifecycle state, stored hyphenated lower-case.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusReady             Status = "ready"
	StatusPending           Status = "pending"
	StatusInProgress        Status = "in-progress"
	StatusHold              Status = "hold"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
	StatusSentToVendor      Status = "sent-to-vendor"
	StatusPartiallyReceived Status = "partially-received"
	StatusReceived          Status = "received"
)

// NormalizeStatus maps free-form status strings onto the canonical form.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, " ", "-")
	return Status(s)
}

// Started reports whether execution has begun on this card's operation.
// Draft/ready/pending cards have not produced anything yet.
func (s Status) Started() bool {
	switch s {
	case StatusDraft, StatusReady, StatusPending:
		return false
	}
	return true
}

// ExecutionMode says who runs the operation.
type ExecutionMode string

const (
	// ModeInHouse operations cost by machine time.
	ModeInHouse ExecutionMode = "IN_HOUSE"
	// ModeOutsource operations cost by accepted quantity at the vendor rate.
	ModeOutsource ExecutionMode = "OUTSOURCE"
)

// JobCard is the execution record for one operation of a work order. The
// quantity fields are derived by the synchronizer from raw execution events
// and are never authored directly.
type JobCard struct {
	ID                string
	WorkOrderID       string
	Operation         string
	OperationSequence int
	PlannedQty        float64
	ProducedQty       float64
	AcceptedQty       float64
	RejectedQty       float64
	ScrapQty          float64
	OperatingCost     float64
	Mode              ExecutionMode
	HourlyRate        float64
	VendorRate        float64
	Status            Status
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Totals is the canonical quantity set a reconciliation pass produces.
type Totals struct {
	Produced float64
	Accepted float64
	Rejected float64
	Scrap    float64
}

// Deltas returns the change from prev to t.
func (t Totals) Deltas(prev Totals) Totals {
	return Totals{
		Produced: t.Produced - prev.Produced,
		Accepted: t.Accepted - prev.Accepted,
		Rejected: t.Rejected - prev.Rejected,
		Scrap:    t.Scrap - prev.Scrap,
	}
}

// IsZero reports whether no quantity changed.
func (t Totals) IsZero() bool {
	return t.Produced == 0 && t.Accepted == 0 && t.Rejected == 0 && t.Scrap == 0
}

// TimeLog is one shift's self-reported production record.
type TimeLog struct {
	ID            int64
	JobCardID     string
	DayNumber     int
	Shift         string
	CompletedQty  float64
	RejectedQty   float64
	ScrapQty      float64
	TimeInMinutes float64
	Operator      string
	CreatedAt     time.Time
}

// RejectionStatus is the quality review state of a rejection entry.
type RejectionStatus string

const (
	RejectionPending  RejectionStatus = "Pending"
	RejectionApproved RejectionStatus = "Approved"
	RejectionRejected RejectionStatus = "Rejected"
)

// RejectionEntry is one quality review record for a shift.
type RejectionEntry struct {
	ID          int64
	JobCardID   string
	DayNumber   int
	Shift       string
	AcceptedQty float64
	RejectedQty float64
	ScrapQty    float64
	Status      RejectionStatus
	Reason      string
	CreatedAt   time.Time
}

// InwardChallan records goods received back from a subcontract vendor.
type InwardChallan struct {
	ID          int64
	JobCardID   string
	ChallanNo   string
	ReceivedQty float64
	AcceptedQty float64
	RejectedQty float64
	ReceivedAt  time.Time
	CreatedAt   time.Time
}
