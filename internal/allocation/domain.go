package allocation

import "time"

// Status tracks an allocation's lifecycle.
type Status string

const (
	// StatusPending means reserved, nothing consumed yet.
	StatusPending Status = "pending"
	// StatusPartial means consumption has started.
	StatusPartial Status = "partial"
	// StatusIssued means the allocated quantity is fully consumed.
	StatusIssued Status = "issued"
	// StatusCompleted means finalize has closed the row.
	StatusCompleted Status = "completed"
)

// open reports whether finalize should still process the row.
func (s Status) open() bool {
	return s == StatusPending || s == StatusPartial || s == StatusIssued
}

// Allocation reserves material for a work order prior to physical
// consumption. One row per (work order, item).
type Allocation struct {
	ID           int64
	WorkOrderID  string
	ItemCode     string
	WarehouseID  int64
	AllocatedQty float64
	ConsumedQty  float64
	WastedQty    float64
	ReturnedQty  float64
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PendingQty is what has not been consumed, wasted or returned yet.
func (a Allocation) PendingQty() float64 {
	return a.AllocatedQty - a.ConsumedQty - a.WastedQty - a.ReturnedQty
}

// Line is one requested allocation.
type Line struct {
	ItemCode          string
	RequiredQty       float64
	SourceWarehouseID int64
}

// Closeout summarises one allocation's finalize outcome.
type Closeout struct {
	ItemCode       string
	WarehouseID    int64
	AllocatedQty   float64
	FinalDeduction float64
	ReturnQty      float64
}
