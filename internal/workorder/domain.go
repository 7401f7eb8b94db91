package workorder

import "time"

// Status is a work order's lifecycle state. The in-progress and completed
// values are derived from job card states and never set by callers.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// WorkOrder is one production run of an item against a BOM.
type WorkOrder struct {
	ID        string
	ItemCode  string
	BOMID     int64
	Quantity  float64
	Status    Status
	UnitCost  float64
	TotalCost float64
	ParentID  string
	// SalesOrderRef links back to the sales order this run fulfils, if any.
	SalesOrderRef string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is one required material line, exploded from the BOM at creation.
// ConsumedQty accumulates through backflush and feeds the cost roll-up.
type Item struct {
	WorkOrderID       string
	ItemCode          string
	RequiredQty       float64
	ConsumedQty       float64
	SourceWarehouseID int64
}

// Operation mirrors one routed BOM step with execution progress.
type Operation struct {
	WorkOrderID    string
	Sequence       int
	Name           string
	Workstation    string
	ExecutionMode  string
	TimeInMinutes  float64
	HourlyRate     float64
	VendorRate     float64
	CompletedQty   float64
	ProcessLossQty float64
}
