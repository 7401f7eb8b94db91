package bom

import "time"

// Component is one material line of a bill of materials, quantities per
// produced unit.
type Component struct {
	ItemCode          string
	QtyPerUnit        float64
	SourceWarehouseID int64
}

// Operation is one routed production step.
type Operation struct {
	Sequence      int
	Name          string
	Workstation   string
	ExecutionMode string
	TimeInMinutes float64
	HourlyRate    float64
	VendorRate    float64
}

// Details is the read-only view the production modules consume.
type Details struct {
	ID         int64
	ItemCode   string
	Components []Component
	Operations []Operation
	CreatedAt  time.Time
}
