package warehouses

import "time"

// Type classifies a warehouse's role in the production flow.
type Type string

const (
	// TypeStore holds raw material.
	TypeStore Type = "STORE"
	// TypeWIP holds partially completed goods between operations.
	TypeWIP Type = "WIP"
	// TypeFG holds finished goods.
	TypeFG Type = "FG"
	// TypeScrap receives rejected and scrapped quantities.
	TypeScrap Type = "SCRAP"
	// TypeSubcontract tracks stock sitting at vendor premises.
	TypeSubcontract Type = "SUBCONTRACT"
)

// Warehouse is immutable reference data for the stock modules.
type Warehouse struct {
	ID        int64
	Code      string
	Name      string
	Type      Type
	IsActive  bool
	CreatedAt time.Time
}
