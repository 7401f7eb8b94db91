package inventory

import (
	"context"
	"time"
)

// MovementPostedEvent is emitted after a ledger entry commits.
type MovementPostedEvent struct {
	EntryID     int64
	ItemCode    string
	WarehouseID int64
	Type        TransactionType
	QtyIn       float64
	QtyOut      float64
	Rate        float64
	RefDoctype  string
	RefID       string
	PostedAt    time.Time
}

// IntegrationHandler receives movement events. Delivery is best effort; the
// movement is already committed when the handler runs.
type IntegrationHandler interface {
	HandleMovementPosted(ctx context.Context, event MovementPostedEvent) error
}
