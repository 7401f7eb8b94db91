package inventory

import (
	"errors"
	"time"

	"github.com/codigix/nobal-casting-sub005/internal/masterdata/items"
)

// TransactionType enumerates supported stock movements. Values match the
// ledger rows produced by the manufacturing flow.
type TransactionType string

const (
	// TxPurchaseReceipt books inbound goods from a supplier.
	TxPurchaseReceipt TransactionType = "Purchase Receipt"
	// TxIssue is a plain outbound issue.
	TxIssue TransactionType = "Issue"
	// TxTransfer moves stock between warehouses.
	TxTransfer TransactionType = "Transfer"
	// TxManufacturingIssue consumes raw material against a work order.
	TxManufacturingIssue TransactionType = "Manufacturing Issue"
	// TxManufacturingTransfer moves accepted output into WIP between operations.
	TxManufacturingTransfer TransactionType = "Manufacturing Transfer"
	// TxManufacturingReceipt books accepted output into WIP or finished goods.
	TxManufacturingReceipt TransactionType = "Manufacturing Receipt"
	// TxManufacturingReturn books unused material back from the shop floor.
	TxManufacturingReturn TransactionType = "Manufacturing Return"
	// TxScrapEntry routes rejected or scrapped quantities to a scrap warehouse.
	TxScrapEntry TransactionType = "Scrap Entry"
	// TxAdjustment covers manual corrections.
	TxAdjustment TransactionType = "Adjustment"
)

// Reversal derives the transaction type used to undo an entry. Ledger rows
// are never updated or deleted; corrections append a reversal row.
func (t TransactionType) Reversal() TransactionType {
	return t + " (Reversal)"
}

// LedgerEntry is one immutable row of the stock ledger. BalanceQty is the
// running balance per (item, warehouse) in posting order.
type LedgerEntry struct {
	ID               int64
	ItemCode         string
	WarehouseID      int64
	Type             TransactionType
	QtyIn            float64
	QtyOut           float64
	ValuationRate    float64
	BalanceQty       float64
	TransactionValue float64
	RefDoctype       string
	RefID            string
	Remarks          string
	PostedAt         time.Time
	CreatedBy        string
	CreatedAt        time.Time
}

// Balance is the mutable cached projection per (item, warehouse).
type Balance struct {
	ItemCode      string
	WarehouseID   int64
	CurrentQty    float64
	ReservedQty   float64
	ValuationRate float64
	TotalValue    float64
	UpdatedAt     time.Time
}

// AvailableQty is what allocation may still reserve.
func (b Balance) AvailableQty() float64 {
	return b.CurrentQty - b.ReservedQty
}

// MovementInput describes one stock movement to post.
type MovementInput struct {
	ItemCode    string
	WarehouseID int64
	Type        TransactionType
	QtyIn       float64
	QtyOut      float64
	// Rate, when set, overrides the valuation engine.
	Rate *float64
	// IncomingRate feeds the balance's moving average on receipts.
	IncomingRate float64
	// ReleaseReserved is cleared from reserved_qty in the same transaction.
	ReleaseReserved float64
	RefDoctype      string
	RefID           string
	Remarks         string
	Actor           string
	PostedAt        time.Time
}

// LedgerFilter narrows ledger history queries.
type LedgerFilter struct {
	ItemCode    string
	WarehouseID int64
	From        time.Time
	To          time.Time
	Limit       int
}

// ItemInfo is the slice of item master data the valuation engine needs.
type ItemInfo struct {
	Code          string
	Method        items.ValuationMethod
	ValuationRate float64
}

// ErrInvalidQuantity indicates a movement with no usable quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidRate indicates a negative rate.
var ErrInvalidRate = errors.New("inventory: rate must be >= 0")

// ErrBalanceNotFound indicates missing balance row.
var ErrBalanceNotFound = errors.New("inventory: balance not found")
