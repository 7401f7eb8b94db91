package items

import (
	"fmt"
	"strings"
	"time"
)

// ValuationMethod selects the costing policy applied to outgoing stock.
type ValuationMethod string

const (
	// ValuationFIFO consumes receipt batches oldest first.
	ValuationFIFO ValuationMethod = "FIFO"
	// ValuationLIFO consumes receipt batches newest first.
	ValuationLIFO ValuationMethod = "LIFO"
	// ValuationMovingAverage uses the balance's running weighted rate.
	ValuationMovingAverage ValuationMethod = "MOVING_AVERAGE"
)

// ParseValuationMethod normalizes stored policy strings.
func ParseValuationMethod(raw string) (ValuationMethod, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")) {
	case "FIFO":
		return ValuationFIFO, nil
	case "LIFO":
		return ValuationLIFO, nil
	case "MOVING_AVERAGE", "MOVINGAVERAGE", "":
		return ValuationMovingAverage, nil
	}
	return "", fmt.Errorf("items: unknown valuation method %q", raw)
}

// Item is master data for a stock-keeping unit. ValuationRate is a derived
// convenience figure (weighted average across warehouses), not the source of
// truth for costing.
type Item struct {
	Code            string
	Name            string
	UOM             string
	ValuationMethod ValuationMethod
	ValuationRate   float64
	IsActive        bool
	UpdatedAt       time.Time
}
