package inventory

import (
	"math"

	"github.com/codigix/nobal-casting-sub005/internal/masterdata/items"
)

// Receipt is one inbound ledger row, the batch unit of FIFO/LIFO walks.
type Receipt struct {
	Qty  float64
	Rate float64
}

// OutgoingRateInput carries everything a costing strategy may need. Receipts
// are ordered oldest first; ConsumedBefore is the cumulative qty_out of all
// prior issues for the same (item, warehouse).
type OutgoingRateInput struct {
	Method         items.ValuationMethod
	Receipts       []Receipt
	ConsumedBefore float64
	QtyOut         float64
	BalanceRate    float64
	MasterRate     float64
}

type rateStrategy func(OutgoingRateInput) float64

var rateStrategies = map[items.ValuationMethod]rateStrategy{
	items.ValuationFIFO:          fifoRate,
	items.ValuationLIFO:          lifoRate,
	items.ValuationMovingAverage: movingAverageRate,
}

// OutgoingRate computes the valuation rate for an issue under the item's
// costing policy. Unknown policies fall back to moving average.
func OutgoingRate(in OutgoingRateInput) float64 {
	strategy, ok := rateStrategies[in.Method]
	if !ok {
		strategy = movingAverageRate
	}
	return strategy(in)
}

// IncomingAverage recomputes a balance's moving-average rate after a receipt.
// When the resulting quantity is not positive the old rate is kept. Applied on
// every receipt carrying an incoming rate, regardless of the item's policy, so
// FIFO/LIFO items still expose a current average on their balance.
func IncomingAverage(oldQty, oldRate, inQty, inRate float64) float64 {
	newQty := oldQty + inQty
	if newQty <= 0 {
		return oldRate
	}
	if oldQty < 0 {
		// A negative cached balance would poison the average.
		oldQty = 0
	}
	return (oldQty*oldRate + inQty*inRate) / (oldQty + inQty)
}

func movingAverageRate(in OutgoingRateInput) float64 {
	return fallbackRate(in)
}

func fifoRate(in OutgoingRateInput) float64 {
	return batchRate(in.Receipts, in)
}

func lifoRate(in OutgoingRateInput) float64 {
	reversed := make([]Receipt, len(in.Receipts))
	for i, r := range in.Receipts {
		reversed[len(in.Receipts)-1-i] = r
	}
	return batchRate(reversed, in)
}

// batchRate walks receipt batches in the given order, skips quantity already
// consumed by prior issues, then takes from the remaining batches until the
// issue is satisfied. The result is the quantity-weighted rate over qty out.
func batchRate(receipts []Receipt, in OutgoingRateInput) float64 {
	if in.QtyOut <= 0 {
		return fallbackRate(in)
	}
	if len(receipts) == 0 {
		return in.MasterRate
	}
	skip := in.ConsumedBefore
	need := in.QtyOut
	var value, taken float64
	for _, batch := range receipts {
		avail := batch.Qty
		if skip > 0 {
			if skip >= avail {
				skip -= avail
				continue
			}
			avail -= skip
			skip = 0
		}
		if avail <= 0 {
			continue
		}
		take := math.Min(avail, need)
		value += take * batch.Rate
		taken += take
		need -= take
		if need <= 1e-9 {
			break
		}
	}
	if taken <= 0 {
		return in.MasterRate
	}
	return value / in.QtyOut
}

func fallbackRate(in OutgoingRateInput) float64 {
	if in.BalanceRate > 0 {
		return in.BalanceRate
	}
	return in.MasterRate
}
