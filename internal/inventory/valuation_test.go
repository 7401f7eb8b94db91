package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codigix/nobal-casting-sub005/internal/masterdata/items"
)

func TestFIFORate(t *testing.T) {
	in := OutgoingRateInput{
		Method:   items.ValuationFIFO,
		Receipts: []Receipt{{Qty: 10, Rate: 5}, {Qty: 10, Rate: 7}},
		QtyOut:   15,
	}
	// (10*5 + 5*7) / 15
	require.InDelta(t, 5.6667, OutgoingRate(in), 0.001)
}

func TestFIFORateSkipsConsumedBatches(t *testing.T) {
	in := OutgoingRateInput{
		Method:         items.ValuationFIFO,
		Receipts:       []Receipt{{Qty: 10, Rate: 5}, {Qty: 10, Rate: 7}},
		ConsumedBefore: 10,
		QtyOut:         5,
	}
	// First batch fully consumed by prior issues.
	require.InDelta(t, 7.0, OutgoingRate(in), 0.001)
}

func TestLIFORate(t *testing.T) {
	in := OutgoingRateInput{
		Method:   items.ValuationLIFO,
		Receipts: []Receipt{{Qty: 10, Rate: 5}, {Qty: 10, Rate: 7}},
		QtyOut:   15,
	}
	// (10*7 + 5*5) / 15
	require.InDelta(t, 6.3333, OutgoingRate(in), 0.001)
}

func TestMovingAverageUsesBalanceRate(t *testing.T) {
	in := OutgoingRateInput{
		Method:      items.ValuationMovingAverage,
		Receipts:    []Receipt{{Qty: 10, Rate: 5}},
		QtyOut:      4,
		BalanceRate: 6,
		MasterRate:  9,
	}
	require.InDelta(t, 6.0, OutgoingRate(in), 0.001)
}

func TestOutgoingRateFallsBackToMasterRate(t *testing.T) {
	in := OutgoingRateInput{
		Method:     items.ValuationFIFO,
		QtyOut:     3,
		MasterRate: 12.5,
	}
	require.InDelta(t, 12.5, OutgoingRate(in), 0.001)

	in.Method = items.ValuationMovingAverage
	require.InDelta(t, 12.5, OutgoingRate(in), 0.001)
}

func TestZeroQtyOutUsesCachedRate(t *testing.T) {
	in := OutgoingRateInput{
		Method:      items.ValuationFIFO,
		Receipts:    []Receipt{{Qty: 10, Rate: 5}},
		BalanceRate: 4.5,
	}
	require.InDelta(t, 4.5, OutgoingRate(in), 0.001)
}

func TestIncomingAverage(t *testing.T) {
	// Receipt of 10@5 into an empty balance.
	require.InDelta(t, 5.0, IncomingAverage(0, 0, 10, 5), 0.001)
	// Then 10@7: (10*5 + 10*7) / 20.
	require.InDelta(t, 6.0, IncomingAverage(10, 5, 10, 7), 0.001)
	// A receipt that does not bring the balance positive keeps the old rate.
	require.InDelta(t, 5.0, IncomingAverage(-12, 5, 10, 7), 0.001)
}
