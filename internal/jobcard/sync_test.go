package jobcard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconcileMaxOfSourcesPerShift(t *testing.T) {
	src := SyncSources{
		TimeLogs: []TimeLog{
			{DayNumber: 1, Shift: "Shift A", CompletedQty: 50, RejectedQty: 2},
		},
		Rejections: []RejectionEntry{
			// Same shift, different spelling of the key.
			{DayNumber: 1, Shift: " SHIFT a ", AcceptedQty: 45, RejectedQty: 3, ScrapQty: 1, Status: RejectionApproved},
		},
	}
	totals := Reconcile(Totals{}, src)

	// max(50, 45+3+1) = 50, not 99: the two sources describe the same shift.
	require.InDelta(t, 50.0, totals.Produced, 0.0001)
	require.InDelta(t, 45.0, totals.Accepted, 0.0001)
	require.InDelta(t, 3.0, totals.Rejected, 0.0001)
	require.InDelta(t, 1.0, totals.Scrap, 0.0001)
}

func TestReconcileSeparateShiftsAdd(t *testing.T) {
	src := SyncSources{
		TimeLogs: []TimeLog{
			{DayNumber: 1, Shift: "A", CompletedQty: 30},
			{DayNumber: 1, Shift: "B", CompletedQty: 20},
			{DayNumber: 2, Shift: "A", CompletedQty: 10},
		},
	}
	totals := Reconcile(Totals{}, src)
	require.InDelta(t, 60.0, totals.Produced, 0.0001)
}

func TestReconcileQualityGate(t *testing.T) {
	pendingEntry := RejectionEntry{DayNumber: 1, Shift: "A", AcceptedQty: 40, RejectedQty: 5, Status: RejectionPending}
	src := SyncSources{Rejections: []RejectionEntry{pendingEntry}}

	totals := Reconcile(Totals{}, src)
	// Production happened even while review is pending.
	require.InDelta(t, 45.0, totals.Produced, 0.0001)
	// But nothing is accepted until quality signs off.
	require.InDelta(t, 0.0, totals.Accepted, 0.0001)
	require.InDelta(t, 0.0, totals.Rejected, 0.0001)

	pendingEntry.Status = RejectionApproved
	totals = Reconcile(Totals{}, SyncSources{Rejections: []RejectionEntry{pendingEntry}})
	require.InDelta(t, 40.0, totals.Accepted, 0.0001)
	require.InDelta(t, 5.0, totals.Rejected, 0.0001)
}

func TestReconcileChallanContribution(t *testing.T) {
	src := SyncSources{
		Challans: []InwardChallan{
			{ReceivedQty: 25, AcceptedQty: 22, RejectedQty: 3},
		},
	}
	totals := Reconcile(Totals{}, src)
	require.InDelta(t, 25.0, totals.Produced, 0.0001)
	require.InDelta(t, 22.0, totals.Accepted, 0.0001)
	require.InDelta(t, 3.0, totals.Rejected, 0.0001)
}

func TestReconcileChallanInfersProduced(t *testing.T) {
	src := SyncSources{
		Challans: []InwardChallan{
			{ReceivedQty: 0, AcceptedQty: 18, RejectedQty: 2},
		},
	}
	totals := Reconcile(Totals{}, src)
	require.InDelta(t, 20.0, totals.Produced, 0.0001)
}

func TestReconcileEmptySourcesKeepStored(t *testing.T) {
	stored := Totals{Produced: 100, Accepted: 90, Rejected: 8, Scrap: 2}
	totals := Reconcile(stored, SyncSources{})
	require.Equal(t, stored, totals)
}

func TestReconcileIsIdempotent(t *testing.T) {
	src := SyncSources{
		TimeLogs:   []TimeLog{{DayNumber: 1, Shift: "A", CompletedQty: 10}},
		Rejections: []RejectionEntry{{DayNumber: 1, Shift: "A", AcceptedQty: 9, RejectedQty: 1, Status: RejectionApproved}},
	}
	first := Reconcile(Totals{}, src)
	second := Reconcile(first, src)
	require.Equal(t, first, second)
}

func TestOperatingCost(t *testing.T) {
	inHouse := JobCard{Mode: ModeInHouse, HourlyRate: 120}
	logs := []TimeLog{{TimeInMinutes: 90}, {TimeInMinutes: 30}}
	require.InDelta(t, 240.0, OperatingCost(inHouse, Totals{}, logs), 0.0001)

	outsourced := JobCard{Mode: ModeOutsource, VendorRate: 15}
	require.InDelta(t, 300.0, OperatingCost(outsourced, Totals{Accepted: 20}, nil), 0.0001)
}

func TestNormalizeShift(t *testing.T) {
	require.Equal(t, "A", normalizeShift("  shift a "))
	require.Equal(t, "A", normalizeShift("A"))
	require.Equal(t, "NIGHT", normalizeShift("Shift Night"))
}
