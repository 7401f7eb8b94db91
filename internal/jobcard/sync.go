package jobcard

import (
	"fmt"
	"strings"
)

// SyncSources bundles the three raw event logs of one job card.
type SyncSources struct {
	TimeLogs   []TimeLog
	Rejections []RejectionEntry
	Challans   []InwardChallan
}

// Empty reports whether no execution events exist at all.
func (s SyncSources) Empty() bool {
	return len(s.TimeLogs) == 0 && len(s.Rejections) == 0 && len(s.Challans) == 0
}

// normalizeShift canonicalizes shift names so "Shift A", " SHIFT a" and "A"
// land on the same key.
func normalizeShift(shift string) string {
	s := strings.ToUpper(strings.TrimSpace(shift))
	s = strings.TrimPrefix(s, "SHIFT ")
	return strings.TrimSpace(s)
}

func shiftKey(day int, shift string) string {
	return fmt.Sprintf("%d|%s", day, normalizeShift(shift))
}

// shiftBucket accumulates the per-shift candidate figures.
type shiftBucket struct {
	logCompleted float64
	logRejected  float64
	logScrap     float64

	// All rejection entries count toward production regardless of review
	// status; only approved ones feed the quality breakdown.
	rejAnyTotal float64
	rejAccepted float64
	rejRejected float64
	rejScrap    float64
}

// Reconcile rebuilds a job card's canonical quantities from its raw event
// logs. Pure and idempotent: same inputs, same totals. stored is returned
// unchanged when every source is empty, protecting manually set legacy data.
//
// Time logs and rejection entries are grouped per (day, shift); within a
// shift the produced figure is the maximum of what the operator logged and
// what quality reviewed, which avoids double counting when both sources
// cover the same shift. Accepted quantity only ever comes from approved
// rejection entries and challans; it is never inferred from produced minus
// rejected.
func Reconcile(stored Totals, src SyncSources) Totals {
	if src.Empty() {
		return stored
	}

	buckets := make(map[string]*shiftBucket)
	bucket := func(day int, shift string) *shiftBucket {
		key := shiftKey(day, shift)
		b, ok := buckets[key]
		if !ok {
			b = &shiftBucket{}
			buckets[key] = b
		}
		return b
	}

	for _, tl := range src.TimeLogs {
		b := bucket(tl.DayNumber, tl.Shift)
		b.logCompleted += tl.CompletedQty
		b.logRejected += tl.RejectedQty
		b.logScrap += tl.ScrapQty
	}
	for _, re := range src.Rejections {
		b := bucket(re.DayNumber, re.Shift)
		b.rejAnyTotal += re.AcceptedQty + re.RejectedQty + re.ScrapQty
		if re.Status == RejectionApproved {
			b.rejAccepted += re.AcceptedQty
			b.rejRejected += re.RejectedQty
			b.rejScrap += re.ScrapQty
		}
	}

	var totals Totals
	for _, b := range buckets {
		totals.Produced += max2(b.logCompleted, b.rejAnyTotal)
		totals.Rejected += max2(b.logRejected, b.rejRejected)
		totals.Scrap += max2(b.logScrap, b.rejScrap)
		totals.Accepted += b.rejAccepted
	}

	for _, ch := range src.Challans {
		received := ch.ReceivedQty
		if received == 0 && ch.AcceptedQty > 0 {
			received = ch.AcceptedQty + ch.RejectedQty
		}
		totals.Produced += received
		totals.Accepted += ch.AcceptedQty
		totals.Rejected += ch.RejectedQty
	}

	return totals
}

// OperatingCost prices the execution: outsourced operations by accepted
// units at the vendor rate, in-house by logged machine hours.
func OperatingCost(card JobCard, totals Totals, logs []TimeLog) float64 {
	if card.Mode == ModeOutsource {
		return totals.Accepted * card.VendorRate
	}
	var minutes float64
	for _, tl := range logs {
		minutes += tl.TimeInMinutes
	}
	return minutes / 60 * card.HourlyRate
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
