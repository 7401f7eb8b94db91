package jobcard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// quantityTolerance is the slack on the produced-quantity ceiling, roughly
// one part in a thousand to absorb rounding in shop-floor figures.
const quantityTolerance = 0.001

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (JobCard, error)
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]JobCard, error)
	InsertCards(ctx context.Context, cards []JobCard) error
	UpdateTotals(ctx context.Context, id string, totals Totals, operatingCost float64) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	PromoteToReady(ctx context.Context, id string, plannedQty float64) error
	InsertTimeLog(ctx context.Context, tl TimeLog) (TimeLog, error)
	InsertRejection(ctx context.Context, re RejectionEntry) (RejectionEntry, error)
	InsertChallan(ctx context.Context, ch InwardChallan) (InwardChallan, error)
	Sources(ctx context.Context, jobCardID string) (SyncSources, error)
	GetRejection(ctx context.Context, jobCardID string, id int64) (RejectionEntry, error)
	SetRejectionStatus(ctx context.Context, id int64, status RejectionStatus) error
}

// Dispatcher turns quantity deltas into stock movements.
type Dispatcher interface {
	ApplyDeltas(ctx context.Context, card JobCard, deltas Totals) error
}

// ProgressPort propagates execution results into the owning work order.
type ProgressPort interface {
	// SyncProgress updates the matching operation's completed and process
	// loss figures and re-derives the work order status and costs.
	SyncProgress(ctx context.Context, workOrderID string, sequence int, totals Totals) error
	// Refresh re-derives the work order status after a card status change.
	Refresh(ctx context.Context, workOrderID string) error
}

// AllocationPort answers the mandatory-allocation precondition.
type AllocationPort interface {
	HasAllocations(ctx context.Context, workOrderID string) (bool, error)
}

// WorkOrderPort answers the sub-assembly precondition.
type WorkOrderPort interface {
	SubAssembliesCompleted(ctx context.Context, workOrderID string) (bool, error)
}

// NotifyPort delivers fire-and-forget events.
type NotifyPort interface {
	Publish(ctx context.Context, event string, payload map[string]any) error
}

// Service reconciles execution events into canonical job card quantities and
// drives the status state machine.
type Service struct {
	repo        RepositoryPort
	dispatcher  Dispatcher
	progress    ProgressPort
	allocations AllocationPort
	workOrders  WorkOrderPort
	notify      NotifyPort
	logger      *slog.Logger
}

// ServiceDeps groups service collaborators.
type ServiceDeps struct {
	Repo        RepositoryPort
	Dispatcher  Dispatcher
	Progress    ProgressPort
	Allocations AllocationPort
	WorkOrders  WorkOrderPort
	Notify      NotifyPort
	Logger      *slog.Logger
}

// NewService builds Service.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        deps.Repo,
		dispatcher:  deps.Dispatcher,
		progress:    deps.Progress,
		allocations: deps.Allocations,
		workOrders:  deps.WorkOrders,
		notify:      deps.Notify,
		logger:      logger,
	}
}

// SetDispatcher wires the dispatcher after construction. Needed because the
// work order service and this one reference each other through ports.
func (s *Service) SetDispatcher(d Dispatcher) { s.dispatcher = d }

// SetProgress wires the progress port after construction.
func (s *Service) SetProgress(p ProgressPort) { s.progress = p }

// SetWorkOrders wires the work order port after construction.
func (s *Service) SetWorkOrders(w WorkOrderPort) { s.workOrders = w }

// Get returns one job card.
func (s *Service) Get(ctx context.Context, id string) (JobCard, error) {
	return s.repo.Get(ctx, id)
}

// ListByWorkOrder returns a work order's cards in operation order.
func (s *Service) ListByWorkOrder(ctx context.Context, workOrderID string) ([]JobCard, error) {
	return s.repo.ListByWorkOrder(ctx, workOrderID)
}

// CreateCards materializes the cards for a freshly created work order.
func (s *Service) CreateCards(ctx context.Context, cards []JobCard) error {
	return s.repo.InsertCards(ctx, cards)
}

// RecordTimeLog validates the ceiling, appends the log and resynchronizes
// the card.
func (s *Service) RecordTimeLog(ctx context.Context, jobCardID string, tl TimeLog) (Totals, error) {
	if tl.CompletedQty < 0 || tl.RejectedQty < 0 || tl.ScrapQty < 0 || tl.TimeInMinutes < 0 {
		return Totals{}, errors.New("jobcard: time log quantities must be non-negative")
	}
	card, err := s.repo.Get(ctx, jobCardID)
	if err != nil {
		return Totals{}, err
	}
	tl.JobCardID = card.ID
	src, err := s.repo.Sources(ctx, card.ID)
	if err != nil {
		return Totals{}, err
	}
	candidate := src
	candidate.TimeLogs = append(append([]TimeLog{}, src.TimeLogs...), tl)
	if err := s.checkCeiling(ctx, card, candidate); err != nil {
		return Totals{}, err
	}
	if _, err := s.repo.InsertTimeLog(ctx, tl); err != nil {
		return Totals{}, err
	}
	return s.resync(ctx, card, candidate)
}

// RecordRejection appends a quality review entry and resynchronizes. The
// entry counts toward production immediately but only feeds the quality
// breakdown once approved.
func (s *Service) RecordRejection(ctx context.Context, jobCardID string, re RejectionEntry) (Totals, error) {
	if re.AcceptedQty < 0 || re.RejectedQty < 0 || re.ScrapQty < 0 {
		return Totals{}, errors.New("jobcard: rejection quantities must be non-negative")
	}
	card, err := s.repo.Get(ctx, jobCardID)
	if err != nil {
		return Totals{}, err
	}
	re.JobCardID = card.ID
	if re.Status == "" {
		re.Status = RejectionPending
	}
	src, err := s.repo.Sources(ctx, card.ID)
	if err != nil {
		return Totals{}, err
	}
	candidate := src
	candidate.Rejections = append(append([]RejectionEntry{}, src.Rejections...), re)
	if err := s.checkCeiling(ctx, card, candidate); err != nil {
		return Totals{}, err
	}
	if _, err := s.repo.InsertRejection(ctx, re); err != nil {
		return Totals{}, err
	}
	return s.resync(ctx, card, candidate)
}

// RecordChallan appends a subcontract inward challan and resynchronizes.
func (s *Service) RecordChallan(ctx context.Context, jobCardID string, ch InwardChallan) (Totals, error) {
	if ch.ReceivedQty < 0 || ch.AcceptedQty < 0 || ch.RejectedQty < 0 {
		return Totals{}, errors.New("jobcard: challan quantities must be non-negative")
	}
	card, err := s.repo.Get(ctx, jobCardID)
	if err != nil {
		return Totals{}, err
	}
	ch.JobCardID = card.ID
	src, err := s.repo.Sources(ctx, card.ID)
	if err != nil {
		return Totals{}, err
	}
	candidate := src
	candidate.Challans = append(append([]InwardChallan{}, src.Challans...), ch)
	if err := s.checkCeiling(ctx, card, candidate); err != nil {
		return Totals{}, err
	}
	if _, err := s.repo.InsertChallan(ctx, ch); err != nil {
		return Totals{}, err
	}
	totals, err := s.resync(ctx, card, candidate)
	if err != nil {
		return Totals{}, err
	}
	// A challan implies goods came back from the vendor; advance the card.
	if card.Status == StatusSentToVendor || card.Status == StatusPartiallyReceived {
		next := StatusPartiallyReceived
		if totals.Produced >= card.PlannedQty {
			next = StatusReceived
		}
		if next != card.Status {
			if err := s.repo.UpdateStatus(ctx, card.ID, next); err != nil {
				s.logger.Warn("challan status advance failed", slog.String("job_card", card.ID), slog.Any("error", err))
			}
		}
	}
	return totals, nil
}

// ApproveRejection flips a pending entry to approved and resynchronizes,
// which releases that entry's accepted quantity downstream.
func (s *Service) ApproveRejection(ctx context.Context, jobCardID string, rejectionID int64) (Totals, error) {
	card, err := s.repo.Get(ctx, jobCardID)
	if err != nil {
		return Totals{}, err
	}
	re, err := s.repo.GetRejection(ctx, card.ID, rejectionID)
	if err != nil {
		return Totals{}, err
	}
	if re.Status == RejectionApproved {
		return storedTotals(card), nil
	}
	if err := s.repo.SetRejectionStatus(ctx, rejectionID, RejectionApproved); err != nil {
		return Totals{}, err
	}
	src, err := s.repo.Sources(ctx, card.ID)
	if err != nil {
		return Totals{}, err
	}
	return s.resync(ctx, card, src)
}

// Resync recomputes a card from its stored events, without adding any.
// Exposed for repair tooling and the consistency job.
func (s *Service) Resync(ctx context.Context, jobCardID string) (Totals, error) {
	card, err := s.repo.Get(ctx, jobCardID)
	if err != nil {
		return Totals{}, err
	}
	src, err := s.repo.Sources(ctx, card.ID)
	if err != nil {
		return Totals{}, err
	}
	return s.resync(ctx, card, src)
}

// Transition applies the state machine plus its data preconditions.
func (s *Service) Transition(ctx context.Context, jobCardID string, to Status) (Status, error) {
	card, err := s.repo.Get(ctx, jobCardID)
	if err != nil {
		return "", err
	}
	if err := ValidateTransition(card.Status, to); err != nil {
		return "", err
	}
	if to == card.Status {
		return card.Status, nil
	}
	if to == StatusInProgress {
		if err := s.checkStartPreconditions(ctx, card); err != nil {
			return "", err
		}
	}
	if err := s.repo.UpdateStatus(ctx, card.ID, to); err != nil {
		return "", err
	}
	if s.progress != nil {
		if err := s.progress.Refresh(ctx, card.WorkOrderID); err != nil {
			s.logger.Warn("work order refresh failed", slog.String("work_order", card.WorkOrderID), slog.Any("error", err))
		}
	}
	s.publish(ctx, "job_card.status_changed", map[string]any{
		"job_card_id": card.ID,
		"from":        string(card.Status),
		"to":          string(to),
	})
	return to, nil
}

// adjacentCard finds the card one position before (step -1) or after
// (step +1) the given one in sequence order. Sequences may be gapped, so
// position in the sorted list decides, never sequence arithmetic.
func (s *Service) adjacentCard(ctx context.Context, card JobCard, step int) (JobCard, error) {
	cards, err := s.repo.ListByWorkOrder(ctx, card.WorkOrderID)
	if err != nil {
		return JobCard{}, err
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].OperationSequence < cards[j].OperationSequence })
	for i, c := range cards {
		if c.ID == card.ID {
			j := i + step
			if j < 0 || j >= len(cards) {
				return JobCard{}, shared.ErrNotFound
			}
			return cards[j], nil
		}
	}
	return JobCard{}, shared.ErrNotFound
}

// checkStartPreconditions gates the move to in-progress: the upstream
// operation must be done, and the first operation additionally needs all
// sub-assemblies completed and materials allocated.
func (s *Service) checkStartPreconditions(ctx context.Context, card JobCard) error {
	prev, err := s.adjacentCard(ctx, card, -1)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if err == nil {
		if prev.Status != StatusCompleted {
			return &StateTransitionError{
				From:   card.Status,
				To:     StatusInProgress,
				Reason: fmt.Sprintf("operation %d (%s) is not completed", prev.OperationSequence, prev.Operation),
			}
		}
		return nil
	}
	if s.workOrders != nil {
		done, err := s.workOrders.SubAssembliesCompleted(ctx, card.WorkOrderID)
		if err != nil {
			return err
		}
		if !done {
			return &StateTransitionError{
				From:   card.Status,
				To:     StatusInProgress,
				Reason: "sub-assembly work orders are not completed",
			}
		}
	}
	if s.allocations != nil {
		has, err := s.allocations.HasAllocations(ctx, card.WorkOrderID)
		if err != nil {
			return err
		}
		if !has {
			return &StateTransitionError{
				From:   card.Status,
				To:     StatusInProgress,
				Reason: "materials are not allocated",
			}
		}
	}
	return nil
}

// checkCeiling refuses events that would push produced quantity past the
// upstream-derived maximum. An upstream that started but accepted nothing
// yet is a zero ceiling, not an unbounded one.
func (s *Service) checkCeiling(ctx context.Context, card JobCard, candidate SyncSources) error {
	maxAllowed := card.PlannedQty
	bounded := maxAllowed > 0
	prev, err := s.adjacentCard(ctx, card, -1)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if err == nil && prev.Status.Started() {
		maxAllowed = prev.AcceptedQty
		bounded = true
	}
	if !bounded {
		return nil
	}
	produced := Reconcile(storedTotals(card), candidate).Produced
	if produced > maxAllowed*(1+quantityTolerance) {
		return fmt.Errorf("%w: total produced %.4f exceeds allowed %.4f", shared.ErrQuantityExceeded, produced, maxAllowed)
	}
	return nil
}

// resync dispatches the reconciled deltas, persists the totals and
// propagates downstream.
func (s *Service) resync(ctx context.Context, card JobCard, src SyncSources) (Totals, error) {
	stored := storedTotals(card)
	totals := Reconcile(stored, src)
	cost := OperatingCost(card, totals, src.TimeLogs)

	// Movements go out before the totals are stored. A failed dispatch
	// leaves the stored figures untouched, so the next resync recomputes
	// the same deltas instead of losing the movement forever.
	deltas := totals.Deltas(stored)
	if !deltas.IsZero() && s.dispatcher != nil {
		if err := s.dispatcher.ApplyDeltas(ctx, card, deltas); err != nil {
			return Totals{}, err
		}
	}
	if err := s.repo.UpdateTotals(ctx, card.ID, totals, cost); err != nil {
		return Totals{}, err
	}

	// Sequencing handoff: accepted output becomes the next operation's plan.
	if totals.Accepted > 0 {
		next, err := s.adjacentCard(ctx, card, 1)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return Totals{}, err
		}
		if err == nil && next.Status == StatusDraft {
			if err := s.repo.PromoteToReady(ctx, next.ID, totals.Accepted); err != nil {
				return Totals{}, err
			}
		}
	}

	if s.progress != nil {
		if err := s.progress.SyncProgress(ctx, card.WorkOrderID, card.OperationSequence, totals); err != nil {
			return Totals{}, err
		}
	}

	s.publish(ctx, "job_card.synced", map[string]any{
		"job_card_id": card.ID,
		"produced":    totals.Produced,
		"accepted":    totals.Accepted,
		"rejected":    totals.Rejected,
		"scrap":       totals.Scrap,
	})
	return totals, nil
}

func (s *Service) publish(ctx context.Context, event string, payload map[string]any) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Publish(ctx, event, payload); err != nil {
		s.logger.Warn("notify publish failed", slog.String("event", event), slog.Any("error", err))
	}
}

func storedTotals(card JobCard) Totals {
	return Totals{
		Produced: card.ProducedQty,
		Accepted: card.AcceptedQty,
		Rejected: card.RejectedQty,
		Scrap:    card.ScrapQty,
	}
}
