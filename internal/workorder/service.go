package workorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/codigix/nobal-casting-sub005/internal/allocation"
	"github.com/codigix/nobal-casting-sub005/internal/bom"
	"github.com/codigix/nobal-casting-sub005/internal/inventory"
	"github.com/codigix/nobal-casting-sub005/internal/jobcard"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata/items"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata/warehouses"
	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, wo WorkOrder, items []Item, ops []Operation) error
	Get(ctx context.Context, id string) (WorkOrder, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateCosts(ctx context.Context, id string, unitCost, totalCost float64) error
	ListItems(ctx context.Context, workOrderID string) ([]Item, error)
	AddItemConsumption(ctx context.Context, workOrderID, itemCode string, delta float64) error
	ListOperations(ctx context.Context, workOrderID string) ([]Operation, error)
	UpdateOperationProgress(ctx context.Context, workOrderID string, sequence int, completedQty, processLossQty float64) error
	HasIncompleteChildren(ctx context.Context, parentID string) (bool, error)
	ListChildren(ctx context.Context, parentID string) ([]WorkOrder, error)
}

// BOMPort supplies the read-only bill-of-materials structure.
type BOMPort interface {
	GetDetails(ctx context.Context, id int64) (bom.Details, error)
}

// CardPort is the slice of the job card service the work order needs.
type CardPort interface {
	CreateCards(ctx context.Context, cards []jobcard.JobCard) error
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]jobcard.JobCard, error)
}

// AllocationPort drives the material allocation lifecycle.
type AllocationPort interface {
	Allocate(ctx context.Context, workOrderID string, lines []allocation.Line, actor string) ([]allocation.Allocation, error)
	TrackConsumption(ctx context.Context, workOrderID, itemCode string, delta float64) (allocation.Allocation, error)
	Finalize(ctx context.Context, workOrderID, actor string) ([]allocation.Closeout, error)
	HasAllocations(ctx context.Context, workOrderID string) (bool, error)
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]allocation.Allocation, error)
}

// StockPort posts the movements backflush produces.
type StockPort interface {
	Post(ctx context.Context, input inventory.MovementInput) (inventory.LedgerEntry, error)
}

// ItemPort supplies master valuation rates and accepts the completed-unit
// cost write-back.
type ItemPort interface {
	Get(ctx context.Context, code string) (items.Item, error)
	UpdateValuationRate(ctx context.Context, code string, rate float64) error
}

// WarehousePort resolves role-default warehouses for backflush targets.
type WarehousePort interface {
	DefaultFor(ctx context.Context, t warehouses.Type) (warehouses.Warehouse, error)
}

// NotifyPort delivers fire-and-forget events.
type NotifyPort interface {
	Publish(ctx context.Context, event string, payload map[string]any) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SalesOrderPort pushes work order status back to the originating sales
// order. Optional; left unset the sync is skipped.
type SalesOrderPort interface {
	SyncStatus(ctx context.Context, salesOrderRef, workOrderID string, status Status) error
}

// Service owns the work order lifecycle: creation with job card
// materialization, material allocation, backflush dispatch, derived status
// and cost roll-up.
type Service struct {
	repo       RepositoryPort
	boms       BOMPort
	cards      CardPort
	alloc      AllocationPort
	stock      StockPort
	items      ItemPort
	warehouses WarehousePort
	notify     NotifyPort
	audit      AuditPort
	salesOrder SalesOrderPort
	logger     *slog.Logger
	cfg        ServiceConfig
}

// SetSalesOrders installs the optional sales-order status sync port.
func (s *Service) SetSalesOrders(port SalesOrderPort) {
	s.salesOrder = port
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// DirectDeductionFallback lets backflush deduct raw material straight
	// from the source warehouse when no allocation row exists. Off, a
	// missing allocation is an error.
	DirectDeductionFallback bool
}

// ServiceDeps groups service collaborators.
type ServiceDeps struct {
	Repo        RepositoryPort
	BOMs        BOMPort
	Cards       CardPort
	Allocations AllocationPort
	Stock       StockPort
	Items       ItemPort
	Warehouses  WarehousePort
	Notify      NotifyPort
	Audit       AuditPort
	Logger      *slog.Logger
}

// NewService builds Service.
func NewService(deps ServiceDeps, cfg ServiceConfig) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       deps.Repo,
		boms:       deps.BOMs,
		cards:      deps.Cards,
		alloc:      deps.Allocations,
		stock:      deps.Stock,
		items:      deps.Items,
		warehouses: deps.Warehouses,
		notify:     deps.Notify,
		audit:      deps.Audit,
		logger:     logger,
		cfg:        cfg,
	}
}

// CreateInput is the request to open a new work order.
type CreateInput struct {
	ID            string
	ItemCode      string
	BOMID         int64
	Quantity      float64
	ParentID      string
	SalesOrderRef string
	Actor         string
}

// Create explodes the BOM into material lines and routed operations, stores
// the work order and materializes one job card per operation. The first
// card starts ready with the full order quantity; the rest wait in draft
// until the sequencing handoff promotes them.
func (s *Service) Create(ctx context.Context, input CreateInput) (WorkOrder, error) {
	if input.ItemCode == "" {
		return WorkOrder{}, errors.New("workorder: item code required")
	}
	if input.BOMID == 0 {
		return WorkOrder{}, errors.New("workorder: bom reference required")
	}
	if input.Quantity <= 0 {
		return WorkOrder{}, errors.New("workorder: quantity must be positive")
	}
	details, err := s.boms.GetDetails(ctx, input.BOMID)
	if err != nil {
		return WorkOrder{}, err
	}
	if len(details.Operations) == 0 {
		return WorkOrder{}, fmt.Errorf("workorder: bom %d has no operations", input.BOMID)
	}

	wo := WorkOrder{
		ID:            input.ID,
		ItemCode:      input.ItemCode,
		BOMID:         input.BOMID,
		Quantity:      input.Quantity,
		Status:        StatusDraft,
		ParentID:      input.ParentID,
		SalesOrderRef: input.SalesOrderRef,
	}
	if wo.ID == "" {
		wo.ID = "WO-" + strings.ToUpper(uuid.NewString()[:8])
	}

	woItems := make([]Item, 0, len(details.Components))
	for _, comp := range details.Components {
		woItems = append(woItems, Item{
			WorkOrderID:       wo.ID,
			ItemCode:          comp.ItemCode,
			RequiredQty:       comp.QtyPerUnit * input.Quantity,
			SourceWarehouseID: comp.SourceWarehouseID,
		})
	}
	ops := make([]Operation, 0, len(details.Operations))
	for _, op := range details.Operations {
		ops = append(ops, Operation{
			WorkOrderID:   wo.ID,
			Sequence:      op.Sequence,
			Name:          op.Name,
			Workstation:   op.Workstation,
			ExecutionMode: op.ExecutionMode,
			TimeInMinutes: op.TimeInMinutes,
			HourlyRate:    op.HourlyRate,
			VendorRate:    op.VendorRate,
		})
	}
	if err := s.repo.Insert(ctx, wo, woItems, ops); err != nil {
		return WorkOrder{}, err
	}

	cards := make([]jobcard.JobCard, 0, len(ops))
	for i, op := range ops {
		card := jobcard.JobCard{
			ID:                fmt.Sprintf("%s-OP%02d", wo.ID, op.Sequence),
			WorkOrderID:       wo.ID,
			Operation:         op.Name,
			OperationSequence: op.Sequence,
			Mode:              executionMode(op.ExecutionMode),
			HourlyRate:        op.HourlyRate,
			VendorRate:        op.VendorRate,
			Status:            jobcard.StatusDraft,
		}
		if i == 0 {
			card.Status = jobcard.StatusReady
			card.PlannedQty = input.Quantity
		}
		cards = append(cards, card)
	}
	if err := s.cards.CreateCards(ctx, cards); err != nil {
		return WorkOrder{}, err
	}

	s.recordAudit(ctx, input.Actor, "workorder:create", wo.ID, map[string]any{
		"item_code": wo.ItemCode,
		"quantity":  wo.Quantity,
		"bom_id":    wo.BOMID,
	})
	s.publish(ctx, "work_order.created", map[string]any{"work_order_id": wo.ID, "item_code": wo.ItemCode})
	return wo, nil
}

func executionMode(raw string) jobcard.ExecutionMode {
	if strings.EqualFold(strings.TrimSpace(raw), string(jobcard.ModeOutsource)) {
		return jobcard.ModeOutsource
	}
	return jobcard.ModeInHouse
}

// Get returns one work order.
func (s *Service) Get(ctx context.Context, id string) (WorkOrder, error) {
	return s.repo.Get(ctx, id)
}

// ListItems returns a work order's material lines.
func (s *Service) ListItems(ctx context.Context, id string) ([]Item, error) {
	return s.repo.ListItems(ctx, id)
}

// ListOperations returns a work order's routed steps.
func (s *Service) ListOperations(ctx context.Context, id string) ([]Operation, error) {
	return s.repo.ListOperations(ctx, id)
}

// AllocateMaterials reserves every required material line from its source
// warehouse. Lines without an explicit source fall back to the default
// store warehouse.
func (s *Service) AllocateMaterials(ctx context.Context, workOrderID, actor string) ([]allocation.Allocation, error) {
	woItems, err := s.repo.ListItems(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if len(woItems) == 0 {
		return nil, fmt.Errorf("%w: work order %s has no material lines", shared.ErrNotFound, workOrderID)
	}
	lines := make([]allocation.Line, 0, len(woItems))
	for _, it := range woItems {
		source := it.SourceWarehouseID
		if source == 0 {
			wh, err := s.warehouses.DefaultFor(ctx, warehouses.TypeStore)
			if err != nil {
				return nil, err
			}
			source = wh.ID
		}
		lines = append(lines, allocation.Line{
			ItemCode:          it.ItemCode,
			RequiredQty:       it.RequiredQty,
			SourceWarehouseID: source,
		})
	}
	return s.alloc.Allocate(ctx, workOrderID, lines, actor)
}

// FinalizeMaterials closes the work order's allocations, deducting what was
// consumed and wasted and releasing the reservations.
func (s *Service) FinalizeMaterials(ctx context.Context, workOrderID, actor string) ([]allocation.Closeout, error) {
	return s.alloc.Finalize(ctx, workOrderID, actor)
}

// SubAssembliesCompleted reports whether every child work order is done.
func (s *Service) SubAssembliesCompleted(ctx context.Context, workOrderID string) (bool, error) {
	incomplete, err := s.repo.HasIncompleteChildren(ctx, workOrderID)
	if err != nil {
		return false, err
	}
	return !incomplete, nil
}

// SyncProgress stores one operation's execution figures, then re-derives
// costs and the work order status.
func (s *Service) SyncProgress(ctx context.Context, workOrderID string, sequence int, totals jobcard.Totals) error {
	if err := s.repo.UpdateOperationProgress(ctx, workOrderID, sequence, totals.Produced, totals.Rejected+totals.Scrap); err != nil {
		return err
	}
	if _, _, err := s.RecomputeCosts(ctx, workOrderID); err != nil {
		return err
	}
	return s.Refresh(ctx, workOrderID)
}

// Refresh derives the work order status from its job cards: in-progress as
// soon as any card has started or finished, completed when all cards are
// completed. Completion triggers material finalization, the cost roll-up
// write-back and the parent unblock check.
func (s *Service) Refresh(ctx context.Context, workOrderID string) error {
	wo, err := s.repo.Get(ctx, workOrderID)
	if err != nil {
		return err
	}
	cards, err := s.cards.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		return nil
	}

	allCompleted := true
	anyStarted := false
	for _, card := range cards {
		switch card.Status {
		case jobcard.StatusCompleted:
			anyStarted = true
		case jobcard.StatusInProgress:
			anyStarted = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}

	derived := wo.Status
	switch {
	case allCompleted:
		derived = StatusCompleted
	case anyStarted:
		derived = StatusInProgress
	}
	if derived == wo.Status {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, workOrderID, derived); err != nil {
		return err
	}
	if derived == StatusCompleted {
		return s.complete(ctx, wo)
	}
	s.publish(ctx, "work_order.status_changed", map[string]any{
		"work_order_id": workOrderID,
		"status":        string(derived),
	})
	return nil
}

// complete runs the completion cascade: finalize materials, roll up the
// final cost, write the actual unit cost back into the item master and
// check whether the parent work order is unblocked.
func (s *Service) complete(ctx context.Context, wo WorkOrder) error {
	if _, err := s.alloc.Finalize(ctx, wo.ID, "system"); err != nil {
		return err
	}
	unitCost, totalCost, err := s.RecomputeCosts(ctx, wo.ID)
	if err != nil {
		return err
	}
	if unitCost > 0 {
		if err := s.items.UpdateValuationRate(ctx, wo.ItemCode, unitCost); err != nil {
			s.logger.Warn("valuation write-back failed", slog.String("item", wo.ItemCode), slog.Any("error", err))
		}
	}
	s.publish(ctx, "work_order.completed", map[string]any{
		"work_order_id": wo.ID,
		"item_code":     wo.ItemCode,
		"unit_cost":     unitCost,
		"total_cost":    totalCost,
	})
	if s.salesOrder != nil && wo.SalesOrderRef != "" {
		if err := s.salesOrder.SyncStatus(ctx, wo.SalesOrderRef, wo.ID, StatusCompleted); err != nil {
			s.logger.Warn("sales order sync failed", slog.String("sales_order", wo.SalesOrderRef), slog.Any("error", err))
		}
	}
	if wo.ParentID != "" {
		incomplete, err := s.repo.HasIncompleteChildren(ctx, wo.ParentID)
		if err != nil {
			s.logger.Warn("parent unblock check failed", slog.String("parent", wo.ParentID), slog.Any("error", err))
			return nil
		}
		if !incomplete {
			s.publish(ctx, "work_order.unblocked", map[string]any{"work_order_id": wo.ParentID})
		}
	}
	return nil
}

// RecomputeCosts rolls up operating and material cost into the work order:
// total is the sum of job card operating costs plus consumed quantities at
// the item master rate, unit is total over the order quantity.
func (s *Service) RecomputeCosts(ctx context.Context, workOrderID string) (unitCost, totalCost float64, err error) {
	wo, err := s.repo.Get(ctx, workOrderID)
	if err != nil {
		return 0, 0, err
	}
	cards, err := s.cards.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return 0, 0, err
	}
	for _, card := range cards {
		totalCost += card.OperatingCost
	}
	woItems, err := s.repo.ListItems(ctx, workOrderID)
	if err != nil {
		return 0, 0, err
	}
	for _, it := range woItems {
		if it.ConsumedQty <= 0 {
			continue
		}
		rate, err := s.masterRate(ctx, it.ItemCode)
		if err != nil {
			return 0, 0, err
		}
		totalCost += it.ConsumedQty * rate
	}
	if wo.Quantity > 0 {
		unitCost = totalCost / wo.Quantity
	}
	if err := s.repo.UpdateCosts(ctx, workOrderID, unitCost, totalCost); err != nil {
		return 0, 0, err
	}
	return unitCost, totalCost, nil
}

func (s *Service) masterRate(ctx context.Context, code string) (float64, error) {
	it, err := s.items.Get(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return it.ValuationRate, nil
}

func (s *Service) publish(ctx context.Context, event string, payload map[string]any) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Publish(ctx, event, payload); err != nil {
		s.logger.Warn("notify publish failed", slog.String("event", event), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "work_order",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
