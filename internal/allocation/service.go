package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codigix/nobal-casting-sub005/internal/inventory"
	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, a Allocation) (Allocation, error)
	Get(ctx context.Context, workOrderID, itemCode string) (Allocation, error)
	ListByWorkOrder(ctx context.Context, workOrderID string) ([]Allocation, error)
	HasAllocations(ctx context.Context, workOrderID string) (bool, error)
	AddConsumption(ctx context.Context, workOrderID, itemCode string, delta float64) (Allocation, error)
	AddWaste(ctx context.Context, workOrderID, itemCode string, delta float64) (Allocation, error)
	Close(ctx context.Context, id int64, returnedQty float64) error
	Delete(ctx context.Context, id int64) error
}

// StockPort is the slice of the stock service the allocation lifecycle needs.
type StockPort interface {
	Reserve(ctx context.Context, itemCode string, warehouseID int64, qty float64) error
	Release(ctx context.Context, itemCode string, warehouseID int64, qty float64) error
	Post(ctx context.Context, input inventory.MovementInput) (inventory.LedgerEntry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the allocate, consume, finalize, return lifecycle.
type Service struct {
	repo   RepositoryPort
	stock  StockPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, stock StockPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, audit: audit, logger: logger}
}

// Allocate reserves material for a work order. Stock does not move; only
// reserved_qty rises. Fails with InsufficientStock when a source warehouse
// cannot cover a line. All lines land or none do: a failure part way
// through unwinds the reservations and rows already applied.
func (s *Service) Allocate(ctx context.Context, workOrderID string, lines []Line, actor string) ([]Allocation, error) {
	if workOrderID == "" {
		return nil, errors.New("allocation: work order required")
	}
	if len(lines) == 0 {
		return nil, errors.New("allocation: at least one line required")
	}
	for _, line := range lines {
		if line.ItemCode == "" || line.SourceWarehouseID == 0 {
			return nil, errors.New("allocation: item and source warehouse required")
		}
		if line.RequiredQty <= 0 {
			return nil, fmt.Errorf("allocation: required qty must be positive for %s", line.ItemCode)
		}
	}
	out := make([]Allocation, 0, len(lines))
	for _, line := range lines {
		// Reserve first: it checks available quantity under row lock.
		if err := s.stock.Reserve(ctx, line.ItemCode, line.SourceWarehouseID, line.RequiredQty); err != nil {
			s.unwind(ctx, out)
			return nil, err
		}
		alloc, err := s.repo.Insert(ctx, Allocation{
			WorkOrderID:  workOrderID,
			ItemCode:     line.ItemCode,
			WarehouseID:  line.SourceWarehouseID,
			AllocatedQty: line.RequiredQty,
		})
		if err != nil {
			_ = s.stock.Release(ctx, line.ItemCode, line.SourceWarehouseID, line.RequiredQty)
			s.unwind(ctx, out)
			return nil, err
		}
		out = append(out, alloc)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "allocation:allocate",
			Entity:   "work_order",
			EntityID: workOrderID,
			Meta:     map[string]any{"lines": len(out)},
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
	return out, nil
}

// unwind reverts lines applied before a failed one: releases their
// reservations and removes the rows.
func (s *Service) unwind(ctx context.Context, applied []Allocation) {
	for _, alloc := range applied {
		if err := s.stock.Release(ctx, alloc.ItemCode, alloc.WarehouseID, alloc.AllocatedQty); err != nil {
			s.logger.Warn("allocation unwind release failed", slog.String("item", alloc.ItemCode), slog.Any("error", err))
		}
		if err := s.repo.Delete(ctx, alloc.ID); err != nil {
			s.logger.Warn("allocation unwind delete failed", slog.Int64("allocation", alloc.ID), slog.Any("error", err))
		}
	}
}

// TrackConsumption books consumption against an allocation. No stock moves
// here; the physical deduction is deferred to Finalize.
func (s *Service) TrackConsumption(ctx context.Context, workOrderID, itemCode string, delta float64) (Allocation, error) {
	if delta <= 0 {
		return Allocation{}, errors.New("allocation: consumption delta must be positive")
	}
	alloc, err := s.repo.AddConsumption(ctx, workOrderID, itemCode, delta)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Allocation{}, fmt.Errorf("%w: allocation for %s on %s", shared.ErrNotFound, itemCode, workOrderID)
		}
		return Allocation{}, err
	}
	return alloc, nil
}

// RecordWaste books scrapped material against an allocation.
func (s *Service) RecordWaste(ctx context.Context, workOrderID, itemCode string, delta float64) (Allocation, error) {
	if delta <= 0 {
		return Allocation{}, errors.New("allocation: waste delta must be positive")
	}
	return s.repo.AddWaste(ctx, workOrderID, itemCode, delta)
}

// HasAllocations reports whether any allocation exists for the work order.
func (s *Service) HasAllocations(ctx context.Context, workOrderID string) (bool, error) {
	return s.repo.HasAllocations(ctx, workOrderID)
}

// ListByWorkOrder returns the work order's allocations.
func (s *Service) ListByWorkOrder(ctx context.Context, workOrderID string) ([]Allocation, error) {
	return s.repo.ListByWorkOrder(ctx, workOrderID)
}

// Finalize closes every open allocation of a work order. The final deduction
// is consumed+wasted; the full allocated quantity is released from
// reservation and the unused remainder is recorded as returned, an
// audit-only figure with no stock movement of its own. Safe to call twice:
// completed rows are skipped.
func (s *Service) Finalize(ctx context.Context, workOrderID, actor string) ([]Closeout, error) {
	allocs, err := s.repo.ListByWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	closeouts := make([]Closeout, 0, len(allocs))
	for _, alloc := range allocs {
		if !alloc.Status.open() {
			continue
		}
		finalDeduction := alloc.ConsumedQty + alloc.WastedQty
		returnQty := alloc.AllocatedQty - finalDeduction
		if returnQty < 0 {
			returnQty = 0
		}
		if finalDeduction > 0 {
			_, err := s.stock.Post(ctx, inventory.MovementInput{
				ItemCode:        alloc.ItemCode,
				WarehouseID:     alloc.WarehouseID,
				Type:            inventory.TxManufacturingIssue,
				QtyOut:          finalDeduction,
				ReleaseReserved: alloc.AllocatedQty,
				RefDoctype:      "work_order",
				RefID:           workOrderID,
				Remarks:         fmt.Sprintf("Material finalization for %s", workOrderID),
				Actor:           actor,
			})
			if err != nil {
				return nil, err
			}
		} else if alloc.AllocatedQty > 0 {
			// Nothing consumed: release the reservation only.
			if err := s.stock.Release(ctx, alloc.ItemCode, alloc.WarehouseID, alloc.AllocatedQty); err != nil {
				return nil, err
			}
		}
		if err := s.repo.Close(ctx, alloc.ID, returnQty); err != nil {
			return nil, err
		}
		closeouts = append(closeouts, Closeout{
			ItemCode:       alloc.ItemCode,
			WarehouseID:    alloc.WarehouseID,
			AllocatedQty:   alloc.AllocatedQty,
			FinalDeduction: finalDeduction,
			ReturnQty:      returnQty,
		})
		if s.audit != nil && returnQty > 0 {
			if err := s.audit.Record(ctx, shared.AuditLog{
				Actor:    actor,
				Action:   "allocation:return",
				Entity:   "material_allocation",
				EntityID: fmt.Sprintf("%d", alloc.ID),
				Meta: map[string]any{
					"work_order": workOrderID,
					"item_code":  alloc.ItemCode,
					"return_qty": returnQty,
				},
			}); err != nil {
				s.logger.Warn("audit record failed", slog.Any("error", err))
			}
		}
	}
	return closeouts, nil
}
