package workorder

import (
	"context"
	"errors"
	"fmt"

	"github.com/codigix/nobal-casting-sub005/internal/inventory"
	"github.com/codigix/nobal-casting-sub005/internal/jobcard"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata/warehouses"
	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

const backflushActor = "backflush"

// ApplyDeltas turns a job card's reconciled quantity deltas into stock
// movements: proportional raw-material consumption on the first operation,
// accepted output into WIP or finished goods, rejected and scrap into the
// scrap warehouse. Movement references carry the cumulative figure so a
// replayed delta dedupes instead of double-posting.
func (s *Service) ApplyDeltas(ctx context.Context, card jobcard.JobCard, deltas jobcard.Totals) error {
	wo, err := s.repo.Get(ctx, card.WorkOrderID)
	if err != nil {
		return err
	}
	ops, err := s.repo.ListOperations(ctx, card.WorkOrderID)
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return fmt.Errorf("%w: operations for work order %s", shared.ErrNotFound, card.WorkOrderID)
	}
	firstSeq := ops[0].Sequence
	lastSeq := ops[len(ops)-1].Sequence

	if deltas.Produced > 0 && card.OperationSequence == firstSeq && wo.Quantity > 0 {
		if err := s.consumeRawMaterial(ctx, wo, card, deltas.Produced); err != nil {
			return err
		}
	}

	if deltas.Accepted > 0 {
		target := warehouses.TypeWIP
		txType := inventory.TxManufacturingTransfer
		if card.OperationSequence == lastSeq {
			target = warehouses.TypeFG
			txType = inventory.TxManufacturingReceipt
		}
		wh, err := s.warehouses.DefaultFor(ctx, target)
		if err != nil {
			return err
		}
		_, err = s.stock.Post(ctx, inventory.MovementInput{
			ItemCode:     wo.ItemCode,
			WarehouseID:  wh.ID,
			Type:         txType,
			QtyIn:        deltas.Accepted,
			IncomingRate: wo.UnitCost,
			RefDoctype:   "job_card",
			RefID:        fmt.Sprintf("%s@a%.4f", card.ID, card.AcceptedQty+deltas.Accepted),
			Remarks:      fmt.Sprintf("Accepted output of %s", card.ID),
			Actor:        backflushActor,
		})
		if err != nil {
			return err
		}
	}

	if loss := deltas.Rejected + deltas.Scrap; loss > 0 {
		wh, err := s.warehouses.DefaultFor(ctx, warehouses.TypeScrap)
		if err != nil {
			return err
		}
		cumLoss := card.RejectedQty + card.ScrapQty + loss
		_, err = s.stock.Post(ctx, inventory.MovementInput{
			ItemCode:    wo.ItemCode,
			WarehouseID: wh.ID,
			Type:        inventory.TxScrapEntry,
			QtyIn:       loss,
			RefDoctype:  "job_card",
			RefID:       fmt.Sprintf("%s@l%.4f", card.ID, cumLoss),
			Remarks:     fmt.Sprintf("Rejected and scrapped output of %s", card.ID),
			Actor:       backflushActor,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// consumeRawMaterial books proportional component consumption for the
// produced delta. With an allocation row the consumption is tracked there
// and the physical deduction waits for finalize; without one the deduction
// happens immediately, but only when the fallback is enabled.
func (s *Service) consumeRawMaterial(ctx context.Context, wo WorkOrder, card jobcard.JobCard, deltaProduced float64) error {
	woItems, err := s.repo.ListItems(ctx, wo.ID)
	if err != nil {
		return err
	}
	cumProduced := card.ProducedQty + deltaProduced
	for _, it := range woItems {
		qty := deltaProduced / wo.Quantity * it.RequiredQty
		if qty <= 0 {
			continue
		}
		_, err := s.alloc.TrackConsumption(ctx, wo.ID, it.ItemCode, qty)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return err
			}
			if !s.cfg.DirectDeductionFallback {
				return err
			}
			if err := s.deductDirect(ctx, wo, card, it, qty, cumProduced); err != nil {
				return err
			}
		}
		if err := s.repo.AddItemConsumption(ctx, wo.ID, it.ItemCode, qty); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) deductDirect(ctx context.Context, wo WorkOrder, card jobcard.JobCard, it Item, qty, cumProduced float64) error {
	source := it.SourceWarehouseID
	if source == 0 {
		wh, err := s.warehouses.DefaultFor(ctx, warehouses.TypeStore)
		if err != nil {
			return err
		}
		source = wh.ID
	}
	_, err := s.stock.Post(ctx, inventory.MovementInput{
		ItemCode:    it.ItemCode,
		WarehouseID: source,
		Type:        inventory.TxManufacturingIssue,
		QtyOut:      qty,
		RefDoctype:  "job_card",
		RefID:       fmt.Sprintf("%s@p%.4f", card.ID, cumProduced),
		Remarks:     fmt.Sprintf("Backflush consumption for %s", wo.ID),
		Actor:       backflushActor,
	})
	return err
}
