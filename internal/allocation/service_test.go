package allocation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codigix/nobal-casting-sub005/internal/inventory"
	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

type memoryAllocRepo struct {
	rows   map[string]*Allocation
	nextID int64
}

func newMemoryAllocRepo() *memoryAllocRepo {
	return &memoryAllocRepo{rows: make(map[string]*Allocation)}
}

func allocKey(workOrderID, itemCode string) string {
	return workOrderID + ":" + itemCode
}

func (r *memoryAllocRepo) Insert(ctx context.Context, a Allocation) (Allocation, error) {
	r.nextID++
	a.ID = r.nextID
	a.Status = StatusPending
	a.CreatedAt = time.Now()
	r.rows[allocKey(a.WorkOrderID, a.ItemCode)] = &a
	return a, nil
}

func (r *memoryAllocRepo) Get(ctx context.Context, workOrderID, itemCode string) (Allocation, error) {
	if a, ok := r.rows[allocKey(workOrderID, itemCode)]; ok {
		return *a, nil
	}
	return Allocation{}, shared.ErrNotFound
}

func (r *memoryAllocRepo) ListByWorkOrder(ctx context.Context, workOrderID string) ([]Allocation, error) {
	out := []Allocation{}
	for _, a := range r.rows {
		if a.WorkOrderID == workOrderID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memoryAllocRepo) HasAllocations(ctx context.Context, workOrderID string) (bool, error) {
	for _, a := range r.rows {
		if a.WorkOrderID == workOrderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryAllocRepo) AddConsumption(ctx context.Context, workOrderID, itemCode string, delta float64) (Allocation, error) {
	a, ok := r.rows[allocKey(workOrderID, itemCode)]
	if !ok || !a.Status.open() {
		return Allocation{}, shared.ErrNotFound
	}
	a.ConsumedQty += delta
	if a.ConsumedQty >= a.AllocatedQty {
		a.Status = StatusIssued
	} else if a.Status == StatusPending {
		a.Status = StatusPartial
	}
	return *a, nil
}

func (r *memoryAllocRepo) AddWaste(ctx context.Context, workOrderID, itemCode string, delta float64) (Allocation, error) {
	a, ok := r.rows[allocKey(workOrderID, itemCode)]
	if !ok || !a.Status.open() {
		return Allocation{}, shared.ErrNotFound
	}
	a.WastedQty += delta
	if a.Status == StatusPending {
		a.Status = StatusPartial
	}
	return *a, nil
}

func (r *memoryAllocRepo) Delete(ctx context.Context, id int64) error {
	for k, a := range r.rows {
		if a.ID == id {
			delete(r.rows, k)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryAllocRepo) Close(ctx context.Context, id int64, returnedQty float64) error {
	for _, a := range r.rows {
		if a.ID == id {
			if !a.Status.open() {
				return shared.ErrNotFound
			}
			a.ReturnedQty = returnedQty
			a.Status = StatusCompleted
			return nil
		}
	}
	return shared.ErrNotFound
}

// fakeStock tracks reservations and posted movements without a database.
type fakeStock struct {
	onHand   map[string]float64
	reserved map[string]float64
	posted   []inventory.MovementInput
}

func newFakeStock() *fakeStock {
	return &fakeStock{onHand: make(map[string]float64), reserved: make(map[string]float64)}
}

func stockKey(itemCode string, warehouseID int64) string {
	return fmt.Sprintf("%s:%d", itemCode, warehouseID)
}

func (f *fakeStock) Reserve(ctx context.Context, itemCode string, warehouseID int64, qty float64) error {
	key := stockKey(itemCode, warehouseID)
	if f.onHand[key]-f.reserved[key] < qty {
		return shared.ErrInsufficientStock
	}
	f.reserved[key] += qty
	return nil
}

func (f *fakeStock) Release(ctx context.Context, itemCode string, warehouseID int64, qty float64) error {
	key := stockKey(itemCode, warehouseID)
	f.reserved[key] -= qty
	if f.reserved[key] < 0 {
		f.reserved[key] = 0
	}
	return nil
}

func (f *fakeStock) Post(ctx context.Context, input inventory.MovementInput) (inventory.LedgerEntry, error) {
	key := stockKey(input.ItemCode, input.WarehouseID)
	f.onHand[key] += input.QtyIn - input.QtyOut
	f.reserved[key] -= input.ReleaseReserved
	if f.reserved[key] < 0 {
		f.reserved[key] = 0
	}
	f.posted = append(f.posted, input)
	return inventory.LedgerEntry{ItemCode: input.ItemCode, WarehouseID: input.WarehouseID, QtyIn: input.QtyIn, QtyOut: input.QtyOut}, nil
}

func TestAllocateReservesStock(t *testing.T) {
	repo := newMemoryAllocRepo()
	stock := newFakeStock()
	stock.onHand["RM-001:1"] = 50
	svc := NewService(repo, stock, nil, nil)
	ctx := context.Background()

	allocs, err := svc.Allocate(ctx, "WO-001", []Line{{ItemCode: "RM-001", RequiredQty: 20, SourceWarehouseID: 1}}, "tester")
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	require.Equal(t, StatusPending, allocs[0].Status)
	require.InDelta(t, 20.0, stock.reserved["RM-001:1"], 0.0001)
	// Reservation does not move stock.
	require.InDelta(t, 50.0, stock.onHand["RM-001:1"], 0.0001)
}

func TestAllocateInsufficientStock(t *testing.T) {
	repo := newMemoryAllocRepo()
	stock := newFakeStock()
	stock.onHand["RM-001:1"] = 5
	svc := NewService(repo, stock, nil, nil)

	_, err := svc.Allocate(context.Background(), "WO-001", []Line{{ItemCode: "RM-001", RequiredQty: 20, SourceWarehouseID: 1}}, "tester")
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	has, err := repo.HasAllocations(context.Background(), "WO-001")
	require.NoError(t, err)
	require.False(t, has)
}

func TestAllocatePartialFailureUnwinds(t *testing.T) {
	repo := newMemoryAllocRepo()
	stock := newFakeStock()
	stock.onHand["RM-001:1"] = 50
	stock.onHand["RM-002:1"] = 5
	svc := NewService(repo, stock, nil, nil)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, "WO-001", []Line{
		{ItemCode: "RM-001", RequiredQty: 20, SourceWarehouseID: 1},
		{ItemCode: "RM-002", RequiredQty: 20, SourceWarehouseID: 1},
	}, "tester")
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// The first line's reservation and row were rolled back.
	require.InDelta(t, 0.0, stock.reserved["RM-001:1"], 0.0001)
	has, err := repo.HasAllocations(ctx, "WO-001")
	require.NoError(t, err)
	require.False(t, has)
}

func TestFinalizeClosure(t *testing.T) {
	repo := newMemoryAllocRepo()
	stock := newFakeStock()
	stock.onHand["RM-001:1"] = 100
	svc := NewService(repo, stock, nil, nil)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, "WO-002", []Line{{ItemCode: "RM-001", RequiredQty: 40, SourceWarehouseID: 1}}, "tester")
	require.NoError(t, err)

	_, err = svc.TrackConsumption(ctx, "WO-002", "RM-001", 25)
	require.NoError(t, err)
	_, err = svc.RecordWaste(ctx, "WO-002", "RM-001", 5)
	require.NoError(t, err)

	closeouts, err := svc.Finalize(ctx, "WO-002", "tester")
	require.NoError(t, err)
	require.Len(t, closeouts, 1)
	require.InDelta(t, 30.0, closeouts[0].FinalDeduction, 0.0001)
	require.InDelta(t, 10.0, closeouts[0].ReturnQty, 0.0001)

	// Closure invariant: allocated == consumed + wasted + returned.
	alloc, err := repo.Get(ctx, "WO-002", "RM-001")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, alloc.Status)
	require.InDelta(t, alloc.AllocatedQty, alloc.ConsumedQty+alloc.WastedQty+alloc.ReturnedQty, 0.0001)

	// Reservation fully released, only the final deduction left the warehouse.
	require.InDelta(t, 0.0, stock.reserved["RM-001:1"], 0.0001)
	require.InDelta(t, 70.0, stock.onHand["RM-001:1"], 0.0001)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	repo := newMemoryAllocRepo()
	stock := newFakeStock()
	stock.onHand["RM-001:1"] = 100
	svc := NewService(repo, stock, nil, nil)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, "WO-003", []Line{{ItemCode: "RM-001", RequiredQty: 10, SourceWarehouseID: 1}}, "tester")
	require.NoError(t, err)
	_, err = svc.TrackConsumption(ctx, "WO-003", "RM-001", 10)
	require.NoError(t, err)

	first, err := svc.Finalize(ctx, "WO-003", "tester")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Finalize(ctx, "WO-003", "tester")
	require.NoError(t, err)
	require.Empty(t, second)
	require.Len(t, stock.posted, 1)
}

func TestTrackConsumptionWithoutAllocation(t *testing.T) {
	svc := NewService(newMemoryAllocRepo(), newFakeStock(), nil, nil)
	_, err := svc.TrackConsumption(context.Background(), "WO-404", "RM-001", 5)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
