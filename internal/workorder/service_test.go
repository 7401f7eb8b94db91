package workorder

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codigix/nobal-casting-sub005/internal/allocation"
	"github.com/codigix/nobal-casting-sub005/internal/bom"
	"github.com/codigix/nobal-casting-sub005/internal/inventory"
	"github.com/codigix/nobal-casting-sub005/internal/jobcard"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata/items"
	"github.com/codigix/nobal-casting-sub005/internal/masterdata/warehouses"
	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

const (
	storeWarehouse int64 = 1
	wipWarehouse   int64 = 2
	fgWarehouse    int64 = 3
	scrapWarehouse int64 = 4
)

// memoryWORepo implements RepositoryPort in memory.

type memoryWORepo struct {
	orders map[string]*WorkOrder
	items  map[string][]*Item
	ops    map[string][]*Operation
}

func newMemoryWORepo() *memoryWORepo {
	return &memoryWORepo{
		orders: make(map[string]*WorkOrder),
		items:  make(map[string][]*Item),
		ops:    make(map[string][]*Operation),
	}
}

func (r *memoryWORepo) Insert(ctx context.Context, wo WorkOrder, woItems []Item, ops []Operation) error {
	r.orders[wo.ID] = &wo
	for i := range woItems {
		it := woItems[i]
		r.items[wo.ID] = append(r.items[wo.ID], &it)
	}
	for i := range ops {
		op := ops[i]
		r.ops[wo.ID] = append(r.ops[wo.ID], &op)
	}
	return nil
}

func (r *memoryWORepo) Get(ctx context.Context, id string) (WorkOrder, error) {
	if wo, ok := r.orders[id]; ok {
		return *wo, nil
	}
	return WorkOrder{}, shared.ErrNotFound
}

func (r *memoryWORepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	wo, ok := r.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	wo.Status = status
	return nil
}

func (r *memoryWORepo) UpdateCosts(ctx context.Context, id string, unitCost, totalCost float64) error {
	wo, ok := r.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	wo.UnitCost = unitCost
	wo.TotalCost = totalCost
	return nil
}

func (r *memoryWORepo) ListItems(ctx context.Context, workOrderID string) ([]Item, error) {
	out := []Item{}
	for _, it := range r.items[workOrderID] {
		out = append(out, *it)
	}
	return out, nil
}

func (r *memoryWORepo) AddItemConsumption(ctx context.Context, workOrderID, itemCode string, delta float64) error {
	for _, it := range r.items[workOrderID] {
		if it.ItemCode == itemCode {
			it.ConsumedQty += delta
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryWORepo) ListOperations(ctx context.Context, workOrderID string) ([]Operation, error) {
	out := []Operation{}
	for _, op := range r.ops[workOrderID] {
		out = append(out, *op)
	}
	return out, nil
}

func (r *memoryWORepo) UpdateOperationProgress(ctx context.Context, workOrderID string, sequence int, completedQty, processLossQty float64) error {
	for _, op := range r.ops[workOrderID] {
		if op.Sequence == sequence {
			op.CompletedQty = completedQty
			op.ProcessLossQty = processLossQty
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryWORepo) HasIncompleteChildren(ctx context.Context, parentID string) (bool, error) {
	for _, wo := range r.orders {
		if wo.ParentID == parentID && wo.Status != StatusCompleted && wo.Status != StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryWORepo) ListChildren(ctx context.Context, parentID string) ([]WorkOrder, error) {
	out := []WorkOrder{}
	for _, wo := range r.orders {
		if wo.ParentID == parentID {
			out = append(out, *wo)
		}
	}
	return out, nil
}

// memoryCardStore implements jobcard.RepositoryPort in memory.

type memoryCardStore struct {
	cards      map[string]*jobcard.JobCard
	timeLogs   []jobcard.TimeLog
	rejections []jobcard.RejectionEntry
	challans   []jobcard.InwardChallan
	nextID     int64
}

func newMemoryCardStore() *memoryCardStore {
	return &memoryCardStore{cards: make(map[string]*jobcard.JobCard)}
}

func (r *memoryCardStore) Get(ctx context.Context, id string) (jobcard.JobCard, error) {
	if c, ok := r.cards[id]; ok {
		return *c, nil
	}
	return jobcard.JobCard{}, shared.ErrNotFound
}

func (r *memoryCardStore) GetBySequence(ctx context.Context, workOrderID string, sequence int) (jobcard.JobCard, error) {
	for _, c := range r.cards {
		if c.WorkOrderID == workOrderID && c.OperationSequence == sequence {
			return *c, nil
		}
	}
	return jobcard.JobCard{}, shared.ErrNotFound
}

func (r *memoryCardStore) ListByWorkOrder(ctx context.Context, workOrderID string) ([]jobcard.JobCard, error) {
	out := []jobcard.JobCard{}
	for _, c := range r.cards {
		if c.WorkOrderID == workOrderID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memoryCardStore) InsertCards(ctx context.Context, cards []jobcard.JobCard) error {
	for i := range cards {
		c := cards[i]
		r.cards[c.ID] = &c
	}
	return nil
}

func (r *memoryCardStore) UpdateTotals(ctx context.Context, id string, totals jobcard.Totals, operatingCost float64) error {
	c, ok := r.cards[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.ProducedQty = totals.Produced
	c.AcceptedQty = totals.Accepted
	c.RejectedQty = totals.Rejected
	c.ScrapQty = totals.Scrap
	c.OperatingCost = operatingCost
	return nil
}

func (r *memoryCardStore) UpdateStatus(ctx context.Context, id string, status jobcard.Status) error {
	c, ok := r.cards[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.Status = status
	return nil
}

func (r *memoryCardStore) PromoteToReady(ctx context.Context, id string, plannedQty float64) error {
	c, ok := r.cards[id]
	if !ok {
		return shared.ErrNotFound
	}
	if c.Status == jobcard.StatusDraft {
		c.Status = jobcard.StatusReady
		c.PlannedQty = plannedQty
	}
	return nil
}

func (r *memoryCardStore) InsertTimeLog(ctx context.Context, tl jobcard.TimeLog) (jobcard.TimeLog, error) {
	r.nextID++
	tl.ID = r.nextID
	r.timeLogs = append(r.timeLogs, tl)
	return tl, nil
}

func (r *memoryCardStore) InsertRejection(ctx context.Context, re jobcard.RejectionEntry) (jobcard.RejectionEntry, error) {
	r.nextID++
	re.ID = r.nextID
	r.rejections = append(r.rejections, re)
	return re, nil
}

func (r *memoryCardStore) InsertChallan(ctx context.Context, ch jobcard.InwardChallan) (jobcard.InwardChallan, error) {
	r.nextID++
	ch.ID = r.nextID
	r.challans = append(r.challans, ch)
	return ch, nil
}

func (r *memoryCardStore) Sources(ctx context.Context, jobCardID string) (jobcard.SyncSources, error) {
	var src jobcard.SyncSources
	for _, tl := range r.timeLogs {
		if tl.JobCardID == jobCardID {
			src.TimeLogs = append(src.TimeLogs, tl)
		}
	}
	for _, re := range r.rejections {
		if re.JobCardID == jobCardID {
			src.Rejections = append(src.Rejections, re)
		}
	}
	for _, ch := range r.challans {
		if ch.JobCardID == jobCardID {
			src.Challans = append(src.Challans, ch)
		}
	}
	return src, nil
}

func (r *memoryCardStore) GetRejection(ctx context.Context, jobCardID string, id int64) (jobcard.RejectionEntry, error) {
	for _, re := range r.rejections {
		if re.JobCardID == jobCardID && re.ID == id {
			return re, nil
		}
	}
	return jobcard.RejectionEntry{}, shared.ErrNotFound
}

func (r *memoryCardStore) SetRejectionStatus(ctx context.Context, id int64, status jobcard.RejectionStatus) error {
	for i := range r.rejections {
		if r.rejections[i].ID == id {
			r.rejections[i].Status = status
			return nil
		}
	}
	return shared.ErrNotFound
}

// memoryAllocStore implements allocation.RepositoryPort in memory.

type memoryAllocStore struct {
	rows   []*allocation.Allocation
	nextID int64
}

func (r *memoryAllocStore) find(workOrderID, itemCode string) *allocation.Allocation {
	for _, a := range r.rows {
		if a.WorkOrderID == workOrderID && a.ItemCode == itemCode {
			return a
		}
	}
	return nil
}

func (r *memoryAllocStore) Insert(ctx context.Context, a allocation.Allocation) (allocation.Allocation, error) {
	r.nextID++
	a.ID = r.nextID
	a.Status = allocation.StatusPending
	r.rows = append(r.rows, &a)
	return a, nil
}

func (r *memoryAllocStore) Get(ctx context.Context, workOrderID, itemCode string) (allocation.Allocation, error) {
	if a := r.find(workOrderID, itemCode); a != nil {
		return *a, nil
	}
	return allocation.Allocation{}, shared.ErrNotFound
}

func (r *memoryAllocStore) ListByWorkOrder(ctx context.Context, workOrderID string) ([]allocation.Allocation, error) {
	out := []allocation.Allocation{}
	for _, a := range r.rows {
		if a.WorkOrderID == workOrderID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memoryAllocStore) HasAllocations(ctx context.Context, workOrderID string) (bool, error) {
	for _, a := range r.rows {
		if a.WorkOrderID == workOrderID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryAllocStore) AddConsumption(ctx context.Context, workOrderID, itemCode string, delta float64) (allocation.Allocation, error) {
	a := r.find(workOrderID, itemCode)
	if a == nil || a.Status == allocation.StatusCompleted {
		return allocation.Allocation{}, shared.ErrNotFound
	}
	a.ConsumedQty += delta
	switch {
	case a.ConsumedQty >= a.AllocatedQty:
		a.Status = allocation.StatusIssued
	case a.Status == allocation.StatusPending:
		a.Status = allocation.StatusPartial
	}
	return *a, nil
}

func (r *memoryAllocStore) AddWaste(ctx context.Context, workOrderID, itemCode string, delta float64) (allocation.Allocation, error) {
	a := r.find(workOrderID, itemCode)
	if a == nil || a.Status == allocation.StatusCompleted {
		return allocation.Allocation{}, shared.ErrNotFound
	}
	a.WastedQty += delta
	if a.Status == allocation.StatusPending {
		a.Status = allocation.StatusPartial
	}
	return *a, nil
}

func (r *memoryAllocStore) Delete(ctx context.Context, id int64) error {
	for i, a := range r.rows {
		if a.ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryAllocStore) Close(ctx context.Context, id int64, returnedQty float64) error {
	for _, a := range r.rows {
		if a.ID == id && a.Status != allocation.StatusCompleted {
			a.ReturnedQty = returnedQty
			a.Status = allocation.StatusCompleted
			return nil
		}
	}
	return shared.ErrNotFound
}

// fakeStock records movements against simple quantity maps. It serves both
// the allocation and work order services.

type fakeStock struct {
	onHand   map[string]float64
	reserved map[string]float64
	posted   []inventory.MovementInput
}

func newFakeStock() *fakeStock {
	return &fakeStock{onHand: make(map[string]float64), reserved: make(map[string]float64)}
}

func stockKey(itemCode string, warehouseID int64) string {
	return fmt.Sprintf("%s|%d", itemCode, warehouseID)
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
	if input.ReleaseReserved > 0 {
		f.reserved[key] -= input.ReleaseReserved
		if f.reserved[key] < 0 {
			f.reserved[key] = 0
		}
	}
	f.posted = append(f.posted, input)
	return inventory.LedgerEntry{ItemCode: input.ItemCode, WarehouseID: input.WarehouseID, QtyIn: input.QtyIn, QtyOut: input.QtyOut}, nil
}

func (f *fakeStock) postedOf(txType inventory.TransactionType) []inventory.MovementInput {
	out := []inventory.MovementInput{}
	for _, p := range f.posted {
		if p.Type == txType {
			out = append(out, p)
		}
	}
	return out
}

// fakeItemMaster implements ItemPort.

type fakeItemMaster struct {
	rates map[string]float64
}

func (f *fakeItemMaster) Get(ctx context.Context, code string) (items.Item, error) {
	rate, ok := f.rates[code]
	if !ok {
		return items.Item{}, shared.ErrNotFound
	}
	return items.Item{Code: code, ValuationRate: rate}, nil
}

func (f *fakeItemMaster) UpdateValuationRate(ctx context.Context, code string, rate float64) error {
	f.rates[code] = rate
	return nil
}

// fakeWarehouseDir implements WarehousePort.

type fakeWarehouseDir struct{}

func (fakeWarehouseDir) DefaultFor(ctx context.Context, t warehouses.Type) (warehouses.Warehouse, error) {
	switch t {
	case warehouses.TypeStore:
		return warehouses.Warehouse{ID: storeWarehouse, Code: "STORE-A", Type: t}, nil
	case warehouses.TypeWIP:
		return warehouses.Warehouse{ID: wipWarehouse, Code: "WIP-A", Type: t}, nil
	case warehouses.TypeFG:
		return warehouses.Warehouse{ID: fgWarehouse, Code: "FG-A", Type: t}, nil
	case warehouses.TypeScrap:
		return warehouses.Warehouse{ID: scrapWarehouse, Code: "SCRAP-A", Type: t}, nil
	}
	return warehouses.Warehouse{}, shared.ErrNotFound
}

// fakeBOMSource implements BOMPort.

type fakeBOMSource struct {
	details bom.Details
}

func (f fakeBOMSource) GetDetails(ctx context.Context, id int64) (bom.Details, error) {
	if f.details.ID != id {
		return bom.Details{}, shared.ErrNotFound
	}
	return f.details, nil
}

// fakeSalesOrders implements SalesOrderPort.

type fakeSalesOrders struct {
	synced []string
}

func (f *fakeSalesOrders) SyncStatus(ctx context.Context, salesOrderRef, workOrderID string, status Status) error {
	f.synced = append(f.synced, salesOrderRef)
	return nil
}

type testRig struct {
	woRepo     *memoryWORepo
	cardRepo   *memoryCardStore
	allocRepo  *memoryAllocStore
	stock      *fakeStock
	items      *fakeItemMaster
	salesOrder *fakeSalesOrders
	woSvc      *Service
	cardSvc    *jobcard.Service
	allocSvc   *allocation.Service
}

func newTestRig(t *testing.T, cfg ServiceConfig) *testRig {
	t.Helper()
	rig := &testRig{
		woRepo:     newMemoryWORepo(),
		cardRepo:   newMemoryCardStore(),
		allocRepo:  &memoryAllocStore{},
		stock:      newFakeStock(),
		items:      &fakeItemMaster{rates: map[string]float64{"ITEM-X": 5, "CAST-FG": 0}},
		salesOrder: &fakeSalesOrders{},
	}
	rig.allocSvc = allocation.NewService(rig.allocRepo, rig.stock, nil, nil)
	rig.cardSvc = jobcard.NewService(jobcard.ServiceDeps{
		Repo:        rig.cardRepo,
		Allocations: rig.allocSvc,
	})
	rig.woSvc = NewService(ServiceDeps{
		Repo:        rig.woRepo,
		BOMs:        fakeBOMSource{details: testBOM()},
		Cards:       rig.cardSvc,
		Allocations: rig.allocSvc,
		Stock:       rig.stock,
		Items:       rig.items,
		Warehouses:  fakeWarehouseDir{},
	}, cfg)
	rig.cardSvc.SetDispatcher(rig.woSvc)
	rig.cardSvc.SetProgress(rig.woSvc)
	rig.cardSvc.SetWorkOrders(rig.woSvc)
	rig.woSvc.SetSalesOrders(rig.salesOrder)
	return rig
}

func testBOM() bom.Details {
	return bom.Details{
		ID:       77,
		ItemCode: "CAST-FG",
		Components: []bom.Component{
			{ItemCode: "ITEM-X", QtyPerUnit: 2, SourceWarehouseID: storeWarehouse},
		},
		Operations: []bom.Operation{
			{Sequence: 1, Name: "Casting", ExecutionMode: "IN_HOUSE", TimeInMinutes: 60, HourlyRate: 120},
			{Sequence: 2, Name: "Fettling", ExecutionMode: "IN_HOUSE", TimeInMinutes: 30, HourlyRate: 100},
		},
	}
}

func TestCreateMaterializesCards(t *testing.T) {
	rig := newTestRig(t, ServiceConfig{})
	ctx := context.Background()

	wo, err := rig.woSvc.Create(ctx, CreateInput{ID: "WO-100", ItemCode: "CAST-FG", BOMID: 77, Quantity: 100, Actor: "planner"})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, wo.Status)

	cards, err := rig.cardSvc.ListByWorkOrder(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	first, err := rig.cardRepo.GetBySequence(ctx, wo.ID, 1)
	require.NoError(t, err)
	require.Equal(t, jobcard.StatusReady, first.Status)
	require.InDelta(t, 100.0, first.PlannedQty, 0.0001)

	second, err := rig.cardRepo.GetBySequence(ctx, wo.ID, 2)
	require.NoError(t, err)
	require.Equal(t, jobcard.StatusDraft, second.Status)

	woItems, err := rig.woSvc.ListItems(ctx, wo.ID)
	require.NoError(t, err)
	require.Len(t, woItems, 1)
	require.InDelta(t, 200.0, woItems[0].RequiredQty, 0.0001)
}

func TestExecutionEndToEnd(t *testing.T) {
	rig := newTestRig(t, ServiceConfig{})
	ctx := context.Background()
	rig.stock.onHand[stockKey("ITEM-X", storeWarehouse)] = 500

	wo, err := rig.woSvc.Create(ctx, CreateInput{ID: "WO-100", ItemCode: "CAST-FG", BOMID: 77, Quantity: 100, SalesOrderRef: "SO-77", Actor: "planner"})
	require.NoError(t, err)

	allocs, err := rig.woSvc.AllocateMaterials(ctx, wo.ID, "planner")
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	require.InDelta(t, 200.0, allocs[0].AllocatedQty, 0.0001)
	require.InDelta(t, 200.0, rig.stock.reserved[stockKey("ITEM-X", storeWarehouse)], 0.0001)

	firstCard := wo.ID + "-OP01"
	secondCard := wo.ID + "-OP02"

	_, err = rig.cardSvc.Transition(ctx, firstCard, jobcard.StatusInProgress)
	require.NoError(t, err)

	// Shift output of 50 backflushes 50x2=100 units of raw material into
	// the allocation, without moving stock yet.
	_, err = rig.cardSvc.RecordTimeLog(ctx, firstCard, jobcard.TimeLog{DayNumber: 1, Shift: "A", CompletedQty: 50, TimeInMinutes: 60})
	require.NoError(t, err)

	alloc, err := rig.allocRepo.Get(ctx, wo.ID, "ITEM-X")
	require.NoError(t, err)
	require.InDelta(t, 100.0, alloc.ConsumedQty, 0.0001)
	require.Equal(t, allocation.StatusPartial, alloc.Status)
	require.InDelta(t, 500.0, rig.stock.onHand[stockKey("ITEM-X", storeWarehouse)], 0.0001)

	got, err := rig.woSvc.Get(ctx, wo.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, got.Status)

	// Quality sign-off releases accepted units into WIP and promotes the
	// next operation's card.
	_, err = rig.cardSvc.RecordRejection(ctx, firstCard, jobcard.RejectionEntry{DayNumber: 1, Shift: "A", AcceptedQty: 48, RejectedQty: 2, Status: jobcard.RejectionApproved})
	require.NoError(t, err)

	transfers := rig.stock.postedOf(inventory.TxManufacturingTransfer)
	require.Len(t, transfers, 1)
	require.Equal(t, "CAST-FG", transfers[0].ItemCode)
	require.Equal(t, wipWarehouse, transfers[0].WarehouseID)
	require.InDelta(t, 48.0, transfers[0].QtyIn, 0.0001)

	scraps := rig.stock.postedOf(inventory.TxScrapEntry)
	require.Len(t, scraps, 1)
	require.InDelta(t, 2.0, scraps[0].QtyIn, 0.0001)
	require.Equal(t, scrapWarehouse, scraps[0].WarehouseID)

	next, err := rig.cardSvc.Get(ctx, secondCard)
	require.NoError(t, err)
	require.Equal(t, jobcard.StatusReady, next.Status)
	require.InDelta(t, 48.0, next.PlannedQty, 0.0001)

	// Complete the first operation and run the second to the end.
	_, err = rig.cardSvc.Transition(ctx, firstCard, jobcard.StatusCompleted)
	require.NoError(t, err)
	_, err = rig.cardSvc.Transition(ctx, secondCard, jobcard.StatusInProgress)
	require.NoError(t, err)
	_, err = rig.cardSvc.RecordRejection(ctx, secondCard, jobcard.RejectionEntry{DayNumber: 2, Shift: "A", AcceptedQty: 48, Status: jobcard.RejectionApproved})
	require.NoError(t, err)
	_, err = rig.cardSvc.Transition(ctx, secondCard, jobcard.StatusCompleted)
	require.NoError(t, err)

	// Last operation's accepted output lands in finished goods.
	receipts := rig.stock.postedOf(inventory.TxManufacturingReceipt)
	require.Len(t, receipts, 1)
	require.Equal(t, fgWarehouse, receipts[0].WarehouseID)
	require.InDelta(t, 48.0, receipts[0].QtyIn, 0.0001)

	// Completion finalized the allocation: consumed quantity deducted,
	// reservation fully released, remainder recorded as returned.
	got, err = rig.woSvc.Get(ctx, wo.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)

	alloc, err = rig.allocRepo.Get(ctx, wo.ID, "ITEM-X")
	require.NoError(t, err)
	require.Equal(t, allocation.StatusCompleted, alloc.Status)
	require.InDelta(t, 100.0, alloc.ReturnedQty, 0.0001)
	require.InDelta(t, alloc.AllocatedQty, alloc.ConsumedQty+alloc.WastedQty+alloc.ReturnedQty, 0.0001)
	require.InDelta(t, 0.0, rig.stock.reserved[stockKey("ITEM-X", storeWarehouse)], 0.0001)
	require.InDelta(t, 400.0, rig.stock.onHand[stockKey("ITEM-X", storeWarehouse)], 0.0001)

	// Cost roll-up: operating 120 (60min at 120/h) on op 1 plus material
	// 100 x 5, with op 2 logging no machine time. The completed unit cost
	// is written back to the item master.
	require.InDelta(t, 620.0, got.TotalCost, 0.0001)
	require.InDelta(t, 6.2, got.UnitCost, 0.0001)
	require.InDelta(t, 6.2, rig.items.rates["CAST-FG"], 0.0001)

	// Completion pushed the status back to the originating sales order.
	require.Equal(t, []string{"SO-77"}, rig.salesOrder.synced)
}

func TestBackflushRequiresAllocation(t *testing.T) {
	rig := newTestRig(t, ServiceConfig{})
	ctx := context.Background()
	rig.stock.onHand[stockKey("ITEM-X", storeWarehouse)] = 500

	wo, err := rig.woSvc.Create(ctx, CreateInput{ID: "WO-200", ItemCode: "CAST-FG", BOMID: 77, Quantity: 100})
	require.NoError(t, err)

	card, err := rig.cardRepo.GetBySequence(ctx, wo.ID, 1)
	require.NoError(t, err)

	err = rig.woSvc.ApplyDeltas(ctx, card, jobcard.Totals{Produced: 10})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestBackflushDirectDeductionFallback(t *testing.T) {
	rig := newTestRig(t, ServiceConfig{DirectDeductionFallback: true})
	ctx := context.Background()
	rig.stock.onHand[stockKey("ITEM-X", storeWarehouse)] = 500

	wo, err := rig.woSvc.Create(ctx, CreateInput{ID: "WO-300", ItemCode: "CAST-FG", BOMID: 77, Quantity: 100})
	require.NoError(t, err)

	card, err := rig.cardRepo.GetBySequence(ctx, wo.ID, 1)
	require.NoError(t, err)

	err = rig.woSvc.ApplyDeltas(ctx, card, jobcard.Totals{Produced: 10})
	require.NoError(t, err)

	// 10/100 x 200 = 20 units deducted straight from the store.
	require.InDelta(t, 480.0, rig.stock.onHand[stockKey("ITEM-X", storeWarehouse)], 0.0001)
	issues := rig.stock.postedOf(inventory.TxManufacturingIssue)
	require.Len(t, issues, 1)
	require.InDelta(t, 20.0, issues[0].QtyOut, 0.0001)

	woItems, err := rig.woSvc.ListItems(ctx, wo.ID)
	require.NoError(t, err)
	require.InDelta(t, 20.0, woItems[0].ConsumedQty, 0.0001)
}

func TestSubAssemblyGate(t *testing.T) {
	rig := newTestRig(t, ServiceConfig{})
	ctx := context.Background()
	rig.stock.onHand[stockKey("ITEM-X", storeWarehouse)] = 1000

	parent, err := rig.woSvc.Create(ctx, CreateInput{ID: "WO-P", ItemCode: "CAST-FG", BOMID: 77, Quantity: 10})
	require.NoError(t, err)
	child, err := rig.woSvc.Create(ctx, CreateInput{ID: "WO-C", ItemCode: "CAST-FG", BOMID: 77, Quantity: 5, ParentID: parent.ID})
	require.NoError(t, err)

	_, err = rig.woSvc.AllocateMaterials(ctx, parent.ID, "planner")
	require.NoError(t, err)

	// The child work order is still open, so the parent's first card
	// cannot start.
	_, err = rig.cardSvc.Transition(ctx, parent.ID+"-OP01", jobcard.StatusInProgress)
	var stErr *jobcard.StateTransitionError
	require.ErrorAs(t, err, &stErr)
	require.Contains(t, stErr.Reason, "sub-assembly")

	require.NoError(t, rig.woRepo.UpdateStatus(ctx, child.ID, StatusCompleted))
	_, err = rig.cardSvc.Transition(ctx, parent.ID+"-OP01", jobcard.StatusInProgress)
	require.NoError(t, err)
}
