package approval_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/apperror"
	appctx "pharmaflow/internal/core/context"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/numerator"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/core/types"
	"pharmaflow/internal/domain/approval"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/domain/events"
	"pharmaflow/internal/domain/inventory"
	"pharmaflow/internal/domain/qc"
	"pharmaflow/internal/infrastructure/lock"
	"pharmaflow/internal/infrastructure/storage/memory"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	store     *memory.Store
	qc        *qc.Service
	inventory *inventory.Service
	svc       *approval.Service
	warehouse *warehouse.Warehouse
	ctx       context.Context
}

type harnessOption func(cfg *approval.Config)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	store := memory.New()
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "keeper-1"})
	locker := lock.NewLocal(time.Second)
	numbers := numerator.NewMemory()
	clock := func() time.Time { return now }

	p := product.NewProduct("AMOX-250", "Amoxicillin 250mg", "box")
	p.MinStockLevel = 5
	require.NoError(t, store.Products().Create(ctx, p))
	wh := warehouse.NewWarehouse("WH-MAIN", "Main", warehouse.TypeMain)
	require.NoError(t, store.Warehouses().Create(ctx, wh))

	qcSvc := qc.NewService(qc.Config{
		Repo: store.QC(), Products: store.Products(), Numerator: numbers,
		TxManager: store.TxManager(), Locker: locker, Authorizer: security.AllowAll{},
		Events: store.Publisher(), Audit: store.Recorder(), Clock: clock,
	})
	invSvc := inventory.NewService(inventory.Config{
		Repo: store.Inventory(), Products: store.Products(), Warehouses: store.Warehouses(),
		TxManager: store.TxManager(), Locker: locker, Authorizer: security.AllowAll{},
		Events: store.Publisher(), Audit: store.Recorder(), Clock: clock,
	})

	cfg := approval.Config{
		Repo:       store.Approvals(),
		QC:         qcSvc,
		Warehouses: store.Warehouses(),
		Products:   store.Products(),
		Stock:      invSvc,
		Numerator:  numbers,
		TxManager:  store.TxManager(),
		Locker:     locker,
		Authorizer: security.AllowAll{},
		Events:     store.Publisher(),
		Audit:      store.Recorder(),
		Clock:      clock,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &harness{
		store:     store,
		qc:        qcSvc,
		inventory: invSvc,
		svc:       approval.NewService(cfg),
		warehouse: wh,
		ctx:       ctx,
	}
}

// approvedQC runs a QC record with the given item results through approval.
func (h *harness) approvedQC(t *testing.T, batch string, statuses ...qc.ItemStatus) *qc.Record {
	t.Helper()
	rec, err := h.qc.Create(h.ctx, qc.CreateInput{
		QCType: qc.TypeIncoming,
		Products: []qc.ProductInput{{
			ProductCode: "AMOX-250",
			BatchNumber: batch,
			ReceivedQty: int64(len(statuses)),
			UnitCost:    types.MustMoney("2.00"),
		}},
	})
	require.NoError(t, err)
	for i, st := range statuses {
		in := qc.ItemResult{ItemNumber: i + 1, Status: st}
		if st == qc.ItemFailed {
			in.QCReasons = []string{"damaged"}
		}
		_, err := h.qc.RecordItemResult(h.ctx, rec.ID, in)
		require.NoError(t, err)
	}
	_, err = h.qc.Submit(h.ctx, rec.ID)
	require.NoError(t, err)
	rec, err = h.qc.Approve(h.ctx, rec.ID, "")
	require.NoError(t, err)
	return rec
}

func (h *harness) submitted(t *testing.T, batch string, statuses ...qc.ItemStatus) *approval.Record {
	t.Helper()
	src := h.approvedQC(t, batch, statuses...)
	rec, err := h.svc.Create(h.ctx, approval.CreateInput{QCRecordID: src.ID, WarehouseID: h.warehouse.ID})
	require.NoError(t, err)
	_, err = h.svc.AssignStorage(h.ctx, rec.ID, approval.StorageInput{StorageLocation: "A-01"})
	require.NoError(t, err)
	rec, err = h.svc.Submit(h.ctx, rec.ID)
	require.NoError(t, err)
	return rec
}

func TestService_Create(t *testing.T) {
	h := newHarness(t)
	src := h.approvedQC(t, "LOT-1", qc.ItemPassed, qc.ItemFailed, qc.ItemPassed)

	rec, err := h.svc.Create(h.ctx, approval.CreateInput{QCRecordID: src.ID, WarehouseID: h.warehouse.ID})
	require.NoError(t, err)

	assert.Equal(t, "WA-2026-00001", rec.ApprovalNumber)
	assert.Equal(t, approval.StatusPending, rec.Status)
	assert.Equal(t, int64(2), rec.Products[0].ApprovedQty)
	assert.Equal(t, "keeper-1", rec.CreatedBy)

	_, err = h.svc.Create(h.ctx, approval.CreateInput{QCRecordID: src.ID, WarehouseID: h.warehouse.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateApproval))
}

func TestService_CreateRequiresApprovedQC(t *testing.T) {
	h := newHarness(t)
	open, err := h.qc.Create(h.ctx, qc.CreateInput{
		QCType:   qc.TypeIncoming,
		Products: []qc.ProductInput{{ProductCode: "AMOX-250", BatchNumber: "L", ReceivedQty: 1}},
	})
	require.NoError(t, err)

	_, err = h.svc.Create(h.ctx, approval.CreateInput{QCRecordID: open.ID, WarehouseID: h.warehouse.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodeQCNotApproved))

	_, err = h.svc.Create(h.ctx, approval.CreateInput{QCRecordID: id.New(), WarehouseID: h.warehouse.ID})
	assert.True(t, apperror.IsNotFound(err))

	failed := h.approvedQC(t, "LOT-F", qc.ItemFailed)
	_, err = h.svc.Create(h.ctx, approval.CreateInput{QCRecordID: failed.ID, WarehouseID: h.warehouse.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodeQCNotApproved))
}

func TestService_ConcurrentCreateAllowsOne(t *testing.T) {
	h := newHarness(t)
	src := h.approvedQC(t, "LOT-1", qc.ItemPassed)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		created    int
		duplicates int
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Create(h.ctx, approval.CreateInput{QCRecordID: src.ID, WarehouseID: h.warehouse.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperror.HasCode(err, apperror.CodeDuplicateApproval):
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 4, duplicates)
}

func TestService_ApproveCreatesInventory(t *testing.T) {
	h := newHarness(t)
	rec := h.submitted(t, "LOT-1", qc.ItemPassed, qc.ItemPassed, qc.ItemFailed)

	approved, err := h.svc.Approve(h.ctx, rec.ID, "stored")
	require.NoError(t, err)

	assert.Equal(t, approval.StatusApproved, approved.Status)
	assert.True(t, approved.InventoryCreated)
	require.Len(t, approved.InventoryRecordIDs, 1)

	inv, err := h.inventory.Get(h.ctx, approved.InventoryRecordIDs[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), inv.Quantity)
	assert.Equal(t, "LOT-1", inv.BatchNumber)
	assert.Equal(t, "A-01", inv.StorageLocation)
	assert.Equal(t, int64(5), inv.MinStockLevel)
	require.NotNil(t, inv.SourceApprovalID)
	assert.Equal(t, approved.ID, *inv.SourceApprovalID)

	_, err = h.svc.Approve(h.ctx, rec.ID, "again")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotSubmitted))

	var approvedEvents int
	for _, ev := range h.store.Events() {
		if ev.Type == events.WarehouseApprovalApproved {
			approvedEvents++
		}
	}
	assert.Equal(t, 1, approvedEvents)
}

func TestService_ApproveIncrementsExistingBatch(t *testing.T) {
	h := newHarness(t)
	first := h.submitted(t, "LOT-1", qc.ItemPassed)
	second := h.submitted(t, "LOT-1", qc.ItemPassed, qc.ItemPassed)

	a, err := h.svc.Approve(h.ctx, first.ID, "")
	require.NoError(t, err)
	b, err := h.svc.Approve(h.ctx, second.ID, "")
	require.NoError(t, err)

	assert.Equal(t, a.InventoryRecordIDs, b.InventoryRecordIDs)
	inv, err := h.inventory.Get(h.ctx, a.InventoryRecordIDs[0])
	require.NoError(t, err)
	assert.Equal(t, int64(3), inv.Quantity)
}

type failingStock struct{}

func (failingStock) LockReceipts(context.Context, []string, ...inventory.BatchRef) (func(), error) {
	return func() {}, nil
}

func (failingStock) ReceiveStock(context.Context, inventory.ReceiveInput) (*inventory.Record, error) {
	return nil, errors.New("disk full")
}

func TestService_ApproveRollsBackWhenInventoryFails(t *testing.T) {
	h := newHarness(t, func(cfg *approval.Config) { cfg.Stock = failingStock{} })
	rec := h.submitted(t, "LOT-1", qc.ItemPassed)

	_, err := h.svc.Approve(h.ctx, rec.ID, "")
	require.Error(t, err)

	got, err := h.svc.Get(h.ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusSubmitted, got.Status)
	assert.False(t, got.InventoryCreated)
	assert.Empty(t, got.InventoryRecordIDs)

	for _, ev := range h.store.Events() {
		assert.NotEqual(t, events.WarehouseApprovalApproved, ev.Type)
	}
}

func TestService_RejectFreesQCRecord(t *testing.T) {
	h := newHarness(t)
	rec := h.submitted(t, "LOT-1", qc.ItemPassed)

	_, err := h.svc.Reject(h.ctx, rec.ID, " ")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	rejected, err := h.svc.Reject(h.ctx, rec.ID, "wrong zone")
	require.NoError(t, err)
	assert.Equal(t, approval.StatusRejected, rejected.Status)

	again, err := h.svc.Create(h.ctx, approval.CreateInput{QCRecordID: rec.QCRecordID, WarehouseID: h.warehouse.ID})
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPending, again.Status)
}

func TestService_BulkAssignAndUpdate(t *testing.T) {
	h := newHarness(t)
	open := h.submitted(t, "LOT-1", qc.ItemPassed)
	done := h.submitted(t, "LOT-2", qc.ItemPassed)
	_, err := h.svc.Approve(h.ctx, done.ID, "")
	require.NoError(t, err)

	res, err := h.svc.BulkAssign(h.ctx, []string{open.ID.String(), done.ID.String()}, approval.AssignInput{AssignedTo: "keeper-2"})
	require.NoError(t, err)
	assert.Equal(t, 207, res.HTTPStatus())
	assert.Equal(t, apperror.CodeRecordClosed, res.Results[1].Error.Code)

	other := id.New()
	res, err = h.svc.BulkUpdate(h.ctx, []string{open.ID.String()}, approval.UpdateInput{WarehouseID: &other})
	require.NoError(t, err)
	assert.Equal(t, 400, res.HTTPStatus())
	assert.Equal(t, apperror.CodeImmutableField, res.Results[0].Error.Code)
}

func TestService_Statistics(t *testing.T) {
	h := newHarness(t)
	rec := h.submitted(t, "LOT-1", qc.ItemPassed)
	_, err := h.svc.Approve(h.ctx, rec.ID, "")
	require.NoError(t, err)
	h.submitted(t, "LOT-2", qc.ItemPassed)

	stats, err := h.svc.Statistics(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[approval.StatusApproved])
	assert.Equal(t, 1, stats.ByStatus[approval.StatusSubmitted])
	assert.Equal(t, 1, stats.InventoryCreated)
}
