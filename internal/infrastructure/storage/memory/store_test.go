package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/types"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/events"
	"pharmaflow/internal/domain/inventory"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newRecord(batch string, qty int64) *inventory.Record {
	return inventory.NewRecord(id.New(), id.New(), batch, qty, types.MustMoney("1.50"), now)
}

func TestTxManager_RollbackRestoresTables(t *testing.T) {
	s := New()
	repo := s.Inventory()
	ctx := context.Background()

	kept := newRecord("LOT-1", 10)
	require.NoError(t, repo.Create(ctx, kept))

	boom := errors.New("boom")
	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Create(ctx, newRecord("LOT-2", 5)))
		kept.Quantity = 99
		require.NoError(t, repo.Update(ctx, kept))
		require.NoError(t, s.Publisher().Publish(ctx, events.Event{Type: events.InventoryAdjusted}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := repo.FindAll(ctx, inventory.Criteria{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(10), all[0].Quantity)
	assert.Empty(t, s.Events())
}

func TestTxManager_NestedCallJoinsOuter(t *testing.T) {
	s := New()
	repo := s.Inventory()
	ctx := context.Background()

	err := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		// the inner call commits nothing on its own
		inner := s.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
			return repo.Create(ctx, newRecord("LOT-1", 1))
		})
		require.NoError(t, inner)
		return errors.New("outer fails")
	})
	require.Error(t, err)

	all, err := repo.FindAll(ctx, inventory.Criteria{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestInventoryRepo_VersionConflict(t *testing.T) {
	s := New()
	repo := s.Inventory()
	ctx := context.Background()

	rec := newRecord("LOT-1", 10)
	require.NoError(t, repo.Create(ctx, rec))

	a, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, rec.ID)
	require.NoError(t, err)

	a.Quantity = 8
	require.NoError(t, repo.Update(ctx, a))
	assert.Equal(t, 2, a.Version)

	b.Quantity = 7
	err = repo.Update(ctx, b)
	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentModification))
}

func TestInventoryRepo_DuplicateBatch(t *testing.T) {
	s := New()
	repo := s.Inventory()
	ctx := context.Background()

	rec := newRecord("LOT-1", 10)
	require.NoError(t, repo.Create(ctx, rec))

	dup := inventory.NewRecord(rec.ProductID, rec.WarehouseID, "LOT-1", 1, types.Zero(), now)
	err := repo.Create(ctx, dup)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateBatch))

	found, err := repo.FindByBatch(ctx, rec.ProductID, rec.WarehouseID, "LOT-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	_, err = repo.FindByBatch(ctx, rec.ProductID, rec.WarehouseID, "LOT-9")
	assert.True(t, apperror.IsNotFound(err))
}

func TestInventoryRepo_ListPaginatesAndSorts(t *testing.T) {
	s := New()
	repo := s.Inventory()
	ctx := context.Background()

	for i, batch := range []string{"C", "A", "B"} {
		rec := newRecord(batch, int64(i+1))
		rec.ProductCode = "PARA-500"
		require.NoError(t, repo.Create(ctx, rec))
	}

	res, err := repo.List(ctx, inventory.ListFilter{
		ListFilter: domain.ListFilter{Page: 1, Limit: 2, Sort: "batch_number", Order: domain.SortAsc},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "A", res.Items[0].BatchNumber)
	assert.Equal(t, "B", res.Items[1].BatchNumber)
	assert.Equal(t, int64(3), res.Total)

	res, err = repo.List(ctx, inventory.ListFilter{
		ListFilter: domain.ListFilter{Page: 1, Limit: 10, Search: "zzz"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}
