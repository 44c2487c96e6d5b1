package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/apperror"
	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/types"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func newTestRecord(qty int64) *Record {
	return NewRecord(id.New(), id.New(), "B-001", qty, types.MustMoney("2.50"), now)
}

func TestRecord_ReserveAndRelease(t *testing.T) {
	r := newTestRecord(100)

	_, err := r.Reserve(30, "order", "SO-1", "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(30), r.ReservedQuantity)
	assert.Equal(t, int64(70), r.AvailableQuantity)

	_, err = r.Reserve(80, "order", "SO-2", "u1", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientAvailable))
	assert.Equal(t, int64(70), r.AvailableQuantity, "failed reserve leaves the record unchanged")

	_, err = r.Release(40, "cancel", nil, "u1", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeExceedsReserved))

	entry, err := r.Release(30, "cancel", nil, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, ReservationRelease, entry.Type)
	assert.Equal(t, int64(100), r.AvailableQuantity)
	assert.Len(t, r.Reservations, 2)
	require.NoError(t, r.CheckInvariant())
}

func TestRecord_Adjust(t *testing.T) {
	tests := []struct {
		name     string
		reserved int64
		delta    int64
		reason   AdjustmentReason
		wantCode string
		wantQty  int64
	}{
		{name: "damage", delta: -10, reason: ReasonDamage, wantQty: 90},
		{name: "stock count up", delta: 5, reason: ReasonStockCount, wantQty: 105},
		{name: "below zero", delta: -101, reason: ReasonLoss, wantCode: apperror.CodeNegativeQuantity},
		{name: "below reserved", reserved: 50, delta: -60, reason: ReasonLoss, wantCode: apperror.CodeBelowReserved},
		{name: "internal reason", delta: 5, reason: ReasonReceipt, wantCode: apperror.CodeValidation},
		{name: "zero delta", delta: 0, reason: ReasonCorrection, wantCode: apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRecord(100)
			if tt.reserved > 0 {
				_, err := r.Reserve(tt.reserved, "", "", "u1", now)
				require.NoError(t, err)
			}

			adj, err := r.Adjust(tt.delta, tt.reason, "", "u1", now)
			if tt.wantCode != "" {
				assert.True(t, apperror.HasCode(err, tt.wantCode), "got %v", err)
				assert.Equal(t, int64(100), r.Quantity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQty, r.Quantity)
			assert.Equal(t, int64(100), adj.QuantityBefore)
			assert.Equal(t, tt.wantQty, adj.QuantityAfter)
			assert.Equal(t, r.ID, adj.RecordID)
		})
	}
}

func TestRecord_NotActive(t *testing.T) {
	r := newTestRecord(10)
	require.NoError(t, r.transition(StatusQuarantine))

	_, err := r.Reserve(1, "", "", "u1", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeInventoryNotActive))

	_, err = r.TransferOut(1, "", "u1", now)
	assert.True(t, apperror.HasCode(err, apperror.CodeInventoryNotActive))
}

func TestRecord_Transitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusActive, StatusQuarantine, true},
		{StatusQuarantine, StatusActive, true},
		{StatusActive, StatusExpired, true},
		{StatusQuarantine, StatusExpired, true},
		{StatusExpired, StatusActive, false},
		{StatusExpired, StatusQuarantine, false},
		{StatusExpired, StatusExpired, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			r := newTestRecord(1)
			r.Status = tt.from
			err := r.transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, r.Status)
				return
			}
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatusTransition))
		})
	}
}

func TestRecord_ApplyUpdate(t *testing.T) {
	t.Run("identity fields are immutable", func(t *testing.T) {
		r := newTestRecord(10)
		other := id.New()
		batch := "B-999"

		_, err := r.ApplyUpdate(UpdateInput{WarehouseID: &other}, "u1", now)
		assert.True(t, apperror.HasCode(err, apperror.CodeImmutableField))

		_, err = r.ApplyUpdate(UpdateInput{BatchNumber: &batch}, "u1", now)
		assert.True(t, apperror.HasCode(err, apperror.CodeImmutableField))

		same := r.BatchNumber
		_, err = r.ApplyUpdate(UpdateInput{BatchNumber: &same}, "u1", now)
		assert.NoError(t, err)
	})

	t.Run("quantity edit is a correction", func(t *testing.T) {
		r := newTestRecord(10)
		qty := int64(14)
		location := "A-01-02"

		adj, err := r.ApplyUpdate(UpdateInput{Quantity: &qty, StorageLocation: &location}, "u1", now)
		require.NoError(t, err)
		require.NotNil(t, adj)
		assert.Equal(t, ReasonCorrection, adj.Reason)
		assert.Equal(t, int64(4), adj.Delta)
		assert.Equal(t, int64(14), r.AvailableQuantity)
		assert.Equal(t, "A-01-02", r.StorageLocation)
	})

	t.Run("expiry before manufacture", func(t *testing.T) {
		r := newTestRecord(10)
		mfg := now
		exp := now.AddDate(0, 0, -1)
		_, err := r.ApplyUpdate(UpdateInput{ManufactureDate: &mfg, ExpiryDate: &exp}, "u1", now)
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	})
}

func TestMovingAverage(t *testing.T) {
	got := movingAverage(types.MustMoney("2.00"), 10, types.MustMoney("3.00"), 30)
	assert.True(t, got.Equal(types.MustMoney("2.75")), got.String())

	assert.True(t, movingAverage(types.MustMoney("2.00"), 0, types.MustMoney("3.00"), 5).Equal(types.MustMoney("3.00")))
	assert.True(t, movingAverage(types.MustMoney("2.00"), 5, types.Zero(), 5).Equal(types.MustMoney("2.00")))
}
