package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/types"
)

func withExpiry(r *Record, days int) *Record {
	exp := now.AddDate(0, 0, days)
	r.ExpiryDate = &exp
	return r
}

func TestClassify(t *testing.T) {
	low := newTestRecord(5)
	low.MinStockLevel = 10

	empty := newTestRecord(0)

	quarantined := newTestRecord(50)
	quarantined.Status = StatusQuarantine

	tests := []struct {
		name string
		rec  *Record
		want []AlertType
	}{
		{"healthy", newTestRecord(50), nil},
		{"low stock", low, []AlertType{AlertLowStock}},
		{"out of stock", empty, []AlertType{AlertOutOfStock}},
		{"expiring soon", withExpiry(newTestRecord(50), 10), []AlertType{AlertExpiringSoon}},
		{"expired by date", withExpiry(newTestRecord(50), -1), []AlertType{AlertExpired}},
		{"quarantine", quarantined, []AlertType{AlertQuarantine}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.rec, now, DefaultExpiryAlertDays))
		})
	}
}

func TestComputeAlerts_CriticalFirst(t *testing.T) {
	low := newTestRecord(5)
	low.MinStockLevel = 10
	expired := withExpiry(newTestRecord(50), -3)

	alerts := ComputeAlerts([]*Record{low, expired}, now, 30)

	require.Len(t, alerts, 2)
	assert.Equal(t, AlertExpired, alerts[0].Type)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
	assert.Equal(t, AlertLowStock, alerts[1].Type)
	assert.NotEmpty(t, alerts[1].Message)
}

func TestComputeStatistics(t *testing.T) {
	a := newTestRecord(100)
	_, err := a.Reserve(40, "", "", "u1", now)
	require.NoError(t, err)
	b := withExpiry(newTestRecord(10), 5)

	stats := ComputeStatistics([]*Record{a, b}, now, 30)

	assert.Equal(t, 2, stats.TotalRecords)
	assert.Equal(t, int64(110), stats.TotalQuantity)
	assert.Equal(t, int64(40), stats.TotalReserved)
	assert.Equal(t, int64(70), stats.TotalAvailable)
	assert.True(t, stats.TotalValue.Equal(types.MustMoney("275")), stats.TotalValue.String())
	assert.Equal(t, 2, stats.ByStatus[StatusActive])
	assert.Equal(t, 1, stats.ExpiringSoonCount)
}

func TestComputeValuation_GroupsByWarehouse(t *testing.T) {
	wh := id.New()
	a := NewRecord(id.New(), wh, "A", 10, types.MustMoney("1.25"), now)
	b := NewRecord(id.New(), wh, "B", 4, types.MustMoney("10"), now)
	other := NewRecord(id.New(), id.New(), "C", 2, types.MustMoney("3.333"), now)
	expired := NewRecord(id.New(), wh, "D", 100, types.MustMoney("1"), now)
	expired.Status = StatusExpired

	v := ComputeValuation([]*Record{a, b, other, expired}, now)

	require.Len(t, v.Warehouses, 2)
	assert.Equal(t, wh, v.Warehouses[0].WarehouseID)
	assert.Len(t, v.Warehouses[0].Lines, 2)
	assert.True(t, v.Warehouses[0].TotalValue.Equal(types.MustMoney("52.5")))
	assert.True(t, v.Warehouses[1].TotalValue.Equal(types.MustMoney("6.67")))
	assert.Equal(t, int64(16), v.TotalQuantity)
	assert.True(t, v.GrandTotal.Equal(types.MustMoney("59.17")), v.GrandTotal.String())
}
