package inventory

import (
	"fmt"
	"sort"
	"time"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/types"
)

// DefaultExpiryAlertDays is the expiring-soon window.
const DefaultExpiryAlertDays = 30

// Statistics summarizes a set of records.
type Statistics struct {
	TotalRecords      int            `json:"totalRecords"`
	TotalQuantity     int64          `json:"totalQuantity"`
	TotalReserved     int64          `json:"totalReserved"`
	TotalAvailable    int64          `json:"totalAvailable"`
	TotalValue        types.Money    `json:"totalValue"`
	ByStatus          map[Status]int `json:"byStatus"`
	LowStockCount     int            `json:"lowStockCount"`
	OutOfStockCount   int            `json:"outOfStockCount"`
	ExpiringSoonCount int            `json:"expiringSoonCount"`
	ExpiredCount      int            `json:"expiredCount"`
}

// ComputeStatistics aggregates records as of now.
func ComputeStatistics(records []*Record, now time.Time, alertDays int) Statistics {
	stats := Statistics{
		TotalValue: types.Zero(),
		ByStatus: map[Status]int{
			StatusActive:     0,
			StatusQuarantine: 0,
			StatusExpired:    0,
		},
	}

	for _, r := range records {
		stats.TotalRecords++
		stats.TotalQuantity += r.Quantity
		stats.TotalReserved += r.ReservedQuantity
		stats.TotalAvailable += r.AvailableQuantity
		stats.TotalValue = stats.TotalValue.Add(r.Value())
		stats.ByStatus[r.Status]++

		for _, kind := range classify(r, now, alertDays) {
			switch kind {
			case AlertLowStock:
				stats.LowStockCount++
			case AlertOutOfStock:
				stats.OutOfStockCount++
			case AlertExpiringSoon:
				stats.ExpiringSoonCount++
			case AlertExpired:
				stats.ExpiredCount++
			}
		}
	}

	stats.TotalValue = types.RoundTotal(stats.TotalValue)
	return stats
}

// AlertType names a stock condition worth attention.
type AlertType string

const (
	AlertLowStock     AlertType = "low_stock"
	AlertOutOfStock   AlertType = "out_of_stock"
	AlertExpiringSoon AlertType = "expiring_soon"
	AlertExpired      AlertType = "expired"
	AlertQuarantine   AlertType = "quarantine"
)

// Severity of an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severities = map[AlertType]Severity{
	AlertLowStock:     SeverityWarning,
	AlertOutOfStock:   SeverityCritical,
	AlertExpiringSoon: SeverityWarning,
	AlertExpired:      SeverityCritical,
	AlertQuarantine:   SeverityInfo,
}

// Alert is a single condition on a single record.
type Alert struct {
	Type              AlertType  `json:"type"`
	Severity          Severity   `json:"severity"`
	RecordID          id.ID      `json:"recordId"`
	ProductCode       string     `json:"productCode"`
	ProductName       string     `json:"productName"`
	WarehouseID       id.ID      `json:"warehouseId"`
	BatchNumber       string     `json:"batchNumber"`
	AvailableQuantity int64      `json:"availableQuantity"`
	MinStockLevel     int64      `json:"minStockLevel"`
	ExpiryDate        *time.Time `json:"expiryDate,omitempty"`
	DaysToExpiry      *int       `json:"daysToExpiry,omitempty"`
	Message           string     `json:"message"`
}

// classify returns the alert types that apply to r.
func classify(r *Record, now time.Time, alertDays int) []AlertType {
	if alertDays <= 0 {
		alertDays = DefaultExpiryAlertDays
	}

	var out []AlertType
	switch {
	case r.Status == StatusExpired || r.IsExpiredAt(now):
		// expired stock is not counted against stock levels
		return append(out, AlertExpired)
	case r.ExpiryDate != nil && !r.ExpiryDate.After(now.AddDate(0, 0, alertDays)):
		out = append(out, AlertExpiringSoon)
	}

	if r.Status == StatusQuarantine {
		return append(out, AlertQuarantine)
	}

	switch {
	case r.AvailableQuantity == 0:
		out = append(out, AlertOutOfStock)
	case r.MinStockLevel > 0 && r.AvailableQuantity <= r.MinStockLevel:
		out = append(out, AlertLowStock)
	}
	return out
}

// ComputeAlerts lists alerts, most severe first, then by expiry.
func ComputeAlerts(records []*Record, now time.Time, alertDays int) []Alert {
	alerts := make([]Alert, 0)
	for _, r := range records {
		for _, kind := range classify(r, now, alertDays) {
			alerts = append(alerts, newAlert(kind, r, now))
		}
	}

	rank := map[Severity]int{SeverityCritical: 0, SeverityWarning: 1, SeverityInfo: 2}
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if rank[a.Severity] != rank[b.Severity] {
			return rank[a.Severity] < rank[b.Severity]
		}
		if a.ExpiryDate != nil && b.ExpiryDate != nil {
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		return a.ExpiryDate != nil && b.ExpiryDate == nil
	})
	return alerts
}

func newAlert(kind AlertType, r *Record, now time.Time) Alert {
	a := Alert{
		Type:              kind,
		Severity:          severities[kind],
		RecordID:          r.ID,
		ProductCode:       r.ProductCode,
		ProductName:       r.ProductName,
		WarehouseID:       r.WarehouseID,
		BatchNumber:       r.BatchNumber,
		AvailableQuantity: r.AvailableQuantity,
		MinStockLevel:     r.MinStockLevel,
		ExpiryDate:        r.ExpiryDate,
	}
	if r.ExpiryDate != nil {
		days := int(r.ExpiryDate.Sub(now).Hours() / 24)
		a.DaysToExpiry = &days
	}

	switch kind {
	case AlertLowStock:
		a.Message = fmt.Sprintf("%s batch %s: %d available, minimum %d", r.ProductCode, r.BatchNumber, r.AvailableQuantity, r.MinStockLevel)
	case AlertOutOfStock:
		a.Message = fmt.Sprintf("%s batch %s: nothing available", r.ProductCode, r.BatchNumber)
	case AlertExpiringSoon:
		a.Message = fmt.Sprintf("%s batch %s expires in %d days", r.ProductCode, r.BatchNumber, *a.DaysToExpiry)
	case AlertExpired:
		a.Message = fmt.Sprintf("%s batch %s has expired", r.ProductCode, r.BatchNumber)
	case AlertQuarantine:
		a.Message = fmt.Sprintf("%s batch %s is in quarantine", r.ProductCode, r.BatchNumber)
	}
	return a
}

// ValuationLine values one record.
type ValuationLine struct {
	RecordID    id.ID       `json:"recordId"`
	ProductCode string      `json:"productCode"`
	ProductName string      `json:"productName"`
	BatchNumber string      `json:"batchNumber"`
	Status      Status      `json:"status"`
	Quantity    int64       `json:"quantity"`
	UnitCost    types.Money `json:"unitCost"`
	Value       types.Money `json:"value"`
}

// WarehouseValuation groups lines of one warehouse.
type WarehouseValuation struct {
	WarehouseID   id.ID           `json:"warehouseId"`
	Lines         []ValuationLine `json:"lines"`
	TotalQuantity int64           `json:"totalQuantity"`
	TotalValue    types.Money     `json:"totalValue"`
}

// Valuation is quantity times unit cost over non-expired stock.
type Valuation struct {
	GeneratedAt   time.Time            `json:"generatedAt"`
	Warehouses    []WarehouseValuation `json:"warehouses"`
	TotalQuantity int64                `json:"totalQuantity"`
	GrandTotal    types.Money          `json:"grandTotal"`
}

// ComputeValuation values records, grouping by warehouse in first-seen order.
// Expired records and empty batches carry no value and are left out.
func ComputeValuation(records []*Record, now time.Time) Valuation {
	v := Valuation{GeneratedAt: now, Warehouses: []WarehouseValuation{}, GrandTotal: types.Zero()}
	index := make(map[id.ID]int)

	for _, r := range records {
		if r.Status == StatusExpired || r.Quantity == 0 {
			continue
		}
		i, ok := index[r.WarehouseID]
		if !ok {
			i = len(v.Warehouses)
			index[r.WarehouseID] = i
			v.Warehouses = append(v.Warehouses, WarehouseValuation{WarehouseID: r.WarehouseID, TotalValue: types.Zero()})
		}
		value := r.Value()
		wh := &v.Warehouses[i]
		wh.Lines = append(wh.Lines, ValuationLine{
			RecordID:    r.ID,
			ProductCode: r.ProductCode,
			ProductName: r.ProductName,
			BatchNumber: r.BatchNumber,
			Status:      r.Status,
			Quantity:    r.Quantity,
			UnitCost:    r.UnitCost,
			Value:       types.RoundTotal(value),
		})
		wh.TotalQuantity += r.Quantity
		wh.TotalValue = wh.TotalValue.Add(value)
		v.TotalQuantity += r.Quantity
		v.GrandTotal = v.GrandTotal.Add(value)
	}

	for i := range v.Warehouses {
		v.Warehouses[i].TotalValue = types.RoundTotal(v.Warehouses[i].TotalValue)
	}
	v.GrandTotal = types.RoundTotal(v.GrandTotal)
	return v
}
