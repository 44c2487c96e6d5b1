package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/types"
	"pharmaflow/internal/domain/inventory"
)

func TestWriteValuationXLSX(t *testing.T) {
	wh := id.New()
	v := inventory.Valuation{
		GeneratedAt: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		Warehouses: []inventory.WarehouseValuation{{
			WarehouseID: wh,
			Lines: []inventory.ValuationLine{{
				RecordID:    id.New(),
				ProductCode: "AMOX-250",
				ProductName: "Amoxicillin 250mg",
				BatchNumber: "B1",
				Status:      inventory.StatusActive,
				Quantity:    4,
				UnitCost:    types.MustMoney("2.5"),
				Value:       types.MustMoney("10"),
			}},
			TotalQuantity: 4,
			TotalValue:    types.MustMoney("10"),
		}},
		TotalQuantity: 4,
		GrandTotal:    types.MustMoney("10"),
	}

	var buf bytes.Buffer
	err := WriteValuationXLSX(&buf, v, func(inventory.WarehouseValuation) string { return "WH-MAIN" })
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{valuationSheet}, f.GetSheetList())

	rows, err := f.GetRows(valuationSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Product Code", rows[0][1])
	assert.Equal(t, "WH-MAIN", rows[1][0])
	assert.Equal(t, "AMOX-250", rows[1][1])
	assert.Equal(t, "10", rows[1][7])
	assert.Equal(t, "WH-MAIN total", rows[2][0])
	assert.Equal(t, "Grand total", rows[3][0])
	assert.Equal(t, "10", rows[3][7])
}
