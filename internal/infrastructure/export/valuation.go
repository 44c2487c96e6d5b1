// Package export renders reports as spreadsheet files.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"pharmaflow/internal/domain/inventory"
)

// XLSXContentType is the MIME type of the workbook.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const valuationSheet = "Valuation"

var valuationHeaders = []string{
	"Warehouse", "Product Code", "Product Name", "Batch", "Status", "Quantity", "Unit Cost", "Value",
}

// WarehouseNames resolves a warehouse id to a display label.
type WarehouseNames func(inventory.WarehouseValuation) string

// WriteValuationXLSX writes one row per valuation line, a subtotal row per
// warehouse and a grand total row.
func WriteValuationXLSX(w io.Writer, v inventory.Valuation, names WarehouseNames) error {
	if names == nil {
		names = func(wh inventory.WarehouseValuation) string { return wh.WarehouseID.String() }
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), valuationSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	row := 1
	if err := writeRow(f, row, toAny(valuationHeaders)...); err != nil {
		return err
	}
	if err := styleRow(f, row, bold); err != nil {
		return err
	}

	for _, wh := range v.Warehouses {
		label := names(wh)
		for _, l := range wh.Lines {
			row++
			if err := writeRow(f, row,
				label, l.ProductCode, l.ProductName, l.BatchNumber, string(l.Status),
				l.Quantity, l.UnitCost.InexactFloat64(), l.Value.InexactFloat64(),
			); err != nil {
				return err
			}
		}
		row++
		if err := writeRow(f, row, label+" total", "", "", "", "", wh.TotalQuantity, "", wh.TotalValue.InexactFloat64()); err != nil {
			return err
		}
		if err := styleRow(f, row, bold); err != nil {
			return err
		}
	}

	row++
	if err := writeRow(f, row, "Grand total", "", "", "", "", v.TotalQuantity, "", v.GrandTotal.InexactFloat64()); err != nil {
		return err
	}
	if err := styleRow(f, row, bold); err != nil {
		return err
	}

	if err := f.SetColWidth(valuationSheet, "A", "H", 16); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(valuationSheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func styleRow(f *excelize.File, row, style int) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(valuationHeaders), row)
	return f.SetCellStyle(valuationSheet, first, last, style)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
