package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/nacrelab/costing/internal/offers"
)

// OfferExcel renders the cost breakdown of an offer as an XLSX workbook and
// returns the file bytes.
func OfferExcel(o *offers.Offer) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Sheet names are capped at 31 characters; truncate by runes so a
	// multibyte title is never cut mid-sequence.
	sheetName := o.Title
	if runes := []rune(sheetName); len(runes) > 31 {
		sheetName = string(runes[:31])
	}
	if sheetName == "" {
		sheetName = "Offer"
	}

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, sheetName); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	columns := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I"}
	widths := []float64{32, 10, 12, 12, 12, 12, 12, 12, 14}
	for i, c := range columns {
		if err := f.SetColWidth(sheetName, c, c, widths[i]); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", c, err)
		}
	}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 10},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"EEEEEE"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}

	setCell := func(cell string, value any) error {
		return f.SetCellValue(sheetName, cell, value)
	}

	if err := setCell("A1", o.Title); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)
	if err := setCell("A2", o.ClientName); err != nil {
		return nil, fmt.Errorf("write client: %w", err)
	}

	headers := []string{"Product", "Units", "Bulk/u", "Packaging/u", "Filling/u", "Extras/u", "Residue/u", "Price/u", "Line total"}
	for i, h := range headers {
		cell := fmt.Sprintf("%s4", columns[i])
		if err := setCell(cell, h); err != nil {
			return nil, fmt.Errorf("write header %s: %w", h, err)
		}
	}
	_ = f.SetCellStyle(sheetName, "A4", "I4", headerStyle)

	rowIdx := 5
	for _, item := range o.Items {
		r := item.Results
		values := []any{
			item.ProductName,
			r.DerivedUnits,
			r.BulkCostUnit,
			r.PackingCostUnit,
			r.ProcessCostUnit,
			r.ExtrasCostUnit,
			r.ResidueCostUnit,
			r.SalePrice,
			r.DerivedUnits * r.SalePrice,
		}
		for i, v := range values {
			cell := fmt.Sprintf("%s%d", columns[i], rowIdx)
			if err := setCell(cell, v); err != nil {
				return nil, fmt.Errorf("write line cell %s: %w", cell, err)
			}
		}
		_ = f.SetCellStyle(sheetName, fmt.Sprintf("C%d", rowIdx), fmt.Sprintf("I%d", rowIdx), moneyStyle)
		rowIdx++
	}

	totalRow := rowIdx + 1
	if err := setCell(fmt.Sprintf("H%d", totalRow), "Offer total"); err != nil {
		return nil, fmt.Errorf("write total label: %w", err)
	}
	total, _ := o.TotalValue.Float64()
	if err := setCell(fmt.Sprintf("I%d", totalRow), total); err != nil {
		return nil, fmt.Errorf("write total value: %w", err)
	}
	_ = f.SetCellStyle(sheetName, fmt.Sprintf("I%d", totalRow), fmt.Sprintf("I%d", totalRow), moneyStyle)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
