package export

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nacrelab/costing/internal/engine"
	"github.com/nacrelab/costing/internal/offers"
)

func sampleOffer() *offers.Offer {
	return &offers.Offer{
		ID:         "9e2f6c3a-offer",
		ClientName: "Belleza Austral",
		Title:      "Spring line",
		Status:     offers.StatusSent,
		TotalValue: decimal.NewFromFloat(400),
		Items: []offers.LineItem{
			{
				ID:          "line-1",
				ProductName: "Hand cream 50ml",
				Results: engine.Result{
					BulkCostUnit:    1.20,
					PackingCostUnit: 0.40,
					ProcessCostUnit: 0.15,
					ExtrasCostUnit:  0.05,
					ResidueCostUnit: 0.036,
					DirectCost:      1.836,
					SalePrice:       2.62,
					Profit:          0.784,
					DerivedUnits:    2000,
				},
			},
		},
	}
}

func TestOfferPDF_ProducesDocument(t *testing.T) {
	data, err := OfferPDF(sampleOffer())
	if err != nil {
		t.Fatalf("OfferPDF returned error: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty PDF bytes")
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output does not look like a PDF: %q", data[:8])
	}
}

func TestOfferExcel_WritesBreakdownCells(t *testing.T) {
	data, err := OfferExcel(sampleOffer())
	if err != nil {
		t.Fatalf("OfferExcel returned error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("generated xlsx cannot be opened: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet != "Spring line" {
		t.Fatalf("sheet name = %q, want Spring line", sheet)
	}

	product, err := f.GetCellValue(sheet, "A5")
	if err != nil {
		t.Fatalf("read product cell: %v", err)
	}
	if product != "Hand cream 50ml" {
		t.Fatalf("A5 = %q, want product name", product)
	}

	price, err := f.GetCellValue(sheet, "H5")
	if err != nil {
		t.Fatalf("read price cell: %v", err)
	}
	if price == "" {
		t.Fatalf("expected sale price in H5")
	}
}

func TestOfferExcel_TruncatesMultibyteTitleByRunes(t *testing.T) {
	o := sampleOffer()
	o.Title = strings.Repeat("é", 40) // 2 bytes per rune

	data, err := OfferExcel(o)
	if err != nil {
		t.Fatalf("OfferExcel returned error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("generated xlsx cannot be opened: %v", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet != strings.Repeat("é", 31) {
		t.Fatalf("sheet name = %q, want 31 é runes", sheet)
	}
	if !utf8.ValidString(sheet) {
		t.Fatalf("sheet name is not valid UTF-8: %q", sheet)
	}
}
