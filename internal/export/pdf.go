// Package export renders offer documents from persisted engine output. The
// renderers are pure consumers: every figure on a document comes from the
// stored costing results, never from a recomputation of their own.
package export

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/nacrelab/costing/internal/offers"
)

// OfferPDF renders a commercial offer document and returns the PDF bytes.
func OfferPDF(o *offers.Offer) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(12).
		WithTopMargin(12).
		WithRightMargin(12).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   &props.Color{Red: 120, Green: 120, Blue: 120},
		}).
		Build()

	m := maroto.New(cfg)

	addOfferHeader(m, o)
	addOfferLines(m, o)
	addOfferTotal(m, o)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate offer PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func addOfferHeader(m core.Maroto, o *offers.Offer) {
	m.AddRows(
		row.New(10).Add(
			col.New(7).Add(
				text.New(o.Title, props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Left}),
			),
			col.New(5).Add(
				text.New("COMMERCIAL OFFER", props.Text{
					Size:  12,
					Style: fontstyle.Bold,
					Align: align.Right,
					Color: &props.Color{Red: 33, Green: 37, Blue: 41},
				}),
			),
		),
		row.New(7).Add(
			col.New(7).Add(
				text.New(o.ClientName, props.Text{Size: 9, Align: align.Left}),
			),
			col.New(5).Add(
				text.New(fmt.Sprintf("Ref: %s", o.ID), props.Text{
					Size:  8,
					Align: align.Right,
					Color: &props.Color{Red: 100, Green: 100, Blue: 100},
				}),
			),
		),
		row.New(4),
	)
}

func addOfferLines(m core.Maroto, o *offers.Offer) {
	headerStyle := props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Left}
	numberHeaderStyle := props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}

	m.AddRows(row.New(7).Add(
		col.New(4).Add(text.New("Product", headerStyle)),
		col.New(2).Add(text.New("Units", numberHeaderStyle)),
		col.New(2).Add(text.New("Unit cost", numberHeaderStyle)),
		col.New(2).Add(text.New("Unit price", numberHeaderStyle)),
		col.New(2).Add(text.New("Line total", numberHeaderStyle)),
	))

	cellStyle := props.Text{Size: 8, Align: align.Left}
	numberStyle := props.Text{Size: 8, Align: align.Right}
	detailStyle := props.Text{Size: 7, Align: align.Left, Color: &props.Color{Red: 100, Green: 100, Blue: 100}}

	for _, item := range o.Items {
		r := item.Results
		lineTotal := r.DerivedUnits * r.SalePrice
		m.AddRows(
			row.New(6).Add(
				col.New(4).Add(text.New(item.ProductName, cellStyle)),
				col.New(2).Add(text.New(formatQty(r.DerivedUnits), numberStyle)),
				col.New(2).Add(text.New(formatMoney(r.DirectCost), numberStyle)),
				col.New(2).Add(text.New(formatMoney(r.SalePrice), numberStyle)),
				col.New(2).Add(text.New(formatMoney(lineTotal), numberStyle)),
			),
			row.New(5).Add(
				col.New(12).Add(text.New(fmt.Sprintf(
					"bulk %s · packaging %s · filling %s · extras %s · residue %s",
					formatMoney(r.BulkCostUnit),
					formatMoney(r.PackingCostUnit),
					formatMoney(r.ProcessCostUnit),
					formatMoney(r.ExtrasCostUnit),
					formatMoney(r.ResidueCostUnit),
				), detailStyle)),
			),
		)
	}
}

func addOfferTotal(m core.Maroto, o *offers.Offer) {
	m.AddRows(
		row.New(4),
		row.New(8).Add(
			col.New(8),
			col.New(2).Add(text.New("Offer total", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right})),
			col.New(2).Add(text.New(o.TotalValue.StringFixed(2)+" €", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right})),
		),
	)
}

func formatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + " €"
}

func formatQty(v float64) string {
	return decimal.NewFromFloat(v).Round(0).String()
}
