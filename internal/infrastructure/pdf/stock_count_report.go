// Package pdf genera el reporte imprimible de una sesión de conteo físico.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Tienda + título     │  N° conteo + estado + fecha  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  SESIÓN: creado por / aplicado por / notas                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: SKU | Producto | Sistema | Contado | Ajuste          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: líneas / entradas / salidas                       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR con el ID del conteo + firmas                   │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/application/inventory"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
)

var _ inventory.StockCountReportRenderer = (*MarotoReportRenderer)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary  = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray     = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorPositive = &props.Color{Red: 0, Green: 110, Blue: 60}
	colorNegative = &props.Color{Red: 170, Green: 30, Blue: 30}
)

// ── Renderer ──────────────────────────────────────────────────────────────────

// MarotoReportRenderer implementa inventory.StockCountReportRenderer usando Maroto v2.
type MarotoReportRenderer struct{}

// NewMarotoReportRenderer construye el generador.
func NewMarotoReportRenderer() *MarotoReportRenderer { return &MarotoReportRenderer{} }

// RenderStockCount genera el PDF y devuelve sus bytes.
func (g *MarotoReportRenderer) RenderStockCount(_ context.Context, report dto.StockCountReport) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Conteo físico de inventario", true).
		WithAuthor(nonEmpty(report.StoreName, "invorya"), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(sessionRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	if len(report.Lines) == 0 {
		m.AddRows(row.New(8).Add(col.New(12).Add(
			text.New("Sin líneas escaneadas", props.Text{Size: 8, Align: align.Center, Top: 2, Color: colorGray}),
		)))
	}
	for _, r := range tableDetailRows(report.Lines) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(summaryRow(report.Lines))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow(report))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(r dto.StockCountReport) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(nonEmpty(r.StoreName, "Tienda"), props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("CONTEO FÍSICO DE INVENTARIO", props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(statusLabel(r.Status), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(shortID(r.CountID), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+r.CreatedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func sessionRow(r dto.StockCountReport) core.Row {
	applied := "—"
	if r.AppliedAt != nil {
		applied = fmt.Sprintf("%s (%s)", nonEmpty(r.AppliedBy, "—"), r.AppliedAt.Format("02/01/2006 15:04"))
	}
	return row.New(14).Add(
		col.New(12).Add(
			text.New("SESIÓN", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(fmt.Sprintf("Creado por: %s   |   Aplicado por: %s", nonEmpty(r.CreatedBy, "—"), applied),
				props.Text{Size: 8, Top: 6, Color: colorGray}),
			text.New("Notas: "+nonEmpty(r.Notes, "—"), props.Text{Size: 8, Top: 10, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("SKU", 2, align.Left),
		h("Producto", 4, align.Left),
		h("Sistema", 2, align.Right),
		h("Contado", 2, align.Right),
		h("Ajuste", 2, align.Right),
	)
}

func tableDetailRows(lines []dto.StockCountReportLine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		adjColor := colorGray
		switch {
		case l.Adjustment.IsPositive():
			adjColor = colorPositive
		case l.Adjustment.IsNegative():
			adjColor = colorNegative
		}
		result = append(result, row.New(7).Add(
			col.New(2).Add(text.New(nonEmpty(l.SKU, "—"), props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(4).Add(text.New(l.Name, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(formatQty(l.System), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(formatQty(l.Counted), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(signed(l.Adjustment), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Top: 1, Right: 1, Color: adjColor,
			})),
		))
	}
	return result
}

func summaryRow(lines []dto.StockCountReportLine) core.Row {
	in, out := decimal.Zero, decimal.Zero
	for _, l := range lines {
		if l.Adjustment.IsPositive() {
			in = in.Add(l.Adjustment)
		} else {
			out = out.Add(l.Adjustment)
		}
	}
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	return row.New(20).Add(
		col.New(6),
		col.New(3).Add(
			label("Líneas contadas:"),
			label("Entradas por ajuste:"),
			label("Salidas por ajuste:"),
		),
		col.New(3).Add(
			value(fmt.Sprintf("%d", len(lines))),
			value(signed(in)),
			value(signed(out)),
		),
	)
}

func footerRow(r dto.StockCountReport) core.Row {
	return row.New(40).Add(
		col.New(3).Add(code.NewQr(r.CountID, props.Rect{Percent: 90, Center: true})),
		col.New(9).Add(
			text.New("Columna Sistema: existencias justo antes de aplicar el conteo "+
				"(existencias actuales mientras la sesión esté abierta).",
				props.Text{Size: 7, Top: 4, Left: 3, Color: colorGray}),
			text.New("Firma responsable: ______________________________", props.Text{
				Size: 9, Top: 24, Left: 3,
			}),
		),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func statusLabel(status string) string {
	if status == entity.StockCountApplied {
		return "APLICADO"
	}
	return "ABIERTO"
}

func shortID(id string) string {
	if len(id) > 8 {
		return "N° " + strings.ToUpper(id[:8])
	}
	return "N° " + strings.ToUpper(id)
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + formatQty(d)
	}
	return formatQty(d)
}

// formatQty inserta puntos de miles en la parte entera y conserva hasta 2 decimales con coma.
// Ej: 25000 → "25.000", -1234.5 → "-1.234,5"
func formatQty(d decimal.Decimal) string {
	s := d.Round(2).String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	if hasFrac {
		return sign + string(buf) + "," + frac
	}
	return sign + string(buf)
}
