// Package pdf genera el reporte ABC de inventario valorizado.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Título + empresa     │  Fecha de corte + filtros   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: Bucket | Artículos | Valor | % del total          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  INVENTARIO MUERTO: conteo, valor y % (umbral en días)      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOP N: Código | Artículo | Clase | Stock | Valor           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DETALLE opcional de un bucket                               │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
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

	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
	"github.com/jhoicas/Inventario-valuation/internal/domain/valuation"
	"github.com/jhoicas/Inventario-valuation/pkg/money"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
	colorAlert   = &props.Color{Red: 170, Green: 40, Blue: 40}
)

// ABCReport datos del reporte. Bucket es opcional: si tiene artículos se agrega su detalle.
type ABCReport struct {
	Company       string
	Scope         entity.FilterScope
	GeneratedAt   time.Time
	DeadStockDays int
	Metrics       valuation.Metrics
	BucketLabel   entity.Classification
	Bucket        []entity.ValuedArticle
}

// ABCReportGenerator genera el PDF del análisis ABC usando Maroto v2.
type ABCReportGenerator struct{}

// NewABCReportGenerator construye el generador.
func NewABCReportGenerator() *ABCReportGenerator { return &ABCReportGenerator{} }

// Generate genera el PDF y devuelve sus bytes.
func (g *ABCReportGenerator) Generate(_ context.Context, r ABCReport) ([]byte, error) {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Inventario valorizado - análisis ABC", true).
		WithAuthor(nonEmpty(r.Company, "Inventario"), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(r))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	m.AddRows(sectionTitle("RESUMEN POR CLASIFICACIÓN"))
	m.AddRows(tableHeaderRow([]string{"Clase", "Artículos", "Valor", "% del total"}, []int{2, 3, 4, 3}))
	m.AddRows(summaryRows(r.Metrics)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(deadStockRow(r))

	if len(r.Metrics.Top) > 0 {
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(sectionTitle(fmt.Sprintf("TOP %d POR VALOR", len(r.Metrics.Top))))
		m.AddRows(articleHeaderRow())
		m.AddRows(articleRows(r.Metrics.Top)...)
	}

	if len(r.Bucket) > 0 {
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(sectionTitle(fmt.Sprintf("ARTÍCULOS CLASE %s (%d)", r.BucketLabel, len(r.Bucket))))
		m.AddRows(articleHeaderRow())
		m.AddRows(articleRows(r.Bucket)...)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: título y empresa (izq), fecha y filtros activos (der).
func headerRow(r ABCReport) core.Row {
	return row.New(20).Add(
		col.New(7).Add(
			text.New("INVENTARIO VALORIZADO", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(r.Company, "—"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("Generado: "+r.GeneratedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 1, Color: colorGray,
			}),
			text.New(ScopeLabel(r.Scope), props.Text{
				Size: 8, Align: align.Right, Top: 7,
			}),
			text.New("Valor total: "+money.Format(r.Metrics.GrandTotal), props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 13, Color: colorPrimary,
			}),
		),
	)
}

func sectionTitle(s string) core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Color: colorPrimary, Top: 2}),
	))
}

// tableHeaderRow: cabecera con fondo primario.
func tableHeaderRow(labels []string, sizes []int) core.Row {
	cols := make([]core.Col, 0, len(labels))
	for i, label := range labels {
		a := align.Right
		if i == 0 {
			a = align.Left
		}
		cols = append(cols, col.New(sizes[i]).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		})))
	}
	return row.New(8).Add(cols...).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

// summaryRows: una fila por bucket A, B, C.
func summaryRows(metrics valuation.Metrics) []core.Row {
	rows := make([]core.Row, 0, len(metrics.Buckets)+1)
	cell := func(s string, size int, a align.Type, bold bool) core.Col {
		p := props.Text{Size: 8, Align: a, Top: 1, Left: 1, Right: 1}
		if bold {
			p.Style = fontstyle.Bold
		}
		return col.New(size).Add(text.New(s, p))
	}
	for _, b := range metrics.Buckets {
		rows = append(rows, row.New(7).Add(
			cell(string(b.Label), 2, align.Left, true),
			cell(money.Int(b.ArticleCount), 3, align.Right, false),
			cell(money.Format(b.TotalValue), 4, align.Right, false),
			cell(money.Percent(b.PercentOfValue), 3, align.Right, false),
		))
	}
	rows = append(rows, row.New(7).Add(
		cell("Total", 2, align.Left, true),
		cell(money.Int(metrics.ArticleCount), 3, align.Right, true),
		cell(money.Format(metrics.GrandTotal), 4, align.Right, true),
		cell("", 3, align.Right, false),
	))
	return rows
}

// deadStockRow: resumen del inventario sin rotación.
func deadStockRow(r ABCReport) core.Row {
	if r.DeadStockDays <= 0 {
		return row.New(8).Add(col.New(12).Add(
			text.New("Análisis de inventario muerto desactivado.", props.Text{Size: 8, Top: 2, Color: colorGray}),
		))
	}
	m := r.Metrics
	return row.New(14).Add(col.New(12).Add(
		text.New(fmt.Sprintf("INVENTARIO MUERTO (> %d días sin venta)", r.DeadStockDays), props.Text{
			Style: fontstyle.Bold, Size: 9, Color: colorAlert, Top: 2,
		}),
		text.New(fmt.Sprintf("%s artículos   |   %s   |   %s del valor total",
			money.Int(len(m.DeadStock)), money.Format(m.DeadStockValue), money.Percent(m.DeadStockPercent),
		), props.Text{Size: 8, Top: 8}),
	))
}

func articleHeaderRow() core.Row {
	return tableHeaderRow([]string{"Código / Artículo", "Clase", "Stock", "Días s/venta", "Valor"}, []int{5, 1, 2, 2, 2})
}

// articleRows: una fila por artículo.
func articleRows(items []entity.ValuedArticle) []core.Row {
	out := make([]core.Row, 0, len(items))
	for _, it := range items {
		out = append(out, row.New(6).Add(
			col.New(5).Add(text.New(truncate(it.Code+" "+it.Name, 48), props.Text{Size: 7.5, Top: 1, Left: 1})),
			col.New(1).Add(text.New(string(it.Classification), props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(money.Int(it.Stock), props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(it.DaysLabel(), props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(money.Format(it.TotalValue), props.Text{Size: 7.5, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return out
}

// ── helpers ───────────────────────────────────────────────────────────────────

// ScopeLabel describe el filtro activo en una línea.
func ScopeLabel(s entity.FilterScope) string {
	label := fmt.Sprintf("Período: %s a %s", entity.FormatDate(s.DateFrom), entity.FormatDate(s.DateTo))
	if s.SubcategoryID != "" {
		label += "  |  Subcategoría " + s.SubcategoryID
	}
	if s.StockOnly {
		label += "  |  Solo con stock"
	}
	return label
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
