package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jhoicas/Inventario-valuation/internal/application/explorer"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
	"github.com/jhoicas/Inventario-valuation/internal/domain/valuation"
	"github.com/jhoicas/Inventario-valuation/pkg/money"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("25"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...)
}

func title(w io.Writer, s string) {
	fmt.Fprintln(w, titleStyle.Render(s))
}

func renderCategories(w io.Writer, v explorer.CategoriesView) {
	title(w, "Inventario valorizado por categoría")
	if v.Status == explorer.CategoriesEmpty {
		fmt.Fprintln(w, mutedStyle.Render("Sin categorías para el filtro activo."))
		return
	}
	t := newTable("ID", "Categoría", "Artículos", "Valor", "% del total")
	for _, c := range v.Items {
		t.Row(c.ID, c.Name, money.Int(c.TotalArticles), money.Format(c.TotalValue), money.Percent(c.PercentOfTotal))
	}
	fmt.Fprintln(w, t.String())
	renderReconciliation(w, v.Reconciliation)
}

func renderReconciliation(w io.Writer, r valuation.Reconciliation) {
	if r.Balanced {
		return
	}
	fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Aviso: los porcentajes suman %s (se esperaba 100%%).", money.Percent(r.Sum))))
}

func renderSubcategories(w io.Writer, categoryID string, v explorer.NodeView) {
	title(w, "Subcategorías de "+categoryID)
	if v.Empty() {
		fmt.Fprintln(w, mutedStyle.Render("Sin subcategorías."))
		return
	}
	t := newTable("ID", "Subcategoría", "Artículos", "Valor", "% categoría", "% total")
	for _, s := range v.Subcategories {
		t.Row(s.ID, s.Name, money.Int(s.TotalArticles), money.Format(s.TotalValue),
			money.Percent(s.PercentOfCategory), money.Percent(s.PercentOfTotal))
	}
	fmt.Fprintln(w, t.String())
	if v.Reconciliation != nil {
		renderReconciliation(w, *v.Reconciliation)
	}
}

func renderArticles(w io.Writer, subcategoryID string, v explorer.NodeView) {
	title(w, "Artículos de "+subcategoryID)
	if v.Empty() {
		fmt.Fprintln(w, mutedStyle.Render("Sin artículos."))
		return
	}
	t := newTable("Código", "Artículo", "Stock", "Costo unit.", "Valor")
	for _, a := range v.Articles {
		t.Row(a.Code, a.Name, money.Int(a.StockQty), money.Format(a.UnitCost), money.Format(a.TotalValue))
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w, paginationLine(v))
}

// paginationLine "Mostrando 50 de 77 (hay más)".
func paginationLine(v explorer.NodeView) string {
	if v.Pagination == nil {
		return ""
	}
	p := v.Pagination
	line := fmt.Sprintf("Mostrando %s de %s", money.Int(len(v.Articles)), money.Int(p.Total))
	if p.HasMore {
		line += " (hay más)"
	}
	if v.PageErr != nil {
		line += warnStyle.Render(" · error cargando la siguiente página: " + v.PageErr.Error())
	}
	return line
}

func renderMetrics(w io.Writer, v explorer.ValuationView) {
	m := v.Metrics
	title(w, "Análisis ABC (Pareto 80/15/5)")
	t := newTable("Clase", "Artículos", "Valor", "% del total")
	for _, b := range m.Buckets {
		t.Row(string(b.Label), money.Int(b.ArticleCount), money.Format(b.TotalValue), money.Percent(b.PercentOfValue))
	}
	t.Row("Total", money.Int(m.ArticleCount), money.Format(m.GrandTotal), "")
	fmt.Fprintln(w, t.String())
	if m.Unclassified > 0 {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d artículos sin clasificación válida se cuentan en C.", m.Unclassified)))
	}

	if v.DeadStockDays > 0 {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Inventario muerto (> %d días sin venta): %s artículos, %s (%s del total)",
			v.DeadStockDays, money.Int(len(m.DeadStock)), money.Format(m.DeadStockValue), money.Percent(m.DeadStockPercent))))
	}

	if len(m.Top) > 0 {
		title(w, fmt.Sprintf("Top %d por valor", len(m.Top)))
		fmt.Fprintln(w, valuedTable(m.Top))
	}
	if v.Filter != "" {
		title(w, fmt.Sprintf("Artículos clase %s (%d)", v.Filter, len(m.Visible)))
		fmt.Fprintln(w, valuedTable(m.Visible))
	}
}

func renderBucket(w io.Writer, v explorer.BucketView) {
	title(w, fmt.Sprintf("Bucket %s (%d artículos)", v.Label, len(v.Items)))
	if len(v.Items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("Sin artículos en esta clase."))
		return
	}
	fmt.Fprintln(w, valuedTable(v.Items))
}

func valuedTable(items []entity.ValuedArticle) string {
	t := newTable("Código", "Artículo", "Clase", "Stock", "Días s/venta", "Valor")
	for _, it := range items {
		t.Row(it.Code, it.Name, string(it.Classification), money.Int(it.Stock), it.DaysLabel(), money.Format(it.TotalValue))
	}
	return t.String()
}

func splitIDs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		for _, id := range strings.Split(r, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
