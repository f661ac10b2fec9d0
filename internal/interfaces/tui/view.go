package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jhoicas/Inventario-valuation/internal/application/explorer"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
	"github.com/jhoicas/Inventario-valuation/pkg/money"
)

const bucketPreview = 10

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("25"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	helpStyle     = mutedStyle.Italic(true)
	treeIndentStr = "  "
)

func marker(v explorer.NodeView, ok bool) string {
	if !ok {
		return "▸"
	}
	switch v.Status {
	case explorer.StatusLoading:
		return "…"
	case explorer.StatusError:
		return "!"
	case explorer.StatusLoaded:
		if v.Expanded {
			return "▾"
		}
	}
	return "▸"
}

func categoryText(c entity.CategoryNode, v explorer.NodeView, ok bool) string {
	return fmt.Sprintf("%s %s  %s art.  %s  %s",
		marker(v, ok), c.Name, money.Int(c.TotalArticles), money.Format(c.TotalValue), money.Percent(c.PercentOfTotal))
}

func subcategoryText(s entity.SubcategoryNode, v explorer.NodeView, ok bool) string {
	return fmt.Sprintf("%s %s  %s art.  %s  %s de la categoría",
		marker(v, ok), s.Name, money.Int(s.TotalArticles), money.Format(s.TotalValue), money.Percent(s.PercentOfCategory))
}

func articleText(a entity.ArticleRow) string {
	return fmt.Sprintf("%s %s  %s × %s = %s",
		a.Code, a.Name, money.Int(a.StockQty), money.Format(a.UnitCost), money.Format(a.TotalValue))
}

// View pinta filtro, árbol, panel ABC, bucket abierto, estado y ayuda.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render("Inventario valorizado"))
	b.WriteString("  ")
	b.WriteString(mutedStyle.Render(scopeText(m.x.Scope())))
	b.WriteString("\n\n")

	b.WriteString(m.treeView())
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(m.valuationView()))
	b.WriteString("\n")
	if bucket := m.bucketView(); bucket != "" {
		b.WriteString(panelStyle.Render(bucket))
		b.WriteString("\n")
	}
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ mover · enter expandir · m más · r reintentar · R refrescar · s solo stock · a/b/c bucket · x cerrar · q salir"))
	return b.String()
}

func (m Model) treeView() string {
	cats := m.x.Categories()
	switch cats.Status {
	case explorer.CategoriesIdle, explorer.CategoriesLoading:
		return mutedStyle.Render("Cargando categorías…") + "\n"
	case explorer.CategoriesError:
		return errorStyle.Render("Error cargando categorías: "+errText(cats.Err)+" (r reintenta)") + "\n"
	case explorer.CategoriesEmpty:
		return mutedStyle.Render("Sin categorías para el filtro activo.") + "\n"
	}

	var b strings.Builder
	for i, l := range m.lines() {
		text := strings.Repeat(treeIndentStr, l.depth) + l.text
		switch {
		case i == m.cursor:
			text = cursorStyle.Render("> " + text)
		case l.kind == lineInfo || l.kind == lineMore:
			text = "  " + mutedStyle.Render(text)
		default:
			text = "  " + text
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	if r := cats.Reconciliation; !r.Balanced {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Aviso: los porcentajes suman %s", money.Percent(r.Sum))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) valuationView() string {
	v := m.x.Valuation()
	switch v.Status {
	case explorer.ValuationIdle, explorer.ValuationLoading:
		return mutedStyle.Render("ABC: cargando…")
	case explorer.ValuationError:
		return errorStyle.Render("ABC: " + errText(v.Err) + " (r reintenta)")
	}
	mt := v.Metrics
	var b strings.Builder
	b.WriteString(titleStyle.Render("ABC"))
	fmt.Fprintf(&b, "  %s artículos · %s\n", money.Int(mt.ArticleCount), money.Format(mt.GrandTotal))
	for _, bk := range mt.Buckets {
		fmt.Fprintf(&b, "%s  %6s art.  %14s  %s\n", bk.Label, money.Int(bk.ArticleCount), money.Format(bk.TotalValue), money.Percent(bk.PercentOfValue))
	}
	if v.DeadStockDays > 0 {
		fmt.Fprintf(&b, "Muerto (> %d días): %s art. · %s (%s)",
			v.DeadStockDays, money.Int(len(mt.DeadStock)), money.Format(mt.DeadStockValue), money.Percent(mt.DeadStockPercent))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) bucketView() string {
	v := m.x.Bucket()
	switch v.Status {
	case explorer.BucketClosed:
		return ""
	case explorer.BucketLoading:
		return mutedStyle.Render(fmt.Sprintf("Bucket %s: cargando…", v.Label))
	case explorer.BucketError:
		return errorStyle.Render(fmt.Sprintf("Bucket %s: %s", v.Label, errText(v.Err)))
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Bucket %s (%d artículos)", v.Label, len(v.Items))))
	for i, it := range v.Items {
		if i == bucketPreview {
			fmt.Fprintf(&b, "\n%s", mutedStyle.Render(fmt.Sprintf("… y %d más", len(v.Items)-bucketPreview)))
			break
		}
		fmt.Fprintf(&b, "\n%s %s  %s  %s días", it.Code, it.Name, money.Format(it.TotalValue), it.DaysLabel())
	}
	return b.String()
}

func (m Model) statusLine() string {
	switch {
	case m.busy > 0:
		return mutedStyle.Render("Consultando…")
	case m.lastErr != nil:
		return errorStyle.Render(m.lastDone + ": " + m.lastErr.Error())
	}
	return ""
}
