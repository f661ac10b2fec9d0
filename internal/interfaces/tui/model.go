// Package tui explorador interactivo de inventario valorizado sobre Bubble Tea.
//
// El modelo no guarda datos propios del árbol: cada render lee las vistas del
// explorador, que es quien decide qué respuesta sigue vigente. Las teclas despachan
// comandos que ejecutan la consulta fuera del loop de eventos y devuelven doneMsg.
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jhoicas/Inventario-valuation/internal/application/explorer"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

var tickEvery = 150 * time.Millisecond

// doneMsg resultado de una acción despachada.
type doneMsg struct {
	action string
	err    error
}

// tickMsg re-render periódico mientras hay consultas en vuelo.
type tickMsg struct{}

// lineKind tipo de fila visible del árbol.
type lineKind int

const (
	lineCategory lineKind = iota
	lineSubcategory
	lineArticle
	lineMore
	lineInfo
)

// line fila visible; id y node identifican el nodo dueño de la fila.
type line struct {
	kind  lineKind
	node  explorer.NodeKind
	id    string
	depth int
	text  string
}

// Model modelo Bubble Tea de la sesión.
type Model struct {
	ctx context.Context
	x   *explorer.Explorer

	cursor   int
	busy     int
	lastErr  error
	lastDone string
	width    int
	height   int
	quitting bool
}

// New construye el modelo sobre una sesión ya abierta (con el filtro aplicado).
func New(ctx context.Context, x *explorer.Explorer) Model {
	return Model{ctx: ctx, x: x, busy: 1}
}

// Run ejecuta el programa interactivo hasta que el usuario sale.
func Run(ctx context.Context, x *explorer.Explorer) error {
	_, err := tea.NewProgram(New(ctx, x), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Init carga en paralelo categorías y lista plana.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.run("inicio", m.x.Start), tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return doneMsg{action: action, err: fn(ctx)} }
}

// dispatch ejecuta fn fuera del loop y agenda ticks hasta que termine.
func (m *Model) dispatch(action string, fn func(context.Context) error) tea.Cmd {
	m.busy++
	return tea.Batch(m.run(action, fn), tick())
}

// Update procesa teclas y resultados.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		if m.busy > 0 {
			return m, tick()
		}
		return m, nil

	case doneMsg:
		if m.busy > 0 {
			m.busy--
		}
		m.lastDone = msg.action
		m.lastErr = msg.err
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lines := m.lines()
	var cur line
	if m.cursor < len(lines) {
		cur = lines[m.cursor]
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.x.Close()
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(lines)-1 {
			m.cursor++
		}
		return m, nil

	case "enter", " ":
		switch cur.kind {
		case lineCategory:
			return m, m.toggle(explorer.KindSubcategoryList, cur.id)
		case lineSubcategory:
			return m, m.toggle(explorer.KindArticleList, cur.id)
		case lineMore:
			return m, m.loadMore(cur.id)
		}
		return m, nil

	case "m":
		if cur.kind == lineSubcategory || cur.kind == lineArticle || cur.kind == lineMore {
			return m, m.loadMore(cur.id)
		}
		return m, nil

	case "r":
		return m, m.retry(cur)

	case "R":
		return m, m.dispatch("refrescar", m.x.Refresh)

	case "s":
		scope := m.x.Scope()
		scope.StockOnly = !scope.StockOnly
		m.cursor = 0
		return m, m.dispatch("filtro", func(ctx context.Context) error {
			return m.x.ApplyFilters(ctx, scope)
		})

	case "a", "b", "c":
		label := msg.String()
		return m, m.dispatch("bucket "+label, func(ctx context.Context) error {
			return m.x.OpenBucket(ctx, label)
		})

	case "x":
		m.x.CloseBucket()
		return m, nil
	}
	return m, nil
}

func (m *Model) toggle(kind explorer.NodeKind, id string) tea.Cmd {
	return m.dispatch("expandir "+id, func(ctx context.Context) error {
		return m.x.Toggle(ctx, kind, id)
	})
}

func (m *Model) loadMore(subcategoryID string) tea.Cmd {
	v, ok := m.x.Node(explorer.KindArticleList, subcategoryID)
	if !ok || v.Pagination == nil || !v.Pagination.HasMore || v.PageLoading {
		return nil
	}
	return m.dispatch("más "+subcategoryID, func(ctx context.Context) error {
		return m.x.LoadMore(ctx, subcategoryID)
	})
}

// retry reintenta lo que esté en error: la página de categorías, el nodo bajo el cursor,
// la siguiente página de artículos o la lista de valorización.
func (m *Model) retry(cur line) tea.Cmd {
	if m.x.Categories().Status == explorer.CategoriesError {
		return m.dispatch("reintentar categorías", m.x.LoadCategories)
	}
	switch cur.kind {
	case lineCategory:
		if v, ok := m.x.Node(explorer.KindSubcategoryList, cur.id); ok && v.Status == explorer.StatusError {
			return m.dispatch("reintentar "+cur.id, func(ctx context.Context) error {
				return m.x.Retry(ctx, explorer.KindSubcategoryList, cur.id)
			})
		}
	case lineSubcategory, lineArticle, lineMore:
		v, ok := m.x.Node(explorer.KindArticleList, cur.id)
		if ok && v.Status == explorer.StatusError {
			return m.dispatch("reintentar "+cur.id, func(ctx context.Context) error {
				return m.x.Retry(ctx, explorer.KindArticleList, cur.id)
			})
		}
		if ok && v.PageErr != nil {
			return m.loadMore(cur.id)
		}
	case lineInfo:
		if cur.id == "" {
			break
		}
		if v, ok := m.x.Node(cur.node, cur.id); ok && v.Status == explorer.StatusError {
			return m.dispatch("reintentar "+cur.id, func(ctx context.Context) error {
				return m.x.Retry(ctx, cur.node, cur.id)
			})
		}
	}
	if m.x.Valuation().Status == explorer.ValuationError {
		return m.dispatch("reintentar valorización", m.x.LoadValuation)
	}
	return nil
}

func (m *Model) clampCursor() {
	n := len(m.lines())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// lines aplana el árbol visible a partir de las vistas del explorador.
func (m Model) lines() []line {
	cats := m.x.Categories()
	out := make([]line, 0, len(cats.Items))
	for _, c := range cats.Items {
		sub, ok := m.x.Node(explorer.KindSubcategoryList, c.ID)
		out = append(out, line{kind: lineCategory, id: c.ID, text: categoryText(c, sub, ok)})
		if !ok {
			continue
		}
		if sub.Status == explorer.StatusError {
			out = append(out, line{kind: lineInfo, node: explorer.KindSubcategoryList, id: c.ID, depth: 1, text: "error: " + errText(sub.Err) + " (r reintenta)"})
			continue
		}
		if sub.Status != explorer.StatusLoaded || !sub.Expanded {
			continue
		}
		if sub.Empty() {
			out = append(out, line{kind: lineInfo, depth: 1, text: "sin subcategorías"})
		}
		for _, s := range sub.Subcategories {
			arts, ok := m.x.Node(explorer.KindArticleList, s.ID)
			out = append(out, line{kind: lineSubcategory, id: s.ID, depth: 1, text: subcategoryText(s, arts, ok)})
			if ok {
				out = append(out, articleLines(s.ID, arts)...)
			}
		}
	}
	return out
}

func articleLines(subID string, v explorer.NodeView) []line {
	switch {
	case v.Status == explorer.StatusError:
		return []line{{kind: lineInfo, node: explorer.KindArticleList, id: subID, depth: 2, text: "error: " + errText(v.Err) + " (r reintenta)"}}
	case v.Status != explorer.StatusLoaded || !v.Expanded:
		return nil
	case v.Empty():
		return []line{{kind: lineInfo, depth: 2, text: "sin artículos"}}
	}
	out := make([]line, 0, len(v.Articles)+1)
	for _, a := range v.Articles {
		out = append(out, line{kind: lineArticle, id: subID, depth: 2, text: articleText(a)})
	}
	if p := v.Pagination; p != nil && (p.HasMore || v.PageLoading || v.PageErr != nil) {
		text := fmt.Sprintf("%d de %d · enter/m carga más", len(v.Articles), p.Total)
		switch {
		case v.PageLoading:
			text = fmt.Sprintf("%d de %d · cargando…", len(v.Articles), p.Total)
		case v.PageErr != nil:
			text = fmt.Sprintf("%d de %d · error: %s (r reintenta)", len(v.Articles), p.Total, errText(v.PageErr))
		}
		out = append(out, line{kind: lineMore, id: subID, depth: 2, text: text})
	}
	return out
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// scopeText descripción corta del filtro activo.
func scopeText(s entity.FilterScope) string {
	text := fmt.Sprintf("desde %s hasta %s", entity.FormatDate(s.DateFrom), entity.FormatDate(s.DateTo))
	if s.SubcategoryID != "" {
		text += " · subcategoría " + s.SubcategoryID
	}
	if s.StockOnly {
		text += " · solo con stock"
	}
	return text
}
