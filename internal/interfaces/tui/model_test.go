package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Inventario-valuation/internal/application/explorer"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

// stubReporting servicio de reportes fijo; errs falla la clave indicada.
type stubReporting struct {
	mu     sync.Mutex
	errs   map[string]error
	scopes []entity.FilterScope
}

func (s *stubReporting) check(key string, scope entity.FilterScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes = append(s.scopes, scope)
	return s.errs[key]
}

func (s *stubReporting) setErr(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errs, key)
		return
	}
	s.errs[key] = err
}

func (s *stubReporting) lastScope() entity.FilterScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scopes[len(s.scopes)-1]
}

func (s *stubReporting) Categories(_ context.Context, scope entity.FilterScope) ([]entity.CategoryNode, error) {
	if err := s.check("categories", scope); err != nil {
		return nil, err
	}
	return []entity.CategoryNode{
		{ID: "10", Name: "Maquillaje", TotalArticles: 3, TotalValue: decimal.NewFromInt(6000), PercentOfTotal: decimal.NewFromInt(60)},
		{ID: "20", Name: "Cuidado", TotalArticles: 1, TotalValue: decimal.NewFromInt(4000), PercentOfTotal: decimal.NewFromInt(40)},
	}, nil
}

func (s *stubReporting) Subcategories(_ context.Context, scope entity.FilterScope, categoryID string) ([]entity.SubcategoryNode, error) {
	if err := s.check("subcategories:"+categoryID, scope); err != nil {
		return nil, err
	}
	if categoryID != "10" {
		return nil, nil
	}
	return []entity.SubcategoryNode{
		{ParentCategoryID: "10", ID: "101", Name: "Labiales", TotalArticles: 3, TotalValue: decimal.NewFromInt(6000), PercentOfCategory: decimal.NewFromInt(100)},
	}, nil
}

func (s *stubReporting) Articles(_ context.Context, scope entity.FilterScope, subcategoryID string, limit, offset int) (*entity.ArticlePage, error) {
	if err := s.check("articles:"+subcategoryID, scope); err != nil {
		return nil, err
	}
	var rows []entity.ArticleRow
	for i := 0; i < 3; i++ {
		rows = append(rows, entity.ArticleRow{ID: fmt.Sprint(i), Code: fmt.Sprintf("L-%d", i), Name: fmt.Sprintf("Labial %d", i), StockQty: 1, UnitCost: decimal.NewFromInt(2000), TotalValue: decimal.NewFromInt(2000)})
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	if offset > end {
		offset = end
	}
	return &entity.ArticlePage{Articles: rows[offset:end], Total: len(rows)}, nil
}

func (s *stubReporting) ValuedArticles(_ context.Context, scope entity.FilterScope, _ int) ([]entity.ValuedArticle, error) {
	if err := s.check("valuation", scope); err != nil {
		return nil, err
	}
	return valued(), nil
}

func (s *stubReporting) Bucket(_ context.Context, scope entity.FilterScope, label entity.Classification, _ int) ([]entity.ValuedArticle, error) {
	if err := s.check("bucket", scope); err != nil {
		return nil, err
	}
	var out []entity.ValuedArticle
	for _, it := range valued() {
		if it.Classification == label {
			out = append(out, it)
		}
	}
	return out, nil
}

func valued() []entity.ValuedArticle {
	days := 200
	return []entity.ValuedArticle{
		{ID: "1", Code: "L-0", Name: "Labial 0", Stock: 4, TotalValue: decimal.NewFromInt(8000), Classification: entity.ClassA},
		{ID: "2", Code: "C-1", Name: "Crema", Stock: 1, TotalValue: decimal.NewFromInt(1500), Classification: entity.ClassB, DaysSinceSale: &days},
		{ID: "3", Code: "C-2", Name: "Jabón", Stock: 1, TotalValue: decimal.NewFromInt(500), Classification: entity.ClassC},
	}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func init() { tickEvery = time.Millisecond }

func newModel(t *testing.T, svc *stubReporting) Model {
	t.Helper()
	x := explorer.New(svc, explorer.Config{PageSize: 2, FetchTimeout: time.Second}, zerolog.Nop())
	t.Cleanup(x.Close)
	m := New(context.Background(), x)
	return drive(t, m, m.Init())
}

// drive ejecuta cmd y los comandos que devuelva hasta vaciar la cola; los ticks
// se descartan porque solo fuerzan un re-render.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tickMsg, nil:
		default:
			next, more := m.Update(msg)
			m = next.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, cmd := m.Update(msg)
		m = drive(t, next.(Model), cmd)
	}
	return m
}

func texts(m Model) []string {
	var out []string
	for _, l := range m.lines() {
		out = append(out, strings.TrimSpace(l.text))
	}
	return out
}

// ─── Tests ───────────────────────────────────────────────────────────────────

func TestModel_InitCargaCategoriasYABC(t *testing.T) {
	m := newModel(t, &stubReporting{errs: map[string]error{}})

	assert.Equal(t, 0, m.busy)
	require.Len(t, m.lines(), 2)
	view := m.View()
	assert.Contains(t, view, "Maquillaje")
	assert.Contains(t, view, "$6.000")
	assert.Contains(t, view, "60,00%")
	assert.Contains(t, view, "Muerto (> 90 días)")
}

func TestModel_ExpandeCategoriaYSubcategoria(t *testing.T) {
	m := newModel(t, &stubReporting{errs: map[string]error{}})

	m = press(t, m, "enter")
	lines := m.lines()
	require.Len(t, lines, 3)
	assert.Equal(t, lineSubcategory, lines[1].kind)
	assert.True(t, strings.HasPrefix(texts(m)[0], "▾"))

	m = press(t, m, "down", "enter")
	lines = m.lines()
	// categoría, subcategoría, 2 artículos, fila "más", categoría 20
	require.Len(t, lines, 6)
	assert.Equal(t, lineArticle, lines[2].kind)
	assert.Equal(t, lineMore, lines[4].kind)
	assert.Contains(t, lines[4].text, "2 de 3")
}

func TestModel_CargarMasAgotaLaPaginacion(t *testing.T) {
	m := newModel(t, &stubReporting{errs: map[string]error{}})
	m = press(t, m, "enter", "down", "enter", "m")

	v, ok := m.x.Node(explorer.KindArticleList, "101")
	require.True(t, ok)
	assert.Len(t, v.Articles, 3)
	assert.False(t, v.Pagination.HasMore)
	for _, l := range m.lines() {
		assert.NotEqual(t, lineMore, l.kind, "sin más páginas no hay fila de carga")
	}
}

func TestModel_ColapsarOcultaHijos(t *testing.T) {
	m := newModel(t, &stubReporting{errs: map[string]error{}})
	m = press(t, m, "enter")
	require.Len(t, m.lines(), 3)

	m = press(t, m, "enter")
	assert.Len(t, m.lines(), 2)
	assert.True(t, strings.HasPrefix(texts(m)[0], "▸"))
}

func TestModel_ErrorDeNodoYReintento(t *testing.T) {
	svc := &stubReporting{errs: map[string]error{}}
	m := newModel(t, svc)
	svc.setErr("subcategories:10", errors.New("boom"))

	m = press(t, m, "enter")
	lines := m.lines()
	require.Len(t, lines, 3)
	assert.Equal(t, lineInfo, lines[1].kind)
	assert.Contains(t, lines[1].text, "boom")
	assert.Error(t, m.lastErr)

	svc.setErr("subcategories:10", nil)
	m = press(t, m, "r")
	lines = m.lines()
	require.Len(t, lines, 3)
	assert.Equal(t, lineSubcategory, lines[1].kind)
	assert.NoError(t, m.lastErr)
}

func TestModel_ErrorDeCategoriasSeReintenta(t *testing.T) {
	svc := &stubReporting{errs: map[string]error{"categories": errors.New("caído")}}
	m := newModel(t, svc)
	assert.Contains(t, m.View(), "Error cargando categorías")

	svc.setErr("categories", nil)
	m = press(t, m, "r")
	assert.Len(t, m.lines(), 2)
}

func TestModel_SoloStockCambiaElAlcance(t *testing.T) {
	svc := &stubReporting{errs: map[string]error{}}
	m := newModel(t, svc)
	m = press(t, m, "enter")
	tok := m.x.CurrentToken()

	m = press(t, m, "s")
	assert.True(t, m.x.Scope().StockOnly)
	assert.True(t, svc.lastScope().StockOnly)
	assert.Greater(t, m.x.CurrentToken(), tok)
	assert.Len(t, m.lines(), 2, "el árbol expandido se descarta con el alcance nuevo")
	assert.Contains(t, m.View(), "solo con stock")
}

func TestModel_BucketAbreYCierra(t *testing.T) {
	m := newModel(t, &stubReporting{errs: map[string]error{}})

	m = press(t, m, "b")
	b := m.x.Bucket()
	require.Equal(t, explorer.BucketLoaded, b.Status)
	require.Len(t, b.Items, 1)
	assert.Contains(t, m.View(), "Bucket B (1 artículos)")
	assert.Contains(t, m.View(), "200 días")

	m = press(t, m, "x")
	assert.Equal(t, explorer.BucketClosed, m.x.Bucket().Status)
	assert.NotContains(t, m.View(), "Bucket B")
}

func TestModel_CursorSeMantieneEnRango(t *testing.T) {
	m := newModel(t, &stubReporting{errs: map[string]error{}})
	m = press(t, m, "up", "up")
	assert.Equal(t, 0, m.cursor)
	m = press(t, m, "down", "down", "down")
	assert.Equal(t, 1, m.cursor)
}

func TestModel_SalirCierraLaSesion(t *testing.T) {
	m := newModel(t, &stubReporting{errs: map[string]error{}})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
	assert.Empty(t, next.(Model).View())
}
