package explorer_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

// fakeReporting servicio de reportes en memoria. Cada llamada se registra; una llamada
// cuya clave tenga compuerta queda bloqueada hasta que se abra o se cancele el ctx.
type fakeReporting struct {
	mu       sync.Mutex
	calls    []fakeCall
	gates    map[string]chan struct{}
	errs     map[string]error
	started  chan string
	onCalled func(key string)

	categories []entity.CategoryNode
	subs       map[string][]entity.SubcategoryNode
	articles   map[string][]entity.ArticleRow
	valued     []entity.ValuedArticle
}

type fakeCall struct {
	key    string
	scope  entity.FilterScope
	limit  int
	offset int
}

func newFake() *fakeReporting {
	return &fakeReporting{
		gates:    make(map[string]chan struct{}),
		errs:     make(map[string]error),
		started:  make(chan string, 256),
		subs:     make(map[string][]entity.SubcategoryNode),
		articles: make(map[string][]entity.ArticleRow),
	}
}

// gate bloquea las llamadas con esa clave; devuelve la función que las libera.
func (f *fakeReporting) gate(key string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[key] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.gates, key)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *fakeReporting) fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, key)
		return
	}
	f.errs[key] = err
}

func (f *fakeReporting) enter(ctx context.Context, c fakeCall) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	gate := f.gates[c.key]
	err := f.errs[c.key]
	hook := f.onCalled
	f.mu.Unlock()

	if hook != nil {
		hook(c.key)
	}
	select {
	case f.started <- c.key:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeReporting) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.key == key {
			n++
		}
	}
	return n
}

func (f *fakeReporting) callsFor(key string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.key == key {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeReporting) Categories(ctx context.Context, scope entity.FilterScope) ([]entity.CategoryNode, error) {
	if err := f.enter(ctx, fakeCall{key: "categories", scope: scope}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.CategoryNode(nil), f.categories...), nil
}

func (f *fakeReporting) Subcategories(ctx context.Context, scope entity.FilterScope, categoryID string) ([]entity.SubcategoryNode, error) {
	if err := f.enter(ctx, fakeCall{key: "subcategories:" + categoryID, scope: scope}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.SubcategoryNode(nil), f.subs[categoryID]...), nil
}

func (f *fakeReporting) Articles(ctx context.Context, scope entity.FilterScope, subcategoryID string, limit, offset int) (*entity.ArticlePage, error) {
	key := "articles:" + subcategoryID
	if offset > 0 {
		key = fmt.Sprintf("articles:%s@%d", subcategoryID, offset)
	}
	if err := f.enter(ctx, fakeCall{key: key, scope: scope, limit: limit, offset: offset}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.articles[subcategoryID]
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	var page []entity.ArticleRow
	if offset < end {
		page = append(page, rows[offset:end]...)
	}
	return &entity.ArticlePage{Articles: page, Total: len(rows)}, nil
}

func (f *fakeReporting) ValuedArticles(ctx context.Context, scope entity.FilterScope, limit int) ([]entity.ValuedArticle, error) {
	if err := f.enter(ctx, fakeCall{key: "valuation", scope: scope, limit: limit}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]entity.ValuedArticle(nil), f.valued...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReporting) Bucket(ctx context.Context, scope entity.FilterScope, label entity.Classification, limit int) ([]entity.ValuedArticle, error) {
	if err := f.enter(ctx, fakeCall{key: "bucket:" + string(label), scope: scope, limit: limit}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.ValuedArticle
	for _, it := range f.valued {
		if it.Classification == label && len(out) < limit {
			out = append(out, it)
		}
	}
	return out, nil
}

// waitStarted espera a que el fake reciba una llamada con la clave indicada.
func waitStarted(t *testing.T, f *fakeReporting, key string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.started:
			if got == key {
				return
			}
		case <-deadline:
			t.Fatalf("la llamada %q nunca llegó al servicio", key)
		}
	}
}

// ── Datos ─────────────────────────────────────────────────────────────────────

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func makeRows(prefix string, n int) []entity.ArticleRow {
	rows := make([]entity.ArticleRow, n)
	for i := range rows {
		rows[i] = entity.ArticleRow{
			ID:         fmt.Sprintf("%s-%03d", prefix, i),
			Code:       fmt.Sprintf("LAB%03d", i),
			Name:       fmt.Sprintf("Labial %d", i),
			StockQty:   i + 1,
			UnitCost:   d("1000"),
			TotalValue: decimal.NewFromInt(int64(1000 * (i + 1))),
		}
	}
	return rows
}

// cosmeticsFake catálogo del escenario Maquillaje → Labiales (77 artículos).
func cosmeticsFake() *fakeReporting {
	f := newFake()
	f.categories = []entity.CategoryNode{
		{ID: "10", Name: "Maquillaje", TotalArticles: 120, TotalValue: d("5000000"), PercentOfTotal: d("40")},
		{ID: "20", Name: "Cuidado capilar", TotalArticles: 80, TotalValue: d("7500000"), PercentOfTotal: d("60")},
	}
	f.subs["10"] = []entity.SubcategoryNode{
		{ID: "101", Name: "Labiales", TotalArticles: 30, TotalValue: d("2000000"), PercentOfCategory: d("40"), PercentOfTotal: d("16")},
		{ID: "102", Name: "Bases", TotalArticles: 90, TotalValue: d("3000000"), PercentOfCategory: d("60"), PercentOfTotal: d("24")},
	}
	f.subs["20"] = []entity.SubcategoryNode{
		{ID: "201", Name: "Shampoo", TotalArticles: 80, TotalValue: d("7500000"), PercentOfCategory: d("100"), PercentOfTotal: d("60")},
	}
	f.articles["101"] = makeRows("lab", 77)
	f.articles["102"] = makeRows("base", 5)
	f.articles["201"] = makeRows("sham", 3)
	return f
}
