package explorer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jhoicas/Inventario-valuation/internal/application/explorer"
	"github.com/jhoicas/Inventario-valuation/internal/domain"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errBoom = errors.New("servicio caído")

func newExplorer(t *testing.T, f *fakeReporting, cfg explorer.Config) *explorer.Explorer {
	t.Helper()
	x := explorer.New(f, cfg, zerolog.Nop())
	t.Cleanup(x.Close)
	return x
}

// ──────────────────────────────────────────────────────────────────────────────
// Escenarios
// ──────────────────────────────────────────────────────────────────────────────

func TestExplorer_EscenarioMaquillajeLabiales(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()

	require.NoError(t, x.ApplyFilters(ctx, entity.FilterScope{StockOnly: true}))
	cats := x.Categories()
	assert.Equal(t, explorer.CategoriesLoaded, cats.Status)
	require.Len(t, cats.Items, 2)
	assert.Equal(t, "Maquillaje", cats.Items[0].Name)
	assert.True(t, cats.Reconciliation.Balanced)

	require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "10"))
	cat, ok := x.Node(explorer.KindSubcategoryList, "10")
	require.True(t, ok)
	assert.Equal(t, explorer.StatusLoaded, cat.Status)
	require.Len(t, cat.Subcategories, 2)
	assert.Equal(t, "Labiales", cat.Subcategories[0].Name)
	assert.Equal(t, "10", cat.Subcategories[0].ParentCategoryID)

	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "101"))
	node, _ := x.Node(explorer.KindArticleList, "101")
	assert.Len(t, node.Articles, 50)
	want := &explorer.Pagination{Offset: 50, Limit: 50, Total: 77, HasMore: true}
	if diff := cmp.Diff(want, node.Pagination); diff != "" {
		t.Fatalf("paginación (-want +got):\n%s", diff)
	}

	require.NoError(t, x.LoadMore(ctx, "101"))
	node, _ = x.Node(explorer.KindArticleList, "101")
	assert.Len(t, node.Articles, 77)
	assert.False(t, node.Pagination.HasMore)
	assert.Equal(t, 77, node.Pagination.Offset)

	first := f.callsFor("articles:101")
	require.Len(t, first, 1)
	assert.Equal(t, 50, first[0].limit)
	assert.Equal(t, 0, first[0].offset)
	assert.True(t, first[0].scope.StockOnly)
	more := f.callsFor("articles:101@50")
	require.Len(t, more, 1)
	assert.Equal(t, 50, more[0].offset)
}

func TestExplorer_CambioDeStockOnlyDuranteCargaDescartaRespuesta(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()
	require.NoError(t, x.ApplyFilters(ctx, entity.FilterScope{StockOnly: true}))
	require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "10"))

	release := f.gate("articles:101")
	done := make(chan error, 1)
	go func() { done <- x.Toggle(ctx, explorer.KindArticleList, "101") }()
	waitStarted(t, f, "articles:101")

	node, _ := x.Node(explorer.KindArticleList, "101")
	assert.Equal(t, explorer.StatusLoading, node.Status)

	require.NoError(t, x.ApplyFilters(ctx, entity.FilterScope{StockOnly: false}))
	release()
	require.NoError(t, <-done)

	node, ok := x.Node(explorer.KindArticleList, "101")
	assert.False(t, ok)
	assert.Equal(t, explorer.StatusCollapsed, node.Status)
	assert.Empty(t, node.Articles)
	assert.Equal(t, 0, x.NodeCount())
}

// ──────────────────────────────────────────────────────────────────────────────
// Invalidación y token
// ──────────────────────────────────────────────────────────────────────────────

func TestExplorer_CambioDeAlcanceBarreCacheAntesDeConsultar(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()
	require.NoError(t, x.LoadCategories(ctx))
	require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "10"))
	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "101"))
	f.fail("subcategories:20", errBoom)
	require.Error(t, x.Toggle(ctx, explorer.KindSubcategoryList, "20"))
	require.Equal(t, 3, x.NodeCount())

	var mu sync.Mutex
	var countsAtFetch []int
	f.onCalled = func(key string) {
		if key == "categories" {
			mu.Lock()
			countsAtFetch = append(countsAtFetch, x.NodeCount())
			mu.Unlock()
		}
	}

	for _, stock := range []bool{true, false, true} {
		before := x.CurrentToken()
		require.NoError(t, x.ApplyFilters(ctx, entity.FilterScope{StockOnly: stock}))
		assert.Equal(t, before+1, x.CurrentToken())
		for _, id := range []string{"10", "20"} {
			v, _ := x.Node(explorer.KindSubcategoryList, id)
			assert.Equal(t, explorer.StatusCollapsed, v.Status)
			assert.Nil(t, v.Err)
			assert.Empty(t, v.Subcategories)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 0, 0}, countsAtFetch)
}

func TestExplorer_TokenObsoleto(t *testing.T) {
	f := newFake()
	x := newExplorer(t, f, explorer.Config{})

	tok := x.CurrentToken()
	assert.False(t, x.IsStale(tok))
	next, err := x.SetScope(entity.FilterScope{SubcategoryID: "101"})
	require.NoError(t, err)
	assert.Equal(t, tok+1, next)
	assert.True(t, x.IsStale(tok))
	assert.False(t, x.IsStale(next))

	// mismo alcance: aplicar de nuevo también avanza el token
	again, err := x.SetScope(entity.FilterScope{SubcategoryID: "101"})
	require.NoError(t, err)
	assert.Equal(t, next+1, again)
}

func TestExplorer_AlcanceInvalidoNoAvanzaToken(t *testing.T) {
	f := newFake()
	x := newExplorer(t, f, explorer.Config{})
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := x.CurrentToken()

	err := x.ApplyFilters(context.Background(), entity.FilterScope{DateFrom: &from, DateTo: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidScope)
	assert.Equal(t, tok, x.CurrentToken())
	assert.Zero(t, f.count("categories"))

	_, err = x.SetScope(entity.FilterScope{SubcategoryID: "ñandú"})
	assert.ErrorIs(t, err, domain.ErrInvalidScope)
}

func TestExplorer_RespuestaDeCategoriasObsoletaNoMutaEstado(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()

	release := f.gate("categories")
	done := make(chan error, 1)
	go func() { done <- x.LoadCategories(ctx) }()
	waitStarted(t, f, "categories")
	assert.Equal(t, explorer.CategoriesLoading, x.Categories().Status)

	_, err := x.SetScope(entity.FilterScope{StockOnly: true})
	require.NoError(t, err)
	release()
	require.NoError(t, <-done)

	cats := x.Categories()
	assert.Equal(t, explorer.CategoriesIdle, cats.Status)
	assert.Empty(t, cats.Items)
}

// ──────────────────────────────────────────────────────────────────────────────
// Caché de nodos
// ──────────────────────────────────────────────────────────────────────────────

func TestExplorer_ToggleDuranteCargaNoDuplicaConsulta(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()

	release := f.gate("subcategories:10")
	done := make(chan error, 1)
	go func() { done <- x.Toggle(ctx, explorer.KindSubcategoryList, "10") }()
	waitStarted(t, f, "subcategories:10")

	for i := 0; i < 5; i++ {
		require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "10"))
	}
	release()
	require.NoError(t, <-done)

	assert.Equal(t, 1, f.count("subcategories:10"))
	v, _ := x.Node(explorer.KindSubcategoryList, "10")
	assert.Equal(t, explorer.StatusLoaded, v.Status)
}

func TestExplorer_ReexpandirNodoCargadoNoConsulta(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()

	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "102"))
	v, _ := x.Node(explorer.KindArticleList, "102")
	assert.True(t, v.Expanded)

	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "102"))
	v, _ = x.Node(explorer.KindArticleList, "102")
	assert.False(t, v.Expanded)
	assert.Equal(t, explorer.StatusLoaded, v.Status)
	assert.Len(t, v.Articles, 5)

	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "102"))
	v, _ = x.Node(explorer.KindArticleList, "102")
	assert.True(t, v.Expanded)
	assert.Equal(t, 1, f.count("articles:102"))
}

func TestExplorer_ErrorDeNodoAisladoYReintento(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()
	f.fail("subcategories:20", errBoom)

	require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "10"))
	err := x.Toggle(ctx, explorer.KindSubcategoryList, "20")
	assert.ErrorIs(t, err, errBoom)

	bad, _ := x.Node(explorer.KindSubcategoryList, "20")
	assert.Equal(t, explorer.StatusError, bad.Status)
	assert.ErrorIs(t, bad.Err, errBoom)
	assert.Empty(t, bad.Subcategories)
	assert.False(t, bad.Empty())

	good, _ := x.Node(explorer.KindSubcategoryList, "10")
	assert.Equal(t, explorer.StatusLoaded, good.Status)
	assert.Nil(t, good.Err)

	// toggle sobre un nodo en error no consulta
	require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "20"))
	assert.Equal(t, 1, f.count("subcategories:20"))

	tok := x.CurrentToken()
	f.fail("subcategories:20", nil)
	require.NoError(t, x.Retry(ctx, explorer.KindSubcategoryList, "20"))
	bad, _ = x.Node(explorer.KindSubcategoryList, "20")
	assert.Equal(t, explorer.StatusLoaded, bad.Status)
	assert.Len(t, bad.Subcategories, 1)
	assert.Equal(t, 2, f.count("subcategories:20"))
	assert.Equal(t, tok, x.CurrentToken())
}

func TestExplorer_ReintentoSinEntradaDevuelveNodoNoEncontrado(t *testing.T) {
	x := newExplorer(t, newFake(), explorer.Config{})
	err := x.Retry(context.Background(), explorer.KindArticleList, "999")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestExplorer_TipoDeNodoDesconocido(t *testing.T) {
	x := newExplorer(t, newFake(), explorer.Config{})
	err := x.Toggle(context.Background(), explorer.NodeKind("brand-list"), "1")
	assert.ErrorIs(t, err, domain.ErrUnknownNodeKind)
}

func TestExplorer_NodoVacioSeDistingueDeCargaYError(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	require.NoError(t, x.Toggle(context.Background(), explorer.KindArticleList, "sin-articulos"))

	v, ok := x.Node(explorer.KindArticleList, "sin-articulos")
	require.True(t, ok)
	assert.Equal(t, explorer.StatusLoaded, v.Status)
	assert.True(t, v.Empty())
	assert.False(t, v.Pagination.HasMore)
}

func TestExplorer_TimeoutPasaNodoAError(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{FetchTimeout: 20 * time.Millisecond})
	release := f.gate("subcategories:10")
	defer release()

	err := x.Toggle(context.Background(), explorer.KindSubcategoryList, "10")
	assert.ErrorIs(t, err, domain.ErrFetchTimeout)

	v, _ := x.Node(explorer.KindSubcategoryList, "10")
	assert.Equal(t, explorer.StatusError, v.Status)
	assert.ErrorIs(t, v.Err, domain.ErrFetchTimeout)
}

func TestExplorer_CloseLiberaConsultasEnVuelo(t *testing.T) {
	f := cosmeticsFake()
	x := explorer.New(f, explorer.Config{}, zerolog.Nop())
	release := f.gate("subcategories:10")
	defer release()

	done := make(chan error, 1)
	go func() { done <- x.Toggle(context.Background(), explorer.KindSubcategoryList, "10") }()
	waitStarted(t, f, "subcategories:10")
	x.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Close no liberó la consulta en vuelo")
	}
	v, _ := x.Node(explorer.KindSubcategoryList, "10")
	assert.Equal(t, explorer.StatusCollapsed, v.Status)
}

func TestExplorer_ForgetOlvidaNodoYDescendientes(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()
	require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "10"))
	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "101"))
	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "201"))

	x.Forget(explorer.KindSubcategoryList, "10")
	_, ok := x.Node(explorer.KindSubcategoryList, "10")
	assert.False(t, ok)
	_, ok = x.Node(explorer.KindArticleList, "101")
	assert.False(t, ok)
	_, ok = x.Node(explorer.KindArticleList, "201")
	assert.True(t, ok)

	require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "10"))
	assert.Equal(t, 2, f.count("subcategories:10"))
}

func TestExplorer_RefreshRecargaNodosExpandidosSinCambiarToken(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()
	require.NoError(t, x.LoadCategories(ctx))
	require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "10"))
	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "101"))
	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "102"))
	require.NoError(t, x.Toggle(ctx, explorer.KindArticleList, "102")) // contraído: no se recarga
	tok := x.CurrentToken()

	require.NoError(t, x.Refresh(ctx))

	assert.Equal(t, tok, x.CurrentToken())
	assert.Equal(t, 2, f.count("categories"))
	assert.Equal(t, 2, f.count("subcategories:10"))
	assert.Equal(t, 2, f.count("articles:101"))
	assert.Equal(t, 1, f.count("articles:102"))

	v, _ := x.Node(explorer.KindArticleList, "101")
	assert.Equal(t, explorer.StatusLoaded, v.Status)
	assert.True(t, v.Expanded)
	assert.Len(t, v.Articles, 50)
}

func TestExplorer_RefreshDuranteCargaDeNodoLoVuelveAConsultar(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()
	require.NoError(t, x.LoadCategories(ctx))

	release := f.gate("articles:101")
	toggled := make(chan error, 1)
	go func() { toggled <- x.Toggle(ctx, explorer.KindArticleList, "101") }()
	waitStarted(t, f, "articles:101")

	refreshed := make(chan error, 1)
	go func() { refreshed <- x.Refresh(ctx) }()
	waitStarted(t, f, "articles:101")
	release()
	require.NoError(t, <-toggled)
	require.NoError(t, <-refreshed)

	v, ok := x.Node(explorer.KindArticleList, "101")
	require.True(t, ok)
	assert.Equal(t, explorer.StatusLoaded, v.Status)
	assert.True(t, v.Expanded)
	assert.Len(t, v.Articles, 50)
	assert.Equal(t, 2, f.count("articles:101"))
}

func TestExplorer_RefreshReintentaNodosEnError(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()
	require.NoError(t, x.LoadCategories(ctx))

	f.fail("subcategories:20", errBoom)
	require.Error(t, x.Toggle(ctx, explorer.KindSubcategoryList, "20"))
	f.fail("subcategories:20", nil)

	require.NoError(t, x.Refresh(ctx))

	v, ok := x.Node(explorer.KindSubcategoryList, "20")
	require.True(t, ok)
	assert.Equal(t, explorer.StatusLoaded, v.Status)
	assert.True(t, v.Expanded)
	assert.Equal(t, 2, f.count("subcategories:20"))
}

func TestExplorer_RefreshReemplazaCargaDeCategoriasEnVuelo(t *testing.T) {
	f := cosmeticsFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()
	require.NoError(t, x.LoadCategories(ctx))
	require.NoError(t, x.Toggle(ctx, explorer.KindSubcategoryList, "10"))

	release := f.gate("categories")
	loaded := make(chan error, 1)
	go func() { loaded <- x.LoadCategories(ctx) }()
	waitStarted(t, f, "categories")

	refreshed := make(chan error, 1)
	go func() { refreshed <- x.Refresh(ctx) }()
	waitStarted(t, f, "categories")
	release()
	require.NoError(t, <-loaded)
	require.NoError(t, <-refreshed)

	assert.Equal(t, 3, f.count("categories"))
	v, ok := x.Node(explorer.KindSubcategoryList, "10")
	require.True(t, ok, "la carga reemplazada no borra los nodos recargados")
	assert.Equal(t, explorer.StatusLoaded, v.Status)
	assert.True(t, v.Expanded)
}

func TestExplorer_ConciliacionDePorcentajesSeReportaSinCorregir(t *testing.T) {
	f := cosmeticsFake()
	f.subs["10"][1].PercentOfCategory = d("50")
	x := newExplorer(t, f, explorer.Config{})
	require.NoError(t, x.Toggle(context.Background(), explorer.KindSubcategoryList, "10"))

	v, _ := x.Node(explorer.KindSubcategoryList, "10")
	require.NotNil(t, v.Reconciliation)
	assert.False(t, v.Reconciliation.Balanced)
	assert.True(t, v.Reconciliation.Sum.Equal(d("90")))
	assert.True(t, v.Subcategories[1].PercentOfCategory.Equal(d("50")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Categorías
// ──────────────────────────────────────────────────────────────────────────────

func TestExplorer_CategoriasVaciasErrorYReintento(t *testing.T) {
	f := newFake()
	x := newExplorer(t, f, explorer.Config{})
	ctx := context.Background()

	require.NoError(t, x.LoadCategories(ctx))
	assert.Equal(t, explorer.CategoriesEmpty, x.Categories().Status)

	f.fail("categories", errBoom)
	err := x.LoadCategories(ctx)
	assert.ErrorIs(t, err, errBoom)
	cats := x.Categories()
	assert.Equal(t, explorer.CategoriesError, cats.Status)
	assert.ErrorIs(t, cats.Err, errBoom)

	f.fail("categories", nil)
	f.categories = cosmeticsFake().categories
	require.NoError(t, x.LoadCategories(ctx))
	assert.Equal(t, explorer.CategoriesLoaded, x.Categories().Status)
	assert.Nil(t, x.Categories().Err)
}

func TestExplorer_StartCargaCategoriasYValorizacionEnParalelo(t *testing.T) {
	f := cosmeticsFake()
	f.valued = valuedFixture()
	x := newExplorer(t, f, explorer.Config{})

	require.NoError(t, x.Start(context.Background()))
	assert.Equal(t, explorer.CategoriesLoaded, x.Categories().Status)
	assert.Equal(t, explorer.ValuationLoaded, x.Valuation().Status)
	assert.Equal(t, 1000, f.callsFor("valuation")[0].limit)
}
