// Package explorer implementa el explorador jerárquico de inventario valorizado del
// tablero de costos: categoría → subcategoría → artículo, con carga perezosa por nodo,
// paginación independiente y filtros compartidos.
//
// Todo el estado vive en un único contenedor (Explorer) protegido por un mutex; las
// consultas al servicio de reportes se hacen fuera del lock. No hay cancelación real de
// peticiones: cada una se sella con el token del alcance activo y al completar se descarta
// si el token avanzó entre tanto.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/Inventario-valuation/internal/application/ports"
	"github.com/jhoicas/Inventario-valuation/internal/domain"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
	"github.com/jhoicas/Inventario-valuation/internal/domain/valuation"
)

// Config límites del explorador. Los valores cero toman los defaults.
type Config struct {
	FetchTimeout   time.Duration // default 30s; una consulta colgada pasa a error
	PageSize       int           // default 50 artículos por página
	BucketLimit    int           // default 500 artículos por bucket ABC
	ValuationLimit int           // default 1000 artículos en la lista plana
	DeadStockDays  int           // default 90 días sin venta; negativo desactiva el análisis
	TopN           int           // default 10
	RefreshWorkers int           // default 4 nodos recargados en paralelo
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.BucketLimit <= 0 {
		c.BucketLimit = 500
	}
	if c.ValuationLimit <= 0 {
		c.ValuationLimit = 1000
	}
	if c.DeadStockDays == 0 {
		c.DeadStockDays = 90
	}
	if c.TopN <= 0 {
		c.TopN = 10
	}
	if c.RefreshWorkers <= 0 {
		c.RefreshWorkers = 4
	}
	return c
}

// Explorer contenedor de estado de una sesión del explorador.
type Explorer struct {
	svc ports.ReportingService
	cfg Config
	log zerolog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	scope      entity.FilterScope
	token      uint64
	seq        uint64 // generador de attempts
	categories categoryState
	nodes      map[nodeKey]nodeEntry
	bucket     bucketState
	valuation  valuationState
}

// New construye el explorador con el alcance vacío (token 1). No consulta nada.
func New(svc ports.ReportingService, cfg Config, log zerolog.Logger) *Explorer {
	cfg = cfg.withDefaults()
	base, cancel := context.WithCancel(context.Background())
	return &Explorer{
		svc:    svc,
		cfg:    cfg,
		log:    log.With().Str("component", "explorer").Logger(),
		base:   base,
		cancel: cancel,
		token:  1,
		nodes:  make(map[nodeKey]nodeEntry),
		valuation: valuationState{
			deadDays: max(cfg.DeadStockDays, 0),
		},
	}
}

// Close cancela las consultas en vuelo de la sesión. Sus respuestas ya no modifican estado.
func (x *Explorer) Close() {
	x.cancel()
}

// Config configuración efectiva (con defaults aplicados).
func (x *Explorer) Config() Config { return x.cfg }

// Start carga en paralelo el resumen de categorías y la lista plana de valorización.
func (x *Explorer) Start(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return x.LoadCategories(ctx) })
	g.Go(func() error { return x.LoadValuation(ctx) })
	return g.Wait()
}

// ApplyFilters aplica un alcance nuevo (ver SetScope) y vuelve a consultar el resumen de
// categorías; si la vista ABC estaba en uso también recarga la lista plana.
func (x *Explorer) ApplyFilters(ctx context.Context, scope entity.FilterScope) error {
	if _, err := x.SetScope(scope); err != nil {
		return err
	}
	x.mu.Lock()
	reloadValuation := x.valuation.requested
	x.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error { return x.LoadCategories(ctx) })
	if reloadValuation {
		g.Go(func() error { return x.LoadValuation(ctx) })
	}
	return g.Wait()
}

// ── Consultas ─────────────────────────────────────────────────────────────────

// ticket sello de una petición: token del alcance + attempt de la entrada.
type ticket struct {
	token   uint64
	attempt uint64
	scope   entity.FilterScope
}

func (x *Explorer) nextTicketLocked() ticket {
	x.seq++
	return ticket{token: x.token, attempt: x.seq, scope: x.scope}
}

// fetchContext aplica el timeout de cliente y se cancela también al cerrar la sesión.
func (x *Explorer) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, x.cfg.FetchTimeout)
	stop := context.AfterFunc(x.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// fetchOutcome clasifica el error de una consulta: timeout propio, cancelación o error remoto.
func fetchOutcome(ctx context.Context, err error) (string, error) {
	if err == nil {
		return outcomeOK, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeTimeout, fmt.Errorf("%w: %v", domain.ErrFetchTimeout, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return outcomeCancelled, err
	}
	return outcomeError, err
}

func observe(kind string, started time.Time) {
	fetchDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

// ── Categorías ────────────────────────────────────────────────────────────────

// CategoriesStatus estado del cargador de categorías. Empty se distingue de Loading y Error.
type CategoriesStatus int

const (
	CategoriesIdle CategoriesStatus = iota
	CategoriesLoading
	CategoriesLoaded
	CategoriesEmpty
	CategoriesError
)

func (s CategoriesStatus) String() string {
	switch s {
	case CategoriesLoading:
		return "loading"
	case CategoriesLoaded:
		return "loaded"
	case CategoriesEmpty:
		return "empty"
	case CategoriesError:
		return "error"
	default:
		return "idle"
	}
}

type categoryState struct {
	status  CategoriesStatus
	attempt uint64
	items   []entity.CategoryNode
	recon   valuation.Reconciliation
	err     error
}

// CategoriesView copia del resumen de categorías.
type CategoriesView struct {
	Status         CategoriesStatus
	Items          []entity.CategoryNode
	Reconciliation valuation.Reconciliation
	Err            error // error a nivel de página; se reintenta con LoadCategories
	Token          uint64
}

// Categories estado actual del resumen de categorías.
func (x *Explorer) Categories() CategoriesView {
	x.mu.Lock()
	defer x.mu.Unlock()
	return CategoriesView{
		Status:         x.categories.status,
		Items:          append([]entity.CategoryNode(nil), x.categories.items...),
		Reconciliation: x.categories.recon,
		Err:            x.categories.err,
		Token:          x.token,
	}
}

// LoadCategories consulta el resumen de categorías del alcance activo. Al completar con
// éxito reemplaza la lista y limpia la caché de nodos descendientes. Un fallo deja la
// página en CategoriesError; llamar de nuevo es el reintento.
func (x *Explorer) LoadCategories(ctx context.Context) error {
	return x.loadCategories(ctx, false)
}

// loadCategories con force=true reemplaza la carga en vuelo: su respuesta queda sin dueño
// y se descarta al llegar.
func (x *Explorer) loadCategories(ctx context.Context, force bool) error {
	x.mu.Lock()
	if x.categories.status == CategoriesLoading && !force {
		x.mu.Unlock()
		return nil
	}
	t := x.nextTicketLocked()
	x.categories = categoryState{status: CategoriesLoading, attempt: t.attempt}
	x.mu.Unlock()

	fctx, done := x.fetchContext(ctx)
	defer done()
	started := time.Now()
	items, err := x.svc.Categories(fctx, t.scope)
	observe(fetchCategories, started)
	outcome, err := fetchOutcome(fctx, err)

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.isStaleLocked(t.token) || x.categories.attempt != t.attempt {
		fetchTotal.WithLabelValues(fetchCategories, outcomeStale).Inc()
		x.log.Debug().Uint64("token", t.token).Msg("explorer: resumen de categorías obsoleto descartado")
		return nil
	}
	fetchTotal.WithLabelValues(fetchCategories, outcome).Inc()

	switch outcome {
	case outcomeOK:
	case outcomeCancelled:
		x.categories = categoryState{}
		return err
	default:
		x.categories = categoryState{status: CategoriesError, attempt: t.attempt, err: err}
		x.log.Warn().Err(err).Str("scope", t.scope.Key()).Msg("explorer: resumen de categorías")
		return fmt.Errorf("explorer: categorías: %w", err)
	}

	status := CategoriesLoaded
	if len(items) == 0 {
		status = CategoriesEmpty
	}
	percents := make([]decimal.Decimal, 0, len(items))
	for _, c := range items {
		percents = append(percents, c.PercentOfTotal)
	}
	recon := valuation.CheckReconciliation(percents)
	if !recon.Balanced {
		reconciliationMismatch.Inc()
		x.log.Warn().Str("sum", recon.Sum.String()).Msg("explorer: porcentajes de categorías no suman 100%")
	}
	x.categories = categoryState{status: status, attempt: t.attempt, items: items, recon: recon}
	x.nodes = make(map[nodeKey]nodeEntry)
	return nil
}

// ── Caché de nodos ────────────────────────────────────────────────────────────

// Node devuelve la entrada del nodo; ok=false si nunca se ha tocado bajo el alcance activo
// (equivale a StatusCollapsed).
func (x *Explorer) Node(kind NodeKind, id string) (NodeView, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	e, ok := x.nodes[nodeKey{kind, id}]
	if !ok {
		return newEntry(nodeKey{kind, id}).view(), false
	}
	return e.view(), true
}

// NodeCount cantidad de entradas en la caché.
func (x *Explorer) NodeCount() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.nodes)
}

// Toggle expande o contrae un nodo:
//   - collapsed: pasa a loading y consulta; al responder pasa a loaded o error, solo si el
//     token sigue vigente (si no, la respuesta se descarta y el nodo queda collapsed).
//   - loaded / error: solo invierte Expanded; nunca vuelve a consultar.
//   - loading: no hace nada (no se duplica la consulta).
//
// El error devuelto es el del propio nodo; no afecta a hermanos ni ancestros.
func (x *Explorer) Toggle(ctx context.Context, kind NodeKind, id string) error {
	if err := kind.valid(); err != nil {
		return err
	}
	key := nodeKey{kind, id}

	x.mu.Lock()
	e, ok := x.nodes[key]
	if !ok {
		e = newEntry(key)
	}
	switch e.state.(type) {
	case loadingState:
		x.mu.Unlock()
		return nil
	case loadedState, errorState:
		e.expanded = !e.expanded
		x.nodes[key] = e
		x.mu.Unlock()
		return nil
	}
	t := x.nextTicketLocked()
	x.nodes[key] = e.begin(t.attempt)
	x.mu.Unlock()

	return x.fetchNode(ctx, key, t)
}

// Retry reintenta la consulta de un nodo en error con un sello nuevo.
func (x *Explorer) Retry(ctx context.Context, kind NodeKind, id string) error {
	if err := kind.valid(); err != nil {
		return err
	}
	key := nodeKey{kind, id}

	x.mu.Lock()
	e, ok := x.nodes[key]
	if !ok {
		x.mu.Unlock()
		return domain.ErrNodeNotFound
	}
	if _, failed := e.state.(errorState); !failed {
		x.mu.Unlock()
		return nil
	}
	t := x.nextTicketLocked()
	x.nodes[key] = e.begin(t.attempt)
	x.mu.Unlock()

	return x.fetchNode(ctx, key, t)
}

// Forget destruye la entrada de un nodo ("contraer y olvidar"). Para una categoría
// también olvida los listados de artículos de sus subcategorías cargadas.
func (x *Explorer) Forget(kind NodeKind, id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	key := nodeKey{kind, id}
	if e, ok := x.nodes[key]; ok && kind == KindSubcategoryList {
		if st, loaded := e.state.(loadedState); loaded {
			for _, sub := range st.subcategories {
				delete(x.nodes, nodeKey{KindArticleList, sub.ID})
			}
		}
	}
	delete(x.nodes, key)
}

// Refresh "refrescar árbol": vuelve a consultar las categorías y cada nodo expandido
// (cargado, en carga o en error), sin cambiar de alcance. Una carga de categorías en vuelo
// queda reemplazada por la del refresco. Los nodos se recargan en paralelo y de forma
// independiente: el error de uno no cancela a los demás.
func (x *Explorer) Refresh(ctx context.Context) error {
	x.mu.Lock()
	var cats, subs []string
	for key, e := range x.nodes {
		if !refreshable(e) {
			continue
		}
		if key.kind == KindSubcategoryList {
			cats = append(cats, key.id)
		} else {
			subs = append(subs, key.id)
		}
	}
	x.nodes = make(map[nodeKey]nodeEntry)
	x.mu.Unlock()

	if err := x.loadCategories(ctx, true); err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(x.cfg.RefreshWorkers)
	for _, id := range cats {
		g.Go(func() error { return x.Toggle(ctx, KindSubcategoryList, id) })
	}
	for _, id := range subs {
		g.Go(func() error { return x.Toggle(ctx, KindArticleList, id) })
	}
	return g.Wait()
}

// refreshable indica si la entrada representa un nodo que el usuario tiene abierto.
func refreshable(e nodeEntry) bool {
	switch e.state.(type) {
	case loadingState:
		return true
	case loadedState, errorState:
		return e.expanded
	}
	return false
}

// fetchNode ejecuta la consulta del nodo y aplica el resultado si sigue siendo relevante.
func (x *Explorer) fetchNode(ctx context.Context, key nodeKey, t ticket) error {
	fctx, done := x.fetchContext(ctx)
	defer done()

	var (
		subs  []entity.SubcategoryNode
		page  *entity.ArticlePage
		err   error
		label string
	)
	started := time.Now()
	switch key.kind {
	case KindSubcategoryList:
		label = fetchSubcategories
		subs, err = x.svc.Subcategories(fctx, t.scope, key.id)
	case KindArticleList:
		label = fetchArticles
		page, err = x.svc.Articles(fctx, t.scope, key.id, x.cfg.PageSize, 0)
		if err == nil && page == nil {
			page = &entity.ArticlePage{}
		}
	}
	observe(label, started)
	outcome, err := fetchOutcome(fctx, err)

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.isStaleLocked(t.token) {
		// El barrido del cambio de alcance ya dejó el nodo en collapsed.
		fetchTotal.WithLabelValues(label, outcomeStale).Inc()
		x.log.Debug().Str("node", key.id).Uint64("token", t.token).Msg("explorer: respuesta obsoleta descartada")
		return nil
	}
	e, ok := x.nodes[key]
	if !ok || !e.owns(t.attempt) {
		fetchTotal.WithLabelValues(label, outcomeReplaced).Inc()
		return nil
	}
	fetchTotal.WithLabelValues(label, outcome).Inc()

	switch outcome {
	case outcomeOK:
	case outcomeCancelled:
		x.nodes[key] = e.collapse()
		return err
	default:
		x.nodes[key] = e.fail(err)
		x.log.Warn().Err(err).Str("node", key.id).Str("kind", string(key.kind)).Msg("explorer: carga de nodo")
		return fmt.Errorf("explorer: nodo %s: %w", key.id, err)
	}

	if key.kind == KindSubcategoryList {
		for i := range subs {
			if subs[i].ParentCategoryID == "" {
				subs[i].ParentCategoryID = key.id
			}
		}
		e = e.withSubcategories(subs)
		if v := e.view(); v.Reconciliation != nil && !v.Reconciliation.Balanced {
			reconciliationMismatch.Inc()
			x.log.Warn().
				Str("category", key.id).
				Str("sum", v.Reconciliation.Sum.String()).
				Msg("explorer: porcentajes de subcategorías no suman 100%")
		}
	} else {
		e = e.withFirstPage(*page, x.cfg.PageSize)
	}
	x.nodes[key] = e
	return nil
}
