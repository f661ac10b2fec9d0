package explorer

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-valuation/internal/domain"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
	"github.com/jhoicas/Inventario-valuation/internal/domain/valuation"
)

// NodeKind tipo de listado que carga un nodo al expandirse.
type NodeKind string

const (
	// KindSubcategoryList nodo categoría: al expandirse lista sus subcategorías.
	KindSubcategoryList NodeKind = "subcategory-list"
	// KindArticleList nodo subcategoría: al expandirse lista sus artículos (paginado).
	KindArticleList NodeKind = "article-list"
)

func (k NodeKind) valid() error {
	switch k {
	case KindSubcategoryList, KindArticleList:
		return nil
	}
	return domain.ErrUnknownNodeKind
}

// NodeStatus estado de carga de una entrada de la caché de nodos.
type NodeStatus int

const (
	StatusCollapsed NodeStatus = iota // nunca cargado bajo el alcance activo
	StatusLoading
	StatusLoaded
	StatusError
)

func (s NodeStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusError:
		return "error"
	default:
		return "collapsed"
	}
}

// Pagination cursor de un nodo de artículos. Offset = filas ya cargadas.
type Pagination struct {
	Offset  int
	Limit   int
	Total   int
	HasMore bool
}

type nodeKey struct {
	kind NodeKind
	id   string
}

// ── Estados (unión etiquetada) ────────────────────────────────────────────────
//
// Cada variante lleva solo los datos válidos para ella: no existe "loaded sin datos"
// ni "error con filas".

type nodeState interface {
	status() NodeStatus
}

type collapsedState struct{}

type loadingState struct {
	attempt uint64 // identifica la petición en vuelo; otra respuesta para el nodo se ignora
}

type loadedState struct {
	subcategories []entity.SubcategoryNode
	articles      []entity.ArticleRow
	page          *Pagination // solo KindArticleList
	pageAttempt   uint64      // != 0 mientras hay un "cargar más" en vuelo
	pageErr       error
	recon         *valuation.Reconciliation // solo KindSubcategoryList
}

type errorState struct {
	err error
}

func (collapsedState) status() NodeStatus { return StatusCollapsed }
func (loadingState) status() NodeStatus   { return StatusLoading }
func (loadedState) status() NodeStatus    { return StatusLoaded }
func (errorState) status() NodeStatus     { return StatusError }

// nodeEntry entrada de la caché. Las transiciones devuelven una entrada nueva;
// el explorador la escribe de vuelta en el mapa bajo su mutex.
type nodeEntry struct {
	key      nodeKey
	expanded bool // solo presentación
	state    nodeState
}

func newEntry(key nodeKey) nodeEntry {
	return nodeEntry{key: key, state: collapsedState{}}
}

func (e nodeEntry) begin(attempt uint64) nodeEntry {
	e.state = loadingState{attempt: attempt}
	e.expanded = true
	return e
}

// owns indica si la respuesta de attempt sigue siendo la esperada por la entrada.
func (e nodeEntry) owns(attempt uint64) bool {
	st, ok := e.state.(loadingState)
	return ok && st.attempt == attempt
}

func (e nodeEntry) collapse() nodeEntry {
	e.state = collapsedState{}
	e.expanded = false
	return e
}

func (e nodeEntry) fail(err error) nodeEntry {
	e.state = errorState{err: err}
	return e
}

func (e nodeEntry) withSubcategories(rows []entity.SubcategoryNode) nodeEntry {
	percents := make([]decimal.Decimal, 0, len(rows))
	for _, r := range rows {
		percents = append(percents, r.PercentOfCategory)
	}
	recon := valuation.CheckReconciliation(percents)
	e.state = loadedState{subcategories: rows, recon: &recon}
	return e
}

func (e nodeEntry) withFirstPage(page entity.ArticlePage, limit int) nodeEntry {
	rows := appendUnique(nil, page.Articles)
	e.state = loadedState{
		articles: rows,
		page:     cursorAfter(len(rows), limit, page.Total, len(rows) > 0),
	}
	return e
}

// withNextPage agrega la página al final de las filas existentes sin duplicar ids.
// Total se toma de la última respuesta. Si la página no aporta filas nuevas el cursor se
// da por agotado para no quedar pidiendo la misma página indefinidamente.
func (e nodeEntry) withNextPage(page entity.ArticlePage) nodeEntry {
	st := e.state.(loadedState)
	before := len(st.articles)
	rows := appendUnique(st.articles, page.Articles)
	st.articles = rows
	st.page = cursorAfter(len(rows), st.page.Limit, page.Total, len(rows) > before)
	st.pageAttempt = 0
	st.pageErr = nil
	e.state = st
	return e
}

func (e nodeEntry) withPageError(err error) nodeEntry {
	st := e.state.(loadedState)
	st.pageAttempt = 0
	st.pageErr = err
	e.state = st
	return e
}

func (e nodeEntry) withPageInFlight(attempt uint64) nodeEntry {
	st := e.state.(loadedState)
	st.pageAttempt = attempt
	st.pageErr = nil
	e.state = st
	return e
}

func cursorAfter(loaded, limit, total int, progressed bool) *Pagination {
	return &Pagination{
		Offset:  loaded,
		Limit:   limit,
		Total:   total,
		HasMore: progressed && loaded < total,
	}
}

// appendUnique devuelve una copia de dst con las filas de src cuyo id no esté ya presente.
func appendUnique(dst, src []entity.ArticleRow) []entity.ArticleRow {
	out := make([]entity.ArticleRow, len(dst), len(dst)+len(src))
	copy(out, dst)
	seen := make(map[string]struct{}, len(out)+len(src))
	for _, r := range out {
		seen[r.ID] = struct{}{}
	}
	for _, r := range src {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// ── Vista pública ─────────────────────────────────────────────────────────────

// NodeView copia inmutable de una entrada para la capa de presentación.
// Los campos de datos solo vienen poblados en la variante que corresponde:
// Subcategories/Articles/Pagination con StatusLoaded, Err con StatusError.
type NodeView struct {
	Kind     NodeKind
	ID       string
	Status   NodeStatus
	Expanded bool

	Subcategories  []entity.SubcategoryNode
	Reconciliation *valuation.Reconciliation

	Articles    []entity.ArticleRow
	Pagination  *Pagination
	PageLoading bool
	PageErr     error

	Err error
}

// Empty true si el nodo cargó correctamente pero no tiene hijos.
func (v NodeView) Empty() bool {
	return v.Status == StatusLoaded && len(v.Subcategories) == 0 && len(v.Articles) == 0
}

func (e nodeEntry) view() NodeView {
	v := NodeView{
		Kind:     e.key.kind,
		ID:       e.key.id,
		Status:   e.state.status(),
		Expanded: e.expanded,
	}
	switch st := e.state.(type) {
	case loadedState:
		if st.subcategories != nil {
			v.Subcategories = append([]entity.SubcategoryNode(nil), st.subcategories...)
		}
		if st.articles != nil {
			v.Articles = append([]entity.ArticleRow(nil), st.articles...)
		}
		if st.page != nil {
			p := *st.page
			v.Pagination = &p
		}
		v.PageLoading = st.pageAttempt != 0
		v.PageErr = st.pageErr
		v.Reconciliation = st.recon
	case errorState:
		v.Err = st.err
	}
	return v
}
