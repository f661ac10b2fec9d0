package explorer

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Inventario-valuation/internal/domain"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

// LoadMore pide la página siguiente de un nodo de artículos (offset = filas cargadas,
// limit fijo). Solo se acepta con el nodo loaded, HasMore=true y sin otra página en
// vuelo; en otro caso devuelve ErrLoadMoreRejected sin consultar.
//
// Si la página falla el nodo sigue loaded con sus filas y expone PageErr; volver a
// llamar reintenta solo esa página.
func (x *Explorer) LoadMore(ctx context.Context, subcategoryID string) error {
	key := nodeKey{KindArticleList, subcategoryID}

	x.mu.Lock()
	e, ok := x.nodes[key]
	if !ok {
		x.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrLoadMoreRejected, subcategoryID)
	}
	st, loaded := e.state.(loadedState)
	if !loaded || st.page == nil || !st.page.HasMore || st.pageAttempt != 0 {
		x.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrLoadMoreRejected, subcategoryID)
	}
	t := x.nextTicketLocked()
	offset, limit := st.page.Offset, st.page.Limit
	x.nodes[key] = e.withPageInFlight(t.attempt)
	x.mu.Unlock()

	fctx, done := x.fetchContext(ctx)
	defer done()
	started := time.Now()
	page, err := x.svc.Articles(fctx, t.scope, subcategoryID, limit, offset)
	observe(fetchArticlesMore, started)
	outcome, err := fetchOutcome(fctx, err)
	if err == nil && page == nil {
		page = &entity.ArticlePage{Total: offset}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.isStaleLocked(t.token) {
		fetchTotal.WithLabelValues(fetchArticlesMore, outcomeStale).Inc()
		return nil
	}
	e, ok = x.nodes[key]
	if !ok {
		fetchTotal.WithLabelValues(fetchArticlesMore, outcomeReplaced).Inc()
		return nil
	}
	st, loaded = e.state.(loadedState)
	if !loaded || st.pageAttempt != t.attempt {
		fetchTotal.WithLabelValues(fetchArticlesMore, outcomeReplaced).Inc()
		return nil
	}
	fetchTotal.WithLabelValues(fetchArticlesMore, outcome).Inc()

	switch outcome {
	case outcomeOK:
		x.nodes[key] = e.withNextPage(*page)
		return nil
	case outcomeCancelled:
		x.nodes[key] = e.withPageError(nil)
		return err
	default:
		x.nodes[key] = e.withPageError(err)
		x.log.Warn().Err(err).Str("node", subcategoryID).Int("offset", offset).Msg("explorer: cargar más")
		return fmt.Errorf("explorer: página %d de %s: %w", offset, subcategoryID, err)
	}
}

// LoadAll pide páginas hasta agotar el cursor del nodo (usado por la CLI con --all-pages).
func (x *Explorer) LoadAll(ctx context.Context, subcategoryID string) error {
	for {
		v, ok := x.Node(KindArticleList, subcategoryID)
		if !ok || v.Pagination == nil || !v.Pagination.HasMore {
			return nil
		}
		if err := x.LoadMore(ctx, subcategoryID); err != nil {
			return err
		}
	}
}
