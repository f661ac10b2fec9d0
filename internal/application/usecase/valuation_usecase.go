package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/Inventario-valuation/internal/application/dto"
	"github.com/jhoicas/Inventario-valuation/internal/domain"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
	"github.com/jhoicas/Inventario-valuation/internal/domain/repository"
	"github.com/jhoicas/Inventario-valuation/internal/domain/valuation"
)

const (
	defaultArticlePage = 50
	defaultFlatLimit   = 1000
	defaultBucketLimit = 500

	// sharedLoadTimeout tope de una consulta compartida; no depende de ningún llamador.
	sharedLoadTimeout = 30 * time.Second
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ResponseCache caché de respuestas con invalidación global (la implementa cache.Versioned).
type ResponseCache interface {
	Key(ctx context.Context, parts ...string) (string, error)
	Fetch(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) (int64, error)
}

// ValuationUseCase arma los reportes de inventario valorizado y aplica las reglas de negocio:
//   - Participación % de cada categoría y subcategoría sobre el total del alcance.
//   - Clasificación ABC (Pareto 80/15/5) de la lista plana.
//   - Caché versionada por empresa y alcance; misses concurrentes de la misma clave se
//     resuelven con una sola consulta.
type ValuationUseCase struct {
	repo  repository.ValuationRepository
	cache ResponseCache
	group singleflight.Group
	log   zerolog.Logger
}

// NewValuationUseCase construye el caso de uso. cache puede ser un Versioned sin cliente.
func NewValuationUseCase(repo repository.ValuationRepository, cache ResponseCache, log zerolog.Logger) *ValuationUseCase {
	return &ValuationUseCase{repo: repo, cache: cache, log: log}
}

// cached resuelve key desde la caché o con load; las llamadas concurrentes con la misma
// clave comparten el resultado. La consulta corre fuera del ctx del primer llamador: si uno
// se cancela, solo él deja de esperar.
func cached[T any](ctx context.Context, uc *ValuationUseCase, key string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	ch := uc.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		var out T
		err := uc.cache.Fetch(lctx, key, &out, func(ctx context.Context) (any, error) {
			return load(ctx)
		})
		return out, err
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			uc.log.Debug().Str("key", key).Msg("valuation: consulta compartida")
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (uc *ValuationUseCase) key(ctx context.Context, kind, companyID string, scope entity.FilterScope, extra ...string) (string, error) {
	parts := append([]string{"valuation", kind, companyID, scope.Key()}, extra...)
	key, err := uc.cache.Key(ctx, parts...)
	if err != nil {
		// Redis no disponible: se sigue sin versión (el Fetch hará bypass).
		uc.log.Warn().Err(err).Msg("valuation: versión de caché no disponible")
		return strings.Join(parts, ":"), nil
	}
	return key, nil
}

func parseScope(q any, scopeQuery dto.ValuationScopeQuery) (entity.FilterScope, error) {
	if err := validate.Struct(q); err != nil {
		return entity.FilterScope{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return scopeQuery.ToScope()
}

// Categories resumen por categoría con su participación en el valor total del alcance.
func (uc *ValuationUseCase) Categories(ctx context.Context, companyID string, q dto.ValuationScopeQuery) ([]dto.CategorySummaryDTO, error) {
	scope, err := parseScope(q, q)
	if err != nil {
		return nil, err
	}
	key, err := uc.key(ctx, "categories", companyID, scope)
	if err != nil {
		return nil, err
	}
	return cached(ctx, uc, key, func(ctx context.Context) ([]dto.CategorySummaryDTO, error) {
		totals, err := uc.repo.CategoryTotals(ctx, companyID, scope)
		if err != nil {
			return nil, err
		}
		grand := sumTotals(totals)
		out := make([]dto.CategorySummaryDTO, 0, len(totals))
		for _, t := range totals {
			out = append(out, dto.NewCategorySummaryDTO(entity.CategoryNode{
				ID:             t.ID,
				Name:           t.Name,
				TotalArticles:  t.Articles,
				TotalValue:     t.Value,
				PercentOfTotal: valuation.PercentOf(t.Value, grand),
			}))
		}
		return out, nil
	})
}

// Subcategories resumen de las subcategorías de una categoría: participación en la
// categoría y en el total del alcance.
func (uc *ValuationUseCase) Subcategories(ctx context.Context, companyID string, q dto.SubcategoryQuery) ([]dto.SubcategorySummaryDTO, error) {
	scope, err := parseScope(q, q.ValuationScopeQuery)
	if err != nil {
		return nil, err
	}
	key, err := uc.key(ctx, "subcategories", companyID, scope, q.CategoryID)
	if err != nil {
		return nil, err
	}
	return cached(ctx, uc, key, func(ctx context.Context) ([]dto.SubcategorySummaryDTO, error) {
		// 1) Subcategorías y total general en paralelo (consultas independientes)
		var subs, cats []repository.GroupTotal
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			subs, err = uc.repo.SubcategoryTotals(gctx, companyID, scope, q.CategoryID)
			return err
		})
		g.Go(func() (err error) {
			cats, err = uc.repo.CategoryTotals(gctx, companyID, scope)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		// 2) Participaciones
		categoryTotal := sumTotals(subs)
		grand := sumTotals(cats)
		out := make([]dto.SubcategorySummaryDTO, 0, len(subs))
		for _, s := range subs {
			out = append(out, dto.NewSubcategorySummaryDTO(entity.SubcategoryNode{
				ParentCategoryID:  q.CategoryID,
				ID:                s.ID,
				Name:              s.Name,
				TotalArticles:     s.Articles,
				TotalValue:        s.Value,
				PercentOfCategory: valuation.PercentOf(s.Value, categoryTotal),
				PercentOfTotal:    valuation.PercentOf(s.Value, grand),
			}))
		}
		return out, nil
	})
}

// Articles página de artículos de la subcategoría subcategory_id.
func (uc *ValuationUseCase) Articles(ctx context.Context, companyID string, q dto.ArticleQuery) (*dto.ArticleListDTO, error) {
	scope, err := parseScope(q, q.ValuationScopeQuery)
	if err != nil {
		return nil, err
	}
	if q.SubcategoryID == "" {
		return nil, fmt.Errorf("%w: subcategory_id requerido", domain.ErrInvalidInput)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultArticlePage
	}
	key, err := uc.key(ctx, "articles", companyID, scope, fmt.Sprintf("%d@%d", limit, q.Offset))
	if err != nil {
		return nil, err
	}
	return cached(ctx, uc, key, func(ctx context.Context) (*dto.ArticleListDTO, error) {
		rows, total, err := uc.repo.ArticlesBySubcategory(ctx, companyID, scope, q.SubcategoryID, limit, q.Offset)
		if err != nil {
			return nil, err
		}
		out := &dto.ArticleListDTO{Articles: make([]dto.ArticleDTO, 0, len(rows)), Total: total}
		for _, r := range rows {
			out.Articles = append(out.Articles, dto.NewArticleDTO(r))
		}
		return out, nil
	})
}

// classified lista plana completa con la letra ABC; la comparten el listado y los buckets.
func (uc *ValuationUseCase) classified(ctx context.Context, companyID string, scope entity.FilterScope) ([]dto.ValuedArticleDTO, error) {
	key, err := uc.key(ctx, "flat", companyID, scope)
	if err != nil {
		return nil, err
	}
	return cached(ctx, uc, key, func(ctx context.Context) ([]dto.ValuedArticleDTO, error) {
		items, err := uc.repo.ValuedArticles(ctx, companyID, scope)
		if err != nil {
			return nil, err
		}
		items = valuation.Classify(items)
		out := make([]dto.ValuedArticleDTO, 0, len(items))
		for _, it := range items {
			out = append(out, dto.NewValuedArticleDTO(it))
		}
		return out, nil
	})
}

// ValuedArticles top `limit` artículos por valor con su clasificación ABC. La letra se
// calcula sobre la lista completa del alcance, no sobre el recorte.
func (uc *ValuationUseCase) ValuedArticles(ctx context.Context, companyID string, q dto.FlatValuationQuery) ([]dto.ValuedArticleDTO, error) {
	scope, err := parseScope(q, q.ValuationScopeQuery)
	if err != nil {
		return nil, err
	}
	all, err := uc.classified(ctx, companyID, scope)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultFlatLimit
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Bucket artículos de una letra ABC (hasta `limit`, default 500).
func (uc *ValuationUseCase) Bucket(ctx context.Context, companyID, label string, q dto.FlatValuationQuery) ([]dto.ValuedArticleDTO, error) {
	class, err := entity.ParseClassification(label)
	if err != nil {
		return nil, err
	}
	scope, err := parseScope(q, q.ValuationScopeQuery)
	if err != nil {
		return nil, err
	}
	all, err := uc.classified(ctx, companyID, scope)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultBucketLimit
	}
	out := make([]dto.ValuedArticleDTO, 0)
	for _, it := range all {
		if it.Classification == string(class) {
			out = append(out, it)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// BumpCache invalida todos los reportes cacheados (tras movimientos de stock o de costo).
func (uc *ValuationUseCase) BumpCache(ctx context.Context) (int64, error) {
	ver, err := uc.cache.Bump(ctx)
	if err != nil {
		return 0, fmt.Errorf("valuation: bump caché: %w", err)
	}
	uc.log.Info().Int64("version", ver).Msg("valuation: caché invalidada")
	return ver, nil
}

func sumTotals(totals []repository.GroupTotal) decimal.Decimal {
	var sum decimal.Decimal
	for _, t := range totals {
		sum = sum.Add(t.Value)
	}
	return sum
}
