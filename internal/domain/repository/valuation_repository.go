package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

// GroupTotal resultado crudo de una agregación por categoría o subcategoría.
// Lo produce la DB; el use case calcula los porcentajes.
type GroupTotal struct {
	ID       string
	Name     string
	Articles int
	Value    decimal.Decimal // Σ existencias × costo promedio
}

// ValuationRepository consultas de solo lectura del inventario valorizado.
// Todas reciben el alcance de filtros; ninguna modifica datos.
type ValuationRepository interface {
	// CategoryTotals agrega por categoría raíz (categories.parent_id IS NULL).
	CategoryTotals(ctx context.Context, companyID string, scope entity.FilterScope) ([]GroupTotal, error)

	// SubcategoryTotals agrega por subcategoría hija de categoryID.
	SubcategoryTotals(ctx context.Context, companyID string, scope entity.FilterScope, categoryID string) ([]GroupTotal, error)

	// ArticlesBySubcategory página de artículos de subcategoryID ordenada por valor descendente.
	// total es la cantidad de artículos que cumplen el filtro sin paginar.
	ArticlesBySubcategory(
		ctx context.Context,
		companyID string,
		scope entity.FilterScope,
		subcategoryID string,
		limit, offset int,
	) (rows []entity.ArticleRow, total int, err error)

	// ValuedArticles lista completa de artículos con valor positivo, ordenada por valor
	// descendente, con días desde la última venta (nil = nunca vendido). Sin letra ABC.
	ValuedArticles(ctx context.Context, companyID string, scope entity.FilterScope) ([]entity.ValuedArticle, error)
}
