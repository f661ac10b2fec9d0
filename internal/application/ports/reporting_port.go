package ports

import (
	"context"

	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

// ReportingService puerto de salida hacia el servicio remoto de reportes de valorización.
// Todas las llamadas son de solo lectura y reciben el alcance activo como filtro.
// El explorador solo conoce este contrato; el adaptador HTTP vive en infrastructure/reporting.
type ReportingService interface {
	// Categories resumen valorizado por categoría.
	Categories(ctx context.Context, scope entity.FilterScope) ([]entity.CategoryNode, error)

	// Subcategories resumen de las subcategorías de categoryID.
	Subcategories(ctx context.Context, scope entity.FilterScope, categoryID string) ([]entity.SubcategoryNode, error)

	// Articles página de artículos valorizados de subcategoryID.
	Articles(ctx context.Context, scope entity.FilterScope, subcategoryID string, limit, offset int) (*entity.ArticlePage, error)

	// ValuedArticles lista plana (top `limit` por valor) con clasificación ABC y días sin venta.
	ValuedArticles(ctx context.Context, scope entity.FilterScope, limit int) ([]entity.ValuedArticle, error)

	// Bucket artículos de una letra ABC, hasta `limit`.
	Bucket(ctx context.Context, scope entity.FilterScope, label entity.Classification, limit int) ([]entity.ValuedArticle, error)
}
