package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
	"github.com/jhoicas/Inventario-valuation/internal/domain/repository"
)

var _ repository.ValuationRepository = (*ValuationRepo)(nil)

// ValuationRepo consultas de solo lectura del inventario valorizado.
type ValuationRepo struct {
	pool *pgxpool.Pool
}

// NewValuationRepository construye el adaptador de valorización.
func NewValuationRepository(pool *pgxpool.Pool) *ValuationRepo {
	return &ValuationRepo{pool: pool}
}

// valuedCTE artículos valorizados (existencias de todas las bodegas × costo promedio)
// que cumplen el alcance. Parámetros fijos:
//
//	$1 company_id, $2 date_from, $3 date_to, $4 subcategory_id ('' = todas), $5 stock_only
//
// El rango de fechas restringe a productos con algún movimiento de inventario en el período.
const valuedCTE = `
	WITH valued AS (
	    SELECT
	        p.id,
	        p.sku,
	        p.name,
	        sub.id                                 AS subcategory_id,
	        sub.name                               AS subcategory_name,
	        cat.id                                 AS category_id,
	        cat.name                               AS category_name,
	        COALESCE(SUM(s.quantity), 0)           AS stock,
	        p.cost                                 AS unit_cost,
	        COALESCE(SUM(s.quantity), 0) * p.cost  AS total_value
	    FROM products p
	    JOIN categories sub ON sub.id = p.category_id
	    JOIN categories cat ON cat.id = sub.parent_id
	    LEFT JOIN stock s   ON s.product_id = p.id
	    WHERE p.company_id = $1
	      AND ($4::TEXT = '' OR sub.id::TEXT = $4)
	      AND (
	          ($2::DATE IS NULL AND $3::DATE IS NULL)
	          OR EXISTS (
	              SELECT 1 FROM inventory_movements m
	              WHERE m.product_id = p.id
	                AND m.date::DATE BETWEEN COALESCE($2::DATE, '-infinity'::DATE)
	                                     AND COALESCE($3::DATE, 'infinity'::DATE)
	          )
	      )
	    GROUP BY p.id, p.sku, p.name, p.cost, sub.id, sub.name, cat.id, cat.name
	    HAVING NOT $5::BOOLEAN OR COALESCE(SUM(s.quantity), 0) > 0
	)`

func scopeArgs(companyID string, scope entity.FilterScope) []any {
	return []any{companyID, scope.DateFrom, scope.DateTo, scope.SubcategoryID, scope.StockOnly}
}

// CategoryTotals agrega el valor por categoría raíz, de mayor a menor.
func (r *ValuationRepo) CategoryTotals(ctx context.Context, companyID string, scope entity.FilterScope) ([]repository.GroupTotal, error) {
	query := valuedCTE + `
	SELECT category_id::TEXT, category_name, COUNT(*), COALESCE(SUM(total_value), 0)
	FROM valued
	GROUP BY category_id, category_name
	ORDER BY 4 DESC, category_name, category_id`

	rows, err := r.pool.Query(ctx, query, scopeArgs(companyID, scope)...)
	if err != nil {
		return nil, fmt.Errorf("valuation.CategoryTotals: %w", err)
	}
	return collectTotals(rows, "valuation.CategoryTotals")
}

// SubcategoryTotals agrega por subcategoría dentro de categoryID.
func (r *ValuationRepo) SubcategoryTotals(ctx context.Context, companyID string, scope entity.FilterScope, categoryID string) ([]repository.GroupTotal, error) {
	query := valuedCTE + `
	SELECT subcategory_id::TEXT, subcategory_name, COUNT(*), COALESCE(SUM(total_value), 0)
	FROM valued
	WHERE category_id::TEXT = $6
	GROUP BY subcategory_id, subcategory_name
	ORDER BY 4 DESC, subcategory_name, subcategory_id`

	args := append(scopeArgs(companyID, scope), categoryID)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("valuation.SubcategoryTotals: %w", err)
	}
	return collectTotals(rows, "valuation.SubcategoryTotals")
}

func collectTotals(rows pgx.Rows, op string) ([]repository.GroupTotal, error) {
	defer rows.Close()
	results := []repository.GroupTotal{}
	for rows.Next() {
		var g repository.GroupTotal
		if err := rows.Scan(&g.ID, &g.Name, &g.Articles, &g.Value); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		results = append(results, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return results, nil
}

// articlesPageQuery pagina por OFFSET: el orden termina en id para que sea total y una fila
// no cambie de página entre consultas.
const articlesPageQuery = valuedCTE + `
	SELECT id::TEXT, sku, name, stock, unit_cost, total_value, COUNT(*) OVER () AS total
	FROM valued
	WHERE subcategory_id::TEXT = $6
	ORDER BY total_value DESC, sku, id
	LIMIT $7 OFFSET $8`

// ArticlesBySubcategory devuelve una página de artículos y el total sin paginar.
// COUNT(*) OVER () evita una segunda consulta para el total.
func (r *ValuationRepo) ArticlesBySubcategory(
	ctx context.Context,
	companyID string,
	scope entity.FilterScope,
	subcategoryID string,
	limit, offset int,
) ([]entity.ArticleRow, int, error) {
	args := append(scopeArgs(companyID, scope), subcategoryID, limit, offset)
	rows, err := r.pool.Query(ctx, articlesPageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("valuation.ArticlesBySubcategory: %w", err)
	}
	defer rows.Close()

	results := []entity.ArticleRow{}
	total := 0
	for rows.Next() {
		var (
			a     entity.ArticleRow
			stock decimal.Decimal
		)
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &stock, &a.UnitCost, &a.TotalValue, &total); err != nil {
			return nil, 0, fmt.Errorf("valuation.ArticlesBySubcategory scan: %w", err)
		}
		a.StockQty = int(stock.IntPart())
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("valuation.ArticlesBySubcategory rows: %w", err)
	}

	// Página fuera de rango: la ventana no devuelve filas, el total se consulta aparte.
	if len(results) == 0 && offset > 0 {
		countQuery := valuedCTE + `SELECT COUNT(*) FROM valued WHERE subcategory_id::TEXT = $6`
		if err := r.pool.QueryRow(ctx, countQuery, append(scopeArgs(companyID, scope), subcategoryID)...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("valuation.ArticlesBySubcategory count: %w", err)
		}
	}
	return results, total, nil
}

// ValuedArticles lista plana para el análisis ABC. Los días sin venta salen de la última
// factura válida que incluye el producto.
func (r *ValuationRepo) ValuedArticles(ctx context.Context, companyID string, scope entity.FilterScope) ([]entity.ValuedArticle, error) {
	query := valuedCTE + `
	SELECT
	    v.id::TEXT,
	    v.sku,
	    v.name,
	    v.stock,
	    v.total_value,
	    (
	        SELECT CURRENT_DATE - MAX(i.date)::DATE
	        FROM invoice_details d
	        JOIN invoices i ON i.id = d.invoice_id
	        WHERE d.product_id = v.id
	          AND i.dian_status NOT IN ('DRAFT', 'ERROR_GENERATION', 'Error')
	    ) AS days_since_sale
	FROM valued v
	WHERE v.total_value > 0
	ORDER BY v.total_value DESC, v.sku, v.id`

	rows, err := r.pool.Query(ctx, query, scopeArgs(companyID, scope)...)
	if err != nil {
		return nil, fmt.Errorf("valuation.ValuedArticles: %w", err)
	}
	defer rows.Close()

	results := []entity.ValuedArticle{}
	for rows.Next() {
		var (
			a     entity.ValuedArticle
			stock decimal.Decimal
			days  *int32
		)
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &stock, &a.TotalValue, &days); err != nil {
			return nil, fmt.Errorf("valuation.ValuedArticles scan: %w", err)
		}
		a.Stock = int(stock.IntPart())
		if days != nil {
			n := int(*days)
			a.DaysSinceSale = &n
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("valuation.ValuedArticles rows: %w", err)
	}
	return results, nil
}
