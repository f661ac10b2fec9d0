package dto

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-valuation/internal/domain"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

const dateLayout = "2006-01-02"

// ── Query parameters ──────────────────────────────────────────────────────────

// ValuationScopeQuery filtros compartidos por todos los endpoints de /api/valuation.
type ValuationScopeQuery struct {
	DateFrom      string `query:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo        string `query:"date_to" validate:"omitempty,datetime=2006-01-02"`
	SubcategoryID string `query:"subcategory_id" validate:"omitempty,max=64"`
	StockOnly     bool   `query:"stock_only"`
}

// SubcategoryQuery GET /api/valuation/subcategories.
type SubcategoryQuery struct {
	ValuationScopeQuery
	CategoryID string `query:"category_id" validate:"required,max=64"`
}

// ArticleQuery GET /api/valuation/articles. SubcategoryID (heredado) identifica el nodo listado.
type ArticleQuery struct {
	ValuationScopeQuery
	Limit  int `query:"limit" validate:"min=0,max=200"`
	Offset int `query:"offset" validate:"min=0"`
}

// FlatValuationQuery GET /api/valuation/articles/flat y /api/valuation/buckets/:label.
type FlatValuationQuery struct {
	ValuationScopeQuery
	Limit int `query:"limit" validate:"min=0,max=5000"`
}

// ToScope convierte los parámetros en un FilterScope; valida fechas y rango.
func (q ValuationScopeQuery) ToScope() (entity.FilterScope, error) {
	scope := entity.FilterScope{SubcategoryID: q.SubcategoryID, StockOnly: q.StockOnly}
	if q.DateFrom != "" {
		t, err := time.Parse(dateLayout, q.DateFrom)
		if err != nil {
			return entity.FilterScope{}, fmt.Errorf("%w: date_from: %v", domain.ErrInvalidScope, err)
		}
		scope.DateFrom = &t
	}
	if q.DateTo != "" {
		t, err := time.Parse(dateLayout, q.DateTo)
		if err != nil {
			return entity.FilterScope{}, fmt.Errorf("%w: date_to: %v", domain.ErrInvalidScope, err)
		}
		scope.DateTo = &t
	}
	if scope.DateFrom != nil && scope.DateTo != nil && scope.DateFrom.After(*scope.DateTo) {
		return entity.FilterScope{}, fmt.Errorf("%w: date_from no puede ser posterior a date_to", domain.ErrInvalidScope)
	}
	return scope, nil
}

// ScopeValues codifica un FilterScope como query string (date_from, date_to, subcategory_id, stock_only).
func ScopeValues(scope entity.FilterScope) url.Values {
	v := url.Values{}
	if scope.DateFrom != nil {
		v.Set("date_from", scope.DateFrom.Format(dateLayout))
	}
	if scope.DateTo != nil {
		v.Set("date_to", scope.DateTo.Format(dateLayout))
	}
	if scope.SubcategoryID != "" {
		v.Set("subcategory_id", scope.SubcategoryID)
	}
	v.Set("stock_only", strconv.FormatBool(scope.StockOnly))
	return v
}

// ── Respuestas ────────────────────────────────────────────────────────────────

// CategorySummaryDTO fila del resumen por categoría.
type CategorySummaryDTO struct {
	CategoryID     string          `json:"category_id"`
	Name           string          `json:"name"`
	TotalArticles  int             `json:"total_articles"`
	TotalValue     decimal.Decimal `json:"total_value"`
	PercentOfTotal decimal.Decimal `json:"percent_of_total"` // participación % en el valor total
}

// SubcategorySummaryDTO fila del resumen por subcategoría de una categoría.
type SubcategorySummaryDTO struct {
	SubcategoryID     string          `json:"subcategory_id"`
	Name              string          `json:"name"`
	TotalArticles     int             `json:"total_articles"`
	TotalValue        decimal.Decimal `json:"total_value"`
	PercentOfCategory decimal.Decimal `json:"percent_of_category"`
	PercentOfTotal    decimal.Decimal `json:"percent_of_total"`
}

// ArticleDTO artículo valorizado del listado paginado.
type ArticleDTO struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Stock      int             `json:"stock"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	TotalValue decimal.Decimal `json:"total_value"` // stock × unit_cost
}

// ArticleListDTO respuesta de GET /api/valuation/articles. Total es el conteo completo del nodo.
type ArticleListDTO struct {
	Articles []ArticleDTO `json:"articles"`
	Total    int          `json:"total"`
}

// ValuedArticleDTO fila de la lista plana de valorización (y de los buckets ABC).
type ValuedArticleDTO struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Stock          int             `json:"stock"`
	TotalValue     decimal.Decimal `json:"total_value"`
	Classification string          `json:"classification"` // A | B | C
	DaysSinceSale  *int            `json:"days_since_sale"`  // null si nunca se vendió
}

// ── Conversión entidad ↔ DTO ──────────────────────────────────────────────────

// NewCategorySummaryDTO construye el DTO desde la entidad.
func NewCategorySummaryDTO(c entity.CategoryNode) CategorySummaryDTO {
	return CategorySummaryDTO{
		CategoryID:     c.ID,
		Name:           c.Name,
		TotalArticles:  c.TotalArticles,
		TotalValue:     c.TotalValue.Round(2),
		PercentOfTotal: c.PercentOfTotal,
	}
}

// ToEntity convierte el DTO recibido del servicio de reportes.
func (d CategorySummaryDTO) ToEntity() entity.CategoryNode {
	return entity.CategoryNode{
		ID:             d.CategoryID,
		Name:           d.Name,
		TotalArticles:  d.TotalArticles,
		TotalValue:     d.TotalValue,
		PercentOfTotal: d.PercentOfTotal,
	}
}

// NewSubcategorySummaryDTO construye el DTO desde la entidad.
func NewSubcategorySummaryDTO(s entity.SubcategoryNode) SubcategorySummaryDTO {
	return SubcategorySummaryDTO{
		SubcategoryID:     s.ID,
		Name:              s.Name,
		TotalArticles:     s.TotalArticles,
		TotalValue:        s.TotalValue.Round(2),
		PercentOfCategory: s.PercentOfCategory,
		PercentOfTotal:    s.PercentOfTotal,
	}
}

// ToEntity convierte el DTO; parentID es la categoría expandida que originó la consulta.
func (d SubcategorySummaryDTO) ToEntity(parentID string) entity.SubcategoryNode {
	return entity.SubcategoryNode{
		ParentCategoryID:  parentID,
		ID:                d.SubcategoryID,
		Name:              d.Name,
		TotalArticles:     d.TotalArticles,
		TotalValue:        d.TotalValue,
		PercentOfCategory: d.PercentOfCategory,
		PercentOfTotal:    d.PercentOfTotal,
	}
}

// NewArticleDTO construye el DTO desde la entidad.
func NewArticleDTO(a entity.ArticleRow) ArticleDTO {
	return ArticleDTO{
		ID:         a.ID,
		Code:       a.Code,
		Name:       a.Name,
		Stock:      a.StockQty,
		UnitCost:   a.UnitCost.Round(2),
		TotalValue: a.TotalValue.Round(2),
	}
}

// ToEntity convierte el DTO recibido.
func (d ArticleDTO) ToEntity() entity.ArticleRow {
	return entity.ArticleRow{
		ID:         d.ID,
		Code:       d.Code,
		Name:       d.Name,
		StockQty:   d.Stock,
		UnitCost:   d.UnitCost,
		TotalValue: d.TotalValue,
	}
}

// NewValuedArticleDTO construye el DTO desde la entidad.
func NewValuedArticleDTO(a entity.ValuedArticle) ValuedArticleDTO {
	return ValuedArticleDTO{
		ID:             a.ID,
		Code:           a.Code,
		Name:           a.Name,
		Stock:          a.Stock,
		TotalValue:     a.TotalValue.Round(2),
		Classification: string(a.Classification),
		DaysSinceSale:  a.DaysSinceSale,
	}
}

// ToEntity convierte el DTO; una letra desconocida queda vacía (el reductor la cuenta en C).
func (d ValuedArticleDTO) ToEntity() entity.ValuedArticle {
	class, err := entity.ParseClassification(d.Classification)
	if err != nil {
		class = ""
	}
	return entity.ValuedArticle{
		ID:             d.ID,
		Code:           d.Code,
		Name:           d.Name,
		Stock:          d.Stock,
		TotalValue:     d.TotalValue,
		Classification: class,
		DaysSinceSale:  d.DaysSinceSale,
	}
}
