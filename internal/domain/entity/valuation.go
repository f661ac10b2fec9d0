package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-valuation/internal/domain"
)

// FilterScope parámetros activos del tablero de costos. Los campos vacíos (nil / "") no filtran.
// Se compara por valor: cualquier cambio de campo produce un alcance distinto.
type FilterScope struct {
	DateFrom      *time.Time
	DateTo        *time.Time
	SubcategoryID string // restricción global de subcategoría
	StockOnly     bool   // solo artículos con existencias > 0
}

// Equal compara dos alcances campo a campo (las fechas por día calendario).
func (s FilterScope) Equal(o FilterScope) bool {
	return sameDay(s.DateFrom, o.DateFrom) &&
		sameDay(s.DateTo, o.DateTo) &&
		s.SubcategoryID == o.SubcategoryID &&
		s.StockOnly == o.StockOnly
}

// Key representación canónica del alcance, usada en claves de caché y logs.
// Ej: "from=2026-01-01|to=-|sub=-|stock=1"
func (s FilterScope) Key() string {
	var b strings.Builder
	b.WriteString("from=")
	b.WriteString(FormatDate(s.DateFrom))
	b.WriteString("|to=")
	b.WriteString(FormatDate(s.DateTo))
	b.WriteString("|sub=")
	if s.SubcategoryID == "" {
		b.WriteString("-")
	} else {
		b.WriteString(s.SubcategoryID)
	}
	b.WriteString("|stock=")
	if s.StockOnly {
		b.WriteString("1")
	} else {
		b.WriteString("0")
	}
	return b.String()
}

// FormatDate devuelve YYYY-MM-DD o "-" si la fecha no está definida.
func FormatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

// CategoryNode resumen valorizado de una categoría para el alcance activo.
// Se reemplaza completo en cada cambio de alcance; nunca se muta incrementalmente.
type CategoryNode struct {
	ID             string
	Name           string
	TotalArticles  int
	TotalValue     decimal.Decimal
	PercentOfTotal decimal.Decimal
}

// SubcategoryNode resumen de una subcategoría dentro de su categoría padre.
type SubcategoryNode struct {
	ParentCategoryID  string
	ID                string
	Name              string
	TotalArticles     int
	TotalValue        decimal.Decimal
	PercentOfCategory decimal.Decimal
	PercentOfTotal    decimal.Decimal
}

// ArticleRow artículo valorizado (existencias × costo unitario) de una subcategoría.
type ArticleRow struct {
	ID         string
	Code       string
	Name       string
	StockQty   int
	UnitCost   decimal.Decimal
	TotalValue decimal.Decimal
}

// ArticlePage página del listado de artículos; Total es autoritativo para el cursor.
type ArticlePage struct {
	Articles []ArticleRow
	Total    int
}

// Classification letra ABC (Pareto) de un artículo.
type Classification string

const (
	ClassA Classification = "A" // ≈80% del valor
	ClassB Classification = "B" // ≈15%
	ClassC Classification = "C" // ≈5%
)

// Classifications orden canónico de los buckets.
var Classifications = [...]Classification{ClassA, ClassB, ClassC}

// ParseClassification normaliza la letra ("a", " B ") y valida que sea A, B o C.
func ParseClassification(s string) (Classification, error) {
	c := Classification(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ClassA, ClassB, ClassC:
		return c, nil
	}
	return "", domain.ErrInvalidClassification
}

// ValuedArticle artículo de la lista plana de valorización (entrada del análisis ABC).
// DaysSinceSale es nil si el artículo nunca se ha vendido.
type ValuedArticle struct {
	ID             string
	Code           string
	Name           string
	Stock          int
	TotalValue     decimal.Decimal
	Classification Classification
	DaysSinceSale  *int
}

// DaysLabel texto corto de días sin venta ("nunca" si no hay ventas).
func (a ValuedArticle) DaysLabel() string {
	if a.DaysSinceSale == nil {
		return "nunca"
	}
	return strconv.Itoa(*a.DaysSinceSale)
}

// ClassificationBucket agregado derivado por letra ABC; no se persiste.
type ClassificationBucket struct {
	Label          Classification
	ArticleCount   int
	TotalValue     decimal.Decimal
	PercentOfValue decimal.Decimal
}
