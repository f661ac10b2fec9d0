// Package valuation contiene la lógica pura del análisis de inventario valorizado:
// clasificación ABC (Pareto 80/15/5), métricas por bucket, inventario muerto y
// conciliación de porcentajes entre niveles del árbol. No hace I/O.
package valuation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

const defaultTopN = 10

var hundred = decimal.NewFromInt(100)

// ReduceOptions parámetros del reductor de métricas.
type ReduceOptions struct {
	DeadStockDays int                   // umbral "sin venta" en días; <= 0 desactiva el análisis
	TopN          int                   // tamaño del top por valor (default 10)
	Filter        entity.Classification // filtro de clasificación activo; "" = todas
}

// Metrics resultado del reductor. Todos los porcentajes van redondeados a 2 decimales.
type Metrics struct {
	ArticleCount int
	GrandTotal   decimal.Decimal
	Buckets      []entity.ClassificationBucket // siempre A, B, C en ese orden
	Unclassified int                           // artículos sin letra válida (contados en C)

	DeadStock        []entity.ValuedArticle
	DeadStockValue   decimal.Decimal
	DeadStockPercent decimal.Decimal

	Top     []entity.ValuedArticle // top N por valor
	Visible []entity.ValuedArticle // lista filtrada por la clasificación activa
}

// Bucket devuelve el agregado de una letra.
func (m Metrics) Bucket(label entity.Classification) entity.ClassificationBucket {
	for _, b := range m.Buckets {
		if b.Label == label {
			return b
		}
	}
	return entity.ClassificationBucket{Label: label}
}

// Reduce calcula las métricas de valorización a partir de la lista plana.
// Es una función pura: misma entrada, misma salida; no modifica items.
//
// Los artículos sin letra válida se suman al bucket C (cola de la curva) para que
// countA+countB+countC == total y valueA+valueB+valueC == GrandTotal.
func Reduce(items []entity.ValuedArticle, opts ReduceOptions) Metrics {
	topN := opts.TopN
	if topN <= 0 {
		topN = defaultTopN
	}

	counts := make(map[entity.Classification]int, 3)
	values := make(map[entity.Classification]decimal.Decimal, 3)
	var grand decimal.Decimal
	unclassified := 0

	for _, it := range items {
		grand = grand.Add(it.TotalValue)
		label := it.Classification
		switch label {
		case entity.ClassA, entity.ClassB, entity.ClassC:
		default:
			label = entity.ClassC
			unclassified++
		}
		counts[label]++
		values[label] = values[label].Add(it.TotalValue)
	}

	buckets := make([]entity.ClassificationBucket, 0, len(entity.Classifications))
	for _, label := range entity.Classifications {
		buckets = append(buckets, entity.ClassificationBucket{
			Label:          label,
			ArticleCount:   counts[label],
			TotalValue:     values[label],
			PercentOfValue: percentOf(values[label], grand),
		})
	}

	m := Metrics{
		ArticleCount: len(items),
		GrandTotal:   grand,
		Buckets:      buckets,
		Unclassified: unclassified,
		Top:          topByValue(items, topN),
		Visible:      filterByClass(items, opts.Filter),
	}

	if opts.DeadStockDays > 0 {
		m.DeadStock = deadStock(items, opts.DeadStockDays)
		for _, it := range m.DeadStock {
			m.DeadStockValue = m.DeadStockValue.Add(it.TotalValue)
		}
		m.DeadStockPercent = percentOf(m.DeadStockValue, grand)
	}
	if m.DeadStock == nil {
		m.DeadStock = []entity.ValuedArticle{}
	}
	return m
}

// IsDeadStock true si el artículo tiene existencias y valor positivos y lleva más de
// thresholdDays sin venta (o nunca se ha vendido).
func IsDeadStock(it entity.ValuedArticle, thresholdDays int) bool {
	if it.Stock <= 0 || !it.TotalValue.IsPositive() {
		return false
	}
	if it.DaysSinceSale == nil {
		return true
	}
	return *it.DaysSinceSale > thresholdDays
}

func deadStock(items []entity.ValuedArticle, thresholdDays int) []entity.ValuedArticle {
	out := make([]entity.ValuedArticle, 0)
	for _, it := range items {
		if IsDeadStock(it, thresholdDays) {
			out = append(out, it)
		}
	}
	sortByValueDesc(out)
	return out
}

func topByValue(items []entity.ValuedArticle, n int) []entity.ValuedArticle {
	sorted := make([]entity.ValuedArticle, len(items))
	copy(sorted, items)
	sortByValueDesc(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func filterByClass(items []entity.ValuedArticle, label entity.Classification) []entity.ValuedArticle {
	out := make([]entity.ValuedArticle, 0, len(items))
	for _, it := range items {
		if label == "" || it.Classification == label {
			out = append(out, it)
		}
	}
	return out
}

// sortByValueDesc ordena por valor descendente; desempata por código para que el orden sea estable.
func sortByValueDesc(items []entity.ValuedArticle) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].TotalValue.Equal(items[j].TotalValue) {
			return items[i].TotalValue.GreaterThan(items[j].TotalValue)
		}
		return items[i].Code < items[j].Code
	})
}

// percentOf part/total*100 redondeado a 2 decimales; 0 si total no es positivo.
func percentOf(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred).Round(2)
}

// PercentOf versión exportada para los adaptadores que calculan participaciones.
func PercentOf(part, total decimal.Decimal) decimal.Decimal {
	return percentOf(part, total)
}
