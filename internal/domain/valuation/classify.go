package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

// Umbrales acumulados de la curva de Pareto (porcentaje del valor total).
var (
	thresholdA = decimal.NewFromInt(80)
	thresholdB = decimal.NewFromInt(95)
)

// Classify asigna la letra ABC a cada artículo según su participación acumulada en el valor
// total, recorriendo de mayor a menor valor:
//   - A mientras el acumulado previo sea < 80%
//   - B mientras el acumulado previo sea < 95%
//   - C el resto
//
// El artículo que cruza un umbral queda en el bucket inferior (igual que el ranking Pareto
// de márgenes). Con valor total cero todos quedan en C. Devuelve una copia ordenada por valor.
func Classify(items []entity.ValuedArticle) []entity.ValuedArticle {
	out := make([]entity.ValuedArticle, len(items))
	copy(out, items)
	sortByValueDesc(out)

	var grand decimal.Decimal
	for _, it := range out {
		grand = grand.Add(it.TotalValue)
	}

	var cumulative decimal.Decimal
	for i := range out {
		if !grand.IsPositive() || !out[i].TotalValue.IsPositive() {
			out[i].Classification = entity.ClassC
			continue
		}
		before := cumulative.Div(grand).Mul(hundred)
		switch {
		case before.LessThan(thresholdA):
			out[i].Classification = entity.ClassA
		case before.LessThan(thresholdB):
			out[i].Classification = entity.ClassB
		default:
			out[i].Classification = entity.ClassC
		}
		cumulative = cumulative.Add(out[i].TotalValue)
	}
	return out
}
