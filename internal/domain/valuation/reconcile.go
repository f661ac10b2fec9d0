package valuation

import "github.com/shopspring/decimal"

// ReconcileTolerance desviación máxima aceptada (en puntos porcentuales) entre la suma
// de los hijos y el 100% del padre.
var ReconcileTolerance = decimal.NewFromInt(1)

// Reconciliation resultado de sumar los porcentajes reportados por el backend para los
// hijos de un nodo. Solo informa: los números del backend se muestran tal cual.
type Reconciliation struct {
	Sum      decimal.Decimal
	Delta    decimal.Decimal // Sum - 100
	Balanced bool
}

// CheckReconciliation suma percents y verifica que esté a ±1 punto de 100.
// Una lista vacía se considera conciliada (no hay hijos que mostrar).
func CheckReconciliation(percents []decimal.Decimal) Reconciliation {
	if len(percents) == 0 {
		return Reconciliation{Balanced: true}
	}
	var sum decimal.Decimal
	for _, p := range percents {
		sum = sum.Add(p)
	}
	delta := sum.Sub(hundred)
	return Reconciliation{
		Sum:      sum,
		Delta:    delta,
		Balanced: delta.Abs().LessThanOrEqual(ReconcileTolerance),
	}
}
