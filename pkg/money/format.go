// Package money formatea importes y porcentajes para reportes en español (es-CO):
// separador de miles "." y decimal ",".
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Spanish)

// Format importe sin decimales con signo pesos. Ej: 1234567.4 → "$1.234.567".
func Format(d decimal.Decimal) string {
	n := d.Round(0).IntPart()
	if n < 0 {
		return printer.Sprintf("-$%d", -n)
	}
	return printer.Sprintf("$%d", n)
}

// Percent porcentaje con dos decimales. Ej: 40.5 → "40,50%".
func Percent(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return printer.Sprintf("%.2f%%", f)
}

// Int entero con separador de miles.
func Int(n int) string {
	return printer.Sprintf("%d", n)
}
