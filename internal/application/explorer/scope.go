package explorer

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/jhoicas/Inventario-valuation/internal/domain"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type scopeRules struct {
	SubcategoryID string `validate:"omitempty,max=64,printascii"`
}

// ValidateScope rechaza alcances imposibles antes de aplicarlos: un alcance inválido
// nunca avanza el token ni invalida la caché.
func ValidateScope(scope entity.FilterScope) error {
	if err := validate.Struct(scopeRules{SubcategoryID: scope.SubcategoryID}); err != nil {
		return fmt.Errorf("%w: subcategory_id: %v", domain.ErrInvalidScope, err)
	}
	if scope.DateFrom != nil && scope.DateTo != nil && scope.DateFrom.After(*scope.DateTo) {
		return fmt.Errorf("%w: date_from posterior a date_to", domain.ErrInvalidScope)
	}
	return nil
}

// CurrentToken token del alcance activo; cada petición saliente se sella con él.
func (x *Explorer) CurrentToken() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.token
}

// IsStale true si responseToken ya no corresponde al alcance activo.
func (x *Explorer) IsStale(responseToken uint64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.isStaleLocked(responseToken)
}

func (x *Explorer) isStaleLocked(responseToken uint64) bool {
	return responseToken != x.token
}

// Scope alcance activo.
func (x *Explorer) Scope() entity.FilterScope {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.scope
}

// SetScope reemplaza el alcance, avanza el token y barre toda la caché dependiente
// (categorías, nodos, bucket abierto y lista plana) en una sola sección crítica, de modo
// que ninguna consulta del nuevo alcance se despacha antes de terminar el barrido.
// No vuelve a consultar; ApplyFilters lo hace. Devuelve el nuevo token.
func (x *Explorer) SetScope(scope entity.FilterScope) (uint64, error) {
	if err := ValidateScope(scope); err != nil {
		return 0, err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	x.scope = scope
	x.token++
	x.nodes = make(map[nodeKey]nodeEntry)
	x.categories = categoryState{}
	x.bucket = bucketState{}
	x.valuation.items = nil
	x.valuation.status = ValuationIdle
	x.valuation.err = nil

	scopeChanges.Inc()
	x.log.Info().
		Uint64("token", x.token).
		Str("scope", scope.Key()).
		Msg("explorer: filtro aplicado, caché invalidada")
	return x.token, nil
}
