package explorer

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
	"github.com/jhoicas/Inventario-valuation/internal/domain/valuation"
)

// ValuationStatus estado de la lista plana que alimenta el análisis ABC.
type ValuationStatus int

const (
	ValuationIdle ValuationStatus = iota
	ValuationLoading
	ValuationLoaded
	ValuationError
)

func (s ValuationStatus) String() string {
	switch s {
	case ValuationLoading:
		return "loading"
	case ValuationLoaded:
		return "loaded"
	case ValuationError:
		return "error"
	default:
		return "idle"
	}
}

type valuationState struct {
	status    ValuationStatus
	attempt   uint64
	requested bool // la vista ABC se usó en la sesión; ApplyFilters la recarga
	items     []entity.ValuedArticle
	err       error
	filter    entity.Classification
	deadDays  int
}

// ValuationView métricas recalculadas al momento sobre la lista plana vigente.
type ValuationView struct {
	Status        ValuationStatus
	Err           error
	Filter        entity.Classification
	DeadStockDays int
	Metrics       valuation.Metrics
}

// LoadValuation consulta la lista plana (top ValuationLimit por valor) del alcance activo.
func (x *Explorer) LoadValuation(ctx context.Context) error {
	x.mu.Lock()
	x.valuation.requested = true
	if x.valuation.status == ValuationLoading {
		x.mu.Unlock()
		return nil
	}
	t := x.nextTicketLocked()
	x.valuation.status = ValuationLoading
	x.valuation.attempt = t.attempt
	x.valuation.err = nil
	x.mu.Unlock()

	fctx, done := x.fetchContext(ctx)
	defer done()
	started := time.Now()
	items, err := x.svc.ValuedArticles(fctx, t.scope, x.cfg.ValuationLimit)
	observe(fetchValuation, started)
	outcome, err := fetchOutcome(fctx, err)

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.isStaleLocked(t.token) || x.valuation.attempt != t.attempt {
		fetchTotal.WithLabelValues(fetchValuation, outcomeStale).Inc()
		return nil
	}
	fetchTotal.WithLabelValues(fetchValuation, outcome).Inc()

	switch outcome {
	case outcomeOK:
		x.valuation.status = ValuationLoaded
		x.valuation.items = items
		return nil
	case outcomeCancelled:
		x.valuation.status = ValuationIdle
		return err
	default:
		x.valuation.status = ValuationError
		x.valuation.err = err
		x.log.Warn().Err(err).Msg("explorer: lista de valorización")
		return fmt.Errorf("explorer: valorización: %w", err)
	}
}

// SetClassificationFilter fija el filtro de clasificación activo ("" = todas).
func (x *Explorer) SetClassificationFilter(label string) error {
	var class entity.Classification
	if label != "" {
		c, err := entity.ParseClassification(label)
		if err != nil {
			return err
		}
		class = c
	}
	x.mu.Lock()
	x.valuation.filter = class
	x.mu.Unlock()
	return nil
}

// SetDeadStockDays cambia el umbral de inventario muerto; <= 0 desactiva el análisis.
func (x *Explorer) SetDeadStockDays(days int) {
	x.mu.Lock()
	x.valuation.deadDays = days
	x.mu.Unlock()
}

// Valuation recalcula las métricas con la lista, el filtro y el umbral vigentes.
func (x *Explorer) Valuation() ValuationView {
	x.mu.Lock()
	items := x.valuation.items
	v := ValuationView{
		Status:        x.valuation.status,
		Err:           x.valuation.err,
		Filter:        x.valuation.filter,
		DeadStockDays: x.valuation.deadDays,
	}
	x.mu.Unlock()

	// items nunca se muta en sitio: cada carga lo reemplaza completo.
	v.Metrics = valuation.Reduce(items, valuation.ReduceOptions{
		DeadStockDays: v.DeadStockDays,
		TopN:          x.cfg.TopN,
		Filter:        v.Filter,
	})
	return v
}

// Metrics atajo de Valuation().Metrics.
func (x *Explorer) Metrics() valuation.Metrics {
	return x.Valuation().Metrics
}
