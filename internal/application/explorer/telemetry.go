package explorer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resultados posibles de una consulta al servicio de reportes.
const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeTimeout   = "timeout"
	outcomeStale     = "stale"
	outcomeCancelled = "cancelled"
	outcomeReplaced  = "replaced"
)

// Tipos de consulta para las etiquetas de métricas.
const (
	fetchCategories    = "categories"
	fetchSubcategories = "subcategories"
	fetchArticles      = "articles"
	fetchArticlesMore  = "articles_more"
	fetchValuation     = "valuation"
	fetchBucket        = "bucket"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "valuation_explorer",
		Name:      "fetch_total",
		Help:      "Consultas al servicio de reportes por tipo y resultado.",
	}, []string{"kind", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "valuation_explorer",
		Name:      "fetch_duration_seconds",
		Help:      "Duración de las consultas al servicio de reportes.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})

	scopeChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "valuation_explorer",
		Name:      "scope_changes_total",
		Help:      "Cambios de filtro aplicados (cada uno invalida la caché de nodos).",
	})

	reconciliationMismatch = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "valuation_explorer",
		Name:      "reconciliation_mismatch_total",
		Help:      "Listados cuyos porcentajes no suman 100% dentro de la tolerancia.",
	})
)
