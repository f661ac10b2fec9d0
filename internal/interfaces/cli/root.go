// Package cli comandos Cobra del explorador de inventario valorizado.
// Cada comando abre una sesión del explorador contra el servicio de reportes, aplica
// el filtro de las flags globales y muestra el resultado.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jhoicas/Inventario-valuation/internal/application/dto"
	"github.com/jhoicas/Inventario-valuation/internal/application/explorer"
	"github.com/jhoicas/Inventario-valuation/internal/application/ports"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
	"github.com/jhoicas/Inventario-valuation/pkg/config"
	"github.com/jhoicas/Inventario-valuation/pkg/jwt"
	"github.com/jhoicas/Inventario-valuation/pkg/logger"
)

// Deps dependencias inyectables (los tests reemplazan el servicio y la TUI).
type Deps struct {
	Out        io.Writer
	Err        io.Writer
	LoadConfig func() (*config.Config, error)
	NewService func(cfg *config.Config, log zerolog.Logger) (ports.ReportingService, error)
	RunTUI     func(ctx context.Context, x *explorer.Explorer) error
}

type globalFlags struct {
	dateFrom    string
	dateTo      string
	subcategory string
	stockOnly   bool
	logLevel    string
}

// session sesión abierta por un comando.
type session struct {
	cfg   *config.Config
	log   *logger.Logger
	x     *explorer.Explorer
	scope entity.FilterScope
}

// NewRootCmd construye el comando raíz `explorer` con todos sus subcomandos.
func NewRootCmd(deps Deps) *cobra.Command {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Err == nil {
		deps.Err = os.Stderr
	}
	if deps.LoadConfig == nil {
		deps.LoadConfig = config.Load
	}

	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "explorer",
		Short: "Explorador de inventario valorizado (categorías, subcategorías, artículos y ABC)",
		Long: `Consulta el servicio de reportes de valorización y recorre el árbol
categoría → subcategoría → artículo, o el análisis ABC (Pareto 80/15/5).

Variables de entorno: REPORTING_BASE_URL, REPORTING_TOKEN, REPORTING_RPS,
EXPLORER_FETCH_TIMEOUT_SECONDS, EXPLORER_PAGE_SIZE, EXPLORER_BUCKET_LIMIT,
EXPLORER_VALUATION_LIMIT, EXPLORER_DEAD_STOCK_DAYS.

Ejemplos:
  explorer tree --stock-only
  explorer tree --expand 10,101 --all-pages
  explorer abc --date-from 2026-01-01 --dead-days 120
  explorer bucket A
  explorer export --out abc.pdf
  explorer tui`,
		SilenceUsage: true,
	}
	root.SetOut(deps.Out)
	root.SetErr(deps.Err)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.dateFrom, "date-from", "", "Desde (YYYY-MM-DD)")
	pf.StringVar(&flags.dateTo, "date-to", "", "Hasta (YYYY-MM-DD)")
	pf.StringVar(&flags.subcategory, "subcategory", "", "Restringe el análisis a una subcategoría")
	pf.BoolVar(&flags.stockOnly, "stock-only", false, "Solo artículos con existencias")
	pf.StringVar(&flags.logLevel, "log-level", "", "Nivel de log (trace, debug, info, warn, error, disabled)")

	open := func(cmd *cobra.Command, mutate func(*explorer.Config)) (*session, error) {
		return openSession(cmd, deps, flags, mutate)
	}

	root.AddCommand(
		newTreeCmd(open),
		newABCCmd(open),
		newBucketCmd(open),
		newExportCmd(open),
		newTUICmd(open, deps),
	)
	return root
}

type opener func(cmd *cobra.Command, mutate func(*explorer.Config)) (*session, error)

func openSession(cmd *cobra.Command, deps Deps, flags *globalFlags, mutate func(*explorer.Config)) (*session, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("cargar configuración: %w", err)
	}
	level := flags.logLevel
	if level == "" {
		level = cfg.App.LogLevel
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: level, Output: deps.Err})

	scope, err := dto.ValuationScopeQuery{
		DateFrom:      flags.dateFrom,
		DateTo:        flags.dateTo,
		SubcategoryID: flags.subcategory,
		StockOnly:     flags.stockOnly,
	}.ToScope()
	if err != nil {
		return nil, err
	}

	if cfg.Reporting.Token != "" {
		if left, err := jwt.ExpiresIn(cfg.Reporting.Token); err == nil && left < 5*time.Minute {
			log.Warn().Dur("expires_in", left).Msg("REPORTING_TOKEN vence pronto o ya venció")
		}
	}

	if deps.NewService == nil {
		return nil, fmt.Errorf("cli: servicio de reportes no configurado")
	}
	svc, err := deps.NewService(cfg, log.Component("reporting"))
	if err != nil {
		return nil, err
	}

	xcfg := explorer.Config{
		FetchTimeout:   cfg.Explorer.FetchTimeout,
		PageSize:       cfg.Explorer.PageSize,
		BucketLimit:    cfg.Explorer.BucketLimit,
		ValuationLimit: cfg.Explorer.ValuationLimit,
		DeadStockDays:  deadStockDays(cfg.Explorer.DeadStockDays),
	}
	if mutate != nil {
		mutate(&xcfg)
	}
	x := explorer.New(svc, xcfg, log.Zerolog())
	if _, err := x.SetScope(scope); err != nil {
		x.Close()
		return nil, err
	}
	return &session{cfg: cfg, log: log, x: x, scope: scope}, nil
}

func (s *session) Close() { s.x.Close() }

// deadStockDays traduce el umbral de la configuración, donde 0 desactiva el análisis.
func deadStockDays(days int) int {
	if days <= 0 {
		return -1
	}
	return days
}
