package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/jhoicas/Inventario-valuation/internal/application/ports"
	"github.com/jhoicas/Inventario-valuation/internal/infrastructure/reporting"
	"github.com/jhoicas/Inventario-valuation/internal/interfaces/cli"
	"github.com/jhoicas/Inventario-valuation/internal/interfaces/tui"
	"github.com/jhoicas/Inventario-valuation/pkg/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(cli.Deps{
		NewService: func(cfg *config.Config, log zerolog.Logger) (ports.ReportingService, error) {
			// el timeout por consulta lo impone el explorador; el del cliente HTTP es un tope
			return reporting.NewClient(reporting.Options{
				BaseURL: cfg.Reporting.BaseURL,
				Token:   cfg.Reporting.Token,
				RPS:     cfg.Reporting.RPS,
				Timeout: 2 * cfg.Explorer.FetchTimeout,
			}, log)
		},
		RunTUI: tui.Run,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
