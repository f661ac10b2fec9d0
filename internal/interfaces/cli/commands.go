package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/Inventario-valuation/internal/application/explorer"
	"github.com/jhoicas/Inventario-valuation/internal/infrastructure/pdf"
)

// newTreeCmd `explorer tree`: resumen por categoría y expansión de nodos.
func newTreeCmd(open opener) *cobra.Command {
	var (
		expand   []string
		allPages bool
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Muestra el resumen por categoría y expande los nodos indicados",
		Long: `Muestra el resumen por categoría. Con --expand se expanden nodos en orden:
un id de categoría lista sus subcategorías; cualquier otro id se trata como
subcategoría y lista sus artículos (primera página, o todas con --all-pages).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if err := s.x.LoadCategories(ctx); err != nil {
				return err
			}
			cats := s.x.Categories()
			renderCategories(out, cats)

			categoryIDs := make(map[string]bool, len(cats.Items))
			for _, c := range cats.Items {
				categoryIDs[c.ID] = true
			}

			for _, id := range splitIDs(expand) {
				kind := explorer.KindArticleList
				if categoryIDs[id] {
					kind = explorer.KindSubcategoryList
				}
				if err := s.x.Toggle(ctx, kind, id); err != nil {
					fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("No se pudo expandir %s: %v", id, err)))
					continue
				}
				if kind == explorer.KindArticleList && allPages {
					if err := s.x.LoadAll(ctx, id); err != nil {
						fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("Paginación de %s incompleta: %v", id, err)))
					}
				}
				view, _ := s.x.Node(kind, id)
				if kind == explorer.KindSubcategoryList {
					renderSubcategories(out, id, view)
				} else {
					renderArticles(out, id, view)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&expand, "expand", nil, "Ids a expandir, en orden (ej. 10,101)")
	cmd.Flags().BoolVar(&allPages, "all-pages", false, "Carga todas las páginas de artículos")
	return cmd
}

type abcFlags struct {
	deadDays int
	top      int
	class    string
}

func (f abcFlags) configure(cfg *explorer.Config) {
	if f.top > 0 {
		cfg.TopN = f.top
	}
}

// loadABC carga la lista plana y aplica umbral y filtro.
func loadABC(cmd *cobra.Command, s *session, f abcFlags) (explorer.ValuationView, error) {
	if cmd.Flags().Changed("dead-days") {
		s.x.SetDeadStockDays(f.deadDays)
	}
	if err := s.x.SetClassificationFilter(f.class); err != nil {
		return explorer.ValuationView{}, err
	}
	if err := s.x.LoadValuation(cmd.Context()); err != nil {
		return explorer.ValuationView{}, err
	}
	return s.x.Valuation(), nil
}

func addABCFlags(cmd *cobra.Command, f *abcFlags) {
	cmd.Flags().IntVar(&f.deadDays, "dead-days", 0, "Umbral de inventario muerto en días (0 desactiva; default EXPLORER_DEAD_STOCK_DAYS)")
	cmd.Flags().IntVar(&f.top, "top", 10, "Tamaño del top por valor")
	cmd.Flags().StringVar(&f.class, "class", "", "Filtra la lista por clase A, B o C")
}

// newABCCmd `explorer abc`: métricas de la clasificación ABC.
func newABCCmd(open opener) *cobra.Command {
	f := abcFlags{}
	cmd := &cobra.Command{
		Use:   "abc",
		Short: "Muestra el análisis ABC, el inventario muerto y el top por valor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd, f.configure)
			if err != nil {
				return err
			}
			defer s.Close()
			v, err := loadABC(cmd, s, f)
			if err != nil {
				return err
			}
			renderMetrics(cmd.OutOrStdout(), v)
			return nil
		},
	}
	addABCFlags(cmd, &f)
	return cmd
}

// newBucketCmd `explorer bucket <A|B|C>`: artículos de una clase.
func newBucketCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "bucket <A|B|C>",
		Short: "Lista los artículos de una clase ABC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.x.OpenBucket(cmd.Context(), args[0]); err != nil {
				return err
			}
			renderBucket(cmd.OutOrStdout(), s.x.Bucket())
			return nil
		},
	}
}

// newExportCmd `explorer export --out abc.pdf`: reporte ABC en PDF.
func newExportCmd(open opener) *cobra.Command {
	var (
		f       abcFlags
		out     string
		company string
		bucket  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Genera el reporte ABC en PDF",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(out) == "" {
				return fmt.Errorf("--out es obligatorio")
			}
			s, err := open(cmd, f.configure)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()

			v, err := loadABC(cmd, s, f)
			if err != nil {
				return err
			}
			report := pdf.ABCReport{
				Company:       company,
				Scope:         s.scope,
				GeneratedAt:   time.Now(),
				DeadStockDays: v.DeadStockDays,
				Metrics:       v.Metrics,
			}
			if bucket != "" {
				if err := s.x.OpenBucket(ctx, bucket); err != nil {
					return err
				}
				b := s.x.Bucket()
				report.BucketLabel, report.Bucket = b.Label, b.Items
			}

			doc, err := pdf.NewABCReportGenerator().Generate(ctx, report)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, doc, 0o644); err != nil {
				return fmt.Errorf("escribir %s: %w", out, err)
			}
			s.log.Info().Str("file", out).Int("bytes", len(doc)).Msg("reporte ABC exportado")
			fmt.Fprintf(cmd.OutOrStdout(), "Reporte ABC escrito en %s\n", out)
			return nil
		},
	}
	addABCFlags(cmd, &f)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Archivo PDF de salida")
	cmd.Flags().StringVar(&company, "company", "", "Razón social para el encabezado")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Incluye el detalle de una clase (A, B o C)")
	return cmd
}

// newTUICmd `explorer tui`: sesión interactiva.
func newTUICmd(open opener, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Explorador interactivo en la terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.RunTUI == nil {
				return fmt.Errorf("cli: TUI no disponible")
			}
			s, err := open(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			return deps.RunTUI(cmd.Context(), s.x)
		},
	}
}
