package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Inventario-valuation/internal/application/usecase"
	"github.com/jhoicas/Inventario-valuation/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AppName       string
	ValuationUC   *usecase.ValuationUseCase
	ModuleService ModuleChecker
	JWTSecret     string
	Log           zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	// Públicas
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.AppName})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Valorización (protegido: token + rol de lectura + módulo de inventario activo)
	valuation := api.Group("/valuation",
		AuthMiddleware(deps.JWTSecret),
		RequireRole(jwt.RoleAdmin, jwt.RoleAnalyst, jwt.RoleBodeguero),
		RequireModule(usecase.ModuleValuation, deps.ModuleService, deps.Log),
	)
	valuationHandler := NewValuationHandler(deps.ValuationUC, deps.Log)
	valuation.Get("/categories", valuationHandler.Categories)
	valuation.Get("/subcategories", valuationHandler.Subcategories)
	valuation.Get("/articles", valuationHandler.Articles)
	valuation.Get("/articles/flat", valuationHandler.FlatValuation)
	valuation.Get("/buckets/:label", valuationHandler.Bucket)
	valuation.Post("/cache/bump", RequireRole(jwt.RoleAdmin), valuationHandler.BumpCache)
}

// requestID id de la petición asignado por el middleware requestid.
func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals("requestid").(string)
	return id
}
