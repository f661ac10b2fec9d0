package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Inventario-valuation/internal/application/dto"
)

// ModuleChecker lo implementa *usecase.ModuleService.
type ModuleChecker interface {
	HasActiveModule(ctx context.Context, companyID, moduleName string) (bool, error)
}

// moduleRetryAfter segundos sugeridos al cliente cuando la verificación falla.
const moduleRetryAfter = "30"

// RequireModule exige que la empresa del token tenga el módulo activo. Va después de
// AuthMiddleware. Responde 403 MODULE_DISABLED si no está contratado o venció, y 503
// MODULE_CHECK_FAILED (con Retry-After) si no se pudo consultar.
func RequireModule(moduleName string, checker ModuleChecker, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		company, err := companyOrUnauthorized(c)
		if company == "" {
			return err
		}

		active, err := checker.HasActiveModule(c.UserContext(), company, moduleName)
		switch {
		case err != nil:
			log.Error().Err(err).
				Str("request_id", requestID(c)).
				Str("company_id", company).
				Str("module", moduleName).
				Msg("valuation: verificación de módulo")
			c.Set(fiber.HeaderRetryAfter, moduleRetryAfter)
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "MODULE_CHECK_FAILED",
				Message: "no se pudo verificar el módulo, intente más tarde",
			})
		case !active:
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "MODULE_DISABLED",
				Message: "los reportes de valorización requieren el módulo '" + moduleName + "' activo",
			})
		}
		return c.Next()
	}
}
