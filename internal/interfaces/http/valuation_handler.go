package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/Inventario-valuation/internal/application/dto"
	"github.com/jhoicas/Inventario-valuation/internal/application/usecase"
	"github.com/jhoicas/Inventario-valuation/internal/domain"
)

// ValuationHandler maneja los endpoints de inventario valorizado (solo lectura).
type ValuationHandler struct {
	uc  *usecase.ValuationUseCase
	log zerolog.Logger
}

// NewValuationHandler construye el handler.
func NewValuationHandler(uc *usecase.ValuationUseCase, log zerolog.Logger) *ValuationHandler {
	return &ValuationHandler{uc: uc, log: log}
}

// fail traduce errores de dominio a HTTP: validación → 400, el resto → 500 sin detalle.
func (h *ValuationHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidScope),
		errors.Is(err, domain.ErrInvalidClassification):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_PARAMS", Message: err.Error()})
	}
	h.log.Error().
		Err(err).
		Str("path", c.Path()).
		Str("request_id", requestID(c)).
		Msg("valuation: error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno consultando la valorización"})
}

func companyOrUnauthorized(c *fiber.Ctx) (string, error) {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return "", c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Code: "UNAUTHORIZED", Message: "company_id no encontrado en el token",
		})
	}
	return companyID, nil
}

func badQuery(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Code: "INVALID_PARAMS", Message: "parámetros de consulta inválidos",
	})
}

// Categories godoc
// @Summary      Inventario valorizado por categoría
// @Tags         valuation
// @Security     Bearer
// @Produce      json
// @Param        date_from       query  string  false  "Desde (YYYY-MM-DD)"
// @Param        date_to         query  string  false  "Hasta (YYYY-MM-DD)"
// @Param        subcategory_id  query  string  false  "Restringe a una subcategoría"
// @Param        stock_only      query  bool    false  "Solo artículos con existencias"
// @Success      200  {array}   dto.CategorySummaryDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/valuation/categories [get]
func (h *ValuationHandler) Categories(c *fiber.Ctx) error {
	companyID, err := companyOrUnauthorized(c)
	if companyID == "" {
		return err
	}
	var q dto.ValuationScopeQuery
	if err := c.QueryParser(&q); err != nil {
		return badQuery(c)
	}
	out, err := h.uc.Categories(c.UserContext(), companyID, q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}

// Subcategories godoc
// @Summary      Inventario valorizado por subcategoría de una categoría
// @Tags         valuation
// @Security     Bearer
// @Produce      json
// @Param        category_id  query  string  true  "Categoría expandida"
// @Success      200  {array}   dto.SubcategorySummaryDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/valuation/subcategories [get]
func (h *ValuationHandler) Subcategories(c *fiber.Ctx) error {
	companyID, err := companyOrUnauthorized(c)
	if companyID == "" {
		return err
	}
	var q dto.SubcategoryQuery
	if err := c.QueryParser(&q); err != nil {
		return badQuery(c)
	}
	out, err := h.uc.Subcategories(c.UserContext(), companyID, q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}

// Articles godoc
// @Summary      Artículos valorizados de una subcategoría (paginado)
// @Tags         valuation
// @Security     Bearer
// @Produce      json
// @Param        subcategory_id  query  string  true   "Subcategoría listada"
// @Param        limit           query  int     false  "Tamaño de página (default 50, max 200)"
// @Param        offset          query  int     false  "Filas ya cargadas"
// @Success      200  {object}  dto.ArticleListDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/valuation/articles [get]
func (h *ValuationHandler) Articles(c *fiber.Ctx) error {
	companyID, err := companyOrUnauthorized(c)
	if companyID == "" {
		return err
	}
	var q dto.ArticleQuery
	if err := c.QueryParser(&q); err != nil {
		return badQuery(c)
	}
	out, err := h.uc.Articles(c.UserContext(), companyID, q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}

// FlatValuation godoc
// @Summary      Lista plana valorizada con clasificación ABC
// @Tags         valuation
// @Security     Bearer
// @Produce      json
// @Param        limit  query  int  false  "Top N por valor (default 1000, max 5000)"
// @Success      200  {array}   dto.ValuedArticleDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/valuation/articles/flat [get]
func (h *ValuationHandler) FlatValuation(c *fiber.Ctx) error {
	companyID, err := companyOrUnauthorized(c)
	if companyID == "" {
		return err
	}
	var q dto.FlatValuationQuery
	if err := c.QueryParser(&q); err != nil {
		return badQuery(c)
	}
	out, err := h.uc.ValuedArticles(c.UserContext(), companyID, q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}

// Bucket godoc
// @Summary      Artículos de un bucket ABC
// @Tags         valuation
// @Security     Bearer
// @Produce      json
// @Param        label  path   string  true   "A, B o C"
// @Param        limit  query  int     false  "Máximo de artículos (default 500)"
// @Success      200  {array}   dto.ValuedArticleDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/valuation/buckets/{label} [get]
func (h *ValuationHandler) Bucket(c *fiber.Ctx) error {
	companyID, err := companyOrUnauthorized(c)
	if companyID == "" {
		return err
	}
	var q dto.FlatValuationQuery
	if err := c.QueryParser(&q); err != nil {
		return badQuery(c)
	}
	out, err := h.uc.Bucket(c.UserContext(), companyID, c.Params("label"), q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}

// BumpCache godoc
// @Summary      Invalida la caché de reportes de valorización
// @Tags         valuation
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]int64
// @Failure      403  {object}  dto.ErrorResponse
// @Router       /api/valuation/cache/bump [post]
func (h *ValuationHandler) BumpCache(c *fiber.Ctx) error {
	ver, err := h.uc.BumpCache(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"version": ver})
}
