// Package reporting adaptador HTTP del servicio de reportes de valorización; implementa
// ports.ReportingService para el explorador.
package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jhoicas/Inventario-valuation/internal/application/dto"
	"github.com/jhoicas/Inventario-valuation/internal/application/ports"
	"github.com/jhoicas/Inventario-valuation/internal/domain"
	"github.com/jhoicas/Inventario-valuation/internal/domain/entity"
)

// Verificar en tiempo de compilación que Client implementa ReportingService.
var _ ports.ReportingService = (*Client)(nil)

const maxBody = 1 << 20 // 1 MiB

// RemoteError respuesta no exitosa del servicio (cuerpo dto.ErrorResponse).
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap permite errors.Is contra los errores de dominio equivalentes.
func (e *RemoteError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrInvalidInput
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	}
	return nil
}

// Options configuración del cliente.
type Options struct {
	BaseURL string
	Token   string  // Bearer JWT
	RPS     float64 // <= 0 sin límite
	Timeout time.Duration
}

// Client cliente REST de /api/valuation. Seguro para uso concurrente.
type Client struct {
	base       *url.URL
	token      string
	limiter    *rate.Limiter
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient construye el cliente. El timeout de red es un tope; el explorador impone
// además su propio context.WithTimeout por consulta.
func NewClient(opts Options, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("reporting: base URL inválida %q", opts.BaseURL)
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		base:       base,
		token:      opts.Token,
		limiter:    limiter,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// get ejecuta GET path?query y decodifica el JSON en out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("reporting: limitador: %w", err)
	}

	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("reporting: crear HTTP request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("reporting: timeout o cancelación: %w", ctx.Err())
		}
		return fmt.Errorf("reporting: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("reporting: leer respuesta: %w", err)
	}
	c.log.Debug().
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("reporting: respuesta")

	if resp.StatusCode != http.StatusOK {
		remote := &RemoteError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var body dto.ErrorResponse
		if jsonErr := json.Unmarshal(raw, &body); jsonErr == nil && body.Code != "" {
			remote.Code, remote.Message = body.Code, body.Message
		}
		return fmt.Errorf("reporting: %s: %w", path, remote)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("reporting: deserializar %s: %w", path, err)
	}
	return nil
}

// ── Implementación del puerto ─────────────────────────────────────────────────

// Categories GET /api/valuation/categories.
func (c *Client) Categories(ctx context.Context, scope entity.FilterScope) ([]entity.CategoryNode, error) {
	var body []dto.CategorySummaryDTO
	if err := c.get(ctx, "/api/valuation/categories", dto.ScopeValues(scope), &body); err != nil {
		return nil, err
	}
	out := make([]entity.CategoryNode, 0, len(body))
	for _, d := range body {
		out = append(out, d.ToEntity())
	}
	return out, nil
}

// Subcategories GET /api/valuation/subcategories?category_id=.
func (c *Client) Subcategories(ctx context.Context, scope entity.FilterScope, categoryID string) ([]entity.SubcategoryNode, error) {
	q := dto.ScopeValues(scope)
	q.Set("category_id", categoryID)
	var body []dto.SubcategorySummaryDTO
	if err := c.get(ctx, "/api/valuation/subcategories", q, &body); err != nil {
		return nil, err
	}
	out := make([]entity.SubcategoryNode, 0, len(body))
	for _, d := range body {
		out = append(out, d.ToEntity(categoryID))
	}
	return out, nil
}

// Articles GET /api/valuation/articles. El subcategory_id de la consulta es el nodo listado,
// aunque el alcance tenga su propia restricción.
func (c *Client) Articles(ctx context.Context, scope entity.FilterScope, subcategoryID string, limit, offset int) (*entity.ArticlePage, error) {
	q := dto.ScopeValues(scope)
	q.Set("subcategory_id", subcategoryID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var body dto.ArticleListDTO
	if err := c.get(ctx, "/api/valuation/articles", q, &body); err != nil {
		return nil, err
	}
	page := &entity.ArticlePage{Articles: make([]entity.ArticleRow, 0, len(body.Articles)), Total: body.Total}
	for _, d := range body.Articles {
		page.Articles = append(page.Articles, d.ToEntity())
	}
	return page, nil
}

// ValuedArticles GET /api/valuation/articles/flat.
func (c *Client) ValuedArticles(ctx context.Context, scope entity.FilterScope, limit int) ([]entity.ValuedArticle, error) {
	q := dto.ScopeValues(scope)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.valued(ctx, "/api/valuation/articles/flat", q)
}

// Bucket GET /api/valuation/buckets/:label.
func (c *Client) Bucket(ctx context.Context, scope entity.FilterScope, label entity.Classification, limit int) ([]entity.ValuedArticle, error) {
	q := dto.ScopeValues(scope)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.valued(ctx, "/api/valuation/buckets/"+url.PathEscape(string(label)), q)
}

func (c *Client) valued(ctx context.Context, path string, q url.Values) ([]entity.ValuedArticle, error) {
	var body []dto.ValuedArticleDTO
	if err := c.get(ctx, path, q, &body); err != nil {
		return nil, err
	}
	out := make([]entity.ValuedArticle, 0, len(body))
	for _, d := range body {
		out = append(out, d.ToEntity())
	}
	return out, nil
}
