package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jhoicas/Inventario-valuation/internal/domain/repository"
)

// ModuleValuation módulo SaaS que habilita los reportes de inventario valorizado.
const ModuleValuation = "inventory"

// ModuleService verifica qué módulos SaaS tiene activos una empresa.
// Las respuestas positivas se recuerdan durante ttl para no consultar la DB en cada
// petición del explorador (que expande nodos en ráfaga).
type ModuleService struct {
	repo repository.ModuleRepository
	ttl  time.Duration
	now  func() time.Time

	mu     sync.Mutex
	active map[string]time.Time // companyID|module -> vence
}

// NewModuleService construye el servicio de módulos.
func NewModuleService(repo repository.ModuleRepository, ttl time.Duration) *ModuleService {
	return &ModuleService{repo: repo, ttl: ttl, now: time.Now, active: make(map[string]time.Time)}
}

// HasActiveModule informa si la empresa tiene el módulo activo y sin vencer.
// Devuelve false (sin error) si la empresa no lo tiene contratado; error solo ante
// fallos de infraestructura.
func (s *ModuleService) HasActiveModule(ctx context.Context, companyID, moduleName string) (bool, error) {
	if companyID == "" || moduleName == "" {
		return false, fmt.Errorf("module: companyID y moduleName son obligatorios")
	}
	key := companyID + "|" + moduleName

	s.mu.Lock()
	until, ok := s.active[key]
	s.mu.Unlock()
	if ok && s.now().Before(until) {
		return true, nil
	}

	active, err := s.repo.HasActiveModule(ctx, companyID, moduleName)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	if active && s.ttl > 0 {
		s.active[key] = s.now().Add(s.ttl)
	} else {
		delete(s.active, key)
	}
	s.mu.Unlock()
	return active, nil
}
