package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Inventario-valuation/internal/domain/repository"
)

var _ repository.ModuleRepository = (*ModuleRepo)(nil)

// ModuleRepo lectura de company_modules.
type ModuleRepo struct {
	pool *pgxpool.Pool
}

// NewModuleRepository construye el adaptador.
func NewModuleRepository(pool *pgxpool.Pool) *ModuleRepo {
	return &ModuleRepo{pool: pool}
}

// HasActiveModule respuesta O(1) vía índice (company_id, module_name).
func (r *ModuleRepo) HasActiveModule(ctx context.Context, companyID, moduleName string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM company_modules
			 WHERE company_id::TEXT = $1
			   AND module_name      = $2
			   AND is_active        = true
			   AND (expires_at IS NULL OR expires_at > now())
		)`
	var active bool
	if err := r.pool.QueryRow(ctx, query, companyID, moduleName).Scan(&active); err != nil {
		return false, fmt.Errorf("check module %s: %w", moduleName, err)
	}
	return active, nil
}
