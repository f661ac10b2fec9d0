package repository

import "context"

// ModuleRepository consulta los módulos SaaS contratados por cada empresa.
type ModuleRepository interface {
	// HasActiveModule informa si la empresa tiene el módulo activo y sin vencer.
	HasActiveModule(ctx context.Context, companyID, moduleName string) (bool, error)
}
