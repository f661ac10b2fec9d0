package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Inventario-valuation/internal/application/usecase"
)

type stubModules struct {
	active bool
	err    error
	calls  int
}

func (s *stubModules) HasActiveModule(ctx context.Context, companyID, moduleName string) (bool, error) {
	s.calls++
	return s.active, s.err
}

func TestModuleService_RecuerdaRespuestaPositiva(t *testing.T) {
	repo := &stubModules{active: true}
	svc := usecase.NewModuleService(repo, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := svc.HasActiveModule(ctx, "empresa-1", usecase.ModuleValuation)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, repo.calls)
}

func TestModuleService_NoRecuerdaModuloInactivo(t *testing.T) {
	repo := &stubModules{active: false}
	svc := usecase.NewModuleService(repo, time.Minute)
	ctx := context.Background()

	ok, err := svc.HasActiveModule(ctx, "empresa-1", usecase.ModuleValuation)
	require.NoError(t, err)
	assert.False(t, ok)

	repo.active = true
	ok, err = svc.HasActiveModule(ctx, "empresa-1", usecase.ModuleValuation)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, repo.calls)
}

func TestModuleService_ErroresYParametros(t *testing.T) {
	repo := &stubModules{err: errors.New("timeout")}
	svc := usecase.NewModuleService(repo, time.Minute)

	_, err := svc.HasActiveModule(context.Background(), "empresa-1", usecase.ModuleValuation)
	assert.Error(t, err)

	_, err = svc.HasActiveModule(context.Background(), "", usecase.ModuleValuation)
	assert.Error(t, err)
	assert.Equal(t, 1, repo.calls)
}
