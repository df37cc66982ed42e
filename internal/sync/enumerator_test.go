package sync

import (
	"context"
	"testing"

	"github.com/edupulse/edupulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTenantLister struct {
	tenants []*models.Tenant
	err     error
}

func (s *stubTenantLister) ListActiveTenants(_ context.Context) ([]*models.Tenant, error) {
	return s.tenants, s.err
}

func tenantsWithCodes(codes ...string) []*models.Tenant {
	out := make([]*models.Tenant, len(codes))
	for i, c := range codes {
		out[i] = &models.Tenant{Code: c, Name: "Aula " + c}
	}
	return out
}

func codesOf(tenants []*models.Tenant) []string {
	out := make([]string, len(tenants))
	for i, t := range tenants {
		out[i] = t.Code
	}
	return out
}

func TestTenants_NumericCodesFirst(t *testing.T) {
	e := NewEnumerator(&stubTenantLister{tenants: tenantsWithCodes("av10", "2", "10", "av2")})

	tenants, err := e.Tenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "10", "av2", "av10"}, codesOf(tenants))
}

func TestTenants_NumericAscending(t *testing.T) {
	e := NewEnumerator(&stubTenantLister{tenants: tenantsWithCodes("30", "4", "100")})

	tenants, err := e.Tenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "30", "100"}, codesOf(tenants))
}

func TestTenants_StoreErrorIsFatal(t *testing.T) {
	e := NewEnumerator(&stubTenantLister{err: assert.AnError})

	_, err := e.Tenants(context.Background())
	require.Error(t, err)
}
