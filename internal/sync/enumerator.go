// Package sync implements the batch pipeline: tenant enumeration, inventory
// fetching from each tenant's LMS, analysis generation for stale activities,
// and the job orchestration around all of it.
package sync

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/edupulse/edupulse/pkg/models"
)

// TenantLister is the subset of the store the enumerator reads.
type TenantLister interface {
	ListActiveTenants(ctx context.Context) ([]*models.Tenant, error)
}

// Enumerator produces the ordered set of tenants a run visits.
type Enumerator struct {
	store TenantLister
}

func NewEnumerator(s TenantLister) *Enumerator {
	return &Enumerator{store: s}
}

// Tenants returns active tenants in run order: codes that parse as integers
// first, ascending numerically, then the rest in lexicographic order. A
// store failure here is fatal to the run.
func (e *Enumerator) Tenants(ctx context.Context) ([]*models.Tenant, error) {
	tenants, err := e.store.ListActiveTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active tenants: %w", err)
	}
	orderTenants(tenants)
	return tenants, nil
}

func orderTenants(tenants []*models.Tenant) {
	sort.SliceStable(tenants, func(i, j int) bool {
		a, aNum := tenantCodeNumber(tenants[i].Code)
		b, bNum := tenantCodeNumber(tenants[j].Code)
		switch {
		case aNum && bNum:
			return a < b
		case aNum != bNum:
			return aNum
		default:
			return tenants[i].Code < tenants[j].Code
		}
	})
}

func tenantCodeNumber(code string) (int64, bool) {
	n, err := strconv.ParseInt(code, 10, 64)
	return n, err == nil
}
