package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"jobmill/internal/store"
	"jobmill/pkg/logx"
)

// ErrNotFound means a calendar name resolved to nothing in both the tenant
// scope and the global scope.
var ErrNotFound = errors.New("calendar not found")

type resolveKey struct {
	tenant string
	name   string
}

// Resolver performs tenant-scoped calendar lookup with fallback to the
// shared store.GlobalTenant scope. Hits are memoized; a Resolver is meant to
// live for one registration pass, not longer.
type Resolver struct {
	store store.Store
	log   logx.Logger

	mu   sync.Mutex
	memo map[resolveKey]store.JobCalendar
}

func NewResolver(st store.Store, log logx.Logger) *Resolver {
	return &Resolver{
		store: st,
		log:   log,
		memo:  map[resolveKey]store.JobCalendar{},
	}
}

// Resolve looks up (tenantID, name) exactly, then (store.GlobalTenant, name).
// A miss on both returns ErrNotFound. Resolution is read-only.
func (r *Resolver) Resolve(ctx context.Context, tenantID, name string) (store.JobCalendar, error) {
	key := resolveKey{tenantID, name}
	r.mu.Lock()
	cal, ok := r.memo[key]
	r.mu.Unlock()
	if ok {
		return cal, nil
	}

	cal, ok, err := r.store.FindCalendar(ctx, tenantID, name)
	if err != nil {
		return store.JobCalendar{}, err
	}
	if !ok {
		cal, ok, err = r.store.FindCalendar(ctx, store.GlobalTenant, name)
		if err != nil {
			return store.JobCalendar{}, err
		}
		if !ok {
			return store.JobCalendar{}, fmt.Errorf("%w: %q for tenant %q", ErrNotFound, name, tenantID)
		}
		r.log.Debug("calendar resolved via global fallback",
			logx.String("tenant", tenantID), logx.String("calendar", name))
	}

	r.mu.Lock()
	r.memo[key] = cal
	r.mu.Unlock()
	return cal, nil
}

// For returns a ResolveFunc fixed to one tenant, for parent resolution during
// Build. Parents resolve in the same fallback scope as any other reference.
func (r *Resolver) For(tenantID string) ResolveFunc {
	return func(ctx context.Context, name string) (store.JobCalendar, error) {
		return r.Resolve(ctx, tenantID, name)
	}
}
