package calendar

import (
	"context"
	"errors"
	"testing"

	"jobmill/internal/store"
	"jobmill/pkg/logx"
)

func seedCalendars(t *testing.T, cals ...store.JobCalendar) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	for _, cal := range cals {
		if err := mem.PutCalendar(context.Background(), cal); err != nil {
			t.Fatalf("PutCalendar: %v", err)
		}
	}
	return mem
}

func TestResolveTenantBeatsGlobal(t *testing.T) {
	t.Parallel()
	mem := seedCalendars(t,
		store.JobCalendar{TenantID: "tenant1", Name: "x", Type: store.CalendarWeekly,
			Rule: store.CalendarRule{Weekdays: []string{"monday"}}},
		store.JobCalendar{TenantID: store.GlobalTenant, Name: "x", Type: store.CalendarWeekly,
			Rule: store.CalendarRule{Weekdays: []string{"friday"}}},
	)
	r := NewResolver(mem, logx.Nop())

	cal, err := r.Resolve(context.Background(), "tenant1", "x")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cal.TenantID != "tenant1" {
		t.Fatalf("resolved tenant = %q, want the tenant-scoped row", cal.TenantID)
	}
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	t.Parallel()
	mem := seedCalendars(t,
		store.JobCalendar{TenantID: store.GlobalTenant, Name: "x", Type: store.CalendarBase},
	)
	r := NewResolver(mem, logx.Nop())

	cal, err := r.Resolve(context.Background(), "tenant2", "x")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cal.TenantID != store.GlobalTenant {
		t.Fatalf("resolved tenant = %q, want global row", cal.TenantID)
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Parallel()
	r := NewResolver(store.NewMemory(), logx.Nop())
	_, err := r.Resolve(context.Background(), "tenant3", "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

// The global scope sentinel is a contract between the seeding side and this
// resolver. A row seeded under a different casing of the sentinel is a real
// misconfiguration and must NOT resolve; only the shared constant works.
func TestResolveSentinelCasingBoundary(t *testing.T) {
	t.Parallel()
	mem := seedCalendars(t,
		store.JobCalendar{TenantID: "global", Name: "x", Type: store.CalendarBase},
	)
	r := NewResolver(mem, logx.Nop())

	if _, err := r.Resolve(context.Background(), "tenant1", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("row under mismatched sentinel casing must not resolve, got %v", err)
	}

	// The same row under the shared constant resolves fine.
	mem2 := seedCalendars(t,
		store.JobCalendar{TenantID: store.GlobalTenant, Name: "x", Type: store.CalendarBase},
	)
	r2 := NewResolver(mem2, logx.Nop())
	if _, err := r2.Resolve(context.Background(), "tenant1", "x"); err != nil {
		t.Fatalf("row under store.GlobalTenant must resolve: %v", err)
	}
}

func TestResolveMemoizesHits(t *testing.T) {
	t.Parallel()
	mem := seedCalendars(t,
		store.JobCalendar{TenantID: "tenant1", Name: "x", Type: store.CalendarBase},
	)
	counting := &countingStore{Store: mem}
	r := NewResolver(counting, logx.Nop())

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "tenant1", "x"); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
	}
	if counting.calls != 1 {
		t.Fatalf("store hit %d times, want memoized single lookup", counting.calls)
	}
}

type countingStore struct {
	store.Store
	calls int
}

func (c *countingStore) FindCalendar(ctx context.Context, tenantID, name string) (store.JobCalendar, bool, error) {
	c.calls++
	return c.Store.FindCalendar(ctx, tenantID, name)
}
