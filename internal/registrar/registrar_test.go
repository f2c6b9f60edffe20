package registrar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"jobmill/internal/calendar"
	"jobmill/internal/engine"
	"jobmill/internal/jobs"
	"jobmill/internal/store"
	"jobmill/pkg/logx"
)

// fakeEngine records mutations so idempotence is observable.
type fakeEngine struct {
	mu        sync.Mutex
	schedules map[string]string // key -> spec
	calendars map[string]calendar.Exclusion
	mutations int
	rejectKey string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		schedules: map[string]string{},
		calendars: map[string]calendar.Exclusion{},
	}
}

func (f *fakeEngine) Exists(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.schedules[key]
	return ok
}

func (f *fakeEngine) RegisterCalendar(name string, ex calendar.Exclusion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calendars[name] = ex
	f.mutations++
	return nil
}

func (f *fakeEngine) ScheduleCron(key, spec, calendarName string, job engine.Job) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == f.rejectKey {
		return false, fmt.Errorf("%w: duplicate with conflicting shape", engine.ErrRejected)
	}
	if _, taken := f.schedules[key]; taken {
		return false, nil
	}
	if strings.Contains(spec, "bogus") {
		return false, fmt.Errorf("parse cron %q: bogus field", spec)
	}
	if calendarName != "" {
		if _, ok := f.calendars[calendarName]; !ok {
			return false, fmt.Errorf("%w: unknown calendar %q", engine.ErrRejected, calendarName)
		}
	}
	f.schedules[key] = spec
	f.mutations++
	return true, nil
}

func testRegistry(t *testing.T) *jobs.Registry {
	t.Helper()
	r := jobs.NewRegistry()
	if err := jobs.RegisterBuiltins(r, logx.Nop()); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	return r
}

func seedStore(t *testing.T, defs []store.JobDefinition, cals []store.JobCalendar) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	for _, d := range defs {
		if err := mem.PutDefinition(ctx, d); err != nil {
			t.Fatalf("PutDefinition: %v", err)
		}
	}
	for _, c := range cals {
		if err := mem.PutCalendar(ctx, c); err != nil {
			t.Fatalf("PutCalendar: %v", err)
		}
	}
	return mem
}

func def(tenant, job string, version int) store.JobDefinition {
	return store.JobDefinition{
		TenantID:       tenant,
		JobID:          job,
		Version:        version,
		JobClass:       "noop",
		CronExpression: "0 0 2 * * ?",
		Enabled:        true,
	}
}

func TestDisabledDefinitionsNeverRegister(t *testing.T) {
	t.Parallel()
	disabled := def("tenant1", "purge_messages", 1)
	disabled.Enabled = false
	mem := seedStore(t, []store.JobDefinition{disabled}, nil)
	eng := newFakeEngine()

	rep, err := New(mem, eng, testRegistry(t), logx.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rep.Results) != 0 || eng.mutations != 0 {
		t.Fatalf("disabled rows must not participate: %d results, %d mutations",
			len(rep.Results), eng.mutations)
	}
}

func TestPassIsIdempotent(t *testing.T) {
	t.Parallel()
	mem := seedStore(t, []store.JobDefinition{
		def("tenant1", "purge_messages", 1),
		def("tenant1", "rotate_keys", 1),
	}, nil)
	eng := newFakeEngine()
	reg := New(mem, eng, testRegistry(t), logx.Nop())

	rep, err := reg.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if rep.Registered != 2 {
		t.Fatalf("first pass registered = %d, want 2", rep.Registered)
	}
	before := eng.mutations

	rep, err = reg.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if rep.Skipped != 2 || rep.Registered != 0 || rep.Failed != 0 {
		t.Fatalf("second pass = %+v, want all skipped", rep)
	}
	if eng.mutations != before {
		t.Fatalf("second pass mutated the engine: %d -> %d", before, eng.mutations)
	}
}

func TestOneBadCronDoesNotAbortPass(t *testing.T) {
	t.Parallel()
	bad := def("tenant1", "broken", 1)
	bad.CronExpression = "bogus bogus"
	mem := seedStore(t, []store.JobDefinition{
		def("tenant1", "a", 1),
		bad,
		def("tenant1", "b", 1),
	}, nil)
	eng := newFakeEngine()

	rep, err := New(mem, eng, testRegistry(t), logx.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Registered != 2 || rep.Failed != 1 {
		t.Fatalf("registered=%d failed=%d, want 2/1", rep.Registered, rep.Failed)
	}
	failures := rep.Failures()
	if len(failures) != 1 || failures[0].JobID != "broken" {
		t.Fatalf("failures = %+v", failures)
	}
}

func TestUnknownJobClassFails(t *testing.T) {
	t.Parallel()
	d := def("tenant1", "mystery", 1)
	d.JobClass = "does_not_exist"
	mem := seedStore(t, []store.JobDefinition{d}, nil)
	eng := newFakeEngine()

	rep, err := New(mem, eng, testRegistry(t), logx.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Failed != 1 || eng.mutations != 0 {
		t.Fatalf("failed=%d mutations=%d, want 1/0", rep.Failed, eng.mutations)
	}
}

func TestUnresolvableCalendarFailsOnlyThatJob(t *testing.T) {
	t.Parallel()
	withCal := def("tenant1", "nightly", 1)
	withCal.CalendarName = "missing"
	mem := seedStore(t, []store.JobDefinition{withCal, def("tenant1", "other", 1)}, nil)
	eng := newFakeEngine()

	rep, err := New(mem, eng, testRegistry(t), logx.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Registered != 1 || rep.Failed != 1 {
		t.Fatalf("registered=%d failed=%d, want 1/1", rep.Registered, rep.Failed)
	}
}

func TestCalendarResolvedViaGlobalFallback(t *testing.T) {
	t.Parallel()
	withCal := def("tenant1", "purge_messages", 1)
	withCal.CalendarName = "tenant1-holidays"
	mem := seedStore(t,
		[]store.JobDefinition{withCal},
		[]store.JobCalendar{{
			TenantID: store.GlobalTenant,
			Name:     "tenant1-holidays",
			Type:     store.CalendarHoliday,
			Rule:     store.CalendarRule{Dates: []string{"2026-12-25"}},
		}},
	)
	eng := newFakeEngine()

	rep, err := New(mem, eng, testRegistry(t), logx.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Registered != 1 {
		t.Fatalf("registered=%d, want 1 (failures: %+v)", rep.Registered, rep.Failures())
	}
	// Calendar landed in the engine under a tenant-scoped name.
	if len(eng.calendars) != 1 {
		t.Fatalf("calendars installed = %d, want 1", len(eng.calendars))
	}
	for name := range eng.calendars {
		if !strings.Contains(name, "tenant1") {
			t.Fatalf("engine calendar name %q must include the tenant", name)
		}
	}
}

func TestCyclicCalendarChainFails(t *testing.T) {
	t.Parallel()
	d := def("tenant1", "nightly", 1)
	d.CalendarName = "c1"
	mem := seedStore(t,
		[]store.JobDefinition{d},
		[]store.JobCalendar{
			{TenantID: "tenant1", Name: "c1", Type: store.CalendarBase, Parent: "c2"},
			{TenantID: "tenant1", Name: "c2", Type: store.CalendarBase, Parent: "c3"},
			{TenantID: "tenant1", Name: "c3", Type: store.CalendarBase, Parent: "c1"},
		},
	)
	eng := newFakeEngine()

	rep, err := New(mem, eng, testRegistry(t), logx.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Failed != 1 {
		t.Fatalf("failed=%d, want 1", rep.Failed)
	}
}

func TestEngineRejectionIsIsolated(t *testing.T) {
	t.Parallel()
	mem := seedStore(t, []store.JobDefinition{
		def("tenant1", "a", 1),
		def("tenant1", "b", 1),
	}, nil)
	eng := newFakeEngine()
	eng.rejectKey = "tenant1:a-v1"

	rep, err := New(mem, eng, testRegistry(t), logx.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Registered != 1 || rep.Failed != 1 {
		t.Fatalf("registered=%d failed=%d, want 1/1", rep.Registered, rep.Failed)
	}
}
