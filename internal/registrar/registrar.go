// Package registrar reconciles enabled job definitions against the live
// scheduling engine: one synchronous pass at process start, idempotent and
// safe to re-run, with per-definition failure isolation.
package registrar

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"jobmill/internal/calendar"
	"jobmill/internal/engine"
	"jobmill/internal/identity"
	"jobmill/internal/jobs"
	"jobmill/internal/payload"
	"jobmill/internal/store"
	"jobmill/pkg/logx"
)

// Engine is the consumed scheduling capability. *engine.Engine satisfies it;
// tests substitute fakes.
type Engine interface {
	Exists(key string) bool
	RegisterCalendar(name string, ex calendar.Exclusion) error
	ScheduleCron(key, spec, calendarName string, job engine.Job) (registered bool, err error)
}

type Registrar struct {
	store store.Store
	eng   Engine
	jobs  *jobs.Registry
	log   logx.Logger
}

func New(st store.Store, eng Engine, reg *jobs.Registry, log logx.Logger) *Registrar {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registrar{store: st, eng: eng, jobs: reg, log: log}
}

// Run executes one registration pass over a point-in-time snapshot of the
// store. The returned error covers only the snapshot read; per-definition
// failures land in the report and never abort the pass.
func (r *Registrar) Run(ctx context.Context) (Report, error) {
	rep := Report{PassID: uuid.NewString()}

	defs, err := r.store.ListEnabledDefinitions(ctx)
	if err != nil {
		return rep, fmt.Errorf("list enabled definitions: %w", err)
	}

	// One resolver per pass: memoization lives exactly as long as the
	// snapshot it caches.
	resolver := calendar.NewResolver(r.store, r.log)

	log := r.log.With(logx.String("pass", rep.PassID))
	log.Info("registration pass started", logx.Int("definitions", len(defs)))

	for _, def := range defs {
		res := r.registerOne(ctx, resolver, def)
		rep.add(res)

		switch res.Outcome {
		case OutcomeRegistered:
			log.Info("job registered",
				logx.String("key", res.Key),
				logx.String("spec", def.CronExpression),
				logx.String("calendar", def.CalendarName))
		case OutcomeSkipped:
			log.Debug("job already registered; skipped", logx.String("key", res.Key))
		case OutcomeFailed:
			log.Error("job registration failed",
				logx.String("tenant", def.TenantID),
				logx.String("job", def.JobID),
				logx.Int("version", def.Version),
				logx.Err(res.Err))
		}
	}

	log.Info("registration pass finished",
		logx.Int("registered", rep.Registered),
		logx.Int("skipped", rep.Skipped),
		logx.Int("failed", rep.Failed))
	return rep, nil
}

// registerOne walks one definition through
// PENDING -> IDEMPOTENT_SKIP | REGISTERED | FAILED.
func (r *Registrar) registerOne(ctx context.Context, resolver *calendar.Resolver, def store.JobDefinition) Result {
	res := Result{TenantID: def.TenantID, JobID: def.JobID, Version: def.Version}

	if err := identity.ValidateIDs(def.TenantID, def.JobID, def.Version); err != nil {
		return res.failed(err)
	}
	res.Key = identity.DeriveKey(def.TenantID, def.JobID, def.Version)

	// Fast idempotence path: an existing schedule means a previous pass (or
	// process start) already did the work. No mutation, no error.
	if r.eng.Exists(res.Key) {
		res.Outcome = OutcomeSkipped
		return res
	}

	fn, ok := r.jobs.Resolve(def.JobClass)
	if !ok {
		return res.failed(fmt.Errorf("unknown job class %q", def.JobClass))
	}

	params, err := firePayload(def)
	if err != nil {
		return res.failed(err)
	}

	// Calendar is optional; absence means no exclusions. The engine-scoped
	// name carries the tenant so same-named calendars never collide across
	// tenants in the engine's shared namespace.
	engCal := ""
	if def.CalendarName != "" {
		row, err := resolver.Resolve(ctx, def.TenantID, def.CalendarName)
		if err != nil {
			return res.failed(err)
		}
		ex, err := calendar.Build(ctx, row, resolver.For(def.TenantID))
		if err != nil {
			return res.failed(err)
		}
		engCal = identity.CalendarKey(def.TenantID, def.CalendarName)
		if err := r.eng.RegisterCalendar(engCal, ex); err != nil {
			return res.failed(err)
		}
	}

	job := func(ctx context.Context) error { return fn(ctx, params) }
	registered, err := r.eng.ScheduleCron(res.Key, def.CronExpression, engCal, job)
	if err != nil {
		return res.failed(err)
	}
	if !registered {
		// Lost a race between the existence check and registration; the
		// engine's if-absent semantics keep this a clean skip.
		res.Outcome = OutcomeSkipped
		return res
	}
	res.Outcome = OutcomeRegistered
	return res
}

// firePayload builds the parameter value handed to the job at fire time:
// the definition's opaque parameters merged with the tenant id. The tenantId
// entry always reflects the owning tenant, overriding any stored key.
func firePayload(def store.JobDefinition) (payload.Value, error) {
	switch def.Parameters.Kind() {
	case payload.KindNull, payload.KindMap:
		return def.Parameters.WithEntry("tenantId", payload.String(def.TenantID)), nil
	default:
		return payload.Value{}, fmt.Errorf("parameters for %s/%s must be a map, got %s",
			def.TenantID, def.JobID, def.Parameters.Kind())
	}
}
