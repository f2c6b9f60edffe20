package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobmill/internal/calendar"
	"jobmill/pkg/logx"
)

var (
	// ErrNotRegistered means no schedule exists under the requested key.
	ErrNotRegistered = errors.New("engine: schedule not registered")
	// ErrRejected marks registrations the engine refuses (bad input,
	// references to calendars that were never installed).
	ErrRejected = errors.New("engine: registration rejected")
)

// Job is the callable bound to a schedule. The engine applies the per-task
// timeout around it.
type Job func(ctx context.Context) error

// Config controls dispatch behavior.
type Config struct {
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
	Timezone       string // IANA TZ, e.g. "Asia/Jakarta"
}

type entry struct {
	key          string
	spec         string
	calendarName string
	job          Job
	entryID      cron.EntryID
}

type task struct {
	key     string
	timeout time.Duration
	run     Job
}

// Engine wraps one cron runner plus a worker pool draining fired tasks.
type Engine struct {
	mu sync.Mutex

	cfg Config
	log logx.Logger
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron

	entries   map[string]*entry
	calendars map[string]calendar.Exclusion

	queue     chan task
	stopCh    chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
	started   bool
}

func New(cfg Config, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	loc := loadLocation(cfg.Timezone, log)
	// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Engine{
		cfg:       cfg,
		log:       log,
		loc:       loc,
		parser:    parser,
		c:         cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		entries:   map[string]*entry{},
		calendars: map[string]calendar.Exclusion{},
		queue:     make(chan task, cfg.QueueSize),
	}
}

// Exists reports whether a schedule is registered under key.
func (e *Engine) Exists(key string) bool {
	e.mu.Lock()
	_, ok := e.entries[key]
	e.mu.Unlock()
	return ok
}

// RegisterCalendar installs (or replaces) a named exclusion calendar.
// Schedules reference calendars by this name.
func (e *Engine) RegisterCalendar(name string, ex calendar.Exclusion) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: calendar name required", ErrRejected)
	}
	if ex == nil {
		ex = calendar.None
	}
	e.mu.Lock()
	e.calendars[name] = ex
	e.mu.Unlock()
	return nil
}

// ScheduleCron registers a cron schedule under key unless one already
// exists. It returns registered=false (and no error) when the key is already
// taken. calendarName may be empty for no exclusions; a
// non-empty name must have been installed with RegisterCalendar first.
//
// Check and register happen under one lock, so concurrent callers inside one
// process cannot double-register a key.
func (e *Engine) ScheduleCron(key, spec, calendarName string, job Job) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("%w: schedule key required", ErrRejected)
	}
	if job == nil {
		return false, fmt.Errorf("%w: job required for %q", ErrRejected, key)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, taken := e.entries[key]; taken {
		return false, nil
	}
	if calendarName != "" {
		if _, ok := e.calendars[calendarName]; !ok {
			return false, fmt.Errorf("%w: schedule %q references unknown calendar %q",
				ErrRejected, key, calendarName)
		}
	}
	if _, err := e.parser.Parse(spec); err != nil {
		return false, fmt.Errorf("parse cron %q for %q: %w", spec, key, err)
	}

	ent := &entry{key: key, spec: spec, calendarName: calendarName, job: job}
	eid, err := e.c.AddFunc(spec, func() { e.tick(ent) })
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	ent.entryID = eid
	e.entries[key] = ent

	e.log.Debug("schedule registered",
		logx.String("key", key),
		logx.String("spec", spec),
		logx.String("calendar", calendarName))
	return true, nil
}

// FireNow enqueues one out-of-band fire for key, bypassing the exclusion
// calendar (run-now is an explicit operator action). Acceptance only means
// the task was handed to the dispatch queue.
func (e *Engine) FireNow(key string) error {
	e.mu.Lock()
	ent, ok := e.entries[key]
	timeout := e.cfg.DefaultTimeout
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotRegistered, key)
	}
	e.enqueue(task{key: ent.key, timeout: timeout, run: ent.job})
	e.log.Debug("run-now accepted", logx.String("key", key))
	return nil
}

// Keys returns the registered schedule keys, for admin inspection.
func (e *Engine) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.entries))
	for k := range e.entries {
		out = append(out, k)
	}
	return out
}

// tick runs at every cron match. Excluded instants are suppressed here, not
// by rewriting the cron expression.
func (e *Engine) tick(ent *entry) {
	e.mu.Lock()
	ex := e.calendars[ent.calendarName]
	loc := e.loc
	timeout := e.cfg.DefaultTimeout
	e.mu.Unlock()

	now := time.Now().In(loc)
	if ent.calendarName != "" && ex != nil && ex.Excludes(now) {
		e.log.Debug("fire suppressed by calendar",
			logx.String("key", ent.key),
			logx.String("calendar", ent.calendarName),
			logx.Time("at", now))
		return
	}
	e.enqueue(task{key: ent.key, timeout: timeout, run: ent.job})
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
