// Package jobs maps the opaque jobClass names stored on definitions to the
// callables invoked at fire time. The registry is filled at process wiring
// time; the registrar only resolves names, it never executes anything itself.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"jobmill/internal/payload"
)

// Func is an invoked job. It receives the definition's parameters merged
// with the owning tenant id under the "tenantId" key.
type Func func(ctx context.Context, params payload.Value) error

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: map[string]Func{}}
}

func (r *Registry) Register(name string, fn Func) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("jobs: name required")
	}
	if fn == nil {
		return fmt.Errorf("jobs: nil func for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.funcs[name]; dup {
		return fmt.Errorf("jobs: %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

func (r *Registry) Resolve(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

// Names returns the registered class names, for admin inspection.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		out = append(out, n)
	}
	return out
}
