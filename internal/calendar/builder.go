package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobmill/internal/store"
)

// ErrConfig marks calendar rows that cannot be built: bad rule data, unknown
// type, a cyclic parent chain, or a chain past the depth ceiling.
var ErrConfig = errors.New("invalid calendar configuration")

// maxChainDepth bounds parent chains even when no cycle is detected.
const maxChainDepth = 32

// ResolveFunc looks up a parent calendar by name (in whatever scope the
// caller resolves names; normally Resolver.Resolve curried with a tenant).
type ResolveFunc func(ctx context.Context, name string) (store.JobCalendar, error)

// Build compiles a calendar row and its resolved parent chain into one
// exclusion predicate. It is pure: equal inputs yield equivalent predicates
// and nothing is mutated.
//
// The chain is OR-folded parent-first; revisiting a name already on the
// build stack fails with ErrConfig rather than recursing.
func Build(ctx context.Context, cal store.JobCalendar, resolve ResolveFunc) (Exclusion, error) {
	var links chain
	stack := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)

	cur := cal
	for {
		if len(stack) >= maxChainDepth {
			return nil, fmt.Errorf("%w: parent chain of %q deeper than %d",
				ErrConfig, cal.Name, maxChainDepth)
		}
		if _, dup := seen[cur.Name]; dup {
			return nil, fmt.Errorf("%w: cycle in parent chain: %s -> %s",
				ErrConfig, strings.Join(stack, " -> "), cur.Name)
		}
		stack = append(stack, cur.Name)
		seen[cur.Name] = struct{}{}

		rule, err := compileRule(cur)
		if err != nil {
			return nil, fmt.Errorf("%w: calendar %q: %v", ErrConfig, cur.Name, err)
		}
		if rule != nil {
			links = append(links, rule)
		}

		if cur.Parent == "" {
			break
		}
		parent, err := resolve(ctx, cur.Parent)
		if err != nil {
			return nil, fmt.Errorf("calendar %q: parent %q: %w", cur.Name, cur.Parent, err)
		}
		cur = parent
	}

	if len(links) == 0 {
		return None, nil
	}
	return links, nil
}
