package sdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/misialq/qiime2/internal/cache"
	"github.com/misialq/qiime2/internal/parallel"
	"github.com/misialq/qiime2/internal/provenance"
	"github.com/misialq/qiime2/internal/result"
	"github.com/misialq/qiime2/internal/types"
)

// ErrNoParallelConfig is returned when a leaf action is dispatched in
// parallel mode before any parallel routing configuration was loaded.
var ErrNoParallelConfig = errors.New(
	"no parallel configuration loaded: load a parallel config before running in parallel")

// RunFunc invokes a bound action with named arguments. The returned
// Outputs are concrete Results in synchronous mode and may be deferred
// ProxyResults in parallel mode.
type RunFunc func(ctx context.Context, args map[string]any) (result.Outputs, error)

// Scope is the execution scope of one action invocation. Scopes form a
// tree across nested invocations: every descendant shares the root's
// cache, and parallel descendants inherit the root's executor routing.
type Scope struct {
	mode   string
	action *Action
	parent *Scope

	cache    *cache.Cache
	registry *Registry
	logger   *slog.Logger

	// exec is the executor set for parallel scopes; nil means no parallel
	// configuration has been loaded.
	exec *parallel.Set

	// asyncBusy enforces at most one outstanding task per async scope.
	asyncBusy atomic.Bool
}

// newRootScope builds the scope for a top-level invocation. The root
// owns one-time construction of the named pool's fingerprint index,
// performed under the cache lock before any lookup.
func newRootScope(ctx context.Context, mode string, a *Action, reg *Registry, c *cache.Cache, logger *slog.Logger, exec *parallel.Set) (*Scope, error) {
	if a == nil {
		return nil, fmt.Errorf("a parentless scope requires an action")
	}
	if err := c.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return &Scope{
		mode:     mode,
		action:   a,
		cache:    c,
		registry: reg,
		logger:   logger,
		exec:     exec,
	}, nil
}

// child returns a scope for a nested invocation of a, sharing the cache
// and (for parallel scopes) the executor routing. Computations running
// under an async scope's worker proceed synchronously.
func (s *Scope) child(a *Action) *Scope {
	mode := s.mode
	if mode == provenance.ExecutionAsync {
		mode = provenance.ExecutionSynchronous
	}
	return &Scope{
		mode:     mode,
		action:   a,
		parent:   s,
		cache:    s.cache,
		registry: s.registry,
		logger:   s.logger,
		exec:     s.exec,
	}
}

// IsRoot reports whether this scope has no parent.
func (s *Scope) IsRoot() bool { return s.parent == nil }

// Action returns the action this scope executes.
func (s *Scope) Action() *Action { return s.action }

// GetAction looks up a sibling action by (plugin, action) name and
// returns a wrapper bound to a child scope of the same runtime variant.
func (s *Scope) GetAction(plugin, action string) (RunFunc, error) {
	a, err := s.registry.Lookup(plugin, action)
	if err != nil {
		return nil, err
	}
	return s.child(a).runner(), nil
}

func (s *Scope) runner() RunFunc {
	return func(ctx context.Context, args map[string]any) (result.Outputs, error) {
		if s.mode == provenance.ExecutionParallel {
			return s.dispatchParallel(ctx, args)
		}
		return s.runMaterialized(ctx, provenance.ExecutionContext{Type: s.mode}, args)
	}
}

// runMaterialized is the blocking invocation path: probe the cache with
// the materialized arguments, then execute on a miss.
func (s *Scope) runMaterialized(ctx context.Context, exec provenance.ExecutionContext, args map[string]any) (*result.Results, error) {
	if res, ok := s.probeCache(ctx, args); ok {
		return res, nil
	}
	return s.invoke(ctx, exec, args)
}

// probeCache computes the invocation fingerprint from the coerced
// arguments and attempts a reconstruction from the named pool. Argument
// errors are left for invoke to surface.
func (s *Scope) probeCache(ctx context.Context, args map[string]any) (*result.Results, bool) {
	if !s.cache.HasNamedPool() {
		return nil, false
	}

	sig := s.action.sig
	collated, err := sig.CollateInputs(args)
	if err != nil {
		return nil, false
	}
	coerced, err := sig.CoerceUserInput(collated)
	if err != nil {
		return nil, false
	}
	outputs, err := sig.SolveOutputs(collated)
	if err != nil {
		return nil, false
	}

	return s.cache.Probe(ctx, s.fingerprint(coerced), outputs)
}

// fingerprint derives the invocation fingerprint from coerced arguments
// in parameter declaration order.
func (s *Scope) fingerprint(coerced map[string]any) cache.Invocation {
	bindings := make([]cache.Binding, 0, len(s.action.sig.Parameters))
	for _, p := range s.action.sig.Parameters {
		bindings = append(bindings, cache.Binding{
			Name:  p.Name,
			Value: types.Render(coerced[p.Name]),
		})
	}
	return cache.NewInvocation(s.action.Ref(), bindings)
}

// AddReference registers a value in the process pool (and the named pool
// when active) under the cache lock, returning the tracked handle.
func (s *Scope) AddReference(r result.Result) (result.Result, error) {
	return s.cache.AddReference(r)
}

// MakeArtifact builds a new artifact from an in-memory value and tracks
// it in the invocation's cache.
func (s *Scope) MakeArtifact(t types.Type, value any) (result.Result, error) {
	prov := provenance.New("import", s.action.plugin, s.action.id,
		provenance.ExecutionContext{Type: s.mode})
	return s.AddReference(result.NewArtifact(t, value, prov))
}

// containsDeferred reports whether the value tree (scalars, slices,
// maps, collections) holds any deferred handle.
func containsDeferred(v any) bool {
	switch val := v.(type) {
	case *result.Proxy, *result.ProxyResults:
		return true
	case []any:
		for _, elem := range val {
			if containsDeferred(elem) {
				return true
			}
		}
	case map[string]any:
		for _, elem := range val {
			if containsDeferred(elem) {
				return true
			}
		}
	case *result.ResultCollection:
		for _, key := range val.Keys() {
			elem, _ := val.Get(key)
			if containsDeferred(elem) {
				return true
			}
		}
	}
	return false
}

func argsContainDeferred(args map[string]any) bool {
	for _, v := range args {
		if containsDeferred(v) {
			return true
		}
	}
	return false
}
