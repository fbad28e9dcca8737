package sdk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/misialq/qiime2/internal/cache"
	"github.com/misialq/qiime2/internal/future"
	"github.com/misialq/qiime2/internal/parallel"
	"github.com/misialq/qiime2/internal/provenance"
	"github.com/misialq/qiime2/internal/result"
)

// Engine is the top-level invocation driver. It owns the registry, the
// shared cache handle passed down to every scope, the logger, and the
// parallel executor set once one is configured.
type Engine struct {
	registry *Registry
	cache    *cache.Cache
	logger   *slog.Logger
	exec     *parallel.Set
}

// NewEngine creates an execution engine.
func NewEngine(reg *Registry, c *cache.Cache, logger *slog.Logger) *Engine {
	return &Engine{
		registry: reg,
		cache:    c,
		logger:   logger,
	}
}

// ConfigureParallel starts the executors declared by cfg and routes
// subsequent parallel calls through them.
func (e *Engine) ConfigureParallel(cfg *parallel.Config) {
	e.exec = parallel.NewSet(cfg)
}

// Shutdown stops the parallel executors, waiting for in-flight work.
func (e *Engine) Shutdown() {
	if e.exec != nil {
		e.exec.Shutdown()
		e.exec = nil
	}
}

// Registry returns the engine's action registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Bind resolves (plugin, action) and returns its invocable form.
func (e *Engine) Bind(plugin, action string) (*BoundAction, error) {
	a, err := e.registry.Lookup(plugin, action)
	if err != nil {
		return nil, err
	}
	return &BoundAction{engine: e, action: a}, nil
}

// BoundAction is an action paired with the engine that will drive its
// invocations. It exposes the three entry points: Call, Async, and
// Parallel.
type BoundAction struct {
	engine *Engine
	action *Action
}

// Action returns the underlying action.
func (b *BoundAction) Action() *Action { return b.action }

// Call invokes the action synchronously and blocks until its Results are
// ready.
func (b *BoundAction) Call(ctx context.Context, args map[string]any) (*result.Results, error) {
	scope, err := newRootScope(ctx, provenance.ExecutionSynchronous, b.action,
		b.engine.registry, b.engine.cache, b.engine.logger, nil)
	if err != nil {
		return nil, err
	}
	return scope.runMaterialized(ctx, provenance.ExecutionContext{
		Type: provenance.ExecutionSynchronous,
	}, args)
}

// Async submits the invocation to a dedicated worker and returns a
// blocking future immediately.
func (b *BoundAction) Async(ctx context.Context, args map[string]any) (*future.Future[*result.Results], error) {
	scope, err := newRootScope(ctx, provenance.ExecutionAsync, b.action,
		b.engine.registry, b.engine.cache, b.engine.logger, nil)
	if err != nil {
		return nil, err
	}
	return scope.dispatchAsync(args)
}

// Parallel invokes a pipeline under the deferred scheduling model. Only
// pipelines may run in parallel; the root pipeline's externally visible
// outputs are always fully resolved by the time the returned handle
// yields them.
func (b *BoundAction) Parallel(ctx context.Context, args map[string]any) (*result.ProxyResults, error) {
	if b.action.kind != KindPipeline {
		return nil, fmt.Errorf("only pipelines may be run in parallel, %s is a %s",
			b.action.Ref(), b.action.kind)
	}

	scope, err := newRootScope(ctx, provenance.ExecutionParallel, b.action,
		b.engine.registry, b.engine.cache, b.engine.logger, b.engine.exec)
	if err != nil {
		return nil, err
	}

	out, err := scope.dispatchParallel(ctx, args)
	if err != nil {
		return nil, err
	}

	// A root pipeline runs inline and resolves before returning, so the
	// handle the caller receives is already complete.
	switch res := out.(type) {
	case *result.Results:
		collated, err := b.action.sig.CollateInputs(args)
		if err != nil {
			return nil, err
		}
		outputTypes, err := b.action.sig.SolveOutputs(collated)
		if err != nil {
			return nil, err
		}
		return result.NewProxyResults(future.Resolved(res, nil), outputTypes), nil
	case *result.ProxyResults:
		return res, nil
	default:
		return nil, fmt.Errorf("unexpected parallel dispatch result %T", out)
	}
}
