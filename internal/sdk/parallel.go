package sdk

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/misialq/qiime2/internal/future"
	"github.com/misialq/qiime2/internal/provenance"
	"github.com/misialq/qiime2/internal/result"
)

// slotRef replaces a deferred handle inside a mapped argument tree: an
// index into the side list of dependency futures collected for one
// submission.
type slotRef struct {
	slot int
}

// collectionTemplate is the slot-mapped form of a ResultCollection
// argument. Keys keep their original order so the rebuilt collection
// matches the one the caller passed.
type collectionTemplate struct {
	keys  []string
	elems []any
}

// dispatchParallel schedules one invocation under the parallel model.
// Pipelines run inline on the calling goroutine so they can keep issuing
// further parallel sub-calls; leaf actions become deferred units of work
// on the routed executor.
func (s *Scope) dispatchParallel(ctx context.Context, args map[string]any) (result.Outputs, error) {
	// An upstream-pending argument can never already be cached, so the
	// probe is skipped entirely when any argument is deferred.
	if !argsContainDeferred(args) {
		if res, ok := s.probeCache(ctx, args); ok {
			return res, nil
		}
	}

	if s.action.kind == KindPipeline {
		return s.invoke(ctx, provenance.ExecutionContext{
			Type:     provenance.ExecutionParallel,
			Executor: "inline",
		}, args)
	}

	if s.exec == nil {
		return nil, ErrNoParallelConfig
	}

	executor := s.exec.Route(s.action.plugin, s.action.id)
	kind, ok := s.exec.Kind(executor)
	if !ok {
		return nil, fmt.Errorf("executor %q is not configured", executor)
	}

	// Walk the argument tree, replacing every deferred handle with a slot
	// index into the side list of pending computations. The mapped tree is
	// free of handles and safe to hand across worker boundaries.
	var deps []*result.Proxy
	mapped := make(map[string]any, len(args))
	for name, v := range args {
		mapped[name] = mapValue(v, &deps)
	}

	f := future.New[*result.Results]()
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				f.Resolve(nil, fmt.Errorf("action %s: computation panicked: %v", s.action.Ref(), r))
			}
		}()

		resolved := make([]any, len(deps))
		g := new(errgroup.Group)
		for i, dep := range deps {
			i, dep := i, dep
			g.Go(func() error {
				v, err := dep.Await()
				if err != nil {
					return err
				}
				resolved[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			f.Resolve(nil, err)
			return
		}

		realArgs := make(map[string]any, len(mapped))
		for name, v := range mapped {
			realArgs[name] = unmapValue(v, resolved)
		}

		f.Resolve(s.invoke(context.Background(), provenance.ExecutionContext{
			Type:     provenance.ExecutionParallel,
			Executor: kind,
		}, realArgs))
	}
	if err := s.exec.Submit(executor, task); err != nil {
		return nil, err
	}

	collated, err := s.action.sig.CollateInputs(args)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", s.action.Ref(), err)
	}
	outputTypes, err := s.action.sig.SolveOutputs(collated)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", s.action.Ref(), err)
	}
	return result.NewProxyResults(f, outputTypes), nil
}

func mapValue(v any, deps *[]*result.Proxy) any {
	switch val := v.(type) {
	case *result.Proxy:
		*deps = append(*deps, val)
		return slotRef{slot: len(*deps) - 1}
	case *result.ResultCollection:
		tmpl := collectionTemplate{keys: val.Keys()}
		tmpl.elems = make([]any, len(tmpl.keys))
		for i, key := range tmpl.keys {
			elem, _ := val.Get(key)
			tmpl.elems[i] = mapValue(elem, deps)
		}
		return tmpl
	case []any:
		mapped := make([]any, len(val))
		for i, elem := range val {
			mapped[i] = mapValue(elem, deps)
		}
		return mapped
	case map[string]any:
		mapped := make(map[string]any, len(val))
		for k, elem := range val {
			mapped[k] = mapValue(elem, deps)
		}
		return mapped
	default:
		return v
	}
}

func unmapValue(v any, resolved []any) any {
	switch val := v.(type) {
	case slotRef:
		return resolved[val.slot]
	case collectionTemplate:
		coll := result.NewResultCollection()
		for i, key := range val.keys {
			elem := unmapValue(val.elems[i], resolved)
			r, ok := elem.(result.Result)
			if !ok {
				panic(fmt.Sprintf("collection element %q resolved to %T, not a Result", key, elem))
			}
			coll.Set(key, r)
		}
		return coll
	case []any:
		unmapped := make([]any, len(val))
		for i, elem := range val {
			unmapped[i] = unmapValue(elem, resolved)
		}
		return unmapped
	case map[string]any:
		unmapped := make(map[string]any, len(val))
		for k, elem := range val {
			unmapped[k] = unmapValue(elem, resolved)
		}
		return unmapped
	default:
		return v
	}
}
