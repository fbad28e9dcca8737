package sdk

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/misialq/qiime2/internal/provenance"
	"github.com/misialq/qiime2/internal/result"
	"github.com/misialq/qiime2/internal/types"
)

// invoke runs the full bind flow for one invocation: provenance capture,
// deprecation warning, type management, the variant-specific executor,
// the output-cardinality assertion, and registration of the finished
// results under the invocation fingerprint.
func (s *Scope) invoke(ctx context.Context, exec provenance.ExecutionContext, args map[string]any) (*result.Results, error) {
	a := s.action
	prov := provenance.New(string(a.kind), a.plugin, a.id, exec)

	if a.deprecated {
		s.logger.Warn("action is deprecated and will be removed in a future version of this plugin",
			"plugin", a.plugin, "action", a.id)
	}

	collated, err := a.sig.CollateInputs(args)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", a.Ref(), err)
	}
	if err := a.sig.CheckTypes(collated); err != nil {
		return nil, fmt.Errorf("action %s: %w", a.Ref(), err)
	}
	outputTypes, err := a.sig.SolveOutputs(collated)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", a.Ref(), err)
	}
	callArgs, err := a.sig.CoerceUserInput(collated)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", a.Ref(), err)
	}
	callArgs = a.sig.CaptureArgs(prov, callArgs)

	start := time.Now()
	outputs, err := s.execute(ctx, callArgs, outputTypes, prov)
	executionDuration.WithLabelValues(string(a.kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		executionsTotal.WithLabelValues(string(a.kind), executionFailed).Inc()
		return nil, err
	}
	executionsTotal.WithLabelValues(string(a.kind), executionCompleted).Inc()

	if len(outputs) != len(a.sig.Outputs) {
		return nil, fmt.Errorf(
			"number of callable outputs must match number of outputs defined in signature: %d != %d",
			len(outputs), len(a.sig.Outputs))
	}

	names := make([]string, len(a.sig.Outputs))
	for i, spec := range a.sig.Outputs {
		names[i] = spec.Name
	}
	results, err := result.NewResults(names, outputs)
	if err != nil {
		return nil, err
	}

	s.register(ctx, callArgs, outputTypes, results)
	return results, nil
}

// register records the finished results under the invocation fingerprint
// so later runs can reuse them. Invocations with deferred arguments or
// outputs are not registered; the producing invocations register the
// resolved values themselves. Registration failure is never fatal.
func (s *Scope) register(ctx context.Context, callArgs map[string]any, outputTypes []types.OutputSpec, results *result.Results) {
	if !s.cache.HasNamedPool() {
		return
	}
	if argsContainDeferred(callArgs) {
		return
	}
	for _, v := range results.Values() {
		if containsDeferred(v) {
			return
		}
	}
	if err := s.cache.Register(ctx, s.fingerprint(callArgs), outputTypes, results); err != nil {
		s.logger.Warn("failed to register invocation in named pool",
			"action", s.action.Ref(), "error", err)
	}
}

// execute dispatches to the variant-specific executor. A panic inside a
// computation aborts only this invocation: it is recovered here and
// surfaced as the invocation's error.
func (s *Scope) execute(ctx context.Context, args map[string]any, outputTypes []types.OutputSpec, prov *provenance.Capture) (outputs []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = fmt.Errorf("action %s: computation panicked: %v", s.action.Ref(), r)
		}
	}()

	switch s.action.kind {
	case KindMethod:
		return s.executeMethod(args, outputTypes, prov)
	case KindVisualizer:
		return s.executeVisualizer(args, prov)
	case KindPipeline:
		return s.executePipeline(ctx, args, outputTypes, prov)
	default:
		return nil, fmt.Errorf("unknown action kind %q", s.action.kind)
	}
}

// executeMethod invokes the computation with coerced view arguments and
// coerces each raw output into a typed, cache-tracked artifact.
func (s *Scope) executeMethod(args map[string]any, outputTypes []types.OutputSpec, prov *provenance.Capture) ([]any, error) {
	raw, err := s.action.method(args)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", s.action.Ref(), err)
	}

	if len(raw) != len(outputTypes) {
		return nil, fmt.Errorf(
			"number of output views must match number of output semantic types: %d != %d",
			len(raw), len(outputTypes))
	}

	outputs := make([]any, len(raw))
	for i, view := range raw {
		spec := outputTypes[i]
		ref, err := s.AddReference(result.NewArtifact(spec.Type, view, prov.ForOutput(spec.Name)))
		if err != nil {
			return nil, err
		}
		outputs[i] = ref
	}
	return outputs, nil
}

// executeVisualizer runs the computation inside a fresh, auto-removed
// working directory whose contents become the single visualization
// result. The computation must not return a value.
func (s *Scope) executeVisualizer(args map[string]any, prov *provenance.Capture) ([]any, error) {
	dir, err := os.MkdirTemp("", "qiime2-temp-")
	if err != nil {
		return nil, fmt.Errorf("create visualizer working directory: %w", err)
	}
	defer os.RemoveAll(dir)

	ret, err := s.action.visualizer(dir, args)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", s.action.Ref(), err)
	}
	if ret != nil {
		return nil, fmt.Errorf(
			"visualizer %s should not return anything, received %#v as a return value",
			s.action.Ref(), ret)
	}

	prov.OutputName = "visualization"
	viz, err := result.FromDataDir(dir, prov)
	if err != nil {
		return nil, err
	}
	ref, err := s.AddReference(viz)
	if err != nil {
		return nil, err
	}
	return []any{ref}, nil
}

// executePipeline invokes the computation with the scope, coerces and
// (at the root) resolves its outputs, enforces the Result contract, and
// aliases every output under the pipeline's own provenance.
func (s *Scope) executePipeline(ctx context.Context, args map[string]any, outputTypes []types.OutputSpec, prov *provenance.Capture) ([]any, error) {
	raw, err := s.action.pipeline(ctx, s, args)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", s.action.Ref(), err)
	}

	coerced, err := s.coercePipelineOutputs(raw)
	if err != nil {
		return nil, err
	}

	// The caller re-checks cardinality, but reporting it before the
	// contract check points a plugin developer at the missing output
	// rather than at a confusing type mismatch.
	if len(coerced) != len(outputTypes) {
		return nil, fmt.Errorf(
			"number of outputs must match number of output semantic types: %d != %d",
			len(coerced), len(outputTypes))
	}

	for _, v := range coerced {
		switch v.(type) {
		case *result.ResultCollection, result.Result:
		default:
			return nil, fmt.Errorf("pipelines must return Result objects, not %T", v)
		}
	}

	aliased := make([]any, 0, len(outputTypes))
	for i, spec := range outputTypes {
		v := coerced[i]
		switch val := v.(type) {
		case *result.ResultCollection:
			if !spec.Type.IsCollection() {
				return nil, fmt.Errorf("expected output type %s, received %s", spec.Type, val.Type())
			}
			size := val.Len()
			out := result.NewResultCollection()
			for idx, key := range val.Keys() {
				elem, _ := val.Get(key)
				if !elem.Type().AssignableTo(spec.Type.Elem()) {
					return nil, fmt.Errorf("expected output type %s, received %s",
						spec.Type.Elem(), elem.Type())
				}
				name := result.ElementName(spec.Name, key, idx, size)
				aliasedElem, err := elem.Alias(name, prov, s)
				if err != nil {
					return nil, err
				}
				out.Set(key, aliasedElem)
			}
			aliased = append(aliased, out)
		case result.Result:
			if !val.Type().AssignableTo(spec.Type) {
				return nil, fmt.Errorf("expected output type %s, received %s", spec.Type, val.Type())
			}
			aliasedResult, err := val.Alias(spec.Name, prov, s)
			if err != nil {
				return nil, err
			}
			aliased = append(aliased, aliasedResult)
		}
	}

	return aliased, nil
}

// coercePipelineOutputs normalizes raw pipeline returns: maps and slices
// become ResultCollections, and a root scope forces every deferred handle
// to resolution, including handles nested inside collections, before
// anything is handed outside the engine.
func (s *Scope) coercePipelineOutputs(raw []any) ([]any, error) {
	out := make([]any, len(raw))
	copy(out, raw)

	for i, v := range out {
		switch val := v.(type) {
		case map[string]any, []any:
			coll, err := result.CollectionFrom(val)
			if err != nil {
				return nil, err
			}
			out[i] = coll
		}
	}

	if !s.IsRoot() {
		return out, nil
	}

	g := new(errgroup.Group)
	for i, v := range out {
		i := i
		switch val := v.(type) {
		case *result.Proxy:
			g.Go(func() error {
				resolved, err := val.Await()
				if err != nil {
					return err
				}
				if coll, ok := resolved.(*result.ResultCollection); ok {
					if err := resolveCollection(coll); err != nil {
						return err
					}
				}
				out[i] = resolved
				return nil
			})
		case *result.ResultCollection:
			g.Go(func() error {
				return resolveCollection(val)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func resolveCollection(coll *result.ResultCollection) error {
	for _, key := range coll.Keys() {
		elem, _ := coll.Get(key)
		if p, ok := elem.(*result.Proxy); ok {
			resolved, err := p.AwaitResult()
			if err != nil {
				return err
			}
			coll.Set(key, resolved)
		}
	}
	return nil
}
