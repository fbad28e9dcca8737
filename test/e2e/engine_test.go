package e2e

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/misialq/qiime2/internal/cache"
	"github.com/misialq/qiime2/internal/parallel"
	"github.com/misialq/qiime2/internal/result"
	"github.com/misialq/qiime2/internal/sdk"
	"github.com/misialq/qiime2/internal/types"
)

var featureTable = types.Semantic("FeatureTable")

// harness bundles one engine instance with the invocation counter of its
// registered method, so tests can observe recomputation vs recycling.
type harness struct {
	engine *sdk.Engine
	calls  *atomic.Int64
}

func newHarness(t *testing.T, poolPath string) *harness {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	c := cache.New(logger)
	if poolPath != "" {
		pool, err := cache.OpenNamedPool(poolPath)
		if err != nil {
			t.Fatalf("OpenNamedPool: %v", err)
		}
		t.Cleanup(func() { pool.Close() })
		c.AttachNamedPool(pool)
	}

	reg := sdk.NewRegistry()
	calls := registerPlugin(t, reg)
	return &harness{engine: sdk.NewEngine(reg, c, logger), calls: calls}
}

func registerPlugin(t *testing.T, reg *sdk.Registry) *atomic.Int64 {
	t.Helper()

	var calls atomic.Int64
	methodSig, err := types.NewSignature(
		[]types.ParameterSpec{
			{Name: "table", Type: featureTable},
			{Name: "depth", Type: types.Int},
		},
		[]types.OutputSpec{{Name: "rarefied", Type: featureTable}},
	)
	if err != nil {
		t.Fatalf("NewSignature: %v", err)
	}
	rarefy, err := sdk.NewMethod("demo", "rarefy", methodSig,
		func(args map[string]any) ([]any, error) {
			calls.Add(1)
			table := args["table"].(*result.Artifact)
			depth := args["depth"].(int64)
			rows := int64(0)
			switch v := table.Value().(type) {
			case int:
				rows = int64(v)
			case float64:
				rows = int64(v)
			}
			return []any{int(rows + depth)}, nil
		}, sdk.ActionOptions{})
	if err != nil {
		t.Fatalf("NewMethod: %v", err)
	}
	if err := reg.Register(rarefy); err != nil {
		t.Fatalf("Register: %v", err)
	}

	pipelineSig, err := types.NewSignature(
		[]types.ParameterSpec{
			{Name: "table", Type: featureTable},
			{Name: "depth", Type: types.Int},
		},
		[]types.OutputSpec{{Name: "out", Type: featureTable}},
	)
	if err != nil {
		t.Fatalf("NewSignature: %v", err)
	}
	twice, err := sdk.NewPipeline("demo", "rarefy_twice", pipelineSig,
		func(ctx context.Context, scope *sdk.Scope, args map[string]any) ([]any, error) {
			run, err := scope.GetAction("demo", "rarefy")
			if err != nil {
				return nil, err
			}
			first, err := run(ctx, map[string]any{"table": args["table"], "depth": args["depth"]})
			if err != nil {
				return nil, err
			}
			intermediate, _ := first.Get("rarefied")
			second, err := run(ctx, map[string]any{"table": intermediate, "depth": args["depth"]})
			if err != nil {
				return nil, err
			}
			out, _ := second.Get("rarefied")
			return []any{out}, nil
		}, sdk.ActionOptions{})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if err := reg.Register(twice); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return &calls
}

func pipelineArgs(table *result.Artifact) map[string]any {
	return map[string]any{"table": table, "depth": 10}
}

func TestPipelineSynchronous(t *testing.T) {
	h := newHarness(t, "")

	bound, err := h.engine.Bind("demo", "rarefy_twice")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	res, err := bound.Call(context.Background(), pipelineArgs(result.NewArtifact(featureTable, 1, nil)))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	art := res.At(0).(*result.Artifact)
	if art.Value() != 21 {
		t.Errorf("pipeline value %v, want 21", art.Value())
	}
	if h.calls.Load() != 2 {
		t.Errorf("method ran %d times, want 2", h.calls.Load())
	}
}

func TestRecyclingSurvivesEngineRestart(t *testing.T) {
	poolPath := filepath.Join(t.TempDir(), "pool.db")
	table := result.NewArtifact(featureTable, 1, nil)

	first := newHarness(t, poolPath)
	bound, err := first.engine.Bind("demo", "rarefy_twice")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	before, err := bound.Call(context.Background(), pipelineArgs(table))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.calls.Load() != 2 {
		t.Fatalf("first run computed %d times, want 2", first.calls.Load())
	}

	// A second engine over the same pool stands in for a new process. The
	// input artifact is restored rather than shared, so only data identity
	// carries over.
	restored := result.Restore("restored-input", table.DataID(), featureTable, 1)
	second := newHarness(t, poolPath)
	bound, err = second.engine.Bind("demo", "rarefy_twice")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	after, err := bound.Call(context.Background(), pipelineArgs(restored))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if second.calls.Load() != 0 {
		t.Errorf("restarted engine recomputed %d times, want full recycling", second.calls.Load())
	}
	a := before.At(0).(result.Result)
	b := after.At(0).(result.Result)
	if a.DataID() != b.DataID() {
		t.Error("recycled output lost its data identity")
	}
}

func TestPipelineParallel(t *testing.T) {
	h := newHarness(t, "")

	cfg, err := parallel.ParseConfig([]byte(`
executors:
  - name: default
    kind: threadpool
    workers: 2
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	h.engine.ConfigureParallel(cfg)
	t.Cleanup(h.engine.Shutdown)

	bound, err := h.engine.Bind("demo", "rarefy_twice")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	handle, err := bound.Parallel(context.Background(), pipelineArgs(result.NewArtifact(featureTable, 1, nil)))
	if err != nil {
		t.Fatalf("Parallel: %v", err)
	}
	res, err := handle.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	art, ok := res.At(0).(*result.Artifact)
	if !ok {
		t.Fatalf("root output is %T, want *result.Artifact", res.At(0))
	}
	if art.Value() != 21 {
		t.Errorf("parallel pipeline value %v, want 21", art.Value())
	}
	if h.calls.Load() != 2 {
		t.Errorf("method ran %d times, want 2", h.calls.Load())
	}
}

func TestAsyncMatchesSynchronous(t *testing.T) {
	h := newHarness(t, "")

	bound, err := h.engine.Bind("demo", "rarefy")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	f, err := bound.Async(context.Background(), pipelineArgs(result.NewArtifact(featureTable, 1, nil)))
	if err != nil {
		t.Fatalf("Async: %v", err)
	}
	res, err := f.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.At(0).(*result.Artifact).Value() != 11 {
		t.Errorf("async value %v, want 11", res.At(0).(*result.Artifact).Value())
	}
}
