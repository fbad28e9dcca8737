// Command q2engine runs a small built-in plugin through the invocation
// engine. It is a smoke-test entry point: it wires the environment
// configuration, the persistent pool, and (when configured) the parallel
// executors, then invokes a pipeline and reports its outputs.
package main

import (
	"context"
	"log"
	"os"

	"github.com/misialq/qiime2/internal/cache"
	"github.com/misialq/qiime2/internal/config"
	"github.com/misialq/qiime2/internal/parallel"
	"github.com/misialq/qiime2/internal/result"
	"github.com/misialq/qiime2/internal/sdk"
	"github.com/misialq/qiime2/internal/types"
)

var featureTable = types.Semantic("FeatureTable")

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("q2engine: starting",
		"pool_path", cfg.PoolPath,
		"parallel_config", cfg.ParallelConfigPath,
	)

	c := cache.New(logger)
	if cfg.PoolPath != "" {
		pool, err := cache.OpenNamedPool(cfg.PoolPath)
		if err != nil {
			log.Fatalf("failed to open named pool: %v", err)
		}
		defer pool.Close()
		c.AttachNamedPool(pool)
	}

	reg := sdk.NewRegistry()
	if err := registerDemoPlugin(reg); err != nil {
		log.Fatalf("failed to register demo plugin: %v", err)
	}

	engine := sdk.NewEngine(reg, c, logger)

	parallelMode := false
	if cfg.ParallelConfigPath != "" {
		pcfg, err := parallel.LoadConfig(cfg.ParallelConfigPath)
		if err != nil {
			log.Fatalf("failed to load parallel config: %v", err)
		}
		engine.ConfigureParallel(pcfg)
		defer engine.Shutdown()
		parallelMode = true
	}

	bound, err := engine.Bind("demo", "rarefy_twice")
	if err != nil {
		log.Fatalf("failed to bind pipeline: %v", err)
	}

	ctx := context.Background()
	args := map[string]any{
		"table": result.NewArtifact(featureTable, 100, nil),
		"depth": 10,
	}

	var res *result.Results
	if parallelMode {
		handle, err := bound.Parallel(ctx, args)
		if err != nil {
			log.Fatalf("parallel dispatch failed: %v", err)
		}
		res, err = handle.Wait()
		if err != nil {
			log.Fatalf("pipeline failed: %v", err)
		}
	} else {
		res, err = bound.Call(ctx, args)
		if err != nil {
			log.Fatalf("pipeline failed: %v", err)
		}
	}

	for i, name := range res.Names() {
		r := res.At(i).(result.Result)
		logger.Info("q2engine: pipeline output",
			"output", name,
			"type", r.Type().String(),
			"uuid", r.UUID(),
			"data_id", r.DataID(),
		)
	}
}

// registerDemoPlugin installs a minimal plugin: a rarefy method and a
// pipeline that applies it twice.
func registerDemoPlugin(reg *sdk.Registry) error {
	methodSig, err := types.NewSignature(
		[]types.ParameterSpec{
			{Name: "table", Type: featureTable},
			{Name: "depth", Type: types.Int},
		},
		[]types.OutputSpec{{Name: "rarefied", Type: featureTable}},
	)
	if err != nil {
		return err
	}
	rarefy, err := sdk.NewMethod("demo", "rarefy", methodSig,
		func(args map[string]any) ([]any, error) {
			table := args["table"].(*result.Artifact)
			depth := args["depth"].(int64)
			rows := int64(0)
			switch v := table.Value().(type) {
			case int:
				rows = int64(v)
			case float64:
				rows = int64(v)
			}
			if rows > depth {
				rows = depth
			}
			return []any{int(rows)}, nil
		},
		sdk.ActionOptions{Name: "Rarefy table", Description: "Subsample a table to a fixed depth."})
	if err != nil {
		return err
	}
	if err := reg.Register(rarefy); err != nil {
		return err
	}

	pipelineSig, err := types.NewSignature(
		[]types.ParameterSpec{
			{Name: "table", Type: featureTable},
			{Name: "depth", Type: types.Int},
		},
		[]types.OutputSpec{{Name: "out", Type: featureTable}},
	)
	if err != nil {
		return err
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
		},
		sdk.ActionOptions{Name: "Rarefy twice", Description: "Apply rarefaction twice in sequence."})
	if err != nil {
		return err
	}
	return reg.Register(twice)
}
