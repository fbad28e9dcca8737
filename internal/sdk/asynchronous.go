package sdk

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/misialq/qiime2/internal/future"
	"github.com/misialq/qiime2/internal/provenance"
	"github.com/misialq/qiime2/internal/result"
)

// envPlotBackend names the interactive plotting backend configured in the
// environment. The macosx backend deadlocks visualizer computations when
// they run off the main thread, so async dispatch refuses it up front.
const envPlotBackend = "MPLBACKEND"

const backendErrorTemplate = "your current plotting backend (MacOSX) does not work with " +
	"asynchronous calls: set the %s environment variable to a non-interactive " +
	"backend such as Agg"

// dispatchAsync submits the bound call to a dedicated worker and returns
// a blocking future immediately. The worker re-resolves the action from
// its descriptor through the registry, then executes it under a fresh
// synchronous child scope sharing the cache. Each async scope accepts at
// most one task; the worker is not torn down early.
func (s *Scope) dispatchAsync(args map[string]any) (*future.Future[*result.Results], error) {
	if backend := os.Getenv(envPlotBackend); strings.EqualFold(backend, "macosx") {
		return nil, fmt.Errorf(backendErrorTemplate, envPlotBackend)
	}

	if !s.asyncBusy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("async scope for %s already has an outstanding task", s.action.Ref())
	}

	d := s.action.Descriptor()
	f := future.New[*result.Results]()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.Resolve(nil, fmt.Errorf("action %s:%s: computation panicked: %v", d.Plugin, d.ID, r))
			}
		}()

		a, err := s.registry.Resolve(d)
		if err != nil {
			f.Resolve(nil, err)
			return
		}
		worker := s.child(a)
		res, err := worker.runMaterialized(context.Background(),
			provenance.ExecutionContext{Type: provenance.ExecutionAsync}, args)
		f.Resolve(res, err)
	}()

	return f, nil
}
