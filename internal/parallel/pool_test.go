package parallel_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/misialq/qiime2/internal/parallel"
)

func newTestSet(t *testing.T) *parallel.Set {
	t.Helper()
	cfg, err := parallel.ParseConfig([]byte(validConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	s := parallel.NewSet(cfg)
	t.Cleanup(s.Shutdown)
	return s
}

func TestRoute(t *testing.T) {
	s := newTestSet(t)

	if got := s.Route("diversity", "core_metrics"); got != "heavy" {
		t.Errorf("mapped action routed to %q, want heavy", got)
	}
	if got := s.Route("diversity", "alpha"); got != parallel.DefaultExecutor {
		t.Errorf("unmapped action routed to %q, want default", got)
	}
	if got := s.Route("other", "anything"); got != parallel.DefaultExecutor {
		t.Errorf("unmapped plugin routed to %q, want default", got)
	}
}

func TestKind(t *testing.T) {
	s := newTestSet(t)

	if kind, ok := s.Kind("heavy"); !ok || kind != "processpool" {
		t.Errorf("Kind(heavy) = %q, %v", kind, ok)
	}
	if _, ok := s.Kind("missing"); ok {
		t.Error("Kind of unknown executor should report false")
	}
}

func TestSubmitRunsTasks(t *testing.T) {
	s := newTestSet(t)

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		err := s.Submit(parallel.DefaultExecutor, func() {
			defer wg.Done()
			count.Add(1)
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()

	if count.Load() != 16 {
		t.Errorf("ran %d tasks, want 16", count.Load())
	}
}

func TestSubmitUnknownExecutor(t *testing.T) {
	s := newTestSet(t)
	if err := s.Submit("missing", func() {}); err == nil {
		t.Fatal("expected error for unconfigured executor")
	}
}

func TestShutdownDrainsTasks(t *testing.T) {
	cfg, err := parallel.ParseConfig([]byte(validConfig))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	s := parallel.NewSet(cfg)

	var count atomic.Int64
	for i := 0; i < 8; i++ {
		if err := s.Submit(parallel.DefaultExecutor, func() { count.Add(1) }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	s.Shutdown()

	if count.Load() != 8 {
		t.Errorf("shutdown before %d of 8 tasks ran", 8-count.Load())
	}
}

func TestWorkerSurvivesPanickingTask(t *testing.T) {
	s := newTestSet(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		if err := s.Submit(parallel.DefaultExecutor, func() {
			panic("task blew up")
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	var ran atomic.Bool
	wg.Add(1)
	if err := s.Submit(parallel.DefaultExecutor, func() {
		defer wg.Done()
		ran.Store(true)
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	wg.Wait()

	if !ran.Load() {
		t.Error("worker did not run tasks queued after a panic")
	}
}
