package future_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/misialq/qiime2/internal/future"
)

func TestResolveOnce(t *testing.T) {
	f := future.New[int]()
	f.Resolve(1, nil)
	f.Resolve(2, errors.New("ignored"))

	v, err := f.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v != 1 {
		t.Errorf("second Resolve overwrote value: got %d", v)
	}
}

func TestGo(t *testing.T) {
	f := future.Go(func() (string, error) {
		return "done", nil
	})
	v, err := f.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v != "done" {
		t.Errorf("got %q, want %q", v, "done")
	}
}

func TestConcurrentWaiters(t *testing.T) {
	f := future.New[int]()

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := f.Wait()
			results[i] = v
		}()
	}

	time.Sleep(10 * time.Millisecond)
	f.Resolve(42, nil)
	wg.Wait()

	for i, v := range results {
		if v != 42 {
			t.Errorf("waiter %d got %d, want 42", i, v)
		}
	}
}

func TestDoneChannel(t *testing.T) {
	f := future.New[int]()
	select {
	case <-f.Done():
		t.Fatal("Done closed before Resolve")
	default:
	}

	f.Resolve(0, nil)
	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Resolve")
	}
}
