// Package cache provides the shared result cache: a transient
// process-local pool that keeps every in-flight value reachable, plus an
// optional persistent named pool indexed by invocation fingerprint.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/misialq/qiime2/internal/result"
	"github.com/misialq/qiime2/internal/types"
)

// Cache is shared by every scope descending from one root invocation.
// All mutation (index construction, registration, lookup) happens under
// the cache's lock; computation itself runs unlocked.
type Cache struct {
	mu     sync.Mutex
	logger *slog.Logger

	process map[string]result.Result
	order   []string

	named   *NamedPool
	index   map[string]map[string]RecordedOutput
	indexed bool
}

// New creates a cache with only the transient process pool.
func New(logger *slog.Logger) *Cache {
	return &Cache{
		logger:  logger,
		process: make(map[string]result.Result),
	}
}

// AttachNamedPool activates a persistent pool. From this point every
// registered value is mirrored into both pools.
func (c *Cache) AttachNamedPool(pool *NamedPool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.named = pool
	c.index = nil
	c.indexed = false
}

// HasNamedPool reports whether a persistent pool is active.
func (c *Cache) HasNamedPool() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.named != nil
}

// EnsureIndex builds the named pool's fingerprint index. The root scope
// calls this during construction; the index is built exactly once per
// cache lifetime, before any lookup.
func (c *Cache) EnsureIndex(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.named == nil || c.indexed {
		return nil
	}
	index, err := c.named.LoadIndex(ctx)
	if err != nil {
		return fmt.Errorf("index named pool: %w", err)
	}
	c.index = index
	c.indexed = true
	return nil
}

// AddReference registers a value in the process pool and mirrors it into
// the named pool when one is active. The returned handle is the
// process-pool reference, which stays reachable for inspection and
// cleanup even if the surrounding invocation later fails.
func (c *Cache) AddReference(r result.Result) (result.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.process[r.UUID()]; !ok {
		c.order = append(c.order, r.UUID())
	}
	c.process[r.UUID()] = r

	if c.named != nil {
		if a, ok := r.(*result.Artifact); ok {
			if err := c.named.SaveArtifact(context.Background(), a); err != nil {
				return nil, fmt.Errorf("mirror reference into named pool: %w", err)
			}
		}
	}
	return r, nil
}

// References returns every value currently tracked by the process pool,
// in registration order, so a coordinating caller can enumerate and clean
// up after a failure.
func (c *Cache) References() []result.Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]result.Result, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.process[id])
	}
	return out
}

// Release drops a value from the process pool.
func (c *Cache) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.process[id]; !ok {
		return
	}
	delete(c.process, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Probe looks up an invocation fingerprint in the named pool's index and
// attempts to reconstruct Results purely from stored artifacts. A miss,
// or an indexed entry that can no longer be fully reconstructed, returns
// ok=false; staleness is logged and never fatal.
func (c *Cache) Probe(ctx context.Context, inv Invocation, outputs []types.OutputSpec) (*result.Results, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.named == nil || !c.indexed {
		return nil, false
	}

	key := inv.Key()
	recorded, ok := c.index[key]
	if !ok {
		probeMisses.Inc()
		return nil, false
	}

	res, err := c.loadEntry(ctx, recorded, outputs)
	if err != nil {
		recycleRejections.Inc()
		c.logger.Warn("incomplete cached invocation found when recycling, results will be remade",
			"action", inv.ActionRef, "error", err)
		return nil, false
	}
	probeHits.Inc()
	return res, true
}

// Register records a completed invocation's outputs under its fingerprint
// so later runs can reuse them. Collection outputs record one element per
// entry with the synthesized item name, element key, position, and total.
func (c *Cache) Register(ctx context.Context, inv Invocation, outputs []types.OutputSpec, res *result.Results) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.named == nil {
		return nil
	}

	recorded := make([]RecordedOutput, 0, len(outputs))
	for _, spec := range outputs {
		v, ok := res.Get(spec.Name)
		if !ok {
			return fmt.Errorf("missing output %q during registration", spec.Name)
		}

		switch value := v.(type) {
		case *result.ResultCollection:
			size := value.Len()
			out := RecordedOutput{Name: spec.Name, Collection: true}
			for idx, key := range value.Keys() {
				elem, _ := value.Get(key)
				out.Elements = append(out.Elements, ElementInfo{
					ItemName: result.ElementName(spec.Name, key, idx, size),
					Key:      key,
					Idx:      idx,
					Total:    size,
					Artifact: elem.UUID(),
				})
			}
			recorded = append(recorded, out)
		case result.Result:
			recorded = append(recorded, RecordedOutput{
				Name: spec.Name,
				Elements: []ElementInfo{{
					ItemName: spec.Name,
					Artifact: value.UUID(),
				}},
			})
		default:
			// Deferred handles are never registered; the resolved values
			// are registered by the invocation that produces them.
			return nil
		}
	}

	key := inv.Key()
	if err := c.named.RecordInvocation(ctx, key, recorded); err != nil {
		return err
	}

	if c.index == nil {
		c.index = make(map[string]map[string]RecordedOutput)
	}
	byOutput := make(map[string]RecordedOutput, len(recorded))
	for _, out := range recorded {
		byOutput[out.Name] = out
	}
	c.index[key] = byOutput
	return nil
}

// loadEntry reconstructs Results for one indexed invocation. Caller holds
// the cache lock.
func (c *Cache) loadEntry(ctx context.Context, recorded map[string]RecordedOutput, outputs []types.OutputSpec) (*result.Results, error) {
	names := make([]string, 0, len(outputs))
	values := make([]any, 0, len(outputs))

	for _, spec := range outputs {
		entry, ok := recorded[spec.Name]
		if !ok {
			return nil, fmt.Errorf("no recorded output %q", spec.Name)
		}

		if spec.Type.IsCollection() {
			if err := validateCollection(entry.Elements); err != nil {
				return nil, fmt.Errorf("output %q: %w", spec.Name, err)
			}
			elems := make([]ElementInfo, len(entry.Elements))
			copy(elems, entry.Elements)
			sort.Slice(elems, func(i, j int) bool { return elems[i].Idx < elems[j].Idx })

			coll := result.NewResultCollection()
			for _, elem := range elems {
				loaded, err := c.named.LoadArtifact(ctx, elem.Artifact)
				if err != nil {
					return nil, fmt.Errorf("element %q: %w", elem.ItemName, err)
				}
				coll.Set(elem.Key, loaded)
			}
			names = append(names, spec.Name)
			values = append(values, coll)
			continue
		}

		if len(entry.Elements) != 1 {
			return nil, fmt.Errorf("output %q recorded %d elements for a single result",
				spec.Name, len(entry.Elements))
		}
		loaded, err := c.named.LoadArtifact(ctx, entry.Elements[0].Artifact)
		if err != nil {
			return nil, err
		}
		names = append(names, spec.Name)
		values = append(values, loaded)
	}

	return result.NewResults(names, values)
}

// validateCollection checks that every recorded element agrees on one
// declared total and that exactly that many elements were recorded. A
// collection recorded with zero elements is always forced to miss rather
// than served as complete-but-empty.
func validateCollection(elems []ElementInfo) error {
	if len(elems) == 0 {
		return errors.New("collection recorded with zero elements")
	}
	total := elems[0].Total
	for _, elem := range elems {
		if elem.Total != total {
			return fmt.Errorf("elements disagree on collection size: %d != %d", elem.Total, total)
		}
	}
	if len(elems) != total {
		return fmt.Errorf("recorded %d of %d elements", len(elems), total)
	}
	return nil
}
