package result

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/misialq/qiime2/internal/types"
)

// ResultCollection is an ordered, key-addressable group of Results
// representing one collection-typed output.
type ResultCollection struct {
	keys  []string
	items map[string]Result
}

var _ types.Typed = (*ResultCollection)(nil)
var _ types.Identified = (*ResultCollection)(nil)

// NewResultCollection returns an empty collection.
func NewResultCollection() *ResultCollection {
	return &ResultCollection{items: make(map[string]Result)}
}

// CollectionFrom coerces a raw computation output into a ResultCollection.
// Accepted forms: an existing *ResultCollection, a map[string]any (keys
// sorted for deterministic order), or a []any (keys are decimal indices).
// Every element must satisfy the Result contract.
func CollectionFrom(v any) (*ResultCollection, error) {
	switch val := v.(type) {
	case *ResultCollection:
		return val, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		c := NewResultCollection()
		for _, k := range keys {
			r, ok := val[k].(Result)
			if !ok {
				return nil, fmt.Errorf("pipelines must return Result values, not %T", val[k])
			}
			c.Set(k, r)
		}
		return c, nil
	case []any:
		c := NewResultCollection()
		for i, elem := range val {
			r, ok := elem.(Result)
			if !ok {
				return nil, fmt.Errorf("pipelines must return Result values, not %T", elem)
			}
			c.Set(strconv.Itoa(i), r)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("cannot build a result collection from %T", v)
	}
}

// Set stores r under key, appending to the order on first insert.
func (c *ResultCollection) Set(key string, r Result) {
	if _, ok := c.items[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.items[key] = r
}

// Get returns the element stored under key.
func (c *ResultCollection) Get(key string) (Result, bool) {
	r, ok := c.items[key]
	return r, ok
}

// Keys returns the element keys in insertion order.
func (c *ResultCollection) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns the number of elements.
func (c *ResultCollection) Len() int { return len(c.keys) }

// Type returns the collection type derived from the first element. An
// empty collection has no observable element type.
func (c *ResultCollection) Type() types.Type {
	if len(c.keys) == 0 {
		return types.Collection(types.Semantic("Empty"))
	}
	return types.Collection(c.items[c.keys[0]].Type())
}

// DataID derives the collection's data identity from its elements, so a
// collection input fingerprints identically across processes.
func (c *ResultCollection) DataID() string {
	parts := make([]string, 0, len(c.keys))
	for _, k := range c.keys {
		parts = append(parts, k+"="+c.items[k].DataID())
	}
	return "collection{" + strings.Join(parts, ",") + "}"
}

// ElementName synthesizes the deterministic name an aliased collection
// element is recorded under. It is a pure function of the declared output
// name, the element key, the element's position, and the collection size,
// so reloading from cache reproduces the same names.
func ElementName(output, key string, idx, size int) string {
	return fmt.Sprintf("%s[%s:%d/%d]", output, key, idx, size)
}
