package result

import "fmt"

// Outputs is the caller-facing surface shared by concrete Results and
// deferred ProxyResults: ordered, name-addressable access to the values
// of one invocation.
type Outputs interface {
	Len() int
	Names() []string
	Get(name string) (any, bool)
	At(i int) any
}

// Results is the ordered, name-addressable tuple of values returned by one
// invocation: one slot per declared output. Values are single Results or
// ResultCollections; under parallel execution a slot may hold a deferred
// handle until the root boundary forces resolution.
type Results struct {
	names  []string
	values []any
}

var _ Outputs = (*Results)(nil)

// NewResults pairs output names with values. The counts must match; the
// engine checks cardinality before constructing Results, so a mismatch
// here is a programming error.
func NewResults(names []string, values []any) (*Results, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("results: %d names for %d values", len(names), len(values))
	}
	r := &Results{
		names:  make([]string, len(names)),
		values: make([]any, len(values)),
	}
	copy(r.names, names)
	copy(r.values, values)
	return r, nil
}

// Len returns the number of outputs.
func (r *Results) Len() int { return len(r.names) }

// Names returns the output names in declaration order.
func (r *Results) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Get returns the value for the named output.
func (r *Results) Get(name string) (any, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// At returns the value at position i.
func (r *Results) At(i int) any { return r.values[i] }

// Values returns the output values in declaration order.
func (r *Results) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}
