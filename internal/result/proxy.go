package result

import (
	"fmt"

	"github.com/misialq/qiime2/internal/future"
	"github.com/misialq/qiime2/internal/provenance"
	"github.com/misialq/qiime2/internal/types"
)

// Selector describes which part of a pending invocation's Results a
// deferred handle denotes: a named output, and optionally one element of
// a collection-typed output.
type Selector struct {
	Output string
	Key    string
}

// Proxy is a deferred handle: a placeholder for a value not yet computed
// under parallel execution. It carries no data, only the typed identity of
// the value and the instructions to extract it once the owning invocation
// resolves.
type Proxy struct {
	typ types.Type

	// Exactly one of source or derived is set. source selects out of a
	// pending invocation's Results; derived wraps an already-extracted
	// pending value (e.g. a deferred alias).
	source  *future.Future[*Results]
	sel     Selector
	derived *future.Future[any]
}

// Proxy satisfies the Result contract so deferred values can flow through
// pipeline outputs and collections; identity accessors block until the
// underlying invocation resolves.
var _ Result = (*Proxy)(nil)

// NewProxy returns a deferred handle selecting sel out of the Results
// that f will resolve to.
func NewProxy(f *future.Future[*Results], sel Selector, t types.Type) *Proxy {
	return &Proxy{typ: t, source: f, sel: sel}
}

// NewDerivedProxy returns a deferred handle over an already-extracted
// pending value.
func NewDerivedProxy(f *future.Future[any], t types.Type) *Proxy {
	return &Proxy{typ: t, derived: f}
}

// Type returns the statically solved type of the pending value.
func (p *Proxy) Type() types.Type { return p.typ }

// Await blocks until the underlying invocation resolves and returns the
// selected value: a Result, or a *ResultCollection for a whole
// collection-typed output.
func (p *Proxy) Await() (any, error) {
	if p.derived != nil {
		return p.derived.Wait()
	}

	res, err := p.source.Wait()
	if err != nil {
		return nil, err
	}
	v, ok := res.Get(p.sel.Output)
	if !ok {
		return nil, fmt.Errorf("deferred invocation has no output %q", p.sel.Output)
	}
	if p.sel.Key == "" {
		return v, nil
	}

	coll, ok := v.(*ResultCollection)
	if !ok {
		return nil, fmt.Errorf("deferred output %q is not a collection", p.sel.Output)
	}
	elem, ok := coll.Get(p.sel.Key)
	if !ok {
		return nil, fmt.Errorf("deferred output %q has no element %q", p.sel.Output, p.sel.Key)
	}
	return elem, nil
}

// AwaitResult is Await narrowed to a single Result, failing if the proxy
// denotes a whole collection.
func (p *Proxy) AwaitResult() (Result, error) {
	v, err := p.Await()
	if err != nil {
		return nil, err
	}
	// Chained aliases can resolve to another deferred handle.
	if nested, ok := v.(*Proxy); ok {
		return nested.AwaitResult()
	}
	r, ok := v.(Result)
	if !ok {
		return nil, fmt.Errorf("deferred value resolved to %T, not a single result", v)
	}
	return r, nil
}

// UUID blocks until the pending value resolves and returns its identity.
func (p *Proxy) UUID() string {
	r, err := p.AwaitResult()
	if err != nil {
		return ""
	}
	return r.UUID()
}

// DataID blocks until the pending value resolves and returns the identity
// of its underlying data.
func (p *Proxy) DataID() string {
	r, err := p.AwaitResult()
	if err != nil {
		return ""
	}
	return r.DataID()
}

// Alias schedules an alias of the proxy's eventual value under the given
// name and provenance, returning a new deferred handle without blocking.
// Used when a non-root pipeline relabels outputs that upstream stages
// have not produced yet.
func (p *Proxy) Alias(name string, prov *provenance.Capture, reg Referencer) (Result, error) {
	f := future.Go(func() (any, error) {
		r, err := p.AwaitResult()
		if err != nil {
			return nil, err
		}
		return r.Alias(name, prov, reg)
	})
	return NewDerivedProxy(f, p.typ), nil
}

// ProxyResults is the deferred counterpart of Results: a future paired
// with the statically solved output types, returned by parallel dispatch.
type ProxyResults struct {
	f       *future.Future[*Results]
	outputs []types.OutputSpec
}

var _ Outputs = (*ProxyResults)(nil)

// NewProxyResults pairs a pending invocation with its solved output types.
func NewProxyResults(f *future.Future[*Results], outputs []types.OutputSpec) *ProxyResults {
	specs := make([]types.OutputSpec, len(outputs))
	copy(specs, outputs)
	return &ProxyResults{f: f, outputs: specs}
}

// Outputs returns the solved output types in declaration order.
func (p *ProxyResults) Outputs() []types.OutputSpec {
	out := make([]types.OutputSpec, len(p.outputs))
	copy(out, p.outputs)
	return out
}

// Len returns the number of declared outputs.
func (p *ProxyResults) Len() int { return len(p.outputs) }

// Names returns the output names in declaration order.
func (p *ProxyResults) Names() []string {
	names := make([]string, len(p.outputs))
	for i, spec := range p.outputs {
		names[i] = spec.Name
	}
	return names
}

// Get returns a deferred handle for the named output.
func (p *ProxyResults) Get(name string) (any, bool) {
	for _, spec := range p.outputs {
		if spec.Name == name {
			return NewProxy(p.f, Selector{Output: name}, spec.Type), true
		}
	}
	return nil, false
}

// At returns a deferred handle for the output at position i.
func (p *ProxyResults) At(i int) any {
	spec := p.outputs[i]
	return NewProxy(p.f, Selector{Output: spec.Name}, spec.Type)
}

// Element returns a deferred handle for one element of a collection-typed
// output.
func (p *ProxyResults) Element(name, key string) (*Proxy, error) {
	for _, spec := range p.outputs {
		if spec.Name != name {
			continue
		}
		if !spec.Type.IsCollection() {
			return nil, fmt.Errorf("output %q is not a collection", name)
		}
		return NewProxy(p.f, Selector{Output: name, Key: key}, spec.Type.Elem()), nil
	}
	return nil, fmt.Errorf("no output named %q", name)
}

// Wait blocks until the invocation resolves and returns its Results.
func (p *ProxyResults) Wait() (*Results, error) {
	return p.f.Wait()
}
