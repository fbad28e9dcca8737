package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Binding is one single-entry parameter-name → rendered-value pair.
type Binding struct {
	Name  string
	Value string
}

// Invocation is the hashable fingerprint of one action call: the
// plugin:action identity plus the coerced inputs as an ordered sequence
// of bindings in parameter declaration order. Values are rendered
// canonically (see types.Render), so equal coerced inputs produce equal
// fingerprints regardless of process identity.
type Invocation struct {
	ActionRef string
	Bindings  []Binding
}

// NewInvocation builds a fingerprint for plugin:action with the given
// ordered bindings.
func NewInvocation(actionRef string, bindings []Binding) Invocation {
	bs := make([]Binding, len(bindings))
	copy(bs, bindings)
	return Invocation{ActionRef: actionRef, Bindings: bs}
}

// Key returns the stable hash key for this invocation.
func (inv Invocation) Key() string {
	var b strings.Builder
	b.WriteString(inv.ActionRef)
	b.WriteByte('\n')
	for _, bind := range inv.Bindings {
		b.WriteString(bind.Name)
		b.WriteByte('=')
		b.WriteString(bind.Value)
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
