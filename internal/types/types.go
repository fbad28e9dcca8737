package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Primitive type names understood by the checker and coercer.
const (
	nameInt   = "Int"
	nameFloat = "Float"
	nameStr   = "Str"
	nameBool  = "Bool"
)

// Well-known primitive types.
var (
	Int   = Type{name: nameInt}
	Float = Type{name: nameFloat}
	Str   = Type{name: nameStr}
	Bool  = Type{name: nameBool}
)

// Type is a semantic type: either a named type (primitive or
// domain-specific) or a Collection of a named type.
type Type struct {
	name string
	elem *Type
}

// Semantic returns a named semantic type.
func Semantic(name string) Type {
	return Type{name: name}
}

// Collection returns the collection type of elem.
func Collection(elem Type) Type {
	e := elem
	return Type{name: "Collection", elem: &e}
}

// Name returns the type's name without any collection wrapper.
func (t Type) Name() string {
	if t.elem != nil {
		return t.elem.name
	}
	return t.name
}

// IsCollection reports whether t is a collection type.
func (t Type) IsCollection() bool { return t.elem != nil }

// Elem returns the element type of a collection. It panics for
// non-collection types.
func (t Type) Elem() Type {
	if t.elem == nil {
		panic("types: Elem called on non-collection type " + t.name)
	}
	return *t.elem
}

func (t Type) String() string {
	if t.elem != nil {
		return fmt.Sprintf("Collection[%s]", t.elem.name)
	}
	return t.name
}

// AssignableTo reports whether a value of type t satisfies target.
func (t Type) AssignableTo(target Type) bool {
	if t.IsCollection() != target.IsCollection() {
		return false
	}
	if t.IsCollection() {
		return t.elem.name == target.elem.name
	}
	return t.name == target.name
}

// Parse is the inverse of String. It accepts a plain type name or
// "Collection[Name]".
func Parse(s string) (Type, error) {
	if inner, ok := strings.CutPrefix(s, "Collection["); ok {
		inner, ok = strings.CutSuffix(inner, "]")
		if !ok || inner == "" {
			return Type{}, fmt.Errorf("malformed collection type %q", s)
		}
		return Collection(Semantic(inner)), nil
	}
	if s == "" {
		return Type{}, fmt.Errorf("empty type name")
	}
	return Semantic(s), nil
}

func (t Type) isPrimitive() bool {
	switch t.name {
	case nameInt, nameFloat, nameStr, nameBool:
		return true
	}
	return false
}

// Typed is implemented by values that carry their own semantic type,
// such as artifacts and deferred result handles.
type Typed interface {
	Type() Type
}

// Identified is implemented by values with a stable, process-independent
// data identity. Artifacts keep the same data identity across aliasing,
// which is what makes cache fingerprints comparable between runs.
type Identified interface {
	DataID() string
}

// Render produces a canonical, process-independent string form of an
// argument value. Equal coerced inputs render identically, so the result
// is safe to hash for cache fingerprints and to record in provenance.
func Render(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case Identified:
		return "artifact:" + val.DataID()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return strconv.Quote(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Render(elem)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ":" + Render(val[k])
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return fmt.Sprintf("%#v", v)
	}
}
