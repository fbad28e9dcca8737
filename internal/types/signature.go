package types

import (
	"fmt"
)

// ParameterSpec declares one wrapper parameter.
type ParameterSpec struct {
	Name        string
	Type        Type
	Description string
	Default     any
	HasDefault  bool
}

// OutputSpec declares one wrapper output.
type OutputSpec struct {
	Name        string
	Type        Type
	Description string
}

// Signature is the declared parameter and output schema of an action.
// Parameters and outputs keep their declaration order; the engine relies
// on that order for fingerprinting and for positional output matching.
type Signature struct {
	Parameters []ParameterSpec
	Outputs    []OutputSpec
}

// NewSignature validates and returns a signature. Parameter and output
// names must be unique within their respective lists.
func NewSignature(parameters []ParameterSpec, outputs []OutputSpec) (*Signature, error) {
	seen := make(map[string]bool, len(parameters))
	for _, p := range parameters {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter with empty name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
	}
	seen = make(map[string]bool, len(outputs))
	for _, o := range outputs {
		if o.Name == "" {
			return nil, fmt.Errorf("output with empty name")
		}
		if seen[o.Name] {
			return nil, fmt.Errorf("duplicate output %q", o.Name)
		}
		seen[o.Name] = true
	}
	return &Signature{Parameters: parameters, Outputs: outputs}, nil
}

// Parameter returns the declaration of the named parameter.
func (s *Signature) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// CollateInputs merges user arguments with declared defaults, rejecting
// unknown names and missing required parameters. The returned map has one
// entry per declared parameter.
func (s *Signature) CollateInputs(args map[string]any) (map[string]any, error) {
	for name := range args {
		if _, ok := s.Parameter(name); !ok {
			return nil, fmt.Errorf("unknown parameter %q", name)
		}
	}

	collated := make(map[string]any, len(s.Parameters))
	for _, p := range s.Parameters {
		if v, ok := args[p.Name]; ok {
			collated[p.Name] = v
			continue
		}
		if !p.HasDefault {
			return nil, fmt.Errorf("missing required parameter %q", p.Name)
		}
		collated[p.Name] = p.Default
	}
	return collated, nil
}

// CheckTypes validates every collated input against its declared type.
func (s *Signature) CheckTypes(args map[string]any) error {
	for _, p := range s.Parameters {
		v, ok := args[p.Name]
		if !ok {
			return fmt.Errorf("missing collated value for parameter %q", p.Name)
		}
		if v == nil && p.HasDefault {
			// An optional parameter left at its nil default is not typed.
			continue
		}
		if err := checkValue(v, p.Type); err != nil {
			return fmt.Errorf("parameter %q: %w", p.Name, err)
		}
	}
	return nil
}

// SolveOutputs returns the concrete output types for a call with the
// given collated inputs, in declaration order.
func (s *Signature) SolveOutputs(args map[string]any) ([]OutputSpec, error) {
	if len(args) != len(s.Parameters) {
		return nil, fmt.Errorf("cannot solve outputs: got %d inputs, expected %d",
			len(args), len(s.Parameters))
	}
	solved := make([]OutputSpec, len(s.Outputs))
	copy(solved, s.Outputs)
	return solved, nil
}

// CoerceUserInput converts collated inputs into the canonical value forms
// the computation expects: ints widen to int64, and ints passed for Float
// parameters become float64. Values of semantic type pass through.
func (s *Signature) CoerceUserInput(args map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(args))
	for _, p := range s.Parameters {
		v, err := coerceValue(args[p.Name], p.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		coerced[p.Name] = v
	}
	return coerced, nil
}

// ArgumentRecorder receives the rendered form of each coerced argument,
// in parameter declaration order.
type ArgumentRecorder interface {
	RecordArgument(name, rendered string)
}

// CaptureArgs records every coerced argument into rec and returns the
// arguments unchanged, so callers can thread the capture into the same
// expression that produces the executor's inputs.
func (s *Signature) CaptureArgs(rec ArgumentRecorder, args map[string]any) map[string]any {
	for _, p := range s.Parameters {
		rec.RecordArgument(p.Name, Render(args[p.Name]))
	}
	return args
}

func checkValue(v any, t Type) error {
	if t.IsCollection() {
		switch val := v.(type) {
		case Typed:
			if !val.Type().AssignableTo(t) {
				return fmt.Errorf("expected type %s, received %s", t, val.Type())
			}
			return nil
		case map[string]any:
			for k, elem := range val {
				if err := checkValue(elem, t.Elem()); err != nil {
					return fmt.Errorf("element %q: %w", k, err)
				}
			}
			return nil
		case []any:
			for i, elem := range val {
				if err := checkValue(elem, t.Elem()); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
			}
			return nil
		default:
			return fmt.Errorf("expected type %s, received %T", t, v)
		}
	}

	if t.isPrimitive() {
		return checkPrimitive(v, t)
	}

	typed, ok := v.(Typed)
	if !ok {
		return fmt.Errorf("expected type %s, received %T", t, v)
	}
	if !typed.Type().AssignableTo(t) {
		return fmt.Errorf("expected type %s, received %s", t, typed.Type())
	}
	return nil
}

func checkPrimitive(v any, t Type) error {
	ok := false
	switch t.name {
	case nameInt:
		_, isInt := v.(int)
		_, isInt64 := v.(int64)
		ok = isInt || isInt64
	case nameFloat:
		switch v.(type) {
		case float64, int, int64:
			ok = true
		}
	case nameStr:
		_, ok = v.(string)
	case nameBool:
		_, ok = v.(bool)
	}
	if !ok {
		return fmt.Errorf("expected type %s, received %T", t, v)
	}
	return nil
}

func coerceValue(v any, t Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	if t.IsCollection() {
		switch val := v.(type) {
		case map[string]any:
			out := make(map[string]any, len(val))
			for k, elem := range val {
				c, err := coerceValue(elem, t.Elem())
				if err != nil {
					return nil, err
				}
				out[k] = c
			}
			return out, nil
		case []any:
			out := make([]any, len(val))
			for i, elem := range val {
				c, err := coerceValue(elem, t.Elem())
				if err != nil {
					return nil, err
				}
				out[i] = c
			}
			return out, nil
		default:
			return v, nil
		}
	}

	switch t.name {
	case nameInt:
		if iv, ok := v.(int); ok {
			return int64(iv), nil
		}
	case nameFloat:
		switch iv := v.(type) {
		case int:
			return float64(iv), nil
		case int64:
			return float64(iv), nil
		}
	}
	return v, nil
}
