package sdk

import (
	"context"
	"fmt"
	"strings"

	"github.com/misialq/qiime2/internal/result"
	"github.com/misialq/qiime2/internal/types"
)

// Kind identifies one of the three action variants. The set is closed;
// variant behavior is dispatched through the per-kind executors in this
// package.
type Kind string

const (
	KindMethod     Kind = "method"
	KindVisualizer Kind = "visualizer"
	KindPipeline   Kind = "pipeline"
)

// Descriptor version understood by Resolve.
const descriptorVersion = 1

// MethodFunc is a method computation: coerced view arguments in, one raw
// value per declared output out.
type MethodFunc func(args map[string]any) ([]any, error)

// VisualizerFunc is a visualizer computation. It writes its output into
// outputDir and must not return a value; a non-nil ret is a contract
// violation.
type VisualizerFunc func(outputDir string, args map[string]any) (ret any, err error)

// PipelineFunc is a pipeline computation. It receives the invocation
// scope and may invoke further actions through it. Every returned value
// must satisfy the Result contract, directly or as a map/slice of such
// values.
type PipelineFunc func(ctx context.Context, scope *Scope, args map[string]any) ([]any, error)

// ActionOptions carries the descriptive metadata attached at
// registration.
type ActionOptions struct {
	Name        string
	Description string
	Citations   []string
	Deprecated  bool
}

// Action is a declared, signature-typed unit of work. Actions are created
// once at registration and immutable thereafter; they can be rebuilt in
// another process from their Descriptor via the registry.
type Action struct {
	plugin string
	id     string
	kind   Kind

	name        string
	description string
	citations   []string
	deprecated  bool

	sig *types.Signature

	method     MethodFunc
	visualizer VisualizerFunc
	pipeline   PipelineFunc
}

// NewMethod declares a method action.
func NewMethod(plugin, id string, sig *types.Signature, fn MethodFunc, opts ActionOptions) (*Action, error) {
	if fn == nil {
		return nil, fmt.Errorf("method %s:%s has no computation", plugin, id)
	}
	a, err := newAction(plugin, id, KindMethod, sig, opts)
	if err != nil {
		return nil, err
	}
	a.method = fn
	return a, nil
}

// NewVisualizer declares a visualizer action. The output schema is fixed:
// a single "visualization" output holding the captured working-directory
// contents, so only parameters are declared by the caller.
func NewVisualizer(plugin, id string, parameters []types.ParameterSpec, fn VisualizerFunc, opts ActionOptions) (*Action, error) {
	if fn == nil {
		return nil, fmt.Errorf("visualizer %s:%s has no computation", plugin, id)
	}
	sig, err := types.NewSignature(parameters, []types.OutputSpec{
		{Name: "visualization", Type: result.VisualizationType},
	})
	if err != nil {
		return nil, fmt.Errorf("visualizer %s:%s: %w", plugin, id, err)
	}
	a, err := newAction(plugin, id, KindVisualizer, sig, opts)
	if err != nil {
		return nil, err
	}
	a.visualizer = fn
	return a, nil
}

// NewPipeline declares a pipeline action.
func NewPipeline(plugin, id string, sig *types.Signature, fn PipelineFunc, opts ActionOptions) (*Action, error) {
	if fn == nil {
		return nil, fmt.Errorf("pipeline %s:%s has no computation", plugin, id)
	}
	a, err := newAction(plugin, id, KindPipeline, sig, opts)
	if err != nil {
		return nil, err
	}
	a.pipeline = fn
	return a, nil
}

func newAction(plugin, id string, kind Kind, sig *types.Signature, opts ActionOptions) (*Action, error) {
	if plugin == "" || id == "" {
		return nil, fmt.Errorf("action requires a plugin id and an action id")
	}
	if sig == nil {
		return nil, fmt.Errorf("%s %s:%s has no signature", kind, plugin, id)
	}
	return &Action{
		plugin:      normalizePlugin(plugin),
		id:          id,
		kind:        kind,
		name:        opts.Name,
		description: opts.Description,
		citations:   opts.Citations,
		deprecated:  opts.Deprecated,
		sig:         sig,
	}, nil
}

// Plugin returns the owning plugin's id, separator-normalized.
func (a *Action) Plugin() string { return a.plugin }

// ID returns the action id.
func (a *Action) ID() string { return a.id }

// Kind returns the action variant.
func (a *Action) Kind() Kind { return a.kind }

// Name returns the human-readable name.
func (a *Action) Name() string { return a.name }

// Description returns the human-readable description.
func (a *Action) Description() string { return a.description }

// Citations returns the attached citation keys.
func (a *Action) Citations() []string {
	out := make([]string, len(a.citations))
	copy(out, a.citations)
	return out
}

// Deprecated reports whether invoking the action should emit a
// deprecation warning.
func (a *Action) Deprecated() bool { return a.deprecated }

// Signature returns the declared parameter/output schema.
func (a *Action) Signature() *types.Signature { return a.sig }

// Ref returns the plugin:action identity used in fingerprints and
// provenance.
func (a *Action) Ref() string { return a.plugin + ":" + a.id }

// Descriptor identifies the action for transfer across process or worker
// boundaries. The receiving side re-resolves it through its registry;
// computations are never transmitted.
type Descriptor struct {
	Version int
	Plugin  string
	ID      string
	Kind    Kind
}

// Descriptor returns the action's transfer descriptor.
func (a *Action) Descriptor() Descriptor {
	return Descriptor{Version: descriptorVersion, Plugin: a.plugin, ID: a.id, Kind: a.kind}
}

func normalizePlugin(plugin string) string {
	return strings.ReplaceAll(plugin, "_", "-")
}
