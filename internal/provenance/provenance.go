// Package provenance builds per-invocation capture records: who ran what,
// with which arguments, under which execution strategy. Captures are
// consumed opaquely by the engine and persisted by the archive layer.
package provenance

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Execution strategy descriptors.
const (
	ExecutionSynchronous = "synchronous"
	ExecutionAsync       = "asynchronous"
	ExecutionParallel    = "parallel"
)

// ExecutionContext describes how an invocation was scheduled.
type ExecutionContext struct {
	Type string
	// Executor carries the routed executor kind under parallel execution,
	// or "inline" for pipelines run on the calling goroutine.
	Executor string
}

// Argument is the rendered form of one coerced input.
type Argument struct {
	Name  string
	Value string
}

// Capture is the provenance record for a single action invocation.
type Capture struct {
	RunID      string
	Kind       string
	Plugin     string
	Action     string
	Execution  ExecutionContext
	StartedAt  time.Time
	OutputName string

	args []Argument
}

// New creates a capture tagged with the action identity and execution
// strategy. The run ID is a fresh ULID.
func New(kind, plugin, action string, exec ExecutionContext) *Capture {
	return &Capture{
		RunID:     ulid.Make().String(),
		Kind:      kind,
		Plugin:    plugin,
		Action:    action,
		Execution: exec,
		StartedAt: time.Now().UTC(),
	}
}

// RecordArgument appends one rendered argument, preserving call order.
func (c *Capture) RecordArgument(name, rendered string) {
	c.args = append(c.args, Argument{Name: name, Value: rendered})
}

// Arguments returns the recorded arguments in the order they were added.
func (c *Capture) Arguments() []Argument {
	out := make([]Argument, len(c.args))
	copy(out, c.args)
	return out
}

// ForOutput returns a copy of the capture with the output name set, used
// when one invocation produces several named or aliased outputs.
func (c *Capture) ForOutput(name string) *Capture {
	fork := *c
	fork.OutputName = name
	fork.args = make([]Argument, len(c.args))
	copy(fork.args, c.args)
	return &fork
}
