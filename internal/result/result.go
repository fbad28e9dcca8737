// Package result defines the value containers returned by action
// invocations: typed artifacts, visualizations, ordered Results tuples,
// keyed ResultCollections, and deferred handles for parallel execution.
package result

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/misialq/qiime2/internal/provenance"
	"github.com/misialq/qiime2/internal/types"
)

// VisualizationType is the semantic type of visualizer outputs.
var VisualizationType = types.Semantic("Visualization")

// Referencer registers a result into the owning scope's cache and returns
// the handle the caller should use from then on.
type Referencer interface {
	AddReference(r Result) (Result, error)
}

// Result is a single addressable, typed result of an action. It is the
// contract every pipeline output element must satisfy.
type Result interface {
	types.Typed

	// UUID identifies this result instance.
	UUID() string
	// DataID identifies the underlying data, preserved across aliasing.
	DataID() string
	// Alias relabels this result under a new name and provenance without
	// copying the underlying data, registering the alias through reg.
	Alias(name string, prov *provenance.Capture, reg Referencer) (Result, error)
}

// Artifact is an in-memory typed result.
type Artifact struct {
	uuid   string
	dataID string
	typ    types.Type
	value  any
	prov   *provenance.Capture
}

var _ Result = (*Artifact)(nil)
var _ types.Identified = (*Artifact)(nil)

// NewArtifact creates an artifact from an in-memory value. The artifact
// receives fresh instance and data identities.
func NewArtifact(t types.Type, value any, prov *provenance.Capture) *Artifact {
	return &Artifact{
		uuid:   uuid.NewString(),
		dataID: uuid.NewString(),
		typ:    t,
		value:  value,
		prov:   prov,
	}
}

// Restore rebuilds an artifact from stored identity and payload, used when
// loading from the persistent pool.
func Restore(id, dataID string, t types.Type, value any) *Artifact {
	return &Artifact{uuid: id, dataID: dataID, typ: t, value: value}
}

// Type returns the artifact's semantic type.
func (a *Artifact) Type() types.Type { return a.typ }

// UUID returns the artifact's instance identity.
func (a *Artifact) UUID() string { return a.uuid }

// DataID returns the identity of the underlying data.
func (a *Artifact) DataID() string { return a.dataID }

// Value returns the artifact's in-memory view.
func (a *Artifact) Value() any { return a.value }

// Provenance returns the capture recorded when the artifact was produced.
func (a *Artifact) Provenance() *provenance.Capture { return a.prov }

// Alias returns a new artifact with fresh instance identity, the given
// provenance, and the same data identity and value.
func (a *Artifact) Alias(name string, prov *provenance.Capture, reg Referencer) (Result, error) {
	var aliasProv *provenance.Capture
	if prov != nil {
		aliasProv = prov.ForOutput(name)
	}
	aliased := &Artifact{
		uuid:   uuid.NewString(),
		dataID: a.dataID,
		typ:    a.typ,
		value:  a.value,
		prov:   aliasProv,
	}
	return reg.AddReference(aliased)
}

// FromDataDir builds a Visualization artifact from the contents of dir,
// reading every regular file relative to the directory root.
func FromDataDir(dir string, prov *provenance.Capture) (*Artifact, error) {
	files := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read visualization data dir: %w", err)
	}
	return NewArtifact(VisualizationType, files, prov), nil
}
