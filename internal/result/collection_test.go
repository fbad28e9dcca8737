package result_test

import (
	"strings"
	"testing"

	"github.com/misialq/qiime2/internal/result"
	"github.com/misialq/qiime2/internal/types"
)

var tableType = types.Semantic("FeatureTable")

func newArtifact(t *testing.T, value any) *result.Artifact {
	t.Helper()
	return result.NewArtifact(tableType, value, nil)
}

func TestCollectionFromMapSortsKeys(t *testing.T) {
	c, err := result.CollectionFrom(map[string]any{
		"b": newArtifact(t, 2),
		"a": newArtifact(t, 1),
		"c": newArtifact(t, 3),
	})
	if err != nil {
		t.Fatalf("CollectionFrom: %v", err)
	}

	want := []string{"a", "b", "c"}
	got := c.Keys()
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCollectionFromSliceUsesIndices(t *testing.T) {
	c, err := result.CollectionFrom([]any{newArtifact(t, 1), newArtifact(t, 2)})
	if err != nil {
		t.Fatalf("CollectionFrom: %v", err)
	}
	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "0" || keys[1] != "1" {
		t.Errorf("slice keys: got %v, want [0 1]", keys)
	}
}

func TestCollectionFromRejectsNonResults(t *testing.T) {
	_, err := result.CollectionFrom(map[string]any{"a": 42})
	if err == nil || !strings.Contains(err.Error(), "must return Result") {
		t.Fatalf("expected Result contract error, got %v", err)
	}
}

func TestCollectionDataIDStableAcrossRestore(t *testing.T) {
	a := newArtifact(t, 1)
	b := newArtifact(t, 2)

	c1 := result.NewResultCollection()
	c1.Set("x", a)
	c1.Set("y", b)

	c2 := result.NewResultCollection()
	c2.Set("x", result.Restore("other-uuid-1", a.DataID(), tableType, 1))
	c2.Set("y", result.Restore("other-uuid-2", b.DataID(), tableType, 2))

	if c1.DataID() != c2.DataID() {
		t.Errorf("collection data identity should depend only on keys and element data:\n%s\n%s",
			c1.DataID(), c2.DataID())
	}
}

func TestCollectionType(t *testing.T) {
	c := result.NewResultCollection()
	c.Set("a", newArtifact(t, 1))
	if got := c.Type().String(); got != "Collection[FeatureTable]" {
		t.Errorf("Type() = %q, want Collection[FeatureTable]", got)
	}
}

func TestElementNameDeterministic(t *testing.T) {
	tests := []struct {
		output, key string
		idx, size   int
		want        string
	}{
		{"tables", "a", 0, 3, "tables[a:0/3]"},
		{"tables", "b", 1, 3, "tables[b:1/3]"},
		{"out", "0", 0, 1, "out[0:0/1]"},
	}
	for _, tt := range tests {
		if got := result.ElementName(tt.output, tt.key, tt.idx, tt.size); got != tt.want {
			t.Errorf("ElementName(%q, %q, %d, %d) = %q, want %q",
				tt.output, tt.key, tt.idx, tt.size, got, tt.want)
		}
	}
}
