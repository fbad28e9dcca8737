package cache_test

import (
	"testing"

	"github.com/misialq/qiime2/internal/cache"
	"github.com/misialq/qiime2/internal/result"
	"github.com/misialq/qiime2/internal/types"
)

var tableType = types.Semantic("FeatureTable")

func TestFingerprintStableAcrossProcessIdentity(t *testing.T) {
	a := result.NewArtifact(tableType, 1, nil)
	// A restored copy has a different instance identity but the same data.
	restored := result.Restore("another-uuid", a.DataID(), tableType, 1)

	inv1 := cache.NewInvocation("plugin:rarefy", []cache.Binding{
		{Name: "table", Value: types.Render(a)},
		{Name: "depth", Value: types.Render(int64(100))},
	})
	inv2 := cache.NewInvocation("plugin:rarefy", []cache.Binding{
		{Name: "table", Value: types.Render(restored)},
		{Name: "depth", Value: types.Render(int64(100))},
	})

	if inv1.Key() != inv2.Key() {
		t.Errorf("equal inputs should fingerprint equally:\n%s\n%s", inv1.Key(), inv2.Key())
	}
}

func TestFingerprintChangesWithInputs(t *testing.T) {
	a := result.NewArtifact(tableType, 1, nil)
	b := result.NewArtifact(tableType, 1, nil)

	base := cache.NewInvocation("plugin:rarefy", []cache.Binding{
		{Name: "table", Value: types.Render(a)},
		{Name: "depth", Value: types.Render(int64(100))},
	})

	tests := []struct {
		name string
		inv  cache.Invocation
	}{
		{"different action", cache.NewInvocation("plugin:filter", []cache.Binding{
			{Name: "table", Value: types.Render(a)},
			{Name: "depth", Value: types.Render(int64(100))},
		})},
		{"different artifact", cache.NewInvocation("plugin:rarefy", []cache.Binding{
			{Name: "table", Value: types.Render(b)},
			{Name: "depth", Value: types.Render(int64(100))},
		})},
		{"different parameter", cache.NewInvocation("plugin:rarefy", []cache.Binding{
			{Name: "table", Value: types.Render(a)},
			{Name: "depth", Value: types.Render(int64(50))},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.inv.Key() == base.Key() {
				t.Error("distinct invocations produced equal fingerprints")
			}
		})
	}
}

func TestFingerprintBindingOrderMatters(t *testing.T) {
	a := cache.NewInvocation("p:a", []cache.Binding{
		{Name: "x", Value: "1"}, {Name: "y", Value: "2"},
	})
	b := cache.NewInvocation("p:a", []cache.Binding{
		{Name: "y", Value: "2"}, {Name: "x", Value: "1"},
	})
	if a.Key() == b.Key() {
		t.Error("bindings are declaration-ordered, reordering must change the key")
	}
}
