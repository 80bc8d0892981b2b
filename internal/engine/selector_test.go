package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSelectorChainRunsInKeyOrder(t *testing.T) {
	chain := NewSelectorChain()
	var order []string

	chain.Set("20-second", func(_ *State, wanted *[]Spec) {
		order = append(order, "second")
		*wanted = append(*wanted, NewSpec("second"))
	})
	chain.Set("10-first", func(_ *State, wanted *[]Spec) {
		order = append(order, "first")
		*wanted = append(*wanted, NewSpec("first"))
	})

	got := chain.Build(&State{})

	assert.Equal(t, []string{"first", "second"}, order)
	want := []Spec{NewSpec("first"), NewSpec("second")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectorChainRemove(t *testing.T) {
	chain := NewSelectorChain()
	chain.Set("10-x", func(_ *State, wanted *[]Spec) {
		*wanted = append(*wanted, NewSpec("x"))
	})
	require := assert.New(t)
	require.True(chain.Has("10-x"))

	chain.Remove("10-x")

	require.False(chain.Has("10-x"))
	require.Empty(chain.Build(&State{}))
}

func TestClearWipesEarlierSelectors(t *testing.T) {
	chain := NewSelectorChain()
	chain.Set("10-x", func(_ *State, wanted *[]Spec) {
		*wanted = append(*wanted, NewSpec("x"))
	})
	chain.Set("95-shutdown", Clear)

	assert.Empty(t, chain.Build(&State{}))
}
