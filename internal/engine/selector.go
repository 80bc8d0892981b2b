package engine

import (
	"sort"

	orderedmap "github.com/elliotchance/orderedmap/v3"
)

// Selector is a pure function that, given the current State, appends the
// specs it wants to wanted. Selectors never mutate State and never start or
// stop modules directly; they only describe intent.
type Selector func(state *State, wanted *[]Spec)

// SelectorChain is the string-keyed set of selectors the Reconciler
// consults on every pass. Keys are conventionally prefixed with a
// two-digit priority ("10-core", "20-config", "30-sessions",
// "40-<id>-<type>-<name>" for per-session launchers, "50-lock",
// "95-shutdown"); Build runs them in ascending key order regardless of
// the order they were Set, so "20-config" always runs before
// "30-sessions" no matter which was installed first.
type SelectorChain struct {
	selectors *orderedmap.OrderedMap[string, Selector]
}

// NewSelectorChain constructs an empty chain.
func NewSelectorChain() *SelectorChain {
	return &SelectorChain{selectors: orderedmap.NewOrderedMap[string, Selector]()}
}

// Set installs or replaces the selector at key.
func (c *SelectorChain) Set(key string, sel Selector) {
	c.selectors.Set(key, sel)
}

// Remove deletes the selector at key, if present.
func (c *SelectorChain) Remove(key string) {
	c.selectors.Delete(key)
}

// Has reports whether a selector is installed at key.
func (c *SelectorChain) Has(key string) bool {
	_, ok := c.selectors.Get(key)
	return ok
}

// Build runs every selector in ascending key order, collecting one flat
// Wanted list. orderedmap's own iteration order is insertion order, not
// key order, so Build sorts the keys itself rather than relying on the
// order selectors happened to be Set in. A selector that wants to tear
// everything down (the "95-shutdown" key by convention) clears wanted to
// the empty slice — the official way to request a full teardown.
func (c *SelectorChain) Build(state *State) []Spec {
	keys := make([]string, 0, c.selectors.Len())
	for key := range c.selectors.AllFromFront() {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var wanted []Spec
	for _, key := range keys {
		sel, ok := c.selectors.Get(key)
		if !ok || sel == nil {
			continue
		}
		sel(state, &wanted)
	}
	return wanted
}

// Clear is the selector value installed under "95-shutdown": it resets
// wanted to empty regardless of what earlier selectors appended.
func Clear(_ *State, wanted *[]Spec) {
	*wanted = (*wanted)[:0]
}
