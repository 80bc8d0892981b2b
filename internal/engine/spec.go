// Package engine implements the module lifecycle engine: the event loop,
// module registry, reconciler and selector chain that together compute and
// enact the desired set of running modules.
package engine

import "strings"

// Spec is the immutable identity of a module instance: a name selecting an
// implementation plus zero or more positional string arguments. Equality is
// structural, and a Spec is usable as a map key via Key.
type Spec struct {
	Name string
	Args []string
}

// NewSpec builds a Spec from a name and its positional arguments.
func NewSpec(name string, args ...string) Spec {
	cp := make([]string, len(args))
	copy(cp, args)
	return Spec{Name: name, Args: cp}
}

// Key returns a canonical string form of the spec suitable as a map key.
// Unlike Name, Key also encodes the positional arguments, so two specs that
// share a Name but differ in Args produce distinct keys.
func (s Spec) Key() string {
	var b strings.Builder
	b.WriteString(s.Name)
	for _, a := range s.Args {
		b.WriteByte(0)
		b.WriteString(a)
	}
	return b.String()
}

// Equal reports whether two specs are structurally identical.
func (s Spec) Equal(other Spec) bool {
	return s.Key() == other.Key()
}

// SameName reports whether two specs share a Name but may differ in Args.
// The reconciler uses this to detect "same module, new parameters" pairs
// that are candidates for in-place reconfiguration.
func (s Spec) SameName(other Spec) bool {
	return s.Name == other.Name
}

func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	return s.Name + "(" + strings.Join(s.Args, ", ") + ")"
}

// dedupe returns specs with duplicates removed, preserving first occurrence.
func dedupe(specs []Spec) []Spec {
	seen := make(map[string]struct{}, len(specs))
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		k := s.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// indexOf returns the index of spec in specs by Key, or -1.
func indexOf(specs []Spec, spec Spec) int {
	k := spec.Key()
	for i, s := range specs {
		if s.Key() == k {
			return i
		}
	}
	return -1
}

// indexOfName returns the index of the first spec sharing Name, or -1.
func indexOfName(specs []Spec, name string) int {
	for i, s := range specs {
		if s.Name == name {
			return i
		}
	}
	return -1
}
