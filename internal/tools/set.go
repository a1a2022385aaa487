package tools

import (
	"slices"
	"strings"
)

// Set is an immutable, sorted set of tool identifiers. The zero value is the
// empty set.
type Set struct {
	names []string
}

// NewSet builds a Set from names, dropping blanks and duplicates.
func NewSet(names ...string) Set {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return Set{names: slices.Compact(out)}
}

// Len returns the number of tools in the set.
func (s Set) Len() int { return len(s.names) }

// Empty reports whether the set has no tools.
func (s Set) Empty() bool { return len(s.names) == 0 }

// Contains reports whether name is in the set.
func (s Set) Contains(name string) bool {
	_, found := slices.BinarySearch(s.names, name)
	return found
}

// Names returns a copy of the tool identifiers in sorted order.
func (s Set) Names() []string {
	return slices.Clone(s.names)
}

// Equal reports whether both sets hold the same identifiers.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.names, other.names)
}

func (s Set) String() string {
	return "[" + strings.Join(s.names, ", ") + "]"
}
