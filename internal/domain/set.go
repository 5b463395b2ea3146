package domain

// Set is an insertion-ordered set whose membership is decided by a key function.
type Set[T any] struct {
	key   func(T) string
	index map[string]int
	items []T
}

// NewSet creates a set using key as the equivalence and adds items.
func NewSet[T any](key func(T) string, items ...T) *Set[T] {
	s := &Set[T]{key: key, index: make(map[string]int, len(items))}
	s.Add(items...)
	return s
}

// Add inserts items not yet present. Returns true if anything was added.
func (s *Set[T]) Add(items ...T) bool {
	added := false
	for _, it := range items {
		k := s.key(it)
		if _, ok := s.index[k]; ok {
			continue
		}
		s.index[k] = len(s.items)
		s.items = append(s.items, it)
		added = true
	}
	return added
}

// Contains reports whether an equivalent item is present.
func (s *Set[T]) Contains(it T) bool {
	_, ok := s.index[s.key(it)]
	return ok
}

// Get returns the stored item equivalent to it.
func (s *Set[T]) Get(it T) (T, bool) {
	i, ok := s.index[s.key(it)]
	if !ok {
		var zero T
		return zero, false
	}
	return s.items[i], true
}

// Remove deletes items from the set, keeping the order of the rest.
func (s *Set[T]) Remove(items ...T) {
	drop := make(map[string]bool, len(items))
	for _, it := range items {
		if _, ok := s.index[s.key(it)]; ok {
			drop[s.key(it)] = true
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := s.items[:0]
	for _, it := range s.items {
		if !drop[s.key(it)] {
			kept = append(kept, it)
		}
	}
	s.items = kept
	s.index = make(map[string]int, len(kept))
	for i, it := range kept {
		s.index[s.key(it)] = i
	}
}

// Len returns the number of items.
func (s *Set[T]) Len() int { return len(s.items) }

// Items returns a copy of the items in insertion order.
func (s *Set[T]) Items() []T {
	return append([]T(nil), s.items...)
}

// Minus returns the items of s not present in other, in s's order.
func (s *Set[T]) Minus(other *Set[T]) []T {
	var out []T
	for _, it := range s.items {
		if !other.Contains(it) {
			out = append(out, it)
		}
	}
	return out
}

// Sources is a set of NodeSource.
type Sources = Set[NodeSource]

// NewSources creates a source set.
func NewSources(items ...NodeSource) *Sources {
	return NewSet(NodeSource.Path, items...)
}

// IDs is a set of ReferenceID.
type IDs = Set[ReferenceID]

// NewIDs creates a ReferenceID set.
func NewIDs(items ...ReferenceID) *IDs {
	return NewSet(ReferenceID.String, items...)
}

// Nodes is a set of nodes under SameKey equivalence.
type Nodes = Set[Node]

// NewNodes creates a node set.
func NewNodes(items ...Node) *Nodes {
	return NewSet(SameKey, items...)
}
