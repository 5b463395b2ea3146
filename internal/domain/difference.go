package domain

// Change pairs two versions of the same element.
type Change[T any] struct {
	Past T
	Now  T
}

// Difference describes how a collection changed between two versions.
type Difference[T any] struct {
	Added   []T
	Removed []T
	Changed []Change[T]
}

// Unchanged reports whether the two versions are equivalent.
func (d Difference[T]) Unchanged() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare diffs past against now. Elements are matched by same and reported
// as changed when their content keys differ.
func Compare[T any](past, now []T, same, content func(T) string) Difference[T] {
	var d Difference[T]
	pastByKey := make(map[string]T, len(past))
	for _, p := range past {
		pastByKey[same(p)] = p
	}
	nowKeys := make(map[string]bool, len(now))
	for _, n := range now {
		k := same(n)
		if nowKeys[k] {
			continue
		}
		nowKeys[k] = true
		p, ok := pastByKey[k]
		if !ok {
			d.Added = append(d.Added, n)
			continue
		}
		if content(p) != content(n) {
			d.Changed = append(d.Changed, Change[T]{Past: p, Now: n})
		}
	}
	seen := make(map[string]bool, len(past))
	for _, p := range past {
		k := same(p)
		if nowKeys[k] || seen[k] {
			continue
		}
		seen[k] = true
		d.Removed = append(d.Removed, p)
	}
	return d
}
