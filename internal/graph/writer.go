package graph

import (
	"depgraph/internal/domain"
	"depgraph/internal/ports"
)

// writeDiff stores after under key touching as little as possible: nothing
// if unchanged, an append if only additions exist, a full rewrite otherwise.
func writeDiff[K comparable, V any](m ports.MultiMaplet[K, V], key K, before, after []V, same, content func(V) string) error {
	if len(after) == 0 {
		if len(before) == 0 {
			if ok, err := m.ContainsKey(key); err != nil || !ok {
				return err
			}
		}
		return m.Remove(key)
	}
	if len(before) == 0 {
		return m.Put(key, after)
	}
	diff := domain.Compare(before, after, same, content)
	switch {
	case diff.Unchanged():
		return nil
	case len(diff.Removed) == 0 && len(diff.Changed) == 0:
		return m.AppendValues(key, diff.Added)
	default:
		return m.Put(key, after)
	}
}
