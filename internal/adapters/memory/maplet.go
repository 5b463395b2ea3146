package memory

import "sync"

type multiMaplet[K comparable, V any] struct {
	key func(V) string

	mu    sync.RWMutex
	order []K
	data  map[K][]V
}

func newMultiMaplet[K comparable, V any](key func(V) string) *multiMaplet[K, V] {
	return &multiMaplet[K, V]{key: key, data: make(map[K][]V)}
}

func (m *multiMaplet[K, V]) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.data = make(map[K][]V)
}

func (m *multiMaplet[K, V]) ContainsKey(key K) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *multiMaplet[K, V]) Get(key K) ([]V, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]V(nil), m.data[key]...), nil
}

func (m *multiMaplet[K, V]) Put(key K, values []V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(key)
	m.appendLocked(key, values)
	return nil
}

func (m *multiMaplet[K, V]) AppendValue(key K, value V) error {
	return m.AppendValues(key, []V{value})
}

func (m *multiMaplet[K, V]) AppendValues(key K, values []V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(key, values)
	return nil
}

func (m *multiMaplet[K, V]) appendLocked(key K, values []V) {
	if len(values) == 0 {
		return
	}
	existing, ok := m.data[key]
	seen := make(map[string]bool, len(existing)+len(values))
	for _, v := range existing {
		seen[m.key(v)] = true
	}
	for _, v := range values {
		k := m.key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		existing = append(existing, v)
	}
	if !ok && len(existing) > 0 {
		m.order = append(m.order, key)
	}
	if len(existing) > 0 {
		m.data[key] = existing
	}
}

func (m *multiMaplet[K, V]) RemoveValue(key K, value V) error {
	return m.RemoveValues(key, []V{value})
}

func (m *multiMaplet[K, V]) RemoveValues(key K, values []V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.data[key]
	if !ok {
		return nil
	}
	drop := make(map[string]bool, len(values))
	for _, v := range values {
		drop[m.key(v)] = true
	}
	var kept []V
	for _, v := range existing {
		if !drop[m.key(v)] {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		m.deleteLocked(key)
		return nil
	}
	m.data[key] = kept
	return nil
}

func (m *multiMaplet[K, V]) Remove(key K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(key)
	return nil
}

func (m *multiMaplet[K, V]) deleteLocked(key K) {
	if _, ok := m.data[key]; !ok {
		return
	}
	delete(m.data, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *multiMaplet[K, V]) Keys() ([]K, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]K(nil), m.order...), nil
}

func (m *multiMaplet[K, V]) Flush() error { return nil }

func (m *multiMaplet[K, V]) Close() error { return nil }
