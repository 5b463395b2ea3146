package sqlite

import (
	"fmt"

	"depgraph/internal/ports"
	"depgraph/internal/serial"
)

// multiMaplet stores keys and values as their standalone serial encodings.
// Equal encodings are equal values, which the UNIQUE (k, v) constraint de-duplicates.
type multiMaplet[K interface {
	comparable
	serial.Element
}, V serial.Element] struct {
	s     *Storage
	table string
}

func openMaplet[K interface {
	comparable
	serial.Element
}, V serial.Element](s *Storage, table string) (ports.MultiMaplet[K, V], error) {
	s.mu.Lock()
	cached, ok := s.maplets[table]
	s.mu.Unlock()
	if ok {
		return cached.(ports.MultiMaplet[K, V]), nil
	}
	if err := s.ensureTable(table); err != nil {
		return nil, err
	}
	m := &multiMaplet[K, V]{s: s, table: table}
	s.mu.Lock()
	s.maplets[table] = m
	s.mu.Unlock()
	return m, nil
}

func (m *multiMaplet[K, V]) encode(e serial.Element) ([]byte, error) {
	return serial.Marshal(m.s.reg, e)
}

func (m *multiMaplet[K, V]) ContainsKey(key K) (bool, error) {
	k, err := m.encode(key)
	if err != nil {
		return false, err
	}
	var found bool
	err = m.s.read(func(q queryer) error {
		var one int
		err := q.QueryRow("SELECT 1 FROM "+m.table+" WHERE k = ? LIMIT 1", k).Scan(&one)
		if err == nil {
			found = true
			return nil
		}
		if isNoRows(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", m.table, err)
	}
	return found, nil
}

func (m *multiMaplet[K, V]) Get(key K) ([]V, error) {
	k, err := m.encode(key)
	if err != nil {
		return nil, err
	}
	var blobs [][]byte
	err = m.s.read(func(q queryer) error {
		rows, err := q.Query("SELECT v FROM "+m.table+" WHERE k = ? ORDER BY seq", k)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var b []byte
			if err := rows.Scan(&b); err != nil {
				return err
			}
			blobs = append(blobs, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", m.table, err)
	}

	values := make([]V, 0, len(blobs))
	for _, b := range blobs {
		v, err := serial.UnmarshalAs[V](m.s.reg, b)
		if err != nil {
			return nil, fmt.Errorf("failed to decode value in %s: %w", m.table, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func (m *multiMaplet[K, V]) Put(key K, values []V) error {
	k, vs, err := m.encodeAll(key, values)
	if err != nil {
		return err
	}
	return m.s.write(func(q queryer) error {
		if _, err := q.Exec("DELETE FROM "+m.table+" WHERE k = ?", k); err != nil {
			return fmt.Errorf("failed to replace key in %s: %w", m.table, err)
		}
		return m.insert(q, k, vs)
	})
}

func (m *multiMaplet[K, V]) AppendValue(key K, value V) error {
	return m.AppendValues(key, []V{value})
}

func (m *multiMaplet[K, V]) AppendValues(key K, values []V) error {
	if len(values) == 0 {
		return nil
	}
	k, vs, err := m.encodeAll(key, values)
	if err != nil {
		return err
	}
	return m.s.write(func(q queryer) error {
		return m.insert(q, k, vs)
	})
}

func (m *multiMaplet[K, V]) insert(q queryer, k []byte, vs [][]byte) error {
	for _, v := range vs {
		if _, err := q.Exec("INSERT OR IGNORE INTO "+m.table+" (k, v) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", m.table, err)
		}
	}
	return nil
}

func (m *multiMaplet[K, V]) RemoveValue(key K, value V) error {
	return m.RemoveValues(key, []V{value})
}

func (m *multiMaplet[K, V]) RemoveValues(key K, values []V) error {
	k, vs, err := m.encodeAll(key, values)
	if err != nil {
		return err
	}
	return m.s.write(func(q queryer) error {
		for _, v := range vs {
			if _, err := q.Exec("DELETE FROM "+m.table+" WHERE k = ? AND v = ?", k, v); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", m.table, err)
			}
		}
		return nil
	})
}

func (m *multiMaplet[K, V]) Remove(key K) error {
	k, err := m.encode(key)
	if err != nil {
		return err
	}
	return m.s.write(func(q queryer) error {
		if _, err := q.Exec("DELETE FROM "+m.table+" WHERE k = ?", k); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", m.table, err)
		}
		return nil
	})
}

func (m *multiMaplet[K, V]) Keys() ([]K, error) {
	var blobs [][]byte
	err := m.s.read(func(q queryer) error {
		rows, err := q.Query("SELECT k FROM " + m.table + " GROUP BY k ORDER BY MIN(seq)")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var b []byte
			if err := rows.Scan(&b); err != nil {
				return err
			}
			blobs = append(blobs, b)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys of %s: %w", m.table, err)
	}

	keys := make([]K, 0, len(blobs))
	for _, b := range blobs {
		k, err := serial.UnmarshalAs[K](m.s.reg, b)
		if err != nil {
			return nil, fmt.Errorf("failed to decode key in %s: %w", m.table, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *multiMaplet[K, V]) Flush() error {
	return m.s.Flush()
}

// Close is a no-op; the owning Storage closes the database.
func (m *multiMaplet[K, V]) Close() error {
	return nil
}

func (m *multiMaplet[K, V]) encodeAll(key K, values []V) ([]byte, [][]byte, error) {
	k, err := m.encode(key)
	if err != nil {
		return nil, nil, err
	}
	vs := make([][]byte, 0, len(values))
	for _, v := range values {
		b, err := m.encode(v)
		if err != nil {
			return nil, nil, err
		}
		vs = append(vs, b)
	}
	return k, vs, nil
}
