package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"depgraph/internal/domain"
)

// States returns the digest recorded for every integrated source.
func (s *Storage) States() (map[domain.NodeSource]string, error) {
	states := make(map[domain.NodeSource]string)
	err := s.read(func(q queryer) error {
		rows, err := q.Query("SELECT path, digest FROM source_states")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var path, digest string
			if err := rows.Scan(&path, &digest); err != nil {
				return err
			}
			states[domain.NewNodeSource(path)] = digest
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load source states: %w", err)
	}
	return states, nil
}

// SetState records the digest of src
func (s *Storage) SetState(src domain.NodeSource, digest string) error {
	return s.write(func(q queryer) error {
		_, err := q.Exec(`
			INSERT OR REPLACE INTO source_states (path, digest)
			VALUES (?, ?)
		`, src.Path(), digest)
		return err
	})
}

// RemoveState forgets src
func (s *Storage) RemoveState(src domain.NodeSource) error {
	return s.write(func(q queryer) error {
		_, err := q.Exec(`DELETE FROM source_states WHERE path = ?`, src.Path())
		return err
	})
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
