package sqlite

import (
	"database/sql"
	"fmt"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// readerLocked returns the pending transaction if one is open so reads see
// unflushed writes. Caller holds s.mu.
func (s *Storage) readerLocked() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// writerLocked opens the pending transaction on first use. Caller holds s.mu.
func (s *Storage) writerLocked() (queryer, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

func (s *Storage) read(fn func(q queryer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.readerLocked())
}

func (s *Storage) write(fn func(q queryer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.writerLocked()
	if err != nil {
		return err
	}
	return fn(q)
}

func (s *Storage) ensureTable(table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] {
		return nil
	}
	_, err := s.readerLocked().Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			k BLOB NOT NULL,
			v BLOB NOT NULL,
			UNIQUE (k, v)
		);
		CREATE INDEX IF NOT EXISTS %[1]s_k ON %[1]s(k);
	`, table))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	s.tables[table] = true
	return nil
}
