package sqlite

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"depgraph/internal/domain"
	"depgraph/internal/ports"
	"depgraph/internal/serial"

	_ "github.com/mattn/go-sqlite3"
)

const schemaVersion = "1"

const (
	nodeSourcesTable = "node_sources"
	sourceNodesTable = "source_nodes"
	indexTablePrefix = "idx_"
)

// Storage implements ports.PersistentStorage using SQLite. Each maplet is a
// table of (key, value) blobs. Writes accumulate in one transaction that is
// committed by Flush and discarded by Close.
type Storage struct {
	db     *sql.DB
	dbPath string
	reg    *serial.Registry

	mu      sync.Mutex
	tx      *sql.Tx
	tables  map[string]bool
	stale   bool
	maplets map[string]any
}

// Ensure Storage implements PersistentStorage
var _ ports.PersistentStorage = (*Storage)(nil)

// Open opens or creates the database at dbPath. reg must be the registry the
// data was written with; a different registry layout marks the store stale.
func Open(dbPath string, reg *serial.Registry) (*Storage, error) {
	if len(dbPath) > 0 && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the pending transaction visible to every read.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA synchronous = NORMAL;
		PRAGMA cache_size = -64000;
		PRAGMA temp_store = MEMORY;
		PRAGMA busy_timeout = 5000;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS source_states (
			path TEXT PRIMARY KEY,
			digest TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	s := &Storage{
		db:      db,
		dbPath:  dbPath,
		reg:     reg,
		tables:  make(map[string]bool),
		maplets: make(map[string]any),
	}
	s.stale = s.checkStale()
	if s.stale {
		if err := s.dropMaplets(); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := s.updateMeta(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to update metadata: %w", err)
	}
	return s, nil
}

// DefaultPath returns the database location for a project root.
func DefaultPath(root string) string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "depgraph", hashPath(root)+".db")
}

// hashPath returns a short hash of a project path
func hashPath(p string) string {
	h := sha256.Sum256([]byte(p))
	return hex.EncodeToString(h[:8])
}

// NeedsFullRebuild reports whether the stored graph was written with a
// different schema or registry layout and has been discarded.
func (s *Storage) NeedsFullRebuild() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

func (s *Storage) checkStale() bool {
	var version, layout string
	s.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	s.db.QueryRow("SELECT value FROM meta WHERE key = 'registry_layout'").Scan(&layout)
	return version != schemaVersion || layout != s.reg.Fingerprint()
}

func (s *Storage) updateMeta() error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?);
		INSERT OR REPLACE INTO meta (key, value) VALUES ('registry_layout', ?);
	`, schemaVersion, s.reg.Fingerprint())
	return err
}

// dropMaplets removes every maplet table and all recorded source states.
func (s *Storage) dropMaplets() error {
	names, err := mapletTables(s.db)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + name); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", name, err)
		}
	}
	if _, err := s.db.Exec("DELETE FROM source_states"); err != nil {
		return fmt.Errorf("failed to clear source states: %w", err)
	}
	return nil
}

func mapletTables(q queryer) ([]string, error) {
	rows, err := q.Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND (name IN (?, ?) OR name LIKE 'idx\_%' ESCAPE '\')
	`, nodeSourcesTable, sourceNodesTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Path returns the database file location.
func (s *Storage) Path() string {
	return s.dbPath
}

func (s *Storage) NodeSources() (ports.MultiMaplet[domain.ReferenceID, domain.NodeSource], error) {
	return openMaplet[domain.ReferenceID, domain.NodeSource](s, nodeSourcesTable)
}

func (s *Storage) SourceNodes() (ports.MultiMaplet[domain.NodeSource, domain.Node], error) {
	return openMaplet[domain.NodeSource, domain.Node](s, sourceNodesTable)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

func (s *Storage) BackDependencies(indexName string) (ports.MultiMaplet[domain.ReferenceID, domain.ReferenceID], error) {
	table := indexTablePrefix + unsafeChars.ReplaceAllString(indexName, "_")
	return openMaplet[domain.ReferenceID, domain.ReferenceID](s, table)
}

// Clear deletes all maplet rows and source states inside the pending
// transaction. A cleared store no longer needs a full rebuild.
func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.writerLocked()
	if err != nil {
		return err
	}
	tables, err := mapletTables(q)
	if err != nil {
		return err
	}
	for _, table := range tables {
		if _, err := q.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if _, err := q.Exec("DELETE FROM source_states"); err != nil {
		return fmt.Errorf("failed to clear source states: %w", err)
	}
	s.stale = false
	return nil
}

// Flush commits pending writes.
func (s *Storage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Close discards unflushed writes and closes the database connection.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
