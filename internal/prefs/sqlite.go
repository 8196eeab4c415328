package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Schema contains the DDL for the preference tables.
const Schema = `
-- One row per preference layer ('user' or 'default').
CREATE TABLE IF NOT EXISTS prefs (
    name        TEXT NOT NULL,
    layer       TEXT NOT NULL CHECK (layer IN ('user', 'default')),
    kind        INTEGER NOT NULL,
    value       TEXT NOT NULL,
    updated_at  INTEGER NOT NULL DEFAULT (unixepoch()),
    PRIMARY KEY (name, layer)
);

-- Administrative locks. A locked preference reads from its default layer.
CREATE TABLE IF NOT EXISTS pref_locks (
    name        TEXT PRIMARY KEY,
    locked_at   INTEGER NOT NULL DEFAULT (unixepoch())
);
`

const (
	layerUser    = "user"
	layerDefault = "default"
)

// SQLiteStore is a Store persisted in an SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	logger    *slog.Logger
	mu        sync.Mutex
	observers *observerSet
}

// OpenSQLite opens (or creates) the preference database at path. Use
// ":memory:" for a throwaway database.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("prefs: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("prefs: open: %w", err)
	}
	// A single connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("prefs: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("prefs: schema: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		logger:    logger,
		observers: newObserverSet(),
	}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

func loadEntry(q queryer, name string) (*entry, error) {
	e := &entry{}

	rows, err := q.Query(`SELECT layer, kind, value FROM prefs WHERE name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var layer, raw string
		var kind int
		if err := rows.Scan(&layer, &kind, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		v := decodeValue(PrefType(kind), raw)
		if layer == layerDefault {
			e.def = v
		} else {
			e.user = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	var one int
	err = q.QueryRow(`SELECT 1 FROM pref_locks WHERE name = ?`, name).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load lock %s: %w", name, err)
	default:
		e.locked = true
	}
	return e, nil
}

func (s *SQLiteStore) effective(name string) *value {
	e, err := loadEntry(s.db, name)
	if err != nil {
		s.logger.Error("Failed to read preference", "pref", name, "error", err)
		return nil
	}
	return e.effective()
}

func (s *SQLiteStore) PrefType(name string) PrefType {
	if v := s.effective(name); v != nil {
		return v.kind
	}
	return PrefInvalid
}

func (s *SQLiteStore) GetString(name, fallback string) string {
	v := s.effective(name)
	if v == nil || v.kind != PrefString {
		return fallback
	}
	return v.str
}

func (s *SQLiteStore) GetBool(name string, fallback bool) bool {
	v := s.effective(name)
	if v == nil || v.kind != PrefBool {
		return fallback
	}
	return v.b
}

func (s *SQLiteStore) SetString(name, v string) error {
	return s.setUser(name, stringValue(v))
}

func (s *SQLiteStore) SetBool(name string, v bool) error {
	return s.setUser(name, boolValue(v))
}

func (s *SQLiteStore) setUser(name string, v *value) error {
	return s.mutate(name, func(tx *sql.Tx, e *entry) error {
		if e.locked {
			return &LockedError{Name: name}
		}
		e.user = v
		return putLayer(tx, name, layerUser, v)
	})
}

func (s *SQLiteStore) SetDefaultString(name, v string) error {
	return s.mutate(name, func(tx *sql.Tx, e *entry) error {
		e.def = stringValue(v)
		return putLayer(tx, name, layerDefault, e.def)
	})
}

func (s *SQLiteStore) ClearUserPref(name string) error {
	return s.mutate(name, func(tx *sql.Tx, e *entry) error {
		e.user = nil
		_, err := tx.Exec(`DELETE FROM prefs WHERE name = ? AND layer = ?`, name, layerUser)
		return err
	})
}

func (s *SQLiteStore) IsLocked(name string) bool {
	e, err := loadEntry(s.db, name)
	if err != nil {
		s.logger.Error("Failed to read preference lock", "pref", name, "error", err)
		return false
	}
	return e.locked
}

func (s *SQLiteStore) Lock(name string) error {
	return s.mutate(name, func(tx *sql.Tx, e *entry) error {
		e.locked = true
		_, err := tx.Exec(`INSERT OR IGNORE INTO pref_locks (name) VALUES (?)`, name)
		return err
	})
}

func (s *SQLiteStore) Unlock(name string) error {
	return s.mutate(name, func(tx *sql.Tx, e *entry) error {
		e.locked = false
		_, err := tx.Exec(`DELETE FROM pref_locks WHERE name = ?`, name)
		return err
	})
}

func (s *SQLiteStore) Observe(name string, fn Observer) func() {
	return s.observers.add(name, fn)
}

func putLayer(tx *sql.Tx, name, layer string, v *value) error {
	_, err := tx.Exec(`
		INSERT INTO prefs (name, layer, kind, value, updated_at)
		VALUES (?, ?, ?, ?, unixepoch())
		ON CONFLICT (name, layer) DO UPDATE SET
			kind = excluded.kind,
			value = excluded.value,
			updated_at = excluded.updated_at`,
		name, layer, int(v.kind), v.encode())
	return err
}

// mutate runs fn inside a transaction and notifies observers after commit if
// the effective value changed.
func (s *SQLiteStore) mutate(name string, fn func(tx *sql.Tx, e *entry) error) error {
	s.mu.Lock()
	changed, err := s.mutateLocked(name, fn)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if changed {
		s.observers.notify(name)
	}
	return nil
}

func (s *SQLiteStore) mutateLocked(name string, fn func(tx *sql.Tx, e *entry) error) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("prefs: begin: %w", err)
	}
	defer tx.Rollback()

	e, err := loadEntry(tx, name)
	if err != nil {
		return false, fmt.Errorf("prefs: %w", err)
	}
	before := e.effective()

	if err := fn(tx, e); err != nil {
		if IsLockedError(err) {
			return false, err
		}
		return false, fmt.Errorf("prefs: write %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("prefs: commit: %w", err)
	}
	return !before.equal(e.effective()), nil
}
