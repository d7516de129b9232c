// Package state persists the local session in SQLite: a key-value table for
// single-slot values such as the auth token, and the active goal session.
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"okrdraft/internal/okr"
)

var (
	// ErrNoSession is returned when no goal session has been stored yet.
	ErrNoSession = errors.New("no active goal session")
	// ErrStaleSession is returned when the stored session changed after it
	// was read.
	ErrStaleSession = errors.New("goal session changed since it was loaded")
)

const busyTimeout = 5 * time.Second

// Store manages client state in SQLite.
type Store struct {
	DBPath string
	db     *sql.DB
	now    func() time.Time
}

// Session is the persisted result of the last successful submission.
type Session struct {
	ID         string
	Request    okr.Request
	Goals      okr.GoalSet
	IsFallback bool
	Selected   int // -1 when nothing is selected
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Open opens or creates the state database.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve state db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o700); err != nil {
		return nil, fmt.Errorf("ensure state db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}

	// busy_timeout is per connection, so the pool is pinned to one.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	store := &Store{
		DBPath: absPath,
		db:     db,
		now:    time.Now,
	}

	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS client_kv (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS goal_sessions (
	slot INTEGER PRIMARY KEY CHECK (slot = 1),
	id TEXT NOT NULL,
	request_json TEXT NOT NULL,
	goals_json TEXT NOT NULL,
	is_fallback INTEGER NOT NULL,
	selected INTEGER NOT NULL,
	version INTEGER NOT NULL DEFAULT 0,
	pending TEXT NOT NULL DEFAULT '',
	pending_action TEXT NOT NULL DEFAULT '',
	pending_until INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("create state schema: %w", err)
	}
	// Databases created before leases existed lack these columns.
	columns := []struct{ name, decl string }{
		{"version", "INTEGER NOT NULL DEFAULT 0"},
		{"pending", "TEXT NOT NULL DEFAULT ''"},
		{"pending_action", "TEXT NOT NULL DEFAULT ''"},
		{"pending_until", "INTEGER NOT NULL DEFAULT 0"},
	}
	for _, col := range columns {
		if err := s.ensureColumn("goal_sessions", col.name, col.decl); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureColumn(table, column, decl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	found := false
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("inspect %s: %w", table, err)
		}
		if name == column {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	rows.Close()
	if found {
		return nil
	}
	if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("add %s.%s: %w", table, column, err)
	}
	return nil
}

// GetKV retrieves a value from the key-value store. A missing key yields "".
func (s *Store) GetKV(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM client_kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get kv: %w", err)
	}
	return value, nil
}

// SetKV sets a value in the key-value store.
func (s *Store) SetKV(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO client_kv (key, value)
		VALUES (?, ?)
	`, key, value)
	if err != nil {
		return fmt.Errorf("set kv: %w", err)
	}
	return nil
}

// DeleteKV removes a key. Removing a missing key is not an error.
func (s *Store) DeleteKV(key string) error {
	if _, err := s.db.Exec("DELETE FROM client_kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete kv: %w", err)
	}
	return nil
}

// ReplaceSession stores sess as the only active session, discarding any
// previous goal set and selection.
func (s *Store) ReplaceSession(sess Session) error {
	requestJSON, err := json.Marshal(sess.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	goalsJSON, err := json.Marshal(sess.Goals)
	if err != nil {
		return fmt.Errorf("marshal goals: %w", err)
	}
	now := s.now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO goal_sessions
			(slot, id, request_json, goals_json, is_fallback, selected, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, string(requestJSON), string(goalsJSON), boolToInt(sess.IsFallback), sess.Selected,
		sess.CreatedAt.UTC().Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

// UpdateGoals rewrites the goal set and selection of the active session if it
// is still at version. It fails with ErrStaleSession when another writer got
// there first and with mutation.ErrBusy while a save or edit holds the lease.
func (s *Store) UpdateGoals(version int64, goals okr.GoalSet, selected int) error {
	goalsJSON, err := json.Marshal(goals)
	if err != nil {
		return fmt.Errorf("marshal goals: %w", err)
	}
	now := s.now()
	res, err := s.db.Exec(`
		UPDATE goal_sessions
		SET goals_json = ?, selected = ?, version = version + 1,
			pending = '', pending_action = '', pending_until = 0, updated_at = ?
		WHERE slot = 1 AND version = ? AND (pending = '' OR pending_until < ?)
	`, string(goalsJSON), selected, now.UTC().Format(time.RFC3339), version, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("update goals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update goals: %w", err)
	}
	if n == 0 {
		return s.conflict("", version)
	}
	return nil
}

// ActiveSession returns the stored session or ErrNoSession.
func (s *Store) ActiveSession() (*Session, error) {
	var sess Session
	var requestJSON, goalsJSON, createdAt, updatedAt string
	var isFallback int

	err := s.db.QueryRow(`
		SELECT id, request_json, goals_json, is_fallback, selected, version, created_at, updated_at
		FROM goal_sessions
		WHERE slot = 1
	`).Scan(&sess.ID, &requestJSON, &goalsJSON, &isFallback, &sess.Selected, &sess.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if err := json.Unmarshal([]byte(requestJSON), &sess.Request); err != nil {
		return nil, fmt.Errorf("decode session request: %w", err)
	}
	if err := json.Unmarshal([]byte(goalsJSON), &sess.Goals); err != nil {
		return nil, fmt.Errorf("decode session goals: %w", err)
	}
	sess.IsFallback = isFallback != 0
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &sess, nil
}

// ClearSession removes the active session.
func (s *Store) ClearSession() error {
	if _, err := s.db.Exec("DELETE FROM goal_sessions"); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
