package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"okrdraft/internal/mutation"
	"okrdraft/internal/okr"
)

// DefaultLeaseTTL bounds how long an abandoned lease blocks other mutations.
const DefaultLeaseTTL = 2 * time.Minute

// ErrLeaseLost is returned by Commit when the session was replaced or the
// lease expired and was taken over.
var ErrLeaseLost = errors.New("goal session lease lost")

// Lease is a mutation.Lease over the active goal session row. It only
// acquires while the row still has the ID and version it was created from.
type Lease struct {
	TTL time.Duration

	store     *Store
	sessionID string
	version   int64
	token     string
}

var _ mutation.Lease = (*Lease)(nil)

// Lease returns a lease for sess as it was read from the store.
func (s *Store) Lease(sess *Session) *Lease {
	return &Lease{
		TTL:       DefaultLeaseTTL,
		store:     s,
		sessionID: sess.ID,
		version:   sess.Version,
	}
}

// Acquire marks the session as having a pending action. It fails with an
// error wrapping mutation.ErrBusy while another unexpired lease is held.
func (l *Lease) Acquire(action mutation.Action) error {
	if l.token != "" {
		return fmt.Errorf("%w: lease already held", mutation.ErrBusy)
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	token := uuid.NewString()
	now := l.store.now()
	res, err := l.store.db.Exec(`
		UPDATE goal_sessions
		SET pending = ?, pending_action = ?, pending_until = ?
		WHERE slot = 1 AND id = ? AND version = ? AND (pending = '' OR pending_until < ?)
	`, token, string(action), now.Add(ttl).UnixMilli(), l.sessionID, l.version, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("acquire goal lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire goal lease: %w", err)
	}
	if n == 0 {
		return l.store.conflict(l.sessionID, l.version)
	}
	l.token = token
	return nil
}

// Commit writes goals and selected and releases the lease in one statement.
func (l *Lease) Commit(goals okr.GoalSet, selected int) error {
	if l.token == "" {
		return ErrLeaseLost
	}
	goalsJSON, err := json.Marshal(goals)
	if err != nil {
		return fmt.Errorf("marshal goals: %w", err)
	}
	res, err := l.store.db.Exec(`
		UPDATE goal_sessions
		SET goals_json = ?, selected = ?, version = version + 1,
			pending = '', pending_action = '', pending_until = 0, updated_at = ?
		WHERE slot = 1 AND id = ? AND pending = ?
	`, string(goalsJSON), selected, l.store.now().UTC().Format(time.RFC3339), l.sessionID, l.token)
	if err != nil {
		return fmt.Errorf("commit goals: %w", err)
	}
	l.token = ""
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit goals: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	l.version++
	return nil
}

// Release drops the lease without touching the goals. Releasing a lease that
// was lost or never taken is a no-op.
func (l *Lease) Release() error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	_, err := l.store.db.Exec(`
		UPDATE goal_sessions
		SET pending = '', pending_action = '', pending_until = 0
		WHERE slot = 1 AND pending = ?
	`, token)
	if err != nil {
		return fmt.Errorf("release goal lease: %w", err)
	}
	return nil
}

// conflict explains why a conditional update on the session matched no row.
// An empty id matches any session.
func (s *Store) conflict(id string, version int64) error {
	var (
		gotID, action string
		gotVersion    int64
		until         int64
	)
	err := s.db.QueryRow(`
		SELECT id, version, pending_action, pending_until FROM goal_sessions WHERE slot = 1
	`).Scan(&gotID, &gotVersion, &action, &until)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoSession
	}
	if err != nil {
		return fmt.Errorf("read goal session: %w", err)
	}
	if (id != "" && gotID != id) || gotVersion != version {
		return ErrStaleSession
	}
	if action != "" && until >= s.now().UnixMilli() {
		return fmt.Errorf("%w (%s pending)", mutation.ErrBusy, action)
	}
	return ErrStaleSession
}
