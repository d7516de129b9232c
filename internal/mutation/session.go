// Package mutation applies confirmed save and edit actions to a goal set.
package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"okrdraft/internal/api"
	"okrdraft/internal/notify"
	"okrdraft/internal/okr"
)

var (
	ErrBusy            = errors.New("another goal action is in progress")
	ErrNotConfirmed    = errors.New("action not confirmed")
	ErrNoSelection     = errors.New("no goal selected")
	ErrIndexOutOfRange = errors.New("goal index out of range")
)

// MessageConnectionError is shown when the service gives no error text.
const MessageConnectionError = "An error occurred while connecting to the server"

// Action names the mutation a Confirmer is asked about.
type Action string

const (
	ActionSave Action = "save"
	ActionEdit Action = "edit"
)

// Backend is the remote side of save and edit.
type Backend interface {
	SaveGoal(ctx context.Context, goal okr.GeneratedGoal) (json.RawMessage, error)
	EditGoal(ctx context.Context, goal okr.GeneratedGoal, comment string) (okr.GeneratedGoal, error)
}

// Confirmer asks the user to approve a mutation before it is sent.
type Confirmer interface {
	Confirm(action Action, goal okr.GeneratedGoal) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(action Action, goal okr.GeneratedGoal) bool

func (f ConfirmFunc) Confirm(action Action, goal okr.GeneratedGoal) bool { return f(action, goal) }

// AlwaysConfirm approves every action.
var AlwaysConfirm = ConfirmFunc(func(Action, okr.GeneratedGoal) bool { return true })

// Lease extends the single-flight gate to every holder of the same goal set,
// such as other processes sharing the state database. Acquire returns an
// error wrapping ErrBusy while the lease is held elsewhere. Commit stores the
// mutated goal set and gives the lease up; Release gives it up unchanged.
type Lease interface {
	Acquire(action Action) error
	Commit(goals okr.GoalSet, selected int) error
	Release() error
}

// Session owns the displayed goal set for one successful submission.
// At most one Save or Edit runs at a time, and when Lease is set that holds
// across every Session sharing it.
type Session struct {
	backend Backend
	confirm Confirmer
	logger  *slog.Logger
	gate    *semaphore.Weighted
	Notice  *notify.Notice
	Lease   Lease

	mu       sync.Mutex
	goals    okr.GoalSet
	selected int
	loading  bool
	lastErr  string
}

// NewSession returns a Session over a copy of goals with nothing selected.
func NewSession(goals okr.GoalSet, backend Backend, confirm Confirmer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if confirm == nil {
		confirm = ConfirmFunc(func(Action, okr.GeneratedGoal) bool { return false })
	}
	return &Session{
		backend:  backend,
		confirm:  confirm,
		logger:   logger,
		gate:     semaphore.NewWeighted(1),
		Notice:   &notify.Notice{},
		goals:    goals.Clone(),
		selected: -1,
	}
}

// Goals returns a copy of the current goal set.
func (s *Session) Goals() okr.GoalSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goals.Clone()
}

// Select marks the goal at index as selected.
func (s *Session) Select(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.goals) {
		return fmt.Errorf("select goal %d: %w", index, ErrIndexOutOfRange)
	}
	s.selected = index
	return nil
}

// Selected returns the selected index, or -1.
func (s *Session) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Loading reports whether a Save or Edit is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Error returns the message of the last failed action.
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Save persists the selected goal. After the service acknowledges it, the goal
// set collapses to that goal. The gate is taken before the user is asked, so
// a busy session never prompts.
func (s *Session) Save(ctx context.Context) error {
	if err := s.acquire(ActionSave); err != nil {
		return err
	}

	s.mu.Lock()
	if s.selected < 0 || s.selected >= len(s.goals) {
		s.mu.Unlock()
		s.release()
		return ErrNoSelection
	}
	goal := s.goals[s.selected]
	s.mu.Unlock()

	if !s.confirm.Confirm(ActionSave, goal) {
		s.release()
		return ErrNotConfirmed
	}
	s.setLoading()

	_, err := s.backend.SaveGoal(ctx, goal)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = errorMessage(err)
		s.mu.Unlock()
		s.release()
		s.logger.Warn("save goal failed", "error", err)
		return fmt.Errorf("save goal: %w", err)
	}
	s.goals = okr.GoalSet{goal}
	s.selected = 0
	s.mu.Unlock()

	if err := s.commit(okr.GoalSet{goal}, 0); err != nil {
		return fmt.Errorf("goal saved but not stored locally: %w", err)
	}
	s.Notice.Show(notify.MessageGoalSaved)
	s.logger.Info("goal saved", "title", goal.Title)
	return nil
}

// Edit sends the goal at index with comment for revision and merges the reply
// into that position only.
func (s *Session) Edit(ctx context.Context, index int, comment string) error {
	if err := s.acquire(ActionEdit); err != nil {
		return err
	}

	s.mu.Lock()
	if index < 0 || index >= len(s.goals) {
		s.mu.Unlock()
		s.release()
		return fmt.Errorf("edit goal %d: %w", index, ErrIndexOutOfRange)
	}
	goal := s.goals[index]
	s.mu.Unlock()

	if !s.confirm.Confirm(ActionEdit, goal) {
		s.release()
		return ErrNotConfirmed
	}
	s.setLoading()

	revised, err := s.backend.EditGoal(ctx, goal, comment)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.lastErr = errorMessage(err)
		s.mu.Unlock()
		s.release()
		s.logger.Warn("edit goal failed", "index", index, "error", err)
		return fmt.Errorf("edit goal: %w", err)
	}
	s.goals[index] = goal.Merge(revised)
	goals, selected := s.goals.Clone(), s.selected
	s.mu.Unlock()

	if err := s.commit(goals, selected); err != nil {
		return fmt.Errorf("goal edited but not stored locally: %w", err)
	}
	s.Notice.Show(notify.MessageGoalEdited)
	s.logger.Info("goal edited", "index", index)
	return nil
}

// acquire takes the in-process gate and then the lease, if any.
func (s *Session) acquire(action Action) error {
	if !s.gate.TryAcquire(1) {
		return ErrBusy
	}
	if s.Lease != nil {
		if err := s.Lease.Acquire(action); err != nil {
			s.gate.Release(1)
			return err
		}
	}
	return nil
}

func (s *Session) release() {
	if s.Lease != nil {
		if err := s.Lease.Release(); err != nil {
			s.logger.Warn("release goal lease failed", "error", err)
		}
	}
	s.gate.Release(1)
}

func (s *Session) commit(goals okr.GoalSet, selected int) error {
	defer s.gate.Release(1)
	if s.Lease == nil {
		return nil
	}
	return s.Lease.Commit(goals, selected)
}

func (s *Session) setLoading() {
	s.mu.Lock()
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
}

func errorMessage(err error) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.ErrorText != "" {
		return statusErr.ErrorText
	}
	return MessageConnectionError
}
