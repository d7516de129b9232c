package submission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"okrdraft/internal/mutation"
	"okrdraft/internal/okr"
	"okrdraft/internal/retry"
)

// State is a Machine state.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var (
	// ErrSubmitInFlight is returned when Submit is called while a submission is pending.
	ErrSubmitInFlight = errors.New("a submission is already in progress")
	ErrNoGoals        = errors.New("no goals from a successful submission")
)

// Submitter performs one classified submission attempt.
type Submitter interface {
	Submit(ctx context.Context, req okr.Request) Outcome
}

// Snapshot is a copy of the Machine's observable state.
type Snapshot struct {
	State        State
	SubmissionID string
	Request      okr.Request
	Goals        okr.GoalSet
	IsFallback   bool
	Error        string
	ErrorKind    ErrorKind
	Attempts     int
	RetryCount   int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Machine sequences form submissions: Idle -> Submitting -> Succeeded|Failed.
// It may be resubmitted from any state except Submitting.
type Machine struct {
	submitter Submitter
	policy    retry.Policy
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

// NewMachine returns an idle Machine retrying submitter under policy.
func NewMachine(submitter Submitter, policy retry.Policy, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Machine{
		submitter: submitter,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
		snap:      Snapshot{State: StateIdle},
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snap
	s.Goals = s.Goals.Clone()
	return s
}

// Dismiss returns a failed machine to Idle, keeping the request for editing.
func (m *Machine) Dismiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.State == StateFailed {
		m.snap.State = StateIdle
		m.snap.Error = ""
		m.snap.ErrorKind = ""
	}
}

// Submit runs req through the retry policy. The returned Outcome is the final
// one; ErrSubmitInFlight is the only error.
func (m *Machine) Submit(ctx context.Context, req okr.Request) (Outcome, error) {
	m.mu.Lock()
	if m.snap.State == StateSubmitting {
		m.mu.Unlock()
		return Outcome{}, ErrSubmitInFlight
	}
	id := uuid.NewString()
	m.snap = Snapshot{
		State:        StateSubmitting,
		SubmissionID: id,
		Request:      req,
		RetryCount:   m.snap.RetryCount,
		StartedAt:    m.now(),
	}
	m.mu.Unlock()

	m.logger.Info("submission started", "submission_id", id, "department", req.Department)

	outcome, res, err := retry.Do(ctx, m.policy, func(ctx context.Context) (Outcome, error) {
		o := m.submitter.Submit(ctx, req)
		if o.Failure != nil && o.Failure.Retryable() {
			return o, o.Failure
		}
		return o, nil
	})
	if err != nil {
		var f *Failure
		switch {
		case errors.As(err, &f):
			outcome = Outcome{Failure: f}
		case errors.Is(err, context.Canceled):
			outcome = Outcome{Failure: &Failure{Kind: KindCanceled, Message: MessageCanceled, Err: err}}
		case errors.Is(err, context.DeadlineExceeded):
			outcome = Outcome{Failure: &Failure{Kind: KindTimeout, Message: MessageTimeout, Err: err}}
		default:
			outcome = Outcome{Failure: &Failure{Kind: KindUnexpected, Message: MessageUnexpected, Err: err}}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Attempts = res.Attempts
	m.snap.FinishedAt = m.now()
	if outcome.Failure != nil {
		m.snap.State = StateFailed
		m.snap.Error = outcome.Failure.Message
		m.snap.ErrorKind = outcome.Failure.Kind
		m.snap.RetryCount = res.Attempts - 1
		m.logger.Info("submission failed", "submission_id", id, "kind", outcome.Failure.Kind, "attempts", res.Attempts)
		return outcome, nil
	}
	m.snap.State = StateSucceeded
	m.snap.Goals = outcome.Goals.Clone()
	m.snap.IsFallback = outcome.IsFallback
	m.snap.RetryCount = 0
	m.logger.Info("submission succeeded", "submission_id", id, "goals", len(outcome.Goals), "fallback", outcome.IsFallback)
	return outcome, nil
}

// NewSession returns a mutation Session over the goals of the last successful
// submission.
func (m *Machine) NewSession(backend mutation.Backend, confirm mutation.Confirmer) (*mutation.Session, error) {
	snap := m.Snapshot()
	if snap.State != StateSucceeded || len(snap.Goals) == 0 {
		return nil, ErrNoGoals
	}
	return mutation.NewSession(snap.Goals, backend, confirm, m.logger), nil
}
