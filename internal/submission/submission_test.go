package submission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okrdraft/internal/api"
	"okrdraft/internal/mutation"
	"okrdraft/internal/okr"
	"okrdraft/internal/retry"
)

type generatorFunc func(ctx context.Context, req okr.Request) (okr.GoalSet, error)

func (f generatorFunc) GenerateGoals(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
	return f(ctx, req)
}

func sampleRequest() okr.Request {
	return okr.Request{
		Department:      "Engineering",
		JobTitle:        "Staff Engineer",
		GoalDescription: "Reduce incident count",
		KeyResult:       "Cut P1 incidents by half",
		ManagersGoal:    "Improve reliability",
		StartDate:       "2025-01-01",
		DueDate:         "2025-12-05",
	}
}

func refused(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
	return nil, &api.TransportError{Method: http.MethodPost, Path: api.PathGenerateGoals, Err: errors.New("connect: connection refused")}
}

func TestUnreachableBackendUsesFallback(t *testing.T) {
	svc := NewService(generatorFunc(refused))
	out := svc.Submit(context.Background(), sampleRequest())
	require.True(t, out.Succeeded())
	assert.True(t, out.IsFallback)
	assert.Len(t, out.Goals, 3)
}

func TestUnreachableWithoutFallbackFails(t *testing.T) {
	svc := NewService(generatorFunc(refused))
	svc.EnableFallback = false
	out := svc.Submit(context.Background(), sampleRequest())
	require.NotNil(t, out.Failure)
	assert.Equal(t, KindUnreachable, out.Failure.Kind)
	assert.Empty(t, out.Goals)
}

func TestTimeoutNeverFallsBack(t *testing.T) {
	svc := NewService(generatorFunc(func(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
		<-ctx.Done()
		return nil, &api.TransportError{Method: http.MethodPost, Path: api.PathGenerateGoals, Err: ctx.Err()}
	}))
	svc.Timeout = 10 * time.Millisecond
	out := svc.Submit(context.Background(), sampleRequest())
	require.NotNil(t, out.Failure)
	assert.Equal(t, KindTimeout, out.Failure.Kind)
	assert.Equal(t, MessageTimeout, out.Failure.Message)
	assert.False(t, out.IsFallback)
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		kind    ErrorKind
		message string
		retry   bool
	}{
		{"request timeout", &api.StatusError{StatusCode: http.StatusRequestTimeout}, KindTimeout, MessageTimeout, true},
		{"rate limited", &api.StatusError{StatusCode: http.StatusTooManyRequests}, KindRateLimited, MessageRateLimited, false},
		{"bad request", &api.StatusError{StatusCode: http.StatusBadRequest, ErrorText: "Missing required fields"}, KindServerError, "Missing required fields", false},
		{"server error", &api.StatusError{StatusCode: http.StatusBadGateway}, KindServerError, MessageServerError, true},
		{"malformed", api.ErrMalformedResponse, KindServerError, MessageMalformed, false},
		{"unexpected", errors.New("boom"), KindUnexpected, MessageUnexpected, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(generatorFunc(func(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
				return nil, tc.err
			}))
			out := svc.Submit(context.Background(), sampleRequest())
			require.NotNil(t, out.Failure)
			assert.Equal(t, tc.kind, out.Failure.Kind)
			assert.Equal(t, tc.message, out.Failure.Message)
			assert.Equal(t, tc.retry, out.Failure.Retryable())
		})
	}
}

func TestCanceledParentIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewService(generatorFunc(func(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
		return nil, &api.TransportError{Err: ctx.Err()}
	}))
	out := svc.Submit(ctx, sampleRequest())
	require.NotNil(t, out.Failure)
	assert.Equal(t, KindCanceled, out.Failure.Kind)
}

func instantPolicy(budget int) retry.Policy {
	return retry.Policy{
		Budget: budget,
		Delay:  time.Millisecond,
		Sleep:  func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
}

func TestMachineRetriesServerErrorsThenSucceeds(t *testing.T) {
	calls := 0
	svc := NewService(generatorFunc(func(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
		calls++
		if calls < 3 {
			return nil, &api.StatusError{StatusCode: http.StatusServiceUnavailable}
		}
		return okr.GoalSet{{Title: "A"}}, nil
	}))
	m := NewMachine(svc, instantPolicy(2), nil)

	out, err := m.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.True(t, out.Succeeded())
	assert.Equal(t, 3, calls)

	snap := m.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Equal(t, 3, snap.Attempts)
	assert.Equal(t, 0, snap.RetryCount)
	assert.NotEmpty(t, snap.SubmissionID)
}

func TestMachineDoesNotRetryRateLimit(t *testing.T) {
	calls := 0
	svc := NewService(generatorFunc(func(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
		calls++
		return nil, &api.StatusError{StatusCode: http.StatusTooManyRequests}
	}))
	m := NewMachine(svc, instantPolicy(2), nil)

	out, err := m.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, KindRateLimited, out.Failure.Kind)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateFailed, m.Snapshot().State)
}

func TestMachineExhaustsBudget(t *testing.T) {
	calls := 0
	svc := NewService(generatorFunc(func(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
		calls++
		return nil, &api.StatusError{StatusCode: http.StatusInternalServerError, ErrorText: "down"}
	}))
	m := NewMachine(svc, instantPolicy(2), nil)

	out, err := m.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, "down", out.Failure.Message)
	assert.Equal(t, 3, calls)

	snap := m.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, 2, snap.RetryCount)
	assert.Equal(t, "down", snap.Error)

	m.Dismiss()
	assert.Equal(t, StateIdle, m.Snapshot().State)
	assert.Equal(t, sampleRequest(), m.Snapshot().Request)
}

func TestMachineDeadlineDuringBackoffIsTimeout(t *testing.T) {
	calls := 0
	svc := NewService(generatorFunc(func(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
		calls++
		return nil, &api.StatusError{StatusCode: http.StatusServiceUnavailable}
	}))
	policy := retry.Policy{
		Budget: 2,
		Delay:  time.Millisecond,
		Sleep:  func(ctx context.Context, d time.Duration) error { return context.DeadlineExceeded },
	}
	m := NewMachine(svc, policy, nil)

	out, err := m.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, KindTimeout, out.Failure.Kind)
	assert.Equal(t, MessageTimeout, out.Failure.Message)
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateFailed, m.Snapshot().State)
	assert.Equal(t, KindTimeout, m.Snapshot().ErrorKind)
}

func TestTruncatedServerErrorIsNotFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "200")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"err`))
	}))
	defer srv.Close()

	out := NewService(api.NewClient(srv.URL, nil)).Submit(context.Background(), sampleRequest())
	require.NotNil(t, out.Failure)
	assert.False(t, out.IsFallback)
	assert.Empty(t, out.Goals)
	assert.Equal(t, KindServerError, out.Failure.Kind)
	assert.Equal(t, http.StatusInternalServerError, out.Failure.StatusCode)
}

func TestMachineRejectsConcurrentSubmit(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	svc := NewService(generatorFunc(func(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
		close(entered)
		<-release
		return okr.GoalSet{{Title: "A"}}, nil
	}))
	m := NewMachine(svc, instantPolicy(0), nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := m.Submit(context.Background(), sampleRequest())
		assert.NoError(t, err)
	}()
	<-entered
	assert.Equal(t, StateSubmitting, m.Snapshot().State)

	_, err := m.Submit(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(release)
	wg.Wait()
	assert.Equal(t, StateSucceeded, m.Snapshot().State)
}

func TestMachineFallbackIsSuccess(t *testing.T) {
	m := NewMachine(NewService(generatorFunc(refused)), instantPolicy(2), nil)
	out, err := m.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.True(t, out.IsFallback)
	snap := m.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.True(t, snap.IsFallback)
	assert.Len(t, snap.Goals, 3)
	assert.Equal(t, 1, snap.Attempts)
}

type saveRecorder struct {
	saved []okr.GeneratedGoal
}

func (r *saveRecorder) SaveGoal(ctx context.Context, goal okr.GeneratedGoal) (json.RawMessage, error) {
	r.saved = append(r.saved, goal)
	return json.RawMessage(`{}`), nil
}

func (r *saveRecorder) EditGoal(ctx context.Context, goal okr.GeneratedGoal, comment string) (okr.GeneratedGoal, error) {
	return okr.GeneratedGoal{}, nil
}

func TestSubmitSelectSave(t *testing.T) {
	svc := NewService(generatorFunc(func(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
		return okr.GoalSet{{Title: "A"}, {Title: "B"}}, nil
	}))
	m := NewMachine(svc, instantPolicy(2), nil)

	_, err := m.NewSession(&saveRecorder{}, mutation.AlwaysConfirm)
	assert.ErrorIs(t, err, ErrNoGoals)

	out, err := m.Submit(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, out.Goals, 2)
	assert.False(t, out.IsFallback)

	backend := &saveRecorder{}
	sess, err := m.NewSession(backend, mutation.AlwaysConfirm)
	require.NoError(t, err)
	require.NoError(t, sess.Select(1))
	require.NoError(t, sess.Save(context.Background()))

	goals := sess.Goals()
	require.Len(t, goals, 1)
	assert.Equal(t, "B", goals[0].Title)
	assert.Equal(t, 0, sess.Selected())
	require.Len(t, backend.saved, 1)
	assert.Equal(t, "B", backend.saved[0].Title)

	// The machine keeps its own copy.
	assert.Len(t, m.Snapshot().Goals, 2)
}
