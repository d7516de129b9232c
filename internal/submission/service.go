// Package submission turns an OKR request into goal suggestions: Service
// classifies a single generate call and Machine sequences submissions with
// retry.
package submission

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"okrdraft/internal/api"
	"okrdraft/internal/fallback"
	"okrdraft/internal/okr"
)

// DefaultTimeout bounds a single generate call.
const DefaultTimeout = 30 * time.Second

// ErrorKind classifies a failed submission.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindUnreachable ErrorKind = "unreachable"
	KindRateLimited ErrorKind = "rate_limited"
	KindServerError ErrorKind = "server_error"
	KindCanceled    ErrorKind = "canceled"
	KindUnexpected  ErrorKind = "unexpected"
)

const (
	MessageTimeout     = "Request timed out. The server might be busy, please try again later."
	MessageUnreachable = "The goal service is unreachable. Please check your connection and try again."
	MessageRateLimited = "Too many requests. Please try again later."
	MessageServerError = "An error occurred while connecting to the server"
	MessageMalformed   = "The server returned an unexpected response. Please try again."
	MessageCanceled    = "Request canceled."
	MessageUnexpected  = "An unexpected error occurred. Please try again."
)

// Failure is a classified submission failure. It is also an error so Machine
// can hand it to the retry layer.
type Failure struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether resubmitting the same request may help.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindTimeout:
		return true
	case KindServerError:
		return f.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// Outcome is the result of one submission: goals on success, Failure otherwise.
type Outcome struct {
	Goals      okr.GoalSet
	IsFallback bool
	Failure    *Failure
}

// Succeeded reports whether the outcome carries goals.
func (o Outcome) Succeeded() bool { return o.Failure == nil }

// Generator is the remote goal generator.
type Generator interface {
	GenerateGoals(ctx context.Context, req okr.Request) (okr.GoalSet, error)
}

// Service performs and classifies a single generate call. It never retries.
type Service struct {
	Backend        Generator
	Timeout        time.Duration
	EnableFallback bool
	Fallback       func(okr.Request) okr.GoalSet
	Logger         *slog.Logger
}

// NewService returns a Service with the default timeout and fallback enabled.
func NewService(backend Generator) *Service {
	return &Service{
		Backend:        backend,
		Timeout:        DefaultTimeout,
		EnableFallback: true,
		Fallback:       fallback.Generate,
	}
}

// Submit sends req and converts every error into an Outcome.
func (s *Service) Submit(ctx context.Context, req okr.Request) Outcome {
	callCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	goals, err := s.Backend.GenerateGoals(callCtx, req)
	if err == nil {
		return Outcome{Goals: goals}
	}
	return s.classify(ctx, req, err)
}

func (s *Service) classify(parent context.Context, req okr.Request, err error) Outcome {
	var statusErr *api.StatusError
	var transportErr *api.TransportError
	hasStatus := errors.As(err, &statusErr)
	hasTransport := errors.As(err, &transportErr)

	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return failed(KindCanceled, MessageCanceled, 0, err)
	case hasTransport && transportErr.Timeout(),
		errors.Is(err, context.DeadlineExceeded),
		hasStatus && statusErr.StatusCode == http.StatusRequestTimeout:
		return failed(KindTimeout, MessageTimeout, statusCode(statusErr), err)
	case hasTransport:
		if !s.EnableFallback {
			return failed(KindUnreachable, MessageUnreachable, 0, err)
		}
		gen := s.Fallback
		if gen == nil {
			gen = fallback.Generate
		}
		s.logger().Warn("goal service unreachable, using fallback goals", "error", err)
		return Outcome{Goals: gen(req), IsFallback: true}
	case hasStatus && statusErr.StatusCode == http.StatusTooManyRequests:
		return failed(KindRateLimited, MessageRateLimited, statusErr.StatusCode, err)
	case hasStatus:
		msg := statusErr.ErrorText
		if msg == "" {
			msg = MessageServerError
		}
		return failed(KindServerError, msg, statusErr.StatusCode, err)
	case errors.Is(err, api.ErrMalformedResponse):
		return failed(KindServerError, MessageMalformed, 0, err)
	default:
		return failed(KindUnexpected, MessageUnexpected, 0, err)
	}
}

func failed(kind ErrorKind, msg string, status int, err error) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: msg, StatusCode: status, Err: err}}
}

func statusCode(err *api.StatusError) int {
	if err == nil {
		return 0
	}
	return err.StatusCode
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}
