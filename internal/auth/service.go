package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"okrdraft/internal/api"
)

// UserKey is the key-value slot holding the last logged-in profile.
const UserKey = "okr_auth_user"

const (
	MessageLoginFailed    = "Failed to authenticate"
	MessageRegisterFailed = "Failed to register user"
)

// ErrNotLoggedIn is returned by RequireLogin when no token is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// Error is a failed login or registration with a user-facing message.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Backend is the remote side of authentication.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (*api.LoginResponse, error)
	Register(ctx context.Context, reg api.Registration) (*api.RegisterResponse, error)
}

// SessionStore holds the goal work of the logged-in user.
type SessionStore interface {
	ClearSession() error
}

// Service runs the auth flows and keeps the token slot current. Goal work in
// Sessions belongs to the logged-in user and is discarded on logout or when a
// different account logs in.
type Service struct {
	Backend  Backend
	Tokens   *TokenStore
	KV       KV
	Sessions SessionStore
	Logger   *slog.Logger
}

// Login exchanges credentials for a token and stores it with the profile.
func (s *Service) Login(ctx context.Context, creds api.Credentials) (*api.User, error) {
	resp, err := s.Backend.Login(ctx, creds)
	if err != nil {
		s.logger().Warn("login failed", "email", creds.Email, "error", err)
		return nil, &Error{Message: authMessage(err, MessageLoginFailed), Err: err}
	}
	if resp.Token == "" {
		return nil, &Error{Message: MessageLoginFailed, Err: errors.New("response carried no token")}
	}
	previous, err := s.CurrentUser()
	if err != nil {
		return nil, err
	}
	if previous != nil && previous.Email != resp.User.Email {
		if err := s.clearSession(); err != nil {
			return nil, err
		}
	}
	if err := s.Tokens.Set(resp.Token); err != nil {
		return nil, err
	}
	if err := s.storeUser(resp.User); err != nil {
		return nil, err
	}
	s.logger().Info("logged in", "email", resp.User.Email, "token_present", true)
	return &resp.User, nil
}

// Register creates an account. It does not log the user in.
func (s *Service) Register(ctx context.Context, reg api.Registration) (*api.RegisterResponse, error) {
	resp, err := s.Backend.Register(ctx, reg)
	if err != nil {
		s.logger().Warn("registration failed", "email", reg.Email, "error", err)
		return nil, &Error{Message: authMessage(err, MessageRegisterFailed), Err: err}
	}
	return resp, nil
}

// Logout clears the token, the stored profile and the goal session.
func (s *Service) Logout() error {
	if err := s.Tokens.Clear(); err != nil {
		return err
	}
	if s.KV != nil {
		if err := s.KV.DeleteKV(UserKey); err != nil {
			return fmt.Errorf("clear user: %w", err)
		}
	}
	return s.clearSession()
}

// IsAuthenticated reports whether a token is present.
func (s *Service) IsAuthenticated() bool {
	return s.Tokens.Present()
}

// RequireLogin returns ErrNotLoggedIn unless a token is present.
func (s *Service) RequireLogin() error {
	if !s.IsAuthenticated() {
		return ErrNotLoggedIn
	}
	return nil
}

func (s *Service) clearSession() error {
	if s.Sessions == nil {
		return nil
	}
	if err := s.Sessions.ClearSession(); err != nil {
		return fmt.Errorf("discard goal session: %w", err)
	}
	return nil
}

// CurrentUser returns the stored profile, or nil when none is stored.
func (s *Service) CurrentUser() (*api.User, error) {
	if s.KV == nil {
		return nil, nil
	}
	raw, err := s.KV.GetKV(UserKey)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var user api.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

func (s *Service) storeUser(user api.User) error {
	if s.KV == nil {
		return nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := s.KV.SetKV(UserKey, string(data)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

func authMessage(err error, fallback string) string {
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.MessageText != "" {
		return statusErr.MessageText
	}
	return fallback
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}
