// Package api is the JSON client for the SMART goal service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAuthTimeout   = 10 * time.Second
	DefaultHealthTimeout = 5 * time.Second

	maxResponseBytes = 4 << 20
)

// Endpoint paths relative to the base URL.
const (
	PathHealth        = "/api/health"
	PathLogin         = "/api/auth/login"
	PathRegister      = "/api/auth/register"
	PathGenerateGoals = "/api/generate-smart-goals"
	PathSaveGoal      = "/api/save-user-goal"
	PathEditGoal      = "/api/edit-user-goal"
)

// ErrMalformedResponse wraps a successful response whose body could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// TokenSource supplies the bearer token for authenticated requests.
type TokenSource interface {
	Token() string
}

// StatusError is returned when the server responds with a non-2xx status.
type StatusError struct {
	StatusCode int
	// ErrorText and MessageText hold the body's "error" and "message" fields.
	ErrorText   string
	MessageText string
}

func (e *StatusError) Error() string {
	msg := e.ErrorText
	if msg == "" {
		msg = e.MessageText
	}
	if msg == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, msg)
}

// TransportError means no response was received.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(e.Err, &te) && te.Timeout()
}

// Client talks to the goal service over HTTP.
type Client struct {
	BaseURL       string
	HTTPClient    *http.Client
	Tokens        TokenSource
	AuthTimeout   time.Duration
	HealthTimeout time.Duration
	Logger        *slog.Logger
}

// NewClient returns a Client for baseURL with default timeouts.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTPClient:    &http.Client{},
		Tokens:        tokens,
		AuthTimeout:   DefaultAuthTimeout,
		HealthTimeout: DefaultHealthTimeout,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Tokens != nil {
		if token := c.Tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.logger().Debug("request failed", "method", method, "path", path, "error", err)
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger().Debug("request finished", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	// A status line arrived: body read failures are reported by status, never
	// as a TransportError.
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		c.logger().Debug("read response body failed", "method", method, "path", path, "status", resp.StatusCode, "error", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if readErr != nil {
			return statusErr
		}
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &payload) == nil {
			statusErr.ErrorText = payload.Error
			statusErr.MessageText = payload.Message
		}
		return statusErr
	}
	if readErr != nil {
		return fmt.Errorf("%w: read %s body: %w", ErrMalformedResponse, path, readErr)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, path, err)
	}
	return nil
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
