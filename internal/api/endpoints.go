package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"okrdraft/internal/okr"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// User is the account profile returned by the auth endpoints.
type User struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"`
	Department   string `json:"department,omitempty"`
	Designation  string `json:"designation,omitempty"`
	ManagersGoal string `json:"managers_goal,omitempty"`
}

// RequestDefaults prefills the request fields the profile knows about.
func (u User) RequestDefaults() okr.Request {
	return okr.Request{
		Department:   u.Department,
		JobTitle:     u.Designation,
		ManagersGoal: u.ManagersGoal,
	}
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterResponse is the body of a successful registration.
type RegisterResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
}

// GenerateResponse is the body returned by the goal generator.
type GenerateResponse struct {
	Goals okr.GoalSet `json:"goals"`
}

// EditRequest asks the service to revise a goal using a user comment.
type EditRequest struct {
	Goal    okr.GeneratedGoal `json:"goal"`
	Comment string            `json:"comment"`
}

// EditResponse carries the revised goal. Fields the service omits decode as empty.
type EditResponse struct {
	Goal *okr.GeneratedGoal `json:"goal"`
}

// SaveResponse is the implementation-defined save acknowledgment, kept verbatim.
type SaveResponse = json.RawMessage

// Health checks service reachability. Any 2xx is healthy.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, c.HealthTimeout)
	defer cancel()
	return c.do(ctx, http.MethodGet, PathHealth, nil, nil)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	ctx, cancel := withTimeout(ctx, c.AuthTimeout)
	defer cancel()
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, PathLogin, creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, reg Registration) (*RegisterResponse, error) {
	ctx, cancel := withTimeout(ctx, c.AuthTimeout)
	defer cancel()
	var out RegisterResponse
	if err := c.do(ctx, http.MethodPost, PathRegister, reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateGoals submits the request to the goal generator. The caller bounds the
// call with ctx.
func (c *Client) GenerateGoals(ctx context.Context, req okr.Request) (okr.GoalSet, error) {
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, PathGenerateGoals, req, &out); err != nil {
		return nil, err
	}
	if len(out.Goals) == 0 {
		return nil, fmt.Errorf("%w: no goals returned", ErrMalformedResponse)
	}
	return out.Goals, nil
}

// SaveGoal persists a goal for the current user.
func (c *Client) SaveGoal(ctx context.Context, goal okr.GeneratedGoal) (SaveResponse, error) {
	var out SaveResponse
	if err := c.do(ctx, http.MethodPost, PathSaveGoal, goal, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EditGoal asks the service to revise goal according to comment. The returned
// goal may be partial.
func (c *Client) EditGoal(ctx context.Context, goal okr.GeneratedGoal, comment string) (okr.GeneratedGoal, error) {
	var out EditResponse
	if err := c.do(ctx, http.MethodPost, PathEditGoal, EditRequest{Goal: goal, Comment: comment}, &out); err != nil {
		return okr.GeneratedGoal{}, err
	}
	if out.Goal == nil {
		return okr.GeneratedGoal{}, nil
	}
	return *out.Goal, nil
}
