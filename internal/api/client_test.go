package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"okrdraft/internal/okr"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestGenerateGoalsSendsRequestAndDecodesGoals(t *testing.T) {
	var got okr.Request
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathGenerateGoals, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"goals":[{"title":"A","kpi":"k"},{"title":"B"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", staticToken("tok-1"))
	req := okr.Request{Department: "Ops", DueDate: "2025-01-01"}
	goals, err := c.GenerateGoals(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, "A", goals[0].Title)
	assert.Equal(t, "k", goals[0].KPI)
	assert.Equal(t, "Ops", got.Department)
	assert.Equal(t, "Bearer tok-1", auth)
}

func TestStatusErrorCarriesBodyMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Missing required fields: dueDate"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).GenerateGoals(context.Background(), okr.Request{})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected StatusError, got %T", err)
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "Missing required fields: dueDate", statusErr.ErrorText)
}

func TestEmptyGoalListIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"goals":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).GenerateGoals(context.Background(), okr.Request{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func truncatedBody(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", "200")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"partial`))
	}))
}

func TestTruncatedErrorBodyKeepsStatus(t *testing.T) {
	srv := truncatedBody(http.StatusInternalServerError)
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).GenerateGoals(context.Background(), okr.Request{})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected StatusError, got %T: %v", err, err)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Empty(t, statusErr.ErrorText)

	var transportErr *TransportError
	assert.False(t, errors.As(err, &transportErr))
}

func TestTruncatedSuccessBodyIsMalformed(t *testing.T) {
	srv := truncatedBody(http.StatusOK)
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).GenerateGoals(context.Background(), okr.Request{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
	var transportErr *TransportError
	assert.False(t, errors.As(err, &transportErr))
}

func TestConnectionRefusedIsTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	err = NewClient("http://"+addr, nil).Health(context.Background())
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "expected TransportError, got %T", err)
	assert.False(t, transportErr.Timeout())
}

func TestDeadlineIsTransportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, nil).GenerateGoals(ctx, okr.Request{})
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr), "expected TransportError, got %T", err)
	assert.True(t, transportErr.Timeout())
}

func TestEditGoalDecodesPartialGoal(t *testing.T) {
	var body EditRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"goal":{"title":"Revised"}}`))
	}))
	defer srv.Close()

	revised, err := NewClient(srv.URL, nil).EditGoal(context.Background(), okr.GeneratedGoal{Title: "Old", KPI: "k"}, "shorter")
	require.NoError(t, err)
	assert.Equal(t, "Revised", revised.Title)
	assert.Empty(t, revised.KPI)
	assert.Equal(t, "shorter", body.Comment)
	assert.Equal(t, "Old", body.Goal.Title)
}

func TestLoginPrefersMessageField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Login(context.Background(), Credentials{Email: "a@b.c", Password: "x"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "Invalid credentials", statusErr.MessageText)
}

func TestUserRequestDefaults(t *testing.T) {
	var user User
	require.NoError(t, json.Unmarshal([]byte(`{"email":"a@b.c","department":"Ops","designation":"Lead","managers_goal":"Uptime"}`), &user))
	assert.Equal(t, okr.Request{Department: "Ops", JobTitle: "Lead", ManagersGoal: "Uptime"}, user.RequestDefaults())
}
