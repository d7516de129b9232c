package harness

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"okrdraft/internal/api"
	"okrdraft/internal/okr"
)

const (
	// TestPassword is the only password the fake backend accepts.
	TestPassword = "secret"
	// TestToken is issued on a successful login.
	TestToken = "test-token"

	// Profile fields returned with every login.
	TestDepartment   = "Platform"
	TestDesignation  = "Site Reliability Engineer"
	TestManagersGoal = "Keep the platform boring"
)

// Backend is a fake goal service recording what clients send it.
type Backend struct {
	Server *httptest.Server

	mu             sync.Mutex
	generated      []okr.Request
	saved          []okr.GeneratedGoal
	edits          []api.EditRequest
	authHeaders    []string
	generateStatus int
}

// StartBackend serves the goal API until the test ends.
func StartBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{}
	mux := http.NewServeMux()
	mux.HandleFunc(api.PathHealth, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc(api.PathLogin, b.login)
	mux.HandleFunc(api.PathRegister, func(w http.ResponseWriter, r *http.Request) {
		var reg api.Registration
		_ = json.NewDecoder(r.Body).Decode(&reg)
		writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully", "user": map[string]any{"email": reg.Email}})
	})
	mux.HandleFunc(api.PathGenerateGoals, b.generate)
	mux.HandleFunc(api.PathSaveGoal, b.save)
	mux.HandleFunc(api.PathEditGoal, b.edit)
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// FailGenerate makes the generate endpoint answer with status. Zero restores
// normal responses.
func (b *Backend) FailGenerate(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generateStatus = status
}

// URL is the server base URL.
func (b *Backend) URL() string { return b.Server.URL }

// Saved returns the goals received by the save endpoint.
func (b *Backend) Saved() []okr.GeneratedGoal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]okr.GeneratedGoal(nil), b.saved...)
}

// Edits returns the edit requests received.
func (b *Backend) Edits() []api.EditRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.EditRequest(nil), b.edits...)
}

// Generated returns the requests received by the generate endpoint.
func (b *Backend) Generated() []okr.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]okr.Request(nil), b.generated...)
}

// AuthHeaders returns the Authorization headers seen on goal endpoints.
func (b *Backend) AuthHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.authHeaders...)
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Password != TestPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": TestToken,
		"user": map[string]any{
			"email":         creds.Email,
			"name":          "Test User",
			"department":    TestDepartment,
			"designation":   TestDesignation,
			"managers_goal": TestManagersGoal,
		},
	})
}

func (b *Backend) generate(w http.ResponseWriter, r *http.Request) {
	var req okr.Request
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.generated = append(b.generated, req)
	b.authHeaders = append(b.authHeaders, r.Header.Get("Authorization"))
	status := b.generateStatus
	b.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]any{"error": http.StatusText(status)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"goals": []okr.GeneratedGoal{
			{
				Title:                  "Ship " + req.KeyResult,
				Description:            "Deliver " + req.GoalDescription + " for " + req.Department,
				KPI:                    req.KeyResult,
				CompanyTopBetAlignment: req.ManagersGoal,
				Framework3E:            "Execute",
				CoreValue:              "Ownership",
			},
			{
				Title:                  "Grow " + req.Department + " capability",
				Description:            "Coach the team toward " + req.KeyResult,
				KPI:                    "Team survey score",
				CompanyTopBetAlignment: req.ManagersGoal,
				Framework3E:            "Enable",
				CoreValue:              "Craft",
			},
		},
	})
}

func (b *Backend) save(w http.ResponseWriter, r *http.Request) {
	var goal okr.GeneratedGoal
	if err := json.NewDecoder(r.Body).Decode(&goal); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid goal"})
		return
	}
	b.mu.Lock()
	b.saved = append(b.saved, goal)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) edit(w http.ResponseWriter, r *http.Request) {
	var req api.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid edit"})
		return
	}
	b.mu.Lock()
	b.edits = append(b.edits, req)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"goal": map[string]any{"title": strings.TrimSpace(req.Goal.Title + " (revised)")},
	})
}

// UnreachableURL returns a base URL with nothing listening on it.
func UnreachableURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("release port: %v", err)
	}
	return "http://" + addr
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
