package integration_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"okrdraft/integration/harness"
	"okrdraft/internal/export"
)

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}

func prepareHome(t *testing.T) string {
	t.Helper()
	home := filepath.Join(t.TempDir(), "home")
	fixture := filepath.Join(harness.RepoRoot(t), "integration", "fixtures", "home-min")
	harness.CopyDir(t, fixture, home)
	return home
}

// loginHome stores a session token in home using the fake backend.
func loginHome(t *testing.T, binPath, home, backendURL string) {
	t.Helper()
	args := []string{"--home", home, "login", "--email", "dev@example.com", "--password", harness.TestPassword}
	stdout, stderr, code := harness.RunWithEnv(t, binPath, t.TempDir(), args, map[string]string{
		"OKRDRAFT_ENV":          "production",
		"OKRDRAFT_API_BASE_URL": backendURL,
	})
	if code != 0 {
		t.Fatalf("login exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
}

func TestCLISmoke(t *testing.T) {
	binPath := harness.BuildBinary(t)
	runDir := t.TempDir()

	stdout, stderr, code := harness.Run(t, binPath, runDir, []string{"--help"})
	if code != 0 {
		t.Fatalf("okrdraft --help exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !contains(stdout+stderr, "SMART goal drafting") {
		t.Fatalf("expected help output to include header\nstdout:\n%s\nstderr:\n%s", stdout, stderr)
	}
}

func TestGoalLifecycle(t *testing.T) {
	binPath := harness.BuildBinary(t)
	backend := harness.StartBackend(t)
	home := prepareHome(t)
	runDir := t.TempDir()
	env := map[string]string{
		"OKRDRAFT_API_BASE_URL": backend.URL(),
		"OKRDRAFT_HOME":         "",
		"OKRDRAFT_PASSWORD":     "",
	}
	run := func(args ...string) string {
		t.Helper()
		full := append([]string{"--home", home}, args...)
		stdout, stderr, code := harness.RunWithEnv(t, binPath, runDir, full, env)
		if code != 0 {
			t.Fatalf("okrdraft %v exit code %d\nstdout:\n%s\nstderr:\n%s", args, code, stdout, stderr)
		}
		return stdout
	}

	_, stderr, code := harness.RunWithEnv(t, binPath, runDir, []string{"--home", home, "goals", "generate"}, env)
	if code == 0 || !contains(stderr, "not logged in") {
		t.Fatalf("generate before login: exit %d\nstderr:\n%s", code, stderr)
	}
	if got := backend.Generated(); len(got) != 0 {
		t.Fatalf("generate reached the backend before login: %+v", got)
	}

	if out := run("login", "--email", "dev@example.com", "--password", harness.TestPassword); !contains(out, "Test User") {
		t.Fatalf("login output:\n%s", out)
	}
	if out := run("status"); !contains(out, "API connected") || !contains(out, "dev@example.com") {
		t.Fatalf("status output:\n%s", out)
	}

	out := run("goals", "generate")
	if !contains(out, "Ship Cut P1 incidents by half") || contains(out, "generated locally") {
		t.Fatalf("generate output:\n%s", out)
	}
	if got := backend.AuthHeaders(); len(got) != 1 || got[0] != "Bearer "+harness.TestToken {
		t.Fatalf("generate auth headers = %v", got)
	}

	run("goals", "select", "--index", "2")

	out = run("goals", "edit", "--index", "2", "--comment", "make it measurable", "--yes")
	if !contains(out, "Goal successfully edited!") || !contains(out, "(revised)") {
		t.Fatalf("edit output:\n%s", out)
	}
	edits := backend.Edits()
	if len(edits) != 1 || edits[0].Comment != "make it measurable" {
		t.Fatalf("edits = %+v", edits)
	}

	out = run("goals", "save", "--yes")
	if !contains(out, "Goal successfully saved!") {
		t.Fatalf("save output:\n%s", out)
	}
	saved := backend.Saved()
	if len(saved) != 1 || !strings.HasSuffix(saved[0].Title, "(revised)") || saved[0].KPI != "Team survey score" {
		t.Fatalf("saved = %+v", saved)
	}

	jsonPath := filepath.Join(t.TempDir(), "goals.json")
	run("export", "json", "--out", jsonPath)
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json export: %v", err)
	}
	doc, err := export.ReadJSON(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode json export: %v", err)
	}
	if doc.Metadata.Version != "1.0" || len(doc.AIResult.Goals) != 1 || doc.OKRData.Department != "Engineering" {
		t.Fatalf("unexpected export %+v", doc)
	}

	run("export", "pdf")
	pdfs, _ := filepath.Glob(filepath.Join(home, "exports", "smart-goals-*.pdf"))
	if len(pdfs) != 1 {
		t.Fatalf("expected one pdf export, got %v", pdfs)
	}

	run("logout")
	for _, args := range [][]string{{"goals", "show"}, {"goals", "save", "--yes"}, {"export", "json"}} {
		full := append([]string{"--home", home}, args...)
		_, stderr, code := harness.RunWithEnv(t, binPath, runDir, full, env)
		if code == 0 || !contains(stderr, "not logged in") {
			t.Fatalf("%v after logout: exit %d\nstderr:\n%s", args, code, stderr)
		}
	}

	// The next user must not inherit the previous goal session.
	run("login", "--email", "dev@example.com", "--password", harness.TestPassword)
	_, stderr, code = harness.RunWithEnv(t, binPath, runDir, []string{"--home", home, "goals", "show"}, env)
	if code == 0 || !contains(stderr, "no active goal session") {
		t.Fatalf("goals show after relogin: exit %d\nstderr:\n%s", code, stderr)
	}

	requireAuditEvents(t, filepath.Join(home, "state", "audit.sqlite"), []string{
		"login_started",
		"login_finished",
		"goals_generate_started",
		"goals_generate_finished",
		"goals_edit_finished",
		"goals_save_finished",
		"export_json_finished",
		"export_pdf_finished",
		"logout_finished",
	})
	requireNoSecrets(t, filepath.Join(home, "state", "audit.sqlite"), harness.TestPassword, harness.TestToken)
}

func TestLoginRejected(t *testing.T) {
	binPath := harness.BuildBinary(t)
	backend := harness.StartBackend(t)
	home := prepareHome(t)

	args := []string{"--home", home, "login", "--email", "dev@example.com", "--password", "wrong"}
	_, stderr, code := harness.RunWithEnv(t, binPath, t.TempDir(), args, map[string]string{"OKRDRAFT_API_BASE_URL": backend.URL()})
	if code == 0 {
		t.Fatalf("login with a wrong password should fail")
	}
	if !contains(stderr, "Invalid credentials") {
		t.Fatalf("expected server message\nstderr:\n%s", stderr)
	}
}

func TestSaveNeedsConfirmation(t *testing.T) {
	binPath := harness.BuildBinary(t)
	backend := harness.StartBackend(t)
	home := prepareHome(t)
	env := map[string]string{"OKRDRAFT_API_BASE_URL": backend.URL()}
	loginHome(t, binPath, home, backend.URL())

	if _, stderr, code := harness.RunWithEnv(t, binPath, t.TempDir(), []string{"--home", home, "goals", "generate"}, env); code != 0 {
		t.Fatalf("generate failed\nstderr:\n%s", stderr)
	}

	args := []string{"--home", home, "goals", "save", "--index", "1"}
	stdout, stderr, code := harness.RunWithInput(t, binPath, t.TempDir(), args, env, "n\n")
	if code != 0 {
		t.Fatalf("declined save exit code %d\nstderr:\n%s", code, stderr)
	}
	if !contains(stdout, "Save canceled") {
		t.Fatalf("expected cancel message\nstdout:\n%s", stdout)
	}
	if got := backend.Saved(); len(got) != 0 {
		t.Fatalf("declined save reached the backend: %+v", got)
	}

	stdout, stderr, code = harness.RunWithInput(t, binPath, t.TempDir(), args, env, "y\n")
	if code != 0 {
		t.Fatalf("confirmed save exit code %d\nstderr:\n%s", code, stderr)
	}
	if !contains(stdout, "Goal successfully saved!") || len(backend.Saved()) != 1 {
		t.Fatalf("confirmed save output:\n%s", stdout)
	}
}
