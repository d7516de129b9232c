package harness

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

// binary memoizes one build of the CLI per test process.
type binary struct {
	once sync.Once
	path string
	err  error
}

var (
	root struct {
		once sync.Once
		dir  string
		err  error
	}
	cli binary
)

// RepoRoot returns the module root, found as the directory holding go.mod
// above this file.
func RepoRoot(t *testing.T) string {
	t.Helper()
	root.once.Do(func() {
		root.dir, root.err = findModuleRoot()
	})
	if root.err != nil {
		t.Fatalf("resolve repo root: %v", root.err)
	}
	return root.dir
}

func findModuleRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("runtime.Caller failed")
	}
	for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		if parent := filepath.Dir(dir); parent == dir {
			return "", fmt.Errorf("no go.mod above %s", file)
		}
	}
}

// BuildBinary compiles cmd/okrdraft once per test run and returns its path.
func BuildBinary(t *testing.T) string {
	t.Helper()
	repo := RepoRoot(t)
	cli.once.Do(func() {
		cli.path, cli.err = build(repo)
	})
	if cli.err != nil {
		t.Fatalf("build okrdraft binary: %v", cli.err)
	}
	return cli.path
}

func build(repo string) (string, error) {
	dir, err := os.MkdirTemp("", "okrdraft-bin-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	out := filepath.Join(dir, "okrdraft")
	if runtime.GOOS == "windows" {
		out += ".exe"
	}
	cmd := exec.Command("go", "build", "-trimpath", "-o", out, "./cmd/okrdraft")
	cmd.Dir = repo
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("go build failed: %w\n%s", err, output)
	}
	return out, nil
}
