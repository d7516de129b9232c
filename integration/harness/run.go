package harness

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// Run executes the CLI in workDir with the inherited environment.
func Run(t *testing.T, binPath, workDir string, args []string) (string, string, int) {
	t.Helper()
	return RunWithInput(t, binPath, workDir, args, nil, "")
}

// RunWithEnv executes the CLI with environment overrides. An empty value
// unsets the variable.
func RunWithEnv(t *testing.T, binPath, workDir string, args []string, env map[string]string) (string, string, int) {
	t.Helper()
	return RunWithInput(t, binPath, workDir, args, env, "")
}

// RunWithInput is RunWithEnv with stdin fed from input, for commands that
// prompt.
func RunWithInput(t *testing.T, binPath, workDir string, args []string, env map[string]string, input string) (string, string, int) {
	t.Helper()

	cmd := exec.Command(binPath, args...)
	cmd.Dir = workDir
	cmd.Env = overlayEnv(os.Environ(), env)
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("run %s %v: %v", binPath, args, err)
		}
		exitCode = exitErr.ExitCode()
	}
	return stdout.String(), stderr.String(), exitCode
}

func overlayEnv(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	for _, entry := range base {
		key, _, _ := strings.Cut(entry, "=")
		if _, replaced := overrides[key]; replaced {
			continue
		}
		out = append(out, entry)
	}
	for key, val := range overrides {
		if val == "" {
			continue
		}
		out = append(out, key+"="+val)
	}
	return out
}
