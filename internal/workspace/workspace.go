package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Home defines the paths okrdraft keeps under its home directory.
type Home struct {
	Root        string
	StateDir    string
	ExportsDir  string
	StateDBPath string
	AuditDBPath string
	ConfigPath  string
	FormPath    string
}

// Resolve expands and validates the home root, ensuring it exists.
func Resolve(root string) (*Home, error) {
	abs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("home root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("home root is not a directory: %s", abs)
	}
	return newHome(abs), nil
}

// ResolveRoot resolves the home root without requiring it to exist.
func ResolveRoot(root string) (string, error) {
	return resolveRoot(root)
}

// Create makes the home root and its standard directories.
func Create(root string) (*Home, error) {
	abs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create home root: %w", err)
	}
	h := newHome(abs)
	if err := h.EnsureDirs(); err != nil {
		return nil, err
	}
	return h, nil
}

// EnsureDirs creates the state and export directories.
func (h *Home) EnsureDirs() error {
	if h == nil {
		return fmt.Errorf("home is nil")
	}
	for _, dir := range []string{h.StateDir, h.ExportsDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("ensure %s: %w", dir, err)
		}
	}
	return nil
}

// ResolvePath returns an absolute path, resolving relative paths from base.
// An empty path resolves to "".
func ResolvePath(base, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	return filepath.Abs(filepath.Join(base, expanded))
}

func newHome(root string) *Home {
	stateDir := filepath.Join(root, "state")
	return &Home{
		Root:        root,
		StateDir:    stateDir,
		ExportsDir:  filepath.Join(root, "exports"),
		StateDBPath: filepath.Join(stateDir, "state.sqlite"),
		AuditDBPath: filepath.Join(stateDir, "audit.sqlite"),
		ConfigPath:  filepath.Join(root, "config.yml"),
		FormPath:    filepath.Join(root, "request.yml"),
	}
}

func resolveRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", fmt.Errorf("home root is required")
	}
	expanded, err := expandHome(root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return abs, nil
}

func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:]), nil
	}
	return "", fmt.Errorf("unsupported home expansion: %s", path)
}
