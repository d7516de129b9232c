package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"okrdraft/internal/audit"
	"okrdraft/internal/config"
	"okrdraft/internal/form"
	"okrdraft/internal/state"
	"okrdraft/internal/workspace"
)

func runInit(args []string, homePath string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	root, err := config.ResolveHome(homePath)
	if err != nil {
		return err
	}
	home, err := workspace.Create(root)
	if err != nil {
		return err
	}

	logger := audit.NewLogger(home.AuditDBPath)
	if err := logger.LogEvent(audit.ActorCLI, "init_started", map[string]any{"home": home.Root}); err != nil {
		fmt.Fprintln(os.Stderr, "audit log failed:", err)
	}
	var finishErr error
	defer func() {
		finishPayload := map[string]any{"home": home.Root}
		if finishErr != nil {
			finishPayload["error"] = finishErr.Error()
		}
		_ = logger.LogEvent(audit.ActorCLI, "init_finished", finishPayload)
	}()

	if err := writeFileIfMissing(home.ConfigPath, configTemplate); err != nil {
		finishErr = err
		return finishErr
	}
	if _, err := form.WriteTemplate(home.FormPath); err != nil {
		finishErr = err
		return finishErr
	}
	store, err := state.Open(home.StateDBPath)
	if err != nil {
		finishErr = err
		return finishErr
	}
	if err := store.Close(); err != nil {
		finishErr = fmt.Errorf("close state: %w", err)
		return finishErr
	}

	fmt.Printf("Initialized %s home at %s\n", appName, home.Root)
	fmt.Printf("Fill in %s and run: %s goals generate\n", home.FormPath, appName)
	return nil
}

func writeFileIfMissing(path string, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

const configTemplate = `# okrdraft settings. Environment variables override these values.
# env: production reads api_base_url; development always uses http://localhost:5000.
env: development
api_base_url: ""
enable_fallback: true
poll_interval: 30s
submit_timeout: 30s
retry_budget: 2
retry_delay: 1s
log_level: warn
notifications: false
`
