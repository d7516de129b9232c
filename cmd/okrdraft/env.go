package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"okrdraft/internal/api"
	"okrdraft/internal/audit"
	"okrdraft/internal/auth"
	"okrdraft/internal/config"
	"okrdraft/internal/mutation"
	"okrdraft/internal/okr"
	"okrdraft/internal/state"
	"okrdraft/internal/workspace"
)

// env bundles what every command needs once the home is resolved.
type env struct {
	Home   *workspace.Home
	Config config.Config
	Logger *slog.Logger
	Store  *state.Store
	Tokens *auth.TokenStore
	Client *api.Client
	Audit  *audit.Logger

	stdin *bufio.Reader
	out   io.Writer
}

// openEnv resolves the home directory and opens the state database. The home
// must have been created with init.
func openEnv(homeFlag string) (*env, error) {
	root, err := config.ResolveHome(homeFlag)
	if err != nil {
		return nil, err
	}
	home, err := workspace.Resolve(root)
	if err != nil {
		return nil, fmt.Errorf("%w (run %s init first)", err, appName)
	}
	if err := home.EnsureDirs(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(home.Root)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(os.Stderr)

	store, err := state.Open(home.StateDBPath)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	tokens, err := auth.NewTokenStore(store, cfg.TokenKey)
	if err != nil {
		store.Close()
		return nil, err
	}

	client := api.NewClient(cfg.BaseURL(), tokens)
	client.Logger = logger

	return &env{
		Home:   home,
		Config: cfg,
		Logger: logger,
		Store:  store,
		Tokens: tokens,
		Client: client,
		Audit:  audit.NewLogger(home.AuditDBPath),
		stdin:  bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

func (e *env) Close() error {
	return e.Store.Close()
}

func (e *env) authService() *auth.Service {
	return &auth.Service{Backend: e.Client, Tokens: e.Tokens, KV: e.Store, Sessions: e.Store, Logger: e.Logger}
}

// requireLogin gates the goal commands on a stored token.
func (e *env) requireLogin() error {
	if err := e.authService().RequireLogin(); err != nil {
		return fmt.Errorf("%w (run %s login first)", err, appName)
	}
	return nil
}

// track records <name>_started now and returns a function that records
// <name>_finished with the final error, if any.
func (e *env) track(name string, payload map[string]any) func(err error, extra map[string]any) {
	start := map[string]any{"home": e.Home.Root}
	for k, v := range payload {
		start[k] = v
	}
	if err := e.Audit.LogEvent(audit.ActorCLI, name+"_started", start); err != nil {
		fmt.Fprintln(os.Stderr, "audit log failed:", err)
	}
	return func(err error, extra map[string]any) {
		finish := map[string]any{"home": e.Home.Root}
		for k, v := range payload {
			finish[k] = v
		}
		for k, v := range extra {
			finish[k] = v
		}
		if err != nil {
			finish["error"] = err.Error()
		}
		_ = e.Audit.LogEvent(audit.ActorCLI, name+"_finished", finish)
	}
}

// readLine prompts and reads one line from stdin.
func (e *env) readLine(prompt string) (string, error) {
	fmt.Fprint(e.out, prompt)
	line, err := e.stdin.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// confirmer asks on stdin unless yes is set.
func (e *env) confirmer(yes bool) mutation.Confirmer {
	return mutation.ConfirmFunc(func(action mutation.Action, goal okr.GeneratedGoal) bool {
		if yes {
			return true
		}
		answer, err := e.readLine(fmt.Sprintf("%s goal %q? [y/N]: ", actionVerb(action), goal.Title))
		if err != nil {
			return false
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true
		default:
			return false
		}
	})
}

func actionVerb(action mutation.Action) string {
	if action == mutation.ActionSave {
		return "Save"
	}
	return "Edit"
}
