package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"okrdraft/internal/form"
	"okrdraft/internal/mutation"
	"okrdraft/internal/notify"
	"okrdraft/internal/okr"
	"okrdraft/internal/render"
	"okrdraft/internal/retry"
	"okrdraft/internal/state"
	"okrdraft/internal/submission"
)

func runGoalsGenerate(args []string, homePath string) error {
	fs := flag.NewFlagSet("goals generate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	formPath := fs.String("form", "", "Request form YAML (default: <home>/request.yml)")
	var override okr.Request
	fs.StringVar(&override.Department, "department", "", "Department")
	fs.StringVar(&override.JobTitle, "job-title", "", "Job title")
	fs.StringVar(&override.GoalDescription, "goal-description", "", "Goal description")
	fs.StringVar(&override.KeyResult, "key-result", "", "Key result")
	fs.StringVar(&override.ManagersGoal, "managers-goal", "", "Manager's goal")
	fs.StringVar(&override.StartDate, "start-date", "", "Start date (YYYY-MM-DD)")
	fs.StringVar(&override.DueDate, "due-date", "", "Due date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.requireLogin(); err != nil {
		return err
	}

	req, source, err := e.loadRequest(*formPath, override)
	if err != nil {
		var vErrs form.ValidationErrors
		if errors.As(err, &vErrs) {
			for _, ve := range vErrs {
				fmt.Fprintln(os.Stderr, render.Error(ve.Error()))
			}
			return fmt.Errorf("request form %s is incomplete", source)
		}
		return err
	}

	svc := submission.NewService(e.Client)
	svc.Timeout = e.Config.SubmitTimeout
	svc.EnableFallback = e.Config.EnableFallback
	svc.Logger = e.Logger
	policy := retry.Policy{Budget: e.Config.RetryBudget, Delay: e.Config.RetryDelay}
	machine := submission.NewMachine(svc, policy, e.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	finish := e.track("goals_generate", map[string]any{"form": source, "department": req.Department})
	outcome, err := machine.Submit(ctx, req)
	snap := machine.Snapshot()
	extra := map[string]any{
		"submission_id": snap.SubmissionID,
		"attempts":      snap.Attempts,
	}
	if err != nil {
		finish(err, extra)
		return err
	}
	if outcome.Failure != nil {
		extra["kind"] = string(outcome.Failure.Kind)
		finish(outcome.Failure, extra)
		fmt.Fprintln(os.Stderr, render.Error(outcome.Failure.Message))
		return fmt.Errorf("goal generation failed after %d attempt(s)", snap.Attempts)
	}

	err = e.Store.ReplaceSession(state.Session{
		ID:         snap.SubmissionID,
		Request:    req,
		Goals:      outcome.Goals,
		IsFallback: outcome.IsFallback,
		Selected:   -1,
	})
	extra["goals"] = len(outcome.Goals)
	extra["is_fallback"] = outcome.IsFallback
	finish(err, extra)
	if err != nil {
		return err
	}

	fmt.Fprintln(e.out, render.Goals(outcome.Goals, -1, outcome.IsFallback))
	notifier := &notify.Notifier{Enabled: e.Config.Notifications}
	title, message := notify.FormatGoalsReady(len(outcome.Goals), outcome.IsFallback)
	if err := notifier.Send(title, message); err != nil {
		e.Logger.Warn("desktop notification failed", "error", err)
	}
	return nil
}

// loadRequest layers flags over the form (when present) over the stored
// profile and validates the result.
func (e *env) loadRequest(path string, override okr.Request) (okr.Request, string, error) {
	var profile okr.Request
	user, err := e.authService().CurrentUser()
	if err != nil {
		return okr.Request{}, path, err
	}
	if user != nil {
		profile = user.RequestDefaults()
	}

	explicit := path != ""
	if !explicit {
		path = e.Home.FormPath
	}
	var file okr.Request
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		file, err = form.Decode(data, path)
		if err != nil {
			return okr.Request{}, path, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		path = "flags"
	default:
		return okr.Request{}, path, fmt.Errorf("read form: %w", err)
	}
	req, err := form.Check(form.Layer(profile, file, override), path)
	return req, path, err
}

func runGoalsShow(args []string, homePath string) error {
	fs := flag.NewFlagSet("goals show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()

	sess, err := e.activeSession()
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, render.Goals(sess.Goals, sess.Selected, sess.IsFallback))
	return nil
}

func runGoalsSelect(args []string, homePath string) error {
	fs := flag.NewFlagSet("goals select", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	index := fs.Int("index", 0, "Goal number to select (1-based)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()

	stored, err := e.activeSession()
	if err != nil {
		return err
	}
	finish := e.track("goals_select", map[string]any{"session_id": stored.ID, "index": *index})
	sess := mutation.NewSession(stored.Goals, e.Client, nil, e.Logger)
	if err := sess.Select(*index - 1); err != nil {
		finish(err, nil)
		return err
	}
	err = e.Store.UpdateGoals(stored.Version, sess.Goals(), sess.Selected())
	finish(err, nil)
	if err != nil {
		return sessionConflict(err)
	}
	fmt.Fprintln(e.out, render.GoalCard(sess.Selected(), sess.Goals()[sess.Selected()], true))
	return nil
}

func runGoalsSave(args []string, homePath string) error {
	fs := flag.NewFlagSet("goals save", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	index := fs.Int("index", 0, "Goal number to select before saving (1-based)")
	yes := fs.Bool("yes", false, "Save without asking for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()

	stored, err := e.activeSession()
	if err != nil {
		return err
	}
	sess, err := e.mutationSession(stored, *yes)
	if err != nil {
		return err
	}
	selected := stored.Selected
	if *index > 0 {
		selected = *index - 1
		if err := sess.Select(selected); err != nil {
			return err
		}
	}

	finish := e.track("goals_save", map[string]any{"session_id": stored.ID, "index": selected + 1})
	if err := sess.Save(context.Background()); err != nil {
		finish(err, nil)
		if errors.Is(err, mutation.ErrNotConfirmed) {
			fmt.Fprintln(e.out, "Save canceled")
			return nil
		}
		if msg := sess.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, render.Error(msg))
		}
		return sessionConflict(err)
	}
	finish(nil, nil)

	fmt.Fprintln(e.out, render.Notice(sess.Notice.Text()))
	fmt.Fprintln(e.out, render.Goals(sess.Goals(), sess.Selected(), stored.IsFallback))
	return nil
}

func runGoalsEdit(args []string, homePath string) error {
	fs := flag.NewFlagSet("goals edit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	index := fs.Int("index", 0, "Goal number to edit (1-based)")
	comment := fs.String("comment", "", "What to change about the goal")
	yes := fs.Bool("yes", false, "Edit without asking for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *comment == "" {
		return fmt.Errorf("--comment is required")
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()

	stored, err := e.activeSession()
	if err != nil {
		return err
	}
	sess, err := e.mutationSession(stored, *yes)
	if err != nil {
		return err
	}
	i := *index - 1
	if i < 0 || i >= len(stored.Goals) {
		return fmt.Errorf("edit goal %d: %w", *index, mutation.ErrIndexOutOfRange)
	}
	before := stored.Goals[i]

	finish := e.track("goals_edit", map[string]any{"session_id": stored.ID, "index": *index})
	if err := sess.Edit(context.Background(), i, *comment); err != nil {
		finish(err, nil)
		if errors.Is(err, mutation.ErrNotConfirmed) {
			fmt.Fprintln(e.out, "Edit canceled")
			return nil
		}
		if msg := sess.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, render.Error(msg))
		}
		return sessionConflict(err)
	}
	finish(nil, nil)

	after := sess.Goals()[i]
	diff, err := render.GoalDiff(before, after, fmt.Sprintf("goal %d", *index))
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, render.Notice(sess.Notice.Text()))
	if diff == "" {
		fmt.Fprintln(e.out, "The service returned no changes.")
	} else {
		fmt.Fprint(e.out, diff)
	}
	return nil
}

// activeSession returns the logged-in user's stored goal session.
func (e *env) activeSession() (*state.Session, error) {
	if err := e.requireLogin(); err != nil {
		return nil, err
	}
	sess, err := e.Store.ActiveSession()
	if errors.Is(err, state.ErrNoSession) {
		return nil, fmt.Errorf("%w (run %s goals generate first)", err, appName)
	}
	return sess, err
}

// mutationSession rebuilds the stored goal set as a mutation.Session whose
// gate is shared with every other okrdraft process through the state DB.
func (e *env) mutationSession(stored *state.Session, yes bool) (*mutation.Session, error) {
	sess := mutation.NewSession(stored.Goals, e.Client, e.confirmer(yes), e.Logger)
	sess.Lease = e.Store.Lease(stored)
	if stored.Selected >= 0 && stored.Selected < len(stored.Goals) {
		if err := sess.Select(stored.Selected); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func sessionConflict(err error) error {
	switch {
	case errors.Is(err, mutation.ErrBusy):
		return fmt.Errorf("%w; wait for it to finish and retry", err)
	case errors.Is(err, state.ErrStaleSession), errors.Is(err, state.ErrLeaseLost):
		return fmt.Errorf("%w (run %s goals show and retry)", err, appName)
	default:
		return err
	}
}
