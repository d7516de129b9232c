package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"okrdraft/internal/health"
	"okrdraft/internal/render"
)

func runStatus(args []string, homePath string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	watch := fs.Bool("watch", false, "Keep polling until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()

	checker := health.NewChecker(e.Client)
	checker.Interval = e.Config.PollInterval
	checker.Logger = e.Logger

	user, _ := e.authService().CurrentUser()
	switch {
	case !e.Tokens.Present():
		fmt.Fprintln(e.out, "Not logged in")
	case user != nil:
		fmt.Fprintf(e.out, "Logged in as %s\n", user.Email)
	default:
		fmt.Fprintln(e.out, "Logged in")
	}
	fmt.Fprintf(e.out, "Service: %s\n", e.Client.BaseURL)

	finish := e.track("status", map[string]any{"watch": *watch})
	if !*watch {
		report := checker.Check(context.Background())
		finish(nil, map[string]any{"status": string(report.Status)})
		fmt.Fprintln(e.out, render.Status(report))
		if report.Status != health.StatusConnected {
			return fmt.Errorf("goal service unavailable: %v", report.Err)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker.OnReport = func(r health.Report) {
		fmt.Fprintln(e.out, render.Status(r))
	}
	checker.Start(ctx)
	<-ctx.Done()
	checker.Stop()
	finish(nil, map[string]any{"status": string(checker.Last().Status)})
	return nil
}
