package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"okrdraft/internal/export"
	"okrdraft/internal/workspace"
)

func runExportFormat(format string, args []string, homePath string) error {
	fs := flag.NewFlagSet("export "+format, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	outPath := fs.String("out", "", "Output file (default: <home>/exports/smart-goals-YYYY-MM-DD."+format+")")
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

	now := time.Now()
	path := filepath.Join(e.Home.ExportsDir, export.FileName(format, now))
	if *outPath != "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working dir: %w", err)
		}
		path, err = workspace.ResolvePath(cwd, *outPath)
		if err != nil {
			return err
		}
	}

	finish := e.track("export_"+format, map[string]any{"session_id": sess.ID, "path": path})
	err = writeExport(format, path, func(f *os.File) error {
		if format == "json" {
			return export.WriteJSON(f, export.NewDocument(sess.Request, sess.Goals, now))
		}
		return export.WritePDF(f, export.RenderResults(sess.Request, sess.Goals, sess.Selected))
	})
	finish(err, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Exported %d goal(s) to %s\n", len(sess.Goals), path)
	return nil
}

func writeExport(format, path string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s export: %w", format, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s export: %w", format, err)
	}
	return nil
}
