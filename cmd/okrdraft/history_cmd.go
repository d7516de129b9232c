package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

func runHistory(args []string, homePath string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 20, "Number of events to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()

	events, err := e.Audit.Recent(*limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tPAYLOAD")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ev.Timestamp.Local().Format("2006-01-02 15:04:05"), ev.Type, ev.Payload)
	}
	return w.Flush()
}
