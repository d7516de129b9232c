package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

const appName = "okrdraft"

func main() {
	flag.String("home", "", "Path to okrdraft home (default: $OKRDRAFT_HOME or ~/.okrdraft)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: SMART goal drafting from OKR requests\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [--home DIR] [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  init      Create the home directory, config and request form")
		fmt.Fprintln(os.Stderr, "  login     Log in and store the session token")
		fmt.Fprintln(os.Stderr, "  register  Create an account")
		fmt.Fprintln(os.Stderr, "  logout    Clear the session token")
		fmt.Fprintln(os.Stderr, "  status    Check goal service connectivity")
		fmt.Fprintln(os.Stderr, "  goals     Generate, show, select, edit and save goals")
		fmt.Fprintln(os.Stderr, "  export    Export the current goals as json or pdf")
		fmt.Fprintln(os.Stderr, "  history   Show recent audit events")
		fmt.Fprintln(os.Stderr, "  help      Show this help")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	homePath, remaining, err := extractHomeFlag(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := remaining
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	var runErr error
	switch args[0] {
	case "init":
		runErr = runInit(args[1:], homePath)
	case "login":
		runErr = runLogin(args[1:], homePath)
	case "register":
		runErr = runRegister(args[1:], homePath)
	case "logout":
		runErr = runLogout(args[1:], homePath)
	case "status":
		runErr = runStatus(args[1:], homePath)
	case "goals":
		runErr = runGoals(args[1:], homePath)
	case "export":
		runErr = runExport(args[1:], homePath)
	case "history":
		runErr = runHistory(args[1:], homePath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func extractHomeFlag(args []string) (string, []string, error) {
	var homePath string
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--home" {
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--home requires a value")
			}
			homePath = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--home=") {
			homePath = strings.TrimPrefix(arg, "--home=")
			continue
		}
		remaining = append(remaining, arg)
	}
	return homePath, remaining, nil
}

func runGoals(args []string, homePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s goals: missing subcommand", appName)
	}

	switch args[0] {
	case "generate":
		return runGoalsGenerate(args[1:], homePath)
	case "show":
		return runGoalsShow(args[1:], homePath)
	case "select":
		return runGoalsSelect(args[1:], homePath)
	case "save":
		return runGoalsSave(args[1:], homePath)
	case "edit":
		return runGoalsEdit(args[1:], homePath)
	default:
		return fmt.Errorf("%s goals: unknown subcommand %q", appName, args[0])
	}
}

func runExport(args []string, homePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s export: missing format (json or pdf)", appName)
	}

	switch args[0] {
	case "json", "pdf":
		return runExportFormat(args[0], args[1:], homePath)
	default:
		return fmt.Errorf("%s export: unknown format %q", appName, args[0])
	}
}
