package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"okrdraft/internal/api"
	"okrdraft/internal/render"
)

func runLogin(args []string, homePath string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password (prompted when omitted; or $OKRDRAFT_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()

	creds, err := e.credentials(*email, *password)
	if err != nil {
		return err
	}

	finish := e.track("login", map[string]any{"email": creds.Email})
	user, err := e.authService().Login(context.Background(), creds)
	if err != nil {
		finish(err, nil)
		return err
	}
	finish(nil, map[string]any{"token_present": true})

	name := user.Name
	if name == "" {
		name = user.Email
	}
	fmt.Fprintln(e.out, render.Notice("Logged in as "+name))
	return nil
}

func runRegister(args []string, homePath string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password (prompted when omitted; or $OKRDRAFT_PASSWORD)")
	name := fs.String("name", "", "Display name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()

	creds, err := e.credentials(*email, *password)
	if err != nil {
		return err
	}

	finish := e.track("register", map[string]any{"email": creds.Email})
	resp, err := e.authService().Register(context.Background(), api.Registration{
		Email:    creds.Email,
		Password: creds.Password,
		Name:     strings.TrimSpace(*name),
	})
	finish(err, nil)
	if err != nil {
		return err
	}

	msg := resp.Message
	if msg == "" {
		msg = "Registered " + creds.Email
	}
	fmt.Fprintln(e.out, render.Notice(msg))
	fmt.Fprintf(e.out, "Run: %s login --email %s\n", appName, creds.Email)
	return nil
}

func runLogout(args []string, homePath string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(homePath)
	if err != nil {
		return err
	}
	defer e.Close()

	finish := e.track("logout", nil)
	err = e.authService().Logout()
	finish(err, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Logged out")
	return nil
}

func (e *env) credentials(email, password string) (api.Credentials, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return api.Credentials{}, errors.New("--email is required")
	}
	if password == "" {
		password = os.Getenv("OKRDRAFT_PASSWORD")
	}
	if password == "" {
		var err error
		password, err = e.readLine("Password: ")
		if err != nil {
			return api.Credentials{}, err
		}
	}
	if password == "" {
		return api.Credentials{}, errors.New("password is required")
	}
	return api.Credentials{Email: email, Password: password}, nil
}
