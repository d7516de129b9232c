// Package form loads OKR request forms from YAML and reports field-level
// problems with their source file.
package form

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"okrdraft/internal/okr"
)

// DefaultFileName is the form created by init in the home directory.
const DefaultFileName = "request.yml"

// ValidationError captures a single field-specific validation issue.
type ValidationError struct {
	File    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
}

// ValidationErrors aggregates multiple validation problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

// Decode parses a YAML form without validating it. Unknown keys are rejected.
func Decode(data []byte, source string) (okr.Request, error) {
	var req okr.Request
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return okr.Request{}, fmt.Errorf("parse %s: %w", source, err)
	}
	return req, nil
}

// Check sanitizes req and validates it. The sanitized request is returned even
// when validation fails so callers can show what was submitted.
func Check(req okr.Request, source string) (okr.Request, error) {
	req, dueErr := req.Sanitize()

	var errs ValidationErrors
	if dueErr != nil {
		errs = append(errs, ValidationError{File: source, Field: "dueDate", Message: dueErr.Error() + "; due date cleared"})
	}
	if err := req.Validate(); err != nil {
		var fieldErrs okr.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return req, err
		}
		for _, fe := range fieldErrs {
			if dueErr != nil && fe.Field == "dueDate" {
				continue
			}
			errs = append(errs, ValidationError{File: source, Field: fe.Field, Message: fe.Message})
		}
	}
	if len(errs) > 0 {
		return req, errs
	}
	return req, nil
}

// Load reads, decodes and validates the form at path.
func Load(path string) (okr.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return okr.Request{}, fmt.Errorf("read form: %w", err)
	}
	req, err := Decode(data, path)
	if err != nil {
		return okr.Request{}, err
	}
	return Check(req, path)
}

// Overlay returns base with every non-empty field of override applied.
func Overlay(base, override okr.Request) okr.Request {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&base.Department, override.Department)
	set(&base.JobTitle, override.JobTitle)
	set(&base.GoalDescription, override.GoalDescription)
	set(&base.KeyResult, override.KeyResult)
	set(&base.ManagersGoal, override.ManagersGoal)
	set(&base.StartDate, override.StartDate)
	set(&base.DueDate, override.DueDate)
	return base
}

// Layer applies each request over the previous one, so later layers win
// field by field.
func Layer(layers ...okr.Request) okr.Request {
	var out okr.Request
	for _, l := range layers {
		out = Overlay(out, l)
	}
	return out
}

// Template is the starter form written by init.
const Template = `# OKR request form. Every field is required.
# Dates use YYYY-MM-DD; due_date must not be earlier than start_date.
department: ""
job_title: ""
goal_description: ""
key_result: ""
managers_goal: ""
start_date: ""
due_date: ""
`

// WriteTemplate writes Template to path unless a file already exists there.
// It reports whether the file was created.
func WriteTemplate(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(Template), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
