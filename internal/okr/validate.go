package okr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrDueBeforeStart reports a due date earlier than the start date. The due date is cleared.
var ErrDueBeforeStart = errors.New("due date must be after the start date")

// ValidationError captures a single field-specific validation issue.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
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

var requestValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// ParseDate parses an ISO-8601 calendar date. A trailing time component is ignored.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) > len(DateLayout) && value[len(DateLayout)] == 'T' {
		value = value[:len(DateLayout)]
	}
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

// WithDueDate sets the due date the way the form does: a value earlier than the
// start date clears the due date and ErrDueBeforeStart is returned alongside the
// updated request.
func (r Request) WithDueDate(value string) (Request, error) {
	r.DueDate = strings.TrimSpace(value)
	if r.StartDate == "" || r.DueDate == "" {
		return r, nil
	}
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return r, nil
	}
	due, err := ParseDate(r.DueDate)
	if err != nil {
		return r, nil
	}
	if due.Before(start) {
		r.DueDate = ""
		return r, ErrDueBeforeStart
	}
	return r, nil
}

// Sanitize trims every field and applies the due date ordering rule.
func (r Request) Sanitize() (Request, error) {
	r.Department = strings.TrimSpace(r.Department)
	r.JobTitle = strings.TrimSpace(r.JobTitle)
	r.GoalDescription = strings.TrimSpace(r.GoalDescription)
	r.KeyResult = strings.TrimSpace(r.KeyResult)
	r.ManagersGoal = strings.TrimSpace(r.ManagersGoal)
	r.StartDate = strings.TrimSpace(r.StartDate)
	return r.WithDueDate(r.DueDate)
}

// Validate reports every missing or malformed field. A nil error means the
// request may be submitted.
func (r Request) Validate() error {
	var errs ValidationErrors
	if err := requestValidate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate request: %w", err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   fe.Field(),
				Message: messageFor(fe.Tag()),
			})
		}
	}
	if len(errs) == 0 {
		start, _ := ParseDate(r.StartDate)
		due, _ := ParseDate(r.DueDate)
		if due.Before(start) {
			errs = append(errs, ValidationError{Field: "dueDate", Message: ErrDueBeforeStart.Error()})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func messageFor(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "isodate":
		return "must be a date in YYYY-MM-DD form"
	default:
		return "is invalid (" + tag + ")"
	}
}
