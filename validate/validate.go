package validate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// FieldError is a problem with a single form field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Errors collects field errors for one form submission.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns nil when nothing was collected.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Field returns the first message recorded for field.
func (e Errors) Field(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

func (e *Errors) Add(field, format string, args ...any) {
	*e = append(*e, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required")
		return false
	}
	return true
}

func (e *Errors) Email(field, value string) {
	if !IsEmail(value) {
		e.Add(field, "is not a valid email address")
	}
}

func (e *Errors) Phone(field, value string) {
	if value != "" && !phoneRegex.MatchString(value) {
		e.Add(field, "is not a valid phone number")
	}
}

// Date checks a YYYY-MM-DD calendar date.
func (e *Errors) Date(field, value string) bool {
	if _, err := time.Parse(DateLayout, value); err != nil {
		e.Add(field, "must be a date formatted YYYY-MM-DD")
		return false
	}
	return true
}

// Clock checks an HH:MM 24-hour time.
func (e *Errors) Clock(field, value string) bool {
	if _, err := time.Parse(ClockLayout, value); err != nil || len(value) != len(ClockLayout) {
		e.Add(field, "must be a time formatted HH:MM")
		return false
	}
	return true
}

func (e *Errors) OneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	e.Add(field, "must be one of %s", strings.Join(allowed, ", "))
}

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9 ()-]{6,20}$`)

func IsEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}
