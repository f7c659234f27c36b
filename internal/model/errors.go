package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoInput is returned when neither files nor directories are configured.
var ErrNoInput = errors.New(ParamFiles + " and " + ParamDirectories + " are blank")

// ConfigError is a job-level configuration error. It aborts the whole job.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "config: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// AccessError signals that a document's content could not be accessed.
// URL, when set, replaces the synthesized path:line locator. Abort stops
// processing of the remainder of the current file.
type AccessError struct {
	URL   string
	Abort bool
	Err   error
}

func (e *AccessError) Error() string {
	var b strings.Builder
	b.WriteString("access failure")
	if e.URL != "" {
		b.WriteString(" at ")
		b.WriteString(e.URL)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AccessError) Unwrap() error { return e.Err }

// MultipleAccessError aggregates several access failures. The last one is
// treated as representative.
type MultipleAccessError struct {
	Errs []error
}

func (e *MultipleAccessError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%d access failures: %s", len(e.Errs), strings.Join(parts, "; "))
}

func (e *MultipleAccessError) Unwrap() []error { return e.Errs }

// Last returns the representative error, or nil when empty.
func (e *MultipleAccessError) Last() error {
	if len(e.Errs) == 0 {
		return nil
	}
	return e.Errs[len(e.Errs)-1]
}
