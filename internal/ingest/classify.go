package ingest

import (
	"errors"
	"fmt"

	"github.com/codelibs/fess-ds-csv/internal/model"
)

// Failure is a classified row failure.
type Failure struct {
	Outcome model.Outcome
	// Kind is the Go type of the representative error's nearest cause.
	Kind  string
	URL   string
	Abort bool
	// Err is the representative error handed to the failure recorder.
	Err error
}

// Classify turns a row error into a Failure. fallbackURL locates the row when
// the error does not carry its own URL.
func Classify(err error, fallbackURL string) Failure {
	f := Failure{Outcome: model.OutcomeUnclassified, URL: fallbackURL, Err: err}

	var target error
	var multi *model.MultipleAccessError
	var access *model.AccessError
	switch {
	case errors.As(err, &multi):
		target = multi
		if last := multi.Last(); last != nil {
			target = last
		}
	case errors.As(err, &access):
		target = access
	default:
		f.Kind = kindOf(err)
		return f
	}

	f.Outcome = model.OutcomeRecoverable
	f.Err = target
	if cause := errors.Unwrap(target); cause != nil {
		f.Kind = kindOf(cause)
	} else {
		f.Kind = kindOf(target)
	}
	if ae, ok := target.(*model.AccessError); ok {
		if ae.URL != "" {
			f.URL = ae.URL
		}
		f.Abort = ae.Abort
	}
	return f
}

// kindOf names the type of err, looking through plain fmt.Errorf wrappers.
func kindOf(err error) string {
	for {
		name := fmt.Sprintf("%T", err)
		if name != "*fmt.wrapError" && name != "*fmt.wrapErrors" {
			return name
		}
		next := errors.Unwrap(err)
		if next == nil {
			if u, ok := err.(interface{ Unwrap() []error }); ok {
				if errs := u.Unwrap(); len(errs) > 0 {
					next = errs[len(errs)-1]
				}
			}
		}
		if next == nil {
			return name
		}
		err = next
	}
}
