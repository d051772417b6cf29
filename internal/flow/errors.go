// Package flow holds the primitives every interactive chat flow is built
// from: callback payloads bound to their originator, per-command cooldowns,
// the processing guard, per-user locks, state machines keyed by user and
// flow kind, fuzzy name suggestions and the user-facing error taxonomy.
package flow

import (
	"errors"
	"fmt"
)

// Sentinel errors of the taxonomy. Anything not in it is fatal.
var (
	// ErrNotAuthorized covers buttons pressed by someone else, admin
	// commands from non-admins and killed users.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrStateConflict covers duplicate confirms, stale callbacks and
	// out-of-turn actions.
	ErrStateConflict = errors.New("already processed or out of date")
	// ErrTransient covers transport races such as "message is not modified".
	ErrTransient = errors.New("transient transport error")
)

// InputError is a problem with what the user typed. Its message is shown to
// the user as is.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// Inputf builds an InputError.
func Inputf(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// Kind classifies an error for reporting.
type Kind int

const (
	KindNone Kind = iota
	KindInput
	KindNotAuthorized
	KindStateConflict
	KindTransient
	KindFatal
)

// String returns the log label for k.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInput:
		return "input"
	case KindNotAuthorized:
		return "not_authorized"
	case KindStateConflict:
		return "state_conflict"
	case KindTransient:
		return "transient"
	}
	return "fatal"
}

// Classify places err in the taxonomy.
func Classify(err error) Kind {
	var in *InputError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &in):
		return KindInput
	case errors.Is(err, ErrNotAuthorized):
		return KindNotAuthorized
	case errors.Is(err, ErrStateConflict):
		return KindStateConflict
	case errors.Is(err, ErrTransient):
		return KindTransient
	}
	return KindFatal
}

// Conflict wraps ErrStateConflict with a user-facing reason.
func Conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrStateConflict, reason)
}

// UserMessage returns the text to show the user for err.
func UserMessage(err error) string {
	var in *InputError
	switch Classify(err) {
	case KindNone:
		return ""
	case KindInput:
		errors.As(err, &in)
		return in.Msg
	case KindNotAuthorized:
		return "This button isn't for you."
	case KindStateConflict:
		return "Please wait, that was already processed."
	case KindTransient:
		return ""
	}
	return "Something went wrong. Please try again later."
}
