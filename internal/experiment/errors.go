package experiment

import (
	"errors"
	"fmt"
)

// Sentinel errors for the experiment package.
// Use errors.Is to branch on them: errors.Is(err, experiment.ErrInputFormat)
var (
	// ErrInputFormat marks a malformed experiment description: a value
	// that is not a mapping, a malformed combination list or arm value,
	// or a placeholder token that does not start and end with '@'.
	ErrInputFormat = errors.New("experiment: invalid input format")

	// ErrLookup marks a reference to a sweep or arm that does not exist.
	ErrLookup = errors.New("experiment: lookup failed")

	// ErrSeedPlaceholder is returned when seed generation is requested
	// and a scenario document has no @seed@ placeholder.
	ErrSeedPlaceholder = errors.New("experiment: @seed@ placeholder is not found")
)

// Error carries one of the sentinel kinds above plus a detail message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func formatErrorf(format string, args ...any) error {
	return &Error{Kind: ErrInputFormat, Msg: fmt.Sprintf(format, args...)}
}

func lookupErrorf(format string, args ...any) error {
	return &Error{Kind: ErrLookup, Msg: fmt.Sprintf(format, args...)}
}
