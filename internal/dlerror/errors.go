// Package dlerror defines the download engine's error taxonomy.
package dlerror

import (
	"errors"
	"fmt"
)

// Kind is one member of the error taxonomy.
type Kind string

const (
	Network       Kind = "network"
	FileSystem    Kind = "filesystem"
	Integrity     Kind = "integrity"
	Parse         Kind = "parse"
	Config        Kind = "config"
	TaskJoin      Kind = "task_join"
	Serialization Kind = "serialization"
	StateNotFound Kind = "state_not_found"
)

// Error wraps an underlying cause with a taxonomy Kind. All errors in
// the engine are string-renderable via Error() for UI consumption.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, dlerror.Network) style checks against a Kind
// sentinel by comparing Kind fields.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// ErrStateNotFound is the sentinel compared against via errors.Is when
// a resume is attempted with no prior persisted state.
var ErrStateNotFound = &Error{Kind: StateNotFound, Msg: "state not found"}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// FriendlyMessage renders an error the way a UI or log line should show
// it, collapsing transport noise into the taxonomy category.
func FriendlyMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case Network:
			return "Network error: " + e.Msg
		case FileSystem:
			return "File system error: " + e.Msg
		case Integrity:
			return "Integrity check failed: " + e.Msg
		case Parse:
			return "Could not parse response: " + e.Msg
		case Config:
			return "Configuration error: " + e.Msg
		case TaskJoin:
			return "Internal worker error: " + e.Msg
		case Serialization:
			return "Could not read or write state: " + e.Msg
		case StateNotFound:
			return "No saved state for this download: " + e.Msg
		}
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// KindOf extracts the taxonomy Kind from err, or "" if err is not (or
// does not wrap) a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
