// Package apperr defines the error taxonomy shared by every subsystem of
// the i18n engine: config validation, transient I/O, parse failures,
// not-found, busy, auth, conflict and timeout. Callers branch on these
// with errors.Is/errors.As instead of string matching.
package apperr

import "fmt"

// Kind classifies an error for callers that need to branch on it
// (retry transient IoError, surface AuthError, swallow NotFound, ...).
type Kind string

const (
	KindConfig   Kind = "config"
	KindIO       Kind = "io"
	KindParse    Kind = "parse"
	KindNotFound Kind = "not_found"
	KindBusy     Kind = "busy"
	KindAuth     Kind = "auth"
	KindConflict Kind = "conflict"
	KindTimeout  Kind = "timeout"
)

// Error wraps an underlying cause with a Kind and a human message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, apperr.NotFound) style sentinels to match
// any *Error of the same Kind, not just a specific instance.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinels used with errors.Is for kind-only comparisons.
var (
	NotFound = &Error{Kind: KindNotFound, Message: "not found"}
	Busy     = &Error{Kind: KindBusy, Message: "busy"}
	Timeout  = &Error{Kind: KindTimeout, Message: "timeout"}
)

func Config(format string, args ...any) *Error { return newf(KindConfig, format, args...) }

func IO(message string, cause error) *Error { return wrap(KindIO, message, cause) }

func Parse(file string, cause error) *Error {
	return wrap(KindParse, fmt.Sprintf("failed to parse %s", file), cause)
}

func Auth(format string, args ...any) *Error { return newf(KindAuth, format, args...) }

func Conflict(format string, args ...any) *Error { return newf(KindConflict, format, args...) }

// IsKind reports whether err (or anything it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
