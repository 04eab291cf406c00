package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the stage-actor error taxonomy the dispatcher classifies
// into retry vs dead-letter.
type ErrorKind string

const (
	ErrKindInvalidMedia  ErrorKind = "invalid_media"
	ErrKindNotFound      ErrorKind = "not_found"
	ErrKindConflict      ErrorKind = "conflict"
	ErrKindCancelled     ErrorKind = "cancelled"
	ErrKindSerialization ErrorKind = "serialization"
	ErrKindIo            ErrorKind = "io"
	ErrKindDatabase      ErrorKind = "database"
	ErrKindInternal      ErrorKind = "internal"
)

// Error is a typed stage error. Stage actors return these; everything else
// that reaches the dispatcher unwrapped is treated as Internal.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func InvalidMedia(msg string) *Error  { return NewError(ErrKindInvalidMedia, msg) }
func NotFound(msg string) *Error      { return NewError(ErrKindNotFound, msg) }
func Conflict(msg string) *Error      { return NewError(ErrKindConflict, msg) }
func Cancelled(msg string) *Error     { return NewError(ErrKindCancelled, msg) }
func Serialization(err error) *Error  { return &Error{Kind: ErrKindSerialization, Err: err} }
func IoError(msg string, err error) *Error   { return WrapError(ErrKindIo, msg, err) }
func DatabaseError(err error) *Error  { return &Error{Kind: ErrKindDatabase, Err: err} }
func Internal(msg string) *Error      { return NewError(ErrKindInternal, msg) }
func Internalf(format string, args ...any) *Error {
	return Errorf(ErrKindInternal, format, args...)
}

// KindOf extracts the taxonomy kind from err. Unclassified errors come back
// as Internal so the transient-marker scan below still applies to them.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindInternal
}

// transientMarkers are the substrings of an Internal error message that
// mark it retryable (provider timeouts, connection churn, rate limits,
// upstream 503s).
var transientMarkers = []string{
	"timeout",
	"timed out",
	"temporar",
	"connection",
	"connect",
	"too many requests",
	"rate limit",
	"503",
	"unavailable",
}

// Retryable reports whether the dispatcher should requeue the job that
// produced err instead of dead-lettering it. Database errors always retry;
// Internal errors retry only when their message carries a transient marker.
func Retryable(err error) bool {
	switch KindOf(err) {
	case ErrKindDatabase:
		return true
	case ErrKindInternal:
		msg := strings.ToLower(err.Error())
		for _, marker := range transientMarkers {
			if strings.Contains(msg, marker) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
