// Package errors provides a structured error type with wrapping and metadata
// for the seven error kinds the fetch/decode/aggregate pipeline and job
// supervisor distinguish: Transient, Permanent, EmptyHour, Corrupt,
// OrderViolation, IO and ControlConflict.
package errors

import (
	stderrs "errors"
	"fmt"
)

// Kind classifies an error the way the Supervisor needs to decide
// retry-vs-abort. Values are stable; add sparingly.
type Kind uint8

const (
	// KindUnknown is for unclassified errors
	KindUnknown Kind = iota

	// KindTransient covers network failures, 5xx, 429, timeouts. The
	// Fetcher retries these internally; they only surface after the
	// retry budget is exhausted
	KindTransient

	// KindPermanent covers 4xx other than 404/429: a misconfiguration
	// (bad URL, bad instrument mapping). Stops the task immediately
	KindPermanent

	// KindEmptyHour is not an error condition; it models an hour the
	// archive has nothing to publish for (404 or empty body)
	KindEmptyHour

	// KindCorrupt covers LZMA decode failure or record-boundary
	// misalignment. Logged, the hour is skipped and marked missing,
	// non-fatal to the task
	KindCorrupt

	// KindOrderViolation is a programmer error: the aggregator
	// received a backwards-moving timestamp. Fatal to the aggregation
	// step, not to the fetch
	KindOrderViolation

	// KindIO covers State Store read/write failures. If persistent,
	// fatal to the Supervisor since progress can no longer be
	// advanced safely
	KindIO

	// KindControlConflict is raised when starting a job whose lock is
	// already held
	KindControlConflict
)

// String names the kind for logging
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindEmptyHour:
		return "empty_hour"
	case KindCorrupt:
		return "corrupt"
	case KindOrderViolation:
		return "order_violation"
	case KindIO:
		return "io"
	case KindControlConflict:
		return "control_conflict"
	default:
		return "unknown"
	}
}

// Error is the structured error type with wrapping and metadata.
// msg is human/developer facing; kind is machine facing; op is an optional
// operation tag (e.g. "fetch eurusd 2024-01-07T10"); orig is the wrapped cause
type Error struct {
	orig error
	msg  string
	kind Kind
	op   string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	s := e.msg
	if e.op != "" {
		s = e.op + ": " + s
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", s, e.orig)
	}
	return s
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Kind returns the error kind
func (e *Error) Kind() Kind { return e.kind }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// KindOf extracts a Kind from any error, defaulting to KindUnknown
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, k Kind) bool { return KindOf(err) == k }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err
// isn't *Error, wraps it into one with KindUnknown so the label still sticks
func WithOp(err error, op string) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return &Error{kind: KindUnknown, msg: err.Error(), op: op, orig: err}
}

// Constructors

// New returns a new *Error with the given kind and message
func New(k Kind, msg string) error { return &Error{kind: k, msg: msg} }

// Newf returns a new *Error with kind and formatted message
func Newf(k Kind, format string, a ...any) error {
	return &Error{kind: k, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with kind and message
func Wrap(orig error, k Kind, msg string) error {
	return &Error{kind: k, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with kind and formatted message
func Wrapf(orig error, k Kind, format string, a ...any) error {
	return &Error{kind: k, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WrapIf wraps only when err != nil (helper for 1-liners)
func WrapIf(err error, k Kind, msg string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, k, msg)
}

// Sugar

// Transientf returns a transient error
func Transientf(format string, a ...any) error { return Newf(KindTransient, format, a...) }

// Permanentf returns a permanent error
func Permanentf(format string, a ...any) error { return Newf(KindPermanent, format, a...) }

// Corruptf returns a corrupt-data error
func Corruptf(format string, a ...any) error { return Newf(KindCorrupt, format, a...) }

// OrderViolationf returns an aggregator order-violation error
func OrderViolationf(format string, a ...any) error { return Newf(KindOrderViolation, format, a...) }

// IOf returns a state-store IO error
func IOf(format string, a ...any) error { return Newf(KindIO, format, a...) }

// ControlConflictf returns a lock-contention error
func ControlConflictf(format string, a ...any) error { return Newf(KindControlConflict, format, a...) }

// Retry semantics

// Retryable reports whether the error is one the Fetcher or Supervisor
// should retry: only KindTransient qualifies
func Retryable(err error) bool { return KindOf(err) == KindTransient }
