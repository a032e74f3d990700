package collab

import (
	"errors"
	"fmt"
)

// ErrorKind classifies collaborator failures for retry decisions.
type ErrorKind int

const (
	// KindUnknown is an unclassified failure. Not retried.
	KindUnknown ErrorKind = iota
	// KindNetwork is a transient network failure. Retried with backoff.
	KindNetwork
	// KindAuth is an authentication/authorization failure. Never retried.
	KindAuth
	// KindRateLimited means the collaborator was throttled. Retried with backoff.
	KindRateLimited
	// KindInvalidInput means the input can never succeed. Never retried.
	KindInvalidInput
)

// String returns a human-readable representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate limited"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	return k == KindNetwork || k == KindRateLimited
}

// Error is a typed collaborator failure.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Op names the operation that failed, e.g. "ytdlp: download".
	Op string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed collaborator error.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the error kind from err, or KindUnknown if err is not a
// collaborator error.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
