package httpclient

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call so callers can map it to domain behavior
// without string matching.
type Kind int

const (
	// KindNetwork means no response was received (connection reset, DNS failure).
	KindNetwork Kind = iota
	// KindTimeout means an attempt exceeded its per-attempt timeout.
	KindTimeout
	// KindStatus means a response was received with status >= 400.
	KindStatus
	// KindCanceled means the caller aborted the call via its context.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindStatus:
		return "status"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the typed failure surfaced by every client call.
type Error struct {
	Kind     Kind
	Method   string
	URL      string
	Status   int    // HTTP status, when a response was received
	Attempts int    // total attempts made for the logical call
	Body     []byte // raw error body, when a response was received
	Err      error  // underlying transport error, when any
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s %s: status %d after %d attempt(s)", e.Method, e.URL, e.Status, e.Attempts)
	case KindTimeout:
		return fmt.Sprintf("%s %s: attempt timed out after %d attempt(s)", e.Method, e.URL, e.Attempts)
	case KindCanceled:
		return fmt.Sprintf("%s %s: canceled by caller", e.Method, e.URL)
	default:
		return fmt.Sprintf("%s %s: network error after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// retryable reports whether this failure participates in the retry policy.
func (e *Error) retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindStatus:
		return e.Status >= 500 || e.Status == 429
	default:
		return false
	}
}

// AsError extracts the typed client error from err, if present.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsKind reports whether err is a client error of the given kind.
func IsKind(err error, k Kind) bool {
	if ce, ok := AsError(err); ok {
		return ce.Kind == k
	}
	return false
}

// IsTimeout reports whether err is a per-attempt timeout failure.
func IsTimeout(err error) bool { return IsKind(err, KindTimeout) }

// IsNetwork reports whether err is a transport failure with no response.
func IsNetwork(err error) bool { return IsKind(err, KindNetwork) }

// IsCanceled reports whether err is a caller-initiated abort.
func IsCanceled(err error) bool { return IsKind(err, KindCanceled) }

// StatusOf returns the HTTP status carried by err, or 0 when none was received.
func StatusOf(err error) int {
	if ce, ok := AsError(err); ok {
		return ce.Status
	}
	return 0
}
