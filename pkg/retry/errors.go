// Package retry is the single outbound-call retry policy shared by every
// source adapter. Adapters classify their failures with the typed errors here;
// the executor decides whether and when to try again.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// Class is the retry classification of a failure.
type Class int

const (
	// ClassRetryable failures are transient: timeouts, resets, throttling.
	ClassRetryable Class = iota
	// ClassPermanent failures will not improve with retries within this run.
	ClassPermanent
)

// TransientError marks a failure as retryable: network flakes, 5xx gateway
// errors, or a 200 whose body is throttling noise instead of the expected
// format.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// RateLimitedError marks a throttled call (429/503 or throttling text in a 200
// body). RetryAfter carries the server's hint when one was provided.
type RateLimitedError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return "rate limited: " + e.Err.Error() }
func (e *RateLimitedError) Unwrap() error { return e.Err }

// RateLimited wraps err as a throttled call with an optional server hint.
func RateLimited(err error, retryAfter time.Duration) error {
	if err == nil {
		return nil
	}
	return &RateLimitedError{Err: err, RetryAfter: retryAfter}
}

// PermanentError marks a failure that retrying cannot fix: 404s, missing
// expected fields, structurally valid but empty responses.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Classify maps an error to its retry class. Explicit markers win; otherwise
// network-shaped failures are retryable and everything else is permanent.
func Classify(err error) Class {
	if err == nil {
		return ClassPermanent
	}

	var transient *TransientError
	var limited *RateLimitedError
	var permanent *PermanentError
	switch {
	case errors.As(err, &permanent):
		return ClassPermanent
	case errors.As(err, &transient), errors.As(err, &limited):
		return ClassRetryable
	}

	// Cancellation of the surrounding run is never retried.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassPermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassRetryable
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassRetryable
	}

	return ClassPermanent
}

// IsPermanent reports whether err carries the explicit permanent marker.
// Pipelines use this to tell "record the row as checked and move on" apart
// from failures that should stop the run.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}

// RetryAfterHint extracts the server-provided retry delay, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var limited *RateLimitedError
	if errors.As(err, &limited) && limited.RetryAfter > 0 {
		return limited.RetryAfter, true
	}
	return 0, false
}
