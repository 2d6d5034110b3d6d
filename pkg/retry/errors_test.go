package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"explicit transient", Transient(errors.New("reset")), ClassRetryable},
		{"explicit rate limited", RateLimited(errors.New("429"), time.Second), ClassRetryable},
		{"explicit permanent", Permanent(errors.New("404")), ClassPermanent},
		{"wrapped permanent", fmt.Errorf("fetch: %w", Permanent(errors.New("404"))), ClassPermanent},
		{"context canceled", context.Canceled, ClassPermanent},
		{"deadline exceeded", context.DeadlineExceeded, ClassPermanent},
		{"net timeout", timeoutErr{}, ClassRetryable},
		{"connection reset", syscall.ECONNRESET, ClassRetryable},
		{"connection refused", syscall.ECONNREFUSED, ClassRetryable},
		{"unexpected eof", io.ErrUnexpectedEOF, ClassRetryable},
		{"plain error", errors.New("bad input"), ClassPermanent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(Permanent(errors.New("gone"))))
	assert.True(t, IsPermanent(fmt.Errorf("outer: %w", Permanent(errors.New("gone")))))
	assert.False(t, IsPermanent(Transient(errors.New("flaky"))))
	assert.False(t, IsPermanent(errors.New("plain")))
}

func TestRetryAfterHint(t *testing.T) {
	hint, ok := RetryAfterHint(RateLimited(errors.New("429"), 30*time.Second))
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, hint)

	_, ok = RetryAfterHint(RateLimited(errors.New("429"), 0))
	assert.False(t, ok)

	_, ok = RetryAfterHint(Transient(errors.New("reset")))
	assert.False(t, ok)
}

func TestWrappersPreserveCause(t *testing.T) {
	cause := errors.New("root cause")
	assert.ErrorIs(t, Transient(cause), cause)
	assert.ErrorIs(t, Permanent(cause), cause)
	assert.ErrorIs(t, RateLimited(cause, time.Second), cause)
	assert.Nil(t, Transient(nil))
	assert.Nil(t, Permanent(nil))
	assert.Nil(t, RateLimited(nil, time.Second))
}
