package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/willow/pkg/retry"
)

func TestClassifyStatus(t *testing.T) {
	t.Run("2xx is nil", func(t *testing.T) {
		assert.NoError(t, ClassifyStatus(&Response{StatusCode: 200}))
		assert.NoError(t, ClassifyStatus(&Response{StatusCode: 204}))
	})

	t.Run("429 is rate limited with hint", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Retry-After", "30")
		err := ClassifyStatus(&Response{StatusCode: 429, Headers: headers})
		require.Error(t, err)

		hint, ok := retry.RetryAfterHint(err)
		require.True(t, ok)
		assert.Equal(t, 30*time.Second, hint)
	})

	t.Run("503 is rate limited", func(t *testing.T) {
		err := ClassifyStatus(&Response{StatusCode: 503, Headers: http.Header{}})
		var limited *retry.RateLimitedError
		assert.ErrorAs(t, err, &limited)
	})

	t.Run("other 5xx is transient", func(t *testing.T) {
		err := ClassifyStatus(&Response{StatusCode: 502})
		var transient *retry.TransientError
		assert.ErrorAs(t, err, &transient)
	})

	t.Run("remaining 4xx is permanent", func(t *testing.T) {
		assert.True(t, retry.IsPermanent(ClassifyStatus(&Response{StatusCode: 404})))
		assert.True(t, retry.IsPermanent(ClassifyStatus(&Response{StatusCode: 400})))
	})
}

func TestRetryAfterHeader(t *testing.T) {
	t.Run("seconds form", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Retry-After", "120")
		assert.Equal(t, 2*time.Minute, retryAfter(headers))
	})

	t.Run("http date form", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Retry-After", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))
		d := retryAfter(headers)
		assert.Greater(t, d, 50*time.Second)
		assert.LessOrEqual(t, d, time.Minute)
	})

	t.Run("absent or garbage is zero", func(t *testing.T) {
		assert.Zero(t, retryAfter(http.Header{}))
		headers := http.Header{}
		headers.Set("Retry-After", "soon")
		assert.Zero(t, retryAfter(headers))

		headers.Set("Retry-After", "-5")
		assert.Zero(t, retryAfter(headers))
	})
}
