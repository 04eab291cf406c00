package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHTTPClient struct {
	responses []*http.Response
	errs      []error
	calls     int
}

func (s *stubHTTPClient) Do(_ *http.Request) (*http.Response, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.responses[i], err
}

func TestRateLimitedClientDo(t *testing.T) {
	t.Run("error during request", func(t *testing.T) {
		stub := &stubHTTPClient{responses: []*http.Response{nil}, errs: []error{errors.New("http error")}}

		req, err := http.NewRequest("GET", "https://example.com", nil)
		require.NoError(t, err)

		client := NewRateLimitedClient(WithHTTPClient(stub))
		resp, err := client.Do(req)
		assert.Error(t, err)
		assert.Nil(t, resp)
	})

	t.Run("non 429 response", func(t *testing.T) {
		stub := &stubHTTPClient{responses: []*http.Response{{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewBufferString("ok")),
		}}}

		req, err := http.NewRequest("GET", "https://example.com", nil)
		require.NoError(t, err)

		client := NewRateLimitedClient(WithHTTPClient(stub))
		resp, err := client.Do(req)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("429 exhausts retries", func(t *testing.T) {
		resp429 := func() *http.Response {
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Body:       io.NopCloser(bytes.NewBufferString("slow down")),
			}
		}
		stub := &stubHTTPClient{responses: []*http.Response{resp429(), resp429()}}

		req, err := http.NewRequest("GET", "https://example.com", nil)
		require.NoError(t, err)

		client := NewRateLimitedClient(
			WithHTTPClient(stub),
			WithMaxRetries(2),
			WithBaseBackoff(time.Millisecond),
		)
		resp, err := client.Do(req)
		assert.ErrorContains(t, err, "rate limit exceeded after 2 retries")
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, 2, stub.calls)
	})

	t.Run("429 then success", func(t *testing.T) {
		stub := &stubHTTPClient{responses: []*http.Response{
			{
				StatusCode: http.StatusTooManyRequests,
				Body:       io.NopCloser(bytes.NewBufferString("slow down")),
			},
			{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString("ok")),
			},
		}}

		req, err := http.NewRequest("GET", "https://example.com", nil)
		require.NoError(t, err)

		client := NewRateLimitedClient(
			WithHTTPClient(stub),
			WithMaxRetries(3),
			WithBaseBackoff(time.Millisecond),
		)
		resp, err := client.Do(req)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2, stub.calls)
	})
}

func TestGetRetryAfterHonorsHeader(t *testing.T) {
	client := NewRateLimitedClient(WithBaseBackoff(time.Second))

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"2"}}}
	assert.Equal(t, 2*time.Second, client.getRetryAfter(resp, 0))
}

func TestGetRetryAfterBacksOffExponentially(t *testing.T) {
	client := NewRateLimitedClient(WithBaseBackoff(time.Second))

	got := client.getRetryAfter(&http.Response{}, 3)
	assert.GreaterOrEqual(t, got, 8*time.Second)
	assert.Less(t, got, 9*time.Second)
}
