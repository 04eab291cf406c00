package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrKindInvalidMedia, KindOf(InvalidMedia("bad container")))
	assert.Equal(t, ErrKindDatabase, KindOf(DatabaseError(errors.New("locked"))))
	assert.Equal(t, ErrKindInternal, KindOf(errors.New("untyped")))

	wrapped := fmt.Errorf("stage failed: %w", NotFound("movie 42"))
	assert.Equal(t, ErrKindNotFound, KindOf(wrapped))
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"database always retries", DatabaseError(errors.New("disk i/o error")), true},
		{"internal timeout", Internal("tmdb timeout"), true},
		{"internal timed out", Internal("request timed out after 10s"), true},
		{"internal temporary", Internal("temporary failure in name resolution"), true},
		{"internal connection refused", Internal("connection refused"), true},
		{"internal rate limit", Internal("tmdb rate limit hit"), true},
		{"internal 503", Internal("upstream returned 503"), true},
		{"internal unavailable", Internal("service unavailable"), true},
		{"internal other", Internal("nil pointer in projection"), false},
		{"invalid media", InvalidMedia("missing_primary_poster:movie:42"), false},
		{"not found", NotFound("file"), false},
		{"conflict", Conflict("dedupe"), false},
		{"cancelled", Cancelled("user stop"), false},
		{"serialization", Serialization(errors.New("bad json")), false},
		{"io", IoError("stat", errors.New("permission denied")), false},
		{"untyped with transient text", errors.New("connect: connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := WrapError(ErrKindIo, "stat /lib", errors.New("permission denied"))
	assert.Contains(t, err.Error(), "io")
	assert.Contains(t, err.Error(), "stat /lib")
	assert.Contains(t, err.Error(), "permission denied")

	var typed *Error
	assert.True(t, errors.As(err, &typed))
}
