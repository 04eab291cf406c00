package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	const size = 10_000

	tests := []struct {
		name      string
		header    string
		wantStart int64
		wantEnd   int64
		wantNil   bool
	}{
		{"simple range", "bytes=100-199", 100, 199, false},
		{"single byte", "bytes=0-0", 0, 0, false},
		{"suffix range", "bytes=-5", 9995, 9999, false},
		{"prefix range", "bytes=5-", 5, 9999, false},
		{"clamped end", "bytes=9000-20000", 9000, 9999, false},
		{"oversized suffix", "bytes=-99999", 0, 9999, false},
		{"start past eof falls through", "bytes=9999999-", 0, 0, true},
		{"inverted", "bytes=200-100", 0, 0, true},
		{"no header", "", 0, 0, true},
		{"not bytes", "items=0-1", 0, 0, true},
		{"garbage", "bytes=abc-def", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseRange(tt.header, size)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantStart, got.start)
			assert.Equal(t, tt.wantEnd, got.end)
		})
	}
}

func TestParseRangeContentLength(t *testing.T) {
	rng := parseRange("bytes=100-199", 10_000)
	require.NotNil(t, rng)
	assert.Equal(t, int64(100), rng.end-rng.start+1)
}
