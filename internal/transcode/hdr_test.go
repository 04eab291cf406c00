package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcstream/arcstream/internal/ffmpeg"
)

func TestIsHDR(t *testing.T) {
	tests := []struct {
		name  string
		probe ffmpeg.ProbeResult
		want  bool
	}{
		{"10-bit", ffmpeg.ProbeResult{BitDepth: 10}, true},
		{"pq transfer", ffmpeg.ProbeResult{BitDepth: 8, ColorTransfer: "smpte2084"}, true},
		{"hlg transfer", ffmpeg.ProbeResult{BitDepth: 8, ColorTransfer: "arib-std-b67"}, true},
		{"bt2020 primaries", ffmpeg.ProbeResult{BitDepth: 8, ColorPrimaries: "bt2020"}, true},
		{"plain sdr", ffmpeg.ProbeResult{BitDepth: 8, ColorTransfer: "bt709", ColorPrimaries: "bt709"}, false},
		{"unknown", ffmpeg.ProbeResult{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHDR(tt.probe))
		})
	}
}

func TestIsHDRFilename(t *testing.T) {
	assert.True(t, IsHDRFilename("Movie.2019.2160p.WEB-DL.mkv"))
	assert.True(t, IsHDRFilename("Movie UHD BluRay.mkv"))
	assert.True(t, IsHDRFilename("Movie.HDR.mkv"))
	assert.True(t, IsHDRFilename("Movie.DV.mkv"))
	assert.False(t, IsHDRFilename("Movie.1080p.BluRay.mkv"))
	assert.False(t, IsHDRFilename("DVDRip.mkv"), "DV must match as a word, not inside DVDRip")
}
