package transcode

import (
	"regexp"
	"strings"

	"github.com/arcstream/arcstream/internal/ffmpeg"
)

// hdrTransfers are the transfer characteristics that mark HDR content.
var hdrTransfers = map[string]struct{}{
	"smpte2084":    {}, // PQ / HDR10
	"arib-std-b67": {}, // HLG
	"smpte2086":    {},
}

var hdrFilenameRe = regexp.MustCompile(`(?i)\b(2160p|UHD|HDR|DV)\b`)

// IsHDR reports whether the probed source is high dynamic range: more than
// 8 bits, an HDR transfer function, or bt2020 primaries.
func IsHDR(probe ffmpeg.ProbeResult) bool {
	if probe.BitDepth > 8 {
		return true
	}
	if _, ok := hdrTransfers[strings.ToLower(probe.ColorTransfer)]; ok {
		return true
	}
	if strings.Contains(strings.ToLower(probe.ColorPrimaries), "bt2020") {
		return true
	}
	return false
}

// IsHDRFilename is the fallback when a probe is unavailable: release names
// reliably tag UHD/HDR content.
func IsHDRFilename(name string) bool {
	return hdrFilenameRe.MatchString(name)
}
