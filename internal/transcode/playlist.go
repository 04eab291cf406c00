package transcode

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// PlaceholderPlaylist is served (with 202) while a variant is still
// spinning up; players treat the EVENT type as "poll me again".
const PlaceholderPlaylist = "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-PLAYLIST-TYPE:EVENT\n# Transcoding in progress..."

// MasterPlaylist renders the HLS master for the given variants, sorted by
// quality ascending.
func MasterPlaylist(variants []Variant) string {
	sorted := make([]Variant, len(variants))
	copy(sorted, variants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Height < sorted[j].Height })

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n\n")
	for _, v := range sorted {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n", v.Bandwidth, v.Width, v.Height)
		fmt.Fprintf(&b, "variant/%s/playlist.m3u8\n\n", v.DirName())
	}
	return b.String()
}

// SynthesizeMaster scans a media's cache directory for adaptive_* variant
// directories whose playlist exists and renders a master from them. The
// result is persisted so the next request serves the file directly.
func SynthesizeMaster(mediaDir string) (string, []Variant, error) {
	entries, err := os.ReadDir(mediaDir)
	if err != nil {
		return "", nil, err
	}

	var ready []Variant
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), adaptivePrefix) {
			continue
		}
		variant, ok := VariantByName(e.Name())
		if !ok {
			continue
		}
		if _, err := os.Stat(filepath.Join(mediaDir, e.Name(), "playlist.m3u8")); err != nil {
			continue
		}
		ready = append(ready, variant)
	}

	if len(ready) == 0 {
		return "", nil, os.ErrNotExist
	}

	master := MasterPlaylist(ready)
	if err := os.WriteFile(filepath.Join(mediaDir, "master.m3u8"), []byte(master), 0o644); err != nil {
		return "", nil, err
	}
	return master, ready, nil
}

var segmentLineRe = regexp.MustCompile(`(?m)^(segment_\d+\.ts)$`)

// RewriteSegmentPaths replaces the encoder's relative segment names with
// the absolute HTTP paths clients fetch them from.
func RewriteSegmentPaths(playlist, mediaID, variantDir string) string {
	prefix := fmt.Sprintf("/transcode/%s/variant/%s/", mediaID, variantDir)
	return segmentLineRe.ReplaceAllString(playlist, prefix+"$1")
}

// HasSegments reports whether a variant playlist references at least one
// produced segment, the gate for returning a partial playlist to a player.
func HasSegments(playlist string) bool {
	return strings.Contains(playlist, "#EXTINF:")
}
