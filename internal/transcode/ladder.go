// Package transcode is the on-demand adaptive transcoding engine: source
// analysis, hardware detection, quality-ladder planning, encoder worker
// management, progress tracking and HLS playlist serving.
package transcode

import "fmt"

// Variant is one rung of the adaptive quality ladder.
type Variant struct {
	Name      string
	Width     int
	Height    int
	// Bandwidth is what the master playlist advertises; SDR encodes also
	// use it as their bitrate target (HDR encodes use hdrRateControl).
	Bandwidth int
}

// originalHeight is a sort sentinel: "original" must order above every
// concrete rung regardless of the real source dimensions.
const originalHeight = 4320

// Ladder is the fixed set of supported variants, ascending.
var Ladder = []Variant{
	{Name: "360p", Width: 640, Height: 360, Bandwidth: 1_000_000},
	{Name: "480p", Width: 854, Height: 480, Bandwidth: 2_000_000},
	{Name: "720p", Width: 1280, Height: 720, Bandwidth: 3_000_000},
	{Name: "1080p", Width: 1920, Height: 1080, Bandwidth: 5_000_000},
	{Name: "4k", Width: 3840, Height: 2160, Bandwidth: 20_000_000},
	{Name: "original", Width: 7680, Height: originalHeight, Bandwidth: 50_000_000},
}

// VariantByName resolves a ladder rung; the adaptive_ prefix used in cache
// directory names is accepted too.
func VariantByName(name string) (Variant, bool) {
	trimmed := name
	if len(trimmed) > len(adaptivePrefix) && trimmed[:len(adaptivePrefix)] == adaptivePrefix {
		trimmed = trimmed[len(adaptivePrefix):]
	}
	for _, v := range Ladder {
		if v.Name == trimmed {
			return v, true
		}
	}
	return Variant{}, false
}

const adaptivePrefix = "adaptive_"

// DirName is the cache subdirectory a variant encodes into.
func (v Variant) DirName() string {
	return adaptivePrefix + v.Name
}

// PlanLadder selects the rungs that do not upscale beyond the source
// height. Sources above the top concrete rung additionally get "original".
func PlanLadder(srcWidth, srcHeight int) []Variant {
	if srcHeight <= 0 {
		return nil
	}

	var plan []Variant
	for _, v := range Ladder {
		if v.Name == "original" {
			if srcHeight > 2160 {
				plan = append(plan, v)
			}
			continue
		}
		if v.Height <= srcHeight {
			plan = append(plan, v)
		}
	}
	return plan
}

func (v Variant) String() string {
	return fmt.Sprintf("%s (%dx%d @ %d)", v.Name, v.Width, v.Height, v.Bandwidth)
}
