package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanLadderExcludesUpscales(t *testing.T) {
	names := func(vs []Variant) []string {
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			out = append(out, v.Name)
		}
		return out
	}

	plan := PlanLadder(1920, 1080)
	assert.Equal(t, []string{"360p", "480p", "720p", "1080p"}, names(plan))

	plan = PlanLadder(3840, 2160)
	assert.Equal(t, []string{"360p", "480p", "720p", "1080p", "4k"}, names(plan))

	plan = PlanLadder(7680, 4320)
	assert.Equal(t, []string{"360p", "480p", "720p", "1080p", "4k", "original"}, names(plan))

	plan = PlanLadder(640, 360)
	assert.Equal(t, []string{"360p"}, names(plan))

	assert.Nil(t, PlanLadder(0, 0))
}

func TestVariantByName(t *testing.T) {
	v, ok := VariantByName("1080p")
	require.True(t, ok)
	assert.Equal(t, 1920, v.Width)
	assert.Equal(t, 5_000_000, v.Bandwidth)

	v, ok = VariantByName("adaptive_720p")
	require.True(t, ok)
	assert.Equal(t, "720p", v.Name)

	_, ok = VariantByName("1440p")
	assert.False(t, ok)
}
