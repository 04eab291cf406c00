package transcode

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const progressStream = `frame=120
fps=60.02
bitrate=4500.3kbits/s
out_time_us=4000000
out_time=00:00:04.000000
speed=2.0x
progress=continue
frame=240
fps=59.80
bitrate=4400.1kbits/s
out_time_us=8000000
out_time=00:00:08.000000
speed=2.0x
progress=end
`

func TestParseProgress(t *testing.T) {
	var updates []Progress
	err := ParseProgress(strings.NewReader(progressStream), func(p Progress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)
	require.Len(t, updates, 2)

	first := updates[0]
	assert.Equal(t, int64(120), first.Frame)
	assert.InDelta(t, 60.02, first.FPS, 0.001)
	assert.Equal(t, "4500.3kbits/s", first.Bitrate)
	assert.Equal(t, 4*time.Second, first.OutTime)
	assert.False(t, first.Done)

	last := updates[1]
	assert.Equal(t, 8*time.Second, last.OutTime)
	assert.True(t, last.Done)
}

func TestProgressRatioAndETA(t *testing.T) {
	p := Progress{OutTime: 30 * time.Minute, Speed: 2.0}
	source := 90 * time.Minute

	assert.InDelta(t, 1.0/3.0, p.Ratio(source), 0.001)
	assert.Equal(t, 30*time.Minute, p.ETA(source), "60 minutes left at 2x speed")

	stalled := Progress{OutTime: 10 * time.Minute, Speed: 0}
	assert.Equal(t, time.Duration(0), stalled.ETA(source), "no speed, no fabricated estimate")

	assert.Equal(t, 1.0, Progress{OutTime: 2 * source}.Ratio(source), "ratio clamps at 1")
	assert.Equal(t, 0.0, Progress{}.Ratio(0), "unknown duration yields zero, not a division by zero")
}

func TestParseClock(t *testing.T) {
	d, err := parseClock("01:02:03.500000")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second+500*time.Millisecond, d)

	_, err = parseClock("garbage")
	assert.Error(t, err)
}
