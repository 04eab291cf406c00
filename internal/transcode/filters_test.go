package transcode

import (
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
)

func TestFilterChainHDR(t *testing.T) {
	sw := FilterChain(true, HardwareSoftware, 1920, 1080)
	assert.Equal(t, "setpts=PTS-STARTPTS,scale=1920:1080:flags=fast_bilinear,format=p010le,tonemap=hable:desat=0,format=yuv420p", sw)

	amf := FilterChain(true, HardwareAMF, 1920, 1080)
	assert.Contains(t, amf, "tonemap=hable:desat=0")
	assert.True(t, strings.HasSuffix(amf, "format=nv12"))

	vaapi := FilterChain(true, HardwareVAAPI, 1920, 1080)
	assert.True(t, strings.HasPrefix(vaapi, "hwdownload,format=p010le"))
	assert.True(t, strings.HasSuffix(vaapi, "hwupload"))
}

func TestFilterChainSDR(t *testing.T) {
	assert.Equal(t, "scale_vaapi=w=1280:h=720:format=nv12", FilterChain(false, HardwareVAAPI, 1280, 720))
	assert.Equal(t, "setpts=PTS-STARTPTS,scale=1280:720:flags=fast_bilinear,format=yuv420p", FilterChain(false, HardwareSoftware, 1280, 720))
}

func TestHDRRateControl(t *testing.T) {
	assert.Equal(t, RateControl{"25M", "30M", "10M"}, hdrRateControl(2160))
	assert.Equal(t, RateControl{"15M", "18M", "6M"}, hdrRateControl(1440))
	assert.Equal(t, RateControl{"10M", "12M", "4M"}, hdrRateControl(1080))
}

func TestBuildArgsSnapshots(t *testing.T) {
	variant, _ := VariantByName("1080p")

	t.Run("hdr software", func(t *testing.T) {
		args := BuildArgs(EncodeSpec{
			InputPath: "/media/movie.mkv",
			OutputDir: "/cache/42/adaptive_1080p",
			Variant:   variant,
			IsHDR:     true,
			Hardware:  HardwareSoftware,
		})
		snaps.MatchSnapshot(t, strings.Join(args, " "))
	})

	t.Run("hdr amf", func(t *testing.T) {
		args := BuildArgs(EncodeSpec{
			InputPath: "/media/movie.mkv",
			OutputDir: "/cache/42/adaptive_1080p",
			Variant:   variant,
			IsHDR:     true,
			Hardware:  HardwareAMF,
		})
		snaps.MatchSnapshot(t, strings.Join(args, " "))
	})

	t.Run("sdr vaapi", func(t *testing.T) {
		args := BuildArgs(EncodeSpec{
			InputPath:  "/media/movie.mkv",
			OutputDir:  "/cache/42/adaptive_720p",
			Variant:    Ladder[2],
			IsHDR:      false,
			Hardware:   HardwareVAAPI,
			RenderNode: "/dev/dri/renderD128",
		})
		snaps.MatchSnapshot(t, strings.Join(args, " "))
	})
}

func TestBuildArgsTimingHygiene(t *testing.T) {
	args := strings.Join(BuildArgs(EncodeSpec{
		InputPath: "/in.mkv",
		OutputDir: "/out",
		Variant:   Ladder[3],
		Hardware:  HardwareSoftware,
	}), " ")

	for _, flag := range []string{
		"-fflags +genpts+discardcorrupt+nobuffer",
		"-avoid_negative_ts make_zero",
		"-fps_mode cfr",
		"-start_at_zero 1",
		"-g 48",
		"-keyint_min 24",
		"-sc_threshold 0",
		"-bsf:v dump_extra",
		"-max_delay 500000",
		"-muxdelay 0.1",
		"-muxpreload 0.5",
		"-max_muxing_queue_size 1024",
		"-map 0:v:0",
		"-c:a copy",
	} {
		assert.Contains(t, args, flag)
	}
}
