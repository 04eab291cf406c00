// Package ffmpeg wraps the encoder toolchain binaries. The prober shells
// out to ffprobe for container/stream inspection; the transcoding engine in
// internal/transcode builds on the same package for encoding.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/logger"
)

// Prober inspects a media file's container and streams.
type Prober interface {
	Probe(ctx context.Context, path string) (ProbeResult, error)
}

// ProbeResult is the subset of ffprobe output the pipeline and the
// transcoder care about.
type ProbeResult struct {
	Container      string
	Duration       time.Duration
	Width          int
	Height         int
	VideoCodec     string
	BitDepth       int
	ColorTransfer  string
	ColorPrimaries string
	ColorSpace     string
	AudioTracks    []domain.AudioTrack
	SubtitleTracks []domain.SubtitleTrack
}

// ffprobeOutput mirrors the JSON ffprobe emits with -show_format and
// -show_streams.
type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		Index             int    `json:"index"`
		CodecType         string `json:"codec_type"`
		CodecName         string `json:"codec_name"`
		Width             int    `json:"width"`
		Height            int    `json:"height"`
		BitsPerRawSample  string `json:"bits_per_raw_sample"`
		PixFmt            string `json:"pix_fmt"`
		ColorTransfer     string `json:"color_transfer"`
		ColorPrimaries    string `json:"color_primaries"`
		ColorSpace        string `json:"color_space"`
		Channels          int    `json:"channels"`
		Tags              struct {
			Language string `json:"language"`
		} `json:"tags"`
	} `json:"streams"`
}

// FFprobe runs the ffprobe binary.
type FFprobe struct {
	bin string
}

func NewFFprobe(bin string) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{bin: bin}
}

func (f *FFprobe) Probe(ctx context.Context, path string) (ProbeResult, error) {
	log := logger.FromCtx(ctx)

	cmd := exec.CommandContext(ctx, f.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Debug("ffprobe failed", zap.String("path", path), zap.String("stderr", stderr.String()), zap.Error(err))
		if _, lookErr := exec.LookPath(f.bin); lookErr != nil {
			// the probe binary being gone is an operational problem, not a
			// statement about the file
			return ProbeResult{}, domain.Internalf("probe tool unavailable: %v", lookErr)
		}
		return ProbeResult{}, domain.InvalidMedia(fmt.Sprintf("unreadable media %s: %v", path, err))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return ProbeResult{}, domain.Serialization(err)
	}

	return out.toResult(), nil
}

func (o ffprobeOutput) toResult() ProbeResult {
	res := ProbeResult{Container: o.Format.FormatName}

	if secs, err := strconv.ParseFloat(o.Format.Duration, 64); err == nil {
		res.Duration = time.Duration(secs * float64(time.Second))
	}

	for _, s := range o.Streams {
		switch s.CodecType {
		case "video":
			// first video stream wins; attached cover art streams come later
			if res.VideoCodec != "" {
				continue
			}
			res.VideoCodec = s.CodecName
			res.Width = s.Width
			res.Height = s.Height
			res.ColorTransfer = s.ColorTransfer
			res.ColorPrimaries = s.ColorPrimaries
			res.ColorSpace = s.ColorSpace
			res.BitDepth = bitDepthOf(s.BitsPerRawSample, s.PixFmt)
		case "audio":
			res.AudioTracks = append(res.AudioTracks, domain.AudioTrack{
				Index:    s.Index,
				Codec:    s.CodecName,
				Language: s.Tags.Language,
				Channels: s.Channels,
			})
		case "subtitle":
			res.SubtitleTracks = append(res.SubtitleTracks, domain.SubtitleTrack{
				Index:    s.Index,
				Codec:    s.CodecName,
				Language: s.Tags.Language,
			})
		}
	}
	return res
}

// bitDepthOf prefers the explicit bits_per_raw_sample and falls back to
// sniffing the pixel format name (p010le, yuv420p10le and friends).
func bitDepthOf(bitsPerRawSample, pixFmt string) int {
	if n, err := strconv.Atoi(bitsPerRawSample); err == nil && n > 0 {
		return n
	}
	switch {
	case strings.Contains(pixFmt, "p016"), strings.Contains(pixFmt, "16le"), strings.Contains(pixFmt, "16be"):
		return 16
	case strings.Contains(pixFmt, "p012"), strings.Contains(pixFmt, "12le"), strings.Contains(pixFmt, "12be"):
		return 12
	case strings.Contains(pixFmt, "p010"), strings.Contains(pixFmt, "10le"), strings.Contains(pixFmt, "10be"):
		return 10
	}
	if pixFmt != "" {
		return 8
	}
	return 0
}
