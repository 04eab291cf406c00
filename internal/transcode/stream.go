package transcode

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/logger"
)

// StreamArgs builds the argument list for a one-shot mpegts encode to
// stdout, the "transcode while streaming" path that never touches the
// segment cache.
func StreamArgs(inputPath string, variant Variant, isHDR bool, hw Hardware, renderNode string) []string {
	args := []string{"-hide_banner", "-nostats", "-loglevel", "error"}

	if hw == HardwareVAAPI {
		if renderNode == "" {
			renderNode = defaultRenderNode
		}
		args = append(args,
			"-hwaccel", "vaapi",
			"-hwaccel_device", renderNode,
			"-hwaccel_output_format", "vaapi",
		)
	}

	var rc RateControl
	if isHDR {
		rc = hdrRateControl(variant.Height)
	} else {
		rc = sdrRateControl(variant)
	}

	args = append(args,
		"-fflags", "+genpts+discardcorrupt+nobuffer",
		"-i", inputPath,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:a", "aac",
		"-b:a", "192k",
		"-vf", FilterChain(isHDR, hw, variant.Width, variant.Height),
	)

	switch hw {
	case HardwareAMF:
		args = append(args, "-c:v", "h264_amf", "-usage", "lowlatency", "-quality", "speed", "-rc", "cbr")
	case HardwareVAAPI:
		args = append(args, "-c:v", "h264_vaapi")
	default:
		args = append(args, "-c:v", "libx264", "-preset", "veryfast", "-tune", "zerolatency")
	}

	args = append(args,
		"-b:v", rc.Bitrate,
		"-maxrate", rc.Maxrate,
		"-bufsize", rc.Bufsize,
		"-avoid_negative_ts", "make_zero",
		"-fps_mode", "cfr",
		"-g", "48",
		"-keyint_min", "24",
		"-sc_threshold", "0",
		"-max_delay", "500000",
		"-muxdelay", "0.1",
		"-muxpreload", "0.5",
		"-max_muxing_queue_size", "1024",
		"-f", "mpegts",
		"pipe:1",
	)
	return args
}

// StreamTo encodes media live into w, holding a worker slot for the whole
// stream. The HDR check and the 307 redirect for SDR sources live at the
// HTTP layer; this always encodes.
func (s *Service) StreamTo(ctx context.Context, mediaID int64, variantName string, w io.Writer) error {
	variant, ok := VariantByName(variantName)
	if !ok {
		return ErrUnsupportedVariant
	}

	path, src, err := s.analyzeSource(ctx, mediaID)
	if err != nil {
		return err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	bin := s.cfg.FFmpegBin
	if bin == "" {
		bin = "ffmpeg"
	}

	args := StreamArgs(path, variant, src.IsHDR, s.detector.Hardware(ctx), s.cfg.RenderNode)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = w

	logger.FromCtx(ctx).Debug("starting live transcode stream",
		zap.Int64("media_id", mediaID),
		zap.String("variant", variant.Name))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// the client went away; not an encoder failure
			return nil
		}
		return fmt.Errorf("live transcode for media %s failed: %w", strconv.FormatInt(mediaID, 10), err)
	}
	return nil
}

// IsSourceHDR answers the HTTP layer's redirect decision for the live
// transcode endpoint.
func (s *Service) IsSourceHDR(ctx context.Context, mediaID int64) (bool, error) {
	_, src, err := s.analyzeSource(ctx, mediaID)
	if err != nil {
		return false, err
	}
	return src.IsHDR, nil
}
