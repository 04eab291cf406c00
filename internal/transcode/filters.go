package transcode

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// RateControl is the bitrate/maxrate/bufsize triple an encode targets.
type RateControl struct {
	Bitrate string
	Maxrate string
	Bufsize string
}

// hdrRateControl keys the HDR output targets by vertical resolution.
func hdrRateControl(height int) RateControl {
	switch {
	case height >= 2160:
		return RateControl{Bitrate: "25M", Maxrate: "30M", Bufsize: "10M"}
	case height >= 1440:
		return RateControl{Bitrate: "15M", Maxrate: "18M", Bufsize: "6M"}
	default:
		return RateControl{Bitrate: "10M", Maxrate: "12M", Bufsize: "4M"}
	}
}

// sdrRateControl targets the ladder's advertised bandwidth.
func sdrRateControl(v Variant) RateControl {
	b := v.Bandwidth
	return RateControl{
		Bitrate: bitrateString(b),
		Maxrate: bitrateString(b + b/5),
		Bufsize: bitrateString(b * 2),
	}
}

func bitrateString(bps int) string {
	if bps%1_000_000 == 0 {
		return strconv.Itoa(bps/1_000_000) + "M"
	}
	return strconv.Itoa(bps/1000) + "k"
}

// FilterChain produces the -vf graph for an (isHDR, hardware) pair. The
// HDR→SDR transform is always the Hable operator with desat=0 over p010le
// surfaces; what differs per backend is where the frames live before and
// after it.
func FilterChain(isHDR bool, hw Hardware, width, height int) string {
	scale := fmt.Sprintf("scale=%d:%d:flags=fast_bilinear", width, height)

	if isHDR {
		switch hw {
		case HardwareVAAPI:
			// frames arrive on VAAPI surfaces; tone mapping runs on CPU
			// frames, then the result is uploaded back for the encoder
			return fmt.Sprintf("hwdownload,format=p010le,%s,tonemap=hable:desat=0,format=nv12,hwupload", scale)
		case HardwareAMF:
			return fmt.Sprintf("setpts=PTS-STARTPTS,%s,format=p010le,tonemap=hable:desat=0,format=nv12", scale)
		default:
			// the software chain is deliberately minimal to hold real time
			return fmt.Sprintf("setpts=PTS-STARTPTS,%s,format=p010le,tonemap=hable:desat=0,format=yuv420p", scale)
		}
	}

	switch hw {
	case HardwareVAAPI:
		return fmt.Sprintf("scale_vaapi=w=%d:h=%d:format=nv12", width, height)
	case HardwareAMF:
		return fmt.Sprintf("setpts=PTS-STARTPTS,%s,format=nv12", scale)
	default:
		return fmt.Sprintf("setpts=PTS-STARTPTS,%s,format=yuv420p", scale)
	}
}

// EncodeSpec is everything BuildArgs needs to shape one encoder process.
type EncodeSpec struct {
	InputPath  string
	OutputDir  string
	Variant    Variant
	IsHDR      bool
	Hardware   Hardware
	RenderNode string
	// SegmentSeconds defaults to 6.
	SegmentSeconds int
}

// PlaylistPath is where the variant playlist lands.
func (s EncodeSpec) PlaylistPath() string {
	return filepath.Join(s.OutputDir, "playlist.m3u8")
}

// BuildArgs assembles the full ffmpeg argument list: input handling,
// stream mapping (first video + first audio, audio copied), the filter
// graph, encoder settings, the timing hygiene the players depend on, and
// HLS segmentation.
func BuildArgs(spec EncodeSpec) []string {
	segSeconds := spec.SegmentSeconds
	if segSeconds <= 0 {
		segSeconds = 6
	}

	args := []string{"-hide_banner", "-nostats"}

	if spec.Hardware == HardwareVAAPI {
		node := spec.RenderNode
		if node == "" {
			node = defaultRenderNode
		}
		args = append(args,
			"-hwaccel", "vaapi",
			"-hwaccel_device", node,
			"-hwaccel_output_format", "vaapi",
		)
	}

	args = append(args,
		"-fflags", "+genpts+discardcorrupt+nobuffer",
		"-i", spec.InputPath,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:a", "copy",
		"-vf", FilterChain(spec.IsHDR, spec.Hardware, spec.Variant.Width, spec.Variant.Height),
	)

	var rc RateControl
	if spec.IsHDR {
		rc = hdrRateControl(spec.Variant.Height)
	} else {
		rc = sdrRateControl(spec.Variant)
	}

	switch spec.Hardware {
	case HardwareAMF:
		args = append(args,
			"-c:v", "h264_amf",
			"-usage", "lowlatency",
			"-quality", "speed",
			"-rc", "cbr",
			"-b:v", rc.Bitrate,
			"-maxrate", rc.Maxrate,
			"-bufsize", rc.Bufsize,
		)
	case HardwareVAAPI:
		args = append(args,
			"-c:v", "h264_vaapi",
			"-b:v", rc.Bitrate,
			"-maxrate", rc.Maxrate,
			"-bufsize", rc.Bufsize,
		)
	default:
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-b:v", rc.Bitrate,
			"-maxrate", rc.Maxrate,
			"-bufsize", rc.Bufsize,
		)
	}

	args = append(args,
		// timing hygiene: constant GOPs and clean timestamps so clients
		// can seek segment boundaries reliably
		"-avoid_negative_ts", "make_zero",
		"-fps_mode", "cfr",
		"-start_at_zero", "1",
		"-g", "48",
		"-keyint_min", "24",
		"-sc_threshold", "0",
		// strip SEI NAL units that disturb client seeking
		"-bsf:v", "dump_extra",
		"-max_delay", "500000",
		"-muxdelay", "0.1",
		"-muxpreload", "0.5",
		"-max_muxing_queue_size", "1024",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segSeconds),
		"-hls_playlist_type", "event",
		"-hls_segment_filename", filepath.Join(spec.OutputDir, "segment_%05d.ts"),
		"-progress", "pipe:1",
		spec.PlaylistPath(),
	)

	return args
}
