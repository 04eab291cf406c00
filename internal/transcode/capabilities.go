package transcode

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/logger"
)

// Hardware is the encoder backend the capability probe settled on.
type Hardware string

const (
	HardwareAMF      Hardware = "amf"
	HardwareVAAPI    Hardware = "vaapi"
	HardwareSoftware Hardware = "software"
)

const defaultRenderNode = "/dev/dri/renderD128"

// CommandRunner abstracts the ffmpeg invocations the detector makes, so
// tests can script toolchain behavior.
type CommandRunner interface {
	// Output runs the binary with args and returns combined output.
	Output(ctx context.Context, bin string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// Detector probes the encoder toolchain once and caches the verdict for
// the life of the process.
type Detector struct {
	bin        string
	renderNode string
	runner     CommandRunner

	once     sync.Once
	hardware Hardware
}

type DetectorOption func(*Detector)

func WithRunner(r CommandRunner) DetectorOption {
	return func(d *Detector) { d.runner = r }
}

func WithRenderNode(path string) DetectorOption {
	return func(d *Detector) { d.renderNode = path }
}

func NewDetector(ffmpegBin string, opts ...DetectorOption) *Detector {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	d := &Detector{
		bin:        ffmpegBin,
		renderNode: defaultRenderNode,
		runner:     execRunner{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Hardware returns the detected backend, probing on first call.
func (d *Detector) Hardware(ctx context.Context) Hardware {
	d.once.Do(func() {
		d.hardware = d.detect(ctx)
		logger.FromCtx(ctx).Info("encoder capability detected", zap.String("hardware", string(d.hardware)))
	})
	return d.hardware
}

func (d *Detector) detect(ctx context.Context) Hardware {
	log := logger.FromCtx(ctx)

	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := d.runner.Output(listCtx, d.bin, "-hide_banner", "-encoders")
	if err != nil {
		log.Warn("failed to list encoders, using software", zap.Error(err))
		return HardwareSoftware
	}
	encoders := string(out)

	// a listed AMF encoder can still be missing its runtime library; only
	// a real (tiny) encode proves it works
	if strings.Contains(encoders, "h264_amf") {
		if d.verifyAMF(ctx) {
			return HardwareAMF
		}
		log.Debug("h264_amf listed but test encode failed, falling through")
	}

	if strings.Contains(encoders, "h264_vaapi") {
		if _, err := os.Stat(d.renderNode); err == nil {
			return HardwareVAAPI
		}
		log.Debug("h264_vaapi listed but render node absent", zap.String("node", d.renderNode))
	}

	return HardwareSoftware
}

// verifyAMF runs a 0.1-second synthetic encode.
func (d *Detector) verifyAMF(ctx context.Context) bool {
	testCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := d.runner.Output(testCtx, d.bin,
		"-hide_banner",
		"-f", "lavfi",
		"-i", "testsrc=duration=0.1:size=320x240:rate=30",
		"-c:v", "h264_amf",
		"-f", "null", "-",
	)
	return err == nil
}
