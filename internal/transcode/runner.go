package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/logger"
)

// EncodeRunner executes one encoder process, streaming parsed progress to
// the callback until the process exits.
type EncodeRunner interface {
	Encode(ctx context.Context, args []string, onProgress func(Progress)) error
}

// FFmpegRunner shells out to the real binary.
type FFmpegRunner struct {
	bin string
}

func NewFFmpegRunner(bin string) *FFmpegRunner {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegRunner{bin: bin}
}

func (r *FFmpegRunner) Encode(ctx context.Context, args []string, onProgress func(Progress)) error {
	cmd := exec.CommandContext(ctx, r.bin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start encoder: %w", err)
	}

	parseErr := ParseProgress(stdout, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			// the kill signal came from a cancel, not a crash
			return ctx.Err()
		}
		logger.FromCtx(ctx).Debug("encoder failed", zap.String("stderr", tail(stderr.String(), 2048)))
		return fmt.Errorf("encoder exited: %w", err)
	}
	return parseErr
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
