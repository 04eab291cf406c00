package scanner

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/ffmpeg"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/storage"
)

// AnalyzeActor is the MediaAnalyze stage: probe the container, record the
// technical metadata on the media row, and surface any provider hints the
// naming conventions carry.
type AnalyzeActor struct {
	prober ffmpeg.Prober
	files  storage.MediaFileStore
}

func NewAnalyzeActor(prober ffmpeg.Prober, files storage.MediaFileStore) *AnalyzeActor {
	return &AnalyzeActor{prober: prober, files: files}
}

func (a *AnalyzeActor) Execute(ctx context.Context, cmd AnalyzeCommand) (AnalyzeResult, error) {
	log := logger.FromCtx(ctx).With(zap.Int64("media_file_id", cmd.MediaFileID), zap.String("path", cmd.Path))
	ctx = logger.WithCtx(ctx, log)

	file, err := a.files.GetMediaFile(ctx, cmd.MediaFileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return AnalyzeResult{}, domain.NotFound("media file missing")
		}
		return AnalyzeResult{}, domain.DatabaseError(err)
	}

	probe, err := a.prober.Probe(ctx, file.Path)
	if err != nil {
		// the prober already classified the failure (InvalidMedia for a
		// corrupt file, Internal for a missing tool)
		return AnalyzeResult{}, err
	}

	file.TechnicalMetadata = &domain.TechnicalMetadata{
		Codec:          probe.VideoCodec,
		BitDepth:       probe.BitDepth,
		ColorTransfer:  probe.ColorTransfer,
		ColorPrimaries: probe.ColorPrimaries,
		ColorSpace:     probe.ColorSpace,
		Width:          probe.Width,
		Height:         probe.Height,
		Duration:       probe.Duration,
		AudioTracks:    probe.AudioTracks,
		SubtitleTracks: probe.SubtitleTracks,
	}
	if file.ParsedInfo == nil {
		file.ParsedInfo = ParseFile(file.Path, cmd.LibraryKind)
	}

	if _, err := a.files.UpsertMediaFile(ctx, file); err != nil {
		return AnalyzeResult{}, domain.DatabaseError(err)
	}

	log.Debug("media analyzed",
		zap.String("codec", probe.VideoCodec),
		zap.Int("bit_depth", probe.BitDepth),
		zap.Duration("duration", probe.Duration))

	return AnalyzeResult{
		MediaFile: file,
		Context:   AnalysisContext{TMDBIDHint: TMDBHint(file.Path)},
	}, nil
}
