package transcode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/ffmpeg"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/storage"
)

// Poll bounds for the single-profile "wait until the first segment lands"
// flow: 20 attempts at 500ms.
const (
	playlistPollInterval = 500 * time.Millisecond
	playlistPollAttempts = 20
)

var (
	// ErrUnsupportedVariant is a request for a rung outside the ladder.
	ErrUnsupportedVariant = errors.New("unsupported variant")
	// ErrPlaylistTimeout means no segment appeared within the poll budget;
	// the HTTP layer answers 503 so the client falls back to direct
	// streaming.
	ErrPlaylistTimeout = errors.New("timed out waiting for playlist")
	// ErrJobNotFound is an unknown transcoding job id.
	ErrJobNotFound = errors.New("transcoding job not found")
)

// Config tunes the engine.
type Config struct {
	CacheDir       string
	FFmpegBin      string
	FFprobeBin     string
	RenderNode     string
	// MaxWorkers bounds concurrent encoder processes.
	MaxWorkers     int64
	SegmentSeconds int
}

// Service is the transcoding engine facade the HTTP surface calls.
type Service struct {
	cfg      Config
	prober   ffmpeg.Prober
	detector *Detector
	runner   EncodeRunner
	files    storage.MediaFileStore
	jobs     *JobStore

	// sem bounds concurrent encoder processes so encodes queue instead of
	// thrashing the GPU/CPU.
	sem *semaphore.Weighted

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewService(cfg Config, prober ffmpeg.Prober, detector *Detector, runner EncodeRunner, files storage.MediaFileStore) *Service {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 2
	}
	if cfg.SegmentSeconds <= 0 {
		cfg.SegmentSeconds = 6
	}
	return &Service{
		cfg:      cfg,
		prober:   prober,
		detector: detector,
		runner:   runner,
		files:    files,
		jobs:     NewJobStore(),
		sem:      semaphore.NewWeighted(cfg.MaxWorkers),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// MediaDir is where one media item's transcode artifacts live.
func (s *Service) MediaDir(mediaID int64) string {
	return filepath.Join(s.cfg.CacheDir, strconv.FormatInt(mediaID, 10))
}

// analyzeSource probes the file behind mediaID.
func (s *Service) analyzeSource(ctx context.Context, mediaID int64) (string, SourceMetadata, error) {
	file, err := s.files.GetMediaFile(ctx, mediaID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", SourceMetadata{}, domain.NotFound(fmt.Sprintf("media %d", mediaID))
		}
		return "", SourceMetadata{}, domain.DatabaseError(err)
	}

	probe, err := s.prober.Probe(ctx, file.Path)
	if err != nil {
		// fall back to filename heuristics so playback can still start
		// when the probe tool is briefly unavailable
		logger.FromCtx(ctx).Warn("source probe failed, using filename heuristics", zap.Error(err))
		return file.Path, SourceMetadata{IsHDR: IsHDRFilename(file.Filename)}, nil
	}

	return file.Path, SourceMetadata{
		Duration: probe.Duration,
		Width:    probe.Width,
		Height:   probe.Height,
		Codec:    probe.VideoCodec,
		BitDepth: probe.BitDepth,
		IsHDR:    IsHDR(probe),
	}, nil
}

// StartTranscoding launches a single-profile job.
func (s *Service) StartTranscoding(ctx context.Context, mediaID int64, variantName string) (Job, error) {
	variant, ok := VariantByName(variantName)
	if !ok {
		return Job{}, ErrUnsupportedVariant
	}

	path, src, err := s.analyzeSource(ctx, mediaID)
	if err != nil {
		return Job{}, err
	}

	outDir := filepath.Join(s.MediaDir(mediaID), variant.DirName())
	job := s.jobs.Create(mediaID, JobTypeSingle, variant, src, src.IsHDR, outDir)
	s.launch(ctx, job.ID, path, outDir, variant, src)

	created, _ := s.jobs.Get(job.ID)
	return created, nil
}

// StartAdaptive plans the ladder for the source and launches a master with
// one variant job per rung.
func (s *Service) StartAdaptive(ctx context.Context, mediaID int64) (Job, error) {
	path, src, err := s.analyzeSource(ctx, mediaID)
	if err != nil {
		return Job{}, err
	}

	plan := PlanLadder(src.Width, src.Height)
	if len(plan) == 0 {
		return Job{}, domain.InvalidMedia(fmt.Sprintf("no ladder variants for %dx%d source", src.Width, src.Height))
	}

	master := s.jobs.Create(mediaID, JobTypeMaster, Variant{Name: "master"}, src, src.IsHDR, s.MediaDir(mediaID))

	for _, variant := range plan {
		outDir := filepath.Join(s.MediaDir(mediaID), variant.DirName())
		child := s.jobs.Create(mediaID, JobTypeVariant, variant, src, src.IsHDR, outDir)
		s.jobs.Attach(master.ID, child.ID)
		s.launch(ctx, child.ID, path, outDir, variant, src)
	}

	created, _ := s.jobs.Get(master.ID)
	return created, nil
}

// StartVariant kicks off one on-demand variant encode (the 202 flow).
func (s *Service) StartVariant(ctx context.Context, mediaID int64, variant Variant) (Job, error) {
	path, src, err := s.analyzeSource(ctx, mediaID)
	if err != nil {
		return Job{}, err
	}

	outDir := filepath.Join(s.MediaDir(mediaID), variant.DirName())
	job := s.jobs.Create(mediaID, JobTypeVariant, variant, src, src.IsHDR, outDir)
	s.launch(ctx, job.ID, path, outDir, variant, src)

	created, _ := s.jobs.Get(job.ID)
	return created, nil
}

// launch runs the encode asynchronously; capacity is enforced by the
// worker semaphore, so a burst of requests queues rather than forking a
// process per request.
func (s *Service) launch(ctx context.Context, jobID, inputPath, outDir string, variant Variant, src SourceMetadata) {
	_ = s.jobs.Transition(jobID, StatusQueued)

	// detach from the request context: playback requests return
	// immediately while the encode keeps running
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, jobID)
			s.mu.Unlock()
			cancel()
		}()

		log := logger.FromCtx(runCtx).With(zap.String("transcode_job", jobID), zap.String("variant", variant.Name))

		if err := s.sem.Acquire(runCtx, 1); err != nil {
			s.jobs.Fail(jobID, "cancelled while queued")
			return
		}
		defer s.sem.Release(1)

		if s.jobs.IsCancelled(jobID) {
			return
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			s.jobs.Fail(jobID, err.Error())
			return
		}

		if err := s.jobs.Transition(jobID, StatusProcessing); err != nil {
			return
		}

		spec := EncodeSpec{
			InputPath:      inputPath,
			OutputDir:      outDir,
			Variant:        variant,
			IsHDR:          src.IsHDR,
			Hardware:       s.detector.Hardware(runCtx),
			RenderNode:     s.cfg.RenderNode,
			SegmentSeconds: s.cfg.SegmentSeconds,
		}

		err := s.runner.Encode(runCtx, BuildArgs(spec), func(p Progress) {
			s.jobs.UpdateProgress(jobID, p)
		})
		switch {
		case errors.Is(err, context.Canceled):
			log.Info("encode cancelled, removing partial output")
			os.RemoveAll(outDir)
		case err != nil:
			log.Warn("encode failed", zap.Error(err))
			s.jobs.Fail(jobID, err.Error())
		default:
			_ = s.jobs.Transition(jobID, StatusCompleted)
			log.Info("encode completed")
		}
	}()
}

// MasterPlaylist serves the stored master, synthesizing (and persisting)
// one from the variant directories when the file is missing.
func (s *Service) MasterPlaylist(ctx context.Context, mediaID int64) (string, error) {
	masterPath := filepath.Join(s.MediaDir(mediaID), "master.m3u8")
	if data, err := os.ReadFile(masterPath); err == nil {
		return string(data), nil
	}

	master, variants, err := SynthesizeMaster(s.MediaDir(mediaID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.NotFound(fmt.Sprintf("no transcode output for media %d", mediaID))
		}
		return "", domain.IoError("synthesize master", err)
	}

	logger.FromCtx(ctx).Debug("synthesized master playlist",
		zap.Int64("media_id", mediaID),
		zap.Int("variants", len(variants)))
	return master, nil
}

// VariantPlaylistResult is what the variant playlist endpoint needs to
// answer: either content, or a started job to 202 on.
type VariantPlaylistResult struct {
	Content string
	// Started is non-nil when the variant was absent and an encode was
	// kicked off; Content then holds the placeholder playlist.
	Started *Job
}

// VariantPlaylist serves a variant playlist with segment paths rewritten,
// or starts the encode and hands back the placeholder.
func (s *Service) VariantPlaylist(ctx context.Context, mediaID int64, variantName string) (VariantPlaylistResult, error) {
	variant, ok := VariantByName(variantName)
	if !ok {
		return VariantPlaylistResult{}, ErrUnsupportedVariant
	}

	playlistPath := filepath.Join(s.MediaDir(mediaID), variant.DirName(), "playlist.m3u8")
	if data, err := os.ReadFile(playlistPath); err == nil {
		rewritten := RewriteSegmentPaths(string(data), strconv.FormatInt(mediaID, 10), variant.DirName())
		return VariantPlaylistResult{Content: rewritten}, nil
	}

	job, err := s.StartVariant(ctx, mediaID, variant)
	if err != nil {
		return VariantPlaylistResult{}, err
	}
	return VariantPlaylistResult{Content: PlaceholderPlaylist, Started: &job}, nil
}

// WaitForPlaylist polls the single-profile playlist until it references at
// least one segment, bounded by 20 × 500ms.
func (s *Service) WaitForPlaylist(ctx context.Context, mediaID int64, variantName string) (string, error) {
	variant, ok := VariantByName(variantName)
	if !ok {
		return "", ErrUnsupportedVariant
	}
	playlistPath := filepath.Join(s.MediaDir(mediaID), variant.DirName(), "playlist.m3u8")

	for attempt := 0; attempt < playlistPollAttempts; attempt++ {
		if data, err := os.ReadFile(playlistPath); err == nil && HasSegments(string(data)) {
			return RewriteSegmentPaths(string(data), strconv.FormatInt(mediaID, 10), variant.DirName()), nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(playlistPollInterval):
		}
	}
	return "", ErrPlaylistTimeout
}

var segmentNameRe = regexp.MustCompile(`^segment_\d+\.ts$`)

// SegmentPath validates and resolves a segment request to its file.
func (s *Service) SegmentPath(mediaID int64, variantName, segment string) (string, error) {
	variant, ok := VariantByName(variantName)
	if !ok {
		return "", ErrUnsupportedVariant
	}
	if !segmentNameRe.MatchString(segment) {
		return "", domain.NotFound("no such segment")
	}

	path := filepath.Join(s.MediaDir(mediaID), variant.DirName(), segment)
	if _, err := os.Stat(path); err != nil {
		return "", domain.NotFound("segment not on disk yet")
	}
	return path, nil
}

// JobStatus returns a job snapshot (master status/progress are derived
// from children).
func (s *Service) JobStatus(jobID string) (Job, error) {
	job, ok := s.jobs.Get(jobID)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// Cancel cooperatively stops a job: the status flips first, then the
// worker's context is cancelled which kills the encoder process; partial
// output is removed by the worker. Cancelling a master cancels every
// child.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, ok := s.jobs.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}

	ids := append([]string{jobID}, job.ChildIDs...)
	for _, id := range ids {
		if err := s.jobs.Transition(id, StatusCancelled); err != nil {
			continue // already terminal
		}
		s.mu.Lock()
		cancel := s.cancels[id]
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}

	logger.FromCtx(ctx).Info("transcode job cancelled", zap.String("job_id", jobID))
	return nil
}

// CacheStats totals the transcode cache directory.
func (s *Service) CacheStats(context.Context) (storage.CacheStats, error) {
	var stats storage.CacheStats
	err := filepath.WalkDir(s.cfg.CacheDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.ItemCount++
		stats.BytesUsed += info.Size()
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		err = nil
	}
	return stats, err
}
