// Package dispatch turns leased jobs into actor invocations. It is the one
// place that classifies stage errors into retry vs dead-letter, publishes
// domain events, and enqueues each stage's follow-up work — events first,
// so a subscriber that saw a stage's event can always find its follow-up
// in the queue.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/events"
	"github.com/arcstream/arcstream/internal/imagefetch"
	"github.com/arcstream/arcstream/internal/indexer"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/metadata"
	"github.com/arcstream/arcstream/internal/queue"
	"github.com/arcstream/arcstream/internal/scanner"
	"github.com/arcstream/arcstream/internal/storage"
)

// Dispatcher owns the fixed actor set. Adding a stage is a code change
// here, deliberately not a plugin surface.
type Dispatcher struct {
	folder  *scanner.FolderActor
	analyze *scanner.AnalyzeActor
	enrich  *metadata.Actor
	index   *indexer.Actor
	images  *imagefetch.Actor

	queue   *queue.Service
	bus     *events.Bus
	cursors storage.CursorStore
	now     func() time.Time
}

func New(
	folder *scanner.FolderActor,
	analyze *scanner.AnalyzeActor,
	enrich *metadata.Actor,
	index *indexer.Actor,
	images *imagefetch.Actor,
	q *queue.Service,
	bus *events.Bus,
	cursors storage.CursorStore,
) *Dispatcher {
	return &Dispatcher{
		folder:  folder,
		analyze: analyze,
		enrich:  enrich,
		index:   index,
		images:  images,
		queue:   q,
		bus:     bus,
		cursors: cursors,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle runs one leased job through its actor and settles the lease:
// complete on success, retry or dead-letter on failure per the error
// classification. The returned error reports settlement problems only.
func (d *Dispatcher) Handle(ctx context.Context, lease *queue.Lease) error {
	job := lease.Job

	corrID, _ := d.queue.Correlation(job.ID)
	if corrID != "" {
		ctx = logger.WithCorrelation(ctx, corrID)
	}
	log := logger.FromCtx(ctx).With(
		zap.Int64("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.Int("attempt", job.Attempt),
	)
	ctx = logger.WithCtx(ctx, log)

	err := d.invoke(ctx, job, corrID)
	if err == nil {
		return d.queue.Complete(ctx, job.ID, lease.Owner)
	}

	retryable := domain.Retryable(err)
	log.Warn("stage failed",
		zap.String("error_kind", string(domain.KindOf(err))),
		zap.Bool("retryable", retryable),
		zap.Error(err))
	return d.queue.Fail(ctx, job.ID, lease.Owner, err, retryable)
}

// invoke decodes the payload and runs the stage.
func (d *Dispatcher) invoke(ctx context.Context, job queue.Job, corrID string) error {
	switch job.Kind {
	case queue.KindFolderScan:
		var cmd scanner.FolderScanCommand
		if err := json.Unmarshal(job.Payload, &cmd); err != nil {
			return domain.Serialization(err)
		}
		return d.handleFolderScan(ctx, job, corrID, cmd)

	case queue.KindMediaAnalyze:
		var cmd scanner.AnalyzeCommand
		if err := json.Unmarshal(job.Payload, &cmd); err != nil {
			return domain.Serialization(err)
		}
		return d.handleAnalyze(ctx, job, corrID, cmd)

	case queue.KindMetadataEnrich:
		var cmd metadata.EnrichCommand
		if err := json.Unmarshal(job.Payload, &cmd); err != nil {
			return domain.Serialization(err)
		}
		return d.handleEnrich(ctx, job, corrID, cmd)

	case queue.KindIndexUpsert:
		var cmd indexer.UpsertCommand
		if err := json.Unmarshal(job.Payload, &cmd); err != nil {
			return domain.Serialization(err)
		}
		return d.handleIndex(ctx, job, corrID, cmd)

	case queue.KindImageFetch:
		var cmd metadata.ImageFetchJob
		if err := json.Unmarshal(job.Payload, &cmd); err != nil {
			return domain.Serialization(err)
		}
		return d.images.Execute(ctx, cmd)

	default:
		return domain.InvalidMedia("unknown job kind: " + string(job.Kind))
	}
}

func (d *Dispatcher) handleFolderScan(ctx context.Context, job queue.Job, corrID string, cmd scanner.FolderScanCommand) error {
	log := logger.FromCtx(ctx)

	res, err := d.folder.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	if res.Unchanged {
		// nothing changed: refresh the cursor's scan timestamp and stop —
		// no discovery events, no follow-up jobs
		if err := d.cursors.TouchCursor(ctx, cmd.LibraryID, cmd.FolderPath); err != nil {
			return domain.DatabaseError(err)
		}
		d.publishScan(ctx, corrID, cmd.LibraryID, events.TypeFolderScanCompleted, events.FolderScanCompletedPayload{
			FolderPath: cmd.FolderPath,
			Skipped:    true,
		})
		return nil
	}

	// discovery events go out before the analyze follow-ups enqueue, so
	// subscribers always observe the discovery first
	for _, file := range res.Discovered {
		d.publishScan(ctx, corrID, cmd.LibraryID, events.TypeMediaFileDiscovered, events.MediaFileDiscoveredPayload{
			MediaFileID: file.ID,
			Path:        file.Path,
		})
	}

	// the analyze stage runs at P0 so a discovered file reaches the
	// catalog ahead of further breadth-first folder scans
	for _, file := range res.Discovered {
		analyzeCmd := scanner.AnalyzeCommand{
			LibraryID:   cmd.LibraryID,
			LibraryKind: cmd.LibraryKind,
			MediaFileID: file.ID,
			Path:        file.Path,
			ScanReason:  cmd.ScanReason,
		}
		_, err := d.queue.Enqueue(ctx, queue.EnqueueRequest{
			Kind:          queue.KindMediaAnalyze,
			Priority:      queue.PriorityP0,
			LibraryID:     cmd.LibraryID,
			Payload:       analyzeCmd,
			DedupeKey:     analyzeCmd.DedupeKey(),
			CorrelationID: corrID,
		})
		if err != nil {
			// per-item enqueue failures must not sink the whole folder
			log.Warn("failed to enqueue analyze job", zap.String("path", file.Path), zap.Error(err))
		}
	}

	// child folders are announced only; the orchestrator enqueues their
	// scans so watchers and bulk seeding share one entry point
	for _, child := range res.Children {
		d.publishScan(ctx, corrID, cmd.LibraryID, events.TypeFolderDiscovered, events.FolderDiscoveredPayload{
			FolderPath: child.FolderPath,
			ScanReason: string(child.ScanReason),
		})
	}

	d.publishScan(ctx, corrID, cmd.LibraryID, events.TypeFolderScanCompleted, events.FolderScanCompletedPayload{
		FolderPath:  cmd.FolderPath,
		MediaCount:  len(res.Discovered),
		FolderCount: len(res.Children),
	})
	return nil
}

func (d *Dispatcher) handleAnalyze(ctx context.Context, job queue.Job, corrID string, cmd scanner.AnalyzeCommand) error {
	res, err := d.analyze.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	kind := ""
	if res.MediaFile.ParsedInfo != nil {
		kind = string(res.MediaFile.ParsedInfo.Kind)
	}
	d.publishScan(ctx, corrID, cmd.LibraryID, events.TypeMediaAnalyzed, events.MediaAnalyzedPayload{
		MediaFileID: res.MediaFile.ID,
		Path:        res.MediaFile.Path,
		Kind:        kind,
	})

	enrichCmd := metadata.EnrichCommand{
		LibraryID:   cmd.LibraryID,
		LibraryKind: cmd.LibraryKind,
		MediaFileID: res.MediaFile.ID,
		Path:        res.MediaFile.Path,
		ScanReason:  cmd.ScanReason,
		TMDBIDHint:  res.Context.TMDBIDHint,
	}
	_, err = d.queue.Enqueue(ctx, queue.EnqueueRequest{
		Kind:          queue.KindMetadataEnrich,
		Priority:      queue.PriorityP0,
		LibraryID:     cmd.LibraryID,
		Payload:       enrichCmd,
		DedupeKey:     enrichCmd.DedupeKey(),
		CorrelationID: corrID,
	})
	if err != nil {
		return domain.DatabaseError(fmt.Errorf("enqueue enrich: %w", err))
	}
	return nil
}

func (d *Dispatcher) handleEnrich(ctx context.Context, job queue.Job, corrID string, cmd metadata.EnrichCommand) error {
	log := logger.FromCtx(ctx)

	res, err := d.enrich.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	d.publishScan(ctx, corrID, cmd.LibraryID, events.TypeMediaReadyForIndex, events.MediaReadyForIndexPayload{
		MediaFileID: res.MediaFile.ID,
		MediaID:     res.MediaID,
		MediaType:   string(res.MediaType),
		Title:       res.Title,
	})

	// artwork first, tolerantly; the index follow-up is the one that must
	// land
	for _, imgJob := range res.ImageJobs {
		_, err := d.queue.Enqueue(ctx, queue.EnqueueRequest{
			Kind:          queue.KindImageFetch,
			Priority:      imgJob.PriorityHint,
			LibraryID:     cmd.LibraryID,
			Payload:       imgJob,
			DedupeKey:     imgJob.DedupeKey(),
			CorrelationID: corrID,
		})
		if err != nil {
			log.Warn("failed to enqueue image fetch", zap.String("iid", imgJob.IID), zap.Error(err))
		}
	}

	showTitle, season, episode := "", 0, 0
	if res.MediaType == domain.MediaTypeEpisode && res.MediaFile.ParsedInfo != nil {
		showTitle = res.MediaFile.ParsedInfo.ShowTitle
		season = res.MediaFile.ParsedInfo.SeasonNumber
		episode = res.MediaFile.ParsedInfo.EpisodeNumber
	}

	indexCmd := indexer.UpsertCommand{
		LibraryID:   cmd.LibraryID,
		MediaFileID: res.MediaFile.ID,
		MediaType:   res.MediaType,
		MediaID:     res.MediaID,
		Title:       res.Title,
		ShowTitle:   showTitle,
		Season:      season,
		Episode:     episode,
		PosterIID:   res.PosterIID,
		BackdropIID: res.BackdropIID,
		Path:        res.MediaFile.Path,
		Size:        res.MediaFile.Size,
		ModTime:     res.MediaFile.Fingerprint.ModTime,
	}
	_, err = d.queue.Enqueue(ctx, queue.EnqueueRequest{
		Kind:          queue.KindIndexUpsert,
		Priority:      queue.PriorityP0,
		LibraryID:     cmd.LibraryID,
		Payload:       indexCmd,
		DedupeKey:     indexCmd.DedupeKey(),
		CorrelationID: corrID,
	})
	if err != nil {
		return domain.DatabaseError(fmt.Errorf("enqueue index: %w", err))
	}
	return nil
}

func (d *Dispatcher) handleIndex(ctx context.Context, job queue.Job, corrID string, cmd indexer.UpsertCommand) error {
	outcome, err := d.index.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	d.publishScan(ctx, corrID, cmd.LibraryID, events.TypeIndexed, events.IndexedPayload{
		MediaFileID: cmd.MediaFileID,
		Change:      string(outcome.Change),
	})
	return nil
}

func (d *Dispatcher) publishScan(ctx context.Context, corrID string, libraryID int64, typ events.Type, payload any) {
	ev := events.Event{
		Type:          typ,
		CorrelationID: corrID,
		LibraryID:     libraryID,
		OccurredAt:    d.now(),
		Payload:       payload,
	}
	if err := d.bus.Publish(ctx, events.TopicScan, ev); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish scan event", zap.String("type", string(typ)), zap.Error(err))
	}
}
