package dispatch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/events"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/queue"
	"github.com/arcstream/arcstream/internal/scanner"
)

// Orchestrator is the scan entry point. Both user-requested scans and the
// child folders a scan discovers funnel through it, so the watcher path and
// bulk seeding enqueue work identically.
type Orchestrator struct {
	queue *queue.Service
	bus   *events.Bus
	now   func() time.Time
}

func NewOrchestrator(q *queue.Service, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		queue: q,
		bus:   bus,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// StartScan enqueues a FolderScan for every root of the library and
// returns the scan id progress subscribers filter on.
func (o *Orchestrator) StartScan(ctx context.Context, lib domain.Library, reason scanner.ScanReason, force bool) (string, []queue.Handle, error) {
	scanID := uuid.NewString()

	reqs := make([]queue.EnqueueRequest, 0, len(lib.Paths))
	for _, root := range lib.Paths {
		cmd := scanner.FolderScanCommand{
			LibraryID:   lib.ID,
			LibraryKind: lib.Kind,
			FolderPath:  filepath.Clean(root),
			ScanReason:  reason,
			ScanID:      scanID,
			Force:       force,
		}
		reqs = append(reqs, queue.EnqueueRequest{
			Kind:      queue.KindFolderScan,
			Priority:  reason.Priority(),
			LibraryID: lib.ID,
			Payload:   cmd,
			DedupeKey: cmd.DedupeKey(),
		})
	}

	handles, err := o.queue.EnqueueMany(ctx, reqs)
	if err != nil {
		return "", nil, err
	}

	ev := events.Event{
		Type:       events.TypeScanStarted,
		LibraryID:  lib.ID,
		OccurredAt: o.now(),
		Payload:    events.ScanProgressPayload{ScanID: scanID},
	}
	if len(handles) > 0 {
		ev.CorrelationID = handles[0].CorrelationID
	}
	if err := o.bus.Publish(ctx, events.TopicScan, ev); err != nil {
		logger.FromCtx(ctx).Warn("failed to publish scan started", zap.Error(err))
	}

	return scanID, handles, nil
}

// Run consumes FolderDiscovered events and enqueues the child scans until
// ctx is cancelled. The dispatcher only announces children; enqueuing them
// here keeps one entry point for all scan work.
func (o *Orchestrator) Run(ctx context.Context, libraries func(ctx context.Context, id int64) (domain.Library, error)) error {
	ch, err := o.bus.Subscribe(ctx, events.TopicScan)
	if err != nil {
		return err
	}

	go func() {
		for ev := range ch {
			if ev.Type != events.TypeFolderDiscovered {
				continue
			}
			o.enqueueChild(ctx, ev, libraries)
		}
	}()
	return nil
}

func (o *Orchestrator) enqueueChild(ctx context.Context, ev events.Event, libraries func(ctx context.Context, id int64) (domain.Library, error)) {
	log := logger.FromCtx(ctx)

	payload, err := decodePayload[events.FolderDiscoveredPayload](ev.Payload)
	if err != nil {
		log.Warn("undecodable folder discovered payload", zap.Error(err))
		return
	}

	lib, err := libraries(ctx, ev.LibraryID)
	if err != nil {
		log.Warn("folder discovered for unknown library", zap.Int64("library_id", ev.LibraryID), zap.Error(err))
		return
	}

	cmd := scanner.FolderScanCommand{
		LibraryID:   lib.ID,
		LibraryKind: lib.Kind,
		FolderPath:  payload.FolderPath,
		ScanReason:  scanner.ScanReason(payload.ScanReason),
	}
	_, err = o.queue.Enqueue(ctx, queue.EnqueueRequest{
		Kind:          queue.KindFolderScan,
		Priority:      cmd.ScanReason.Priority(),
		LibraryID:     lib.ID,
		Payload:       cmd,
		DedupeKey:     cmd.DedupeKey(),
		CorrelationID: ev.CorrelationID,
	})
	if err != nil {
		log.Warn("failed to enqueue child folder scan", zap.String("folder", payload.FolderPath), zap.Error(err))
	}
}
