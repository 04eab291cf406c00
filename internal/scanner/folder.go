package scanner

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	arcio "github.com/arcstream/arcstream/internal/io"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/storage"
)

// weakHashSampleSize bounds how much of each file feeds the weak content
// hash; enough to tell two files apart, cheap enough to run on every scan.
const weakHashSampleSize = 64 * 1024

// FolderActor is the FolderScan stage: list one folder (non-recursive),
// classify entries, short-circuit on an unchanged cursor, upsert the media
// rows and derive child scan contexts.
type FolderActor struct {
	fs      arcio.FileIO
	cursors storage.CursorStore
	files   storage.MediaFileStore
	now     func() time.Time
}

func NewFolderActor(fs arcio.FileIO, cursors storage.CursorStore, files storage.MediaFileStore) *FolderActor {
	return &FolderActor{
		fs:      fs,
		cursors: cursors,
		files:   files,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs one folder scan. Per-item failures (an unreadable file, a
// failed upsert) are logged and counted but do not fail the whole folder.
func (a *FolderActor) Execute(ctx context.Context, cmd FolderScanCommand) (FolderScanResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.Int64("library_id", cmd.LibraryID),
		zap.String("folder", cmd.FolderPath),
		zap.String("reason", string(cmd.ScanReason)),
	)
	ctx = logger.WithCtx(ctx, log)

	dirEntries, err := a.fs.ReadDir(cmd.FolderPath)
	if err != nil {
		return FolderScanResult{}, domain.IoError("read folder", err)
	}

	var deviceID uint64
	if fp, err := a.fs.Fingerprint(cmd.FolderPath); err == nil {
		deviceID = fp.DeviceID
	}

	plan := FolderListingPlan{FolderPath: cmd.FolderPath, DeviceID: deviceID}
	result := FolderScanResult{}

	type mediaEntry struct {
		name string
		size int64
	}
	var mediaFiles []mediaEntry

	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			log.Warn("failed to stat entry", zap.String("name", de.Name()), zap.Error(err))
			result.ItemErrors++
			continue
		}

		class := Classify(de.Name(), de.IsDir())
		plan.Entries = append(plan.Entries, ListingEntry{
			Name:    de.Name(),
			Class:   class,
			Size:    info.Size(),
			ModTime: info.ModTime().Unix(),
		})

		switch class {
		case EntryDirectory:
			result.Children = append(result.Children, FolderScanCommand{
				LibraryID:   cmd.LibraryID,
				LibraryKind: cmd.LibraryKind,
				FolderPath:  filepath.Join(cmd.FolderPath, de.Name()),
				ScanReason:  cmd.ScanReason,
				ScanID:      cmd.ScanID,
				Force:       cmd.Force,
			})
		case EntryMedia:
			mediaFiles = append(mediaFiles, mediaEntry{name: de.Name(), size: info.Size()})
		}
	}

	plan.ListingHash = ListingHash(plan.Entries)
	result.Plan = plan

	if !cmd.Force {
		cursor, err := a.cursors.GetCursor(ctx, cmd.LibraryID, cmd.FolderPath)
		if err == nil && cursor.ListingHash == plan.ListingHash {
			result.Unchanged = true
			return result, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return FolderScanResult{}, domain.DatabaseError(err)
		}
	}

	var lastModified time.Time
	for _, e := range plan.Entries {
		if mt := time.Unix(e.ModTime, 0); mt.After(lastModified) {
			lastModified = mt
		}
	}

	for _, me := range mediaFiles {
		path := filepath.Join(cmd.FolderPath, me.name)

		file, err := a.discoverFile(ctx, cmd, path, me.name, me.size)
		if err != nil {
			log.Warn("failed to record discovered media", zap.String("path", path), zap.Error(err))
			result.ItemErrors++
			continue
		}
		result.Discovered = append(result.Discovered, file)
	}

	cursor := domain.ScanCursor{
		LibraryID:    cmd.LibraryID,
		FolderPath:   cmd.FolderPath,
		ListingHash:  plan.ListingHash,
		EntryCount:   len(plan.Entries),
		LastScanAt:   a.now(),
		LastModified: lastModified.UTC(),
		DeviceID:     deviceID,
	}
	if err := a.cursors.PutCursor(ctx, cursor); err != nil {
		return FolderScanResult{}, domain.DatabaseError(err)
	}

	return result, nil
}

// discoverFile fingerprints path and upserts its media_file row, keeping
// the existing id for files already tracked under this path.
func (a *FolderActor) discoverFile(ctx context.Context, cmd FolderScanCommand, path, name string, size int64) (domain.MediaFile, error) {
	fp, err := a.fs.Fingerprint(path)
	if err != nil {
		return domain.MediaFile{}, domain.IoError("fingerprint", err)
	}

	weakHash, err := a.weakContentHash(path)
	if err != nil {
		// a read failure here degrades the fingerprint, not the discovery
		logger.FromCtx(ctx).Debug("weak hash unavailable", zap.String("path", path), zap.Error(err))
	}

	file := domain.MediaFile{
		LibraryID:    cmd.LibraryID,
		Path:         path,
		Filename:     name,
		Size:         size,
		DiscoveredAt: a.now(),
		ParsedInfo:   ParseFile(path, cmd.LibraryKind),
		Fingerprint: domain.Fingerprint{
			DeviceID: fp.DeviceID,
			Inode:    fp.Inode,
			Size:     fp.Size,
			ModTime:  fp.ModTime,
			WeakHash: weakHash,
		},
	}

	id, err := a.files.UpsertMediaFile(ctx, file)
	if err != nil {
		return domain.MediaFile{}, domain.DatabaseError(err)
	}
	file.ID = id
	return file, nil
}

// weakContentHash digests the first 64 KiB of the file.
func (a *FolderActor) weakContentHash(path string) (uint64, error) {
	f, err := a.fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := fnv.New64a()
	if _, err := io.CopyN(h, f, weakHashSampleSize); err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	return h.Sum64(), nil
}
