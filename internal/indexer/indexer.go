// Package indexer is the IndexUpsert stage: it projects an enriched media
// record into the flat catalog rows the serving API queries.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/queue"
	"github.com/arcstream/arcstream/internal/storage"
)

// UpsertCommand is the IndexUpsert job payload, shaped from the
// enrichment stage's MediaReadyForIndex result.
type UpsertCommand struct {
	LibraryID   int64            `json:"libraryId"`
	MediaFileID int64            `json:"mediaFileId"`
	MediaType   domain.MediaType `json:"mediaType"`
	MediaID     int64            `json:"mediaId"`
	Title       string           `json:"title"`
	ShowTitle   string           `json:"showTitle,omitempty"`
	Season      int              `json:"season,omitempty"`
	Episode     int              `json:"episode,omitempty"`
	PosterIID   string           `json:"posterIid,omitempty"`
	BackdropIID string           `json:"backdropIid,omitempty"`
	Path        string           `json:"path"`
	Size        int64            `json:"size"`
	ModTime     int64            `json:"modTime"`
}

func (c UpsertCommand) DedupeKey() string {
	return queue.DedupeKey(queue.KindIndexUpsert, strconv.FormatInt(c.LibraryID, 10), filepath.Clean(c.Path))
}

// IdempotencyKey is stable per (library, normalized path); re-indexing the
// same file flows onto the same row.
func (c UpsertCommand) IdempotencyKey() string {
	return fmt.Sprintf("index:%d:%s", c.LibraryID, filepath.Clean(c.Path))
}

// fingerprint digests everything the projection depends on; an unchanged
// digest means the second upsert is a no-op.
func (c UpsertCommand) fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s:%s:%d:%d:%s:%s:%d:%d",
		c.MediaType, c.MediaID, c.Title, c.ShowTitle, c.Season, c.Episode,
		c.PosterIID, c.BackdropIID, c.Size, c.ModTime)))
	return hex.EncodeToString(sum[:])
}

// Outcome reports what the index write did.
type Outcome struct {
	Change storage.CatalogEntryChange
}

// Actor performs the IndexUpsert stage.
type Actor struct {
	index storage.IndexStore
}

func NewActor(index storage.IndexStore) *Actor {
	return &Actor{index: index}
}

func (a *Actor) Execute(ctx context.Context, cmd UpsertCommand) (Outcome, error) {
	entry := storage.CatalogEntry{
		LibraryID:   cmd.LibraryID,
		MediaType:   cmd.MediaType,
		Title:       cmd.Title,
		ShowTitle:   cmd.ShowTitle,
		Season:      cmd.Season,
		Episode:     cmd.Episode,
		PosterIID:   cmd.PosterIID,
		BackdropIID: cmd.BackdropIID,
		Path:        filepath.Clean(cmd.Path),
		Fingerprint: cmd.fingerprint(),
	}

	change, err := a.index.UpsertCatalogEntry(ctx, cmd.IdempotencyKey(), entry)
	if err != nil {
		return Outcome{}, domain.DatabaseError(err)
	}

	logger.FromCtx(ctx).Debug("index upsert",
		zap.String("title", cmd.Title),
		zap.String("change", string(change)))

	return Outcome{Change: change}, nil
}
