// Package storage declares the narrow repository ports the pipeline and
// HTTP surface depend on. Concrete implementations (internal/storage/sqlite
// for the catalog store, internal/imagecache for the blob cache) satisfy
// these without the callers ever importing a driver package directly.
package storage

import (
	"context"
	"errors"

	"github.com/arcstream/arcstream/internal/domain"
)

// ErrNotFound is returned by any repository method that found no matching
// row; callers translate it to domain.NotFound at the stage-actor boundary.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint rejects a write the
// caller believed was safe (e.g. a race on a dedupe key).
var ErrConflict = errors.New("conflict")

type LibraryStore interface {
	CreateLibrary(ctx context.Context, lib domain.Library) (int64, error)
	UpdateLibrary(ctx context.Context, lib domain.Library) error
	DeleteLibrary(ctx context.Context, id int64) error
	GetLibrary(ctx context.Context, id int64) (domain.Library, error)
	ListLibraries(ctx context.Context) ([]domain.Library, error)
}

// MediaFileStore persists discovered files. Upserts on path conflict update
// the row but preserve the existing id; a rescan never forks a second row.
type MediaFileStore interface {
	UpsertMediaFile(ctx context.Context, f domain.MediaFile) (int64, error)
	GetMediaFileByPath(ctx context.Context, libraryID int64, path string) (domain.MediaFile, error)
	GetMediaFile(ctx context.Context, id int64) (domain.MediaFile, error)
}

// CursorStore is keyed by (library_id, folder_path); the device id is
// stored as metadata for debugging, never as part of the key.
type CursorStore interface {
	GetCursor(ctx context.Context, libraryID int64, folderPath string) (domain.ScanCursor, error)
	PutCursor(ctx context.Context, cursor domain.ScanCursor) error
	TouchCursor(ctx context.Context, libraryID int64, folderPath string) error
}

// CatalogStore is the replace-all projection target for metadata
// enrichment and the read side for the HTTP catalog query.
type CatalogStore interface {
	UpsertMovieReference(ctx context.Context, ref domain.MovieReference) (int64, error)
	GetMovieReferenceByTMDB(ctx context.Context, libraryID, tmdbID int64) (domain.MovieReference, error)
	GetMovieReferenceByFile(ctx context.Context, fileID int64) (domain.MovieReference, error)

	UpsertSeriesReference(ctx context.Context, ref domain.SeriesReference) (int64, error)
	GetSeriesReferenceByTMDB(ctx context.Context, libraryID, tmdbID int64) (domain.SeriesReference, error)
	FindSeriesReference(ctx context.Context, libraryID int64, clues SeriesClues) (domain.SeriesReference, error)

	UpsertSeasonReference(ctx context.Context, ref domain.SeasonReference) (int64, error)
	GetSeasonReference(ctx context.Context, seriesID int64, seasonNumber int) (domain.SeasonReference, error)

	UpsertEpisodeReference(ctx context.Context, ref domain.EpisodeReference) (int64, error)
	GetEpisodeReference(ctx context.Context, seriesID int64, seasonNumber, episodeNumber int) (domain.EpisodeReference, error)

	UpsertPerson(ctx context.Context, p domain.Person) error

	// ReplaceImageVariants deletes all variants for (mediaID, mediaType)
	// and inserts variants: idempotent full replacement per parent.
	ReplaceImageVariants(ctx context.Context, mediaID int64, mediaType domain.MediaType, variants []domain.ImageVariant) error
	ListImageVariants(ctx context.Context, mediaID int64, mediaType domain.MediaType) ([]domain.ImageVariant, error)
	GetImageVariant(ctx context.Context, iid string) (domain.ImageVariant, error)

	// CatalogEntry is the flattened read projection the HTTP /library
	// endpoint queries; IndexUpsert writes this table in a dedicated
	// storage.IndexStore, listed separately below.
}

// SeriesClues is the set of hints episode reconciliation uses to locate or
// disambiguate a series before any TMDB call.
type SeriesClues struct {
	Title string
	Year  int
}

// CatalogEntryChange is the result of an IndexUpsert write.
type CatalogEntryChange string

const (
	CatalogEntryCreated   CatalogEntryChange = "created"
	CatalogEntryUpdated   CatalogEntryChange = "updated"
	CatalogEntryUnchanged CatalogEntryChange = "unchanged"
)

// CatalogEntry is one row of the flat query-facing index (movies, or
// episodes grouped under series/season).
type CatalogEntry struct {
	ID          int64
	LibraryID   int64
	MediaType   domain.MediaType
	Title       string
	ShowTitle   string
	Season      int
	Episode     int
	PosterIID   string
	BackdropIID string
	Path        string
	Fingerprint string // content hash of the analyzed record, for idempotence checks
}

// IndexStore is the read side backing GET /library.
type IndexStore interface {
	UpsertCatalogEntry(ctx context.Context, idempotencyKey string, entry CatalogEntry) (CatalogEntryChange, error)
	QueryCatalog(ctx context.Context, q CatalogQuery) ([]CatalogEntry, error)
}

// CatalogQuery mirrors the GET /library query parameters.
type CatalogQuery struct {
	MediaType string
	ShowName  string
	Season    *int
	OrderBy   string
	Limit     int
	LibraryID int64
}

// ImageCache is the write-once blob cache port image fetch writes into and
// the HTTP surface reads from, keyed by the stable iid.
type ImageCache interface {
	Write(ctx context.Context, iid string, data []byte) error
	Read(ctx context.Context, iid string) ([]byte, error)
	Has(ctx context.Context, iid string) (bool, error)
	Stats(ctx context.Context) (CacheStats, error)
}

type CacheStats struct {
	ItemCount int64
	BytesUsed int64
}
