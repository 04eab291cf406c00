// Package metadata is the enrichment stage: it reconciles an analyzed
// media file with the metadata provider, persists the rich catalog
// projection, and queues the artwork fetches the player needs.
package metadata

import (
	"strconv"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/queue"
	"github.com/arcstream/arcstream/internal/scanner"
)

// EnrichCommand is the MetadataEnrich job payload.
type EnrichCommand struct {
	LibraryID   int64              `json:"libraryId"`
	LibraryKind domain.LibraryKind `json:"libraryKind"`
	MediaFileID int64              `json:"mediaFileId"`
	Path        string             `json:"path"`
	ScanReason  scanner.ScanReason `json:"scanReason"`
	TMDBIDHint  int64              `json:"tmdbIdHint,omitempty"`
}

func (c EnrichCommand) DedupeKey() string {
	return queue.DedupeKey(queue.KindMetadataEnrich, strconv.FormatInt(c.MediaFileID, 10))
}

// ImageFetchJob is one artwork download the ImageFetch stage performs.
type ImageFetchJob struct {
	LibraryID    int64                 `json:"libraryId"`
	IID          string                `json:"iid"`
	SizeClass    domain.ImageSizeClass `json:"sizeClass"`
	PriorityHint queue.Priority        `json:"priorityHint"`
}

func (j ImageFetchJob) DedupeKey() string {
	return queue.DedupeKey(queue.KindImageFetch, j.IID)
}

// Result is the MediaReadyForIndex artifact: the enriched file, where it
// landed in the catalog hierarchy, and the artwork jobs to queue.
type Result struct {
	MediaFile domain.MediaFile
	MediaType domain.MediaType
	// MediaID is the movie or episode reference id the file resolved to.
	MediaID int64
	// Title is normalized for the index ("Show S01E03 Title" for episodes).
	Title string
	// Series/season hierarchy, set for episodes.
	SeriesID int64
	SeasonID int64
	// Primary artwork the index projection surfaces.
	PosterIID   string
	BackdropIID string
	ImageJobs   []ImageFetchJob
}
