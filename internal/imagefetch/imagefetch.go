// Package imagefetch is the ImageFetch stage: resolve a variant's tmdb
// path, download the artwork and land it in the blob cache under its iid.
package imagefetch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/metadata"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/tmdb"
)

// Actor performs one ImageFetch job.
type Actor struct {
	catalog    storage.CatalogStore
	cache      storage.ImageCache
	downloader tmdb.ImageDownloader
}

func NewActor(catalog storage.CatalogStore, cache storage.ImageCache, downloader tmdb.ImageDownloader) *Actor {
	return &Actor{catalog: catalog, cache: cache, downloader: downloader}
}

// sizeFor maps a variant's class onto the CDN rendition worth caching.
func sizeFor(class domain.ImageSizeClass) string {
	switch class {
	case domain.ImageSizeClassPoster:
		return tmdb.ImageSizePoster
	case domain.ImageSizeClassBackdrop:
		return tmdb.ImageSizeBackdrop
	case domain.ImageSizeClassStill:
		return tmdb.ImageSizeStill
	case domain.ImageSizeClassProfile:
		return tmdb.ImageSizeProfile
	default:
		return tmdb.ImageSizeOriginal
	}
}

func (a *Actor) Execute(ctx context.Context, job metadata.ImageFetchJob) error {
	log := logger.FromCtx(ctx).With(zap.String("iid", job.IID), zap.String("size_class", string(job.SizeClass)))

	// the cache is write-once; a redo after lease expiry lands here
	if ok, err := a.cache.Has(ctx, job.IID); err == nil && ok {
		log.Debug("image already cached")
		return nil
	}

	variant, err := a.catalog.GetImageVariant(ctx, job.IID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.NotFound(fmt.Sprintf("image variant %s missing", job.IID))
		}
		return domain.DatabaseError(err)
	}

	data, err := a.downloader.DownloadImage(ctx, variant.TMDBPath, sizeFor(job.SizeClass))
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			// the catalog projection is the source of truth; a 404 for a
			// path it recorded is a data defect, not a network blip
			return domain.InvalidMedia(fmt.Sprintf("image path gone upstream: %s", variant.TMDBPath))
		}
		return err
	}

	if err := a.cache.Write(ctx, job.IID, data); err != nil {
		return domain.IoError("write image cache", err)
	}

	log.Debug("image cached", zap.Int("bytes", len(data)))
	return nil
}
