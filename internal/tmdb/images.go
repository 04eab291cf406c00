package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/arcstream/arcstream/internal/domain"
)

// image sizes the player layout uses; "original" is the safe default for
// anything cache-side resizing will handle later.
const (
	ImageSizeOriginal = "original"
	ImageSizePoster   = "w500"
	ImageSizeBackdrop = "w1280"
	ImageSizeStill    = "w780"
	ImageSizeProfile  = "w185"
)

// ImageDownloader fetches artwork bytes for a tmdb image path.
type ImageDownloader interface {
	DownloadImage(ctx context.Context, tmdbPath, size string) ([]byte, error)
}

const imageHost = "image.tmdb.org"

// DownloadImage fetches one artwork file from the provider's image CDN.
// A 404 here is terminal: the catalog said this path exists, so the
// projection (not the network) is wrong.
func (t *TMDB) DownloadImage(ctx context.Context, tmdbPath, size string) ([]byte, error) {
	if size == "" {
		size = ImageSizeOriginal
	}

	u := url.URL{Scheme: "https", Host: imageHost, Path: "/t/p/" + size + tmdbPath}

	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.Internalf("image download timed out: %s", tmdbPath)
		}
		return nil, domain.Internalf("image download failed: %s: %v", tmdbPath, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(resp.Body)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: image %s", ErrNotFound, tmdbPath)
	default:
		return nil, domain.Internalf("image download status %d: %s", resp.StatusCode, tmdbPath)
	}
}
