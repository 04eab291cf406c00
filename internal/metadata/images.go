package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/tmdb"
)

// VariantIID derives the stable identifier the player addresses an image
// variant by. It depends only on what the variant is, so re-enrichment
// never changes it.
func VariantIID(mediaType domain.MediaType, mediaID int64, sizeClass domain.ImageSizeClass, tmdbPath string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s:%s", mediaType, mediaID, sizeClass, tmdbPath)))
	return hex.EncodeToString(sum[:16])
}

// BuildVariants turns one image list into variant rows with exactly one
// primary (when the list is non-empty), selected by the median-vote rule.
func BuildVariants(mediaType domain.MediaType, mediaID int64, sizeClass domain.ImageSizeClass, images []tmdb.Image) []domain.ImageVariant {
	if len(images) == 0 {
		return nil
	}

	primaryIdx := selectPrimary(images)

	out := make([]domain.ImageVariant, 0, len(images))
	for i, img := range images {
		out = append(out, domain.ImageVariant{
			IID:         VariantIID(mediaType, mediaID, sizeClass, img.FilePath),
			MediaID:     mediaID,
			MediaType:   mediaType,
			TMDBPath:    img.FilePath,
			Width:       img.Width,
			Height:      img.Height,
			Language:    img.ISO6391,
			VoteAverage: img.VoteAverage,
			VoteCount:   img.VoteCount,
			SizeClass:   sizeClass,
			IsPrimary:   i == primaryIdx,
		})
	}
	return out
}

// selectPrimary implements the deterministic primary choice: among
// candidates with vote_count above the median, the best vote_average wins
// (ties by vote_count); if nobody clears the median, the highest vote_count
// wins (ties by vote_average, then width).
func selectPrimary(images []tmdb.Image) int {
	median := medianVoteCount(images)

	best := -1
	for i, img := range images {
		if img.VoteCount <= median {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		b := images[best]
		if img.VoteAverage > b.VoteAverage ||
			(img.VoteAverage == b.VoteAverage && img.VoteCount > b.VoteCount) {
			best = i
		}
	}
	if best >= 0 {
		return best
	}

	best = 0
	for i := 1; i < len(images); i++ {
		img, b := images[i], images[best]
		switch {
		case img.VoteCount != b.VoteCount:
			if img.VoteCount > b.VoteCount {
				best = i
			}
		case img.VoteAverage != b.VoteAverage:
			if img.VoteAverage > b.VoteAverage {
				best = i
			}
		case img.Width > b.Width:
			best = i
		}
	}
	return best
}

func medianVoteCount(images []tmdb.Image) int {
	counts := make([]int, len(images))
	for i, img := range images {
		counts[i] = img.VoteCount
	}
	sort.Ints(counts)
	return counts[len(counts)/2]
}

// PrimaryOf returns the primary variant of a built list.
func PrimaryOf(variants []domain.ImageVariant) (domain.ImageVariant, bool) {
	for _, v := range variants {
		if v.IsPrimary {
			return v, true
		}
	}
	return domain.ImageVariant{}, false
}

// SingleVariant wraps one known path (a season poster, an episode still, a
// person profile) as the sole, primary variant of its class.
func SingleVariant(mediaType domain.MediaType, mediaID int64, sizeClass domain.ImageSizeClass, tmdbPath string) domain.ImageVariant {
	return domain.ImageVariant{
		IID:       VariantIID(mediaType, mediaID, sizeClass, tmdbPath),
		MediaID:   mediaID,
		MediaType: mediaType,
		TMDBPath:  tmdbPath,
		SizeClass: sizeClass,
		IsPrimary: true,
	}
}
