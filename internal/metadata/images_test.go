package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/tmdb"
)

func primaryCount(variants []domain.ImageVariant) int {
	n := 0
	for _, v := range variants {
		if v.IsPrimary {
			n++
		}
	}
	return n
}

func TestBuildVariantsSelectsAboveMedianByVoteAverage(t *testing.T) {
	images := []tmdb.Image{
		{FilePath: "/a.jpg", VoteCount: 10, VoteAverage: 9.0},
		{FilePath: "/b.jpg", VoteCount: 100, VoteAverage: 6.0},
		{FilePath: "/c.jpg", VoteCount: 200, VoteAverage: 7.5},
	}

	variants := BuildVariants(domain.MediaTypeMovie, 1, domain.ImageSizeClassPoster, images)
	require.Len(t, variants, 3)
	assert.Equal(t, 1, primaryCount(variants))

	// median vote count is 100; only /c.jpg clears it
	primary, ok := PrimaryOf(variants)
	require.True(t, ok)
	assert.Equal(t, "/c.jpg", primary.TMDBPath)
}

func TestBuildVariantsFallbackMaxVotes(t *testing.T) {
	// all counts equal: nobody clears the median, fall back to max votes,
	// ties by vote average, then width
	images := []tmdb.Image{
		{FilePath: "/a.jpg", VoteCount: 5, VoteAverage: 6.0, Width: 500},
		{FilePath: "/b.jpg", VoteCount: 5, VoteAverage: 7.0, Width: 500},
		{FilePath: "/c.jpg", VoteCount: 5, VoteAverage: 7.0, Width: 800},
	}

	variants := BuildVariants(domain.MediaTypeMovie, 1, domain.ImageSizeClassPoster, images)
	primary, ok := PrimaryOf(variants)
	require.True(t, ok)
	assert.Equal(t, "/c.jpg", primary.TMDBPath)
	assert.Equal(t, 1, primaryCount(variants))
}

func TestBuildVariantsSingleImage(t *testing.T) {
	variants := BuildVariants(domain.MediaTypeSeries, 7, domain.ImageSizeClassBackdrop, []tmdb.Image{{FilePath: "/only.jpg"}})
	require.Len(t, variants, 1)
	assert.True(t, variants[0].IsPrimary)
}

func TestBuildVariantsEmpty(t *testing.T) {
	assert.Nil(t, BuildVariants(domain.MediaTypeMovie, 1, domain.ImageSizeClassPoster, nil))
}

func TestVariantIIDIsStable(t *testing.T) {
	a := VariantIID(domain.MediaTypeMovie, 42, domain.ImageSizeClassPoster, "/p.jpg")
	b := VariantIID(domain.MediaTypeMovie, 42, domain.ImageSizeClassPoster, "/p.jpg")
	assert.Equal(t, a, b)

	c := VariantIID(domain.MediaTypeMovie, 42, domain.ImageSizeClassBackdrop, "/p.jpg")
	assert.NotEqual(t, a, c, "size class participates in the identity")
}

func TestSingleVariantIsPrimary(t *testing.T) {
	v := SingleVariant(domain.MediaTypeSeason, 3, domain.ImageSizeClassPoster, "/s.jpg")
	assert.True(t, v.IsPrimary)
	assert.Equal(t, domain.MediaTypeSeason, v.MediaType)
	assert.NotEmpty(t, v.IID)
}
