package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/tmdb"
)

func TestNormalizeRegion(t *testing.T) {
	assert.Equal(t, "AU", NormalizeRegion("au"))
	assert.Equal(t, "AU", NormalizeRegion("AU "))
	assert.Equal(t, "US", NormalizeRegion(" us"))
	assert.Equal(t, "XX", NormalizeRegion("xx"))
}

func TestNormalizeRating(t *testing.T) {
	assert.Equal(t, "R18+", NormalizeRating(" R 18+ "))
	assert.Equal(t, "R18+", NormalizeRating("R18+"))
	assert.Equal(t, "TV-MA", NormalizeRating("  TV-MA"))
	assert.Equal(t, "", NormalizeRating("   "))
}

func TestNormalizeContentRatingsMergesRegions(t *testing.T) {
	in := []tmdb.ContentRatingResult{
		{ISO31661: "au", Rating: "", Descriptors: []string{"Violence"}},
		{ISO31661: "AU ", Rating: " R 18+ ", Descriptors: []string{"Violence", "Language"}},
		{ISO31661: "US", Rating: "TV-MA"},
	}

	out := NormalizeContentRatings(in)
	require.Len(t, out, 2)

	au := out[0]
	assert.Equal(t, "AU", au.Region)
	assert.Equal(t, "R18+", au.Rating, "a present rating beats an absent one")
	assert.Equal(t, []string{"Violence", "Language"}, au.Descriptors, "descriptors dedupe in insertion order")

	assert.Equal(t, "US", out[1].Region)
}

func TestNormalizeContentRatingsPrefersShorterRating(t *testing.T) {
	in := []tmdb.ContentRatingResult{
		{ISO31661: "DE", Rating: "FSK 16"},
		{ISO31661: "de", Rating: "16"},
	}

	out := NormalizeContentRatings(in)
	require.Len(t, out, 1)
	assert.Equal(t, "16", out[0].Rating, "the shorter value wins when both regions carry one")
}

func releaseDatesFixture() tmdb.ReleaseDatesResponse {
	return tmdb.ReleaseDatesResponse{
		Results: []tmdb.CountryReleaseDates{
			{
				ISO31661: "FR",
				ReleaseDates: []tmdb.ReleaseDateEntry{
					{Certification: "12", ReleaseDate: "1999-06-23", Type: tmdb.ReleaseTypeTheatrical},
				},
			},
			{
				ISO31661: "US",
				ReleaseDates: []tmdb.ReleaseDateEntry{
					{Certification: "", ReleaseDate: "1999-09-21", Type: tmdb.ReleaseTypePhysical},
					{Certification: "R", ReleaseDate: "1999-03-31", Type: tmdb.ReleaseTypeTheatrical},
				},
			},
		},
	}
}

func TestProjectReleaseDatesOrdersByTypePriority(t *testing.T) {
	dates := ProjectReleaseDates(releaseDatesFixture())
	require.Len(t, dates, 3)

	// within the US, the theatrical entry must precede physical
	var usTypes []domain.ReleaseType
	for _, d := range dates {
		if d.Country == "US" {
			usTypes = append(usTypes, d.Type)
		}
	}
	assert.Equal(t, []domain.ReleaseType{domain.ReleaseTypeTheatrical, domain.ReleaseTypePhysical}, usTypes)
}

func TestSelectCertificationPrefersRegionOrder(t *testing.T) {
	dates := ProjectReleaseDates(releaseDatesFixture())
	assert.Equal(t, "R", SelectCertification(dates), "US precedes FR in the preferred region list")
}

func TestSelectCertificationFallsBackToAnyRegion(t *testing.T) {
	dates := []domain.ReleaseDate{
		{Country: "JP", Type: domain.ReleaseTypeTheatrical, Certification: "PG12"},
	}
	assert.Equal(t, "PG12", SelectCertification(dates))
}

func TestSynthesizeContentRatings(t *testing.T) {
	dates := ProjectReleaseDates(releaseDatesFixture())
	ratings := SynthesizeContentRatings(dates)

	require.Len(t, ratings, 2)
	byRegion := map[string]string{}
	for _, r := range ratings {
		byRegion[r.Region] = r.Rating
	}
	assert.Equal(t, "12", byRegion["FR"])
	assert.Equal(t, "R", byRegion["US"], "the preferred-type certification wins per region")
}
