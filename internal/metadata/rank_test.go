package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arcstream/arcstream/internal/tmdb"
)

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "the matrix", NormalizeTitle("The.Matrix"))
	assert.Equal(t, "the matrix", NormalizeTitle("The Matrix"))
	assert.Equal(t, "blade runner 2049", NormalizeTitle("Blade_Runner-2049"))
	assert.Equal(t, "magnolia", NormalizeTitle("  Magnolia!  "))
}

func TestRankMovieCandidatesExactFirst(t *testing.T) {
	candidates := []tmdb.MovieCandidate{
		{ID: 1, Title: "The Matrix Reloaded", ReleaseDate: "2003-05-15", PosterPath: "/r.jpg", VoteCount: 18000},
		{ID: 2, Title: "The Matrix", ReleaseDate: "1999-03-30", PosterPath: "/m.jpg", VoteCount: 25000},
	}

	ranked := RankMovieCandidates(candidates, "The Matrix", 1999)
	assert.Equal(t, int64(2), ranked[0].Candidate.ID)
	assert.True(t, ranked[0].Exact)
	assert.True(t, ranked[0].IsAcceptable())
}

func TestRankMovieCandidatesYearBreaksTies(t *testing.T) {
	candidates := []tmdb.MovieCandidate{
		{ID: 1, Title: "Dune", ReleaseDate: "1984-12-14", PosterPath: "/84.jpg", VoteCount: 3000},
		{ID: 2, Title: "Dune", ReleaseDate: "2021-09-15", PosterPath: "/21.jpg", VoteCount: 12000},
	}

	ranked := RankMovieCandidates(candidates, "Dune", 1984)
	assert.Equal(t, int64(1), ranked[0].Candidate.ID, "closer year outranks higher votes when both are exact")

	ranked = RankMovieCandidates(candidates, "Dune", 2021)
	assert.Equal(t, int64(2), ranked[0].Candidate.ID)
}

func TestPosterlessMovieIsNotAcceptable(t *testing.T) {
	candidates := []tmdb.MovieCandidate{
		{ID: 1, Title: "Obscure Film", ReleaseDate: "2001-01-01", PosterPath: ""},
	}
	ranked := RankMovieCandidates(candidates, "Obscure Film", 2001)
	assert.True(t, ranked[0].Exact)
	assert.False(t, ranked[0].IsAcceptable(), "a movie without a poster path can never satisfy the primary-poster requirement")
}

func TestDissimilarTitleIsNotAcceptable(t *testing.T) {
	candidates := []tmdb.MovieCandidate{
		{ID: 1, Title: "Something Else Entirely Different", PosterPath: "/x.jpg"},
	}
	ranked := RankMovieCandidates(candidates, "The Matrix", 1999)
	assert.False(t, ranked[0].IsAcceptable())
}

func TestRankSeriesCandidates(t *testing.T) {
	candidates := []tmdb.TVCandidate{
		{ID: 1, Name: "Fargo", FirstAirDate: "2014-04-15", PosterPath: "/f.jpg", VoteCount: 3000},
		{ID: 2, Name: "Fargo Documentaries", FirstAirDate: "2018-01-01", PosterPath: "/d.jpg", VoteCount: 10},
	}

	ranked := RankSeriesCandidates(candidates, "Fargo", 2014)
	assert.Equal(t, int64(1), ranked[0].Candidate.ID)
	assert.True(t, ranked[0].IsAcceptable())
}

func TestOverlapAndJaccard(t *testing.T) {
	q := tokenSet("the matrix")
	c := tokenSet("the matrix reloaded")

	assert.Equal(t, 10000, overlapBP(q, c), "every query token present")
	assert.Equal(t, 6666, jaccardBP(q, c), "2 shared of 3 total")
}
