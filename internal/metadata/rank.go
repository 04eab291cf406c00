package metadata

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/arcstream/arcstream/internal/tmdb"
)

// Similarity floors a candidate must clear to be considered at all. Scores
// are in basis points so integer comparisons stay exact.
const (
	minOverlapBP = 6000
	minJaccardBP = 5000

	unknownYearDistance = 1 << 20
)

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9 ]+`)

// NormalizeTitle lowercases, strips punctuation and collapses whitespace so
// "The Matrix" and "the.matrix" compare equal.
func NormalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(".", " ", "_", " ", "-", " ", ":", " ", "'", "").Replace(s)
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// overlapBP is |query ∩ candidate| / |query| in basis points: how much of
// what the user's filename said is present in the candidate title.
func overlapBP(query, candidate map[string]struct{}) int {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for tok := range query {
		if _, ok := candidate[tok]; ok {
			matched++
		}
	}
	return matched * 10000 / len(query)
}

// jaccardBP is |∩| / |∪| in basis points, symmetric so a candidate padded
// with extra words scores lower.
func jaccardBP(a, b map[string]struct{}) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return inter * 10000 / union
}

// RankedMovie is one scored search candidate.
type RankedMovie struct {
	Candidate tmdb.MovieCandidate

	Exact        bool
	OverlapBP    int
	JaccardBP    int
	YearDistance int
	HasPoster    bool
}

// IsAcceptable applies the similarity floor; movies additionally require a
// poster path because the primary poster is a hard requirement downstream.
func (r RankedMovie) IsAcceptable() bool {
	if !r.Exact && r.OverlapBP < minOverlapBP && r.JaccardBP < minJaccardBP {
		return false
	}
	return r.HasPoster
}

// RankMovieCandidates scores and orders candidates for (titleHint,
// yearHint): exact title first, then token overlap, Jaccard, year
// proximity, vote count, popularity, and finally poster presence.
func RankMovieCandidates(candidates []tmdb.MovieCandidate, titleHint string, yearHint int) []RankedMovie {
	queryNorm := NormalizeTitle(titleHint)
	queryTokens := tokenSet(queryNorm)

	ranked := make([]RankedMovie, 0, len(candidates))
	for _, c := range candidates {
		candNorm := NormalizeTitle(c.Title)
		candTokens := tokenSet(candNorm)
		origNorm := NormalizeTitle(c.OriginalTitle)

		r := RankedMovie{
			Candidate:    c,
			Exact:        queryNorm != "" && (candNorm == queryNorm || origNorm == queryNorm),
			OverlapBP:    overlapBP(queryTokens, candTokens),
			JaccardBP:    jaccardBP(queryTokens, candTokens),
			YearDistance: yearDistance(c.ReleaseDate, yearHint),
			HasPoster:    c.PosterPath != "",
		}
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Exact != b.Exact {
			return a.Exact
		}
		if a.OverlapBP != b.OverlapBP {
			return a.OverlapBP > b.OverlapBP
		}
		if a.JaccardBP != b.JaccardBP {
			return a.JaccardBP > b.JaccardBP
		}
		if a.YearDistance != b.YearDistance {
			return a.YearDistance < b.YearDistance
		}
		if a.Candidate.VoteCount != b.Candidate.VoteCount {
			return a.Candidate.VoteCount > b.Candidate.VoteCount
		}
		if a.Candidate.Popularity != b.Candidate.Popularity {
			return a.Candidate.Popularity > b.Candidate.Popularity
		}
		return a.HasPoster && !b.HasPoster
	})
	return ranked
}

// RankedSeries mirrors RankedMovie for TV search candidates. Series accept
// poster-less candidates at ranking time; the primary-poster requirement is
// enforced when the reference is built.
type RankedSeries struct {
	Candidate tmdb.TVCandidate

	Exact        bool
	OverlapBP    int
	JaccardBP    int
	YearDistance int
	HasPoster    bool
}

func (r RankedSeries) IsAcceptable() bool {
	return r.Exact || r.OverlapBP >= minOverlapBP || r.JaccardBP >= minJaccardBP
}

func RankSeriesCandidates(candidates []tmdb.TVCandidate, titleHint string, yearHint int) []RankedSeries {
	queryNorm := NormalizeTitle(titleHint)
	queryTokens := tokenSet(queryNorm)

	ranked := make([]RankedSeries, 0, len(candidates))
	for _, c := range candidates {
		candNorm := NormalizeTitle(c.Name)
		candTokens := tokenSet(candNorm)
		origNorm := NormalizeTitle(c.OriginalName)

		ranked = append(ranked, RankedSeries{
			Candidate:    c,
			Exact:        queryNorm != "" && (candNorm == queryNorm || origNorm == queryNorm),
			OverlapBP:    overlapBP(queryTokens, candTokens),
			JaccardBP:    jaccardBP(queryTokens, candTokens),
			YearDistance: yearDistance(c.FirstAirDate, yearHint),
			HasPoster:    c.PosterPath != "",
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Exact != b.Exact {
			return a.Exact
		}
		if a.OverlapBP != b.OverlapBP {
			return a.OverlapBP > b.OverlapBP
		}
		if a.JaccardBP != b.JaccardBP {
			return a.JaccardBP > b.JaccardBP
		}
		if a.YearDistance != b.YearDistance {
			return a.YearDistance < b.YearDistance
		}
		if a.Candidate.VoteCount != b.Candidate.VoteCount {
			return a.Candidate.VoteCount > b.Candidate.VoteCount
		}
		if a.Candidate.Popularity != b.Candidate.Popularity {
			return a.Candidate.Popularity > b.Candidate.Popularity
		}
		return a.HasPoster && !b.HasPoster
	})
	return ranked
}

// yearDistance compares a release date string's year with the hint; either
// side missing pushes the candidate behind every year-matched one.
func yearDistance(releaseDate string, yearHint int) int {
	if yearHint == 0 || len(releaseDate) < 4 {
		return unknownYearDistance
	}
	year, err := strconv.Atoi(releaseDate[:4])
	if err != nil {
		return unknownYearDistance
	}
	d := year - yearHint
	if d < 0 {
		d = -d
	}
	return d
}
