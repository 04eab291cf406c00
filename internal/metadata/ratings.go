package metadata

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/tmdb"
)

// releaseTypeOf maps the provider's numeric release types onto ours.
func releaseTypeOf(t int) domain.ReleaseType {
	switch t {
	case tmdb.ReleaseTypePremiere:
		return domain.ReleaseTypePremiere
	case tmdb.ReleaseTypeTheatricalLimited:
		return domain.ReleaseTypeTheatricalLtd
	case tmdb.ReleaseTypeTheatrical:
		return domain.ReleaseTypeTheatrical
	case tmdb.ReleaseTypeDigital:
		return domain.ReleaseTypeDigital
	case tmdb.ReleaseTypePhysical:
		return domain.ReleaseTypePhysical
	case tmdb.ReleaseTypeTV:
		return domain.ReleaseTypeTV
	default:
		return domain.ReleaseTypePremiere
	}
}

func releaseTypeRank(t domain.ReleaseType) int {
	for i, rt := range domain.ReleaseTypePriority {
		if rt == t {
			return i
		}
	}
	return len(domain.ReleaseTypePriority)
}

// ProjectReleaseDates flattens the per-country response, ordering each
// country's entries by the preferred release-type priority.
func ProjectReleaseDates(resp tmdb.ReleaseDatesResponse) []domain.ReleaseDate {
	var out []domain.ReleaseDate
	for _, country := range resp.Results {
		region := NormalizeRegion(country.ISO31661)
		entries := make([]domain.ReleaseDate, 0, len(country.ReleaseDates))
		for _, rd := range country.ReleaseDates {
			date, _ := time.Parse(tmdb.ReleaseDateFormat, firstN(rd.ReleaseDate, len(tmdb.ReleaseDateFormat)))
			entries = append(entries, domain.ReleaseDate{
				Country:       region,
				Date:          date,
				Type:          releaseTypeOf(rd.Type),
				Certification: NormalizeRating(rd.Certification),
			})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return releaseTypeRank(entries[i].Type) < releaseTypeRank(entries[j].Type)
		})
		out = append(out, entries...)
	}
	return out
}

// SelectCertification picks the single primary certification: preferred
// regions in order first, then any region; within a region the entry under
// the preferred release type wins, else the first non-empty certification.
func SelectCertification(dates []domain.ReleaseDate) string {
	byRegion := make(map[string][]domain.ReleaseDate)
	var regionOrder []string
	for _, rd := range dates {
		if _, seen := byRegion[rd.Country]; !seen {
			regionOrder = append(regionOrder, rd.Country)
		}
		byRegion[rd.Country] = append(byRegion[rd.Country], rd)
	}

	scan := func(region string) string {
		entries := byRegion[region]
		// entries arrive ordered by release-type priority, so the first
		// certified entry is already the preferred-type one
		for _, rd := range entries {
			if rd.Certification != "" {
				return rd.Certification
			}
		}
		return ""
	}

	for _, region := range domain.PreferredCertificationRegions {
		if cert := scan(region); cert != "" {
			return cert
		}
	}
	for _, region := range regionOrder {
		if cert := scan(region); cert != "" {
			return cert
		}
	}
	return ""
}

// SynthesizeContentRatings derives a content-ratings list from release
// dates when the provider has no distinct content-rating response (movies).
func SynthesizeContentRatings(dates []domain.ReleaseDate) []domain.ContentRating {
	var ratings []domain.ContentRating
	seen := make(map[string]struct{})
	for _, rd := range dates {
		if rd.Certification == "" {
			continue
		}
		// keep the earliest (preferred-type) certification per region
		if _, ok := seen[rd.Country]; ok {
			continue
		}
		seen[rd.Country] = struct{}{}
		ratings = append(ratings, domain.ContentRating{
			Region: rd.Country,
			Rating: rd.Certification,
		})
	}
	return ratings
}

// NormalizeContentRatings cleans the provider's series content ratings:
// region codes uppercased, rating values stripped of stray whitespace,
// descriptors deduplicated in insertion order, and per-region collisions
// merged (a present rating beats an absent one; the shorter value wins when
// both are present).
func NormalizeContentRatings(results []tmdb.ContentRatingResult) []domain.ContentRating {
	var out []domain.ContentRating
	index := make(map[string]int)

	for _, r := range results {
		region := NormalizeRegion(r.ISO31661)
		rating := NormalizeRating(r.Rating)
		descriptors := dedupeStrings(r.Descriptors)

		idx, exists := index[region]
		if !exists {
			index[region] = len(out)
			out = append(out, domain.ContentRating{
				Region:      region,
				Rating:      rating,
				Descriptors: descriptors,
			})
			continue
		}

		merged := &out[idx]
		switch {
		case merged.Rating == "" && rating != "":
			merged.Rating = rating
		case merged.Rating != "" && rating != "" && len(rating) < len(merged.Rating):
			merged.Rating = rating
		}
		merged.Descriptors = dedupeStrings(append(merged.Descriptors, descriptors...))
	}
	return out
}

// NormalizeRegion canonicalizes an ISO 3166-1 code ("au ", "Au" → "AU");
// unparseable input falls back to a trimmed uppercase of itself.
func NormalizeRegion(code string) string {
	code = strings.TrimSpace(code)
	if region, err := language.ParseRegion(code); err == nil {
		return region.String()
	}
	return strings.ToUpper(code)
}

// NormalizeRating strips all whitespace from a rating code, so " R 18+ "
// and "R18+" are the same rating.
func NormalizeRating(rating string) string {
	return strings.Join(strings.Fields(rating), "")
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstN(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
