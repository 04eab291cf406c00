package metadata

import (
	"strconv"
	"strings"
	"time"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/tmdb"
)

const (
	maxMovieCast  = 20
	maxMovieCrew  = 10
	maxSeriesCast = 20
	maxSeriesCrew = 20
)

func projectGenres(in []tmdb.Genre) []domain.Genre {
	out := make([]domain.Genre, 0, len(in))
	for _, g := range in {
		out = append(out, domain.Genre{ID: g.ID, Name: g.Name})
	}
	return out
}

func projectLanguages(in []tmdb.SpokenLanguage) []domain.SpokenLanguage {
	out := make([]domain.SpokenLanguage, 0, len(in))
	for _, l := range in {
		out = append(out, domain.SpokenLanguage{ISO6391: l.ISO6391, Name: l.Name})
	}
	return out
}

func projectCompanies(in []tmdb.ProductionCompany) []domain.ProductionCompany {
	out := make([]domain.ProductionCompany, 0, len(in))
	for _, c := range in {
		out = append(out, domain.ProductionCompany{
			ID:            c.ID,
			Name:          c.Name,
			LogoPath:      c.LogoPath,
			OriginCountry: c.OriginCountry,
		})
	}
	return out
}

func projectCountries(in []tmdb.ProductionCountry) []domain.ProductionCountry {
	out := make([]domain.ProductionCountry, 0, len(in))
	for _, c := range in {
		out = append(out, domain.ProductionCountry{ISO31661: NormalizeRegion(c.ISO31661), Name: c.Name})
	}
	return out
}

func projectKeywords(in []tmdb.Keyword) []domain.Keyword {
	out := make([]domain.Keyword, 0, len(in))
	for _, k := range in {
		out = append(out, domain.Keyword{ID: k.ID, Name: k.Name})
	}
	return out
}

func projectVideos(in []tmdb.Video) []domain.Video {
	out := make([]domain.Video, 0, len(in))
	for _, v := range in {
		out = append(out, domain.Video{
			ID:       v.ID,
			Key:      v.Key,
			Name:     v.Name,
			Site:     v.Site,
			Type:     v.Type,
			Official: v.Official,
		})
	}
	return out
}

// projectAlternativeTitles trims, drops empties and deduplicates on
// (region, type, title).
func projectAlternativeTitles(in []tmdb.AlternativeTitle) []domain.AlternativeTitle {
	type key struct{ region, typ, title string }
	seen := make(map[key]struct{}, len(in))

	out := make([]domain.AlternativeTitle, 0, len(in))
	for _, t := range in {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		region := NormalizeRegion(t.ISO31661)
		k := key{region: region, typ: t.Type, title: title}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, domain.AlternativeTitle{ISO31661: region, Title: title, Type: t.Type})
	}
	return out
}

func projectExternalIDs(in tmdb.ExternalIDsResponse) domain.ExternalIDs {
	ids := domain.ExternalIDs{
		IMDBID:      in.IMDBID,
		FacebookID:  in.FacebookID,
		InstagramID: in.InstagramID,
		TwitterID:   in.TwitterID,
	}
	if tvdb, err := in.TVDBID.Get(); err == nil && tvdb != 0 {
		ids.TVDBID = itoa(tvdb)
	}
	return ids
}

func projectIDList(movies []tmdb.MovieCandidate) []int64 {
	out := make([]int64, 0, len(movies))
	for _, m := range movies {
		out = append(out, m.ID)
	}
	return out
}

func projectTVIDList(series []tmdb.TVCandidate) []int64 {
	out := make([]int64, 0, len(series))
	for _, s := range series {
		out = append(out, s.ID)
	}
	return out
}

// projectMovieCast caps the billing at 20 and hands ascending image slots
// to members with a profile image; the rest sort last with NoImageSlot.
func projectMovieCast(in []tmdb.CastCredit) []domain.CastMember {
	if len(in) > maxMovieCast {
		in = in[:maxMovieCast]
	}

	out := make([]domain.CastMember, 0, len(in))
	slot := 0
	for _, c := range in {
		member := domain.CastMember{
			PersonID:    c.ID,
			Name:        c.Name,
			Character:   c.Character,
			Order:       c.Order,
			ProfilePath: c.ProfilePath,
			ImageSlot:   domain.NoImageSlot,
		}
		if c.ProfilePath != "" {
			member.ImageSlot = slot
			slot++
		}
		out = append(out, member)
	}
	return out
}

// projectMovieCrew keeps only the roles the detail page shows, capped at 10.
func projectMovieCrew(in []tmdb.CrewCredit) []domain.CrewMember {
	out := make([]domain.CrewMember, 0, maxMovieCrew)
	for _, c := range in {
		if _, ok := domain.MovieCrewRoles[domain.CrewRole(c.Job)]; !ok {
			continue
		}
		out = append(out, domain.CrewMember{
			PersonID:    c.ID,
			Name:        c.Name,
			Job:         c.Job,
			Department:  c.Department,
			ProfilePath: c.ProfilePath,
		})
		if len(out) == maxMovieCrew {
			break
		}
	}
	return out
}

// projectSeriesCast projects aggregate credits: the character shown is the
// first non-empty one among the member's roles, else the first role's.
func projectSeriesCast(in []tmdb.AggregateCastCredit) []domain.CastMember {
	if len(in) > maxSeriesCast {
		in = in[:maxSeriesCast]
	}

	out := make([]domain.CastMember, 0, len(in))
	slot := 0
	for _, c := range in {
		character := ""
		for _, role := range c.Roles {
			if role.Character != "" {
				character = role.Character
				break
			}
		}
		if character == "" && len(c.Roles) > 0 {
			character = c.Roles[0].Character
		}

		member := domain.CastMember{
			PersonID:    c.ID,
			Name:        c.Name,
			Character:   character,
			Order:       c.Order,
			ProfilePath: c.ProfilePath,
			ImageSlot:   domain.NoImageSlot,
		}
		if c.ProfilePath != "" {
			member.ImageSlot = slot
			slot++
		}
		out = append(out, member)
	}
	return out
}

// projectSeriesCrew caps aggregate crew at 20 with no role filter.
func projectSeriesCrew(in []tmdb.AggregateCrewCredit) []domain.CrewMember {
	if len(in) > maxSeriesCrew {
		in = in[:maxSeriesCrew]
	}

	out := make([]domain.CrewMember, 0, len(in))
	for _, c := range in {
		job := ""
		if len(c.Jobs) > 0 {
			job = c.Jobs[0].Job
		}
		out = append(out, domain.CrewMember{
			PersonID:    c.ID,
			Name:        c.Name,
			Job:         job,
			Department:  c.Department,
			ProfilePath: c.ProfilePath,
		})
	}
	return out
}

func projectEpisodeCrew(in []tmdb.CrewCredit) []domain.CrewMember {
	out := make([]domain.CrewMember, 0, len(in))
	for _, c := range in {
		out = append(out, domain.CrewMember{
			PersonID:    c.ID,
			Name:        c.Name,
			Job:         c.Job,
			Department:  c.Department,
			ProfilePath: c.ProfilePath,
		})
	}
	return out
}

func projectGuestStars(in []tmdb.CastCredit) []domain.CastMember {
	out := make([]domain.CastMember, 0, len(in))
	for _, c := range in {
		out = append(out, domain.CastMember{
			PersonID:    c.ID,
			Name:        c.Name,
			Character:   c.Character,
			Order:       c.Order,
			ProfilePath: c.ProfilePath,
			ImageSlot:   domain.NoImageSlot,
		})
	}
	return out
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(tmdb.ReleaseDateFormat, firstN(s, len(tmdb.ReleaseDateFormat)))
	return t
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
