package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/scanner"
	"github.com/arcstream/arcstream/internal/tmdb"
)

// missingPosterPrefix marks the tolerated per-candidate failure: a
// candidate without a usable poster is skipped, not fatal for the job.
const missingPosterPrefix = "missing_primary_poster"

func isMissingPosterErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), missingPosterPrefix)
}

// enrichMovie identifies the movie behind the file, builds its reference
// from the provider, persists it and queues artwork.
func (a *Actor) enrichMovie(ctx context.Context, run *enrichRun, cmd EnrichCommand, file domain.MediaFile) (Result, error) {
	log := logger.FromCtx(ctx)

	titleHint, yearHint := movieHints(file)
	if titleHint == "" {
		return Result{}, domain.InvalidMedia("no title derivable from " + file.Path)
	}

	attempted := make(map[int64]struct{})

	// an explicit id embedded in the filename wins over any search
	if cmd.TMDBIDHint > 0 {
		attempted[cmd.TMDBIDHint] = struct{}{}
		res, err := a.buildMovie(ctx, run, cmd, file, cmd.TMDBIDHint)
		if err == nil {
			return res, nil
		}
		if !isMissingPosterErr(err) {
			return Result{}, err
		}
		log.Warn("tmdb id hint has no usable poster, falling back to search", zap.Int64("tmdb_id", cmd.TMDBIDHint))
	}

	// search with year first; filenames often carry a release year that
	// differs from the provider's, so retry without it when it was present
	var searchYears []int
	if yearHint > 0 {
		searchYears = append(searchYears, yearHint)
	}
	searchYears = append(searchYears, 0)

	var lastErr error
	for _, year := range searchYears {
		resp, err := a.client.SearchMovies(ctx, titleHint, year)
		if err != nil {
			return Result{}, err
		}

		for _, ranked := range RankMovieCandidates(resp.Results, titleHint, yearHint) {
			if !ranked.IsAcceptable() {
				continue
			}
			if _, done := attempted[ranked.Candidate.ID]; done {
				continue
			}
			attempted[ranked.Candidate.ID] = struct{}{}

			res, err := a.buildMovie(ctx, run, cmd, file, ranked.Candidate.ID)
			if err == nil {
				return res, nil
			}
			if isMissingPosterErr(err) {
				log.Debug("candidate without usable poster skipped", zap.Int64("tmdb_id", ranked.Candidate.ID))
				lastErr = err
				continue
			}
			return Result{}, err
		}
	}

	if lastErr != nil {
		return Result{}, domain.InvalidMedia(lastErr.Error())
	}
	return Result{}, domain.InvalidMedia(fmt.Sprintf("no acceptable movie candidate for %q (%d)", titleHint, yearHint))
}

// movieHints derives (title, year) per the identification cascade; the
// parsed info from analysis is authoritative when present.
func movieHints(file domain.MediaFile) (string, int) {
	if pi := file.ParsedInfo; pi != nil && pi.MovieTitle != "" {
		return pi.MovieTitle, pi.MovieYear
	}
	return scanner.ParseMovie(file.Path)
}

// movieSubResources is everything fetched concurrently next to the main
// details call. Each field stays zero-valued when its endpoint failed.
type movieSubResources struct {
	releaseDates tmdb.ReleaseDatesResponse
	keywords     tmdb.KeywordsResponse
	videos       tmdb.VideosResponse
	translations tmdb.TranslationsResponse
	altTitles    tmdb.AlternativeTitlesResponse
	recs         tmdb.SearchMoviesResponse
	similar      tmdb.SearchMoviesResponse
	externalIDs  tmdb.ExternalIDsResponse
	credits      tmdb.CreditsResponse
	images       tmdb.ImagesResponse
}

// fetchMovieSubResources fans out the tolerant sub-endpoint calls. Only
// the caller's main details fetch is fatal; a failure here logs and leaves
// the field empty.
func (a *Actor) fetchMovieSubResources(ctx context.Context, tmdbID int64) movieSubResources {
	log := logger.FromCtx(ctx)
	var sub movieSubResources

	tolerant := func(name string, fetch func() error) func() error {
		return func() error {
			if err := fetch(); err != nil {
				log.Warn("movie sub-endpoint failed", zap.String("endpoint", name), zap.Int64("tmdb_id", tmdbID), zap.Error(err))
			}
			return nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(tolerant("release_dates", func() (err error) { sub.releaseDates, err = a.client.MovieReleaseDates(gctx, tmdbID); return }))
	g.Go(tolerant("keywords", func() (err error) { sub.keywords, err = a.client.MovieKeywords(gctx, tmdbID); return }))
	g.Go(tolerant("videos", func() (err error) { sub.videos, err = a.client.MovieVideos(gctx, tmdbID); return }))
	g.Go(tolerant("translations", func() (err error) { sub.translations, err = a.client.MovieTranslations(gctx, tmdbID); return }))
	g.Go(tolerant("alternative_titles", func() (err error) { sub.altTitles, err = a.client.MovieAlternativeTitles(gctx, tmdbID); return }))
	g.Go(tolerant("recommendations", func() (err error) { sub.recs, err = a.client.MovieRecommendations(gctx, tmdbID); return }))
	g.Go(tolerant("similar", func() (err error) { sub.similar, err = a.client.MovieSimilar(gctx, tmdbID); return }))
	g.Go(tolerant("external_ids", func() (err error) { sub.externalIDs, err = a.client.MovieExternalIDs(gctx, tmdbID); return }))
	g.Go(tolerant("credits", func() (err error) { sub.credits, err = a.client.MovieCredits(gctx, tmdbID); return }))
	g.Go(tolerant("images", func() (err error) { sub.images, err = a.client.MovieImages(gctx, tmdbID); return }))
	_ = g.Wait()

	return sub
}

// buildMovie fetches, projects and persists one movie candidate.
func (a *Actor) buildMovie(ctx context.Context, run *enrichRun, cmd EnrichCommand, file domain.MediaFile, tmdbID int64) (Result, error) {
	log := logger.FromCtx(ctx)

	details, err := a.client.MovieDetails(ctx, tmdbID)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			return Result{}, domain.InvalidMedia(fmt.Sprintf("movie_not_found:%d", tmdbID))
		}
		return Result{}, err
	}

	sub := a.fetchMovieSubResources(ctx, tmdbID)

	releaseDates := ProjectReleaseDates(sub.releaseDates)
	projected := domain.MovieDetails{
		TMDBID:              details.ID,
		Title:               details.Title,
		OriginalTitle:       details.OriginalTitle,
		Overview:            details.Overview,
		Tagline:             details.Tagline,
		ReleaseDate:         parseDate(details.ReleaseDate),
		VoteAverage:         details.VoteAverage,
		VoteCount:           details.VoteCount,
		Popularity:          details.Popularity,
		Genres:              projectGenres(details.Genres),
		SpokenLanguages:     projectLanguages(details.SpokenLanguages),
		ProductionCompanies: projectCompanies(details.ProductionCompanies),
		ProductionCountries: projectCountries(details.ProductionCountries),
		ReleaseDates:        releaseDates,
		Certification:       SelectCertification(releaseDates),
		ContentRatings:      SynthesizeContentRatings(releaseDates),
		Keywords:            projectKeywords(sub.keywords.All()),
		Videos:              projectVideos(sub.videos.Results),
		Translations:        projectTranslations(sub.translations.Translations),
		AlternativeTitles:   projectAlternativeTitles(sub.altTitles.All()),
		Recommendations:     projectIDList(sub.recs.Results),
		Similar:             projectIDList(sub.similar.Results),
		Cast:                projectMovieCast(sub.credits.Cast),
		Crew:                projectMovieCrew(sub.credits.Crew),
		External:            projectExternalIDs(sub.externalIDs),
		PosterPath:          details.PosterPath,
		BackdropPath:        details.BackdropPath,
	}
	if runtime, err := details.Runtime.Get(); err == nil {
		projected.Runtime = runtime
	}
	if details.BelongsToCollection != nil {
		projected.CollectionID = &details.BelongsToCollection.ID
		projected.CollectionName = details.BelongsToCollection.Name
	}

	// decide artwork before persisting anything: a movie without a
	// selectable poster is rejected here so a poster-less candidate never
	// half-lands in the catalog
	posters := sub.images.Posters
	if len(posters) == 0 && details.PosterPath != "" {
		posters = []tmdb.Image{{FilePath: details.PosterPath}}
	}
	if len(posters) == 0 {
		return Result{}, domain.InvalidMedia(fmt.Sprintf("%s:movie:%d", missingPosterPrefix, tmdbID))
	}

	backdrops := sub.images.Backdrops
	if len(backdrops) == 0 && details.BackdropPath != "" {
		backdrops = []tmdb.Image{{FilePath: details.BackdropPath}}
	}
	if len(backdrops) == 0 {
		log.Warn("movie has no backdrop", zap.Int64("tmdb_id", tmdbID))
	}

	ref := domain.MovieReference{
		LibraryID:   cmd.LibraryID,
		TMDBID:      details.ID,
		Title:       details.Title,
		FileID:      &file.ID,
		Details:     &projected,
		DetailState: domain.DetailsStateReady,
	}

	refID, err := a.catalog.UpsertMovieReference(ctx, ref)
	if err != nil {
		return Result{}, domain.DatabaseError(err)
	}

	posterVariants := BuildVariants(domain.MediaTypeMovie, refID, domain.ImageSizeClassPoster, posters)
	backdropVariants := BuildVariants(domain.MediaTypeMovie, refID, domain.ImageSizeClassBackdrop, backdrops)

	allVariants := append(append([]domain.ImageVariant{}, posterVariants...), backdropVariants...)
	if err := a.catalog.ReplaceImageVariants(ctx, refID, domain.MediaTypeMovie, allVariants); err != nil {
		return Result{}, domain.DatabaseError(err)
	}

	result := Result{
		MediaFile: file,
		MediaType: domain.MediaTypeMovie,
		MediaID:   refID,
		Title:     details.Title,
	}

	if primary, ok := PrimaryOf(posterVariants); ok {
		result.PosterIID = primary.IID
		projected.PrimaryPosterIID = primary.IID
		run.queueImage(primary.IID, domain.ImageSizeClassPoster)
	}
	if primary, ok := PrimaryOf(backdropVariants); ok {
		result.BackdropIID = primary.IID
		projected.PrimaryBackdropIID = primary.IID
		run.queueImage(primary.IID, domain.ImageSizeClassBackdrop)
	}

	// second write lands the primary iids derived from the reference id
	ref.ID = refID
	ref.Details = &projected
	if _, err := a.catalog.UpsertMovieReference(ctx, ref); err != nil {
		return Result{}, domain.DatabaseError(err)
	}

	run.addCredits(ctx, projected.Cast, projected.Crew)

	result.ImageJobs = run.imageJobs
	return result, nil
}

func projectTranslations(in []tmdb.Translation) []domain.Translation {
	out := make([]domain.Translation, 0, len(in))
	for _, t := range in {
		out = append(out, domain.Translation{
			ISO31661:    NormalizeRegion(t.ISO31661),
			ISO6391:     t.ISO6391,
			Name:        t.Name,
			EnglishName: t.EnglishName,
		})
	}
	return out
}
