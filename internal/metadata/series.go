package metadata

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/scanner"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/tmdb"
)

// resolveSeries finds or creates the series reference for the given folder
// clues. Candidates whose ids appear in excluded have already failed for
// this file (usually a missing season) and are not retried.
func (a *Actor) resolveSeries(ctx context.Context, run *enrichRun, cmd EnrichCommand, clues scanner.SeriesFolderClues, excluded map[int64]struct{}) (domain.SeriesReference, error) {
	log := logger.FromCtx(ctx)

	// an existing local series wins outright
	local, err := a.catalog.FindSeriesReference(ctx, cmd.LibraryID, storage.SeriesClues{Title: clues.Title, Year: clues.Year})
	if err == nil && local.TMDBID != nil && *local.TMDBID > 0 {
		if _, skip := excluded[*local.TMDBID]; !skip {
			return local, nil
		}
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return domain.SeriesReference{}, domain.DatabaseError(err)
	}

	// bulk seeding creates series in its own first phase; an episode job
	// must not race it by creating series mid-seed
	if cmd.ScanReason == scanner.ReasonBulkSeed {
		return domain.SeriesReference{}, domain.Internalf(
			"series %q not seeded yet; temporarily deferring episode reconciliation", clues.Title)
	}

	var searchYears []int
	if clues.Year > 0 {
		searchYears = append(searchYears, clues.Year)
	}
	searchYears = append(searchYears, 0)

	var lastErr error
	for _, year := range searchYears {
		resp, err := a.client.SearchTV(ctx, clues.Title, year)
		if err != nil {
			return domain.SeriesReference{}, err
		}

		for _, ranked := range RankSeriesCandidates(resp.Results, clues.Title, clues.Year) {
			if !ranked.IsAcceptable() {
				continue
			}
			if _, skip := excluded[ranked.Candidate.ID]; skip {
				continue
			}

			ref, err := a.buildSeries(ctx, run, cmd, ranked.Candidate.ID)
			if err == nil {
				return ref, nil
			}
			if isMissingPosterErr(err) {
				log.Debug("series candidate without poster skipped", zap.Int64("tmdb_id", ranked.Candidate.ID))
				excluded[ranked.Candidate.ID] = struct{}{}
				lastErr = err
				continue
			}
			return domain.SeriesReference{}, err
		}
	}

	if lastErr != nil {
		return domain.SeriesReference{}, domain.InvalidMedia(lastErr.Error())
	}
	return domain.SeriesReference{}, domain.InvalidMedia(fmt.Sprintf("no acceptable series candidate for %q", clues.Title))
}

type seriesSubResources struct {
	contentRatings tmdb.ContentRatingsResponse
	credits        tmdb.AggregateCreditsResponse
	keywords       tmdb.KeywordsResponse
	videos         tmdb.VideosResponse
	translations   tmdb.TranslationsResponse
	altTitles      tmdb.AlternativeTitlesResponse
	recs           tmdb.SearchTVResponse
	similar        tmdb.SearchTVResponse
	externalIDs    tmdb.ExternalIDsResponse
	images         tmdb.ImagesResponse
}

func (a *Actor) fetchSeriesSubResources(ctx context.Context, tmdbID int64) seriesSubResources {
	log := logger.FromCtx(ctx)
	var sub seriesSubResources

	tolerant := func(name string, fetch func() error) func() error {
		return func() error {
			if err := fetch(); err != nil {
				log.Warn("series sub-endpoint failed", zap.String("endpoint", name), zap.Int64("tmdb_id", tmdbID), zap.Error(err))
			}
			return nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(tolerant("content_ratings", func() (err error) { sub.contentRatings, err = a.client.TVContentRatings(gctx, tmdbID); return }))
	g.Go(tolerant("aggregate_credits", func() (err error) { sub.credits, err = a.client.TVAggregateCredits(gctx, tmdbID); return }))
	g.Go(tolerant("keywords", func() (err error) { sub.keywords, err = a.client.TVKeywords(gctx, tmdbID); return }))
	g.Go(tolerant("videos", func() (err error) { sub.videos, err = a.client.TVVideos(gctx, tmdbID); return }))
	g.Go(tolerant("translations", func() (err error) { sub.translations, err = a.client.TVTranslations(gctx, tmdbID); return }))
	g.Go(tolerant("alternative_titles", func() (err error) { sub.altTitles, err = a.client.TVAlternativeTitles(gctx, tmdbID); return }))
	g.Go(tolerant("recommendations", func() (err error) { sub.recs, err = a.client.TVRecommendations(gctx, tmdbID); return }))
	g.Go(tolerant("similar", func() (err error) { sub.similar, err = a.client.TVSimilar(gctx, tmdbID); return }))
	g.Go(tolerant("external_ids", func() (err error) { sub.externalIDs, err = a.client.TVExternalIDs(gctx, tmdbID); return }))
	g.Go(tolerant("images", func() (err error) { sub.images, err = a.client.TVImages(gctx, tmdbID); return }))
	_ = g.Wait()

	return sub
}

// buildSeries fetches, projects and persists one series candidate,
// returning the canonical stored reference (which may predate this call if
// an upsert raced).
func (a *Actor) buildSeries(ctx context.Context, run *enrichRun, cmd EnrichCommand, tmdbID int64) (domain.SeriesReference, error) {
	log := logger.FromCtx(ctx)

	details, err := a.client.TVDetails(ctx, tmdbID)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			return domain.SeriesReference{}, domain.InvalidMedia(fmt.Sprintf("series_not_found:%d", tmdbID))
		}
		return domain.SeriesReference{}, err
	}

	sub := a.fetchSeriesSubResources(ctx, tmdbID)

	networks := make([]string, 0, len(details.Networks))
	for _, n := range details.Networks {
		networks = append(networks, n.Name)
	}

	projected := domain.SeriesDetails{
		TMDBID:              details.ID,
		Name:                details.Name,
		OriginalName:        details.OriginalName,
		Overview:            details.Overview,
		FirstAirDate:        parseDate(details.FirstAirDate),
		LastAirDate:         parseDate(details.LastAirDate),
		Status:              details.Status,
		NumberOfSeasons:     details.NumberOfSeasons,
		NumberOfEpisodes:    details.NumberOfEpisodes,
		VoteAverage:         details.VoteAverage,
		VoteCount:           details.VoteCount,
		Popularity:          details.Popularity,
		Genres:              projectGenres(details.Genres),
		SpokenLanguages:     projectLanguages(details.SpokenLanguages),
		ProductionCompanies: projectCompanies(details.ProductionCompanies),
		ProductionCountries: projectCountries(details.ProductionCountries),
		Networks:            networks,
		ContentRatings:      NormalizeContentRatings(sub.contentRatings.Results),
		Keywords:            projectKeywords(sub.keywords.All()),
		Videos:              projectVideos(sub.videos.Results),
		Translations:        projectTranslations(sub.translations.Translations),
		AlternativeTitles:   projectAlternativeTitles(sub.altTitles.All()),
		Recommendations:     projectTVIDList(sub.recs.Results),
		Similar:             projectTVIDList(sub.similar.Results),
		Cast:                projectSeriesCast(sub.credits.Cast),
		Crew:                projectSeriesCrew(sub.credits.Crew),
		External:            projectExternalIDs(sub.externalIDs),
		PosterPath:          details.PosterPath,
		BackdropPath:        details.BackdropPath,
	}

	posters := sub.images.Posters
	if len(posters) == 0 && details.PosterPath != "" {
		posters = []tmdb.Image{{FilePath: details.PosterPath}}
	}
	if len(posters) == 0 {
		return domain.SeriesReference{}, domain.InvalidMedia(fmt.Sprintf("%s:series:%d", missingPosterPrefix, tmdbID))
	}

	backdrops := sub.images.Backdrops
	if len(backdrops) == 0 && details.BackdropPath != "" {
		backdrops = []tmdb.Image{{FilePath: details.BackdropPath}}
	}
	if len(backdrops) == 0 {
		log.Warn("series has no backdrop", zap.Int64("tmdb_id", tmdbID))
	}

	seriesTMDBID := details.ID
	ref := domain.SeriesReference{
		LibraryID:   cmd.LibraryID,
		TMDBID:      &seriesTMDBID,
		Title:       details.Name,
		Details:     &projected,
		DetailState: domain.DetailsStateReady,
	}

	refID, err := a.catalog.UpsertSeriesReference(ctx, ref)
	if err != nil {
		return domain.SeriesReference{}, domain.DatabaseError(err)
	}

	// re-read: if a concurrent enrichment created the same series, the
	// upsert collapsed onto its row and that id is the one to build on
	stored, err := a.catalog.GetSeriesReferenceByTMDB(ctx, cmd.LibraryID, details.ID)
	if err != nil {
		return domain.SeriesReference{}, domain.DatabaseError(err)
	}
	if stored.ID != refID {
		log.Debug("series upsert raced, reusing stored id", zap.Int64("stored_id", stored.ID), zap.Int64("upsert_id", refID))
	}

	posterVariants := BuildVariants(domain.MediaTypeSeries, stored.ID, domain.ImageSizeClassPoster, posters)
	backdropVariants := BuildVariants(domain.MediaTypeSeries, stored.ID, domain.ImageSizeClassBackdrop, backdrops)
	allVariants := append(append([]domain.ImageVariant{}, posterVariants...), backdropVariants...)
	if err := a.catalog.ReplaceImageVariants(ctx, stored.ID, domain.MediaTypeSeries, allVariants); err != nil {
		return domain.SeriesReference{}, domain.DatabaseError(err)
	}

	if primary, ok := PrimaryOf(posterVariants); ok {
		projected.PrimaryPosterIID = primary.IID
		run.queueImage(primary.IID, domain.ImageSizeClassPoster)
	}
	if primary, ok := PrimaryOf(backdropVariants); ok {
		projected.PrimaryBackdropIID = primary.IID
		run.queueImage(primary.IID, domain.ImageSizeClassBackdrop)
	}

	// second write lands the primary iids, which could only be derived
	// once the reference id existed
	stored.Details = &projected
	stored.DetailState = domain.DetailsStateReady
	if _, err := a.catalog.UpsertSeriesReference(ctx, stored); err != nil {
		return domain.SeriesReference{}, domain.DatabaseError(err)
	}

	run.addCredits(ctx, projected.Cast, projected.Crew)

	return stored, nil
}
