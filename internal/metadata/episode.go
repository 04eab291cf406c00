package metadata

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/scanner"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/tmdb"
)

// maxSeriesCandidates bounds how many distinct series a single episode job
// will try before giving up; each failed candidate lands in the excluded
// set and the next resolution skips it.
const maxSeriesCandidates = 3

// enrichEpisode reconciles an episode file: locate the series, resolve the
// season (creating it from the provider if missing), fetch the episode and
// persist the whole chain.
func (a *Actor) enrichEpisode(ctx context.Context, run *enrichRun, cmd EnrichCommand, file domain.MediaFile) (Result, error) {
	log := logger.FromCtx(ctx)

	clues, seasonNum, episodeNum, episodeTitle := episodeHints(file)
	if clues.Title == "" {
		return Result{}, domain.InvalidMedia("no series derivable from " + file.Path)
	}
	if seasonNum <= 0 || episodeNum <= 0 {
		return Result{}, domain.InvalidMedia(fmt.Sprintf("no season/episode numbers derivable from %s", file.Path))
	}

	excluded := make(map[int64]struct{})

	for attempt := 0; attempt < maxSeriesCandidates; attempt++ {
		series, err := a.resolveSeries(ctx, run, cmd, clues, excluded)
		if err != nil {
			return Result{}, err
		}
		if series.TMDBID == nil || *series.TMDBID == 0 {
			return Result{}, domain.InvalidMedia(fmt.Sprintf("series %q has no tmdb binding", series.Title))
		}
		tmdbSeriesID := *series.TMDBID

		season, err := a.resolveSeason(ctx, run, cmd, series, seasonNum)
		if err != nil {
			if domain.KindOf(err) == domain.ErrKindInvalidMedia {
				// this series candidate does not have the season the file
				// claims; exclude it and try the next one
				log.Debug("season missing on candidate series, excluding",
					zap.Int64("tmdb_series_id", tmdbSeriesID),
					zap.Int("season", seasonNum),
					zap.Error(err))
				excluded[tmdbSeriesID] = struct{}{}
				continue
			}
			return Result{}, err
		}

		episode, err := a.client.TVEpisodeDetails(ctx, tmdbSeriesID, seasonNum, episodeNum)
		if err != nil {
			if errors.Is(err, tmdb.ErrNotFound) {
				return Result{}, domain.InvalidMedia(fmt.Sprintf("episode_not_found:series:%d:s%02d:e%02d", tmdbSeriesID, seasonNum, episodeNum))
			}
			return Result{}, err
		}

		return a.persistEpisode(ctx, run, cmd, file, series, season, episode, episodeTitle)
	}

	return Result{}, domain.InvalidMedia(fmt.Sprintf("no series with season %d found for %q", seasonNum, clues.Title))
}

// episodeHints prefers parsed metadata and falls back to path conventions.
func episodeHints(file domain.MediaFile) (clues scanner.SeriesFolderClues, season, episode int, title string) {
	clues = scanner.FolderCluesFromPath(file.Path)

	if pi := file.ParsedInfo; pi != nil && pi.Kind == domain.MediaKindEpisode {
		if pi.ShowTitle != "" {
			clues.Title = pi.ShowTitle
		}
		season = pi.SeasonNumber
		episode = pi.EpisodeNumber
		title = pi.EpisodeTitle
	}

	if season == 0 || episode == 0 {
		if show, s, e, t, ok := scanner.ParseEpisode(file.Path); ok {
			if clues.Title == "" {
				clues.Title = show
			}
			season, episode = s, e
			if title == "" {
				title = t
			}
		}
	}
	if season == 0 && clues.SeasonNumber > 0 {
		season = clues.SeasonNumber
	}
	return clues, season, episode, title
}

// resolveSeason looks the season up locally, fetching and persisting it
// from the provider on first sight. A provider 404 for the season number is
// InvalidMedia so the caller can exclude this series candidate.
func (a *Actor) resolveSeason(ctx context.Context, run *enrichRun, cmd EnrichCommand, series domain.SeriesReference, seasonNum int) (domain.SeasonReference, error) {
	existing, err := a.catalog.GetSeasonReference(ctx, series.ID, seasonNum)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.SeasonReference{}, domain.DatabaseError(err)
	}

	tmdbSeriesID := *series.TMDBID
	details, err := a.client.TVSeasonDetails(ctx, tmdbSeriesID, seasonNum)
	if err != nil {
		if errors.Is(err, tmdb.ErrNotFound) {
			return domain.SeasonReference{}, domain.InvalidMedia(fmt.Sprintf("season_not_found:%d", seasonNum))
		}
		return domain.SeasonReference{}, err
	}

	// the season's own poster is the one primary; no list response exists
	// for seasons, so its absence is terminal
	if details.PosterPath == "" {
		return domain.SeasonReference{}, domain.InvalidMedia(fmt.Sprintf("missing_primary_poster_path:season:%d:%d", tmdbSeriesID, seasonNum))
	}

	projected := domain.SeasonDetails{
		TMDBID:       details.ID,
		Name:         details.Name,
		Overview:     details.Overview,
		AirDate:      parseDate(details.AirDate),
		SeasonNumber: details.SeasonNumber,
		PosterPath:   details.PosterPath,
	}

	ref := domain.SeasonReference{
		LibraryID:    cmd.LibraryID,
		SeriesID:     series.ID,
		SeasonNumber: seasonNum,
		TMDBSeriesID: tmdbSeriesID,
		Details:      &projected,
		DetailState:  domain.DetailsStateReady,
	}

	refID, err := a.catalog.UpsertSeasonReference(ctx, ref)
	if err != nil {
		return domain.SeasonReference{}, domain.DatabaseError(err)
	}
	ref.ID = refID

	variant := SingleVariant(domain.MediaTypeSeason, refID, domain.ImageSizeClassPoster, details.PosterPath)
	if err := a.catalog.ReplaceImageVariants(ctx, refID, domain.MediaTypeSeason, []domain.ImageVariant{variant}); err != nil {
		return domain.SeasonReference{}, domain.DatabaseError(err)
	}
	run.queueImage(variant.IID, domain.ImageSizeClassPoster)

	// second write lands the poster iid derived from the reference id
	projected.PrimaryPosterIID = variant.IID
	ref.Details = &projected
	if _, err := a.catalog.UpsertSeasonReference(ctx, ref); err != nil {
		return domain.SeasonReference{}, domain.DatabaseError(err)
	}
	return ref, nil
}

// persistEpisode writes the episode reference and its artwork, and shapes
// the MediaReadyForIndex result.
func (a *Actor) persistEpisode(
	ctx context.Context,
	run *enrichRun,
	cmd EnrichCommand,
	file domain.MediaFile,
	series domain.SeriesReference,
	season domain.SeasonReference,
	episode tmdb.EpisodeDetailsResponse,
	parsedTitle string,
) (Result, error) {
	projected := domain.EpisodeDetails{
		TMDBID:        episode.ID,
		Name:          episode.Name,
		Overview:      episode.Overview,
		AirDate:       parseDate(episode.AirDate),
		SeasonNumber:  episode.SeasonNumber,
		EpisodeNumber: episode.EpisodeNumber,
		VoteAverage:   episode.VoteAverage,
		VoteCount:     episode.VoteCount,
		StillPath:     episode.StillPath,
		Crew:          projectEpisodeCrew(episode.Crew),
		GuestStars:    projectGuestStars(episode.GuestStars),
	}
	if runtime, err := episode.Runtime.Get(); err == nil {
		projected.Runtime = runtime
	}

	ref := domain.EpisodeReference{
		LibraryID:     cmd.LibraryID,
		SeriesID:      series.ID,
		SeasonID:      season.ID,
		TMDBSeriesID:  *series.TMDBID,
		SeasonNumber:  episode.SeasonNumber,
		EpisodeNumber: episode.EpisodeNumber,
		FileID:        &file.ID,
		Details:       &projected,
		DetailState:   domain.DetailsStateReady,
	}

	refID, err := a.catalog.UpsertEpisodeReference(ctx, ref)
	if err != nil {
		return Result{}, domain.DatabaseError(err)
	}

	var stillIID string
	if episode.StillPath != "" {
		variant := SingleVariant(domain.MediaTypeEpisode, refID, domain.ImageSizeClassStill, episode.StillPath)
		if err := a.catalog.ReplaceImageVariants(ctx, refID, domain.MediaTypeEpisode, []domain.ImageVariant{variant}); err != nil {
			return Result{}, domain.DatabaseError(err)
		}
		stillIID = variant.IID
		run.queueImage(stillIID, domain.ImageSizeClassStill)
	}

	run.addCredits(ctx, projected.GuestStars, projected.Crew)

	title := episode.Name
	if title == "" {
		title = parsedTitle
	}
	normalized := fmt.Sprintf("%s S%02dE%02d", series.Title, episode.SeasonNumber, episode.EpisodeNumber)
	if title != "" {
		normalized = fmt.Sprintf("%s %s", normalized, title)
	}

	var posterIID string
	if series.Details != nil && series.Details.PrimaryPosterIID != "" {
		posterIID = series.Details.PrimaryPosterIID
	}

	return Result{
		MediaFile:   file,
		MediaType:   domain.MediaTypeEpisode,
		MediaID:     refID,
		Title:       normalized,
		SeriesID:    series.ID,
		SeasonID:    season.ID,
		PosterIID:   posterIID,
		BackdropIID: "",
		ImageJobs:   run.imageJobs,
	}, nil
}
