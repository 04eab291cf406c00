package tmdb

import "context"

// NopClient satisfies Client with empty responses. Tests embed it and
// override only the endpoints they exercise.
type NopClient struct{}

func (NopClient) SearchMovies(context.Context, string, int) (SearchMoviesResponse, error) {
	return SearchMoviesResponse{}, nil
}
func (NopClient) SearchTV(context.Context, string, int) (SearchTVResponse, error) {
	return SearchTVResponse{}, nil
}
func (NopClient) MovieDetails(_ context.Context, id int64) (MovieDetailsResponse, error) {
	return MovieDetailsResponse{ID: id}, nil
}
func (NopClient) MovieReleaseDates(context.Context, int64) (ReleaseDatesResponse, error) {
	return ReleaseDatesResponse{}, nil
}
func (NopClient) MovieKeywords(context.Context, int64) (KeywordsResponse, error) {
	return KeywordsResponse{}, nil
}
func (NopClient) MovieVideos(context.Context, int64) (VideosResponse, error) {
	return VideosResponse{}, nil
}
func (NopClient) MovieTranslations(context.Context, int64) (TranslationsResponse, error) {
	return TranslationsResponse{}, nil
}
func (NopClient) MovieAlternativeTitles(context.Context, int64) (AlternativeTitlesResponse, error) {
	return AlternativeTitlesResponse{}, nil
}
func (NopClient) MovieRecommendations(context.Context, int64) (SearchMoviesResponse, error) {
	return SearchMoviesResponse{}, nil
}
func (NopClient) MovieSimilar(context.Context, int64) (SearchMoviesResponse, error) {
	return SearchMoviesResponse{}, nil
}
func (NopClient) MovieExternalIDs(context.Context, int64) (ExternalIDsResponse, error) {
	return ExternalIDsResponse{}, nil
}
func (NopClient) MovieCredits(context.Context, int64) (CreditsResponse, error) {
	return CreditsResponse{}, nil
}
func (NopClient) MovieImages(context.Context, int64) (ImagesResponse, error) {
	return ImagesResponse{}, nil
}
func (NopClient) TVDetails(_ context.Context, id int64) (TVDetailsResponse, error) {
	return TVDetailsResponse{ID: id}, nil
}
func (NopClient) TVContentRatings(context.Context, int64) (ContentRatingsResponse, error) {
	return ContentRatingsResponse{}, nil
}
func (NopClient) TVAggregateCredits(context.Context, int64) (AggregateCreditsResponse, error) {
	return AggregateCreditsResponse{}, nil
}
func (NopClient) TVKeywords(context.Context, int64) (KeywordsResponse, error) {
	return KeywordsResponse{}, nil
}
func (NopClient) TVVideos(context.Context, int64) (VideosResponse, error) {
	return VideosResponse{}, nil
}
func (NopClient) TVAlternativeTitles(context.Context, int64) (AlternativeTitlesResponse, error) {
	return AlternativeTitlesResponse{}, nil
}
func (NopClient) TVExternalIDs(context.Context, int64) (ExternalIDsResponse, error) {
	return ExternalIDsResponse{}, nil
}
func (NopClient) TVImages(context.Context, int64) (ImagesResponse, error) {
	return ImagesResponse{}, nil
}
func (NopClient) TVRecommendations(context.Context, int64) (SearchTVResponse, error) {
	return SearchTVResponse{}, nil
}
func (NopClient) TVSimilar(context.Context, int64) (SearchTVResponse, error) {
	return SearchTVResponse{}, nil
}
func (NopClient) TVTranslations(context.Context, int64) (TranslationsResponse, error) {
	return TranslationsResponse{}, nil
}
func (NopClient) TVSeasonDetails(_ context.Context, _ int64, season int) (SeasonDetailsResponse, error) {
	return SeasonDetailsResponse{SeasonNumber: season}, nil
}
func (NopClient) TVEpisodeDetails(_ context.Context, _ int64, season, episode int) (EpisodeDetailsResponse, error) {
	return EpisodeDetailsResponse{SeasonNumber: season, EpisodeNumber: episode}, nil
}
func (NopClient) TVSeasonImages(context.Context, int64, int) (ImagesResponse, error) {
	return ImagesResponse{}, nil
}
func (NopClient) TVEpisodeImages(context.Context, int64, int, int) (ImagesResponse, error) {
	return ImagesResponse{}, nil
}
func (NopClient) DownloadImage(context.Context, string, string) ([]byte, error) {
	return []byte{0xFF, 0xD8}, nil
}

var _ Client = NopClient{}
var _ ImageDownloader = NopClient{}
