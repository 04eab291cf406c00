// Package tmdb is the metadata provider client: typed wrappers over the
// TMDB v3 HTTP API behind a rate-limited client and a circuit breaker, so
// a provider outage degrades into retryable errors instead of a stampede.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/httpclient"
	"github.com/arcstream/arcstream/internal/logger"
)

const ReleaseDateFormat = "2006-01-02"

// Client is the surface the metadata enrichment actor consumes.
type Client interface {
	SearchMovies(ctx context.Context, query string, year int) (SearchMoviesResponse, error)
	SearchTV(ctx context.Context, query string, year int) (SearchTVResponse, error)

	MovieDetails(ctx context.Context, id int64) (MovieDetailsResponse, error)
	MovieReleaseDates(ctx context.Context, id int64) (ReleaseDatesResponse, error)
	MovieKeywords(ctx context.Context, id int64) (KeywordsResponse, error)
	MovieVideos(ctx context.Context, id int64) (VideosResponse, error)
	MovieTranslations(ctx context.Context, id int64) (TranslationsResponse, error)
	MovieAlternativeTitles(ctx context.Context, id int64) (AlternativeTitlesResponse, error)
	MovieRecommendations(ctx context.Context, id int64) (SearchMoviesResponse, error)
	MovieSimilar(ctx context.Context, id int64) (SearchMoviesResponse, error)
	MovieExternalIDs(ctx context.Context, id int64) (ExternalIDsResponse, error)
	MovieCredits(ctx context.Context, id int64) (CreditsResponse, error)
	MovieImages(ctx context.Context, id int64) (ImagesResponse, error)

	TVDetails(ctx context.Context, id int64) (TVDetailsResponse, error)
	TVContentRatings(ctx context.Context, id int64) (ContentRatingsResponse, error)
	TVAggregateCredits(ctx context.Context, id int64) (AggregateCreditsResponse, error)
	TVKeywords(ctx context.Context, id int64) (KeywordsResponse, error)
	TVVideos(ctx context.Context, id int64) (VideosResponse, error)
	TVAlternativeTitles(ctx context.Context, id int64) (AlternativeTitlesResponse, error)
	TVExternalIDs(ctx context.Context, id int64) (ExternalIDsResponse, error)
	TVImages(ctx context.Context, id int64) (ImagesResponse, error)
	TVRecommendations(ctx context.Context, id int64) (SearchTVResponse, error)
	TVSimilar(ctx context.Context, id int64) (SearchTVResponse, error)
	TVTranslations(ctx context.Context, id int64) (TranslationsResponse, error)

	TVSeasonDetails(ctx context.Context, seriesID int64, season int) (SeasonDetailsResponse, error)
	TVEpisodeDetails(ctx context.Context, seriesID int64, season, episode int) (EpisodeDetailsResponse, error)

	TVSeasonImages(ctx context.Context, seriesID int64, season int) (ImagesResponse, error)
	TVEpisodeImages(ctx context.Context, seriesID int64, season, episode int) (ImagesResponse, error)
}

// ErrNotFound is the typed 404: the id (or season/episode number) does not
// exist on the provider side.
var ErrNotFound = errors.New("tmdb: not found")

// TMDB talks to one provider host.
type TMDB struct {
	baseURL *url.URL
	apiKey  string
	http    httpclient.HTTPClient
	breaker *gobreaker.CircuitBreaker[[]byte]
	timeout time.Duration
}

type Option func(*TMDB)

func WithHTTPClient(c httpclient.HTTPClient) Option {
	return func(t *TMDB) { t.http = c }
}

func WithTimeout(d time.Duration) Option {
	return func(t *TMDB) { t.timeout = d }
}

// New builds a client for scheme://host with Bearer auth.
func New(scheme, host, apiKey string, opts ...Option) (*TMDB, error) {
	if host == "" {
		return nil, errors.New("tmdb host is required")
	}
	if scheme == "" {
		scheme = "https"
	}

	t := &TMDB{
		baseURL: &url.URL{Scheme: scheme, Host: host, Path: "/3"},
		apiKey:  apiKey,
		http:    httpclient.NewRateLimitedClient(),
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Get().Infow("tmdb circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return t, nil
}

// get issues one GET through the breaker and decodes the body into out.
// A 404 keeps its identity (ErrNotFound); everything the caller might wait
// out comes back as a transient Internal error.
func (t *TMDB) get(ctx context.Context, path string, query url.Values, out any) error {
	u := *t.baseURL
	u.Path += path
	u.RawQuery = query.Encode()

	body, err := t.breaker.Execute(func() ([]byte, error) {
		reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := t.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return b, nil
		case resp.StatusCode == http.StatusNotFound:
			// a 404 is an answer, not a provider failure; don't count it
			// against the breaker
			return nil, ErrNotFound
		default:
			return nil, fmt.Errorf("tmdb status %d for %s", resp.StatusCode, path)
		}
	})
	if err != nil {
		return t.classify(ctx, path, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return domain.Serialization(err)
	}
	return nil
}

func (t *TMDB) classify(ctx context.Context, path string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	log := logger.FromCtx(ctx)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Debug("tmdb circuit breaker rejected call", zap.String("path", path))
		return domain.Internalf("tmdb unavailable (circuit open): %s", path)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Internalf("tmdb request timed out: %s", path)
	}
	return domain.Internalf("tmdb request failed: %s: %v", path, err)
}

func (t *TMDB) SearchMovies(ctx context.Context, query string, year int) (SearchMoviesResponse, error) {
	q := url.Values{"query": {query}, "include_adult": {"false"}}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	var out SearchMoviesResponse
	err := t.get(ctx, "/search/movie", q, &out)
	return out, err
}

func (t *TMDB) SearchTV(ctx context.Context, query string, year int) (SearchTVResponse, error) {
	q := url.Values{"query": {query}, "include_adult": {"false"}}
	if year > 0 {
		q.Set("first_air_date_year", strconv.Itoa(year))
	}
	var out SearchTVResponse
	err := t.get(ctx, "/search/tv", q, &out)
	return out, err
}

func (t *TMDB) MovieDetails(ctx context.Context, id int64) (MovieDetailsResponse, error) {
	var out MovieDetailsResponse
	err := t.get(ctx, "/movie/"+itoa(id), nil, &out)
	return out, err
}

func (t *TMDB) MovieReleaseDates(ctx context.Context, id int64) (ReleaseDatesResponse, error) {
	var out ReleaseDatesResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/release_dates", nil, &out)
	return out, err
}

func (t *TMDB) MovieKeywords(ctx context.Context, id int64) (KeywordsResponse, error) {
	var out KeywordsResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/keywords", nil, &out)
	return out, err
}

func (t *TMDB) MovieVideos(ctx context.Context, id int64) (VideosResponse, error) {
	var out VideosResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/videos", nil, &out)
	return out, err
}

func (t *TMDB) MovieTranslations(ctx context.Context, id int64) (TranslationsResponse, error) {
	var out TranslationsResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/translations", nil, &out)
	return out, err
}

func (t *TMDB) MovieAlternativeTitles(ctx context.Context, id int64) (AlternativeTitlesResponse, error) {
	var out AlternativeTitlesResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/alternative_titles", nil, &out)
	return out, err
}

func (t *TMDB) MovieRecommendations(ctx context.Context, id int64) (SearchMoviesResponse, error) {
	var out SearchMoviesResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/recommendations", nil, &out)
	return out, err
}

func (t *TMDB) MovieSimilar(ctx context.Context, id int64) (SearchMoviesResponse, error) {
	var out SearchMoviesResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/similar", nil, &out)
	return out, err
}

func (t *TMDB) MovieExternalIDs(ctx context.Context, id int64) (ExternalIDsResponse, error) {
	var out ExternalIDsResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/external_ids", nil, &out)
	return out, err
}

func (t *TMDB) MovieCredits(ctx context.Context, id int64) (CreditsResponse, error) {
	var out CreditsResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/credits", nil, &out)
	return out, err
}

func (t *TMDB) MovieImages(ctx context.Context, id int64) (ImagesResponse, error) {
	var out ImagesResponse
	err := t.get(ctx, "/movie/"+itoa(id)+"/images", nil, &out)
	return out, err
}

func (t *TMDB) TVDetails(ctx context.Context, id int64) (TVDetailsResponse, error) {
	var out TVDetailsResponse
	err := t.get(ctx, "/tv/"+itoa(id), nil, &out)
	return out, err
}

func (t *TMDB) TVContentRatings(ctx context.Context, id int64) (ContentRatingsResponse, error) {
	var out ContentRatingsResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/content_ratings", nil, &out)
	return out, err
}

func (t *TMDB) TVAggregateCredits(ctx context.Context, id int64) (AggregateCreditsResponse, error) {
	var out AggregateCreditsResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/aggregate_credits", nil, &out)
	return out, err
}

func (t *TMDB) TVKeywords(ctx context.Context, id int64) (KeywordsResponse, error) {
	var out KeywordsResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/keywords", nil, &out)
	return out, err
}

func (t *TMDB) TVVideos(ctx context.Context, id int64) (VideosResponse, error) {
	var out VideosResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/videos", nil, &out)
	return out, err
}

func (t *TMDB) TVAlternativeTitles(ctx context.Context, id int64) (AlternativeTitlesResponse, error) {
	var out AlternativeTitlesResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/alternative_titles", nil, &out)
	return out, err
}

func (t *TMDB) TVExternalIDs(ctx context.Context, id int64) (ExternalIDsResponse, error) {
	var out ExternalIDsResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/external_ids", nil, &out)
	return out, err
}

func (t *TMDB) TVImages(ctx context.Context, id int64) (ImagesResponse, error) {
	var out ImagesResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/images", nil, &out)
	return out, err
}

func (t *TMDB) TVRecommendations(ctx context.Context, id int64) (SearchTVResponse, error) {
	var out SearchTVResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/recommendations", nil, &out)
	return out, err
}

func (t *TMDB) TVSimilar(ctx context.Context, id int64) (SearchTVResponse, error) {
	var out SearchTVResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/similar", nil, &out)
	return out, err
}

func (t *TMDB) TVTranslations(ctx context.Context, id int64) (TranslationsResponse, error) {
	var out TranslationsResponse
	err := t.get(ctx, "/tv/"+itoa(id)+"/translations", nil, &out)
	return out, err
}

func (t *TMDB) TVSeasonDetails(ctx context.Context, seriesID int64, season int) (SeasonDetailsResponse, error) {
	var out SeasonDetailsResponse
	err := t.get(ctx, "/tv/"+itoa(seriesID)+"/season/"+strconv.Itoa(season), nil, &out)
	return out, err
}

func (t *TMDB) TVEpisodeDetails(ctx context.Context, seriesID int64, season, episode int) (EpisodeDetailsResponse, error) {
	var out EpisodeDetailsResponse
	err := t.get(ctx, "/tv/"+itoa(seriesID)+"/season/"+strconv.Itoa(season)+"/episode/"+strconv.Itoa(episode), nil, &out)
	return out, err
}

func (t *TMDB) TVSeasonImages(ctx context.Context, seriesID int64, season int) (ImagesResponse, error) {
	var out ImagesResponse
	err := t.get(ctx, "/tv/"+itoa(seriesID)+"/season/"+strconv.Itoa(season)+"/images", nil, &out)
	return out, err
}

func (t *TMDB) TVEpisodeImages(ctx context.Context, seriesID int64, season, episode int) (ImagesResponse, error) {
	var out ImagesResponse
	err := t.get(ctx, "/tv/"+itoa(seriesID)+"/season/"+strconv.Itoa(season)+"/episode/"+strconv.Itoa(episode)+"/images", nil, &out)
	return out, err
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

var _ Client = (*TMDB)(nil)
