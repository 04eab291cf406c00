package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstream/arcstream/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *TMDB {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	client, err := New("http", u.Host, "test-key")
	require.NoError(t, err)
	return client
}

func TestSearchMoviesSendsAuthAndYear(t *testing.T) {
	var gotPath, gotAuth, gotYear string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotYear = r.URL.Query().Get("year")
		w.Write([]byte(`{"page":1,"results":[{"id":603,"title":"The Matrix","release_date":"1999-03-30","poster_path":"/p.jpg","vote_count":25000}],"total_results":1}`))
	})

	res, err := client.SearchMovies(context.Background(), "The Matrix", 1999)
	require.NoError(t, err)

	assert.Equal(t, "/3/search/movie", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "1999", gotYear)
	require.Len(t, res.Results, 1)
	assert.Equal(t, int64(603), res.Results[0].ID)
}

func TestNotFoundKeepsIdentity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_message":"not found"}`))
	})

	_, err := client.TVEpisodeDetails(context.Background(), 42, 1, 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, domain.Retryable(err), "a 404 is terminal, not transient")
}

func TestServerErrorIsRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.MovieDetails(context.Background(), 603)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindInternal, domain.KindOf(err))
	assert.True(t, domain.Retryable(err), "a 503 carries a transient marker")
}

func TestNullableRuntimeDecodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":603,"title":"The Matrix","runtime":null}`))
	})

	res, err := client.MovieDetails(context.Background(), 603)
	require.NoError(t, err)
	assert.True(t, res.Runtime.IsNull())

	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":603,"title":"The Matrix","runtime":136}`))
	})
	res, err = client.MovieDetails(context.Background(), 603)
	require.NoError(t, err)
	runtime, err := res.Runtime.Get()
	require.NoError(t, err)
	assert.Equal(t, 136, runtime)
}

func TestSeriesKeywordResponseShape(t *testing.T) {
	movie := KeywordsResponse{Keywords: []Keyword{{ID: 1, Name: "dystopia"}}}
	assert.Len(t, movie.All(), 1)

	series := KeywordsResponse{Results: []Keyword{{ID: 2, Name: "office"}}}
	assert.Len(t, series.All(), 1)
	assert.Equal(t, "office", series.All()[0].Name)
}
