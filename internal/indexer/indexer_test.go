package indexer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/indexer"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
)

func movieCommand() indexer.UpsertCommand {
	return indexer.UpsertCommand{
		LibraryID:   1,
		MediaFileID: 10,
		MediaType:   domain.MediaTypeMovie,
		MediaID:     5,
		Title:       "The Matrix",
		PosterIID:   "abc123",
		Path:        "/lib/The Matrix (1999)/matrix.mkv",
		Size:        1_000_000,
		ModTime:     1_700_000_000,
	}
}

func TestIndexUpsertIdempotence(t *testing.T) {
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	actor := indexer.NewActor(store)

	out, err := actor.Execute(ctx, movieCommand())
	require.NoError(t, err)
	assert.Equal(t, storage.CatalogEntryCreated, out.Change)

	out, err = actor.Execute(ctx, movieCommand())
	require.NoError(t, err)
	assert.Equal(t, storage.CatalogEntryUnchanged, out.Change)

	// same file, different analyzed bytes
	changed := movieCommand()
	changed.Size = 2_000_000
	out, err = actor.Execute(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, storage.CatalogEntryUpdated, out.Change)
}

func TestQueryCatalogFilters(t *testing.T) {
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	actor := indexer.NewActor(store)

	_, err = actor.Execute(ctx, movieCommand())
	require.NoError(t, err)

	episode := indexer.UpsertCommand{
		LibraryID:   2,
		MediaFileID: 11,
		MediaType:   domain.MediaTypeEpisode,
		MediaID:     6,
		Title:       "Severance S01E02 Half Loop",
		ShowTitle:   "Severance",
		Season:      1,
		Episode:     2,
		Path:        "/tv/Severance/Season 01/s01e02.mkv",
	}
	_, err = actor.Execute(ctx, episode)
	require.NoError(t, err)

	movies, err := store.QueryCatalog(ctx, storage.CatalogQuery{MediaType: string(domain.MediaTypeMovie)})
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "The Matrix", movies[0].Title)

	season := 1
	episodes, err := store.QueryCatalog(ctx, storage.CatalogQuery{
		MediaType: string(domain.MediaTypeEpisode),
		ShowName:  "Severance",
		Season:    &season,
	})
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, 2, episodes[0].Episode)
}
