package dispatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstream/arcstream/internal/correlation"
	"github.com/arcstream/arcstream/internal/dispatch"
	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/events"
	"github.com/arcstream/arcstream/internal/ffmpeg"
	"github.com/arcstream/arcstream/internal/imagecache"
	"github.com/arcstream/arcstream/internal/imagefetch"
	"github.com/arcstream/arcstream/internal/indexer"
	arcio "github.com/arcstream/arcstream/internal/io"
	"github.com/arcstream/arcstream/internal/metadata"
	"github.com/arcstream/arcstream/internal/queue"
	"github.com/arcstream/arcstream/internal/scanner"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
	"github.com/arcstream/arcstream/internal/tmdb"
)

type pipelineClient struct {
	tmdb.NopClient
}

func (pipelineClient) SearchMovies(_ context.Context, query string, year int) (tmdb.SearchMoviesResponse, error) {
	return tmdb.SearchMoviesResponse{Results: []tmdb.MovieCandidate{
		{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-30", PosterPath: "/m.jpg", VoteCount: 25000},
	}}, nil
}

func (pipelineClient) MovieDetails(_ context.Context, id int64) (tmdb.MovieDetailsResponse, error) {
	return tmdb.MovieDetailsResponse{ID: id, Title: "The Matrix", ReleaseDate: "1999-03-30", PosterPath: "/m.jpg", BackdropPath: "/b.jpg"}, nil
}

func (pipelineClient) MovieImages(_ context.Context, id int64) (tmdb.ImagesResponse, error) {
	return tmdb.ImagesResponse{
		Posters:   []tmdb.Image{{FilePath: "/m.jpg", VoteCount: 10}},
		Backdrops: []tmdb.Image{{FilePath: "/b.jpg", VoteCount: 5}},
	}, nil
}

type pipelineProber struct{}

func (pipelineProber) Probe(_ context.Context, _ string) (ffmpeg.ProbeResult, error) {
	return ffmpeg.ProbeResult{
		Container:  "matroska",
		Duration:   90 * time.Minute,
		Width:      1920,
		Height:     1080,
		VideoCodec: "h264",
		BitDepth:   8,
	}, nil
}

type pipeline struct {
	store      *sqlite.SQLite
	bus        *events.Bus
	queue      *queue.Service
	dispatcher *dispatch.Dispatcher
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus(256)
	t.Cleanup(func() { bus.Close() })

	cfg := queue.DefaultConfig()
	cfg.RetryBackoffBase = time.Millisecond
	q := queue.NewService(store, bus, correlation.NewCache(256), cfg)

	cache, err := imagecache.New(t.TempDir())
	require.NoError(t, err)

	client := pipelineClient{}
	d := dispatch.New(
		scanner.NewFolderActor(&arcio.MediaFileSystem{}, store, store),
		scanner.NewAnalyzeActor(pipelineProber{}, store),
		metadata.NewActor(client, store, store),
		indexer.NewActor(store),
		imagefetch.NewActor(store, cache, client),
		q,
		bus,
		store,
	)

	return &pipeline{store: store, bus: bus, queue: q, dispatcher: d}
}

// drain runs jobs until the queue is empty, mimicking what the worker pool
// does without its timing.
func (p *pipeline) drain(t *testing.T, ctx context.Context) {
	t.Helper()
	for i := 0; i < 100; i++ {
		progressed := false
		for _, kind := range queue.Kinds {
			lease, err := p.queue.Dequeue(ctx, kind, "test-worker", time.Minute, nil)
			require.NoError(t, err)
			if lease == nil {
				continue
			}
			progressed = true
			require.NoError(t, p.dispatcher.Handle(ctx, lease))
		}
		if !progressed {
			return
		}
	}
	t.Fatal("queue did not drain")
}

func TestPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "The Matrix (1999).mkv"), make([]byte, 2048), 0o644))

	scanEvents, err := p.bus.Subscribe(ctx, events.TopicScan)
	require.NoError(t, err)

	cmd := scanner.FolderScanCommand{
		LibraryID:   1,
		LibraryKind: domain.LibraryKindMovies,
		FolderPath:  dir,
		ScanReason:  scanner.ReasonUserRequested,
	}
	_, err = p.queue.Enqueue(ctx, queue.EnqueueRequest{
		Kind:      queue.KindFolderScan,
		Priority:  queue.PriorityP1,
		LibraryID: 1,
		Payload:   cmd,
		DedupeKey: cmd.DedupeKey(),
	})
	require.NoError(t, err)

	p.drain(t, ctx)

	// the per-media event chain arrives in pipeline order under a single
	// correlation id
	wanted := []events.Type{
		events.TypeMediaFileDiscovered,
		events.TypeMediaAnalyzed,
		events.TypeMediaReadyForIndex,
		events.TypeIndexed,
	}
	var got []events.Type
	var corr []string
	timeout := time.After(5 * time.Second)
	for len(got) < len(wanted) {
		select {
		case ev := <-scanEvents:
			for _, w := range wanted {
				if ev.Type == w {
					got = append(got, ev.Type)
					corr = append(corr, ev.CorrelationID)
				}
			}
		case <-timeout:
			t.Fatalf("timed out; saw %v", got)
		}
	}
	assert.Equal(t, wanted, got)
	for _, c := range corr[1:] {
		assert.Equal(t, corr[0], c, "every stage event carries the originating correlation id")
	}

	// the catalog row landed
	entries, err := p.store.QueryCatalog(ctx, storage.CatalogQuery{LibraryID: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "The Matrix", entries[0].Title)
	assert.NotEmpty(t, entries[0].PosterIID)
}

func TestPipelineUnchangedRescanIsQuiet(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "The Matrix (1999).mkv"), make([]byte, 2048), 0o644))

	cmd := scanner.FolderScanCommand{
		LibraryID:   1,
		LibraryKind: domain.LibraryKindMovies,
		FolderPath:  dir,
		ScanReason:  scanner.ReasonUserRequested,
	}
	enqueue := func() {
		_, err := p.queue.Enqueue(ctx, queue.EnqueueRequest{
			Kind:      queue.KindFolderScan,
			Priority:  queue.PriorityP1,
			LibraryID: 1,
			Payload:   cmd,
			DedupeKey: cmd.DedupeKey(),
		})
		require.NoError(t, err)
	}

	enqueue()
	p.drain(t, ctx)

	firstCursor, err := p.store.GetCursor(ctx, 1, dir)
	require.NoError(t, err)

	// second scan of the unchanged folder: only a skipped completion event
	scanEvents, err := p.bus.Subscribe(ctx, events.TopicScan)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond) // cursor timestamps have second granularity
	enqueue()
	p.drain(t, ctx)

	select {
	case ev := <-scanEvents:
		assert.Equal(t, events.TypeFolderScanCompleted, ev.Type, "no discovery events on an unchanged rescan")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a completion event")
	}

	secondCursor, err := p.store.GetCursor(ctx, 1, dir)
	require.NoError(t, err)
	assert.Equal(t, firstCursor.ListingHash, secondCursor.ListingHash)
	assert.True(t, secondCursor.LastScanAt.After(firstCursor.LastScanAt), "cursor timestamp refreshes even when skipped")
}
