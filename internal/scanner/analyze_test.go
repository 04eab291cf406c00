package scanner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/ffmpeg"
	"github.com/arcstream/arcstream/internal/scanner"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
)

type stubProber struct {
	result ffmpeg.ProbeResult
	err    error
}

func (s *stubProber) Probe(_ context.Context, _ string) (ffmpeg.ProbeResult, error) {
	return s.result, s.err
}

func TestAnalyzeRecordsTechnicalMetadata(t *testing.T) {
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id, err := store.UpsertMediaFile(ctx, domain.MediaFile{
		LibraryID:    1,
		Path:         "/movies/The Matrix (1999) {tmdb-603}/matrix.mkv",
		Filename:     "matrix.mkv",
		Size:         1_000_000,
		DiscoveredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	prober := &stubProber{result: ffmpeg.ProbeResult{
		Container:      "matroska,webm",
		Duration:       2 * time.Hour,
		Width:          3840,
		Height:         2160,
		VideoCodec:     "hevc",
		BitDepth:       10,
		ColorTransfer:  "smpte2084",
		ColorPrimaries: "bt2020",
		AudioTracks:    []domain.AudioTrack{{Index: 1, Codec: "eac3", Language: "eng", Channels: 6}},
	}}

	actor := scanner.NewAnalyzeActor(prober, store)
	res, err := actor.Execute(ctx, scanner.AnalyzeCommand{
		LibraryID:   1,
		LibraryKind: domain.LibraryKindMovies,
		MediaFileID: id,
		Path:        "/movies/The Matrix (1999) {tmdb-603}/matrix.mkv",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(603), res.Context.TMDBIDHint)
	require.NotNil(t, res.MediaFile.TechnicalMetadata)
	assert.Equal(t, "hevc", res.MediaFile.TechnicalMetadata.Codec)
	assert.Equal(t, 10, res.MediaFile.TechnicalMetadata.BitDepth)

	stored, err := store.GetMediaFile(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored.TechnicalMetadata)
	assert.Equal(t, 2*time.Hour, stored.TechnicalMetadata.Duration)
	require.NotNil(t, stored.ParsedInfo)
	assert.Equal(t, domain.MediaKindMovie, stored.ParsedInfo.Kind)
}

func TestAnalyzeMissingFileIsNotFound(t *testing.T) {
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	actor := scanner.NewAnalyzeActor(&stubProber{}, store)
	_, err = actor.Execute(ctx, scanner.AnalyzeCommand{MediaFileID: 99, Path: "/nope"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))
}

func TestAnalyzeInvalidMediaPropagates(t *testing.T) {
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id, err := store.UpsertMediaFile(ctx, domain.MediaFile{
		LibraryID:    1,
		Path:         "/movies/corrupt.mkv",
		Filename:     "corrupt.mkv",
		DiscoveredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	actor := scanner.NewAnalyzeActor(&stubProber{err: domain.InvalidMedia("unreadable media")}, store)
	_, err = actor.Execute(ctx, scanner.AnalyzeCommand{MediaFileID: id, Path: "/movies/corrupt.mkv"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindInvalidMedia, domain.KindOf(err))
	assert.False(t, domain.Retryable(err))
}
