package scanner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstream/arcstream/internal/domain"
	arcio "github.com/arcstream/arcstream/internal/io"
	"github.com/arcstream/arcstream/internal/scanner"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
)

func setupScanDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Movie (1999).mkv"), make([]byte, 1024), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Movie (1999).srt"), []byte("1\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Extras"), 0o755))
	return dir
}

func TestFolderScanDiscoversAndShortCircuits(t *testing.T) {
	ctx := context.Background()
	dir := setupScanDir(t)

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	actor := scanner.NewFolderActor(&arcio.MediaFileSystem{}, store, store)

	cmd := scanner.FolderScanCommand{
		LibraryID:   1,
		LibraryKind: domain.LibraryKindMovies,
		FolderPath:  dir,
		ScanReason:  scanner.ReasonUserRequested,
	}

	first, err := actor.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, first.Unchanged)
	require.Len(t, first.Discovered, 1, "exactly the media file, not the subtitle")
	assert.Equal(t, "Movie (1999).mkv", first.Discovered[0].Filename)
	assert.NotZero(t, first.Discovered[0].ID)
	assert.NotZero(t, first.Discovered[0].Fingerprint.Inode)
	require.Len(t, first.Children, 1)
	assert.Equal(t, filepath.Join(dir, "Extras"), first.Children[0].FolderPath)
	assert.Equal(t, scanner.ReasonUserRequested, first.Children[0].ScanReason)

	cursor, err := store.GetCursor(ctx, 1, dir)
	require.NoError(t, err)
	assert.Equal(t, first.Plan.ListingHash, cursor.ListingHash)
	assert.Equal(t, 3, cursor.EntryCount)

	// unchanged rescan: no discoveries, no children re-derived work needed
	second, err := actor.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, second.Unchanged)
	assert.Empty(t, second.Discovered)
	assert.Equal(t, first.Plan.ListingHash, second.Plan.ListingHash)
}

func TestFolderScanForceIgnoresCursor(t *testing.T) {
	ctx := context.Background()
	dir := setupScanDir(t)

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	actor := scanner.NewFolderActor(&arcio.MediaFileSystem{}, store, store)

	cmd := scanner.FolderScanCommand{
		LibraryID:   1,
		LibraryKind: domain.LibraryKindMovies,
		FolderPath:  dir,
		ScanReason:  scanner.ReasonUserRequested,
	}

	first, err := actor.Execute(ctx, cmd)
	require.NoError(t, err)

	cmd.Force = true
	second, err := actor.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, second.Unchanged)
	require.Len(t, second.Discovered, 1)
	assert.Equal(t, first.Discovered[0].ID, second.Discovered[0].ID, "upsert keeps the id across rescans")
}

func TestFolderScanChangeInvalidatesCursor(t *testing.T) {
	ctx := context.Background()
	dir := setupScanDir(t)

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	actor := scanner.NewFolderActor(&arcio.MediaFileSystem{}, store, store)

	cmd := scanner.FolderScanCommand{
		LibraryID:   1,
		LibraryKind: domain.LibraryKindMovies,
		FolderPath:  dir,
		ScanReason:  scanner.ReasonMaintenanceSweep,
	}

	_, err = actor.Execute(ctx, cmd)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Another (2001).mkv"), make([]byte, 512), 0o644))

	second, err := actor.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, second.Unchanged)
	assert.Len(t, second.Discovered, 2)
}

func TestScanReasonPriorityMapping(t *testing.T) {
	assert.Equal(t, "P0", scanner.ReasonHotChange.Priority().String())
	assert.Equal(t, "P0", scanner.ReasonWatcherOverflow.Priority().String())
	assert.Equal(t, "P1", scanner.ReasonUserRequested.Priority().String())
	assert.Equal(t, "P1", scanner.ReasonBulkSeed.Priority().String())
	assert.Equal(t, "P2", scanner.ReasonMaintenanceSweep.Priority().String())
}
