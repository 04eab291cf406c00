package transcode

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/ffmpeg"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
)

// fakeRunner plays the encoder: it writes a playlist with one segment,
// reports progress, and honors cancellation.
type fakeRunner struct {
	encodes atomic.Int32
	block   chan struct{} // when set, the encode waits for close or cancel
	fail    bool
}

func (f *fakeRunner) Encode(ctx context.Context, args []string, onProgress func(Progress)) error {
	f.encodes.Add(1)

	if f.fail {
		return assertError("encoder exploded")
	}

	// output path is the trailing argument
	playlist := args[len(args)-1]
	dir := filepath.Dir(playlist)

	if err := os.WriteFile(filepath.Join(dir, "segment_00000.ts"), []byte{0x47}, 0o644); err != nil {
		return err
	}
	content := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:6.000000,\nsegment_00000.ts\n"
	if err := os.WriteFile(playlist, []byte(content), 0o644); err != nil {
		return err
	}

	onProgress(Progress{Frame: 100, FPS: 60, OutTime: 30 * time.Minute, Speed: 2})

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type assertError string

func (e assertError) Error() string { return string(e) }

type fixedProber struct {
	result ffmpeg.ProbeResult
}

func (p fixedProber) Probe(context.Context, string) (ffmpeg.ProbeResult, error) {
	return p.result, nil
}

type fixedDetectorRunner struct{}

func (fixedDetectorRunner) Output(context.Context, string, ...string) ([]byte, error) {
	return []byte("encoders:\n V..... libx264\n"), nil
}

func newTestService(t *testing.T, probe ffmpeg.ProbeResult, runner EncodeRunner) (*Service, int64) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mediaID, err := store.UpsertMediaFile(context.Background(), domain.MediaFile{
		LibraryID:    1,
		Path:         filepath.Join(t.TempDir(), "movie.mkv"),
		Filename:     "movie.mkv",
		Size:         1024,
		DiscoveredAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	svc := NewService(
		Config{CacheDir: t.TempDir(), MaxWorkers: 2},
		fixedProber{result: probe},
		NewDetector("ffmpeg", WithRunner(fixedDetectorRunner{})),
		runner,
		store,
	)
	return svc, mediaID
}

func hdr4kProbe() ffmpeg.ProbeResult {
	return ffmpeg.ProbeResult{
		Duration:       2 * time.Hour,
		Width:          3840,
		Height:         2160,
		VideoCodec:     "hevc",
		BitDepth:       10,
		ColorTransfer:  "smpte2084",
		ColorPrimaries: "bt2020",
	}
}

func waitForStatus(t *testing.T, svc *Service, jobID string, want JobStatus) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var err error
		job, err = svc.JobStatus(jobID)
		require.NoError(t, err)
		return job.Status == want
	}, 5*time.Second, 10*time.Millisecond, "job never reached %s", want)
	return job
}

func TestStartAdaptivePlansLadderAndCompletes(t *testing.T) {
	runner := &fakeRunner{}
	svc, mediaID := newTestService(t, hdr4kProbe(), runner)

	master, err := svc.StartAdaptive(context.Background(), mediaID)
	require.NoError(t, err)
	assert.Equal(t, JobTypeMaster, master.Type)
	assert.True(t, master.IsHDR)
	assert.Len(t, master.ChildIDs, 5, "2160p source: 360p through 4k, no original")

	final := waitForStatus(t, svc, master.ID, StatusCompleted)
	assert.Equal(t, 1.0, final.Progress.Ratio, "all children done means min ratio 1")
	assert.EqualValues(t, 5, runner.encodes.Load())
}

func TestMasterAggregatesChildFailure(t *testing.T) {
	runner := &fakeRunner{fail: true}
	svc, mediaID := newTestService(t, hdr4kProbe(), runner)

	master, err := svc.StartAdaptive(context.Background(), mediaID)
	require.NoError(t, err)

	waitForStatus(t, svc, master.ID, StatusFailed)
}

func TestVariantPlaylistStartsOnDemand(t *testing.T) {
	runner := &fakeRunner{}
	svc, mediaID := newTestService(t, hdr4kProbe(), runner)

	res, err := svc.VariantPlaylist(context.Background(), mediaID, "adaptive_1080p")
	require.NoError(t, err)
	require.NotNil(t, res.Started, "missing variant kicks off an encode")
	assert.Equal(t, PlaceholderPlaylist, res.Content)

	waitForStatus(t, svc, res.Started.ID, StatusCompleted)

	// second request serves the real playlist with rewritten segments
	res, err = svc.VariantPlaylist(context.Background(), mediaID, "adaptive_1080p")
	require.NoError(t, err)
	assert.Nil(t, res.Started)
	assert.Contains(t, res.Content, "/variant/adaptive_1080p/segment_00000.ts")
}

func TestVariantPlaylistUnsupported(t *testing.T) {
	svc, mediaID := newTestService(t, hdr4kProbe(), &fakeRunner{})

	_, err := svc.VariantPlaylist(context.Background(), mediaID, "adaptive_1440p")
	assert.ErrorIs(t, err, ErrUnsupportedVariant)
}

func TestWaitForPlaylistReturnsOnceSegmentsExist(t *testing.T) {
	runner := &fakeRunner{}
	svc, mediaID := newTestService(t, hdr4kProbe(), runner)

	job, err := svc.StartTranscoding(context.Background(), mediaID, "720p")
	require.NoError(t, err)

	content, err := svc.WaitForPlaylist(context.Background(), mediaID, "720p")
	require.NoError(t, err)
	assert.Contains(t, content, "#EXTINF:")

	waitForStatus(t, svc, job.ID, StatusCompleted)
}

func TestCancelKillsRunningEncode(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	svc, mediaID := newTestService(t, hdr4kProbe(), runner)

	job, err := svc.StartTranscoding(context.Background(), mediaID, "1080p")
	require.NoError(t, err)

	waitForStatus(t, svc, job.ID, StatusProcessing)
	require.NoError(t, svc.Cancel(context.Background(), job.ID))

	got := waitForStatus(t, svc, job.ID, StatusCancelled)
	assert.Equal(t, StatusCancelled, got.Status)

	// partial output is removed
	require.Eventually(t, func() bool {
		_, err := os.Stat(job.OutputDir)
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestMasterPlaylistSynthesisFlow(t *testing.T) {
	runner := &fakeRunner{}
	svc, mediaID := newTestService(t, hdr4kProbe(), runner)

	// no output at all: not found
	_, err := svc.MasterPlaylist(context.Background(), mediaID)
	assert.Equal(t, domain.ErrKindNotFound, domain.KindOf(err))

	master, err := svc.StartAdaptive(context.Background(), mediaID)
	require.NoError(t, err)
	waitForStatus(t, svc, master.ID, StatusCompleted)

	// variants exist but no master file yet: synthesized and persisted
	content, err := svc.MasterPlaylist(context.Background(), mediaID)
	require.NoError(t, err)
	assert.Contains(t, content, "#EXT-X-STREAM-INF:BANDWIDTH=20000000,RESOLUTION=3840x2160")

	stored, err := os.ReadFile(filepath.Join(svc.MediaDir(mediaID), "master.m3u8"))
	require.NoError(t, err)
	assert.Equal(t, string(stored), content)
}

func TestSegmentPathValidation(t *testing.T) {
	runner := &fakeRunner{}
	svc, mediaID := newTestService(t, hdr4kProbe(), runner)

	job, err := svc.StartTranscoding(context.Background(), mediaID, "720p")
	require.NoError(t, err)
	waitForStatus(t, svc, job.ID, StatusCompleted)

	path, err := svc.SegmentPath(mediaID, "adaptive_720p", "segment_00000.ts")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = svc.SegmentPath(mediaID, "adaptive_720p", "../../etc/passwd")
	assert.Error(t, err, "traversal attempts never resolve")

	_, err = svc.SegmentPath(mediaID, "adaptive_720p", "segment_99999.ts")
	assert.Error(t, err)
}
