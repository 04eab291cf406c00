package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstream/arcstream/internal/correlation"
	"github.com/arcstream/arcstream/internal/events"
	"github.com/arcstream/arcstream/internal/queue"
	"github.com/arcstream/arcstream/internal/storage/sqlite"
)

func newTestService(t *testing.T) (*queue.Service, *events.Bus) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	cfg := queue.DefaultConfig()
	cfg.RetryBackoffBase = time.Millisecond
	return queue.NewService(store, bus, correlation.NewCache(64), cfg), bus
}

func folderScanRequest(libraryID int64, path string) queue.EnqueueRequest {
	return queue.EnqueueRequest{
		Kind:      queue.KindFolderScan,
		Priority:  queue.PriorityP1,
		LibraryID: libraryID,
		Payload:   map[string]string{"folderPath": path},
		DedupeKey: queue.DedupeKey(queue.KindFolderScan, "1", path),
	}
}

func TestEnqueueDequeueComplete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	handle, err := svc.Enqueue(ctx, folderScanRequest(1, "/lib"))
	require.NoError(t, err)
	assert.NotZero(t, handle.JobID)
	assert.NotEmpty(t, handle.CorrelationID)
	assert.Zero(t, handle.MergedInto)

	lease, err := svc.Dequeue(ctx, queue.KindFolderScan, "worker-1", time.Minute, nil)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, handle.JobID, lease.Job.ID)
	assert.Equal(t, queue.StatusLeased, lease.Job.Status)

	require.NoError(t, svc.Complete(ctx, lease.Job.ID, "worker-1"))

	// terminal event releases the correlation entry
	_, ok := svc.Correlation(handle.JobID)
	assert.False(t, ok)

	// nothing left to dequeue
	lease, err = svc.Dequeue(ctx, queue.KindFolderScan, "worker-1", time.Minute, nil)
	require.NoError(t, err)
	assert.Nil(t, lease)
}

func TestDedupeMerge(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t)

	jobEvents, err := bus.Subscribe(ctx, events.TopicJobs)
	require.NoError(t, err)

	first, err := svc.Enqueue(ctx, folderScanRequest(1, "/lib"))
	require.NoError(t, err)

	second, err := svc.Enqueue(ctx, folderScanRequest(1, "/lib"))
	require.NoError(t, err)

	assert.Equal(t, first.JobID, second.MergedInto)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, first.CorrelationID, second.CorrelationID, "merged handle carries the surviving job's correlation")

	var got []events.Event
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-jobEvents:
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for job events")
		}
	}
	assert.Equal(t, events.TypeJobEnqueued, got[0].Type)
	assert.Equal(t, events.TypeJobMerged, got[1].Type)
	assert.Equal(t, got[0].CorrelationID, got[1].CorrelationID)
}

func TestPriorityOrderingAndFIFO(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mk := func(path string, prio queue.Priority) int64 {
		h, err := svc.Enqueue(ctx, queue.EnqueueRequest{
			Kind:      queue.KindFolderScan,
			Priority:  prio,
			LibraryID: 1,
			Payload:   map[string]string{"folderPath": path},
			DedupeKey: queue.DedupeKey(queue.KindFolderScan, "1", path),
		})
		require.NoError(t, err)
		return h.JobID
	}

	lowA := mk("/a", queue.PriorityP2)
	lowB := mk("/b", queue.PriorityP2)
	high := mk("/c", queue.PriorityP0)

	var order []int64
	for i := 0; i < 3; i++ {
		lease, err := svc.Dequeue(ctx, queue.KindFolderScan, "w", time.Minute, nil)
		require.NoError(t, err)
		require.NotNil(t, lease)
		order = append(order, lease.Job.ID)
		require.NoError(t, svc.Complete(ctx, lease.Job.ID, "w"))
	}

	assert.Equal(t, []int64{high, lowA, lowB}, order, "P0 first, then FIFO (id tie-break) within P2")
}

func TestLibrarySelector(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Enqueue(ctx, folderScanRequest(1, "/one"))
	require.NoError(t, err)
	other, err := svc.Enqueue(ctx, queue.EnqueueRequest{
		Kind:      queue.KindFolderScan,
		Priority:  queue.PriorityP1,
		LibraryID: 2,
		Payload:   map[string]string{"folderPath": "/two"},
		DedupeKey: queue.DedupeKey(queue.KindFolderScan, "2", "/two"),
	})
	require.NoError(t, err)

	lease, err := svc.Dequeue(ctx, queue.KindFolderScan, "w", time.Minute, &queue.Selector{LibraryID: 2})
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, other.JobID, lease.Job.ID)
}

func TestRetryableFailureRequeues(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t)

	jobEvents, err := bus.Subscribe(ctx, events.TopicJobs)
	require.NoError(t, err)

	handle, err := svc.Enqueue(ctx, folderScanRequest(1, "/lib"))
	require.NoError(t, err)

	lease, err := svc.Dequeue(ctx, queue.KindFolderScan, "w", time.Minute, nil)
	require.NoError(t, err)
	require.NotNil(t, lease)

	require.NoError(t, svc.Fail(ctx, lease.Job.ID, "w", errors.New("tmdb timeout"), true))

	job, err := svc.GetJob(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusQueued, job.Status)
	assert.Equal(t, 1, job.Attempt)
	assert.Contains(t, job.LastError, "timeout")

	// the same correlation id spans enqueue, dequeue and failure
	var corr []string
	timeout := time.After(2 * time.Second)
	for len(corr) < 3 {
		select {
		case ev := <-jobEvents:
			corr = append(corr, ev.CorrelationID)
		case <-timeout:
			t.Fatal("timed out waiting for job events")
		}
	}
	assert.Equal(t, corr[0], corr[1])
	assert.Equal(t, corr[1], corr[2])
}

func TestTerminalFailureDeadLetters(t *testing.T) {
	ctx := context.Background()
	svc, bus := newTestService(t)

	jobEvents, err := bus.Subscribe(ctx, events.TopicJobs)
	require.NoError(t, err)

	handle, err := svc.Enqueue(ctx, folderScanRequest(1, "/lib"))
	require.NoError(t, err)

	lease, err := svc.Dequeue(ctx, queue.KindFolderScan, "w", time.Minute, nil)
	require.NoError(t, err)
	require.NotNil(t, lease)

	require.NoError(t, svc.Fail(ctx, lease.Job.ID, "w", errors.New("bad metadata"), false))

	job, err := svc.GetJob(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusDeadLettered, job.Status)

	letters, err := svc.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, handle.JobID, letters[0].JobID)
	assert.Equal(t, "bad metadata", letters[0].Error)

	_, ok := svc.Correlation(handle.JobID)
	assert.False(t, ok, "correlation entry must be gone after the terminal event")

	var types []events.Type
	timeout := time.After(2 * time.Second)
	for len(types) < 4 {
		select {
		case ev := <-jobEvents:
			types = append(types, ev.Type)
		case <-timeout:
			t.Fatalf("timed out; got %v", types)
		}
	}
	assert.Equal(t, []events.Type{
		events.TypeJobEnqueued,
		events.TypeJobDequeued,
		events.TypeJobFailed,
		events.TypeJobDeadLettered,
	}, types)
}

func TestAttemptCapDeadLetters(t *testing.T) {
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	cfg := queue.DefaultConfig()
	cfg.RetryBackoffBase = time.Millisecond
	cfg.MaxAttempts[queue.KindFolderScan] = 2
	svc := queue.NewService(store, bus, correlation.NewCache(64), cfg)

	handle, err := svc.Enqueue(ctx, folderScanRequest(1, "/lib"))
	require.NoError(t, err)

	for attempt := 0; attempt < 2; attempt++ {
		// backoff is small but non-zero; wait for the job to become ready
		var lease *queue.Lease
		require.Eventually(t, func() bool {
			lease, err = svc.Dequeue(ctx, queue.KindFolderScan, "w", time.Minute, nil)
			require.NoError(t, err)
			return lease != nil
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, svc.Fail(ctx, lease.Job.ID, "w", errors.New("tmdb timeout"), true))
	}

	job, err := svc.GetJob(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusDeadLettered, job.Status, "second retryable failure hits the cap of 2")
}

func TestExpiredLeaseIsSwept(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	handle, err := svc.Enqueue(ctx, folderScanRequest(1, "/lib"))
	require.NoError(t, err)

	lease, err := svc.Dequeue(ctx, queue.KindFolderScan, "w", time.Millisecond, nil)
	require.NoError(t, err)
	require.NotNil(t, lease)

	time.Sleep(5 * time.Millisecond)
	svc.Sweep(ctx)

	job, err := svc.GetJob(ctx, handle.JobID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusQueued, job.Status)
	assert.Equal(t, 1, job.Attempt)

	// the original worker's lease is dead; completing under it must fail
	err = svc.Complete(ctx, handle.JobID, "w")
	assert.Error(t, err)
}

func TestEnqueueMany(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	reqs := []queue.EnqueueRequest{
		folderScanRequest(1, "/a"),
		folderScanRequest(1, "/b"),
		folderScanRequest(1, "/a"), // duplicate of the first
	}

	handles, err := svc.EnqueueMany(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, handles, 3)

	assert.Zero(t, handles[0].MergedInto)
	assert.Zero(t, handles[1].MergedInto)
	assert.Equal(t, handles[0].JobID, handles[2].MergedInto)
}
