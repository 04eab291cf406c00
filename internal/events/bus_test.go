package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicScan)
	require.NoError(t, err)

	want := Event{
		Type:          TypeMediaFileDiscovered,
		CorrelationID: "abc-123",
		LibraryID:     1,
		OccurredAt:    time.Now().UTC(),
		Payload: MediaFileDiscoveredPayload{
			MediaFileID: 7,
			Path:        "/lib/Movie (1999).mkv",
		},
	}
	require.NoError(t, bus.Publish(ctx, TopicScan, want))

	select {
	case got := <-ch:
		assert.Equal(t, TypeMediaFileDiscovered, got.Type)
		assert.Equal(t, "abc-123", got.CorrelationID)
		assert.Equal(t, int64(1), got.LibraryID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs, err := bus.Subscribe(ctx, TopicJobs)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, TopicScan, Event{Type: TypeScanStarted}))
	require.NoError(t, bus.Publish(ctx, TopicJobs, Event{Type: TypeJobEnqueued, Payload: JobPayload{JobID: 1, Kind: "FolderScan"}}))

	select {
	case got := <-jobs:
		assert.Equal(t, TypeJobEnqueued, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job event")
	}

	select {
	case got := <-jobs:
		t.Fatalf("unexpected event leaked across topics: %v", got.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bus.Subscribe(ctx, TopicJobs)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx, TopicJobs)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, TopicJobs, Event{Type: TypeJobCompleted}))

	for _, ch := range []<-chan Event{a, b} {
		select {
		case got := <-ch:
			assert.Equal(t, TypeJobCompleted, got.Type)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}
}
