// Package queue implements the durable priority job queue the scan
// pipeline runs on: deduplicating enqueue, lease-based dequeue, retry
// scheduling and dead-letter routing, all persisted through the Store port
// so a restart resumes exactly where the process left off.
package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arcstream/arcstream/internal/machine"
)

// Kind identifies which stage actor consumes a job.
type Kind string

const (
	KindFolderScan     Kind = "FolderScan"
	KindMediaAnalyze   Kind = "MediaAnalyze"
	KindMetadataEnrich Kind = "MetadataEnrich"
	KindIndexUpsert    Kind = "IndexUpsert"
	KindImageFetch     Kind = "ImageFetch"
)

// Kinds lists every job kind a worker pool may ask for.
var Kinds = []Kind{KindFolderScan, KindMediaAnalyze, KindMetadataEnrich, KindIndexUpsert, KindImageFetch}

// Priority orders ready jobs; lower value dequeues first.
type Priority int

const (
	PriorityP0 Priority = 0
	PriorityP1 Priority = 1
	PriorityP2 Priority = 2
)

func (p Priority) String() string {
	return fmt.Sprintf("P%d", int(p))
}

// Status is a job's lifecycle position.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusLeased       Status = "leased"
	StatusCompleted    Status = "completed"
	StatusDeadLettered Status = "dead_lettered"
)

// StatusMachine validates lifecycle moves: queued → leased →
// (queued | completed | dead_lettered). Lease expiry and retryable failure
// are both the leased → queued edge.
func StatusMachine(current Status) *machine.StateMachine[Status] {
	return machine.New(current,
		machine.From(StatusQueued).To(StatusLeased),
		machine.From(StatusLeased).To(StatusQueued, StatusCompleted, StatusDeadLettered),
	)
}

// Job is one durable queue row.
type Job struct {
	ID             int64
	Kind           Kind
	Priority       Priority
	LibraryID      int64
	Payload        json.RawMessage
	DedupeKey      string
	Status         Status
	Attempt        int
	ScheduledAt    time.Time
	EnqueuedAt     time.Time
	LeaseOwner     string
	LeaseExpiresAt time.Time
	CorrelationID  string
	LastError      string
}

// EnqueueRequest carries everything needed to create (or merge into) a job.
type EnqueueRequest struct {
	Kind      Kind
	Priority  Priority
	LibraryID int64
	Payload   any
	DedupeKey string
	// CorrelationID, when set, ties the new job to work already in flight
	// (a follow-up stage inherits its parent's correlation); when empty a
	// fresh id is minted.
	CorrelationID string
	ScheduledAt   time.Time
}

// Handle is what an enqueue returns. MergedInto is non-zero when the
// request collapsed onto an already-active job with the same dedupe key, in
// which case JobID and CorrelationID describe the surviving job.
type Handle struct {
	JobID         int64
	CorrelationID string
	MergedInto    int64
}

// Lease is a bounded claim on a job.
type Lease struct {
	Job       Job
	Owner     string
	ExpiresAt time.Time
}

// Selector optionally restricts a dequeue to one library's jobs.
type Selector struct {
	LibraryID int64
}

// DedupeKey builds the deterministic key two equal payloads collapse on.
func DedupeKey(kind Kind, parts ...string) string {
	return strings.ToLower(string(kind) + ":" + strings.Join(parts, ":"))
}

// DeadLetter is a terminally failed job, preserved for operator inspection.
type DeadLetter struct {
	JobID          int64
	Kind           Kind
	Payload        json.RawMessage
	Error          string
	Attempt        int
	DeadLetteredAt time.Time
}
