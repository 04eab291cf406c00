// Package scanner holds the first two pipeline stages: the folder scan
// actor that turns a directory listing into discovered media and child
// scan contexts, and the analyze actor that probes each discovered file.
package scanner

import (
	"strconv"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/queue"
)

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// ScanReason records why a folder scan was requested; it drives the job
// priority so interactive work outruns maintenance.
type ScanReason string

const (
	ReasonHotChange       ScanReason = "hot_change"
	ReasonWatcherOverflow ScanReason = "watcher_overflow"
	ReasonUserRequested   ScanReason = "user_requested"
	ReasonBulkSeed        ScanReason = "bulk_seed"
	ReasonMaintenanceSweep ScanReason = "maintenance_sweep"
)

// Priority maps the scan reason onto a queue priority.
func (r ScanReason) Priority() queue.Priority {
	switch r {
	case ReasonHotChange, ReasonWatcherOverflow:
		return queue.PriorityP0
	case ReasonUserRequested, ReasonBulkSeed:
		return queue.PriorityP1
	default:
		return queue.PriorityP2
	}
}

// FolderScanCommand is the FolderScan job payload: one folder plus the
// parent context it inherited.
type FolderScanCommand struct {
	LibraryID   int64              `json:"libraryId"`
	LibraryKind domain.LibraryKind `json:"libraryKind"`
	FolderPath  string             `json:"folderPath"`
	ScanReason  ScanReason         `json:"scanReason"`
	// ScanID groups every folder of one user-visible scan for progress
	// reporting; it is not the correlation id.
	ScanID string `json:"scanId,omitempty"`
	// Force skips the cursor short-circuit.
	Force bool `json:"force,omitempty"`
}

// DedupeKey collapses duplicate scans of the same folder.
func (c FolderScanCommand) DedupeKey() string {
	return queue.DedupeKey(queue.KindFolderScan, itoa(c.LibraryID), c.FolderPath)
}

// EntryClass is what a directory entry turned out to be.
type EntryClass string

const (
	EntryDirectory EntryClass = "directory"
	EntryMedia     EntryClass = "media"
	EntryAncillary EntryClass = "ancillary"
)

// ListingEntry is one classified child of the scanned folder.
type ListingEntry struct {
	Name    string
	Class   EntryClass
	Size    int64
	ModTime int64
}

// FolderListingPlan is the deterministic summary of one folder's contents.
type FolderListingPlan struct {
	FolderPath  string
	Entries     []ListingEntry
	ListingHash string
	DeviceID    uint64
}

// FolderScanResult is what the folder actor hands the dispatcher.
type FolderScanResult struct {
	Plan FolderListingPlan
	// Unchanged is set when the stored cursor already matches the listing
	// hash; the dispatcher then only refreshes the cursor timestamp.
	Unchanged bool
	// Discovered lists media files upserted during this scan, ready for
	// MediaFileDiscovered events and analyze follow-ups.
	Discovered []domain.MediaFile
	// Children are the derived scan commands for subdirectories. They are
	// emitted as FolderDiscovered events; the orchestrator enqueues them.
	Children []FolderScanCommand
	// ItemErrors counts per-item failures that were logged but did not
	// fail the scan.
	ItemErrors int
}

// AnalyzeCommand is the MediaAnalyze job payload.
type AnalyzeCommand struct {
	LibraryID   int64              `json:"libraryId"`
	LibraryKind domain.LibraryKind `json:"libraryKind"`
	MediaFileID int64              `json:"mediaFileId"`
	Path        string             `json:"path"`
	ScanReason  ScanReason         `json:"scanReason"`
}

func (c AnalyzeCommand) DedupeKey() string {
	return queue.DedupeKey(queue.KindMediaAnalyze, itoa(c.MediaFileID))
}

// AnalysisContext carries the probed fields plus any provider hints the
// filename or folder conventions gave away.
type AnalysisContext struct {
	TMDBIDHint int64 `json:"tmdbIdHint,omitempty"`
}

// AnalyzeResult is what the analyze actor hands the dispatcher.
type AnalyzeResult struct {
	MediaFile domain.MediaFile
	Context   AnalysisContext
}
