package transcode

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcstream/arcstream/internal/machine"
)

// JobType distinguishes standalone encodes from adaptive masters and their
// variant children.
type JobType string

const (
	JobTypeSingle  JobType = "single"
	JobTypeMaster  JobType = "master"
	JobTypeVariant JobType = "variant"
)

// JobStatus is one transcoding job's lifecycle position.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// statusMachine guards job lifecycle moves; cancellation is reachable from
// every non-terminal state.
func statusMachine(current JobStatus) *machine.StateMachine[JobStatus] {
	return machine.New(current,
		machine.From(StatusPending).To(StatusQueued, StatusProcessing, StatusCancelled, StatusFailed),
		machine.From(StatusQueued).To(StatusProcessing, StatusCancelled, StatusFailed),
		machine.From(StatusProcessing).To(StatusCompleted, StatusFailed, StatusCancelled),
	)
}

// SourceMetadata is what the pre-encode probe said about the input; the
// duration drives progress ratios and ETAs.
type SourceMetadata struct {
	Duration   time.Duration `json:"duration"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Codec      string        `json:"codec"`
	BitDepth   int           `json:"bitDepth"`
	IsHDR      bool          `json:"isHdr"`
}

// ProgressDetails is the client-facing progress snapshot.
type ProgressDetails struct {
	Frame   int64         `json:"frame"`
	FPS     float64       `json:"fps"`
	Bitrate string        `json:"bitrate"`
	Ratio   float64       `json:"ratio"`
	ETA     time.Duration `json:"eta"`
}

// Job is one transcoding work item.
type Job struct {
	ID           string
	MediaID      int64
	Type         JobType
	Variant      Variant
	IsHDR        bool
	Status       JobStatus
	Error        string
	OutputDir    string
	PlaylistPath string
	Source       SourceMetadata
	Progress     ProgressDetails
	CreatedAt    time.Time
	StartedAt    *time.Time

	// ParentID ties a variant to its master; ChildIDs the reverse.
	ParentID string
	ChildIDs []string
}

// JobStore is the in-memory registry of live and recent jobs. Transcoding
// state is runtime state: a restart drops it and the cache directories on
// disk remain the durable artifact.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create registers a new job in Pending.
func (s *JobStore) Create(mediaID int64, typ JobType, variant Variant, src SourceMetadata, isHDR bool, outputDir string) *Job {
	job := &Job{
		ID:           uuid.NewString(),
		MediaID:      mediaID,
		Type:         typ,
		Variant:      variant,
		IsHDR:        isHDR,
		Status:       StatusPending,
		OutputDir:    outputDir,
		PlaylistPath: outputDir + "/playlist.m3u8",
		Source:       src,
		CreatedAt:    time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

// Get returns a copy of the job.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return s.snapshot(job), true
}

// snapshot assumes the read lock is held.
func (s *JobStore) snapshot(job *Job) Job {
	cp := *job
	cp.ChildIDs = append([]string(nil), job.ChildIDs...)

	if job.Type == JobTypeMaster {
		cp.Status, cp.Progress = s.aggregate(job)
	}
	return cp
}

// aggregate derives a master's status and progress from its children:
// progress is the minimum child ratio ("at least this much everywhere"),
// completed only when every child completed, failed as soon as any child
// failed.
func (s *JobStore) aggregate(master *Job) (JobStatus, ProgressDetails) {
	if len(master.ChildIDs) == 0 {
		return master.Status, master.Progress
	}

	status := StatusCompleted
	minRatio := 1.0
	var worst ProgressDetails
	first := true

	for _, childID := range master.ChildIDs {
		child, ok := s.jobs[childID]
		if !ok {
			continue
		}
		switch child.Status {
		case StatusFailed:
			return StatusFailed, child.Progress
		case StatusCancelled:
			status = StatusCancelled
		case StatusCompleted:
			// keeps the running status only if every other child agrees
		default:
			if status != StatusCancelled {
				status = StatusProcessing
			}
		}
		if first || child.Progress.Ratio < minRatio {
			minRatio = child.Progress.Ratio
			worst = child.Progress
			first = false
		}
	}

	worst.Ratio = minRatio
	return status, worst
}

// Attach links a variant job under its master.
func (s *JobStore) Attach(masterID, childID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if master, ok := s.jobs[masterID]; ok {
		master.ChildIDs = append(master.ChildIDs, childID)
	}
	if child, ok := s.jobs[childID]; ok {
		child.ParentID = masterID
	}
}

// Transition validates and applies a status change.
func (s *JobStore) Transition(id string, to JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return machine.ErrInvalidTransition
	}
	if err := statusMachine(job.Status).ToState(to); err != nil {
		return err
	}
	job.Status = to
	if to == StatusCompleted {
		job.Progress.Ratio = 1
		job.Progress.ETA = 0
	}
	if to == StatusProcessing && job.StartedAt == nil {
		now := time.Now().UTC()
		job.StartedAt = &now
	}
	return nil
}

// Fail marks the job failed with its error.
func (s *JobStore) Fail(id string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && job.Status != StatusCancelled {
		job.Status = StatusFailed
		job.Error = errMsg
	}
}

// UpdateProgress records the latest parsed encoder progress.
func (s *JobStore) UpdateProgress(id string, p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Progress = ProgressDetails{
		Frame:   p.Frame,
		FPS:     p.FPS,
		Bitrate: p.Bitrate,
		Ratio:   p.Ratio(job.Source.Duration),
		ETA:     p.ETA(job.Source.Duration),
	}
}

// IsCancelled lets a worker observe a cooperative cancel.
func (s *JobStore) IsCancelled(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return ok && job.Status == StatusCancelled
}

// ListByMedia returns jobs for one media item, newest first not
// guaranteed; callers sort if they care.
func (s *JobStore) ListByMedia(mediaID int64) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Job
	for _, job := range s.jobs {
		if job.MediaID == mediaID {
			out = append(out, s.snapshot(job))
		}
	}
	return out
}
