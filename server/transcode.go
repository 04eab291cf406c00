package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/transcode"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/MP2T"
)

// StartTranscodeRequest is the POST /transcode/{id} body.
type StartTranscodeRequest struct {
	Profile string `json:"profile"`
}

// jobView shapes a transcode job for JSON responses.
type jobView struct {
	ID        string  `json:"id"`
	MediaID   int64   `json:"mediaId"`
	Type      string  `json:"type"`
	Profile   string  `json:"profile"`
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	Duration  string  `json:"duration,omitempty"`
	Progress  float64 `json:"progress"`
	Frame     int64   `json:"frame,omitempty"`
	FPS       float64 `json:"fps,omitempty"`
	Bitrate   string  `json:"bitrate,omitempty"`
	ETA       string  `json:"eta,omitempty"`
	CreatedAt string  `json:"createdAt"`
	StartedAt string  `json:"startedAt,omitempty"`
	Children  []string `json:"children,omitempty"`
}

func toJobView(job transcode.Job) jobView {
	view := jobView{
		ID:        job.ID,
		MediaID:   job.MediaID,
		Type:      string(job.Type),
		Profile:   job.Variant.Name,
		Status:    string(job.Status),
		Error:     job.Error,
		Progress:  job.Progress.Ratio,
		Frame:     job.Progress.Frame,
		FPS:       job.Progress.FPS,
		Bitrate:   job.Progress.Bitrate,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		Children:  job.ChildIDs,
	}
	if job.Source.Duration > 0 {
		view.Duration = job.Source.Duration.String()
	}
	if job.Progress.ETA > 0 {
		view.ETA = job.Progress.ETA.Round(time.Second).String()
	}
	if job.StartedAt != nil {
		view.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	return view
}

// StartTranscode kicks off a single-profile job and waits for the first
// segment so playback can begin against a partial playlist.
func (s *Server) StartTranscode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req StartTranscodeRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		if req.Profile == "" {
			req.Profile = r.URL.Query().Get("profile")
		}
		if req.Profile == "" {
			req.Profile = "1080p"
		}

		job, err := s.transcoder.StartTranscoding(r.Context(), id, req.Profile)
		if err != nil {
			if errors.Is(err, transcode.ErrUnsupportedVariant) {
				writeErrorResponse(w, http.StatusBadRequest, err)
				return
			}
			writeErrorResponse(w, statusForError(err), err)
			return
		}

		playlist, err := s.transcoder.WaitForPlaylist(r.Context(), id, req.Profile)
		if err != nil {
			if errors.Is(err, transcode.ErrPlaylistTimeout) {
				// let the client fall back to direct streaming
				log.Warn("no segment produced within the poll budget", zap.String("job_id", job.ID))
				writeErrorResponse(w, http.StatusServiceUnavailable, err)
				return
			}
			writeErrorResponse(w, statusForError(err), err)
			return
		}

		w.Header().Set("Content-Type", playlistContentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Transcode-Job-Id", job.ID)
		w.Write([]byte(playlist))
	}
}

// StartAdaptiveTranscode starts the master + variants ladder.
func (s *Server) StartAdaptiveTranscode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		master, err := s.transcoder.StartAdaptive(r.Context(), id)
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		writeResponse(w, http.StatusAccepted, toJobView(master))
	}
}

// MasterPlaylist serves (or synthesizes) the HLS master.
func (s *Server) MasterPlaylist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		master, err := s.transcoder.MasterPlaylist(r.Context(), id)
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}

		w.Header().Set("Content-Type", playlistContentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write([]byte(master))
	}
}

// VariantPlaylist serves a variant playlist, or answers 202 with the
// placeholder once the on-demand encode is started.
func (s *Server) VariantPlaylist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		profile := mux.Vars(r)["profile"]

		res, err := s.transcoder.VariantPlaylist(r.Context(), id, profile)
		if err != nil {
			if errors.Is(err, transcode.ErrUnsupportedVariant) {
				writeErrorResponse(w, http.StatusNotFound, err)
				return
			}
			writeErrorResponse(w, statusForError(err), err)
			return
		}

		w.Header().Set("Content-Type", playlistContentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if res.Started != nil {
			w.Header().Set("X-Transcode-Status", "started")
			w.Header().Set("X-Transcode-Job-Id", res.Started.ID)
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(res.Content))
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		w.Write([]byte(res.Content))
	}
}

// VariantSegment serves one mpegts segment.
func (s *Server) VariantSegment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		vars := mux.Vars(r)

		path, err := s.transcoder.SegmentPath(id, vars["profile"], vars["segment"])
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			writeErrorResponse(w, http.StatusNotFound, err)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", segmentContentType)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		http.ServeContent(w, r, vars["segment"], time.Time{}, f)
	}
}

// TranscodeStatus reports one job, master progress derived from children.
func (s *Server) TranscodeStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := mux.Vars(r)["jobID"]

		job, err := s.transcoder.JobStatus(jobID)
		if err != nil {
			writeErrorResponse(w, http.StatusNotFound, err)
			return
		}
		writeResponse(w, http.StatusOK, toJobView(job))
	}
}

// CancelTranscode cooperatively stops a job (and a master's children).
func (s *Server) CancelTranscode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := mux.Vars(r)["jobID"]

		if err := s.transcoder.Cancel(r.Context(), jobID); err != nil {
			writeErrorResponse(w, http.StatusNotFound, err)
			return
		}
		writeResponse(w, http.StatusOK, map[string]string{"cancelled": jobID})
	}
}

// TranscodeCacheStats totals the segment cache.
func (s *Server) TranscodeCacheStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.transcoder.CacheStats(r.Context())
		if err != nil {
			writeErrorResponse(w, http.StatusInternalServerError, err)
			return
		}
		writeResponse(w, http.StatusOK, map[string]any{
			"items":     stats.ItemCount,
			"bytes":     stats.BytesUsed,
			"bytesHuman": humanize.Bytes(uint64(stats.BytesUsed)),
		})
	}
}
