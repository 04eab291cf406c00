package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/events"
	"github.com/arcstream/arcstream/internal/logger"
)

const sseHeartbeatInterval = 15 * time.Second

// sseSetup prepares an SSE response and returns the flusher, or nil when
// the connection cannot stream.
func sseSetup(w http.ResponseWriter) http.Flusher {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	return flusher
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

// LibraryEventsSSE streams media add/update/delete and scan lifecycle
// events to the player.
func (s *Server) LibraryEventsSSE() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher := sseSetup(w)
		if flusher == nil {
			return
		}
		log := logger.FromCtx(r.Context())

		ch, err := s.bus.Subscribe(r.Context(), events.TopicScan)
		if err != nil {
			log.Error("failed to subscribe for sse", zap.Error(err))
			return
		}

		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			case ev, open := <-ch:
				if !open {
					return
				}
				switch ev.Type {
				case events.TypeIndexed, events.TypeMediaReadyForIndex,
					events.TypeScanStarted, events.TypeScanCompleted,
					events.TypeFolderScanCompleted:
					writeSSE(w, flusher, string(ev.Type), ev)
				}
			}
		}
	}
}

// ScanProgressSSE streams folder-by-folder scan progress stamped with the
// scan id from the URL. Folder and media events carry no scan id, so the
// counts include every scan running while the stream is open.
func (s *Server) ScanProgressSSE() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scanID := mux.Vars(r)["id"]

		flusher := sseSetup(w)
		if flusher == nil {
			return
		}
		log := logger.FromCtx(r.Context())

		scanCh, err := s.bus.Subscribe(r.Context(), events.TopicScan)
		if err != nil {
			log.Error("failed to subscribe for scan progress", zap.Error(err))
			return
		}
		jobCh, err := s.bus.Subscribe(r.Context(), events.TopicJobs)
		if err != nil {
			log.Error("failed to subscribe for job progress", zap.Error(err))
			return
		}

		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer heartbeat.Stop()

		foldersDone, mediaFound := 0, 0

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			case ev, open := <-scanCh:
				if !open {
					return
				}
				switch ev.Type {
				case events.TypeFolderScanCompleted:
					foldersDone++
					writeSSE(w, flusher, "progress", events.ScanProgressPayload{
						ScanID:      scanID,
						FoldersDone: foldersDone,
						MediaFound:  mediaFound,
					})
				case events.TypeMediaFileDiscovered:
					mediaFound++
				}
			case ev, open := <-jobCh:
				if !open {
					return
				}
				if ev.Type == events.TypeJobDeadLettered {
					writeSSE(w, flusher, "error", ev)
				}
			}
		}
	}
}
