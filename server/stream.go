package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/storage"
)

// byteRange is one parsed Range header, absolute over a known size.
type byteRange struct {
	start int64
	end   int64
}

// parseRange handles "bytes=a-b", suffix ranges ("-N") and prefix ranges
// ("N-"); out-of-range values clamp. A nil result means "serve the whole
// file".
func parseRange(header string, size int64) *byteRange {
	if size <= 0 || !strings.HasPrefix(header, "bytes=") {
		return nil
	}
	spec := strings.TrimPrefix(header, "bytes=")
	// only the first range of a multi-range request is honored
	if idx := strings.IndexByte(spec, ','); idx >= 0 {
		spec = spec[:idx]
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil
	}

	if startStr == "" {
		// suffix range: the last N bytes
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return nil
		}
		if n > size {
			n = size
		}
		return &byteRange{start: size - n, end: size - 1}
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil
	}
	if start >= size {
		// unsatisfiable: fall through to a full-body response
		return nil
	}

	end := size - 1
	if endStr != "" {
		e, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil
		}
		if e < start {
			return nil
		}
		if e < end {
			end = e
		}
	}
	return &byteRange{start: start, end: end}
}

// StreamMedia serves the raw media file with byte-range support. Distinct
// failure headers tell the player whether the whole library root is gone
// (offline mount) or just this file.
func (s *Server) StreamMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		file, err := s.catalog.GetMediaFile(r.Context(), id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeErrorResponse(w, http.StatusNotFound, err)
				return
			}
			writeErrorResponse(w, http.StatusInternalServerError, err)
			return
		}

		f, err := os.Open(file.Path)
		if err != nil {
			if _, rootErr := os.Stat(filepath.Dir(file.Path)); rootErr != nil {
				w.Header().Set("X-Media-Error", "library-offline")
				writeErrorResponse(w, http.StatusServiceUnavailable, fmt.Errorf("library root unavailable"))
				return
			}
			w.Header().Set("X-Media-Error", "file-missing")
			writeErrorResponse(w, http.StatusNotFound, fmt.Errorf("media file missing"))
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			writeErrorResponse(w, http.StatusInternalServerError, err)
			return
		}
		size := info.Size()

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Type", contentTypeFor(file.Path))

		rng := parseRange(r.Header.Get("Range"), size)
		if rng == nil {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			if _, err := io.Copy(w, f); err != nil {
				log.Debug("stream aborted", zap.Error(err))
			}
			return
		}

		length := rng.end - rng.start + 1
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, size))
		w.WriteHeader(http.StatusPartialContent)

		if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
			return
		}
		if _, err := io.CopyN(w, f, length); err != nil {
			log.Debug("range stream aborted", zap.Error(err))
		}
	}
}

// StreamTranscode serves an on-the-fly mpegts encode. SDR sources don't
// need one and are redirected to the direct byte-range endpoint.
func (s *Server) StreamTranscode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		isHDR, err := s.transcoder.IsSourceHDR(r.Context(), id)
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		if !isHDR {
			http.Redirect(w, r, fmt.Sprintf("/stream/%d", id), http.StatusTemporaryRedirect)
			return
		}

		profile := r.URL.Query().Get("profile")
		if profile == "" {
			profile = "1080p"
		}

		w.Header().Set("Content-Type", "video/MP2T")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if err := s.transcoder.StreamTo(r.Context(), id, profile, w); err != nil {
			// headers are gone; all that's left is logging
			log.Warn("live transcode stream failed", zap.Error(err))
		}
	}
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".ts", ".m2ts":
		return "video/MP2T"
	default:
		return "application/octet-stream"
	}
}
