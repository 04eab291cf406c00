package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/arcstream/arcstream/internal/domain"
	"github.com/arcstream/arcstream/internal/logger"
	"github.com/arcstream/arcstream/internal/scanner"
	"github.com/arcstream/arcstream/internal/storage"
)

var validate = validator.New()

// CreateLibraryRequest is the POST /libraries body.
type CreateLibraryRequest struct {
	Name                string   `json:"name" validate:"required"`
	LibraryType         string   `json:"library_type" validate:"required,oneof=movies series"`
	Paths               []string `json:"paths" validate:"required,min=1,dive,required"`
	ScanIntervalMinutes int      `json:"scan_interval_minutes" validate:"gte=0"`
	Enabled             *bool    `json:"enabled"`
}

// UpdateLibraryRequest is the PUT body; nil fields stay untouched.
type UpdateLibraryRequest struct {
	Name                *string  `json:"name"`
	LibraryType         *string  `json:"library_type" validate:"omitempty,oneof=movies series"`
	Paths               []string `json:"paths"`
	ScanIntervalMinutes *int     `json:"scan_interval_minutes" validate:"omitempty,gte=0"`
	Enabled             *bool    `json:"enabled"`
}

func (s *Server) ListLibraries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		libs, err := s.catalog.ListLibraries(r.Context())
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		writeResponse(w, http.StatusOK, libs)
	}
}

func (s *Server) GetLibrary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		lib, err := s.catalog.GetLibrary(r.Context(), id)
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		writeResponse(w, http.StatusOK, lib)
	}
}

func (s *Server) CreateLibrary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		var req CreateLibraryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, err)
			return
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}
		interval := req.ScanIntervalMinutes
		if interval == 0 {
			interval = 60
		}

		lib := domain.Library{
			Name:                req.Name,
			Kind:                domain.LibraryKind(req.LibraryType),
			Paths:               req.Paths,
			ScanIntervalMinutes: interval,
			Enabled:             enabled,
		}

		id, err := s.catalog.CreateLibrary(r.Context(), lib)
		if err != nil {
			log.Error("failed to create library", zap.Error(err))
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		lib.ID = id
		writeResponse(w, http.StatusCreated, lib)
	}
}

func (s *Server) UpdateLibrary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req UpdateLibraryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, err)
			return
		}

		lib, err := s.catalog.GetLibrary(r.Context(), id)
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}

		if req.Name != nil {
			lib.Name = *req.Name
		}
		if req.LibraryType != nil {
			lib.Kind = domain.LibraryKind(*req.LibraryType)
		}
		if req.Paths != nil {
			lib.Paths = req.Paths
		}
		if req.ScanIntervalMinutes != nil {
			lib.ScanIntervalMinutes = *req.ScanIntervalMinutes
		}
		if req.Enabled != nil {
			lib.Enabled = *req.Enabled
		}

		if err := s.catalog.UpdateLibrary(r.Context(), lib); err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		writeResponse(w, http.StatusOK, lib)
	}
}

func (s *Server) DeleteLibrary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := s.catalog.DeleteLibrary(r.Context(), id); err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		writeResponse(w, http.StatusOK, map[string]int64{"deleted": id})
	}
}

// ScanLibrary enqueues FolderScan jobs for every root of the library.
func (s *Server) ScanLibrary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		lib, err := s.catalog.GetLibrary(r.Context(), id)
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		if !lib.Enabled {
			writeErrorResponse(w, http.StatusConflict, domain.Conflict("library disabled"))
			return
		}

		force := r.URL.Query().Get("force") == "true"

		scanID, handles, err := s.orchestrator.StartScan(r.Context(), lib, scanner.ReasonUserRequested, force)
		if err != nil {
			log.Error("failed to start scan", zap.Error(err))
			writeErrorResponse(w, http.StatusInternalServerError, err)
			return
		}

		type handleView struct {
			JobID         int64  `json:"jobId"`
			CorrelationID string `json:"correlationId"`
			MergedInto    int64  `json:"mergedInto,omitempty"`
		}
		views := make([]handleView, 0, len(handles))
		for _, h := range handles {
			views = append(views, handleView{JobID: h.JobID, CorrelationID: h.CorrelationID, MergedInto: h.MergedInto})
		}

		writeResponse(w, http.StatusAccepted, map[string]any{
			"scanId": scanID,
			"jobs":   views,
		})
	}
}

// QueryCatalog answers GET /library.
func (s *Server) QueryCatalog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		query := storage.CatalogQuery{
			MediaType: q.Get("media_type"),
			ShowName:  q.Get("show_name"),
			OrderBy:   q.Get("order_by"),
		}
		if v := q.Get("season"); v != "" {
			season, err := strconv.Atoi(v)
			if err != nil {
				writeErrorResponse(w, http.StatusBadRequest, err)
				return
			}
			query.Season = &season
		}
		if v := q.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil {
				writeErrorResponse(w, http.StatusBadRequest, err)
				return
			}
			query.Limit = limit
		}
		if v := q.Get("library_id"); v != "" {
			libID, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeErrorResponse(w, http.StatusBadRequest, err)
				return
			}
			query.LibraryID = libID
		}

		entries, err := s.catalog.QueryCatalog(r.Context(), query)
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		writeResponse(w, http.StatusOK, entries)
	}
}

// GetImage serves a cached artwork blob by iid.
func (s *Server) GetImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		iid := mux.Vars(r)["iid"]

		data, err := s.images.Read(r.Context(), iid)
		if err != nil {
			writeErrorResponse(w, statusForError(err), err)
			return
		}
		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
		w.Write(data)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err)
		return 0, false
	}
	return id, true
}
