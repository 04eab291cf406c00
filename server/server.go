// Package server is the HTTP surface: thin handlers that translate
// requests into queue submissions, transcoding requests, or catalog reads.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/arcstream/arcstream/config"
	"github.com/arcstream/arcstream/internal/dispatch"
	"github.com/arcstream/arcstream/internal/events"
	"github.com/arcstream/arcstream/internal/queue"
	"github.com/arcstream/arcstream/internal/storage"
	"github.com/arcstream/arcstream/internal/transcode"
)

// Catalog is the slice of the repository the HTTP surface reads.
type Catalog interface {
	storage.LibraryStore
	storage.MediaFileStore
	storage.IndexStore
}

// DBPinger backs the /health database check.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// Server houses the dependencies every handler hangs off of.
type Server struct {
	baseLogger   *zap.SugaredLogger
	catalog      Catalog
	queue        *queue.Service
	orchestrator *dispatch.Orchestrator
	transcoder   *transcode.Service
	images       storage.ImageCache
	bus          *events.Bus
	db           DBPinger
	config       config.Server
}

// New creates the media server.
func New(
	logger *zap.SugaredLogger,
	catalog Catalog,
	q *queue.Service,
	orchestrator *dispatch.Orchestrator,
	transcoder *transcode.Service,
	images storage.ImageCache,
	bus *events.Bus,
	db DBPinger,
	cfg config.Server,
) *Server {
	return &Server{
		baseLogger:   logger,
		catalog:      catalog,
		queue:        q,
		orchestrator: orchestrator,
		transcoder:   transcoder,
		images:       images,
		bus:          bus,
		db:           db,
		config:       cfg,
	}
}

// Router builds the route table; split out of Serve so tests can drive it
// without a socket.
func (s *Server) Router() http.Handler {
	rtr := mux.NewRouter()
	rtr.Use(s.LogMiddleware())

	rtr.HandleFunc("/ping", s.Ping()).Methods(http.MethodGet)
	rtr.HandleFunc("/health", s.Health()).Methods(http.MethodGet)

	rtr.HandleFunc("/libraries", s.ListLibraries()).Methods(http.MethodGet)
	rtr.HandleFunc("/libraries", s.CreateLibrary()).Methods(http.MethodPost)
	rtr.HandleFunc("/libraries/{id}", s.GetLibrary()).Methods(http.MethodGet)
	rtr.HandleFunc("/libraries/{id}", s.UpdateLibrary()).Methods(http.MethodPut)
	rtr.HandleFunc("/libraries/{id}", s.DeleteLibrary()).Methods(http.MethodDelete)
	rtr.HandleFunc("/libraries/{id}/scan", s.ScanLibrary()).Methods(http.MethodPost)

	rtr.HandleFunc("/library", s.QueryCatalog()).Methods(http.MethodGet)
	rtr.HandleFunc("/library/events/sse", s.LibraryEventsSSE()).Methods(http.MethodGet)
	rtr.HandleFunc("/scan/progress/{id}/sse", s.ScanProgressSSE()).Methods(http.MethodGet)

	rtr.HandleFunc("/images/{iid}", s.GetImage()).Methods(http.MethodGet)

	rtr.HandleFunc("/stream/{id}", s.StreamMedia()).Methods(http.MethodGet)
	rtr.HandleFunc("/stream/{id}/transcode", s.StreamTranscode()).Methods(http.MethodGet)

	rtr.HandleFunc("/transcode/{id}", s.StartTranscode()).Methods(http.MethodPost)
	rtr.HandleFunc("/transcode/{id}/adaptive", s.StartAdaptiveTranscode()).Methods(http.MethodPost)
	rtr.HandleFunc("/transcode/{id}/master.m3u8", s.MasterPlaylist()).Methods(http.MethodGet)
	rtr.HandleFunc("/transcode/{id}/variant/{profile}/playlist.m3u8", s.VariantPlaylist()).Methods(http.MethodGet)
	rtr.HandleFunc("/transcode/{id}/variant/{profile}/{segment}", s.VariantSegment()).Methods(http.MethodGet)
	rtr.HandleFunc("/transcode/status/{jobID}", s.TranscodeStatus()).Methods(http.MethodGet)
	rtr.HandleFunc("/transcode/cancel/{jobID}", s.CancelTranscode()).Methods(http.MethodPost)
	rtr.HandleFunc("/transcode/cache/stats", s.TranscodeCacheStats()).Methods(http.MethodGet)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Range"}),
		handlers.ExposedHeaders([]string{"Content-Length", "Content-Range", "X-Transcode-Status", "X-Transcode-Job-Id", "X-Media-Error"}),
		handlers.MaxAge(3600),
	)(rtr)
}

// Serve starts the http server and blocks until interrupted.
func (s *Server) Serve(port int) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		// no WriteTimeout: SSE subscriptions and media streams are
		// long-lived by design
	}

	go func() {
		s.baseLogger.Infow("serving...", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.baseLogger.Error(err.Error())
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	return srv.Shutdown(ctx)
}

var _ DBPinger = (*sql.DB)(nil)
