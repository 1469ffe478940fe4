package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Pelix05/Code-Agent-Project/internal/patch"
	"github.com/Pelix05/Code-Agent-Project/internal/pipeline"
	"github.com/Pelix05/Code-Agent-Project/internal/queue"
	"github.com/Pelix05/Code-Agent-Project/internal/status"
	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

// RunQueuer is the slice of the run queue the API needs.
type RunQueuer interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (string, error)
	Depth(ctx context.Context) (int, error)
}

// Ingestor turns an uploaded archive into a workspace.
type Ingestor interface {
	Ingest(archiveBytes []byte, filename string, hint workspace.Language) (workspace.Descriptor, error)
}

// WorkspaceRegistry is the slice of the registry the API needs.
type WorkspaceRegistry interface {
	Record(d workspace.Descriptor) error
	Get(id string) (workspace.Descriptor, bool)
	Current() (workspace.Descriptor, bool)
	Count() int
}

// StatusReader reports the persisted state of a workspace run.
type StatusReader interface {
	Read(wsID string) (status.Report, error)
}

// PatchApplier applies a directory of patches to a working tree.
type PatchApplier interface {
	ApplyAll(ctx context.Context, patchesDir, workDir string) ([]patch.Record, error)
}

// Config holds API server configuration.
type Config struct {
	Listen         string
	MaxUploadBytes int64
	// PatchDirs names the patch directory per language for operator-driven
	// patch commands.
	PatchDirs map[workspace.Language]string
}

// Server is the HTTP front door: uploads, status polling, operator commands,
// and patch comparison.
type Server struct {
	config     Config
	queue      RunQueuer
	ingestor   Ingestor
	workspaces WorkspaceRegistry
	statuses   StatusReader
	applier    PatchApplier
	toolsets   map[workspace.Language]pipeline.Toolset
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

func New(config Config, q RunQueuer, ing Ingestor, reg WorkspaceRegistry, st StatusReader, applier PatchApplier, toolsets map[workspace.Language]pipeline.Toolset, logger *slog.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 256 << 20
	}
	return &Server{
		config:     config,
		queue:      q,
		ingestor:   ing,
		workspaces: reg,
		statuses:   st,
		applier:    applier,
		toolsets:   toolsets,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/upload", s.handleUpload)
	r.Get("/status", s.handleStatus)
	r.Post("/process", s.handleProcess)
	r.Post("/compare_patch", s.handleComparePatch)

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, ErrorResponse{Status: statusError, Error: msg})
}
