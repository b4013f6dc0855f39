// Package server exposes a running layout over HTTP.
//
// # Endpoints
//
//	GET  /healthz     liveness and build information
//	GET  /status      the latest [pipeline.Status] as JSON
//	GET  /metrics     Prometheus exposition
//	POST /pause       pause the simulation (?clear=true also stops all motion)
//	POST /resume      resume a paused simulation
//	POST /unsimplify  start dissolving aggregates now
//
// The server can start before the simulation exists; /status and the
// control endpoints answer 503 until [Server.Attach] is called.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/mtxlayout/pkg/buildinfo"
	"github.com/matzehuels/mtxlayout/pkg/pipeline"
)

// shutdownTimeout bounds how long Serve waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// Server serves the status of one simulation.
type Server struct {
	sim     atomic.Pointer[pipeline.Simulation]
	metrics http.Handler
	logger  *log.Logger
	started time.Time
	router  chi.Router
}

// New creates a server. A nil metrics handler disables /metrics and a nil
// logger discards request logs.
func New(metrics http.Handler, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{metrics: metrics, logger: logger, started: time.Now()}
	s.router = s.routes()
	return s
}

// Attach makes sim the simulation reported and controlled by the server.
func (s *Server) Attach(sim *pipeline.Simulation) {
	s.sim.Store(sim)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Post("/pause", s.handlePause)
	r.Post("/resume", s.handleResume)
	r.Post("/unsimplify", s.handleUnsimplify)
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Debug("status server stopped")
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status    string         `json:"status"`
	Uptime    string         `json:"uptime"`
	Attached  bool           `json:"attached"`
	Build     buildinfo.Info `json:"build"`
	Timestamp time.Time      `json:"timestamp"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Attached:  s.sim.Load() != nil,
		Build:     buildinfo.Get(),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.attached(w)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, sim.Status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.attached(w)
	if !ok {
		return
	}
	clearVelocity := false
	if v := r.URL.Query().Get("clear"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "clear must be a boolean")
			return
		}
		clearVelocity = b
	}
	sim.Pause(clearVelocity)
	s.respondJSON(w, http.StatusOK, sim.Status())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.attached(w)
	if !ok {
		return
	}
	sim.Resume()
	s.respondJSON(w, http.StatusOK, sim.Status())
}

func (s *Server) handleUnsimplify(w http.ResponseWriter, r *http.Request) {
	sim, ok := s.attached(w)
	if !ok {
		return
	}
	if !sim.RequestUnsimplify() {
		s.respondError(w, http.StatusConflict, "nothing to unsimplify")
		return
	}
	s.respondJSON(w, http.StatusAccepted, sim.Status())
}

func (s *Server) attached(w http.ResponseWriter) (*pipeline.Simulation, bool) {
	sim := s.sim.Load()
	if sim == nil {
		s.respondError(w, http.StatusServiceUnavailable, "no simulation running yet")
		return nil, false
	}
	return sim, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encoding response", "err", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: message})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
