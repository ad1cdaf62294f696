// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statusapi serves a read-only HTTP view of the roster.
//
// Routes:
//
//	GET /healthz       liveness and snapshot age
//	GET /metrics       Prometheus exposition
//	GET /events        active events (?archived=true for the archive)
//	GET /events/{id}   one event, active first
//
// Handlers never touch live events. The bot's worker publishes an
// immutable [Snapshot] after every handled input and handlers read
// whichever snapshot is current.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bureau-foundation/muster/lib/clock"
	"github.com/bureau-foundation/muster/lib/eventdb"
	"github.com/bureau-foundation/muster/lib/metrics"
)

// Snapshot is the published roster state.
type Snapshot struct {
	Active    []eventdb.Summary `json:"active"`
	Archived  []eventdb.Summary `json:"archived"`
	Generated time.Time         `json:"generated"`
}

// Config holds the parameters for New.
type Config struct {
	// Metrics is served on /metrics when set.
	Metrics *metrics.Metrics

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the status HTTP handler.
type Server struct {
	snapshot atomic.Pointer[Snapshot]
	metrics  *metrics.Metrics
	clock    clock.Clock
	logger   *slog.Logger
	router   chi.Router
}

// New creates a Server with an empty snapshot.
func New(config Config) *Server {
	server := &Server{
		metrics: config.Metrics,
		clock:   config.Clock,
		logger:  config.Logger,
	}
	if server.clock == nil {
		server.clock = clock.Real()
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	server.snapshot.Store(&Snapshot{Active: []eventdb.Summary{}, Archived: []eventdb.Summary{}})

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(10 * time.Second))
	router.Get("/healthz", server.handleHealth)
	if server.metrics != nil {
		router.Method(http.MethodGet, "/metrics", server.metrics.Handler())
	}
	router.Route("/events", func(r chi.Router) {
		r.Get("/", server.handleList)
		r.Get("/{eventID}", server.handleEvent)
	})
	server.router = router
	return server
}

// Observe publishes a new snapshot.
func (s *Server) Observe(active, archived []eventdb.Summary) {
	if active == nil {
		active = []eventdb.Summary{}
	}
	if archived == nil {
		archived = []eventdb.Summary{}
	}
	s.snapshot.Store(&Snapshot{Active: active, Archived: archived, Generated: s.clock.Now()})
}

// Snapshot returns the current snapshot.
func (s *Server) Snapshot() *Snapshot { return s.snapshot.Load() }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("statusapi: listening on %s: %w", address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("status api listening", "address", listener.Addr().String())
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("statusapi: %w", err)
	}
	return <-done
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Warn("writing status response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.snapshot.Load()
	response := map[string]any{
		"status": "ok",
		"active": len(snapshot.Active),
	}
	if !snapshot.Generated.IsZero() {
		response["snapshot_age_seconds"] = int64(s.clock.Now().Sub(snapshot.Generated) / time.Second)
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	snapshot := s.snapshot.Load()
	archived, err := strconv.ParseBool(r.URL.Query().Get("archived"))
	if err != nil && r.URL.Query().Has("archived") {
		s.writeError(w, http.StatusBadRequest, "archived must be a boolean")
		return
	}
	if archived {
		s.writeJSON(w, http.StatusOK, snapshot.Archived)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot.Active)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "eventID"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "event id must be an integer")
		return
	}
	snapshot := s.snapshot.Load()
	for _, collection := range [][]eventdb.Summary{snapshot.Active, snapshot.Archived} {
		for _, summary := range collection {
			if summary.ID == id {
				s.writeJSON(w, http.StatusOK, summary)
				return
			}
		}
	}
	s.writeError(w, http.StatusNotFound, fmt.Sprintf("event %d not found", id))
}
