// Package http exposes a read-mostly status API for a training run.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cartridge/acs2her/internal/agent"
	"github.com/cartridge/acs2her/internal/metrics"
	"github.com/cartridge/acs2her/internal/middleware"
	"github.com/cartridge/acs2her/internal/replay"
)

// Server wires HTTP handlers to the metrics collector and replay memory.
type Server struct {
	collector *metrics.Collector
	memory    replay.Backend
	logger    zerolog.Logger
	started   time.Time
}

// NewServer constructs a Server instance.
func NewServer(collector *metrics.Collector, memory replay.Backend, logger zerolog.Logger) *Server {
	return &Server{
		collector: collector,
		memory:    memory,
		logger:    logger,
		started:   time.Now(),
	}
}

// Routes builds the HTTP router for the status API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(s.logger, s.collector))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/metrics", s.handleSummary)
		r.Get("/metrics/trials", s.handleTrials)
		r.Get("/replay/stats", s.handleReplayStats)
		r.Delete("/replay", s.handleReplayClear)
	})
	return r
}

// ListenAndServe serves Routes on addr until ctx is cancelled, then shuts
// down gracefully within grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("status HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	s.logger.Info().Msg("status HTTP server stopped")
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]metrics.Summary{
		agent.ModeExplore.String(): s.collector.Summarize(agent.ModeExplore),
		agent.ModeExploit.String(): s.collector.Summarize(agent.ModeExploit),
	})
}

func (s *Server) handleTrials(w http.ResponseWriter, r *http.Request) {
	var mode *agent.Mode
	switch q := r.URL.Query().Get("mode"); q {
	case "":
	case agent.ModeExplore.String():
		m := agent.ModeExplore
		mode = &m
	case agent.ModeExploit.String():
		m := agent.ModeExploit
		mode = &m
	default:
		s.writeError(w, r, http.StatusBadRequest, "mode must be explore or exploit")
		return
	}
	s.writeJSON(w, http.StatusOK, s.collector.Trials(mode))
}

func (s *Server) handleReplayStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.memory.GetStats(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReplayClear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var before *time.Time
	if v := q.Get("before"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "before must be an RFC3339 timestamp")
			return
		}
		before = &ts
	}

	keepLastN := 0
	if v := q.Get("keep_last_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, http.StatusBadRequest, "keep_last_n must be a non-negative integer")
			return
		}
		keepLastN = n
	}

	cleared, err := s.memory.Clear(r.Context(), q.Get("trial_id"), before, keepLastN)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"cleared": cleared})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error":          message,
		"correlation_id": middleware.CorrelationIDFrom(r.Context()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
