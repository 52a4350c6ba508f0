// SearchSync - Film Catalog CDC Search Indexing Pipeline
// Copyright 2026 OpenKino contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/openkino/searchsync

package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openkino/searchsync/internal/config"
	"github.com/openkino/searchsync/internal/logging"
)

// ReadyChecker reports whether a downstream dependency is reachable.
type ReadyChecker func(ctx context.Context) error

// Server is the operational HTTP endpoint: liveness, readiness and
// Prometheus metrics. It is not a data API; the pipeline has none.
// Implements suture.Service.
type Server struct {
	cfg    config.OpsConfig
	checks map[string]ReadyChecker
}

// NewServer builds the ops server. checks maps dependency name to its
// readiness probe; a nil map means /readyz always succeeds.
func NewServer(cfg config.OpsConfig, checks map[string]ReadyChecker) *Server {
	return &Server{cfg: cfg, checks: checks}
}

// Router assembles the ops routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Serve runs the HTTP listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) String() string { return "api.Server" }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz probes every registered dependency. Any failure returns
// 503 with the failing dependencies named.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := make([]string, 0)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			logging.Warn().Err(err).Str("dependency", name).Msg("readiness probe failed")
			failed = append(failed, name)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if len(failed) > 0 {
		sort.Strings(failed)
		w.WriteHeader(http.StatusServiceUnavailable)
		body := `{"status":"unavailable","failed":[`
		for i, name := range failed {
			if i > 0 {
				body += ","
			}
			body += `"` + name + `"`
		}
		body += `]}`
		_, _ = w.Write([]byte(body))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
