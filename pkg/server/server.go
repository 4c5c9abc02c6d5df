package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"zapmenu/pkg/logger"
	"zapmenu/pkg/observability"
)

// StatusSource reports the live counters surfaced on the health endpoint.
type StatusSource interface {
	ActiveSessions() int
	TransportOnline() bool
}

// Server is the operational HTTP surface: a health endpoint for probes and
// the Prometheus scrape endpoint. It carries no bot functionality.
type Server struct {
	httpServer *http.Server
	status     StatusSource
	startedAt  time.Time
}

func NewServer(host string, port int, status StatusSource) *Server {
	s := &Server{
		status:    status,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":          "ok",
		"uptime_sec":      int(time.Since(s.startedAt).Seconds()),
		"transport":       "offline",
		"active_sessions": 0,
	}
	if s.status != nil {
		resp["active_sessions"] = s.status.ActiveSessions()
		if s.status.TransportOnline() {
			resp["transport"] = "online"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.WarnCF("server", "Failed to write health response", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("server", "Gateway listening", map[string]interface{}{
			"addr": s.httpServer.Addr,
		})
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.InfoC("server", "Gateway stopped")
	return <-errCh
}
