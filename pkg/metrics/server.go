package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Endpoint is an extra route served beside /metrics, typically a health
// check for processes that have no API listener of their own.
type Endpoint struct {
	Path    string
	Handler http.Handler
}

// Server exposes the default Prometheus registry on its own port.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func NewServer(port int, extra ...Endpoint) *Server {
	paths := []string{"/metrics"}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	for _, e := range extra {
		mux.Handle("GET "+e.Path, e.Handler)
		paths = append(paths, e.Path)
	}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string][]string{"endpoints": paths})
	})

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		logger: slog.Default().With("component", "metrics-server"),
	}
}

// Handler returns the routing table, for mounting elsewhere or testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx ends and then shuts down, giving scrapes in flight
// a few seconds to finish.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}
