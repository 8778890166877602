package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/VictorGoic0/SpendSense/internal/platform/logger"
)

// Server wraps the router in an http.Server with graceful drain on shutdown.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

func NewServer(cfg RouterConfig, address string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              address,
			Handler:           NewRouter(cfg),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: cfg.Log,
	}
}

// Run blocks until the listener fails or ctx is cancelled; on cancellation
// in-flight requests get up to 15s to drain.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.log != nil {
		s.log.Info("Shutting down HTTP server...")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
