package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"db-local-sync/internal/config"
	"db-local-sync/internal/logger"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	http *http.Server
}

func NewServer(cfg config.ServerConfig, h *Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      h.Routes(),
			ReadTimeout:  cfg.GetReadTimeout(),
			WriteTimeout: cfg.GetWriteTimeout(),
		},
	}
}

func (s *Server) Addr() string {
	return s.http.Addr
}

// Start serves in the background. A listener failure is reported on the
// returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		logger.Log.Info("Server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Log.Info("Shutting down server...")
	return s.http.Shutdown(ctx)
}
