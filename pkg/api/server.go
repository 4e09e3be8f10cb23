package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
}

func NewServer(log *zap.Logger, handler *Handler, address string) *Server {
	return &Server{
		logger: log,
		httpServer: &http.Server{
			Addr:              address,
			Handler:           handler.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until Shutdown is called or the listener fails.
func (s *Server) Run() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("multisigd quit")
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
