package server

import (
	"context"
	"net/http"
	"time"

	"coursehub/internal/common/logging"
)

// Server wraps the HTTP listener with lifecycle management.
type Server struct {
	srv    *http.Server
	logger logging.Logger
	errs   chan error
}

// New creates a server for the given handler.
func New(handler http.Handler, port string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
		errs:   make(chan error, 1),
	}
}

// Start begins serving in the background. Listener failures are reported
// on Errors.
func (s *Server) Start() {
	s.logger.Info("HTTP server listening",
		logging.Field{Key: "addr", Value: s.srv.Addr})

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.errs <- err
		}
	}()
}

// Errors reports a fatal listener error, if one occurred.
func (s *Server) Errors() <-chan error {
	return s.errs
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
