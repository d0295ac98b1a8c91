// Package web exposes the atlas explorer over HTTP: the chat endpoints
// (message submission, SSE streaming, history, status) and the atlas data
// endpoints (tree, nodes, programs, figures, stats, gene search).
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:12534"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to shed slow-header clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading an entire request.
	ReadTimeout = 30 * time.Second

	// IdleTimeout applies between keep-alive requests.
	IdleTimeout = 120 * time.Second

	// No WriteTimeout: SSE responses stay open for the duration of a chat
	// response and must not be cut off by the server.
)

// Server is the HTTP server tying the handlers together.
type Server struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

// NewServer registers all routes. Either handler may be nil, which skips its
// routes (e.g. a data-only deployment without chat).
func NewServer(chatHandler *ChatHandler, atlasHandler *AtlasHandler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	if chatHandler != nil {
		chatHandler.RegisterRoutes(mux)
	}
	if atlasHandler != nil {
		atlasHandler.RegisterRoutes(mux)
	}
	return &Server{mux: mux, logger: logger}
}

// Handler returns the routed handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger))
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
