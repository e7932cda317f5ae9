// Package server serves the current metamodel over HTTP for inspection
// tools and streams rebuild events to them.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/conduit-lang/apiextractor/internal/watch"
)

// Config holds server configuration
type Config struct {
	// Address is the listen address (e.g., "localhost:7070")
	Address string

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds the graceful shutdown once the context ends.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the configuration used by the serve command.
func DefaultConfig(address string) *Config {
	return &Config{
		Address:           address,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Server is the inspection HTTP server.
type Server struct {
	config     *Config
	store      *Store
	hub        *watch.Hub
	logger     *zap.Logger
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server over store. hub may be nil, in which case /events is
// not routed.
func New(config *Config, store *Store, hub *watch.Hub, logger *zap.Logger) (*Server, error) {
	if config == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		store:  store,
		hub:    hub,
		logger: logger,
	}
	// No read or write timeout: /events connections live as long as the
	// client stays.
	s.httpServer = &http.Server{
		Addr:              config.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	h := &handlers{store: s.store}
	r.Get("/healthz", h.health)
	r.Get("/metamodel", h.metamodel)
	r.Get("/classes", h.classes)
	r.Get("/classes/{name}", h.class)
	r.Get("/rejections", h.rejections)
	if s.hub != nil {
		r.Get("/events", s.hub.HandleWebSocket)
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// Listen binds the listen address. It is split from Serve so callers can
// learn the bound address of ":0" before serving.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener
	return nil
}

// Serve serves until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(s.listener)
	}()
	s.logger.Info("serving metamodel", zap.String("addr", s.Addr()))

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run is Listen followed by Serve.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Addr returns the server's network address
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}
