package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ecomax360/internal/logging"
	"github.com/muurk/ecomax360/internal/poller"
)

// Config holds the server configuration
type Config struct {
	Listen   string // Address to listen on, e.g. ":8080"
	CertPath string // Serve TLS when both CertPath and KeyPath are set
	KeyPath  string
}

// Source provides the cached readings. *poller.Poller implements it.
type Source interface {
	Snapshots() []poller.Snapshot
	Latest(name string) (poller.Snapshot, bool)
	Refresh(ctx context.Context, name string) poller.Snapshot
}

// Writer carries out write requests. *ecomax.Client implements it.
type Writer interface {
	SetPreset(ctx context.Context, preset string) error
	SetSetpoint(ctx context.Context, night bool, celsius float64) error
	SetTargetTemperature(ctx context.Context, celsius float64) (string, error)
}

// Server exposes readings over HTTP and streams them over WebSocket
type Server struct {
	config    *Config
	source    Source
	writer    Writer
	hub       *Hub
	tlsConfig *tls.Config

	// AfterWrite runs in the background after a successful write
	AfterWrite func(ctx context.Context)

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
}

// New creates a new Server instance
func New(config *Config, source Source, writer Writer) (*Server, error) {
	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	return &Server{
		config:    config,
		source:    source,
		writer:    writer,
		hub:       NewHub(),
		tlsConfig: tlsConfig,
	}, nil
}

// Publish forwards a snapshot to WebSocket clients. It implements
// poller.Sink.
func (s *Server) Publish(snap poller.Snapshot) {
	s.hub.Broadcast(snap)
}

// Addr returns the bound listen address once Run has started
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run serves until ctx is done, then shuts down
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = srv
	s.mu.Unlock()

	logging.Info("Server listening for connections",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	// Hijacked WebSocket connections are not tracked by http.Server
	s.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// GetActiveConnections returns the number of WebSocket clients
func (s *Server) GetActiveConnections() int {
	return s.hub.Count()
}

// afterWrite schedules the AfterWrite hook
func (s *Server) afterWrite(ctx context.Context) {
	if s.AfterWrite == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.AfterWrite(context.WithoutCancel(ctx))
	}()
}
