// Package api exposes the VisaFlow HTTP surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/OpenVisa/VisaFlow/internal/flow"
	"github.com/OpenVisa/VisaFlow/internal/genai"
	"github.com/OpenVisa/VisaFlow/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Server timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Opts holds API server configuration.
type Opts struct {
	addr string
}

// Option configures API server options.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.addr = addr }
}

// Server wires the conversation flow and store behind HTTP handlers.
type Server struct {
	st   store.Store
	flow *flow.ConversationFlow
	srv  *http.Server
}

// NewServer constructs a server over the given store and conversation flow.
func NewServer(st store.Store, convFlow *flow.ConversationFlow, opts ...Option) *Server {
	cfg := Opts{addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{st: st, flow: convFlow}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/summary/{sessionID}", s.handleSummary)
	mux.HandleFunc("POST /api/session/{sessionID}/reset", s.handleReset)
	mux.HandleFunc("GET /api/forms", s.handleListForms)
	mux.HandleFunc("POST /api/forms", s.handleCreateForm)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	s.srv = &http.Server{
		Addr:              cfg.addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Run builds the store, reasoning client, and flow from the given options and
// serves HTTP until ctx is canceled. The DSN decides the backend: a postgres
// URL selects Postgres, anything else is treated as a SQLite path, and an
// empty DSN runs in memory.
func Run(ctx context.Context, storeOpts []store.Option, genaiOpts []genai.Option, flowOpts []flow.Option, apiOpts []Option) error {
	st, err := openStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			slog.Error("Run: failed to close store", "error", cerr)
		}
	}()

	genaiClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to create reasoning client: %w", err)
	}

	server := NewServer(st, flow.NewConversationFlow(st, genaiClient, flowOpts...), apiOpts...)
	return server.Serve(ctx)
}

// Serve runs the HTTP server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Serve: listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Server.Serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	}
}

// Handler exposes the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func openStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Info("openStore: no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	case isPostgresDSN(cfg.DSN):
		return store.NewPostgresStore(storeOpts...)
	default:
		return store.NewSQLiteStore(storeOpts...)
	}
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// hostnameOr returns the machine hostname for health reporting.
func hostnameOr(fallback string) string {
	name, err := os.Hostname()
	if err != nil {
		return fallback
	}
	return name
}
