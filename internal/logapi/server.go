// Package logapi exposes the log query surface over HTTP: DSL queries,
// facet listings, and hourly volume stats. It is a thin JSON layer; all
// filtering semantics live in the dsl and logdb packages.
package logapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"orion/internal/logdb"
	"orion/internal/logger"
)

// Store is the read side of the log database. *logdb.Store satisfies it.
type Store interface {
	QueryWhere(ctx context.Context, where string, params []any, limit int) ([]logdb.Record, error)
	Distinct(ctx context.Context, column string) ([]string, error)
	EventRunIDs(ctx context.Context) ([]string, error)
	HourlyStats(ctx context.Context) ([]logdb.HourBucket, error)
}

type Config struct {
	Enabled bool
	Addr    string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8480"
	}
	return c
}

// Server manages the listener lifecycle for the query API.
type Server struct {
	mu    sync.Mutex
	log   logger.Facade
	store Store
	srv   *http.Server
	ln    net.Listener
	addr  string
}

func New(store Store, log logger.Facade) *Server {
	return &Server{store: store, log: log}
}

// Apply starts or stops the server according to cfg.
func (s *Server) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled {
		s.stopLocked(ctx)
		return
	}
	if s.srv != nil && s.addr == cfg.Addr {
		return
	}
	s.stopLocked(ctx)
	s.startLocked(ctx, cfg)
}

func (s *Server) startLocked(ctx context.Context, cfg Config) {
	srv := &http.Server{Addr: cfg.Addr, Handler: newMux(s.store)}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		s.log.Warn(ctx, "log api listen failed: "+err.Error())
		return
	}

	s.srv = srv
	s.ln = ln
	s.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(context.Background(), "log api server error: "+err.Error())
		}
	}()
	s.log.Info(ctx, "log api listening on "+s.addr)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.addr = ""

	shutdownCtx := ctx
	if shutdownCtx == nil {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	_ = srv.Shutdown(shutdownCtx)
}
