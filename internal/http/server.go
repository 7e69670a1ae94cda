// CLASSIFICATION: COMMUNITY
// Filename: server.go v0.2
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"servedir/internal/health"
	"servedir/internal/static"
	"servedir/internal/watch"
)

// Server wraps the HTTP server and router.
type Server struct {
	cfg       Config
	router    *chi.Mux
	start     time.Time
	log       Logger
	metrics   *metrics
	limiter   *limiterStore
	health    *health.Reporter
	accessLog *os.File
}

// New returns an initialized server. No filesystem access happens for the
// mounts themselves; only the access log is opened.
func New(cfg Config) (*Server, error) {
	mounts, err := normalizeMounts(cfg.Mounts)
	if err != nil {
		return nil, err
	}
	cfg.Mounts = mounts
	if cfg.FS == nil {
		cfg.FS = static.OSFS{}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:     cfg,
		start:   time.Now(),
		log:     cfg.Logger,
		metrics: &metrics{},
	}
	if s.log == nil {
		s.log = log.Default()
	}

	prefixes := make([]string, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		prefixes = append(prefixes, m.Prefix)
	}
	s.health = health.NewReporter(prefixes...)

	if cfg.AccessLog != "" {
		f, err := os.OpenFile(cfg.AccessLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.log.Printf("open log: %v", err)
		} else {
			s.accessLog = f
		}
	}
	if cfg.RateLimit > 0 {
		s.limiter = newLimiterStore(cfg.RateLimit, cfg.RateBurst)
	}
	s.router = s.routes()
	return s, nil
}

// normalizeMounts returns a copy of mounts with normalized prefixes. Empty
// prefixes or roots and duplicate prefixes are rejected.
func normalizeMounts(mounts []static.Mount) ([]static.Mount, error) {
	if len(mounts) == 0 {
		return nil, errors.New("no mounts configured")
	}
	out := make([]static.Mount, 0, len(mounts))
	seen := make(map[string]bool, len(mounts))
	for i, m := range mounts {
		if strings.TrimSpace(m.Prefix) == "" {
			return nil, fmt.Errorf("mount %d: prefix required", i)
		}
		m.Prefix = static.NormalizePrefix(m.Prefix)
		if strings.TrimSpace(m.Root) == "" {
			return nil, fmt.Errorf("mount %s: root required", m.Prefix)
		}
		if seen[m.Prefix] {
			return nil, fmt.Errorf("mount %s: duplicate prefix", m.Prefix)
		}
		seen[m.Prefix] = true
		out = append(out, m)
	}
	return out, nil
}

// Router returns the underlying router, useful for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Health returns the reporter tracking each mount.
func (s *Server) Health() *health.Reporter {
	return s.health
}

// Addr returns the configured listening address.
func (s *Server) Addr() string {
	return s.cfg.Listen
}

// Start listens on the configured addresses and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln, plus the health endpoint and root
// watcher when configured. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.closeAccessLog()

	var healthLn net.Listener
	if s.cfg.HealthListen != "" {
		var err error
		healthLn, err = net.Listen("tcp", s.cfg.HealthListen)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen %s: %w", s.cfg.HealthListen, err)
		}
	}
	var watcher *watch.Watcher
	if s.cfg.Watch {
		var err error
		watcher, err = watch.New(s.cfg.Mounts, s.log, s.health.SetServing)
		if err != nil {
			ln.Close()
			if healthLn != nil {
				healthLn.Close()
			}
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.log.Printf("Server is listening on: http://%s", ln.Addr())

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		ctxTo, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctxTo)
	})
	if healthLn != nil {
		s.log.Printf("Health service listening on: %s", healthLn.Addr())
		g.Go(func() error { return health.Serve(ctx, healthLn, s.health) })
	}
	if watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}
	if s.limiter != nil {
		g.Go(func() error {
			s.limiter.cleanupLoop(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (s *Server) closeAccessLog() {
	if s.accessLog != nil {
		s.accessLog.Close()
	}
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"requests_total":     s.metrics.requests.Load(),
		"start_time_seconds": s.start.Unix(),
		"served_total":       s.metrics.served.Load(),
		"not_found_total":    s.metrics.notFound.Load(),
		"server_error_total": s.metrics.serverError.Load(),
		"rate_limited_total": s.metrics.rateLimited.Load(),
		"abandoned_total":    s.metrics.abandoned.Load(),
		"mounts":             len(s.cfg.Mounts),
	}
	if s.limiter != nil {
		resp["rate_limit_per_second"] = float64(s.limiter.limit)
		resp["rate_limit_burst"] = s.limiter.burst
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
