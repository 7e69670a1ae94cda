// CLASSIFICATION: COMMUNITY
// Filename: routes.go v0.2
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package http

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"servedir/internal/api"
	"servedir/internal/static"
)

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	var out io.Writer
	if s.accessLog != nil {
		out = s.accessLog
	}
	r.Use(requestID)
	r.Use(observe(s.metrics, out))
	r.Use(recoverMiddleware(s.log))

	r.Get("/api/status", api.Status(s.start, s.cfg.Mounts, s.health))
	r.Get("/api/metrics", s.metricsHandler)

	rootMounted := false
	for _, m := range s.cfg.Mounts {
		h := s.mountHandler(m)
		patterns := []string{m.Prefix, m.Prefix + "/*"}
		if m.Prefix == "/" {
			patterns = []string{"/*"}
			rootMounted = true
		}
		for _, p := range patterns {
			r.Method(http.MethodGet, p, h)
			r.Method(http.MethodHead, p, h)
		}
		s.log.Printf("Static: %s -> %s", m.Prefix, m.Root)
	}
	if !rootMounted {
		r.Get("/", api.Index(s.cfg.Mounts))
	}
	return r
}

// mountHandler builds the directory server for m and wraps it with the
// optional compression and rate limiting layers.
func (s *Server) mountHandler(m static.Mount) http.Handler {
	var h http.Handler = static.New(m.Prefix, m.Root, s.cfg.FS, static.WithLogger(s.log))
	if s.cfg.Compress {
		h = gzhttp.GzipHandler(h)
	}
	if s.limiter != nil {
		h = s.limiter.middleware(h)
	}
	return h
}
