// CLASSIFICATION: COMMUNITY
// Filename: middleware.go v0.2
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"servedir/internal/static"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func recoverMiddleware(log Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("panic serving %s: %v", r.URL.Path, rec)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// metrics counts responses by outcome.
type metrics struct {
	requests    atomic.Int64
	served      atomic.Int64
	notFound    atomic.Int64
	serverError atomic.Int64
	rateLimited atomic.Int64
	abandoned   atomic.Int64
}

func (m *metrics) record(status int) {
	m.requests.Add(1)
	switch {
	case status == http.StatusTooManyRequests:
		m.rateLimited.Add(1)
	case status == static.StatusClientClosedRequest:
		m.abandoned.Add(1)
	case status == http.StatusNotFound:
		m.notFound.Add(1)
	case status >= 500:
		m.serverError.Add(1)
	case status >= 200 && status < 400:
		m.served.Add(1)
	}
}

// observe records the outcome of every request and writes an access log
// line when out is set.
func observe(m *metrics, out io.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				m.record(status)
				if out != nil {
					fmt.Fprintf(out, "%s %s %s %d %d %s %s\n",
						r.RemoteAddr, r.Method, r.URL.Path, status, ww.BytesWritten(),
						time.Since(start).Round(time.Microsecond), RequestID(r.Context()))
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
