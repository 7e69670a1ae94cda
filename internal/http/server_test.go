// CLASSIFICATION: COMMUNITY
// Filename: server_test.go v0.4
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package http_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	orch "servedir/internal/http"
	"servedir/internal/static"
	"servedir/internal/static/statictest"
)

func newTestFS() *statictest.FS {
	fsys := statictest.New()
	fsys.WriteFile("/srv/www/index.html", "<!DOCTYPE html><title>hi</title>")
	fsys.WriteFile("/srv/www/big.txt", strings.Repeat("servedir ", 4096))
	fsys.WriteFile("/etc/passwd", "root:x:0:0")
	fsys.Symlink("/etc/passwd", "/srv/www/escape")
	return fsys
}

func testConfig(fsys static.FS) orch.Config {
	return orch.Config{
		Listen: "127.0.0.1:0",
		Mounts: []static.Mount{{Prefix: "/src", Root: "/srv/www"}},
		FS:     fsys,
		Logger: log.New(io.Discard, "", 0),
	}
}

func newRouter(t *testing.T, cfg orch.Config) http.Handler {
	t.Helper()
	srv, err := orch.New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Router()
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decodeMetrics(t *testing.T, h http.Handler) map[string]any {
	t.Helper()
	rec := serve(h, http.MethodGet, "/api/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	var m map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestNewRequiresMounts(t *testing.T) {
	cfg := testConfig(newTestFS())
	cfg.Mounts = nil
	if _, err := orch.New(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewNormalizesPrefixes(t *testing.T) {
	for _, prefix := range []string{"src", "/src/", " src// "} {
		cfg := testConfig(newTestFS())
		cfg.Mounts = []static.Mount{{Prefix: prefix, Root: "/srv/www"}}
		router := newRouter(t, cfg)
		if rec := serve(router, http.MethodGet, "/src/index.html"); rec.Code != http.StatusOK {
			t.Fatalf("prefix %q: expected 200, got %d", prefix, rec.Code)
		}
	}
}

func TestNewRejectsBadMounts(t *testing.T) {
	tests := map[string][]static.Mount{
		"empty prefix":     {{Prefix: " ", Root: "/srv/www"}},
		"empty root":       {{Prefix: "/src", Root: ""}},
		"duplicate prefix": {{Prefix: "/src", Root: "/srv/www"}, {Prefix: "src/", Root: "/srv/other"}},
	}
	for name, mounts := range tests {
		cfg := testConfig(newTestFS())
		cfg.Mounts = mounts
		if _, err := orch.New(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNewDoesNotModifyMounts(t *testing.T) {
	cfg := testConfig(newTestFS())
	cfg.Mounts = []static.Mount{{Prefix: "src/", Root: "/srv/www"}}
	if _, err := orch.New(cfg); err != nil {
		t.Fatalf("new server: %v", err)
	}
	if cfg.Mounts[0].Prefix != "src/" {
		t.Fatalf("caller mounts modified: %q", cfg.Mounts[0].Prefix)
	}
}

func TestCancelledRequestNotCountedAsServed(t *testing.T) {
	router := newRouter(t, testConfig(newTestFS()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/src/missing.txt", nil).WithContext(ctx))
	if rec.Code != static.StatusClientClosedRequest {
		t.Fatalf("expected %d, got %d", static.StatusClientClosedRequest, rec.Code)
	}

	m := decodeMetrics(t, router)
	if got := m["served_total"].(float64); got != 0 {
		t.Fatalf("served_total: %v", got)
	}
	if got := m["abandoned_total"].(float64); got != 1 {
		t.Fatalf("abandoned_total: %v", got)
	}
}

func TestStaticFileServed(t *testing.T) {
	router := newRouter(t, testConfig(newTestFS()))
	ts := httptest.NewServer(router)
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/src/index.html")
	if err != nil {
		t.Fatalf("get static: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("<!DOCTYPE html>")) {
		t.Fatalf("unexpected body")
	}
	if resp.ContentLength != int64(buf.Len()) {
		t.Fatalf("content length %d, body %d", resp.ContentLength, buf.Len())
	}
	if resp.Header.Get(orch.RequestIDHeader) == "" {
		t.Fatalf("missing request id")
	}
}

func TestTraversalAndEscapeAreNotFound(t *testing.T) {
	router := newRouter(t, testConfig(newTestFS()))
	missing := serve(router, http.MethodGet, "/src/missing.txt")
	for _, path := range []string{"/src/../../../etc/passwd", "/src/escape"} {
		rec := serve(router, http.MethodGet, path)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
		if rec.Body.String() != missing.Body.String() {
			t.Fatalf("%s: body differs from missing file", path)
		}
	}
}

func TestMountPrefixWithoutSlash(t *testing.T) {
	router := newRouter(t, testConfig(newTestFS()))
	// The root directory itself is not a file.
	if rec := serve(router, http.MethodGet, "/src"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHeadRequest(t *testing.T) {
	router := newRouter(t, testConfig(newTestFS()))
	rec := serve(router, http.MethodHead, "/src/index.html")
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("unexpected HEAD response %d (%d bytes)", rec.Code, rec.Body.Len())
	}
}

func TestIndexListsMounts(t *testing.T) {
	router := newRouter(t, testConfig(newTestFS()))
	rec := serve(router, http.MethodGet, "/")
	if rec.Code != http.StatusOK || rec.Body.String() != "visit /src/*\n" {
		t.Fatalf("unexpected index %d %q", rec.Code, rec.Body.String())
	}
}

func TestRootMount(t *testing.T) {
	cfg := testConfig(newTestFS())
	cfg.Mounts = []static.Mount{{Prefix: "/", Root: "/srv/www"}}
	router := newRouter(t, cfg)
	if rec := serve(router, http.MethodGet, "/index.html"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := serve(router, http.MethodGet, "/api/status"); rec.Code != http.StatusOK {
		t.Fatalf("status endpoint shadowed: %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	router := newRouter(t, testConfig(newTestFS()))
	rec := serve(router, http.MethodGet, "/api/status")
	var m map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m["status"] != "ok" || m["uptime"] == nil || m["mounts"] == nil {
		t.Fatalf("missing fields: %v", m)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(t, testConfig(newTestFS()))
	serve(router, http.MethodGet, "/src/index.html")
	serve(router, http.MethodGet, "/src/missing")
	serve(router, http.MethodGet, "/src/escape")

	m := decodeMetrics(t, router)
	keys := []string{"requests_total", "start_time_seconds", "served_total", "not_found_total", "server_error_total", "rate_limited_total", "abandoned_total"}
	for _, key := range keys {
		if _, ok := m[key]; !ok {
			t.Fatalf("missing field %s: %v", key, m)
		}
	}
	if got := m["served_total"].(float64); got != 1 {
		t.Fatalf("served_total: %v", got)
	}
	if got := m["not_found_total"].(float64); got != 2 {
		t.Fatalf("not_found_total: %v", got)
	}
}

func TestOpenFailureIsServerError(t *testing.T) {
	fsys := newTestFS()
	fsys.FailOpen("/srv/www/index.html", os.ErrPermission)
	router := newRouter(t, testConfig(fsys))
	if rec := serve(router, http.MethodGet, "/src/index.html"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decodeMetrics(t, router)["server_error_total"].(float64); got != 1 {
		t.Fatalf("server_error_total: %v", got)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(newTestFS())
	cfg.RateLimit = rate.Every(time.Minute)
	cfg.RateBurst = 1
	router := newRouter(t, cfg)

	if rec := serve(router, http.MethodGet, "/src/index.html"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec := serve(router, http.MethodGet, "/src/index.html")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	m := decodeMetrics(t, router)
	if got := m["rate_limited_total"].(float64); got != 1 {
		t.Fatalf("rate_limited_total: %v", got)
	}
	if got := m["rate_limit_burst"].(float64); got != 1 {
		t.Fatalf("rate_limit_burst: %v", got)
	}
}

func TestCompression(t *testing.T) {
	cfg := testConfig(newTestFS())
	cfg.Compress = true
	router := newRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/src/big.txt", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code: %d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("response not compressed: %v", rec.Header())
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != strings.Repeat("servedir ", 4096) {
		t.Fatalf("unexpected body after decompression")
	}
}

func TestAccessLogging(t *testing.T) {
	cfg := testConfig(newTestFS())
	cfg.AccessLog = filepath.Join(t.TempDir(), "access.log")
	router := newRouter(t, cfg)
	ts := httptest.NewServer(router)
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/src/index.html")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	data, err := os.ReadFile(cfg.AccessLog)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Contains(data, []byte("GET /src/index.html 200")) {
		t.Fatalf("log missing entry: %q", data)
	}
	if !bytes.Contains(data, []byte(resp.Header.Get(orch.RequestIDHeader))) {
		t.Fatalf("log missing request id: %q", data)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	router := newRouter(t, testConfig(newTestFS()))
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set(orch.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if got := rec.Header().Get(orch.RequestIDHeader); got != "abc-123" {
		t.Fatalf("request id %q", got)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	srv, err := orch.New(testConfig(newTestFS()))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv.Router().(*chi.Mux).Get("/panic", func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status code: %d", resp.StatusCode)
	}
}

func TestServerServe(t *testing.T) {
	srv, err := orch.New(testConfig(newTestFS()))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/src/index.html")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code: %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestServerStartWithHealthAndWatch(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := testConfig(static.OSFS{})
	cfg.Mounts = []static.Mount{{Prefix: "/src", Root: root}}
	cfg.HealthListen = "127.0.0.1:0"
	cfg.Watch = true
	srv, err := orch.New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
}
