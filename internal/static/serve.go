// CLASSIFICATION: COMMUNITY
// Filename: serve.go v0.3
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

// Package static serves the files below a directory under a URL prefix.
//
// A DirServer joins the request path onto its root, resolves the result
// through a Canonicalizer and only opens it when the canonical path still
// lies below the joined path's components. Missing files and escapes both
// answer 404 so that callers cannot probe what exists outside the root.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrNotFound reports a target that could not be canonicalized.
	ErrNotFound = errors.New("file not found")
	// ErrEscape reports a target whose canonical path left the root.
	ErrEscape = errors.New("path escapes root")
)

// StatusClientClosedRequest is written when the request context ends
// before a response exists. Nothing reaches the client; the status only
// shows up in access logs and metrics.
const StatusClientClosedRequest = 499

// Logger abstracts logging for the directory server.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Mount binds a URL prefix to a directory.
type Mount struct {
	Prefix string `yaml:"prefix" json:"prefix"`
	Root   string `yaml:"root" json:"root"`
}

// Option configures a DirServer.
type Option func(*DirServer)

// WithLogger routes diagnostics to log.
func WithLogger(log Logger) Option {
	return func(s *DirServer) {
		if log != nil {
			s.log = log
		}
	}
}

// WithBufferSize sets the read buffer used when streaming a file.
func WithBufferSize(size int) Option {
	return func(s *DirServer) {
		if size > 0 {
			s.bufSize = size
		}
	}
}

// DirServer serves files below root for requests under prefix. It holds no
// mutable state and may be shared by any number of concurrent requests.
type DirServer struct {
	prefix       string
	root         string
	canonicalize Canonicalizer
	open         Opener
	log          Logger
	bufSize      int
}

// Serve returns an endpoint serving root under prefix. The root is not
// touched until the first request.
func Serve(prefix, root string, canonicalize Canonicalizer, open Opener, opts ...Option) *DirServer {
	s := &DirServer{
		prefix:       prefix,
		root:         root,
		canonicalize: canonicalize,
		open:         open,
		log:          nopLogger{},
		bufSize:      defaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New is Serve with both strategies taken from fsys.
func New(prefix, root string, fsys FS, opts ...Option) *DirServer {
	return Serve(prefix, root, fsys, fsys, opts...)
}

// Prefix returns the URL prefix the server was built with.
func (s *DirServer) Prefix() string { return s.prefix }

// Root returns the directory the server was built with.
func (s *DirServer) Root() string { return s.root }

// Candidate returns the path urlPath maps to before canonicalization.
func (s *DirServer) Candidate(urlPath string) string {
	return JoinComponents(s.root, stripPrefix(urlPath, s.prefix))
}

// Resolve maps urlPath to a canonical path below the root. It fails with
// ErrNotFound when the target cannot be canonicalized and ErrEscape when its
// canonical form is not contained in the candidate path.
func (s *DirServer) Resolve(ctx context.Context, urlPath string) (string, error) {
	candidate := s.Candidate(urlPath)
	s.log.Printf("Requested file: %s", candidate)

	canonical, err := s.canonicalize.Canonicalize(ctx, candidate)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%s: %w: %v", candidate, ErrNotFound, err)
	}
	if !Contains(candidate, canonical) {
		return canonical, fmt.Errorf("%s: %w", canonical, ErrEscape)
	}
	return canonical, nil
}

// Response is the outcome of a single request. Body is only set for
// http.StatusOK and yields exactly Length bytes; the caller must close it.
type Response struct {
	Status int
	Length int64
	Body   io.ReadCloser
}

// Call handles one request for urlPath. Filesystem failures are reported
// through the response status; an error is only returned when ctx ends
// before a response exists.
func (s *DirServer) Call(ctx context.Context, urlPath string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	canonical, err := s.Resolve(ctx, urlPath)
	switch {
	case errors.Is(err, ErrNotFound):
		s.log.Printf("File not found: %v", err)
		return &Response{Status: http.StatusNotFound}, nil
	case errors.Is(err, ErrEscape):
		s.log.Printf("Unauthorized attempt to read: %s", canonical)
		return &Response{Status: http.StatusNotFound}, nil
	case err != nil:
		return nil, err
	}

	n, rc, err := s.open.Open(ctx, canonical)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.Printf("Could not open %s: %v", canonical, err)
		return &Response{Status: http.StatusInternalServerError}, nil
	}
	if err := ctx.Err(); err != nil {
		rc.Close()
		return nil, err
	}
	return &Response{
		Status: http.StatusOK,
		Length: n,
		Body:   newBody(ctx, rc, n, s.bufSize),
	}, nil
}

// ServeHTTP adapts Call to net/http.
func (s *DirServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Call(r.Context(), r.URL.Path)
	if err != nil {
		s.log.Printf("Request for %s abandoned: %v", r.URL.Path, err)
		w.WriteHeader(StatusClientClosedRequest)
		return
	}
	if _, err := resp.write(w, r.Method != http.MethodHead); err != nil {
		s.log.Printf("Could not stream %s: %v", r.URL.Path, err)
	}
}

// write sends resp to w and releases its body. Non-OK statuses carry the
// standard status text so equal statuses produce equal bytes.
func (resp *Response) write(w http.ResponseWriter, withBody bool) (int64, error) {
	if resp.Body == nil {
		http.Error(w, http.StatusText(resp.Status), resp.Status)
		return 0, nil
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Length", fmt.Sprint(resp.Length))
	w.WriteHeader(resp.Status)
	if !withBody {
		return 0, nil
	}
	return io.CopyN(w, resp.Body, resp.Length)
}
