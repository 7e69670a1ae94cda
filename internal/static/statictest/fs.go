// CLASSIFICATION: COMMUNITY
// Filename: fs.go v0.1
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

// Package statictest provides an in-memory filesystem implementing
// static.FS, with symlinks and injectable failures.
package statictest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"

	"servedir/internal/static"
)

const maxSymlinks = 40

var errTooManyLinks = errors.New("too many levels of symbolic links")

type node struct {
	dir  bool
	data []byte
	link string
}

// FS is a fake filesystem rooted at "/". The zero value is not usable; call
// New.
type FS struct {
	mu       sync.RWMutex
	nodes    map[string]*node
	openErrs map[string]error
	canonErr map[string]error
	open     atomic.Int64
	opened   atomic.Int64
}

var _ static.FS = (*FS)(nil)

// New returns an empty filesystem holding only the root directory.
func New() *FS {
	return &FS{
		nodes:    map[string]*node{"/": {dir: true}},
		openErrs: make(map[string]error),
		canonErr: make(map[string]error),
	}
}

// Mkdir creates path and any missing parents.
func (f *FS) Mkdir(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirAll(path)
}

// WriteFile creates or replaces a regular file, creating parents.
func (f *FS) WriteFile(path, data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirAll(parent(path))
	f.nodes[clean(path)] = &node{data: []byte(data)}
}

// Symlink creates a symbolic link at path pointing to target.
func (f *FS) Symlink(target, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mkdirAll(parent(path))
	f.nodes[clean(path)] = &node{link: target}
}

// Remove deletes path and everything below it.
func (f *FS) Remove(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := clean(path)
	for name := range f.nodes {
		if name == p || strings.HasPrefix(name, p+"/") {
			delete(f.nodes, name)
		}
	}
}

// FailOpen makes Open of the canonical path fail with err.
func (f *FS) FailOpen(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErrs[clean(path)] = err
}

// FailCanonicalize makes Canonicalize of path fail with err.
func (f *FS) FailCanonicalize(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canonErr[path] = err
}

// OpenFiles returns the number of handles opened and not yet closed.
func (f *FS) OpenFiles() int64 { return f.open.Load() }

// Opened returns the number of successful Open calls.
func (f *FS) Opened() int64 { return f.opened.Load() }

// Canonicalize resolves path the way realpath(3) does: components are
// walked left to right, symlinks are expanded as they are met and ".."
// steps back from the resolved prefix.
func (f *FS) Canonicalize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err, ok := f.canonErr[path]; ok {
		return "", err
	}
	if !strings.HasPrefix(path, "/") {
		return "", &fs.PathError{Op: "canonicalize", Path: path, Err: fs.ErrInvalid}
	}

	resolved := []string{}
	pending := splitPath(path)
	links := 0
	for len(pending) > 0 {
		elem := pending[0]
		pending = pending[1:]
		switch elem {
		case ".":
			continue
		case "..":
			if len(resolved) > 0 {
				resolved = resolved[:len(resolved)-1]
			}
			continue
		}

		dir := join(resolved)
		if n := f.nodes[dir]; n == nil || !n.dir {
			return "", &fs.PathError{Op: "canonicalize", Path: path, Err: errNotDir(dir)}
		}
		next := append(append([]string{}, resolved...), elem)
		n, ok := f.nodes[join(next)]
		if !ok {
			return "", &fs.PathError{Op: "canonicalize", Path: path, Err: fs.ErrNotExist}
		}
		if n.link == "" {
			resolved = next
			continue
		}
		if links++; links > maxSymlinks {
			return "", &fs.PathError{Op: "canonicalize", Path: path, Err: errTooManyLinks}
		}
		if strings.HasPrefix(n.link, "/") {
			resolved = resolved[:0]
		}
		pending = append(splitPath(n.link), pending...)
	}
	return join(resolved), nil
}

// Open returns the content of a regular file at a canonical path.
func (f *FS) Open(ctx context.Context, path string) (int64, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	p := clean(path)
	if err, ok := f.openErrs[p]; ok {
		return 0, nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	n, ok := f.nodes[p]
	switch {
	case !ok:
		return 0, nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	case n.dir:
		return 0, nil, &fs.PathError{Op: "open", Path: path, Err: static.ErrIsDir}
	case n.link != "":
		return 0, nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrInvalid}
	}
	f.open.Add(1)
	f.opened.Add(1)
	return int64(len(n.data)), &file{Reader: bytes.NewReader(n.data), fs: f}, nil
}

type file struct {
	*bytes.Reader
	fs     *FS
	closed atomic.Bool
}

func (fl *file) Close() error {
	if fl.closed.CompareAndSwap(false, true) {
		fl.fs.open.Add(-1)
	}
	return nil
}

// mkdirAll expects f.mu to be held.
func (f *FS) mkdirAll(path string) {
	elems := splitPath(clean(path))
	for i := range elems {
		p := join(elems[:i+1])
		if _, ok := f.nodes[p]; !ok {
			f.nodes[p] = &node{dir: true}
		}
	}
}

func errNotDir(path string) error {
	return fmt.Errorf("%s: not a directory", path)
}

func splitPath(path string) []string {
	var elems []string
	for _, elem := range strings.Split(path, "/") {
		if elem != "" {
			elems = append(elems, elem)
		}
	}
	return elems
}

func join(elems []string) string {
	return "/" + strings.Join(elems, "/")
}

func clean(path string) string {
	return join(splitPath(path))
}

func parent(path string) string {
	elems := splitPath(path)
	if len(elems) == 0 {
		return "/"
	}
	return join(elems[:len(elems)-1])
}
