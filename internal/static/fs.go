// CLASSIFICATION: COMMUNITY
// Filename: fs.go v0.1
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrIsDir is returned by OSFS when asked to open a directory.
var ErrIsDir = errors.New("is a directory")

// Canonicalizer resolves a path to its absolute, symlink free form. It must
// fail when the path does not exist.
type Canonicalizer interface {
	Canonicalize(ctx context.Context, path string) (string, error)
}

// Opener opens the file at a canonical path and reports its length in bytes.
type Opener interface {
	Open(ctx context.Context, path string) (int64, io.ReadCloser, error)
}

// FS bundles both strategies a DirServer needs.
type FS interface {
	Canonicalizer
	Opener
}

// CanonicalizeFunc adapts a function to the Canonicalizer interface.
type CanonicalizeFunc func(ctx context.Context, path string) (string, error)

func (fn CanonicalizeFunc) Canonicalize(ctx context.Context, path string) (string, error) {
	return fn(ctx, path)
}

// OpenFunc adapts a function to the Opener interface.
type OpenFunc func(ctx context.Context, path string) (int64, io.ReadCloser, error)

func (fn OpenFunc) Open(ctx context.Context, path string) (int64, io.ReadCloser, error) {
	return fn(ctx, path)
}

// OSFS is the FS backed by the host filesystem.
type OSFS struct{}

// Canonicalize resolves symlinks and parent references against the real
// filesystem. Relative paths are anchored at the working directory without
// being cleaned first, so "link/.." follows link before stepping back.
func (OSFS) Canonicalize(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := filepath.FromSlash(path)
	if !filepath.IsAbs(p) {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		p = wd + string(filepath.Separator) + p
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(resolved), nil
}

// Open opens a regular file for reading. Directories are refused.
func (OSFS) Open(ctx context.Context, path string) (int64, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	f, err := os.Open(filepath.FromSlash(path))
	if err != nil {
		return 0, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, nil, err
	}
	if info.IsDir() {
		f.Close()
		return 0, nil, fmt.Errorf("open %s: %w", path, ErrIsDir)
	}
	return info.Size(), f, nil
}
