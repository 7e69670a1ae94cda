// CLASSIFICATION: COMMUNITY
// Filename: watch.go v0.3
// Author: Lukas Bower
// Date Modified: 2026-10-16
// License: SPDX-License-Identifier: MIT OR Apache-2.0

// Package watch follows the mount roots on disk. Changes below a root are
// logged; a root that disappears is reported as unavailable until it comes
// back.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"servedir/internal/static"
)

// Logger abstracts logging for the watcher.
type Logger interface {
	Printf(format string, v ...any)
}

// NotifyFunc receives availability changes of a mount's root.
type NotifyFunc func(prefix string, available bool)

// Watcher observes mount roots and their parent directories.
type Watcher struct {
	fw     *fsnotify.Watcher
	log    Logger
	notify NotifyFunc

	mu     sync.Mutex
	roots  map[string][]string // root -> prefixes
	status map[string]bool     // root -> available
}

// New starts watching every root in mounts. The current availability of
// each root is reported through notify before New returns.
func New(mounts []static.Mount, log Logger, notify NotifyFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}
	w := &Watcher{
		fw:     fw,
		log:    log,
		notify: notify,
		roots:  make(map[string][]string, len(mounts)),
		status: make(map[string]bool, len(mounts)),
	}
	for _, m := range mounts {
		root := filepath.Clean(filepath.FromSlash(m.Root))
		if _, ok := w.roots[root]; !ok {
			if err := fw.Add(filepath.Dir(root)); err != nil {
				w.log.Printf("watch: cannot watch parent of %s: %v", root, err)
			}
		}
		w.roots[root] = append(w.roots[root], m.Prefix)
	}
	for root := range w.roots {
		w.refresh(root)
	}
	return w, nil
}

// Run dispatches events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fw.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.log.Printf("watch: error %v", err)
		}
	}
}

// Close stops the watcher without waiting for Run.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)
	w.mu.Lock()
	_, isRoot := w.roots[name]
	w.mu.Unlock()
	if isRoot {
		if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			w.refresh(name)
		}
		return
	}
	for _, prefix := range w.mountsOf(name) {
		w.log.Printf("watch: %s %s %s", prefix, ev.Op, name)
	}
}

// refresh re-evaluates whether root exists and reports transitions.
func (w *Watcher) refresh(root string) {
	info, err := os.Stat(root)
	available := err == nil && info.IsDir()
	if available {
		if err := w.fw.Add(root); err != nil {
			w.log.Printf("watch: cannot watch %s: %v", root, err)
		}
	}

	w.mu.Lock()
	prefixes := w.roots[root]
	prev, known := w.status[root]
	w.status[root] = available
	w.mu.Unlock()

	if known && prev == available {
		return
	}
	for _, prefix := range prefixes {
		if available {
			w.log.Printf("watch: %s root %s available", prefix, root)
		} else {
			w.log.Printf("watch: %s root %s unavailable", prefix, root)
		}
		if w.notify != nil {
			w.notify(prefix, available)
		}
	}
}

// mountsOf returns the prefixes whose root directly contains name.
func (w *Watcher) mountsOf(name string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.roots[filepath.Dir(name)]
}
