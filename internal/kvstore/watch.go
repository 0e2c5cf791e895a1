// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package kvstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of filesystem events. An atomic write
// produces create+rename pairs; one notification per burst is enough.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports keys modified by other processes. Events carry the decoded
// key name.
type Watcher struct {
	fs       *fsnotify.Watcher
	events   chan string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// NewWatcher starts watching the store directory for external mutation.
func NewWatcher(s *Store) (*Watcher, error) {
	return newWatcher(s, DefaultDebounce)
}

// NewWatcherWithDebounce is NewWatcher with a custom debounce window.
// A zero debounce delivers events immediately (used in tests).
func NewWatcherWithDebounce(s *Store, debounce time.Duration) (*Watcher, error) {
	return newWatcher(s, debounce)
}

func newWatcher(s *Store, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fs.Add(s.dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch store directory: %w", err)
	}

	w := &Watcher{
		fs:       fs,
		events:   make(chan string, 16),
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
	go w.run()
	return w, nil
}

// Events returns the channel of modified keys. The channel is closed when the
// watcher is closed.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Close stops the watcher and closes the event channel.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()
	return w.fs.Close()
}

func (w *Watcher) run() {
	defer close(w.events)

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".tmp-") || !strings.HasSuffix(name, ".kv") {
				continue
			}
			w.schedule(decodeKey(strings.TrimSuffix(name, ".kv")))

		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			// Watch errors are not fatal; the store still works, only
			// cross-process refresh degrades.
		}
	}
}

// schedule arms (or re-arms) the debounce timer for a key.
func (w *Watcher) schedule(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if t, ok := w.pending[key]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[key] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, key)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}
		select {
		case w.events <- key:
		default:
			// Consumer is behind; dropping is fine, it re-reads the
			// whole key on every event anyway.
		}
	})
}
