// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/aliaspath/services/aliaspath/debounce"
)

// DefaultReloadDelay is the quiet interval before a config change is applied.
const DefaultReloadDelay = 200 * time.Millisecond

// ReloadFunc is told about each root whose slot was reloaded.
type ReloadFunc func(root string, snap Snapshot)

// Watcher reloads a Provider's slots when project config files change.
//
// Description:
//
//	Each workspace root directory is watched non-recursively. Events on a
//	project config file name (the custom file or .aliaspath.*, and
//	package.json) mark the root dirty. Once events stop for the reload
//	delay, every dirty root is reloaded and reported to the callback.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Watcher struct {
	provider *Provider
	onReload ReloadFunc
	fsw      *fsnotify.Watcher
	debounce *debounce.Debouncer

	mu      sync.Mutex
	watched map[string]struct{}
	dirty   map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a Watcher. onReload may be nil.
func NewWatcher(provider *Provider, delay time.Duration, onReload ReloadFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		provider: provider,
		onReload: onReload,
		fsw:      fsw,
		debounce: debounce.New(delay),
		watched:  make(map[string]struct{}),
		dirty:    make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start watches the provider's current roots and begins processing events.
func (w *Watcher) Start() error {
	if err := w.Sync(); err != nil {
		return err
	}
	go w.processEvents()
	return nil
}

// Sync aligns the watched directories with the provider's roots.
func (w *Watcher) Sync() error {
	roots := w.provider.Roots()
	want := make(map[string]struct{}, len(roots))
	for _, r := range roots {
		want[r] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for r := range w.watched {
		if _, keep := want[r]; !keep {
			_ = w.fsw.Remove(r)
			delete(w.watched, r)
		}
	}
	var firstErr error
	for r := range want {
		if _, ok := w.watched[r]; ok {
			continue
		}
		if err := w.fsw.Add(r); err != nil {
			slog.Warn("cannot watch workspace root",
				slog.String("root", r),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("watching %s: %w", r, err)
			}
			continue
		}
		w.watched[r] = struct{}{}
	}
	return firstErr
}

func (w *Watcher) processEvents() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("config watcher stopped after panic", slog.Any("panic", r))
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	root := w.provider.RootFor(event.Name)
	if root == "" || !w.isConfigFile(root, event.Name) {
		return
	}

	w.mu.Lock()
	w.dirty[root] = struct{}{}
	w.mu.Unlock()

	w.debounce.Trigger(func(debounce.Token) { w.flush() })
}

// isConfigFile reports whether path is one of root's project config files.
func (w *Watcher) isConfigFile(root, path string) bool {
	path = filepath.Clean(path)
	for _, name := range ProjectFiles(w.provider.Host().AliasPath.ConfigFile) {
		candidate := name
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(root, name)
		}
		if filepath.Clean(candidate) == path {
			return true
		}
	}
	return false
}

// flush reloads every dirty root.
func (w *Watcher) flush() {
	w.mu.Lock()
	roots := make([]string, 0, len(w.dirty))
	for r := range w.dirty {
		roots = append(roots, r)
	}
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()

	for _, root := range roots {
		snap := w.provider.Reload(root)
		slog.Info("workspace configuration reloaded",
			slog.String("root", root),
			slog.String("source", snap.Source),
		)
		if w.onReload != nil {
			w.onReload(root, snap)
		}
	}
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fsw.Close()
	w.debounce.Close()
	return err
}
