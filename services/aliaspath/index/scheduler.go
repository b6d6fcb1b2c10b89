// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/aliaspath/services/aliaspath/config"
	"github.com/AleutianAI/aliaspath/services/aliaspath/debounce"
	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

// DefaultBuildDelay is the quiet interval before a document change rebuilds
// the index.
const DefaultBuildDelay = 500 * time.Millisecond

// ConfigFunc returns the merged configuration for a document path.
type ConfigFunc func(documentPath string) config.ResolutionConfig

// PublishFunc is told about each published index.
type PublishFunc func(idx *SymbolIndex)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithBuildDelay sets the debounce interval.
func WithBuildDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithOnPublish registers a callback run after each publish.
func WithOnPublish(fn PublishFunc) SchedulerOption {
	return func(s *Scheduler) {
		s.onPublish = fn
	}
}

// Scheduler owns the live SymbolIndex of one document context.
//
// Description:
//
//	Schedule marks a document active and debounces a build for it. A newer
//	Schedule replaces a pending build that has not started; a started
//	build runs to completion. A finished build is published only when its
//	document activation is still the latest one, so the index never holds
//	tokens for a document that has since been replaced.
//
// Thread Safety:
//
//	Safe for concurrent use. Current is lock-free.
type Scheduler struct {
	builder   *Builder
	configFor ConfigFunc
	delay     time.Duration
	onPublish PublishFunc
	debounce  *debounce.Debouncer

	mu         sync.Mutex
	activePath string
	activeGen  uint64
	closed     bool

	current atomic.Pointer[SymbolIndex]

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler.
//
// Inputs:
//
//	builder - Builds the index. Must not be nil.
//	configFor - Supplies the merged config per document. Must not be nil.
func NewScheduler(builder *Builder, configFor ConfigFunc, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		builder:   builder,
		configFor: configFor,
		delay:     DefaultBuildDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.debounce = debounce.New(s.delay)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// activate makes doc the active document and returns its generation.
func (s *Scheduler) activate(doc document.Document) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false
	}
	s.activeGen++
	s.activePath = filepath.Clean(doc.Path())
	return s.activeGen, true
}

// Schedule marks doc active and debounces a rebuild for it.
//
// Returns the debounce token of the scheduled build. The token is already
// superseded if the scheduler is closed.
func (s *Scheduler) Schedule(doc document.Document) debounce.Token {
	if doc == nil {
		return debounce.Token{}
	}
	gen, ok := s.activate(doc)
	if !ok {
		return debounce.Token{}
	}
	return s.debounce.Trigger(func(tok debounce.Token) {
		if tok.Superseded() {
			return
		}
		idx, err := s.builder.Build(s.ctx, doc, s.configFor(doc.Path()))
		if err != nil {
			slog.Warn("index build failed",
				slog.String("document", doc.Path()),
				slog.String("error", err.Error()),
			)
			return
		}
		if err := s.publish(idx, gen); err != nil {
			slog.Debug("discarding index build",
				slog.String("document", doc.Path()),
				slog.String("build_id", idx.BuildID()),
				slog.String("error", err.Error()),
			)
		}
	})
}

// BuildNow marks doc active, drops any pending build and builds
// synchronously.
//
// Outputs:
//
//	*SymbolIndex - The built index, also published unless superseded.
//	error - ErrSchedulerClosed, ErrNilDocument, a context error, or
//	    ErrBuildSuperseded if another activation happened during the build.
func (s *Scheduler) BuildNow(ctx context.Context, doc document.Document) (*SymbolIndex, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	gen, ok := s.activate(doc)
	if !ok {
		return nil, ErrSchedulerClosed
	}
	s.debounce.Cancel()

	idx, err := s.builder.Build(ctx, doc, s.configFor(doc.Path()))
	if err != nil {
		return nil, err
	}
	if err := s.publish(idx, gen); err != nil {
		return idx, err
	}
	return idx, nil
}

// publish stores idx if gen is still the latest activation.
func (s *Scheduler) publish(idx *SymbolIndex, gen uint64) error {
	s.mu.Lock()
	if s.closed || gen != s.activeGen || idx.DocumentPath() != s.activePath {
		s.mu.Unlock()
		buildsTotal.WithLabelValues(statusSuperseded).Inc()
		return fmt.Errorf("%w: %s", ErrBuildSuperseded, idx.DocumentPath())
	}
	s.current.Store(idx)
	s.mu.Unlock()

	indexTokens.Set(float64(idx.Len()))
	if s.onPublish != nil {
		s.onPublish(idx)
	}
	return nil
}

// Deactivate forgets documentPath if it is the active document. The
// published index is dropped and any in-flight build for it is discarded.
func (s *Scheduler) Deactivate(documentPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePath != filepath.Clean(documentPath) {
		return
	}
	s.activeGen++
	s.activePath = ""
	s.current.Store(nil)
	s.debounce.Cancel()
	indexTokens.Set(0)
}

// ActivePath returns the active document path, or "".
func (s *Scheduler) ActivePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePath
}

// Current returns the published index, or nil before the first build.
func (s *Scheduler) Current() *SymbolIndex {
	return s.current.Load()
}

// Wait blocks until no build is pending or running.
func (s *Scheduler) Wait() {
	s.debounce.Wait()
}

// Close cancels pending work, waits for a running build, and stops the
// scheduler.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.debounce.Close()
}
