// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aliaspath ties configuration, indexing and lookup together behind
// one Service and exposes it over HTTP.
package aliaspath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/aliaspath/services/aliaspath/ast"
	"github.com/AleutianAI/aliaspath/services/aliaspath/config"
	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
	"github.com/AleutianAI/aliaspath/services/aliaspath/imports"
	"github.com/AleutianAI/aliaspath/services/aliaspath/index"
	"github.com/AleutianAI/aliaspath/services/aliaspath/lookup"
	"github.com/AleutianAI/aliaspath/services/aliaspath/resolve"
	badgerstore "github.com/AleutianAI/aliaspath/services/aliaspath/storage/badger"
)

// Version is the build version, set with -ldflags at release time.
var Version = "dev"

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Host is the host-wide settings layer. Its invalid fields fall back to
	// defaults during merge instead of failing validation here.
	Host config.HostSettings `validate:"-"`

	// Roots are the workspace roots.
	Roots []string

	// BuildDelay debounces index rebuilds. Default: index.DefaultBuildDelay
	BuildDelay time.Duration `validate:"gte=0"`

	// ReloadDelay debounces config reloads. Default: config.DefaultReloadDelay
	ReloadDelay time.Duration `validate:"gte=0"`

	// Concurrency bounds parallel parsing within a build. Zero uses GOMAXPROCS.
	Concurrency int `validate:"gte=0,lte=1024"`

	// CacheSize bounds the per-root config cache. Default: config.DefaultCacheSize
	CacheSize int `validate:"gte=0"`

	// WatchConfig enables reloading project config files on change.
	WatchConfig bool

	// CacheDir holds the persistent token cache. Empty disables it.
	CacheDir string
}

// ErrInvalidServiceConfig is returned by NewService for out-of-range settings.
var ErrInvalidServiceConfig = errors.New("invalid service config")

var configValidator = validator.New()

// Validate checks the numeric settings.
func (c ServiceConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidServiceConfig, err)
	}
	return nil
}

// DefaultServiceConfig returns the default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		BuildDelay:  index.DefaultBuildDelay,
		ReloadDelay: config.DefaultReloadDelay,
		CacheSize:   config.DefaultCacheSize,
		WatchConfig: true,
	}
}

// Service is the context object owning every long-lived component.
//
// Description:
//
//	Creating a Service wires the config Provider, the index Builder and
//	Scheduler, the lookup Facade and, optionally, the config Watcher.
//	Close tears them down. Nothing is global; hosts (CLI, HTTP, LSP) each
//	hold their own Service.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Service struct {
	cfg       ServiceConfig
	provider  *config.Provider
	builder   *index.Builder
	scheduler *index.Scheduler
	facade    *lookup.Facade
	watcher   *config.Watcher
	cacheDB   *badgerstore.DB
	cache     *index.BadgerTokenCache
	startedAt time.Time

	mu     sync.Mutex
	active document.Document
}

// NewService creates and starts a Service.
//
// Outputs:
//
//	*Service - Ready for use. Call Close when done.
//	error - ErrInvalidServiceConfig, or non-nil if the config cache or
//	        watcher cannot be created.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider, err := config.NewProvider(cfg.Host, cfg.Roots, config.WithCacheSize(cfg.CacheSize))
	if err != nil {
		return nil, fmt.Errorf("creating config provider: %w", err)
	}

	s := &Service{cfg: cfg, provider: provider, startedAt: time.Now()}

	builderOpts := []index.BuilderOption{index.WithConcurrency(cfg.Concurrency)}
	if cfg.CacheDir != "" {
		dbCfg := badgerstore.DefaultConfig()
		dbCfg.Path = cfg.CacheDir
		db, err := badgerstore.OpenDB(dbCfg)
		if err != nil {
			slog.Warn("token cache unavailable",
				slog.String("path", cfg.CacheDir),
				slog.String("error", err.Error()),
			)
		} else {
			s.cacheDB = db
			s.cache = index.NewBadgerTokenCache(db, 0)
			builderOpts = append(builderOpts, index.WithTokenCache(s.cache))
		}
	}
	s.builder = index.NewBuilder(builderOpts...)
	s.scheduler = index.NewScheduler(s.builder, provider.GetConfig, index.WithBuildDelay(cfg.BuildDelay))
	s.facade = lookup.NewFacade(provider.GetConfig, s.scheduler)

	if cfg.WatchConfig {
		w, err := config.NewWatcher(provider, cfg.ReloadDelay, s.onConfigReload)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if err := w.Start(); err != nil {
			slog.Warn("config watching is incomplete", slog.String("error", err.Error()))
		}
		s.watcher = w
	}
	return s, nil
}

// Close stops the watcher and the scheduler and closes the token cache.
func (s *Service) Close() error {
	var errs []error
	if s.watcher != nil {
		errs = append(errs, s.watcher.Close())
	}
	s.scheduler.Close()
	if s.cacheDB != nil {
		errs = append(errs, s.cacheDB.Close())
	}
	return errors.Join(errs...)
}

// Provider returns the config provider.
func (s *Service) Provider() *config.Provider { return s.provider }

// Scheduler returns the index scheduler.
func (s *Service) Scheduler() *index.Scheduler { return s.scheduler }

// TokenCache returns the persistent token cache, or nil when CacheDir is
// unset or could not be opened.
func (s *Service) TokenCache() *index.BadgerTokenCache { return s.cache }

// Facade returns the lookup facade.
func (s *Service) Facade() *lookup.Facade { return s.facade }

// Uptime returns how long the service has been running.
func (s *Service) Uptime() time.Duration { return time.Since(s.startedAt) }

// SetHostSettings replaces the host layer and rebuilds the active document.
func (s *Service) SetHostSettings(host config.HostSettings) {
	s.provider.SetHostSettings(host)
	s.rescheduleActive("")
}

// SetWorkspaceRoots replaces the workspace roots.
func (s *Service) SetWorkspaceRoots(roots []string) {
	s.provider.SetWorkspaceRoots(roots)
	if s.watcher != nil {
		if err := s.watcher.Sync(); err != nil {
			slog.Warn("config watching is incomplete", slog.String("error", err.Error()))
		}
	}
	s.rescheduleActive("")
}

// onConfigReload rebuilds the active document when its root was reloaded.
func (s *Service) onConfigReload(root string, _ config.Snapshot) {
	s.rescheduleActive(root)
}

// rescheduleActive schedules a rebuild of the active document, if any and
// if it lives under root. An empty root matches every document.
func (s *Service) rescheduleActive(root string) {
	s.mu.Lock()
	doc := s.active
	s.mu.Unlock()
	if doc == nil {
		return
	}
	if root != "" && s.provider.RootFor(doc.Path()) != root {
		return
	}
	s.scheduler.Schedule(doc)
}

// NewDocument wraps in-memory text for path, associating it with path's
// workspace root.
func (s *Service) NewDocument(path, text string) *document.Snapshot {
	return document.NewSnapshot(path, s.provider.RootFor(absPath(path)), text)
}

// LoadDocument reads path from disk.
func (s *Service) LoadDocument(path string) (*document.Snapshot, error) {
	return document.Load(path, s.provider.RootFor(absPath(path)))
}

// Config returns the merged configuration for path.
func (s *Service) Config(path string) config.ResolutionConfig {
	return s.provider.GetConfig(absPath(path))
}

// Resolve resolves specifier as seen from documentPath.
func (s *Service) Resolve(ctx context.Context, specifier, documentPath, boundName string) []resolve.ResolvedPath {
	documentPath = absPath(documentPath)
	resolver := resolve.NewResolver(s.provider.GetConfig(documentPath).Rules())
	return resolver.Resolve(ctx, specifier, resolve.Request{
		DocumentPath:  documentPath,
		WorkspaceRoot: s.provider.RootFor(documentPath),
		BoundName:     boundName,
	})
}

// Imports extracts the import references of text.
func (s *Service) Imports(text string) []imports.Reference {
	return imports.Extract(text)
}

// Symbols parses one file's content under path's configuration.
func (s *Service) Symbols(ctx context.Context, path string, content []byte, boundName string) ([]ast.SymbolToken, error) {
	return index.ParseFile(ctx, path, content, boundName, s.Config(path))
}

// Activate makes doc the active document and debounces a rebuild.
func (s *Service) Activate(doc document.Document) {
	s.mu.Lock()
	s.active = doc
	s.mu.Unlock()
	s.scheduler.Schedule(doc)
}

// Deactivate forgets path if it is the active document.
func (s *Service) Deactivate(path string) {
	path = absPath(path)
	s.mu.Lock()
	if s.active != nil && s.active.Path() == path {
		s.active = nil
	}
	s.mu.Unlock()
	s.scheduler.Deactivate(path)
}

// BuildIndex makes doc active and builds its index synchronously.
func (s *Service) BuildIndex(ctx context.Context, doc document.Document) (*index.SymbolIndex, error) {
	s.mu.Lock()
	s.active = doc
	s.mu.Unlock()
	return s.scheduler.BuildNow(ctx, doc)
}

// EnsureIndex returns the current index when it was built for doc,
// otherwise builds one.
func (s *Service) EnsureIndex(ctx context.Context, doc document.Document) (*index.SymbolIndex, error) {
	if cur := s.scheduler.Current(); cur != nil && cur.DocumentPath() == doc.Path() {
		return cur, nil
	}
	return s.BuildIndex(ctx, doc)
}

// Definition answers go-to-definition at pos in doc.
func (s *Service) Definition(ctx context.Context, doc document.Document, pos document.Position) []lookup.Location {
	return s.facade.Definition(ctx, doc, pos)
}

// FacadeFor returns a lookup facade that answers from idx instead of the
// scheduler's current index.
func (s *Service) FacadeFor(idx *index.SymbolIndex) *lookup.Facade {
	return lookup.NewFacade(s.provider.GetConfig, pinnedIndex{idx})
}

type pinnedIndex struct{ idx *index.SymbolIndex }

func (p pinnedIndex) Current() *index.SymbolIndex { return p.idx }

// Complete answers completion at pos in doc.
func (s *Service) Complete(ctx context.Context, doc document.Document, pos document.Position) []lookup.CompletionItem {
	return s.facade.Complete(ctx, doc, pos)
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}
