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
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of workspace roots kept in the cache.
const DefaultCacheSize = 64

// Snapshot is a merged config for one workspace root.
type Snapshot struct {
	// Root is the workspace root the config applies to; "" for documents
	// outside every workspace.
	Root string

	// Source is the project file that contributed an override, or "".
	Source string

	Config ResolutionConfig
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithCacheSize sets how many workspace roots are cached.
func WithCacheSize(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.cacheSize = n
		}
	}
}

// Provider answers GetConfig for any document path.
//
// Description:
//
//	Each workspace root has one cache slot holding its merged Snapshot.
//	Slots are computed on first use and replaced wholesale by Reload, by
//	SetHostSettings (all slots) and by workspace-root changes. Readers
//	always get either the previous or the new complete Snapshot.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Provider struct {
	cacheSize int

	mu    sync.RWMutex
	host  HostSettings
	roots []string
	cache *lru.Cache[string, Snapshot]
}

// NewProvider creates a Provider for the given host settings and roots.
func NewProvider(host HostSettings, roots []string, opts ...ProviderOption) (*Provider, error) {
	p := &Provider{cacheSize: DefaultCacheSize, host: host}
	for _, opt := range opts {
		opt(p)
	}
	cache, err := lru.New[string, Snapshot](p.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating config cache: %w", err)
	}
	p.cache = cache
	p.roots = cleanRoots(roots)
	return p, nil
}

func cleanRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		if abs, err := filepath.Abs(r); err == nil {
			r = abs
		}
		r = filepath.Clean(r)
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	// Longest first so RootFor picks the innermost root.
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Host returns the current host settings.
func (p *Provider) Host() HostSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.host
}

// SetHostSettings replaces the host layer and drops every cached slot.
func (p *Provider) SetHostSettings(host HostSettings) {
	p.mu.Lock()
	p.host = host
	p.mu.Unlock()
	p.cache.Purge()
}

// Roots returns the workspace roots, innermost-first.
func (p *Provider) Roots() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.roots...)
}

// SetWorkspaceRoots replaces the workspace roots and drops every cached slot.
func (p *Provider) SetWorkspaceRoots(roots []string) {
	cleaned := cleanRoots(roots)
	p.mu.Lock()
	p.roots = cleaned
	p.mu.Unlock()
	p.cache.Purge()
}

// AddWorkspaceRoot registers root if it is not already known.
func (p *Provider) AddWorkspaceRoot(root string) {
	p.SetWorkspaceRoots(append(p.Roots(), root))
}

// RemoveWorkspaceRoot forgets root and its cache slot.
func (p *Provider) RemoveWorkspaceRoot(root string) {
	root = filepath.Clean(root)
	current := p.Roots()
	kept := current[:0]
	for _, r := range current {
		if r != root {
			kept = append(kept, r)
		}
	}
	p.SetWorkspaceRoots(kept)
}

// RootFor returns the innermost workspace root containing path, or "".
func (p *Provider) RootFor(path string) string {
	if path == "" {
		return ""
	}
	path = filepath.Clean(path)
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.roots {
		if path == r || strings.HasPrefix(path, r+string(filepath.Separator)) {
			return r
		}
	}
	return ""
}

// GetConfig returns the merged config for the document at path.
func (p *Provider) GetConfig(path string) ResolutionConfig {
	return p.Snapshot(path).Config
}

// Snapshot returns the merged config and its provenance for path.
func (p *Provider) Snapshot(path string) Snapshot {
	root := p.RootFor(path)
	if snap, ok := p.cache.Get(root); ok {
		return snap
	}
	return p.Reload(root)
}

// Reload recomputes root's slot from disk and the host settings and stores
// it, replacing the previous slot.
func (p *Provider) Reload(root string) Snapshot {
	host := p.Host()
	project, source := LoadProject(root, host.AliasPath.ConfigFile)
	snap := Snapshot{
		Root:   root,
		Source: source,
		Config: Merge(project, host),
	}
	p.cache.Add(root, snap)
	slog.Debug("configuration loaded",
		slog.String("root", root),
		slog.String("source", source),
		slog.Int("aliases", len(snap.Config.Alias)),
	)
	return snap
}

// Invalidate drops root's slot; the next GetConfig reloads it.
func (p *Provider) Invalidate(root string) {
	p.cache.Remove(root)
}
