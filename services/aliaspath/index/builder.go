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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/aliaspath/services/aliaspath/ast"
	"github.com/AleutianAI/aliaspath/services/aliaspath/config"
	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
	"github.com/AleutianAI/aliaspath/services/aliaspath/imports"
	"github.com/AleutianAI/aliaspath/services/aliaspath/resolve"
)

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithConcurrency bounds how many files are parsed at once.
func WithConcurrency(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithStat replaces os.Stat for the size gate and for resolution.
func WithStat(stat resolve.StatFunc) BuilderOption {
	return func(b *Builder) {
		if stat != nil {
			b.stat = stat
		}
	}
}

// WithTokenCache reuses tokens of unchanged dependency files across builds.
func WithTokenCache(cache TokenCache) BuilderOption {
	return func(b *Builder) {
		b.cache = cache
	}
}

// Builder turns an active document into a SymbolIndex.
//
// Description:
//
//	A build extracts the document's import references, resolves each one,
//	adds the document itself, gates every file on existence and size, then
//	parses the survivors and concatenates their tokens in discovery order.
//	The active document is parsed from its in-memory text; every other file
//	is read from disk.
//
//	A file that is missing, too large, unreadable or that fails to parse is
//	recorded as skipped and the build continues.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Builder struct {
	concurrency int
	stat        resolve.StatFunc
	cache       TokenCache
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		concurrency: runtime.GOMAXPROCS(0),
		stat:        os.Stat,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// target is one file to parse.
type target struct {
	path      string
	boundName string

	// text is set for the active document.
	text   string
	inline bool

	content []byte
}

// fileResult is the outcome of one target, written into its own slot.
type fileResult struct {
	tokens []ast.SymbolToken
	skip   SkipReason
}

// Build produces the symbol index for doc under cfg.
//
// Description:
//
//	Follows the steps described on Builder. Per-file failures never fail
//	the build; only a nil document or a done context does.
//
// Inputs:
//
//	ctx - Cancellation for the whole build.
//	doc - The active document.
//	cfg - The merged configuration for doc.
//
// Outputs:
//
//	*SymbolIndex - The finished, immutable index.
//	error - ErrNilDocument or a context error.
//
// Example:
//
//	idx, err := index.NewBuilder().Build(ctx, doc, provider.GetConfig(doc.Path()))
func (b *Builder) Build(ctx context.Context, doc document.Document, cfg config.ResolutionConfig) (*SymbolIndex, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	ctx, span := startBuildSpan(ctx, doc.Path())
	defer span.End()
	start := time.Now()

	idx, err := b.build(ctx, doc, cfg)
	finishBuild(span, start, idx, err)
	return idx, err
}

func (b *Builder) build(ctx context.Context, doc document.Document, cfg config.ResolutionConfig) (*SymbolIndex, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build canceled before start: %w", err)
	}

	targets := b.targets(ctx, doc, cfg)
	results := make([]fileResult, len(targets))
	maxBytes := cfg.MaxDependFileBytes()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := range targets {
		g.Go(func() error {
			res, err := b.processFile(gctx, targets[i], cfg, maxBytes)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building index for %s: %w", doc.Path(), err)
	}

	var (
		tokens  []ast.SymbolToken
		files   []string
		skipped []SkippedFile
	)
	// A file parsed under several bound names repeats its named exports;
	// only the default-export token differs between the parses.
	type tokenKey struct {
		path    string
		offset  int
		keyword string
	}
	listed := make(map[string]struct{})
	kept := make(map[tokenKey]struct{})
	for i, res := range results {
		path := targets[i].path
		_, again := listed[path]
		listed[path] = struct{}{}
		if res.skip != "" {
			if !again {
				skipped = append(skipped, SkippedFile{Path: path, Reason: res.skip})
				filesSkippedTotal.WithLabelValues(string(res.skip)).Inc()
			}
			continue
		}
		if !again {
			files = append(files, path)
		}
		for _, tok := range res.tokens {
			key := tokenKey{tok.FilePath, tok.StartOffset, tok.Keyword}
			if _, dup := kept[key]; dup {
				continue
			}
			kept[key] = struct{}{}
			tokens = append(tokens, tok)
		}
	}

	slog.Debug("symbol index built",
		slog.String("document", doc.Path()),
		slog.Int("files", len(files)),
		slog.Int("skipped", len(skipped)),
		slog.Int("tokens", len(tokens)),
	)
	return newSymbolIndex(doc.Path(), tokens, files, skipped), nil
}

// targets lists the files of a build in discovery order: every resolved
// import, then the document itself. A file imported under several bound
// names appears once per name so each name gets its default-export token.
// The document itself is added only when no import already resolved to it.
func (b *Builder) targets(ctx context.Context, doc document.Document, cfg config.ResolutionConfig) []target {
	resolver := resolve.NewResolver(cfg.Rules(), resolve.WithStat(b.stat))
	docPath := filepath.Clean(doc.Path())

	type targetKey struct{ path, boundName string }
	var out []target
	seen := make(map[targetKey]struct{})
	paths := make(map[string]struct{})
	add := func(t target) {
		key := targetKey{t.path, t.boundName}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		paths[t.path] = struct{}{}
		if t.path == docPath {
			t.text, t.inline = doc.Text(), true
		}
		out = append(out, t)
	}

	for _, ref := range imports.Extract(doc.Text()) {
		resolved := resolver.Resolve(ctx, ref.Specifier, resolve.Request{
			DocumentPath:  doc.Path(),
			WorkspaceRoot: doc.WorkspaceRoot(),
			BoundName:     ref.BoundName,
		})
		for _, rp := range resolved {
			add(target{path: filepath.Clean(rp.Path), boundName: rp.BoundName})
		}
	}
	if _, ok := paths[docPath]; !ok {
		add(target{path: docPath})
	}
	return out
}

// processFile gates, reads and parses one target. Only context errors are
// returned; everything else becomes a skip reason.
func (b *Builder) processFile(ctx context.Context, t target, cfg config.ResolutionConfig, maxBytes int64) (res fileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("recovered while indexing file",
				slog.String("path", t.path),
				slog.Any("panic", r),
			)
			res, err = fileResult{skip: SkipPanic}, nil
		}
	}()

	if err := ctx.Err(); err != nil {
		return fileResult{}, err
	}

	info, skip := b.gate(t, maxBytes)
	if skip == "" {
		skip = b.read(&t)
	}
	if skip != "" {
		slog.Debug("skipping file", slog.String("path", t.path), slog.String("reason", string(skip)))
		return fileResult{skip: skip}, nil
	}

	parse := func() ([]ast.SymbolToken, error) {
		return ParseFile(ctx, t.path, t.content, t.boundName, cfg)
	}
	var tokens []ast.SymbolToken
	if b.cache != nil && !t.inline {
		tokens, err = cachedParse(ctx, b.cache, TokenCacheKey(t.path, info, t.boundName, cfg), parse)
	} else {
		tokens, err = parse()
	}
	if err != nil {
		if ctx.Err() != nil {
			return fileResult{}, ctx.Err()
		}
		slog.Debug("skipping unparsable file",
			slog.String("path", t.path),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, ast.ErrFileTooLarge) {
			return fileResult{skip: SkipTooLarge}, nil
		}
		return fileResult{skip: SkipParseError}, nil
	}
	return fileResult{tokens: tokens}, nil
}

// gate applies the existence and size checks. The active document is
// gated on its in-memory text and has no file info.
func (b *Builder) gate(t target, maxBytes int64) (fs.FileInfo, SkipReason) {
	if t.inline {
		if maxBytes > 0 && int64(len(t.text)) > maxBytes {
			return nil, SkipTooLarge
		}
		return nil, ""
	}

	info, err := b.stat(t.path)
	if err != nil {
		return nil, SkipMissing
	}
	if !info.Mode().IsRegular() {
		return nil, SkipNotRegular
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, SkipTooLarge
	}
	return info, ""
}

// read fills t.content.
func (b *Builder) read(t *target) SkipReason {
	if t.inline {
		t.content = []byte(t.text)
		return ""
	}
	content, err := os.ReadFile(t.path)
	if err != nil {
		return SkipUnreadable
	}
	t.content = content
	return ""
}

// ParseFile extracts the tokens of one file, routed by extension.
//
// Description:
//
//	Extensions listed in the script-token list go to the script parser and
//	those in the style-token list to the style parser. Any other extension
//	goes to both. Template files routed to the script parser also have
//	their <style> regions parsed. Script tokens come before style tokens.
//	Both parsers reject content larger than the config's size gate.
//
// Outputs:
//
//	[]ast.SymbolToken - Tokens of the file.
//	error - ast.ErrFileTooLarge, ast.ErrInvalidContent or a context error.
func ParseFile(ctx context.Context, path string, content []byte, boundName string, cfg config.ResolutionConfig) ([]ast.SymbolToken, error) {
	maxBytes := cfg.MaxDependFileBytes()
	script := cfg.IsScriptTokenFile(path)
	style := cfg.IsStyleTokenFile(path)
	if !script && !style {
		script, style = true, true
	}
	if script && ast.IsTemplateFile(path) {
		style = true
	}

	var tokens []ast.SymbolToken
	if script {
		parsed, err := ast.NewScriptParser(scriptLimit(maxBytes)...).Parse(ctx, path, content, boundName)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, parsed...)
	}
	if style {
		parsed, err := ast.NewStyleParser(styleLimit(maxBytes)...).Parse(ctx, path, content)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, parsed...)
	}
	return tokens, nil
}

func scriptLimit(maxBytes int64) []ast.ScriptParserOption {
	if maxBytes <= 0 {
		return nil
	}
	return []ast.ScriptParserOption{ast.WithScriptMaxFileSize(int(maxBytes))}
}

func styleLimit(maxBytes int64) []ast.StyleParserOption {
	if maxBytes <= 0 {
		return nil
	}
	return []ast.StyleParserOption{ast.WithStyleMaxFileSize(int(maxBytes))}
}
