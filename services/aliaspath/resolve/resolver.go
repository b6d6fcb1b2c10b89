// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StatFunc reports file info for a path. os.Stat by default.
type StatFunc func(name string) (fs.FileInfo, error)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStat replaces the filesystem probe.
func WithStat(stat StatFunc) ResolverOption {
	return func(r *Resolver) {
		r.stat = stat
	}
}

// Resolver maps specifiers to existing files.
//
// Description:
//
//	Every alias key is substituted into the specifier unconditionally; keys
//	that do not occur leave it unchanged. Correctness rests on the final
//	existence check, not on a prefix test, so overlapping alias values can
//	surface files from more than one alias.
//
// Thread Safety:
//
//	Immutable after construction; safe for concurrent use.
type Resolver struct {
	rules   Rules
	exts    []string
	ignored map[string]struct{}
	exclude *ExcludeMatcher
	stat    StatFunc
}

// NewResolver creates a Resolver for rules.
func NewResolver(rules Rules, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		rules:   rules,
		ignored: make(map[string]struct{}, len(rules.IgnoredExtensions)),
		exclude: NewExcludeMatcher(rules.Exclude),
		stat:    os.Stat,
	}
	for _, e := range rules.Extensions {
		if e = TrimExt(e); e != "" {
			r.exts = append(r.exts, e)
		}
	}
	for _, e := range rules.IgnoredExtensions {
		if e = TrimExt(e); e != "" {
			r.ignored[strings.ToLower(e)] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rules returns the rules the resolver was built with.
func (r *Resolver) Rules() Rules {
	return r.rules
}

// Excluded reports whether path matches an exclude glob.
func (r *Resolver) Excluded(path, root string) bool {
	return r.exclude.Match(path, root)
}

// Resolve returns every existing, non-excluded file specifier can refer to.
//
// Description:
//
//	For each alias, in table order:
//	  1. Replace CwdPlaceholder in the alias value with the workspace root.
//	  2. Replace the first occurrence of the alias key in the specifier.
//	  3. Clean the result; anchor relative paths at the document directory.
//	  4. With an extension, the path is the sole candidate (plus the
//	     stripped form when the extension is ignored). Without one, probe
//	     `<p>/index.<ext>` then `<p>.<ext>` for every extension.
//	  5. Keep regular files only.
//	Survivors are deduplicated across aliases in discovery order and then
//	filtered through the exclude globs.
//
// Inputs:
//
//	ctx - Used for tracing only; resolution does not block.
//	specifier - Raw text between the quotes of an import.
//	req - Document, workspace root and bound name for this lookup.
//
// Outputs:
//
//	[]ResolvedPath - May be empty. No resolution is a normal outcome.
func (r *Resolver) Resolve(ctx context.Context, specifier string, req Request) []ResolvedPath {
	_, span := otel.Tracer(tracerName).Start(ctx, "resolve.Resolve",
		trace.WithAttributes(
			attribute.String("resolve.specifier", specifier),
			attribute.Int("resolve.aliases", len(r.rules.Aliases)),
		),
	)
	defer span.End()

	if specifier == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var out []ResolvedPath
	for _, alias := range r.rules.Aliases {
		if alias.Key == "" {
			continue
		}
		base := r.substitute(specifier, alias, req)
		for _, candidate := range r.candidates(base) {
			if _, dup := seen[candidate]; dup {
				resolveCandidatesTotal.WithLabelValues(outcomeDuplicate).Inc()
				continue
			}
			if !r.isRegularFile(candidate) {
				resolveCandidatesTotal.WithLabelValues(outcomeMissing).Inc()
				continue
			}
			seen[candidate] = struct{}{}
			out = append(out, ResolvedPath{Path: candidate, BoundName: req.BoundName})
		}
	}

	kept := out[:0]
	for _, rp := range out {
		if r.exclude.Match(rp.Path, req.WorkspaceRoot) {
			resolveCandidatesTotal.WithLabelValues(outcomeExcluded).Inc()
			slog.Debug("resolved path excluded", slog.String("path", rp.Path))
			continue
		}
		resolveCandidatesTotal.WithLabelValues(outcomeFound).Inc()
		kept = append(kept, rp)
	}

	span.SetAttributes(attribute.Int("resolve.results", len(kept)))
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// substitute applies one alias to specifier and returns an absolute,
// cleaned path.
func (r *Resolver) substitute(specifier string, alias Alias, req Request) string {
	value := strings.ReplaceAll(alias.Value, CwdPlaceholder, req.WorkspaceRoot)
	p := strings.Replace(specifier, alias.Key, value, 1)
	p = filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(p) {
		return p
	}
	dir := req.WorkspaceRoot
	if req.DocumentPath != "" {
		dir = filepath.Dir(req.DocumentPath)
	}
	return filepath.Join(dir, p)
}

// candidates lists the probe paths for base in probe order.
func (r *Resolver) candidates(base string) []string {
	ext := filepath.Ext(base)
	if ext == "" {
		return r.probe(base)
	}
	out := []string{base}
	if _, ok := r.ignored[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		out = append(out, r.probe(strings.TrimSuffix(base, ext))...)
	}
	return out
}

func (r *Resolver) probe(base string) []string {
	out := make([]string, 0, 2*len(r.exts))
	for _, ext := range r.exts {
		out = append(out,
			filepath.Join(base, "index."+ext),
			base+"."+ext,
		)
	}
	return out
}

func (r *Resolver) isRegularFile(path string) bool {
	info, err := r.stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
