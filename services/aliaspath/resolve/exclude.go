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
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// ExcludeMatcher tests paths against a list of glob patterns.
//
// Description:
//
//	Patterns use doublestar syntax: `**`, `*`, `?`, `{a,b}` and `[...]`,
//	matched case-sensitively over slash-separated paths. A path is tested
//	both as an absolute path and, when it lives under the workspace root, as
//	a root-relative path; either match excludes it. Malformed patterns are
//	logged once and ignored.
//
// Thread Safety:
//
//	Immutable after construction; safe for concurrent use.
type ExcludeMatcher struct {
	patterns []string
}

// NewExcludeMatcher validates and stores patterns.
func NewExcludeMatcher(patterns []string) *ExcludeMatcher {
	m := &ExcludeMatcher{patterns: make([]string, 0, len(patterns))}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = filepath.ToSlash(p)
		if _, err := doublestar.Match(p, ""); err != nil {
			slog.Warn("ignoring malformed exclude glob",
				slog.String("pattern", p),
				slog.String("error", err.Error()),
			)
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Patterns returns the accepted patterns.
func (m *ExcludeMatcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Match reports whether path is excluded. root may be empty.
func (m *ExcludeMatcher) Match(path, root string) bool {
	if m == nil || len(m.patterns) == 0 || path == "" {
		return false
	}
	abs := filepath.ToSlash(path)
	names := []string{abs, strings.TrimPrefix(abs, "/")}
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			names = append(names, filepath.ToSlash(rel))
		}
	}
	for _, p := range m.patterns {
		for _, name := range names {
			if ok, _ := doublestar.Match(p, name); ok {
				return true
			}
		}
	}
	return false
}
