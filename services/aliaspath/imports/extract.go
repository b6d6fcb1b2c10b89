// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package imports discovers import and require references in source text.
//
// Extraction is a text scan, not a parse. It runs on the active document
// before anything is known about the files it points at, so it must be cheap
// and must never fail: a statement the patterns cannot read simply yields no
// reference.
package imports

import (
	"log/slog"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

// Kind classifies how a module was referenced.
type Kind string

const (
	// KindImport is `import x from "spec"` (named, default or namespace).
	KindImport Kind = "import"

	// KindRequire is `const x = require("spec")`.
	KindRequire Kind = "require"

	// KindSideEffect is `import "spec"`.
	KindSideEffect Kind = "side-effect"

	// KindReExport is `export … from "spec"`.
	KindReExport Kind = "re-export"

	// KindDynamic is `import("spec")`.
	KindDynamic Kind = "dynamic"
)

// Reference is one module reference found in source text.
//
// Start and End are byte offsets into the scanned text and bound the whole
// statement match, half-open.
type Reference struct {
	Specifier string `json:"specifier"`
	BoundName string `json:"bound_name,omitempty"`
	Kind      Kind   `json:"kind"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// Contains reports whether offset falls within the reference span.
// Both ends are inclusive so a cursor sitting just after the closing quote
// still selects the reference.
func (r Reference) Contains(offset int) bool {
	return r.Start <= offset && offset <= r.End
}

// matchTimeout bounds a single pattern scan over one document.
const matchTimeout = 2 * time.Second

type pattern struct {
	kind Kind
	re   *regexp2.Regexp
}

// Patterns run in this order; the first two are the classic import and
// require forms and always come first in results.
var patterns = []pattern{
	{KindImport, mustCompile(
		`\bimport\s+(?:type\s+)?(?<dname>[a-zA-Z_$][\w$]*)?[^;]+?\bfrom\s*(?<q>['"])(?<filepath>[^\r\n]+?)\k<q>`)},
	{KindRequire, mustCompile(
		`\b(?:var|const|let)\s+(?<dname>[a-zA-Z_$][\w$]*)?[^;]+?=\s*require\(\s*(?<q>['"])(?<filepath>[^\r\n]+?)\k<q>\s*\)`)},
	{KindSideEffect, mustCompile(
		`\bimport\s*(?<q>['"])(?<filepath>[^\r\n]+?)\k<q>`)},
	{KindReExport, mustCompile(
		`\bexport\s+(?:type\s+)?(?:\*(?:\s+as\s+(?<dname>[a-zA-Z_$][\w$]*))?|\{[^}]*\})\s*from\s*(?<q>['"])(?<filepath>[^\r\n]+?)\k<q>`)},
	{KindDynamic, mustCompile(
		`\bimport\(\s*(?<q>['"])(?<filepath>[^\r\n]+?)\k<q>\s*\)`)},
}

func mustCompile(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.None)
	re.MatchTimeout = matchTimeout
	return re
}

// Extract returns every module reference in text.
//
// Description:
//
//	Runs each pattern over the full text in turn. Results are grouped by
//	pattern in the order above and, within a pattern, ordered by position.
//	Overlapping matches from different patterns are all kept.
//
// Inputs:
//
//	text - Full document text.
//
// Outputs:
//
//	[]Reference - May be nil when text has no references.
//
// Thread Safety:
//
//	Safe for concurrent use.
func Extract(text string) []Reference {
	if text == "" {
		return nil
	}
	runes := document.NewRuneMap(text)
	var refs []Reference
	for _, p := range patterns {
		refs = scan(refs, p, text, runes)
	}
	return refs
}

func scan(refs []Reference, p pattern, text string, runes *document.RuneMap) []Reference {
	m, err := p.re.FindStringMatch(text)
	for m != nil && err == nil {
		spec := groupText(m, "filepath")
		if spec != "" {
			refs = append(refs, Reference{
				Specifier: spec,
				BoundName: groupText(m, "dname"),
				Kind:      p.kind,
				Start:     runes.ByteOffset(m.Index),
				End:       runes.ByteOffset(m.Index + m.Length),
			})
		}
		m, err = p.re.FindNextMatch(m)
	}
	if err != nil {
		slog.Debug("import scan stopped",
			slog.String("kind", string(p.kind)),
			slog.String("error", err.Error()),
		)
	}
	return refs
}

func groupText(m *regexp2.Match, name string) string {
	g := m.GroupByName(name)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}

// FindAt returns the first reference, in slice order, whose span contains
// offset.
func FindAt(refs []Reference, offset int) (Reference, bool) {
	for _, r := range refs {
		if r.Contains(offset) {
			return r, true
		}
	}
	return Reference{}, false
}
