// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index builds and publishes the symbol index of the active
// document: every exported binding and selector reachable through the
// document's direct imports.
package index

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/aliaspath/services/aliaspath/ast"
)

// searchCheckInterval is how often Search checks for context cancellation.
const searchCheckInterval = 1000

// SkipReason says why a resolved file contributed no tokens.
type SkipReason string

const (
	SkipMissing    SkipReason = "missing"
	SkipNotRegular SkipReason = "not_regular"
	SkipTooLarge   SkipReason = "too_large"
	SkipUnreadable SkipReason = "unreadable"
	SkipParseError SkipReason = "parse_error"
	SkipPanic      SkipReason = "panic"
)

// SkippedFile records a file left out of a build.
type SkippedFile struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
}

// IndexStats contains statistics about a symbol index.
type IndexStats struct {
	// TotalTokens is the number of tokens in the index.
	TotalTokens int `json:"total_tokens"`

	// ByKind maps each TokenKind to its token count.
	ByKind map[ast.TokenKind]int `json:"by_kind"`

	// FileCount is the number of files that were parsed.
	FileCount int `json:"file_count"`

	// SkippedCount is the number of resolved files left out.
	SkippedCount int `json:"skipped_count"`
}

// SymbolIndex is one finished build.
//
// Description:
//
//	Tokens are kept in build order: files in discovery order, each file's
//	tokens by start offset. Keyword and file lookups go through secondary
//	indexes built once at construction.
//
// Thread Safety:
//
//	Immutable after construction; safe for concurrent use. A nil
//	*SymbolIndex behaves as an empty index.
type SymbolIndex struct {
	buildID      string
	documentPath string
	builtAt      time.Time

	tokens  []ast.SymbolToken
	files   []string
	skipped []SkippedFile

	byKeyword map[string][]int
	byFile    map[string][]int
	byKind    map[ast.TokenKind]int
}

// newSymbolIndex takes ownership of tokens, files and skipped.
func newSymbolIndex(documentPath string, tokens []ast.SymbolToken, files []string, skipped []SkippedFile) *SymbolIndex {
	idx := &SymbolIndex{
		buildID:      uuid.NewString(),
		documentPath: documentPath,
		builtAt:      time.Now(),
		tokens:       tokens,
		files:        files,
		skipped:      skipped,
		byKeyword:    make(map[string][]int),
		byFile:       make(map[string][]int),
		byKind:       make(map[ast.TokenKind]int),
	}
	for i, tok := range tokens {
		idx.byKeyword[tok.Keyword] = append(idx.byKeyword[tok.Keyword], i)
		idx.byFile[tok.FilePath] = append(idx.byFile[tok.FilePath], i)
		idx.byKind[tok.Kind]++
	}
	return idx
}

// BuildID uniquely identifies the build that produced the index.
func (idx *SymbolIndex) BuildID() string {
	if idx == nil {
		return ""
	}
	return idx.buildID
}

// DocumentPath is the active document the index was built for.
func (idx *SymbolIndex) DocumentPath() string {
	if idx == nil {
		return ""
	}
	return idx.documentPath
}

// BuiltAt is when the build finished.
func (idx *SymbolIndex) BuiltAt() time.Time {
	if idx == nil {
		return time.Time{}
	}
	return idx.builtAt
}

// Len returns the number of tokens.
func (idx *SymbolIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.tokens)
}

// Tokens returns a copy of every token in build order.
func (idx *SymbolIndex) Tokens() []ast.SymbolToken {
	if idx == nil {
		return nil
	}
	return append([]ast.SymbolToken(nil), idx.tokens...)
}

// Files returns the files that were parsed, in discovery order.
func (idx *SymbolIndex) Files() []string {
	if idx == nil {
		return nil
	}
	return append([]string(nil), idx.files...)
}

// Skipped returns the resolved files left out of the build.
func (idx *SymbolIndex) Skipped() []SkippedFile {
	if idx == nil {
		return nil
	}
	return append([]SkippedFile(nil), idx.skipped...)
}

// Lookup returns every token whose keyword equals keyword exactly, in build
// order. Multiple matches are normal.
func (idx *SymbolIndex) Lookup(keyword string) []ast.SymbolToken {
	if idx == nil {
		return nil
	}
	return idx.collect(idx.byKeyword[keyword])
}

// ByFile returns the tokens that came from filePath.
func (idx *SymbolIndex) ByFile(filePath string) []ast.SymbolToken {
	if idx == nil {
		return nil
	}
	return idx.collect(idx.byFile[filePath])
}

func (idx *SymbolIndex) collect(positions []int) []ast.SymbolToken {
	if len(positions) == 0 {
		return nil
	}
	out := make([]ast.SymbolToken, len(positions))
	for i, p := range positions {
		out[i] = idx.tokens[p]
	}
	return out
}

// Search finds tokens whose keyword contains query, ignoring case.
//
// Description:
//
//	Exact matches rank first, then prefix matches, then other substring
//	matches. Ties keep build order. An empty query matches nothing.
//
// Inputs:
//
//	ctx - Checked periodically while scanning.
//	query - Substring to look for.
//	limit - Maximum results; zero or negative means no limit.
//
// Outputs:
//
//	[]ast.SymbolToken - Matching tokens, best first.
//	error - Non-nil only if ctx is done.
func (idx *SymbolIndex) Search(ctx context.Context, query string, limit int) ([]ast.SymbolToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx == nil || query == "" {
		return nil, nil
	}
	queryLower := strings.ToLower(query)

	type scored struct {
		pos   int
		score int
	}
	var results []scored
	for i, tok := range idx.tokens {
		if i > 0 && i%searchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if score := matchScore(queryLower, strings.ToLower(tok.Keyword)); score >= 0 {
			results = append(results, scored{pos: i, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score < results[j].score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]ast.SymbolToken, len(results))
	for i, r := range results {
		out[i] = idx.tokens[r.pos]
	}
	return out, nil
}

// matchScore ranks a lowercase keyword against a lowercase query. Lower is
// better; -1 means no match.
func matchScore(query, keyword string) int {
	switch {
	case keyword == query:
		return 0
	case strings.HasPrefix(keyword, query):
		return 1
	case strings.Contains(keyword, query):
		return 2
	default:
		return -1
	}
}

// Stats returns counts describing the index.
func (idx *SymbolIndex) Stats() IndexStats {
	if idx == nil {
		return IndexStats{ByKind: map[ast.TokenKind]int{}}
	}
	byKind := make(map[ast.TokenKind]int, len(idx.byKind))
	for k, v := range idx.byKind {
		byKind[k] = v
	}
	return IndexStats{
		TotalTokens:  len(idx.tokens),
		ByKind:       byKind,
		FileCount:    len(idx.files),
		SkippedCount: len(idx.skipped),
	}
}
