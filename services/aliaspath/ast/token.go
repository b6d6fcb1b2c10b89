// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast extracts named, positioned symbol tokens from script and
// stylesheet sources using tree-sitter.
//
// Both parsers produce the same SymbolToken shape so the index can treat a
// `.foo` selector and an `export const foo` binding uniformly.
package ast

import (
	"sort"

	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

// TokenKind discriminates which parser produced a token.
type TokenKind string

const (
	// TokenKindScript marks exported bindings from JS/TS sources.
	TokenKindScript TokenKind = "script"

	// TokenKindStyle marks class, id and type selectors from stylesheets.
	TokenKindStyle TokenKind = "style"
)

// SymbolToken is one named symbol at a source location.
//
// StartOffset and EndOffset are byte offsets into the file's full text.
// Start and End are the matching zero-based positions with UTF-16 columns.
type SymbolToken struct {
	FilePath    string            `json:"file_path"`
	Keyword     string            `json:"keyword"`
	Start       document.Position `json:"start"`
	End         document.Position `json:"end"`
	StartOffset int               `json:"start_offset"`
	EndOffset   int               `json:"end_offset"`
	Kind        TokenKind         `json:"kind"`
}

// tokenSet collects tokens for one file, dropping any token whose start
// offset was already taken. The first writer wins.
type tokenSet struct {
	filePath string
	kind     TokenKind
	lines    *document.LineIndex
	seen     map[int]struct{}
	tokens   []SymbolToken
}

func newTokenSet(filePath string, kind TokenKind, lines *document.LineIndex) *tokenSet {
	return &tokenSet{
		filePath: filePath,
		kind:     kind,
		lines:    lines,
		seen:     make(map[int]struct{}),
	}
}

// add records keyword over the byte span [start, end). Empty keywords are
// ignored.
func (s *tokenSet) add(keyword string, start, end int) {
	if keyword == "" {
		return
	}
	if _, dup := s.seen[start]; dup {
		return
	}
	s.seen[start] = struct{}{}
	s.tokens = append(s.tokens, SymbolToken{
		FilePath:    s.filePath,
		Keyword:     keyword,
		Start:       s.lines.PositionAt(start),
		End:         s.lines.PositionAt(end),
		StartOffset: start,
		EndOffset:   end,
		Kind:        s.kind,
	})
}

// sorted returns the tokens ordered by start offset.
func (s *tokenSet) sorted() []SymbolToken {
	sort.SliceStable(s.tokens, func(i, j int) bool {
		return s.tokens[i].StartOffset < s.tokens[j].StartOffset
	})
	return s.tokens
}
