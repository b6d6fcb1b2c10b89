// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package document

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Position is a zero-based line/character pair.
//
// Character is measured in UTF-16 code units, matching the convention editor
// hosts use on the wire.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p sorts strictly before other.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// LineIndex converts between byte offsets and Positions for one text.
//
// Description:
//
//	Built once per text by recording the byte offset where every line starts.
//	Conversions are O(log lines) to find the line plus a walk over that
//	line's runes to convert between bytes and UTF-16 units.
//
// Thread Safety:
//
//	LineIndex is immutable after construction and safe for concurrent use.
type LineIndex struct {
	text   string
	starts []int
}

// NewLineIndex builds a LineIndex for text.
func NewLineIndex(text string) *LineIndex {
	starts := make([]int, 1, strings.Count(text, "\n")+1)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// LineCount returns the number of lines, counting a trailing empty line.
func (li *LineIndex) LineCount() int {
	return len(li.starts)
}

// LineStart returns the byte offset of the first byte of line.
// Out-of-range lines are clamped.
func (li *LineIndex) LineStart(line int) int {
	if line < 0 {
		return 0
	}
	if line >= len(li.starts) {
		return len(li.text)
	}
	return li.starts[line]
}

// lineEnd returns the byte offset just past the last content byte of line,
// excluding the line terminator.
func (li *LineIndex) lineEnd(line int) int {
	end := len(li.text)
	if line+1 < len(li.starts) {
		end = li.starts[line+1] - 1
	}
	if end > li.LineStart(line) && li.text[end-1] == '\r' {
		end--
	}
	return end
}

// LineText returns the content of line without its terminator.
func (li *LineIndex) LineText(line int) string {
	if line < 0 || line >= len(li.starts) {
		return ""
	}
	return li.text[li.starts[line]:li.lineEnd(line)]
}

// PositionAt converts a byte offset into a Position.
//
// Offsets are clamped to [0, len(text)]. An offset that falls inside a
// multi-byte rune is treated as the start of that rune.
func (li *LineIndex) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.text) {
		offset = len(li.text)
	}
	for offset > 0 && offset < len(li.text) && !utf8.RuneStart(li.text[offset]) {
		offset--
	}
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line, Character: utf16Len(li.text[li.starts[line]:offset])}
}

// OffsetAt converts a Position into a byte offset.
//
// Characters beyond the end of the line clamp to the line end; lines beyond
// the end of the text clamp to len(text).
func (li *LineIndex) OffsetAt(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(li.starts) {
		return len(li.text)
	}
	start := li.starts[pos.Line]
	end := li.lineEnd(pos.Line)
	units := 0
	for i := start; i < end; {
		if units >= pos.Character {
			return i
		}
		r, size := utf8.DecodeRuneInString(li.text[i:end])
		units += runeUTF16Len(r)
		i += size
	}
	return end
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += runeUTF16Len(r)
	}
	return n
}

func runeUTF16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
