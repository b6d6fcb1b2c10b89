// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lookup

import (
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

const matchTimeout = time.Second

var (
	// literalPattern matches a single- or double-quoted string on one line.
	literalPattern = mustCompile(`(['"])(.+?)\1`)

	// wordPattern matches identifier-like words, hyphens included so that
	// template tags such as my-component are taken whole.
	wordPattern = mustCompile(`[$_a-zA-Z]+[\w_-]*`)
)

func mustCompile(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.None)
	re.MatchTimeout = matchTimeout
	return re
}

// span is a match on one line, in byte offsets of the full text.
type span struct {
	start int
	end   int
	text  string

	// inner is group 2 of a literal match: the text between the quotes.
	inner string
}

// lineAt returns the line containing offset and the line's start offset.
func lineAt(text string, offset int) (string, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text)
	} else {
		end += offset
	}
	return strings.TrimSuffix(text[start:end], "\r"), start
}

// matchAt returns the first match of re on offset's line whose range
// contains offset, bounds inclusive.
func matchAt(re *regexp2.Regexp, text string, offset int) (span, bool) {
	line, lineStart := lineAt(text, offset)
	cursor := offset - lineStart
	runes := document.NewRuneMap(line)

	m, err := re.FindStringMatch(line)
	for m != nil && err == nil {
		start := runes.ByteOffset(m.Index)
		end := runes.ByteOffset(m.Index + m.Length)
		if start <= cursor && cursor <= end {
			s := span{start: lineStart + start, end: lineStart + end, text: m.String()}
			if g := m.GroupByNumber(2); g != nil {
				s.inner = g.String()
			}
			return s, true
		}
		if start > cursor {
			break
		}
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		slog.Debug("word scan aborted", slog.String("error", err.Error()))
	}
	return span{}, false
}

// HyphenToPascal converts hyphen-case to PascalCase: the first character and
// every character following a hyphen are upper-cased and the hyphens
// dropped.
//
// Example:
//
//	HyphenToPascal("my-component") // "MyComponent"
func HyphenToPascal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	upper := true
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r == '-' && !upper && len(s) > 0 {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
