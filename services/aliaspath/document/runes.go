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

import "unicode/utf8"

// RuneMap translates rune indices into byte offsets for one string.
//
// regexp2 reports match indices in runes; everything else in this module
// speaks byte offsets. For pure-ASCII input the map is the identity and no
// table is allocated.
type RuneMap struct {
	byteAt []int
	length int
}

// NewRuneMap builds a RuneMap for s.
func NewRuneMap(s string) *RuneMap {
	m := &RuneMap{length: len(s)}
	if isASCII(s) {
		return m
	}
	m.byteAt = make([]int, 0, utf8.RuneCountInString(s)+1)
	for i := range s {
		m.byteAt = append(m.byteAt, i)
	}
	m.byteAt = append(m.byteAt, len(s))
	return m
}

// ByteOffset returns the byte offset of the rune at runeIndex.
// Indices past the end map to len(s).
func (m *RuneMap) ByteOffset(runeIndex int) int {
	if runeIndex < 0 {
		return 0
	}
	if m.byteAt == nil {
		if runeIndex > m.length {
			return m.length
		}
		return runeIndex
	}
	if runeIndex >= len(m.byteAt) {
		return m.length
	}
	return m.byteAt[runeIndex]
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
