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
	"os"
	"path/filepath"
	"testing"
)

func TestLineIndex_PositionAt(t *testing.T) {
	text := "import a from 'x'\r\nconst b = 1\n\nlast"
	li := NewLineIndex(text)

	tests := []struct {
		name   string
		offset int
		want   Position
	}{
		{"start", 0, Position{0, 0}},
		{"first line middle", 7, Position{0, 7}},
		{"second line start", 19, Position{1, 0}},
		{"empty line", 31, Position{2, 0}},
		{"last line", 32, Position{3, 0}},
		{"end of text", len(text), Position{3, 4}},
		{"negative clamps", -5, Position{0, 0}},
		{"past end clamps", len(text) + 10, Position{3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := li.PositionAt(tt.offset); got != tt.want {
				t.Errorf("PositionAt(%d) = %+v, want %+v", tt.offset, got, tt.want)
			}
		})
	}
}

func TestLineIndex_OffsetAt(t *testing.T) {
	text := "ab\r\ncd\nef"
	li := NewLineIndex(text)

	tests := []struct {
		name string
		pos  Position
		want int
	}{
		{"origin", Position{0, 0}, 0},
		{"before CR", Position{0, 2}, 2},
		{"past line end clamps before CR", Position{0, 9}, 2},
		{"second line", Position{1, 1}, 5},
		{"last line end", Position{2, 2}, 9},
		{"line past end", Position{7, 0}, len(text)},
		{"negative line", Position{-1, 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := li.OffsetAt(tt.pos); got != tt.want {
				t.Errorf("OffsetAt(%+v) = %d, want %d", tt.pos, got, tt.want)
			}
		})
	}
}

func TestLineIndex_UTF16(t *testing.T) {
	// "é" is 2 bytes / 1 unit, "😀" is 4 bytes / 2 units.
	text := "é😀x"
	li := NewLineIndex(text)

	xOffset := len("é😀")
	pos := li.PositionAt(xOffset)
	if pos != (Position{0, 3}) {
		t.Fatalf("PositionAt(x) = %+v, want {0 3}", pos)
	}
	if got := li.OffsetAt(pos); got != xOffset {
		t.Errorf("OffsetAt(%+v) = %d, want %d", pos, got, xOffset)
	}

	// Offset inside the emoji snaps back to its first byte.
	if got := li.PositionAt(len("é") + 2); got != (Position{0, 1}) {
		t.Errorf("PositionAt(mid-rune) = %+v, want {0 1}", got)
	}
}

func TestLineIndex_LineText(t *testing.T) {
	li := NewLineIndex("one\r\ntwo\n")
	if li.LineCount() != 3 {
		t.Fatalf("LineCount = %d, want 3", li.LineCount())
	}
	if got := li.LineText(0); got != "one" {
		t.Errorf("LineText(0) = %q, want %q", got, "one")
	}
	if got := li.LineText(1); got != "two" {
		t.Errorf("LineText(1) = %q, want %q", got, "two")
	}
	if got := li.LineText(2); got != "" {
		t.Errorf("LineText(2) = %q, want empty", got)
	}
	if got := li.LineText(9); got != "" {
		t.Errorf("LineText(9) = %q, want empty", got)
	}
}

func TestPosition_Before(t *testing.T) {
	if !(Position{0, 5}).Before(Position{1, 0}) {
		t.Error("{0 5} should sort before {1 0}")
	}
	if (Position{1, 2}).Before(Position{1, 2}) {
		t.Error("equal positions must not sort before each other")
	}
}

func TestRuneMap(t *testing.T) {
	ascii := NewRuneMap("abc")
	if got := ascii.ByteOffset(2); got != 2 {
		t.Errorf("ascii ByteOffset(2) = %d, want 2", got)
	}
	if got := ascii.ByteOffset(10); got != 3 {
		t.Errorf("ascii ByteOffset(10) = %d, want 3", got)
	}

	m := NewRuneMap("é😀x")
	want := []int{0, 2, 6, 7}
	for i, w := range want {
		if got := m.ByteOffset(i); got != w {
			t.Errorf("ByteOffset(%d) = %d, want %d", i, got, w)
		}
	}
	if got := m.ByteOffset(-1); got != 0 {
		t.Errorf("ByteOffset(-1) = %d, want 0", got)
	}
}

func TestSnapshotAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.ts")
	if err := os.WriteFile(path, []byte("const a = 1\nexport default a\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := Load(path, dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Path() != path {
		t.Errorf("Path = %q, want %q", snap.Path(), path)
	}
	if snap.WorkspaceRoot() != dir {
		t.Errorf("WorkspaceRoot = %q, want %q", snap.WorkspaceRoot(), dir)
	}
	if got := snap.PositionAt(snap.OffsetAt(Position{1, 7})); got != (Position{1, 7}) {
		t.Errorf("round trip = %+v", got)
	}

	if _, err := Load(filepath.Join(dir, "missing.ts"), dir); err == nil {
		t.Error("Load of missing file should fail")
	}
}
