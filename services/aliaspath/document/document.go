// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package document models the "active document" an editor host hands to the
// resolution engine: its full text, its filesystem path, the workspace root it
// belongs to, and conversions between cursor positions and byte offsets.
package document

import (
	"fmt"
	"os"
	"path/filepath"
)

// Document is the host-supplied view of an open text document.
type Document interface {
	// Path returns the absolute filesystem path of the document.
	Path() string

	// Text returns the full current text.
	Text() string

	// WorkspaceRoot returns the absolute path of the workspace folder that
	// contains the document, or "" when it belongs to none.
	WorkspaceRoot() string

	// OffsetAt converts a cursor position into a byte offset into Text().
	OffsetAt(pos Position) int

	// PositionAt converts a byte offset into a cursor position.
	PositionAt(offset int) Position
}

// Snapshot is an immutable Document.
//
// Thread Safety:
//
//	Snapshot is safe for concurrent use.
type Snapshot struct {
	path  string
	root  string
	text  string
	lines *LineIndex
}

// NewSnapshot creates a Snapshot. path and root are cleaned and made absolute
// when possible.
func NewSnapshot(path, root, text string) *Snapshot {
	return &Snapshot{
		path:  absClean(path),
		root:  absClean(root),
		text:  text,
		lines: NewLineIndex(text),
	}
}

// Load reads path from disk and returns a Snapshot of it.
func Load(path, root string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", path, err)
	}
	return NewSnapshot(path, root, string(data)), nil
}

// Path implements Document.
func (s *Snapshot) Path() string { return s.path }

// Text implements Document.
func (s *Snapshot) Text() string { return s.text }

// WorkspaceRoot implements Document.
func (s *Snapshot) WorkspaceRoot() string { return s.root }

// OffsetAt implements Document.
func (s *Snapshot) OffsetAt(pos Position) int { return s.lines.OffsetAt(pos) }

// PositionAt implements Document.
func (s *Snapshot) PositionAt(offset int) Position { return s.lines.PositionAt(offset) }

// Lines exposes the snapshot's LineIndex.
func (s *Snapshot) Lines() *LineIndex { return s.lines }

func absClean(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
