// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve turns import specifiers into existing files on disk using a
// configurable alias table.
package resolve

import "strings"

// CwdPlaceholder is replaced with the workspace root inside alias values.
const CwdPlaceholder = "${cwd}"

// Alias maps one alias key to its replacement path.
type Alias struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Rules is the subset of resolution configuration the resolver consumes.
//
// Extensions and IgnoredExtensions are stored without a leading dot.
type Rules struct {
	// Aliases are tried in order; every entry is applied to every specifier.
	Aliases []Alias

	// Extensions are probed when a substituted path has no extension.
	Extensions []string

	// IgnoredExtensions are stripped from a substituted path before probing.
	IgnoredExtensions []string

	// Exclude lists glob patterns; a match removes a candidate.
	Exclude []string
}

// Request carries the per-lookup context of a resolution.
type Request struct {
	// DocumentPath is the referencing document; relative results are
	// resolved against its directory.
	DocumentPath string

	// WorkspaceRoot substitutes CwdPlaceholder and anchors relative globs.
	WorkspaceRoot string

	// BoundName is carried through to every ResolvedPath.
	BoundName string
}

// ResolvedPath is an existing regular file a specifier resolved to.
type ResolvedPath struct {
	Path      string `json:"path"`
	BoundName string `json:"bound_name,omitempty"`
}

// TrimExt normalises an extension list entry: leading dots are dropped and
// empty entries rejected.
func TrimExt(ext string) string {
	return strings.TrimLeft(strings.TrimSpace(ext), ".")
}
