// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aliaspath

import (
	"github.com/AleutianAI/aliaspath/services/aliaspath/ast"
	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
	"github.com/AleutianAI/aliaspath/services/aliaspath/imports"
	"github.com/AleutianAI/aliaspath/services/aliaspath/index"
	"github.com/AleutianAI/aliaspath/services/aliaspath/lookup"
	"github.com/AleutianAI/aliaspath/services/aliaspath/resolve"
)

// =============================================================================
// REQUESTS
// =============================================================================

// DocumentRef names a document and, optionally, its unsaved text.
//
// When Text is nil the document is read from disk.
type DocumentRef struct {
	// DocumentPath is the document's file path.
	DocumentPath string `json:"document_path" binding:"required"`

	// Text is the in-memory content, overriding the file on disk.
	Text *string `json:"text,omitempty"`
}

// PositionRequest is a zero-based line and UTF-16 character.
type PositionRequest struct {
	Line      int `json:"line" binding:"gte=0"`
	Character int `json:"character" binding:"gte=0"`
}

// ResolveRequest is the request body for POST /v1/aliaspath/resolve.
type ResolveRequest struct {
	// Specifier is the module specifier, e.g. "@/components/Button".
	Specifier string `json:"specifier" binding:"required"`

	// DocumentPath is the file containing the specifier.
	DocumentPath string `json:"document_path" binding:"required"`

	// BoundName is the local name the import binds, if any.
	BoundName string `json:"bound_name,omitempty"`
}

// ImportsRequest is the request body for POST /v1/aliaspath/imports.
type ImportsRequest struct {
	DocumentRef
}

// SymbolsRequest is the request body for POST /v1/aliaspath/symbols.
type SymbolsRequest struct {
	DocumentRef

	// BoundName renames the file's default export.
	BoundName string `json:"bound_name,omitempty"`
}

// IndexRequest is the request body for POST /v1/aliaspath/index.
type IndexRequest struct {
	DocumentRef
}

// DefinitionRequest is the request body for POST /v1/aliaspath/definition.
type DefinitionRequest struct {
	DocumentRef

	Position PositionRequest `json:"position"`
}

// CompleteRequest is the request body for POST /v1/aliaspath/complete.
type CompleteRequest struct {
	DocumentRef

	Position PositionRequest `json:"position"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ResolveResponse lists the existing files a specifier resolves to.
type ResolveResponse struct {
	Paths []resolve.ResolvedPath `json:"paths"`
}

// ImportInfo is one import reference with its span as positions.
type ImportInfo struct {
	imports.Reference

	StartPosition document.Position `json:"start_position"`
	EndPosition   document.Position `json:"end_position"`
}

// ImportsResponse lists a document's module references.
type ImportsResponse struct {
	DocumentPath string       `json:"document_path"`
	Imports      []ImportInfo `json:"imports"`
}

// SymbolsResponse lists the tokens of one file.
type SymbolsResponse struct {
	FilePath string            `json:"file_path"`
	Tokens   []ast.SymbolToken `json:"tokens"`
}

// IndexResponse summarises a completed index build.
type IndexResponse struct {
	BuildID      string              `json:"build_id"`
	DocumentPath string              `json:"document_path"`
	BuiltAtMilli int64               `json:"built_at_milli"`
	Stats        index.IndexStats    `json:"stats"`
	Files        []string            `json:"files"`
	Skipped      []index.SkippedFile `json:"skipped"`
}

// DefinitionResponse lists definition targets.
type DefinitionResponse struct {
	Locations []lookup.Location `json:"locations"`
}

// CompleteResponse lists completion candidates.
type CompleteResponse struct {
	Items []lookup.CompletionItem `json:"items"`
}

// HealthResponse is returned by GET /v1/aliaspath/health.
type HealthResponse struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Roots         []string `json:"roots"`
	ActivePath    string   `json:"active_path,omitempty"`
	IndexTokens   int      `json:"index_tokens"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
