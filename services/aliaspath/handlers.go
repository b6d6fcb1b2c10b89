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
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/aliaspath/services/aliaspath/ast"
	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
	"github.com/AleutianAI/aliaspath/services/aliaspath/index"
)

// requestIDHeader carries a caller-supplied request ID.
const requestIDHeader = "X-Request-ID"

// Handlers holds the HTTP handlers for the alias path service.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers backed by svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the caller's X-Request-ID, or a new UUID.
// The ID is echoed back in the response header.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(requestIDHeader, requestID)
	return requestID
}

// bindJSON binds the request body, writing a 400 on failure.
func bindJSON(c *gin.Context, logger *slog.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Debug("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	return true
}

// openDocument builds the document a request refers to, writing an error
// response when it cannot be read.
func (h *Handlers) openDocument(c *gin.Context, logger *slog.Logger, ref DocumentRef) (*document.Snapshot, bool) {
	if ref.Text != nil {
		return h.svc.NewDocument(ref.DocumentPath, *ref.Text), true
	}
	doc, err := h.svc.LoadDocument(ref.DocumentPath)
	if err == nil {
		return doc, true
	}
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "document not found",
			Code:  "DOCUMENT_NOT_FOUND",
		})
		return nil, false
	}
	logger.Warn("reading document failed",
		slog.String("path", ref.DocumentPath),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error: "document cannot be read",
		Code:  "DOCUMENT_UNREADABLE",
	})
	return nil, false
}

// indexFor returns an index built for doc. Unsaved text always triggers a
// fresh build.
func (h *Handlers) indexFor(c *gin.Context, logger *slog.Logger, ref DocumentRef, doc *document.Snapshot) (*index.SymbolIndex, bool) {
	var (
		idx *index.SymbolIndex
		err error
	)
	if ref.Text != nil {
		idx, err = h.svc.BuildIndex(c.Request.Context(), doc)
	} else {
		idx, err = h.svc.EnsureIndex(c.Request.Context(), doc)
	}
	if err != nil && !errors.Is(err, index.ErrBuildSuperseded) {
		logger.Error("index build failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "index build failed",
			Code:  "INDEX_FAILED",
		})
		return nil, false
	}
	return idx, true
}

// HandleResolve handles POST /v1/aliaspath/resolve.
//
// Description:
//
//	Expands a module specifier through the alias table and extension list
//	of the document's workspace, returning every candidate that exists.
//
// Response:
//
//	200 OK: ResolveResponse (paths may be empty)
//	400 Bad Request: Missing specifier or document_path
func (h *Handlers) HandleResolve(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleResolve")

	var req ResolveRequest
	if !bindJSON(c, logger, &req) {
		return
	}

	paths := h.svc.Resolve(c.Request.Context(), req.Specifier, req.DocumentPath, req.BoundName)
	logger.Debug("resolved",
		slog.String("specifier", req.Specifier),
		slog.Int("candidates", len(paths)),
	)
	c.JSON(http.StatusOK, ResolveResponse{Paths: nonNil(paths)})
}

// HandleImports handles POST /v1/aliaspath/imports.
//
// Response:
//
//	200 OK: ImportsResponse
//	400 Bad Request: Missing document_path
//	404 Not Found: Document does not exist and no text was sent
func (h *Handlers) HandleImports(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleImports")

	var req ImportsRequest
	if !bindJSON(c, logger, &req) {
		return
	}
	doc, ok := h.openDocument(c, logger, req.DocumentRef)
	if !ok {
		return
	}

	refs := h.svc.Imports(doc.Text())
	out := make([]ImportInfo, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ImportInfo{
			Reference:     ref,
			StartPosition: doc.PositionAt(ref.Start),
			EndPosition:   doc.PositionAt(ref.End),
		})
	}
	c.JSON(http.StatusOK, ImportsResponse{DocumentPath: doc.Path(), Imports: out})
}

// HandleSymbols handles POST /v1/aliaspath/symbols.
//
// Description:
//
//	Parses a single file with the parser its extension routes to.
//
// Response:
//
//	200 OK: SymbolsResponse
//	400 Bad Request: Missing document_path
//	404 Not Found: Document does not exist and no text was sent
//	413 Request Entity Too Large: File exceeds the configured size limit
//	422 Unprocessable Entity: Content could not be parsed
func (h *Handlers) HandleSymbols(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSymbols")

	var req SymbolsRequest
	if !bindJSON(c, logger, &req) {
		return
	}
	doc, ok := h.openDocument(c, logger, req.DocumentRef)
	if !ok {
		return
	}

	tokens, err := h.svc.Symbols(c.Request.Context(), doc.Path(), []byte(doc.Text()), req.BoundName)
	if err != nil {
		status, code := http.StatusUnprocessableEntity, "PARSE_FAILED"
		if errors.Is(err, ast.ErrFileTooLarge) {
			status, code = http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
		}
		logger.Info("parse failed", slog.String("path", doc.Path()), slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	c.JSON(http.StatusOK, SymbolsResponse{FilePath: doc.Path(), Tokens: nonNil(tokens)})
}

// HandleIndex handles POST /v1/aliaspath/index.
//
// Description:
//
//	Makes the document active and builds its symbol index synchronously,
//	cancelling any pending debounced build.
//
// Response:
//
//	200 OK: IndexResponse
//	400 Bad Request: Missing document_path
//	404 Not Found: Document does not exist and no text was sent
//	409 Conflict: A newer build superseded this one
//	500 Internal Server Error: Build failed
func (h *Handlers) HandleIndex(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleIndex")

	var req IndexRequest
	if !bindJSON(c, logger, &req) {
		return
	}
	doc, ok := h.openDocument(c, logger, req.DocumentRef)
	if !ok {
		return
	}

	idx, err := h.svc.BuildIndex(c.Request.Context(), doc)
	if errors.Is(err, index.ErrBuildSuperseded) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "build superseded by a newer request",
			Code:  "BUILD_SUPERSEDED",
		})
		return
	}
	if err != nil {
		logger.Error("index build failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "index build failed",
			Code:  "INDEX_FAILED",
		})
		return
	}

	logger.Info("index built",
		slog.String("build_id", idx.BuildID()),
		slog.Int("tokens", idx.Len()),
		slog.Int("files", len(idx.Files())),
	)
	c.JSON(http.StatusOK, IndexResponse{
		BuildID:      idx.BuildID(),
		DocumentPath: idx.DocumentPath(),
		BuiltAtMilli: idx.BuiltAt().UnixMilli(),
		Stats:        idx.Stats(),
		Files:        nonNil(idx.Files()),
		Skipped:      nonNil(idx.Skipped()),
	})
}

// HandleDefinition handles POST /v1/aliaspath/definition.
//
// Description:
//
//	Answers go-to-definition at a position. The document's index is built
//	first when the current one belongs to another document or when unsaved
//	text is supplied.
//
// Response:
//
//	200 OK: DefinitionResponse (locations may be empty)
//	400 Bad Request: Missing document_path or negative position
//	404 Not Found: Document does not exist and no text was sent
func (h *Handlers) HandleDefinition(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleDefinition")

	var req DefinitionRequest
	if !bindJSON(c, logger, &req) {
		return
	}
	doc, ok := h.openDocument(c, logger, req.DocumentRef)
	if !ok {
		return
	}
	idx, ok := h.indexFor(c, logger, req.DocumentRef, doc)
	if !ok {
		return
	}

	pos := document.Position{Line: req.Position.Line, Character: req.Position.Character}
	locs := h.svc.FacadeFor(idx).Definition(c.Request.Context(), doc, pos)
	c.JSON(http.StatusOK, DefinitionResponse{Locations: nonNil(locs)})
}

// HandleComplete handles POST /v1/aliaspath/complete.
//
// Response:
//
//	200 OK: CompleteResponse (items may be empty)
//	400 Bad Request: Missing document_path or negative position
//	404 Not Found: Document does not exist and no text was sent
func (h *Handlers) HandleComplete(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleComplete")

	var req CompleteRequest
	if !bindJSON(c, logger, &req) {
		return
	}
	doc, ok := h.openDocument(c, logger, req.DocumentRef)
	if !ok {
		return
	}
	idx, ok := h.indexFor(c, logger, req.DocumentRef, doc)
	if !ok {
		return
	}

	pos := document.Position{Line: req.Position.Line, Character: req.Position.Character}
	items := h.svc.FacadeFor(idx).Complete(c.Request.Context(), doc, pos)
	c.JSON(http.StatusOK, CompleteResponse{Items: nonNil(items)})
}

// HandleHealth handles GET /v1/aliaspath/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       Version,
		UptimeSeconds: int64(h.svc.Uptime().Seconds()),
		Roots:         nonNil(h.svc.Provider().Roots()),
		ActivePath:    h.svc.Scheduler().ActivePath(),
		IndexTokens:   h.svc.Scheduler().Current().Len(),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
