// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lsp serves alias path resolution to editors over the Language
// Server Protocol.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/aliaspath/services/aliaspath"
	"github.com/AleutianAI/aliaspath/services/aliaspath/config"
	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
	"github.com/AleutianAI/aliaspath/services/aliaspath/lookup"
)

const (
	methodInitialize       = "initialize"
	methodInitialized      = "initialized"
	methodShutdown         = "shutdown"
	methodExit             = "exit"
	methodDidOpen          = "textDocument/didOpen"
	methodDidChange        = "textDocument/didChange"
	methodDidClose         = "textDocument/didClose"
	methodDidChangeConfig  = "workspace/didChangeConfiguration"
	methodDidChangeFolders = "workspace/didChangeWorkspaceFolders"
	methodDefinition       = "textDocument/definition"
	methodCompletion       = "textDocument/completion"
)

// openDocument is the editor's copy of a document.
type openDocument struct {
	path       string
	languageID string
	version    int
	text       string
}

// Server is a language server backed by one Service.
//
// Description:
//
//	Messages are handled one at a time in arrival order. Opening or editing
//	a document in an active language makes it the active document and
//	schedules an index rebuild; definition and completion answer from the
//	index of the document they are asked about, building it first when the
//	published index belongs to another document.
//
// Thread Safety:
//
//	Serve must be called once. The server state is guarded for use by
//	the Service's background callbacks.
type Server struct {
	svc  *aliaspath.Service
	conn *Conn

	mu          sync.Mutex
	docs        map[string]*openDocument
	initialized bool
	shutdown    bool
}

// NewServer creates a server answering on conn.
func NewServer(svc *aliaspath.Service, conn *Conn) *Server {
	return &Server{
		svc:  svc,
		conn: conn,
		docs: make(map[string]*openDocument),
	}
}

// Serve reads and handles messages until "exit" or the end of the stream.
//
// Outputs:
//
//	error - nil after shutdown and exit, or when the stream ends;
//	        ErrExitWithoutShutdown; or a framing or write error.
func (s *Server) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := s.conn.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var msg Message
		if err := json.Unmarshal(body, &msg); err != nil {
			slog.Debug("dropping malformed message", slog.String("error", err.Error()))
			if werr := s.conn.Write(Response{
				JSONRPC: "2.0",
				ID:      json.RawMessage("null"),
				Error:   &ResponseError{Code: CodeParseError, Message: err.Error()},
			}); werr != nil {
				return werr
			}
			continue
		}

		if msg.Method == methodExit {
			s.mu.Lock()
			clean := s.shutdown
			s.mu.Unlock()
			if clean {
				return nil
			}
			return ErrExitWithoutShutdown
		}
		if err := s.handle(ctx, msg); err != nil {
			return err
		}
	}
}

// handle dispatches msg and writes the response for requests.
func (s *Server) handle(ctx context.Context, msg Message) error {
	ctx, span := startMessageSpan(ctx, msg)
	defer span.End()
	start := time.Now()

	result, rerr := s.dispatch(ctx, msg)
	finishMessage(span, msg.Method, start, rerr)
	if !msg.IsRequest() {
		if rerr != nil {
			slog.Debug("notification failed",
				slog.String("method", msg.Method),
				slog.String("error", rerr.Message),
			)
		}
		return nil
	}

	resp := Response{JSONRPC: "2.0", ID: msg.ID}
	if rerr != nil {
		resp.Error = rerr
	} else {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = &ResponseError{Code: CodeInternalError, Message: err.Error()}
		} else {
			resp.Result = raw
		}
	}
	return s.conn.Write(resp)
}

func (s *Server) dispatch(ctx context.Context, msg Message) (any, *ResponseError) {
	s.mu.Lock()
	initialized, shutdown := s.initialized, s.shutdown
	s.mu.Unlock()

	if !initialized && msg.Method != methodInitialize {
		if msg.IsRequest() {
			return nil, &ResponseError{Code: CodeServerNotInitialized, Message: "server not initialized"}
		}
		return nil, nil
	}
	if shutdown {
		return nil, &ResponseError{Code: CodeInvalidRequest, Message: ErrShutdown.Error()}
	}

	switch msg.Method {
	case methodInitialize:
		return s.onInitialize(msg.Params)
	case methodInitialized:
		return nil, nil
	case methodShutdown:
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil

	case methodDidOpen:
		return nil, s.onDidOpen(msg.Params)
	case methodDidChange:
		return nil, s.onDidChange(msg.Params)
	case methodDidClose:
		return nil, s.onDidClose(msg.Params)
	case methodDidChangeConfig:
		return nil, s.onDidChangeConfiguration(msg.Params)
	case methodDidChangeFolders:
		return nil, s.onDidChangeWorkspaceFolders(msg.Params)

	case methodDefinition:
		return s.onDefinition(ctx, msg.Params)
	case methodCompletion:
		return s.onCompletion(ctx, msg.Params)
	}

	if msg.IsRequest() {
		return nil, &ResponseError{Code: CodeMethodNotFound, Message: "method not found: " + msg.Method}
	}
	return nil, nil
}

func invalidParams(err error) *ResponseError {
	return &ResponseError{Code: CodeInvalidParams, Message: err.Error()}
}

func unmarshalParams(raw json.RawMessage, v any) *ResponseError {
	if len(raw) == 0 {
		return invalidParams(errors.New("missing params"))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidParams(err)
	}
	return nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (s *Server) onInitialize(raw json.RawMessage) (any, *ResponseError) {
	var params InitializeParams
	if rerr := unmarshalParams(raw, &params); rerr != nil {
		return nil, rerr
	}

	roots := workspaceRoots(params)
	s.svc.SetWorkspaceRoots(roots)
	if len(params.InitializationOptions) > 0 {
		host, err := parseSettings(params.InitializationOptions)
		if err != nil {
			slog.Warn("ignoring invalid initialization options", slog.String("error", err.Error()))
		} else {
			s.svc.SetHostSettings(host)
		}
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	slog.Info("language server initialized", slog.Any("roots", roots))

	return InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync:   SyncIncremental,
			DefinitionProvider: true,
			CompletionProvider: &CompletionOptions{},
			Workspace: &WorkspaceServerCapabilities{
				WorkspaceFolders: WorkspaceFoldersServerCapabilities{Supported: true, ChangeNotifications: true},
			},
		},
		ServerInfo: ServerInfo{Name: "aliaspath", Version: aliaspath.Version},
	}, nil
}

// workspaceRoots prefers workspace folders, then rootUri, then rootPath.
func workspaceRoots(params InitializeParams) []string {
	var roots []string
	for _, f := range params.WorkspaceFolders {
		if p, err := URIToPath(f.URI); err == nil {
			roots = append(roots, p)
		}
	}
	if len(roots) > 0 {
		return roots
	}
	if params.RootURI != "" {
		if p, err := URIToPath(params.RootURI); err == nil {
			return []string{p}
		}
	}
	if params.RootPath != "" {
		return []string{params.RootPath}
	}
	return nil
}

// parseSettings decodes host settings. Editors send either the flat form
// ({"files.exclude": {...}}) or the nested form ({"files": {"exclude":
// {...}}}); both are accepted.
func parseSettings(raw json.RawMessage) (config.HostSettings, error) {
	host, err := config.ParseHostSettingsJSON(raw)
	if err != nil {
		return config.HostSettings{}, err
	}
	var nested struct {
		Files *struct {
			Exclude map[string]bool `json:"exclude"`
		} `json:"files"`
		Search *struct {
			Exclude map[string]bool `json:"exclude"`
		} `json:"search"`
	}
	if err := json.Unmarshal(raw, &nested); err != nil {
		return host, nil
	}
	if host.FilesExclude == nil && nested.Files != nil {
		host.FilesExclude = nested.Files.Exclude
	}
	if host.SearchExclude == nil && nested.Search != nil {
		host.SearchExclude = nested.Search.Exclude
	}
	return host, nil
}

// =============================================================================
// TEXT SYNCHRONISATION
// =============================================================================

func (s *Server) onDidOpen(raw json.RawMessage) *ResponseError {
	var params DidOpenTextDocumentParams
	if rerr := unmarshalParams(raw, &params); rerr != nil {
		return rerr
	}
	item := params.TextDocument
	path, err := URIToPath(item.URI)
	if err != nil {
		return invalidParams(err)
	}

	doc := openDocument{path: path, languageID: item.LanguageID, version: item.Version, text: item.Text}
	s.mu.Lock()
	s.docs[item.URI] = &doc
	s.mu.Unlock()

	s.activate(doc)
	return nil
}

func (s *Server) onDidChange(raw json.RawMessage) *ResponseError {
	var params DidChangeTextDocumentParams
	if rerr := unmarshalParams(raw, &params); rerr != nil {
		return rerr
	}

	s.mu.Lock()
	doc, ok := s.docs[params.TextDocument.URI]
	if !ok {
		s.mu.Unlock()
		return invalidParams(fmt.Errorf("document not open: %s", params.TextDocument.URI))
	}
	doc.text = applyChanges(doc.text, params.ContentChanges)
	doc.version = params.TextDocument.Version
	cp := *doc
	s.mu.Unlock()

	s.activate(cp)
	return nil
}

func (s *Server) onDidClose(raw json.RawMessage) *ResponseError {
	var params DidCloseTextDocumentParams
	if rerr := unmarshalParams(raw, &params); rerr != nil {
		return rerr
	}

	s.mu.Lock()
	doc, ok := s.docs[params.TextDocument.URI]
	delete(s.docs, params.TextDocument.URI)
	s.mu.Unlock()

	if ok {
		s.svc.Deactivate(doc.path)
	}
	return nil
}

// activate schedules an index build when doc's language is active.
func (s *Server) activate(doc openDocument) {
	if !s.svc.Config(doc.path).IsActiveLanguage(doc.languageID, doc.path) {
		return
	}
	s.svc.Activate(s.svc.NewDocument(doc.path, doc.text))
}

// applyChanges applies edits in order. A change without a range replaces
// the whole text.
func applyChanges(text string, changes []TextDocumentContentChangeEvent) string {
	for _, ch := range changes {
		if ch.Range == nil {
			text = ch.Text
			continue
		}
		lines := document.NewLineIndex(text)
		start := lines.OffsetAt(ch.Range.Start)
		end := lines.OffsetAt(ch.Range.End)
		if end < start {
			start, end = end, start
		}
		text = text[:start] + ch.Text + text[end:]
	}
	return text
}

// =============================================================================
// WORKSPACE
// =============================================================================

func (s *Server) onDidChangeConfiguration(raw json.RawMessage) *ResponseError {
	var params DidChangeConfigurationParams
	if rerr := unmarshalParams(raw, &params); rerr != nil {
		return rerr
	}
	host, err := parseSettings(params.Settings)
	if err != nil {
		return invalidParams(err)
	}
	s.svc.SetHostSettings(host)
	return nil
}

func (s *Server) onDidChangeWorkspaceFolders(raw json.RawMessage) *ResponseError {
	var params DidChangeWorkspaceFoldersParams
	if rerr := unmarshalParams(raw, &params); rerr != nil {
		return rerr
	}

	removed := make(map[string]struct{}, len(params.Event.Removed))
	for _, f := range params.Event.Removed {
		if p, err := URIToPath(f.URI); err == nil {
			removed[p] = struct{}{}
		}
	}
	var roots []string
	for _, r := range s.svc.Provider().Roots() {
		if _, gone := removed[r]; !gone {
			roots = append(roots, r)
		}
	}
	for _, f := range params.Event.Added {
		if p, err := URIToPath(f.URI); err == nil {
			roots = append(roots, p)
		}
	}
	s.svc.SetWorkspaceRoots(roots)
	return nil
}

// =============================================================================
// FEATURES
// =============================================================================

// documentAt returns the editor's copy of uri, or the file on disk, and
// reports whether the feature is enabled for it.
func (s *Server) documentAt(uri string) (*document.Snapshot, bool, *ResponseError) {
	path, err := URIToPath(uri)
	if err != nil {
		return nil, false, invalidParams(err)
	}

	s.mu.Lock()
	open, ok := s.docs[uri]
	var text, languageID string
	if ok {
		text, languageID = open.text, open.languageID
	}
	s.mu.Unlock()

	if !s.svc.Config(path).IsActiveLanguage(languageID, path) {
		return nil, false, nil
	}
	if ok {
		return s.svc.NewDocument(path, text), true, nil
	}
	doc, err := s.svc.LoadDocument(path)
	if err != nil {
		return nil, false, invalidParams(err)
	}
	return doc, true, nil
}

// facadeFor returns a facade over an index built for doc.
func (s *Server) facadeFor(ctx context.Context, doc *document.Snapshot) (*lookup.Facade, *ResponseError) {
	idx, err := s.svc.EnsureIndex(ctx, doc)
	if err != nil && idx == nil {
		return nil, &ResponseError{Code: CodeInternalError, Message: err.Error()}
	}
	return s.svc.FacadeFor(idx), nil
}

func (s *Server) onDefinition(ctx context.Context, raw json.RawMessage) (any, *ResponseError) {
	var params TextDocumentPositionParams
	if rerr := unmarshalParams(raw, &params); rerr != nil {
		return nil, rerr
	}
	doc, enabled, rerr := s.documentAt(params.TextDocument.URI)
	if rerr != nil || !enabled {
		return nil, rerr
	}
	facade, rerr := s.facadeFor(ctx, doc)
	if rerr != nil {
		return nil, rerr
	}

	found := facade.Definition(ctx, doc, params.Position)
	out := make([]Location, 0, len(found))
	for _, loc := range found {
		out = append(out, Location{
			URI:   PathToURI(loc.FilePath),
			Range: Range{Start: loc.Start, End: loc.End},
		})
	}
	return out, nil
}

func (s *Server) onCompletion(ctx context.Context, raw json.RawMessage) (any, *ResponseError) {
	var params TextDocumentPositionParams
	if rerr := unmarshalParams(raw, &params); rerr != nil {
		return nil, rerr
	}
	doc, enabled, rerr := s.documentAt(params.TextDocument.URI)
	if rerr != nil || !enabled {
		return nil, rerr
	}
	facade, rerr := s.facadeFor(ctx, doc)
	if rerr != nil {
		return nil, rerr
	}

	found := facade.Complete(ctx, doc, params.Position)
	out := make([]CompletionItem, 0, len(found))
	for _, item := range found {
		kind := CompletionItemKindVariable
		if item.Detail == lookup.FrameworkDetail {
			kind = CompletionItemKindKeyword
		}
		out = append(out, CompletionItem{
			Label:         item.Keyword,
			Kind:          kind,
			Detail:        item.Detail,
			Documentation: item.Detail,
		})
	}
	return out, nil
}
