// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

// ScriptParserOption configures a ScriptParser instance.
type ScriptParserOption func(*ScriptParser)

// WithScriptMaxFileSize sets the maximum content size the parser will accept.
//
// Example:
//
//	parser := NewScriptParser(WithScriptMaxFileSize(2 * 1024 * 1024))
func WithScriptMaxFileSize(bytes int) ScriptParserOption {
	return func(p *ScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// ScriptParser extracts exported bindings from JavaScript, TypeScript and
// embedded component scripts.
//
// Description:
//
//	The whole file is parsed once with a grammar chosen by extension, then
//	every <script> block found in the text is parsed again on its own with
//	the TSX grammar. Tokens from all passes share one offset space (the
//	full file) and are deduplicated by start offset.
//
//	Exported bindings recognised:
//	  - export <declaration>: one token per bound name
//	  - export default <declaration|value>: one token keyed by boundName
//	  - export { a, b as c }, export * as ns: one token per exported name
//	  - export = value: one token keyed by boundName
//	  - module.exports = value: one token keyed by boundName, plus one per
//	    property when value is an object literal
//	  - exports.x = value, module.exports.x = value: one token for x
//
// Thread Safety:
//
//	Safe for concurrent use. Each Parse call creates its own tree-sitter
//	parser.
type ScriptParser struct {
	maxFileSize int
}

// NewScriptParser creates a ScriptParser with the given options.
func NewScriptParser(opts ...ScriptParserOption) *ScriptParser {
	p := &ScriptParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the exported-binding tokens of one file.
//
// Description:
//
//	A construct whose extraction fails is skipped; the rest of the file is
//	still processed. Syntax errors never make Parse fail.
//
// Inputs:
//
//	ctx - Checked before and after each tree-sitter pass.
//	filePath - Recorded on every token; its extension selects the grammar.
//	content - Full file content. Must be valid UTF-8.
//	boundName - Name the importing file bound this module's default export
//	    to. Empty means no default-export token is produced.
//
// Outputs:
//
//	[]SymbolToken - Ordered by start offset.
//	error - ErrFileTooLarge, ErrInvalidContent, or a context error.
func (p *ScriptParser) Parse(ctx context.Context, filePath string, content []byte, boundName string) ([]SymbolToken, error) {
	ctx, span := startParseSpan(ctx, parserScript, filePath, len(content))
	defer span.End()
	start := time.Now()

	tokens, err := p.parse(ctx, filePath, content, boundName)
	finishParse(span, parserScript, start, len(tokens), err)
	return tokens, err
}

func (p *ScriptParser) parse(ctx context.Context, filePath string, content []byte, boundName string) ([]SymbolToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if len(content) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	text := string(content)
	set := newTokenSet(filePath, TokenKindScript, document.NewLineIndex(text))

	if err := p.extract(ctx, grammarFor(filePath), content, 0, boundName, set); err != nil {
		return nil, err
	}

	for _, r := range scriptRegions(text) {
		if err := p.extract(ctx, tsx.GetLanguage(), content[r.start:r.end], r.start, boundName, set); err != nil {
			return nil, err
		}
	}

	return set.sorted(), nil
}

// grammarFor picks the tree-sitter grammar for a file extension. Anything
// that is not plain JS or TS is parsed with TSX, the most permissive one.
func grammarFor(filePath string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	default:
		return tsx.GetLanguage()
	}
}

// extract parses src, located at base within the full file, and adds its
// exported bindings to set.
func (p *ScriptParser) extract(ctx context.Context, lang *sitter.Language, src []byte, base int, boundName string, set *tokenSet) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("parse canceled: %w", ctxErr)
		}
		slog.Debug("tree-sitter parse failed",
			slog.String("file", set.filePath),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	root := tree.RootNode()
	if root == nil {
		return nil
	}

	w := &scriptWalker{src: src, base: base, boundName: boundName, set: set}
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch n.Type() {
		case nodeExportStatement:
			w.guard(n, w.exportStatement)
		case nodeAssignment:
			w.guard(n, w.commonJSAssignment)
		}

		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if child := n.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
	return nil
}

// scriptWalker holds the per-pass state used by the export handlers.
type scriptWalker struct {
	src       []byte
	base      int
	boundName string
	set       *tokenSet
}

// guard runs fn for one construct and swallows any panic so the remaining
// constructs are still visited.
func (w *scriptWalker) guard(n *sitter.Node, fn func(*sitter.Node)) {
	defer func() {
		if r := recover(); r != nil {
			recoveredTotal.WithLabelValues(parserScript).Inc()
			slog.Debug("skipping construct after extraction failure",
				slog.String("file", w.set.filePath),
				slog.String("node", n.Type()),
				slog.Int("offset", w.base+int(n.StartByte())),
				slog.Any("panic", r),
			)
		}
	}()
	fn(n)
}

func (w *scriptWalker) text(n *sitter.Node) string {
	return string(w.src[n.StartByte():n.EndByte()])
}

// emit adds a token named keyword spanning n.
func (w *scriptWalker) emit(keyword string, n *sitter.Node) {
	w.set.add(keyword, w.base+int(n.StartByte()), w.base+int(n.EndByte()))
}

// emitName adds a token for an identifier-like node using its own text.
func (w *scriptWalker) emitName(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case nodeString:
		w.emit(unquote(w.text(n)), n)
	case nodeIdentifier, nodeTypeIdentifier, nodePropertyIdent, nodeShorthandProperty, nodeShorthandPattern:
		w.emit(w.text(n), n)
	}
}

func (w *scriptWalker) exportStatement(n *sitter.Node) {
	var defaultKw *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case nodeDefault:
			defaultKw = child
		case nodeEquals:
			// export = value
			w.emit(w.boundName, n)
		case nodeExportClause:
			w.exportClause(child)
		case nodeNamespaceExport:
			w.namespaceExport(child)
		}
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		w.declaration(decl)
		if defaultKw != nil {
			w.emit(w.boundName, defaultKw)
		}
		return
	}

	if defaultKw == nil {
		return
	}
	value := n.ChildByFieldName("value")
	if value != nil && namedDefaultValues[value.Type()] {
		if name := value.ChildByFieldName("name"); name != nil {
			w.emitName(name)
			w.emit(w.boundName, defaultKw)
			return
		}
	}
	w.emit(w.boundName, n)
}

func (w *scriptWalker) declaration(decl *sitter.Node) {
	switch t := decl.Type(); {
	case namedDeclarations[t]:
		w.emitName(decl.ChildByFieldName("name"))
	case t == nodeLexicalDeclaration || t == nodeVariableDeclaration:
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			child := decl.NamedChild(i)
			if child.Type() == nodeVariableDeclarator {
				w.pattern(child.ChildByFieldName("name"))
			}
		}
	case t == nodeAmbientDeclaration:
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			w.declaration(decl.NamedChild(i))
		}
	}
}

// pattern emits every identifier bound by a declarator name, walking
// destructuring patterns.
func (w *scriptWalker) pattern(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case nodeIdentifier, nodeShorthandPattern:
		w.emitName(n)
	case nodePairPattern:
		w.pattern(n.ChildByFieldName("value"))
	case nodeAssignmentPattern, nodeObjectAssignmentPattern:
		w.pattern(n.ChildByFieldName("left"))
	case nodeObjectPattern, nodeArrayPattern, nodeRestPattern:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.pattern(n.NamedChild(i))
		}
	}
}

func (w *scriptWalker) exportClause(clause *sitter.Node) {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		spec := clause.NamedChild(i)
		if spec.Type() != nodeExportSpecifier {
			continue
		}
		name := spec.ChildByFieldName("alias")
		if name == nil {
			name = spec.ChildByFieldName("name")
		}
		w.emitName(name)
	}
}

// namespaceExport handles `* as ns`; the exported name is the last named
// child.
func (w *scriptWalker) namespaceExport(n *sitter.Node) {
	if count := int(n.NamedChildCount()); count > 0 {
		w.emitName(n.NamedChild(count - 1))
	}
}

// commonJSAssignment handles module.exports and exports assignments.
func (w *scriptWalker) commonJSAssignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	if left == nil || left.Type() != nodeMemberExpression {
		return
	}
	object := left.ChildByFieldName("object")
	property := left.ChildByFieldName("property")
	if object == nil || property == nil {
		return
	}

	switch {
	case object.Type() == nodeIdentifier && w.text(object) == "module" && w.text(property) == "exports":
		w.emit(w.boundName, property)
		if right := n.ChildByFieldName("right"); right != nil && right.Type() == nodeObject {
			w.objectProperties(right)
		}
	case object.Type() == nodeIdentifier && w.text(object) == "exports":
		w.emitName(property)
	case object.Type() == nodeMemberExpression && w.isModuleExports(object):
		w.emitName(property)
	}
}

func (w *scriptWalker) isModuleExports(n *sitter.Node) bool {
	object := n.ChildByFieldName("object")
	property := n.ChildByFieldName("property")
	return object != nil && property != nil &&
		object.Type() == nodeIdentifier && w.text(object) == "module" &&
		w.text(property) == "exports"
}

func (w *scriptWalker) objectProperties(obj *sitter.Node) {
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		prop := obj.NamedChild(i)
		switch prop.Type() {
		case nodePair:
			w.emitName(prop.ChildByFieldName("key"))
		case nodeShorthandProperty:
			w.emitName(prop)
		case nodeMethodDefinition:
			w.emitName(prop.ChildByFieldName("name"))
		}
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if q := s[0]; (q == '"' || q == '\'' || q == '`') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}
