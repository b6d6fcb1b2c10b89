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
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"

	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

// StyleParserOption configures a StyleParser instance.
type StyleParserOption func(*StyleParser)

// WithStyleMaxFileSize sets the maximum content size the parser will accept.
func WithStyleMaxFileSize(bytes int) StyleParserOption {
	return func(p *StyleParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// StyleParser extracts class, id and type selectors from stylesheets.
//
// Description:
//
//	Plain stylesheets are parsed whole. Template files (.vue, .svelte,
//	.html) are not valid CSS, so only their <style> blocks are parsed, with
//	offsets translated into the full file. Nodes inside error-recovery
//	subtrees are skipped.
//
//	Token spans: a class selector covers `.name`, an id selector `#name`
//	and a type selector the tag name.
//
// Thread Safety:
//
//	Safe for concurrent use.
type StyleParser struct {
	maxFileSize int
}

// NewStyleParser creates a StyleParser with the given options.
func NewStyleParser(opts ...StyleParserOption) *StyleParser {
	p := &StyleParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the selector tokens of one file.
//
// A failure part-way through keeps the tokens already collected. Only
// oversize, non-UTF-8 content or cancellation produce an error.
func (p *StyleParser) Parse(ctx context.Context, filePath string, content []byte) ([]SymbolToken, error) {
	ctx, span := startParseSpan(ctx, parserStyle, filePath, len(content))
	defer span.End()
	start := time.Now()

	tokens, err := p.parse(ctx, filePath, content)
	finishParse(span, parserStyle, start, len(tokens), err)
	return tokens, err
}

func (p *StyleParser) parse(ctx context.Context, filePath string, content []byte) ([]SymbolToken, error) {
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
	set := newTokenSet(filePath, TokenKindStyle, document.NewLineIndex(text))

	regions := []region{{start: 0, end: len(content)}}
	if IsTemplateFile(filePath) {
		regions = styleRegions(text)
	}
	for _, r := range regions {
		if err := p.extract(ctx, content[r.start:r.end], r.start, set); err != nil {
			return set.sorted(), err
		}
	}
	return set.sorted(), nil
}

func (p *StyleParser) extract(ctx context.Context, src []byte, base int, set *tokenSet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			recoveredTotal.WithLabelValues(parserStyle).Inc()
			slog.Debug("stylesheet extraction aborted",
				slog.String("file", set.filePath),
				slog.Any("panic", r),
			)
		}
	}()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(css.GetLanguage())

	tree, perr := parser.ParseCtx(ctx, nil, src)
	if perr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("parse canceled: %w", ctxErr)
		}
		slog.Debug("tree-sitter parse failed",
			slog.String("file", set.filePath),
			slog.String("error", perr.Error()),
		)
		return nil
	}
	defer tree.Close()

	stack := []*sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil || n.Type() == nodeError {
			continue
		}

		switch n.Type() {
		case nodeClassSelector:
			selectorToken(set, src, base, n, ".", nodeClassName)
		case nodeIDSelector:
			selectorToken(set, src, base, n, "#", nodeIDName)
		case nodeTagName:
			set.add(string(src[n.StartByte():n.EndByte()]), base+int(n.StartByte()), base+int(n.EndByte()))
		}

		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, n.Child(i))
		}
	}
	return nil
}

// selectorToken adds a token spanning from the sigil to the end of the
// selector's name child. A compound selector like `a.foo` therefore starts
// at the dot, not at `a`.
func selectorToken(set *tokenSet, src []byte, base int, n *sitter.Node, sigil, nameType string) {
	var sigilNode, nameNode *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case sigil:
			sigilNode = child
		case nameType:
			nameNode = child
		}
	}
	if nameNode == nil {
		return
	}
	start := nameNode.StartByte()
	if sigilNode != nil {
		start = sigilNode.StartByte()
	}
	set.add(string(src[nameNode.StartByte():nameNode.EndByte()]), base+int(start), base+int(nameNode.EndByte()))
}
