// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lookup answers go-to-definition and completion queries against
// the published symbol index and the raw extraction and resolution
// primitives.
package lookup

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
	"github.com/AleutianAI/aliaspath/services/aliaspath/imports"
	"github.com/AleutianAI/aliaspath/services/aliaspath/index"
	"github.com/AleutianAI/aliaspath/services/aliaspath/resolve"
)

const tracerName = "aliaspath.lookup"

// IndexSource supplies the most recently published symbol index.
type IndexSource interface {
	Current() *index.SymbolIndex
}

// Location is a definition target.
//
// File-start locations (from path resolution) have zero Start and End.
type Location struct {
	FilePath string            `json:"file_path"`
	Start    document.Position `json:"start"`
	End      document.Position `json:"end"`

	// Keyword is the matched symbol for identifier hits.
	Keyword string `json:"keyword,omitempty"`
}

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// WithStat replaces the filesystem probe used for resolution.
func WithStat(stat resolve.StatFunc) FacadeOption {
	return func(f *Facade) {
		if stat != nil {
			f.stat = stat
		}
	}
}

// Facade runs lookups for documents.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Facade struct {
	configFor index.ConfigFunc
	indexes   IndexSource
	stat      resolve.StatFunc
}

// NewFacade creates a Facade.
//
// Inputs:
//
//	configFor - Merged config per document path. Must not be nil.
//	indexes - Source of the current index. Must not be nil.
func NewFacade(configFor index.ConfigFunc, indexes IndexSource, opts ...FacadeOption) *Facade {
	f := &Facade{configFor: configFor, indexes: indexes, stat: os.Stat}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Facade) resolver(doc document.Document) *resolve.Resolver {
	return resolve.NewResolver(f.configFor(doc.Path()).Rules(), resolve.WithStat(f.stat))
}

// Definition answers go-to-definition at pos.
//
// Description:
//
//	When pos sits inside a quoted literal the literal is resolved as a
//	path. Otherwise the word under pos is looked up as an identifier.
func (f *Facade) Definition(ctx context.Context, doc document.Document, pos document.Position) []Location {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "lookup.Definition")
	defer span.End()

	offset := doc.OffsetAt(pos)
	if lit, ok := matchAt(literalPattern, doc.Text(), offset); ok {
		span.SetAttributes(attribute.String("lookup.mode", queryLiteral))
		return f.resolveToFiles(ctx, doc, lit.inner, "", queryLiteral)
	}
	span.SetAttributes(attribute.String("lookup.mode", queryIdentifier))
	return f.identifier(ctx, doc, offset)
}

// LiteralPath resolves the quoted literal containing pos.
//
// Description:
//
//	The literal's quotes are stripped and its text resolved with the
//	document's config. Each resolved file yields one location at the start
//	of the file. Nothing is returned when pos is not inside a literal or
//	when the document itself is excluded.
func (f *Facade) LiteralPath(ctx context.Context, doc document.Document, pos document.Position) []Location {
	lit, ok := matchAt(literalPattern, doc.Text(), doc.OffsetAt(pos))
	if !ok {
		recordLookup(queryLiteral, 0)
		return nil
	}
	return f.resolveToFiles(ctx, doc, lit.inner, "", queryLiteral)
}

// Identifier looks up the word at pos in the current index.
//
// Description:
//
//	A word directly preceded by `<` is converted with HyphenToPascal first.
//	Every index token with that exact keyword yields a location at the
//	token. Without a match, the import reference containing pos (if any)
//	is resolved instead and each file yields a file-start location.
func (f *Facade) Identifier(ctx context.Context, doc document.Document, pos document.Position) []Location {
	return f.identifier(ctx, doc, doc.OffsetAt(pos))
}

func (f *Facade) identifier(ctx context.Context, doc document.Document, offset int) []Location {
	text := doc.Text()
	word, ok := matchAt(wordPattern, text, offset)
	if !ok {
		recordLookup(queryIdentifier, 0)
		return nil
	}

	keyword := word.text
	if word.start > 0 && text[word.start-1] == '<' {
		keyword = HyphenToPascal(keyword)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("lookup.keyword", keyword))

	if matches := f.indexes.Current().Lookup(keyword); len(matches) > 0 {
		out := make([]Location, len(matches))
		for i, tok := range matches {
			out[i] = Location{FilePath: tok.FilePath, Start: tok.Start, End: tok.End, Keyword: tok.Keyword}
		}
		recordLookup(queryIdentifier, len(out))
		return out
	}

	ref, ok := imports.FindAt(imports.Extract(text), offset)
	if !ok {
		recordLookup(queryIdentifier, 0)
		return nil
	}
	return f.resolveToFiles(ctx, doc, ref.Specifier, ref.BoundName, queryImport)
}

// resolveToFiles resolves specifier for doc and returns file-start
// locations.
func (f *Facade) resolveToFiles(ctx context.Context, doc document.Document, specifier, boundName, query string) []Location {
	r := f.resolver(doc)
	if r.Excluded(doc.Path(), doc.WorkspaceRoot()) {
		recordLookup(query, 0)
		return nil
	}
	resolved := r.Resolve(ctx, specifier, resolve.Request{
		DocumentPath:  doc.Path(),
		WorkspaceRoot: doc.WorkspaceRoot(),
		BoundName:     boundName,
	})
	recordLookup(query, len(resolved))
	if len(resolved) == 0 {
		return nil
	}
	out := make([]Location, len(resolved))
	for i, rp := range resolved {
		out[i] = Location{FilePath: rp.Path}
	}
	return out
}
