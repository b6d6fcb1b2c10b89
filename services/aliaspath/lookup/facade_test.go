// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lookup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/aliaspath/services/aliaspath/config"
	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
	"github.com/AleutianAI/aliaspath/services/aliaspath/index"
)

const (
	utilSource    = `export const name = "x"; export default function cube(x){return x*x*x}`
	widgetsSource = "export const MyComponent = 1;\nexport const name = 2;\n"
	mainSource    = "import Cube from \"@/util\";\n" +
		"import { MyComponent } from \"@/widgets\";\n" +
		"<my-component></my-component>\n" +
		"my-component\n" +
		"Cube\n"
)

type staticIndex struct{ idx *index.SymbolIndex }

func (s staticIndex) Current() *index.SymbolIndex { return s.idx }

type fixture struct {
	root    string
	doc     *document.Snapshot
	cfg     config.ResolutionConfig
	idx     *index.SymbolIndex
	facade  *Facade
	util    string
	widgets string
}

func newFixture(t *testing.T, project *config.ResolutionConfig) *fixture {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/util.ts":    utilSource,
		"src/widgets.ts": widgetsSource,
		"main.ts":        mainSource,
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	doc, err := document.Load(filepath.Join(root, "main.ts"), root)
	require.NoError(t, err)

	cfg := config.Merge(project, config.HostSettings{})
	idx, err := index.NewBuilder().Build(context.Background(), doc, cfg)
	require.NoError(t, err)

	configFor := func(string) config.ResolutionConfig { return cfg }
	return &fixture{
		root:    root,
		doc:     doc,
		cfg:     cfg,
		idx:     idx,
		facade:  NewFacade(configFor, staticIndex{idx}),
		util:    filepath.Join(root, "src", "util.ts"),
		widgets: filepath.Join(root, "src", "widgets.ts"),
	}
}

func pos(line, character int) document.Position {
	return document.Position{Line: line, Character: character}
}

func TestDefinition_LiteralResolvesToFileStart(t *testing.T) {
	f := newFixture(t, nil)

	got := f.facade.Definition(context.Background(), f.doc, pos(0, 19))
	assert.Equal(t, []Location{{FilePath: f.util}}, got)

	got = f.facade.LiteralPath(context.Background(), f.doc, pos(1, 31))
	assert.Equal(t, []Location{{FilePath: f.widgets}}, got)
}

func TestLiteralPath_OutsideLiteral(t *testing.T) {
	f := newFixture(t, nil)
	assert.Nil(t, f.facade.LiteralPath(context.Background(), f.doc, pos(0, 2)))
}

func TestLiteralPath_ExcludedDocumentYieldsNothing(t *testing.T) {
	f := newFixture(t, &config.ResolutionConfig{ExcludeGlobs: []string{"**/main.ts"}})
	assert.Nil(t, f.facade.LiteralPath(context.Background(), f.doc, pos(0, 19)))
	assert.Nil(t, f.facade.Definition(context.Background(), f.doc, pos(0, 19)))
}

func TestIdentifier_TagIsNormalised(t *testing.T) {
	f := newFixture(t, nil)

	got := f.facade.Definition(context.Background(), f.doc, pos(2, 3))
	require.Len(t, got, 1)
	assert.Equal(t, f.widgets, got[0].FilePath)
	assert.Equal(t, "MyComponent", got[0].Keyword)
	assert.Equal(t, pos(0, strings.Index(widgetsSource, "MyComponent")), got[0].Start)
}

func TestIdentifier_NoNormalisationWithoutTagOpener(t *testing.T) {
	f := newFixture(t, nil)

	assert.Nil(t, f.facade.Identifier(context.Background(), f.doc, pos(3, 4)))
	assert.Nil(t, f.facade.Identifier(context.Background(), f.doc, pos(2, 18)), "closing tag follows a slash")
}

func TestIdentifier_IndexHit(t *testing.T) {
	f := newFixture(t, nil)

	got := f.facade.Identifier(context.Background(), f.doc, pos(4, 2))
	require.Len(t, got, 1)
	assert.Equal(t, f.util, got[0].FilePath)
	assert.Equal(t, "Cube", got[0].Keyword)
	assert.Equal(t, pos(0, strings.Index(utilSource, "default")), got[0].Start)
}

func TestIdentifier_MultipleMatches(t *testing.T) {
	f := newFixture(t, nil)
	doc := document.NewSnapshot(f.doc.Path(), f.root, "name\n")

	got := f.facade.Identifier(context.Background(), doc, pos(0, 1))
	require.Len(t, got, 2)
	assert.Equal(t, f.util, got[0].FilePath)
	assert.Equal(t, f.widgets, got[1].FilePath)
}

func TestIdentifier_FallsBackToImportReference(t *testing.T) {
	f := newFixture(t, nil)

	// "from" is not an indexed keyword but sits inside the import statement.
	got := f.facade.Identifier(context.Background(), f.doc, pos(0, 13))
	assert.Equal(t, []Location{{FilePath: f.util}}, got)
}

func TestIdentifier_EmptyIndex(t *testing.T) {
	f := newFixture(t, nil)
	facade := NewFacade(func(string) config.ResolutionConfig { return f.cfg }, staticIndex{})

	assert.Nil(t, facade.Identifier(context.Background(), f.doc, pos(4, 2)))
	assert.Equal(t, []Location{{FilePath: f.util}}, facade.Identifier(context.Background(), f.doc, pos(0, 8)))
}

func TestHyphenToPascal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"my-component", "MyComponent"},
		{"x-y-z", "XYZ"},
		{"already", "Already"},
		{"Button", "Button"},
		{"a-", "A-"},
		{"-x", "-x"},
		{"a--b", "A-b"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, HyphenToPascal(tt.in))
		})
	}
}

func TestMatchAt(t *testing.T) {
	text := "first\nimport a from 'x/y';\n"
	lineStart := strings.Index(text, "import")

	lit, ok := matchAt(literalPattern, text, lineStart+15)
	require.True(t, ok)
	assert.Equal(t, "x/y", lit.inner)
	assert.Equal(t, "'x/y'", lit.text)
	assert.Equal(t, lineStart+14, lit.start)

	_, ok = matchAt(literalPattern, text, lineStart+14)
	assert.True(t, ok, "opening quote is inside")
	_, ok = matchAt(literalPattern, text, lineStart+19)
	assert.True(t, ok, "end bound is inclusive")
	_, ok = matchAt(literalPattern, text, lineStart+2)
	assert.False(t, ok)

	word, ok := matchAt(wordPattern, text, 2)
	require.True(t, ok)
	assert.Equal(t, "first", word.text)
}

func TestMatchAt_Multibyte(t *testing.T) {
	text := "const s = 'é'; const t = \"ok\""
	off := strings.Index(text, "ok")
	lit, ok := matchAt(literalPattern, text, off)
	require.True(t, ok)
	assert.Equal(t, "ok", lit.inner)
	assert.Equal(t, off-1, lit.start)
}
