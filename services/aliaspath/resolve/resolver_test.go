// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative, slash-separated) under root.
func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("// "+f+"\n"), 0o644))
	}
}

func paths(rps []ResolvedPath) []string {
	out := make([]string, 0, len(rps))
	for _, rp := range rps {
		out = append(out, rp.Path)
	}
	return out
}

func defaultRules() Rules {
	return Rules{
		Aliases:    []Alias{{Key: "@", Value: "${cwd}/src"}},
		Extensions: []string{"js", "ts", "vue"},
		Exclude:    []string{"**/node_modules/**"},
	}
}

func TestResolve_ProbesIndexThenExtension(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"src/components/Button/index.ts",
		"src/components/Button.vue",
		"src/main.ts",
	)
	r := NewResolver(defaultRules())
	req := Request{DocumentPath: filepath.Join(root, "src/main.ts"), WorkspaceRoot: root, BoundName: "Button"}

	got := r.Resolve(context.Background(), "@/components/Button", req)

	require.Len(t, got, 2)
	assert.Equal(t, filepath.Join(root, "src/components/Button/index.ts"), got[0].Path)
	assert.Equal(t, filepath.Join(root, "src/components/Button.vue"), got[1].Path)
	for _, rp := range got {
		assert.Equal(t, "Button", rp.BoundName)
	}
}

func TestResolve_ExplicitExtension(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/util.js")
	r := NewResolver(defaultRules())

	got := r.Resolve(context.Background(), "@/util.js", Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "a.js")})
	assert.Equal(t, []string{filepath.Join(root, "src/util.js")}, paths(got))

	missing := r.Resolve(context.Background(), "@/nope.js", Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "a.js")})
	assert.Empty(t, missing)
}

func TestResolve_CwdPlaceholderSubstituted(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/a.ts")
	r := NewResolver(defaultRules())

	got := r.Resolve(context.Background(), "@/a", Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "x.ts")})
	require.Len(t, got, 1)
	assert.NotContains(t, got[0].Path, CwdPlaceholder)
	assert.True(t, strings.HasPrefix(got[0].Path, root))
}

func TestResolve_RelativeToDocument(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/pages/home.ts", "src/pages/sibling.ts")
	r := NewResolver(defaultRules())

	got := r.Resolve(context.Background(), "./sibling", Request{
		WorkspaceRoot: root,
		DocumentPath:  filepath.Join(root, "src/pages/home.ts"),
	})
	assert.Equal(t, []string{filepath.Join(root, "src/pages/sibling.ts")}, paths(got))
}

func TestResolve_NoDuplicatesAcrossAliases(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/shared.ts")
	rules := defaultRules()
	rules.Aliases = []Alias{
		{Key: "@", Value: "${cwd}/src"},
		{Key: "~", Value: "${cwd}/src"},
		{Key: "#", Value: "${cwd}/lib"},
	}
	r := NewResolver(rules)

	// "#" does not occur, so its substitution leaves the specifier intact and
	// the existence check filters whatever it produces.
	got := r.Resolve(context.Background(), "@/shared", Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "a.ts")})
	assert.Equal(t, []string{filepath.Join(root, "src/shared.ts")}, paths(got))
}

func TestResolve_PermissiveSubstitution(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/x.ts", "lib/x.ts")
	rules := defaultRules()
	rules.Aliases = []Alias{
		{Key: "@", Value: "${cwd}/src"},
		{Key: "x", Value: "../lib/x"},
	}
	r := NewResolver(rules)

	// Both keys occur in the specifier. "x" turns "@/x" into "@/../lib/x",
	// which cleans to "lib/x" relative to the document. Both candidates
	// exist, so both come back in alias order.
	got := r.Resolve(context.Background(), "@/x", Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "a.ts")})
	assert.Equal(t, []string{filepath.Join(root, "src/x.ts"), filepath.Join(root, "lib/x.ts")}, paths(got))
}

func TestResolve_ExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"node_modules/pkg/index.js",
		"src/generated/api.ts",
		"src/ok.ts",
	)
	rules := defaultRules()
	rules.Aliases = []Alias{
		{Key: "pkg", Value: "${cwd}/node_modules/pkg"},
		{Key: "@", Value: "${cwd}/src"},
	}
	rules.Exclude = []string{"**/node_modules/**", "src/{generated,tmp}/**"}
	r := NewResolver(rules)
	req := Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "src/main.ts")}

	assert.Empty(t, r.Resolve(context.Background(), "pkg", req))
	assert.Empty(t, r.Resolve(context.Background(), "@/generated/api", req))
	assert.Len(t, r.Resolve(context.Background(), "@/ok", req), 1)
	assert.True(t, r.Excluded(filepath.Join(root, "node_modules/pkg/index.js"), root))
}

func TestResolve_IgnoredExtensionStripped(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/styles/theme.scss")
	rules := defaultRules()
	rules.Extensions = []string{"scss"}
	rules.IgnoredExtensions = []string{".css"}
	r := NewResolver(rules)

	got := r.Resolve(context.Background(), "@/styles/theme.css", Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "a.ts")})
	assert.Equal(t, []string{filepath.Join(root, "src/styles/theme.scss")}, paths(got))
}

func TestResolve_DirectoriesAreNotFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src/dir.ts"), 0o755))
	r := NewResolver(defaultRules())

	got := r.Resolve(context.Background(), "@/dir", Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "a.ts")})
	assert.Empty(t, got)
}

func TestResolve_EmptyInputs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/a.ts")

	assert.Empty(t, NewResolver(Rules{Extensions: []string{"ts"}}).Resolve(context.Background(), "@/a", Request{WorkspaceRoot: root}))
	assert.Empty(t, NewResolver(defaultRules()).Resolve(context.Background(), "", Request{WorkspaceRoot: root}))
	assert.Empty(t, NewResolver(defaultRules()).Resolve(context.Background(), "vue", Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "a.ts")}))
}

func TestResolve_AllResultsExistAndAreUnique(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "src/a/index.js", "src/a.ts", "src/a.vue", "src/b.ts")
	rules := defaultRules()
	rules.Aliases = append(rules.Aliases, Alias{Key: "~", Value: "${cwd}/src"}, Alias{Key: "@", Value: "${cwd}/src"})
	r := NewResolver(rules)

	for _, spec := range []string{"@/a", "~/a", "@/b", "./src/a", "@/../src/a"} {
		got := r.Resolve(context.Background(), spec, Request{WorkspaceRoot: root, DocumentPath: filepath.Join(root, "main.ts")})
		seen := map[string]bool{}
		for _, rp := range got {
			assert.False(t, seen[rp.Path], "duplicate %s for %s", rp.Path, spec)
			seen[rp.Path] = true
			info, err := os.Stat(rp.Path)
			require.NoError(t, err)
			assert.True(t, info.Mode().IsRegular())
		}
	}
}

func TestExcludeMatcher(t *testing.T) {
	root := filepath.FromSlash("/work/app")
	m := NewExcludeMatcher([]string{"**/node_modules/**", "dist/*.js", "  ", "**/*.{spec,test}.ts", "..cache/*.js"})
	assert.Len(t, m.Patterns(), 4)

	tests := []struct {
		path string
		want bool
	}{
		{"/work/app/node_modules/vue/index.js", true},
		{"/work/app/dist/bundle.js", true},
		{"/work/app/dist/nested/bundle.js", false},
		{"/work/app/src/a.spec.ts", true},
		{"/work/app/src/a.ts", false},
		{"/work/app/src/Node_Modules/x.js", false},
		{"/work/app/..cache/x.js", true},
		{"/work/dist/outside.js", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(filepath.FromSlash(tt.path), root))
		})
	}

	var nilMatcher *ExcludeMatcher
	assert.False(t, nilMatcher.Match("/a", ""))
}
