// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/aliaspath/services/aliaspath"
	"github.com/AleutianAI/aliaspath/services/aliaspath/index"
)

const (
	utilSource = `export const name = "x"; export default function cube(x){return x*x*x}`
	mainSource = "import Cube from \"@/util\";\nCube\n"
)

// =============================================================================
// HELPERS
// =============================================================================

func setupWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range map[string]string{
		"src/util.ts": utilSource,
		"main.ts":     mainSource,
	} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

// runCLI executes the root command and returns what it printed to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func runJSON[T any](t *testing.T, args ...string) T {
	t.Helper()
	out, err := runCLI(t, append([]string{"--json"}, args...)...)
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

// =============================================================================
// TESTS
// =============================================================================

func TestCLI_Help(t *testing.T) {
	out, err := runCLI(t, "--help")
	require.NoError(t, err)
	for _, want := range []string{"resolve", "imports", "symbols", "index", "definition", "complete", "cache", "lsp", "http", "version"} {
		assert.Contains(t, out, want)
	}
}

func TestCLI_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "aliaspath "+aliaspath.Version+"\n", out)

	v := runJSON[map[string]string](t, "version")
	assert.Equal(t, aliaspath.Version, v["version"])
}

func TestCLI_Resolve(t *testing.T) {
	root := setupWorkspace(t)
	mainPath := filepath.Join(root, "main.ts")

	resp := runJSON[aliaspath.ResolveResponse](t, "--root", root, "resolve", "@/util", "--from", mainPath, "--bound", "Cube")
	require.Len(t, resp.Paths, 1)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), resp.Paths[0].Path)
	assert.Equal(t, "Cube", resp.Paths[0].BoundName)

	out, err := runCLI(t, "--root", root, "resolve", "@/missing", "--from", mainPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no matching files")

	_, err = runCLI(t, "--root", root, "resolve", "@/util")
	assert.Error(t, err, "--from is required")
}

func TestCLI_Imports(t *testing.T) {
	root := setupWorkspace(t)

	resp := runJSON[aliaspath.ImportsResponse](t, "--root", root, "imports", filepath.Join(root, "main.ts"))
	require.Len(t, resp.Imports, 1)
	assert.Equal(t, "@/util", resp.Imports[0].Specifier)
	assert.Equal(t, "Cube", resp.Imports[0].BoundName)
	assert.Equal(t, 0, resp.Imports[0].StartPosition.Line)

	_, err := runCLI(t, "--root", root, "imports", filepath.Join(root, "absent.ts"))
	assert.Error(t, err)
}

func TestCLI_Symbols(t *testing.T) {
	root := setupWorkspace(t)

	out, err := runCLI(t, "--root", root, "symbols", filepath.Join(root, "src", "util.ts"), "--bound", "Cube")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "name")
	assert.Contains(t, lines[1], "Cube")
	assert.Contains(t, lines[2], "cube")
}

func TestCLI_Index(t *testing.T) {
	root := setupWorkspace(t)

	resp := runJSON[aliaspath.IndexResponse](t, "--root", root, "index", filepath.Join(root, "main.ts"))
	assert.Equal(t, filepath.Join(root, "main.ts"), resp.DocumentPath)
	assert.Equal(t, 3, resp.Stats.TotalTokens)
	assert.Contains(t, resp.Files, filepath.Join(root, "src", "util.ts"))
	assert.NotNil(t, resp.Skipped)
}

func TestCLI_Definition(t *testing.T) {
	root := setupWorkspace(t)
	mainPath := filepath.Join(root, "main.ts")

	resp := runJSON[aliaspath.DefinitionResponse](t, "--root", root, "definition", mainPath, "1", "1")
	require.Len(t, resp.Locations, 1)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), resp.Locations[0].FilePath)

	_, err := runCLI(t, "--root", root, "definition", mainPath, "-1", "0")
	assert.Error(t, err)
	_, err = runCLI(t, "--root", root, "definition", mainPath, "x", "0")
	assert.Error(t, err)
}

func TestCLI_Complete(t *testing.T) {
	root := setupWorkspace(t)

	resp := runJSON[aliaspath.CompleteResponse](t, "--root", root, "complete", filepath.Join(root, "main.ts"), "1", "2")
	var keywords []string
	for _, item := range resp.Items {
		keywords = append(keywords, item.Keyword)
	}
	assert.Contains(t, keywords, "Cube")
	assert.Contains(t, keywords, "cube")
}

func TestCLI_Cache(t *testing.T) {
	root := setupWorkspace(t)
	cacheDir := t.TempDir()

	_, err := runCLI(t, "--root", root, "cache", "stats")
	assert.ErrorIs(t, err, errNoCache)

	_, err = runCLI(t, "--root", root, "--cache-dir", cacheDir, "index", filepath.Join(root, "main.ts"))
	require.NoError(t, err)

	stats := runJSON[index.TokenCacheStats](t, "--root", root, "--cache-dir", cacheDir, "cache", "stats")
	assert.Positive(t, stats.Entries)
	assert.Equal(t, 3, stats.Tokens)

	t.Setenv(envCacheDir, cacheDir)
	_, err = runCLI(t, "--root", root, "cache", "purge")
	require.NoError(t, err)

	stats = runJSON[index.TokenCacheStats](t, "--root", root, "cache", "stats")
	assert.Zero(t, stats.Entries)
}

func TestCLI_SettingsFile(t *testing.T) {
	root := setupWorkspace(t)
	settings := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("aliaspath:\n  alias:\n    \"~\": \"${cwd}/src\"\n"), 0o644))

	resp := runJSON[aliaspath.ResolveResponse](t, "--root", root, "--settings", settings,
		"resolve", "~/util", "--from", filepath.Join(root, "main.ts"))
	require.Len(t, resp.Paths, 1)
	assert.Equal(t, filepath.Join(root, "src", "util.ts"), resp.Paths[0].Path)

	_, err := runCLI(t, "--root", root, "--settings", filepath.Join(root, "absent.json"), "version")
	assert.NoError(t, err, "version does not load settings")
}

func TestCLIOptions_ApplyEnv(t *testing.T) {
	t.Setenv(envSettings, "/etc/aliaspath.json")
	t.Setenv(envDebug, "true")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--settings", "/explicit.json"}))

	opts := &cliOptions{settings: "/explicit.json"}
	opts.applyEnv(cmd)
	assert.Equal(t, "/explicit.json", opts.settings, "flags win over the environment")
	assert.True(t, opts.debug)
}
