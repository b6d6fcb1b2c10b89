// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProjectFiles(t *testing.T) {
	assert.Equal(t,
		[]string{".aliaspath.json", ".aliaspath.yaml", ".aliaspath.yml", ".aliaspath.toml", "package.json"},
		ProjectFiles(""))
	assert.Equal(t, []string{"paths.json", "package.json"}, ProjectFiles("paths.json"))
}

func TestLoadProject_EmptyRoot(t *testing.T) {
	cfg, src := LoadProject("", "")
	assert.Nil(t, cfg)
	assert.Empty(t, src)
}

func TestLoadProject_NoFiles(t *testing.T) {
	cfg, src := LoadProject(t.TempDir(), "")
	assert.Nil(t, cfg)
	assert.Empty(t, src)
}

func TestLoadProject_DotFileBeatsPackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".aliaspath.json"), `{"alias": {"@": "${cwd}/dot"}}`)
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "x", "aliaspath": {"alias": {"@": "${cwd}/pkg"}}}`)

	cfg, src := LoadProject(root, "")
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, ".aliaspath.json"), src)
	v, _ := cfg.Alias.Lookup("@")
	assert.Equal(t, "${cwd}/dot", v)
}

func TestLoadProject_YAMLAndTOML(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".aliaspath.toml"), "[alias]\n\"#\" = \"/toml\"\n")
	writeFile(t, filepath.Join(root, ".aliaspath.yml"), "alias:\n  '#': /yml\nallowedExt: [ts]\n")

	cfg, src := LoadProject(root, "")
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, ".aliaspath.yml"), src, ".yml precedes .toml")
	v, _ := cfg.Alias.Lookup("#")
	assert.Equal(t, "/yml", v)
	assert.Equal(t, []string{"ts"}, cfg.AllowedExtensions)

	require.NoError(t, os.Remove(filepath.Join(root, ".aliaspath.yml")))
	cfg, src = LoadProject(root, "")
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, ".aliaspath.toml"), src)
	v, _ = cfg.Alias.Lookup("#")
	assert.Equal(t, "/toml", v)
}

func TestLoadProject_PackageJSONField(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "x", "aliaspath": {"alias": {"~": "${cwd}/lib"}, "maxDependFileSize": 1}}`)

	cfg, src := LoadProject(root, "")
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, "package.json"), src)
	v, _ := cfg.Alias.Lookup("~")
	assert.Equal(t, "${cwd}/lib", v)
	assert.Equal(t, 1.0, cfg.MaxDependFileSize)
}

func TestLoadProject_PackageJSONWithoutField(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name": "x"}`)

	cfg, src := LoadProject(root, "")
	assert.Nil(t, cfg)
	assert.Empty(t, src)
}

func TestLoadProject_UnparsableFileIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".aliaspath.json"), `{"alias": `)
	writeFile(t, filepath.Join(root, "package.json"), `{"aliaspath": {"alias": {"@": "/pkg"}}}`)

	cfg, src := LoadProject(root, "")
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, "package.json"), src)
}

func TestLoadProject_CustomFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".aliaspath.json"), `{"alias": {"@": "/ignored"}}`)
	writeFile(t, filepath.Join(root, "conf", "paths.json"), `{"alias": {"@": "/custom"}}`)

	cfg, src := LoadProject(root, filepath.Join("conf", "paths.json"))
	require.NotNil(t, cfg)
	assert.Equal(t, filepath.Join(root, "conf", "paths.json"), src)
	v, _ := cfg.Alias.Lookup("@")
	assert.Equal(t, "/custom", v)

	abs := filepath.Join(t.TempDir(), "shared.yaml")
	writeFile(t, abs, "alias:\n  '@': /shared\n")
	cfg, src = LoadProject(root, abs)
	require.NotNil(t, cfg)
	assert.Equal(t, abs, src)
}

func TestLoadHostSettings(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "settings.yaml")
	writeFile(t, yml, "aliaspath:\n  alias:\n    '@': ${cwd}/web\n  configFile: paths.json\nfiles.exclude:\n  '**/dist/**': true\n")
	hs, err := LoadHostSettings(yml)
	require.NoError(t, err)
	v, _ := hs.AliasPath.Alias.Lookup("@")
	assert.Equal(t, "${cwd}/web", v)
	assert.Equal(t, "paths.json", hs.AliasPath.ConfigFile)
	assert.True(t, hs.FilesExclude["**/dist/**"])

	tml := filepath.Join(dir, "settings.toml")
	writeFile(t, tml, "[aliaspath]\nmaxDependFileSize = 3.0\n[aliaspath.alias]\n\"@\" = \"/t\"\n")
	hs, err = LoadHostSettings(tml)
	require.NoError(t, err)
	assert.Equal(t, 3.0, hs.AliasPath.MaxDependFileSize)
	v, _ = hs.AliasPath.Alias.Lookup("@")
	assert.Equal(t, "/t", v)

	bad := filepath.Join(dir, "settings.json")
	writeFile(t, bad, "{")
	_, err = LoadHostSettings(bad)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = LoadHostSettings(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
