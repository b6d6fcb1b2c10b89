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
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_RootFor(t *testing.T) {
	outer := t.TempDir()
	inner := filepath.Join(outer, "packages", "web")

	p, err := NewProvider(HostSettings{}, []string{outer, inner, outer, ""})
	require.NoError(t, err)

	assert.Equal(t, []string{inner, outer}, p.Roots())
	assert.Equal(t, inner, p.RootFor(filepath.Join(inner, "src", "a.ts")))
	assert.Equal(t, outer, p.RootFor(filepath.Join(outer, "packages", "webby", "a.ts")))
	assert.Equal(t, outer, p.RootFor(outer))
	assert.Equal(t, "", p.RootFor("/elsewhere/a.ts"))
	assert.Equal(t, "", p.RootFor(""))
}

func TestProvider_GetConfigUsesProjectLayer(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".aliaspath.json"), `{"alias": {"~": "${cwd}/lib"}}`)

	host := HostSettings{AliasPath: HostAliasPath{ResolutionConfig: ResolutionConfig{MaxDependFileSize: 9}}}
	p, err := NewProvider(host, []string{root})
	require.NoError(t, err)

	snap := p.Snapshot(filepath.Join(root, "src", "a.ts"))
	assert.Equal(t, root, snap.Root)
	assert.Equal(t, filepath.Join(root, ".aliaspath.json"), snap.Source)
	assert.Equal(t, AliasTable{{Key: "~", Value: "${cwd}/lib"}}, snap.Config.Alias)
	assert.Equal(t, 9.0, snap.Config.MaxDependFileSize)
}

func TestProvider_OutsideWorkspaceGetsHostAndDefaults(t *testing.T) {
	host := HostSettings{AliasPath: HostAliasPath{ResolutionConfig: ResolutionConfig{
		Alias: AliasTable{{Key: "#", Value: "/host"}},
	}}}
	p, err := NewProvider(host, nil)
	require.NoError(t, err)

	snap := p.Snapshot("/tmp/loose/a.ts")
	assert.Equal(t, "", snap.Root)
	assert.Equal(t, "", snap.Source)
	assert.Equal(t, AliasTable{{Key: "#", Value: "/host"}}, snap.Config.Alias)
	assert.Equal(t, Defaults().AllowedExtensions, snap.Config.AllowedExtensions)
}

func TestProvider_CachesUntilReload(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, ".aliaspath.json")
	writeFile(t, cfgPath, `{"alias": {"@": "/v1"}}`)

	p, err := NewProvider(HostSettings{}, []string{root})
	require.NoError(t, err)
	doc := filepath.Join(root, "a.ts")

	v, _ := p.GetConfig(doc).Alias.Lookup("@")
	assert.Equal(t, "/v1", v)

	writeFile(t, cfgPath, `{"alias": {"@": "/v2"}}`)
	v, _ = p.GetConfig(doc).Alias.Lookup("@")
	assert.Equal(t, "/v1", v, "cached slot is served until reloaded")

	p.Reload(root)
	v, _ = p.GetConfig(doc).Alias.Lookup("@")
	assert.Equal(t, "/v2", v)

	writeFile(t, cfgPath, `{"alias": {"@": "/v3"}}`)
	p.Invalidate(root)
	v, _ = p.GetConfig(doc).Alias.Lookup("@")
	assert.Equal(t, "/v3", v)
}

func TestProvider_SetHostSettingsPurges(t *testing.T) {
	root := t.TempDir()
	p, err := NewProvider(HostSettings{}, []string{root})
	require.NoError(t, err)
	doc := filepath.Join(root, "a.ts")

	assert.Equal(t, 2.0, p.GetConfig(doc).MaxDependFileSize)

	p.SetHostSettings(HostSettings{AliasPath: HostAliasPath{ResolutionConfig: ResolutionConfig{MaxDependFileSize: 4}}})
	assert.Equal(t, 4.0, p.GetConfig(doc).MaxDependFileSize)
}

func TestProvider_WorkspaceRootChanges(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	p, err := NewProvider(HostSettings{}, []string{a})
	require.NoError(t, err)

	p.AddWorkspaceRoot(b)
	p.AddWorkspaceRoot(b)
	assert.ElementsMatch(t, []string{a, b}, p.Roots())
	assert.Equal(t, b, p.RootFor(filepath.Join(b, "x.ts")))

	p.RemoveWorkspaceRoot(a)
	assert.Equal(t, []string{b}, p.Roots())
	assert.Equal(t, "", p.RootFor(filepath.Join(a, "x.ts")))
}

func TestProvider_ConcurrentReaders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".aliaspath.json"), `{"alias": {"@": "/x"}}`)
	p, err := NewProvider(HostSettings{}, []string{root})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%4 == 0 {
				p.Reload(root)
				return
			}
			cfg := p.GetConfig(filepath.Join(root, "a.ts"))
			v, ok := cfg.Alias.Lookup("@")
			assert.True(t, ok)
			assert.Equal(t, "/x", v)
		}(i)
	}
	wg.Wait()
}
