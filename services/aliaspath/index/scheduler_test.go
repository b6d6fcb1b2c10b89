// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/aliaspath/services/aliaspath/config"
	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

func staticConfig(cfg config.ResolutionConfig) ConfigFunc {
	return func(string) config.ResolutionConfig { return cfg }
}

func TestScheduler_PublishesAfterDelay(t *testing.T) {
	root := workspace(t, map[string]string{
		"src/util.ts": utilSource,
		"main.ts":     "import Cube from \"@/util\";\n",
	})
	s := NewScheduler(NewBuilder(), staticConfig(defaultConfig()), WithBuildDelay(10*time.Millisecond))
	defer s.Close()

	assert.Nil(t, s.Current())
	s.Schedule(openDoc(t, root, "main.ts"))
	s.Wait()

	idx := s.Current()
	require.NotNil(t, idx)
	assert.Equal(t, filepath.Join(root, "main.ts"), idx.DocumentPath())
	assert.Len(t, idx.Lookup("Cube"), 1)
	assert.Equal(t, filepath.Join(root, "main.ts"), s.ActivePath())
}

func TestScheduler_LastTriggerWins(t *testing.T) {
	root := workspace(t, map[string]string{
		"a.ts": "export const fromA = 1;\n",
		"b.ts": "export const fromB = 1;\n",
	})
	var published atomic.Int32
	s := NewScheduler(NewBuilder(), staticConfig(defaultConfig()),
		WithBuildDelay(50*time.Millisecond),
		WithOnPublish(func(*SymbolIndex) { published.Add(1) }),
	)
	defer s.Close()

	first := s.Schedule(openDoc(t, root, "a.ts"))
	second := s.Schedule(openDoc(t, root, "b.ts"))
	assert.True(t, first.Superseded())
	s.Wait()

	assert.Equal(t, int32(1), published.Load())
	idx := s.Current()
	require.NotNil(t, idx)
	assert.Equal(t, filepath.Join(root, "b.ts"), idx.DocumentPath())
	assert.Empty(t, idx.Lookup("fromA"))
	assert.Len(t, idx.Lookup("fromB"), 1)
	assert.Greater(t, second.Generation(), first.Generation())
}

func TestScheduler_SupersededBuildIsNeverPublished(t *testing.T) {
	root := workspace(t, map[string]string{
		"src/util.ts": utilSource,
		"a.ts":        "import Cube from \"@/util\";\nexport const fromA = 1;\n",
		"b.ts":        "export const fromB = 1;\n",
	})

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	stat := func(name string) (fs.FileInfo, error) {
		if strings.HasSuffix(name, "util.ts") {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
		return os.Stat(name)
	}

	s := NewScheduler(NewBuilder(WithStat(stat)), staticConfig(defaultConfig()))
	defer s.Close()

	errA := make(chan error, 1)
	go func() {
		_, err := s.BuildNow(context.Background(), openDoc(t, root, "a.ts"))
		errA <- err
	}()

	<-entered
	idxB, err := s.BuildNow(context.Background(), openDoc(t, root, "b.ts"))
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-errA, ErrBuildSuperseded)

	current := s.Current()
	require.NotNil(t, current)
	assert.Equal(t, idxB.BuildID(), current.BuildID())
	assert.Empty(t, current.Lookup("fromA"))
	assert.Empty(t, current.Lookup("Cube"))
}

func TestScheduler_BuildNowCancelsPending(t *testing.T) {
	root := workspace(t, map[string]string{
		"a.ts": "export const fromA = 1;\n",
		"b.ts": "export const fromB = 1;\n",
	})
	var published atomic.Int32
	s := NewScheduler(NewBuilder(), staticConfig(defaultConfig()),
		WithBuildDelay(time.Hour),
		WithOnPublish(func(*SymbolIndex) { published.Add(1) }),
	)
	defer s.Close()

	tok := s.Schedule(openDoc(t, root, "a.ts"))
	idx, err := s.BuildNow(context.Background(), openDoc(t, root, "b.ts"))
	require.NoError(t, err)
	assert.True(t, tok.Superseded())
	s.Wait()

	assert.Equal(t, int32(1), published.Load())
	assert.Equal(t, idx.BuildID(), s.Current().BuildID())
}

func TestScheduler_Deactivate(t *testing.T) {
	root := workspace(t, map[string]string{"a.ts": "export const fromA = 1;\n"})
	s := NewScheduler(NewBuilder(), staticConfig(defaultConfig()))
	defer s.Close()

	doc := openDoc(t, root, "a.ts")
	_, err := s.BuildNow(context.Background(), doc)
	require.NoError(t, err)
	require.NotNil(t, s.Current())

	s.Deactivate(filepath.Join(root, "other.ts"))
	assert.NotNil(t, s.Current(), "other documents do not deactivate")

	s.Deactivate(doc.Path())
	assert.Nil(t, s.Current())
	assert.Equal(t, "", s.ActivePath())
}

func TestScheduler_Closed(t *testing.T) {
	s := NewScheduler(NewBuilder(), staticConfig(defaultConfig()))
	s.Close()

	doc := document.NewSnapshot("/w/a.ts", "/w", "export const a = 1;")
	assert.True(t, s.Schedule(doc).Superseded())
	_, err := s.BuildNow(context.Background(), doc)
	assert.ErrorIs(t, err, ErrSchedulerClosed)

	_, err = NewScheduler(NewBuilder(), staticConfig(defaultConfig())).BuildNow(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilDocument)
}
