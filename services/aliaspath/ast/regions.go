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
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

// region is the inner text span of an embedded <script> or <style> block.
type region struct {
	start int
	end   int
}

var (
	scriptRegionRe = mustRegion(`<script\b[^>]*>(?<body>[\s\S]*?)</script\s*>`)
	styleRegionRe  = mustRegion(`<style\b[^>]*>(?<body>[\s\S]*?)</style\s*>`)
)

func mustRegion(expr string) *regexp2.Regexp {
	re := regexp2.MustCompile(expr, regexp2.IgnoreCase)
	re.MatchTimeout = 2 * time.Second
	return re
}

// templateExtensions are single-file component and markup formats whose
// script and style live in embedded blocks.
var templateExtensions = map[string]bool{
	".vue":    true,
	".svelte": true,
	".html":   true,
	".htm":    true,
}

// IsTemplateFile reports whether path is a markup/component file that embeds
// <script> and <style> blocks.
func IsTemplateFile(path string) bool {
	return templateExtensions[strings.ToLower(filepath.Ext(path))]
}

// scriptRegions returns every non-empty <script> body in text.
func scriptRegions(text string) []region {
	return findRegions(scriptRegionRe, text)
}

// styleRegions returns every non-empty <style> body in text.
func styleRegions(text string) []region {
	return findRegions(styleRegionRe, text)
}

func findRegions(re *regexp2.Regexp, text string) []region {
	if !strings.Contains(strings.ToLower(text), "</") {
		return nil
	}
	runes := document.NewRuneMap(text)
	var out []region
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		if g := m.GroupByName("body"); g != nil && g.Length > 0 {
			out = append(out, region{
				start: runes.ByteOffset(g.Index),
				end:   runes.ByteOffset(g.Index + g.Length),
			})
		}
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		slog.Debug("template region scan stopped", slog.String("error", err.Error()))
	}
	return out
}
