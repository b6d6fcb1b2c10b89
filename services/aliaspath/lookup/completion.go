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
	"strings"

	"github.com/AleutianAI/aliaspath/services/aliaspath/document"
)

// FrameworkDetail is the Detail of completion items from FrameworkKeywords.
const FrameworkDetail = "vue"

// FrameworkKeywords are the component options, instance members, global API
// names and lifecycle hooks offered by completion alongside index keywords.
var FrameworkKeywords = []string{
	"extend", "nextTick", "set", "delete", "directive", "filter", "component",
	"use", "mixin", "compile", "observable", "version",
	"data", "props", "propsData", "computed", "methods", "watch",
	"el", "template", "render", "renderError",
	"beforeCreate", "created", "beforeMounted", "mounted", "beforeUpdate",
	"updated", "activated", "deactivated", "beforeDestroy", "destroyed",
	"errorCaptured",
	"directives", "filters", "components", "parent", "mixins", "extends",
	"provide", "inject", "name", "delimiters", "functional", "model",
	"inheritAttrs", "comments",
	"$data", "$props", "$el", "$options", "$parent", "$root", "$children",
	"$slots", "$scopedSlots", "$refs", "$isServer", "$attrs", "$listeners",
	"$watch", "$set", "$delete", "$mount", "$forceUpdate", "$nextTick",
	"$destroy",
	"hook:beforeCreate", "hook:created", "hook:beforeMounted", "hook:mounted",
	"hook:beforeUpdate", "hook:updated", "hook:activated", "hook:deactivated",
	"hook:beforeDestroy", "hook:destroyed",
}

// CompletionItem is one completion candidate.
type CompletionItem struct {
	Keyword string `json:"keyword"`

	// Detail is the source file of an index keyword, or FrameworkDetail.
	Detail string `json:"detail"`
}

// Complete offers completions for the word at pos.
//
// Returns nothing when completion is disabled in the document's config.
func (f *Facade) Complete(ctx context.Context, doc document.Document, pos document.Position) []CompletionItem {
	if !f.configFor(doc.Path()).AutoSuggest() {
		return nil
	}
	var word string
	if w, ok := matchAt(wordPattern, doc.Text(), doc.OffsetAt(pos)); ok {
		word = w.text
	}
	return f.CompleteWord(ctx, word)
}

// CompleteWord matches word as a case-insensitive substring against the
// current index keywords, then against FrameworkKeywords.
//
// Description:
//
//	Index matches come first, best first (exact, prefix, substring). An
//	empty word matches everything. Identical keyword and detail pairs are
//	reported once.
func (f *Facade) CompleteWord(ctx context.Context, word string) []CompletionItem {
	idx := f.indexes.Current()
	var out []CompletionItem
	seen := make(map[CompletionItem]struct{})
	add := func(item CompletionItem) {
		if _, dup := seen[item]; dup {
			return
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}

	if word == "" {
		for _, tok := range idx.Tokens() {
			add(CompletionItem{Keyword: tok.Keyword, Detail: tok.FilePath})
		}
	} else {
		matches, err := idx.Search(ctx, word, 0)
		if err != nil {
			recordLookup(queryComplete, 0)
			return nil
		}
		for _, tok := range matches {
			add(CompletionItem{Keyword: tok.Keyword, Detail: tok.FilePath})
		}
	}

	lower := strings.ToLower(word)
	for _, kw := range FrameworkKeywords {
		if strings.Contains(strings.ToLower(kw), lower) {
			add(CompletionItem{Keyword: kw, Detail: FrameworkDetail})
		}
	}
	recordLookup(queryComplete, len(out))
	return out
}
