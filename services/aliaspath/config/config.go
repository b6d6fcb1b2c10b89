// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config supplies the merged resolution configuration for a document.
//
// Three layers contribute, highest precedence first: a project override file
// in the workspace root, host-wide settings, and built-in defaults. The
// core packages only ever see the merged ResolutionConfig.
package config

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/aliaspath/services/aliaspath/resolve"
)

// ErrInvalidConfig marks a configuration document that could not be decoded.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// Resolution Configuration
// =============================================================================

// ResolutionConfig is one configuration layer, or the merged result.
//
// Description:
//
//	In a layer, a nil slice, nil pointer or zero number means "not set" and
//	lets the next layer decide. The merged config returned by Merge has
//	every field set.
//
// Thread Safety: Treat as immutable once published; safe for concurrent reads.
type ResolutionConfig struct {
	// Alias maps alias keys to paths; `${cwd}` expands to the workspace root.
	Alias AliasTable `json:"alias,omitempty" yaml:"alias,omitempty" toml:"alias,omitempty"`

	// AllowedExtensions are probed for extensionless specifiers.
	AllowedExtensions []string `json:"allowedExt,omitempty" yaml:"allowedExt,omitempty" toml:"allowedExt,omitempty" validate:"omitempty,dive,required,excludes=/"`

	// IgnoredExtensions are stripped before probing.
	IgnoredExtensions []string `json:"allowedIgnoreExt,omitempty" yaml:"allowedIgnoreExt,omitempty" toml:"allowedIgnoreExt,omitempty" validate:"omitempty,dive,required,excludes=/"`

	// ScriptTokenExtensions route files to the script parser only.
	ScriptTokenExtensions []string `json:"jsTokenExt,omitempty" yaml:"jsTokenExt,omitempty" toml:"jsTokenExt,omitempty" validate:"omitempty,dive,required,excludes=/"`

	// StyleTokenExtensions route files to the style parser only.
	StyleTokenExtensions []string `json:"cssTokenExt,omitempty" yaml:"cssTokenExt,omitempty" toml:"cssTokenExt,omitempty" validate:"omitempty,dive,required,excludes=/"`

	// ExcludeGlobs remove matching paths from resolution results.
	ExcludeGlobs []string `json:"excludeGlobs,omitempty" yaml:"excludeGlobs,omitempty" toml:"excludeGlobs,omitempty" validate:"omitempty,dive,required"`

	// MaxDependFileSize is the size gate for indexed files, in megabytes.
	MaxDependFileSize float64 `json:"maxDependFileSize,omitempty" yaml:"maxDependFileSize,omitempty" toml:"maxDependFileSize,omitempty" validate:"omitempty,gt=0,lte=1024"`

	// ActiveLanguages lists the language ids the feature is enabled for.
	ActiveLanguages []string `json:"activeLanguages,omitempty" yaml:"activeLanguages,omitempty" toml:"activeLanguages,omitempty" validate:"omitempty,dive,required"`

	// AutoSuggestion enables completion.
	AutoSuggestion *bool `json:"autoSuggestion,omitempty" yaml:"autoSuggestion,omitempty" toml:"autoSuggestion,omitempty"`
}

// Defaults returns the built-in configuration layer.
func Defaults() ResolutionConfig {
	auto := true
	return ResolutionConfig{
		Alias:                 AliasTable{{Key: "@", Value: "${cwd}/src"}},
		AllowedExtensions:     []string{"js", "jsx", "ts", "tsx", "vue", "css", "less", "scss"},
		IgnoredExtensions:     []string{},
		ScriptTokenExtensions: []string{"js", "jsx", "ts", "tsx", "mjs", "cjs", "vue"},
		StyleTokenExtensions:  []string{"css", "less", "scss"},
		ExcludeGlobs:          []string{"**/node_modules/**"},
		MaxDependFileSize:     2,
		ActiveLanguages:       []string{"javascript", "javascriptreact", "typescript", "typescriptreact", "vue"},
		AutoSuggestion:        &auto,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Normalize validates a layer and returns a cleaned copy.
//
// Description:
//
//	Fields that fail validation are cleared, so the next layer supplies
//	them, and a warning is logged. Extension entries lose any leading dot.
//	Alias entries with an empty key are dropped.
//
// Inputs:
//
//	source - Where the layer came from, for logging.
//
// Outputs:
//
//	ResolutionConfig - Never fails.
func (c ResolutionConfig) Normalize(source string) ResolutionConfig {
	out := c
	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				slog.Warn("ignoring invalid configuration value",
					slog.String("source", source),
					slog.String("field", fe.Namespace()),
					slog.String("rule", fe.Tag()),
				)
				out.clearField(topLevelField(fe.StructNamespace()))
			}
		}
	}

	if out.Alias != nil {
		aliases := make(AliasTable, 0, len(out.Alias))
		for _, a := range out.Alias {
			if a.Key == "" {
				slog.Warn("ignoring alias with empty key", slog.String("source", source))
				continue
			}
			aliases = append(aliases, a)
		}
		out.Alias = aliases
	}
	out.AllowedExtensions = trimExts(out.AllowedExtensions)
	out.IgnoredExtensions = trimExts(out.IgnoredExtensions)
	out.ScriptTokenExtensions = trimExts(out.ScriptTokenExtensions)
	out.StyleTokenExtensions = trimExts(out.StyleTokenExtensions)
	return out
}

// topLevelField turns "ResolutionConfig.AllowedExtensions[2]" into
// "AllowedExtensions".
func topLevelField(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.IndexAny(ns, ".["); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

func (c *ResolutionConfig) clearField(name string) {
	switch name {
	case "AllowedExtensions":
		c.AllowedExtensions = nil
	case "IgnoredExtensions":
		c.IgnoredExtensions = nil
	case "ScriptTokenExtensions":
		c.ScriptTokenExtensions = nil
	case "StyleTokenExtensions":
		c.StyleTokenExtensions = nil
	case "ExcludeGlobs":
		c.ExcludeGlobs = nil
	case "MaxDependFileSize":
		c.MaxDependFileSize = 0
	case "ActiveLanguages":
		c.ActiveLanguages = nil
	}
}

func trimExts(exts []string) []string {
	if exts == nil {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if e = resolve.TrimExt(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Merge layers project over host over Defaults and adds the host's
// enabled exclude-map keys to the exclude globs.
func Merge(project *ResolutionConfig, host HostSettings) ResolutionConfig {
	def := Defaults()
	var proj ResolutionConfig
	if project != nil {
		proj = project.Normalize("project")
	}
	h := host.AliasPath.ResolutionConfig.Normalize("host")

	merged := ResolutionConfig{
		Alias:                 firstAliases(proj.Alias, h.Alias, def.Alias),
		AllowedExtensions:     firstSlice(proj.AllowedExtensions, h.AllowedExtensions, def.AllowedExtensions),
		IgnoredExtensions:     firstSlice(proj.IgnoredExtensions, h.IgnoredExtensions, def.IgnoredExtensions),
		ScriptTokenExtensions: firstSlice(proj.ScriptTokenExtensions, h.ScriptTokenExtensions, def.ScriptTokenExtensions),
		StyleTokenExtensions:  firstSlice(proj.StyleTokenExtensions, h.StyleTokenExtensions, def.StyleTokenExtensions),
		ExcludeGlobs:          firstSlice(proj.ExcludeGlobs, h.ExcludeGlobs, def.ExcludeGlobs),
		MaxDependFileSize:     firstPositive(proj.MaxDependFileSize, h.MaxDependFileSize, def.MaxDependFileSize),
		ActiveLanguages:       firstSlice(proj.ActiveLanguages, h.ActiveLanguages, def.ActiveLanguages),
		AutoSuggestion:        firstBool(proj.AutoSuggestion, h.AutoSuggestion, def.AutoSuggestion),
	}
	merged.ExcludeGlobs = unionGlobs(merged.ExcludeGlobs, host.FilesExclude, host.SearchExclude)
	return merged
}

func firstAliases(layers ...AliasTable) AliasTable {
	for _, l := range layers {
		if l != nil {
			return append(AliasTable(nil), l...)
		}
	}
	return AliasTable{}
}

func firstSlice(layers ...[]string) []string {
	for _, l := range layers {
		if l != nil {
			return append([]string{}, l...)
		}
	}
	return []string{}
}

func firstPositive(layers ...float64) float64 {
	for _, l := range layers {
		if l > 0 {
			return l
		}
	}
	return 0
}

func firstBool(layers ...*bool) *bool {
	for _, l := range layers {
		if l != nil {
			v := *l
			return &v
		}
	}
	v := false
	return &v
}

// unionGlobs appends the keys whose value is true from each exclude map,
// sorted for stable output, skipping duplicates.
func unionGlobs(base []string, maps ...map[string]bool) []string {
	seen := make(map[string]struct{}, len(base))
	out := make([]string, 0, len(base))
	for _, g := range base {
		if _, dup := seen[g]; !dup {
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	for _, m := range maps {
		keys := make([]string, 0, len(m))
		for k, enabled := range m {
			if enabled {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	return out
}

// =============================================================================
// Derived Views
// =============================================================================

// Rules returns the resolver's view of the config.
func (c ResolutionConfig) Rules() resolve.Rules {
	return resolve.Rules{
		Aliases:           c.Alias.Aliases(),
		Extensions:        c.AllowedExtensions,
		IgnoredExtensions: c.IgnoredExtensions,
		Exclude:           c.ExcludeGlobs,
	}
}

// MaxDependFileBytes converts the megabyte gate to bytes.
func (c ResolutionConfig) MaxDependFileBytes() int64 {
	return int64(c.MaxDependFileSize * 1024 * 1024)
}

// AutoSuggest reports whether completion is enabled.
func (c ResolutionConfig) AutoSuggest() bool {
	return c.AutoSuggestion != nil && *c.AutoSuggestion
}

// IsScriptTokenFile reports whether path's extension is routed to the script
// parser.
func (c ResolutionConfig) IsScriptTokenFile(path string) bool {
	return hasExt(c.ScriptTokenExtensions, path)
}

// IsStyleTokenFile reports whether path's extension is routed to the style
// parser.
func (c ResolutionConfig) IsStyleTokenFile(path string) bool {
	return hasExt(c.StyleTokenExtensions, path)
}

func hasExt(exts []string, path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// languageIDs maps file extensions to editor language identifiers.
var languageIDs = map[string]string{
	"js":     "javascript",
	"mjs":    "javascript",
	"cjs":    "javascript",
	"jsx":    "javascriptreact",
	"ts":     "typescript",
	"mts":    "typescript",
	"cts":    "typescript",
	"tsx":    "typescriptreact",
	"vue":    "vue",
	"svelte": "svelte",
	"html":   "html",
	"htm":    "html",
	"css":    "css",
	"less":   "less",
	"scss":   "scss",
}

// LanguageID guesses the editor language id of path from its extension.
func LanguageID(path string) string {
	return languageIDs[strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")]
}

// IsActiveLanguage reports whether the feature is enabled for languageID.
// An empty languageID is inferred from path.
func (c ResolutionConfig) IsActiveLanguage(languageID, path string) bool {
	if languageID == "" {
		languageID = LanguageID(path)
	}
	for _, l := range c.ActiveLanguages {
		if l == languageID || l == "*" {
			return true
		}
	}
	return false
}
