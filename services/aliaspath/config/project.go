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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// PackageJSON is the manifest file whose `aliaspath` field is the last
// project override candidate.
const PackageJSON = "package.json"

// DefaultProjectFiles are tried in order when no custom file is configured.
var DefaultProjectFiles = []string{
	".aliaspath.json",
	".aliaspath.yaml",
	".aliaspath.yml",
	".aliaspath.toml",
}

// ProjectFiles returns the override file names considered for a root, in
// precedence order, given the host's custom config file setting.
func ProjectFiles(customFile string) []string {
	if customFile != "" {
		return []string{customFile, PackageJSON}
	}
	return append(append([]string{}, DefaultProjectFiles...), PackageJSON)
}

// LoadProject returns the project override layer for root.
//
// Description:
//
//	Tries the custom file (or the default .aliaspath.* names), then the
//	`aliaspath` field of package.json. The first file that exists and
//	decodes wins. A file that exists but does not decode is logged and
//	skipped.
//
// Inputs:
//
//	root - Absolute workspace root. Empty yields no override.
//	customFile - Host `aliaspath.configFile` setting. May be empty.
//
// Outputs:
//
//	*ResolutionConfig - nil when no override applies.
//	string - The file the override came from, or "".
func LoadProject(root, customFile string) (*ResolutionConfig, string) {
	if root == "" {
		return nil, ""
	}
	for _, name := range ProjectFiles(customFile) {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, name)
		}
		cfg, err := loadProjectFile(path, name == PackageJSON)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Warn("ignoring unreadable project config",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if cfg == nil {
			continue
		}
		return cfg, path
	}
	return nil, ""
}

func loadProjectFile(path string, manifest bool) (*ResolutionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if manifest {
		var pkg struct {
			AliasPath *ResolutionConfig `json:"aliaspath"`
		}
		if err := json.Unmarshal(data, &pkg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		return pkg.AliasPath, nil
	}

	var cfg ResolutionConfig
	if err := decode(path, data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
