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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// HostSettings is the host-wide settings layer.
//
// Description:
//
//	Shaped like an editor settings document: the `aliaspath` section holds
//	a ResolutionConfig layer plus the name of a custom project config file,
//	and the `files.exclude` / `search.exclude` maps contribute their
//	enabled keys to the exclude globs.
//
// Example (JSON):
//
//	{
//	  "aliaspath": {"alias": {"@": "${cwd}/src"}, "configFile": ".paths.json"},
//	  "files.exclude": {"**/dist/**": true}
//	}
type HostSettings struct {
	AliasPath     HostAliasPath   `json:"aliaspath" yaml:"aliaspath" toml:"aliaspath"`
	FilesExclude  map[string]bool `json:"files.exclude,omitempty" yaml:"files.exclude,omitempty" toml:"files.exclude,omitempty"`
	SearchExclude map[string]bool `json:"search.exclude,omitempty" yaml:"search.exclude,omitempty" toml:"search.exclude,omitempty"`
}

// HostAliasPath is the `aliaspath` section of HostSettings.
type HostAliasPath struct {
	ResolutionConfig `yaml:",inline"`

	// ConfigFile replaces the default project config file names when set.
	// Relative paths are taken from the workspace root.
	ConfigFile string `json:"configFile,omitempty" yaml:"configFile,omitempty" toml:"configFile,omitempty"`
}

// LoadHostSettings reads a settings file. The format follows the file
// extension: .json, .yaml, .yml or .toml.
func LoadHostSettings(path string) (HostSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return HostSettings{}, fmt.Errorf("reading settings %s: %w", path, err)
	}
	var hs HostSettings
	if err := decode(path, data, &hs); err != nil {
		return HostSettings{}, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return hs, nil
}

// ParseHostSettingsJSON decodes settings delivered as JSON, for example in
// an LSP initialize or didChangeConfiguration message. Empty input yields
// zero settings.
func ParseHostSettingsJSON(data []byte) (HostSettings, error) {
	var hs HostSettings
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return hs, nil
	}
	if err := json.Unmarshal(data, &hs); err != nil {
		return HostSettings{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return hs, nil
}

// decode unmarshals data into v by file extension.
func decode(path string, data []byte, v any) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	case ".toml":
		_, err = toml.Decode(string(data), v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
