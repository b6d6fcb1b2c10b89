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
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/aliaspath/services/aliaspath/resolve"
)

// AliasTable is an alias map that remembers the order keys were written in.
//
// JSON and YAML documents keep their key order. TOML tables carry no order
// through the decoder, so their keys are sorted.
type AliasTable []resolve.Alias

// Aliases returns the table as resolver aliases.
func (t AliasTable) Aliases() []resolve.Alias {
	return []resolve.Alias(t)
}

// Lookup returns the value for key.
func (t AliasTable) Lookup(key string) (string, bool) {
	for _, a := range t {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// set inserts or replaces key, keeping the first position.
func (t AliasTable) set(key, value string) AliasTable {
	for i := range t {
		if t[i].Key == key {
			t[i].Value = value
			return t
		}
	}
	return append(t, resolve.Alias{Key: key, Value: value})
}

// UnmarshalJSON decodes a JSON object in document order.
func (t *AliasTable) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: alias: %v", ErrInvalidConfig, err)
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: alias must be an object", ErrInvalidConfig)
	}

	table := AliasTable{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: alias: %v", ErrInvalidConfig, err)
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%w: alias %q: value must be a string", ErrInvalidConfig, key)
		}
		table = table.set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: alias: %v", ErrInvalidConfig, err)
	}
	*t = table
	return nil
}

// MarshalJSON encodes the table as a JSON object in table order.
func (t AliasTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(a.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a YAML mapping in document order.
func (t *AliasTable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: alias must be a mapping (line %d)", ErrInvalidConfig, node.Line)
	}
	table := AliasTable{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("%w: alias %q: value must be a string (line %d)", ErrInvalidConfig, k.Value, v.Line)
		}
		table = table.set(k.Value, v.Value)
	}
	*t = table
	return nil
}

// MarshalYAML encodes the table as an ordered YAML mapping.
func (t AliasTable) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range t {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: a.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: a.Value},
		)
	}
	return node, nil
}

// UnmarshalTOML decodes a TOML table with keys in sorted order.
func (t *AliasTable) UnmarshalTOML(data any) error {
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: alias must be a table", ErrInvalidConfig)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := make(AliasTable, 0, len(keys))
	for _, k := range keys {
		v, ok := m[k].(string)
		if !ok {
			return fmt.Errorf("%w: alias %q: value must be a string", ErrInvalidConfig, k)
		}
		table = append(table, resolve.Alias{Key: k, Value: v})
	}
	*t = table
	return nil
}
