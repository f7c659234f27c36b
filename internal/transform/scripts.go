package transform

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field is one target document field and the script producing it.
type Field struct {
	Name   string `yaml:"name"`
	Script string `yaml:"script"`
}

// ScriptSet is the transform definition of a job. Fields are evaluated in
// order, so later scripts see earlier results through crawlingContext.doc.
type ScriptSet struct {
	ScriptType string         `yaml:"script_type"`
	Defaults   map[string]any `yaml:"defaults"`
	Fields     []Field        `yaml:"fields"`
}

// LoadScripts reads a ScriptSet from a YAML file.
func LoadScripts(path string) (*ScriptSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scripts %s: %w", path, err)
	}
	return ParseScripts(data)
}

// ParseScripts decodes and validates a YAML ScriptSet.
func ParseScripts(data []byte) (*ScriptSet, error) {
	var set ScriptSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse scripts: %w", err)
	}
	seen := make(map[string]bool, len(set.Fields))
	for i, f := range set.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, fmt.Errorf("parse scripts: field %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("parse scripts: duplicate field %q", name)
		}
		seen[name] = true
		set.Fields[i].Name = name
	}
	if set.Defaults == nil {
		set.Defaults = map[string]any{}
	}
	return &set, nil
}
