package codemodel

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a declaration tree from YAML. JSON input is accepted as well
// since it is a subset of YAML.
func Parse(data []byte) (*Model, error) {
	var model Model
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&model); err != nil {
		return nil, fmt.Errorf("failed to decode declaration tree: %w", err)
	}
	model.Link()
	return &model, nil
}

// Load reads and decodes a declaration tree file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declaration tree: %w", err)
	}
	model, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if model.Source == "" {
		model.Source = path
	}
	return model, nil
}
