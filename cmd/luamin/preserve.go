package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// PreservedNames lists global names that are never renamed.
type PreservedNames struct {
	Functions []string `yaml:"functions"`
	Variables []string `yaml:"variables"`
}

// loadPreserveFile reads a YAML file with functions and variables lists.
func loadPreserveFile(filename string) (PreservedNames, error) {
	f, err := os.Open(filename)
	if err != nil {
		return PreservedNames{}, err
	}
	defer f.Close()

	names := PreservedNames{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&names); err != nil && err != io.EOF {
		return PreservedNames{}, fmt.Errorf("preserve file %q: %w", filename, err)
	}
	return names, nil
}
