// Package defaults loads the static defaults tree that backs a graph's
// config collection.
//
// The tree is a YAML mapping. Top-level mappings become documents of the
// "defaults" collection and other top-level values its scalar members:
//
//	config_collection_rewrite: false
//	store:
//	  scheme: dynamodb
//	  host: localhost
//	  port: 8000
//	  database: arbor
//	  params:
//	    region: eu-west-1
package defaults

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/arbor/store"
)

//go:embed config.yml
var embedded []byte

// Embedded returns the built-in defaults tree.
func Embedded() (map[string]any, error) {
	return Parse(embedded)
}

// Load reads and parses a YAML defaults file.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults %s: %w", path, err)
	}
	tree, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tree, nil
}

// Parse decodes a YAML defaults tree. Integers come back as int64 and
// floats as float64. An empty document is an empty tree.
func Parse(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse defaults: %w", err)
	}
	tree := store.Clone(raw)
	if tree == nil {
		tree = map[string]any{}
	}
	if err := checkKeys(tree, ""); err != nil {
		return nil, err
	}
	return tree, nil
}

// checkKeys rejects field names the graph cannot address.
func checkKeys(tree map[string]any, prefix string) error {
	for k, v := range tree {
		if k == "" || strings.ContainsAny(k, "./") {
			return fmt.Errorf("parse defaults: invalid key %q at %q", k, prefix)
		}
		if m, ok := v.(map[string]any); ok {
			if err := checkKeys(m, prefix+k+"."); err != nil {
				return err
			}
		}
	}
	return nil
}
