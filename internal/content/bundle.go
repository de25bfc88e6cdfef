// Package content loads help content for indexing. Bundles are YAML files
// on disk, each holding the items of one content type; Store keeps the same
// items in PostgreSQL so that every replica can rebuild from one place.
package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
)

// Bundle is the on-disk format of a content file:
//
//	type: faq
//	items:
//	  - id: faq-1
//	    question: How do I pop bubbles?
//	    answer: Tap them.
type Bundle struct {
	Type  string                   `yaml:"type"`
	Items []helpsearch.ContentItem `yaml:"items"`
}

// ReadBundle parses one bundle file. A bundle without a type takes the
// file name without its extension.
func ReadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle %s: %w", path, err)
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parsing bundle %s: %w", path, err)
	}
	if b.Type == "" {
		b.Type = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &b, nil
}

// BundleDir is a Source reading every *.yaml and *.yml file in Dir.
type BundleDir struct {
	Dir string
}

// Load reads the bundles in file-name order. Bundles sharing a type are
// concatenated.
func (d BundleDir) Load(ctx context.Context) (map[string][]helpsearch.ContentItem, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("listing bundle dir %s: %w", d.Dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(d.Dir, e.Name()))
		}
	}
	sort.Strings(paths)

	groups := make(map[string][]helpsearch.ContentItem)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := ReadBundle(path)
		if err != nil {
			return nil, err
		}
		groups[b.Type] = append(groups[b.Type], b.Items...)
	}
	return groups, nil
}
