// Package repo loads the minimal on-disk description a caller of this
// agent needs: one YAML file per node, naming its hostname, metadata,
// and item bundles. Parsing a full bundle repository layout (templates,
// group hierarchies, Jinja-style metadata merging) is explicitly
// peripheral to this system's core and is not reproduced here — this
// loader covers exactly the shape the apply engine consumes: a flat
// item list per node.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/bundlewrap/blockwart/internal/item"
	"github.com/bundlewrap/blockwart/internal/items"
	"github.com/bundlewrap/blockwart/internal/node"
	"github.com/bundlewrap/blockwart/internal/transport"
)

// itemYAML is one item entry as authored in a node file.
type itemYAML struct {
	ID          string                 `yaml:"id"`
	Type        string                 `yaml:"type"`
	Name        string                 `yaml:"name"`
	Attributes  map[string]interface{} `yaml:"attributes"`
	Depends     []string               `yaml:"depends"`
	Needs       []string               `yaml:"needs"`
	Triggers    []string               `yaml:"triggers"`
	Triggered   bool                   `yaml:"triggered"`
	CascadeSkip *bool                  `yaml:"cascade_skip"`
}

// nodeYAML is the on-disk shape of one node definition file.
type nodeYAML struct {
	Hostname string                 `yaml:"hostname"`
	Metadata map[string]interface{} `yaml:"metadata"`
	Bundles  map[string][]itemYAML  `yaml:"bundles"`
}

// LoadNode reads path (a single node's YAML file) and constructs a Node
// bound to t. Items are built via items.New, so malformed attributes
// surface as the same *item.ValidationError the core's error taxonomy
// names for configuration errors.
func LoadNode(name, path string, t transport.Transport) (*node.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read node file %q: %w", path, err)
	}
	var doc nodeYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse node file %q: %w", path, err)
	}

	// Bundle iteration order only affects tie-breaking among
	// simultaneously-ready items, never correctness, but a stable
	// ordering keeps runs reproducible — sort bundle names rather than
	// rely on Go's randomized map iteration.
	bundleNames := make([]string, 0, len(doc.Bundles))
	for name := range doc.Bundles {
		bundleNames = append(bundleNames, name)
	}
	sort.Strings(bundleNames)

	var built []item.Item
	for _, bundleName := range bundleNames {
		for _, raw := range doc.Bundles[bundleName] {
			cfg := item.Config{
				ID:             raw.ID,
				Type:           raw.Type,
				Name:           raw.Name,
				Attributes:     raw.Attributes,
				ExplicitDeps:   raw.Depends,
				Needs:          raw.Needs,
				Triggers:       raw.Triggers,
				Triggered:      raw.Triggered,
				CascadeSkipSet: raw.CascadeSkip,
			}
			if cfg.ID == "" {
				cfg.ID = cfg.Type + ":" + cfg.Name
			}
			it, err := items.New(cfg, t)
			if err != nil {
				return nil, fmt.Errorf("bundle %q: %w", bundleName, err)
			}
			built = append(built, it)
		}
	}

	return node.New(name, doc.Hostname, doc.Metadata, built, t)
}

// NodeNamesIn lists every "<name>.yaml" file directly under dir. The CLI
// loads single node files through LoadNode and does not call it.
func NodeNamesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read node directory %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, e.Name()[:len(e.Name())-len(ext)])
	}
	sort.Strings(names)
	return names, nil
}
