// Package expdef manipulates template experiment definition documents.
// A template is a tree-structured YAML file that sweeper treats as opaque
// except for applying edit operations (add node, remove node, set attribute)
// at slash-separated path expressions. The external engine owns the meaning
// of the document's contents.
package expdef

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed template experiment definition.
type Document struct {
	root *yaml.Node
}

// Load reads and parses a template document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing template document %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// Parse parses a template document from raw YAML bytes.
func Parse(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("template document is empty")
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("template document root must be a mapping")
	}
	return &Document{root: &root}, nil
}

// Clone returns a deep copy of the document. Edits applied to the copy never
// affect the original, so one loaded template can materialize every run.
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root)}
}

// Encode serializes the document back to YAML bytes.
func (d *Document) Encode() ([]byte, error) {
	return yaml.Marshal(d.root)
}

// Save writes the document to path with 0644 permissions.
func (d *Document) Save(path string) error {
	data, err := d.Encode()
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

// Lookup returns the scalar value at path/key, or false if absent.
// Used by tests and manifest verification; edits go through Apply.
func (d *Document) Lookup(path, key string) (string, bool) {
	node := d.resolve(path)
	if node == nil {
		return "", false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key && node.Content[i+1].Kind == yaml.ScalarNode {
			return node.Content[i+1].Value, true
		}
	}
	return "", false
}

// resolve walks a slash-separated path expression from the document root and
// returns the mapping node it names, or nil if any segment is absent.
func (d *Document) resolve(path string) *yaml.Node {
	node := d.root.Content[0]
	if path == "" || path == "." {
		return node
	}
	for _, seg := range strings.Split(path, "/") {
		next := childMapping(node, seg)
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

// childMapping returns the mapping child of node under key, or nil.
func childMapping(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key && node.Content[i+1].Kind == yaml.MappingNode {
			return node.Content[i+1]
		}
	}
	return nil
}

// cloneNode deep-copies a yaml.Node tree.
func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Alias != nil {
		c.Alias = cloneNode(n.Alias)
	}
	if n.Content != nil {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}

// scalarNode builds a scalar node for value, tagging it as int, float, bool,
// or string so the encoder renders it the way the engine expects.
func scalarNode(value string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	switch {
	case value == "true" || value == "false":
		n.Tag = "!!bool"
	case isInt(value):
		n.Tag = "!!int"
	case isFloat(value):
		n.Tag = "!!float"
	default:
		n.Tag = "!!str"
	}
	return n
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
