package tool

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// CatalogEntry is one tool in a YAML catalog.
type CatalogEntry struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Fields      []Field `yaml:"fields"`
	// Template is the instruction template. When empty it is generated as a
	// printed call of App's API with the arguments as keyword arguments.
	Template string `yaml:"template"`
	App      string `yaml:"app"`
	// Completion marks the entry as the completion tool.
	Completion bool `yaml:"completion"`
}

// Catalog is the document LoadCatalog reads.
type Catalog struct {
	Tools []CatalogEntry `yaml:"tools"`
}

// LoadCatalog decodes a YAML catalog and builds a registry from it.
func LoadCatalog(r io.Reader) (*Registry, error) {
	var c Catalog

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return NewRegistry()
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	descs := make([]Descriptor, 0, len(c.Tools))

	for i, e := range c.Tools {
		d, err := e.descriptor()
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		descs = append(descs, d)
	}

	return NewRegistry(descs...)
}

// DefaultCatalog returns a registry of the built-in world tools.
func DefaultCatalog() (*Registry, error) {
	return LoadCatalog(bytes.NewReader(defaultCatalog))
}

func (e CatalogEntry) descriptor() (Descriptor, error) {
	if e.Name == "" {
		return Descriptor{}, errors.New("name is required")
	}

	if e.Completion {
		d := NewCompletionTool(e.Name)
		if e.Description != "" {
			d.Description = e.Description
		}
		return d, nil
	}

	tmpl := e.Template
	if tmpl == "" {
		if e.App == "" {
			return Descriptor{}, fmt.Errorf("tool %s needs a template or an app", e.Name)
		}
		tmpl = fmt.Sprintf("print(apis.%s.%s({{kwargs .}}))", e.App, e.Name)
	}

	return NewTemplateTool(e.Name, e.Description, e.Fields, tmpl)
}
