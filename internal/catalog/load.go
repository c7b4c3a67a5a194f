package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Kirdow/Coral/pkg/coral"
)

// File is the YAML layout of a catalog document
//
//	assembly: App
//	types:
//	  - name: App.Animal
//	    fields:
//	      - {name: Name, type: System.String}
//	    methods:
//	      - {name: Speak}
//	objects:
//	  7: App.Dog
type File struct {
	Assembly string                        `yaml:"assembly"`
	Types    []TypeDef                     `yaml:"types"`
	Objects  map[coral.ObjectHandle]string `yaml:"objects,omitempty"`
}

// DefaultAssembly is used for documents that do not name one
const DefaultAssembly = "App"

// Parse builds a catalog from a YAML document
func Parse(data []byte) (*Catalog, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	assembly := f.Assembly
	if assembly == "" {
		assembly = DefaultAssembly
	}

	c, err := New(assembly, f.Types...)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	for handle, name := range f.Objects {
		if err := c.Bind(handle, name); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
	}
	return c, nil
}

// Load reads a catalog from a YAML file. An empty path yields a catalog
// holding only the built-in types.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return New(DefaultAssembly)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}
