package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a schema file:
//
//	types:
//	  - name: demo.Project
//	    list: Projects
//	    title_field: title
//	    fields:
//	      - {name: title, kind: string}
//	  - name: demo.Task
//	    list: Tasks
//	    fields:
//	      - {name: project, kind: ref, lookup: {list: Projects}}
type File struct {
	Types []*Type `yaml:"types"`
}

// Load decodes a schema document and registers every type it declares.
func Load(r io.Reader) (*Registry, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}

	reg := NewRegistry()
	for _, t := range f.Types {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadFile reads the schema file at path.
func LoadFile(path string) (*Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema: %w", err)
	}
	defer file.Close()

	return Load(file)
}
