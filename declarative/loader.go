package declarative

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSpecFromPath reads and parses a YAML workflow document from disk.
func LoadSpecFromPath(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DeclarativeLoaderError{Path: path, Err: err}
	}
	spec, err := LoadSpec(data)
	if err != nil {
		if lerr, ok := err.(*DeclarativeLoaderError); ok {
			lerr.Path = path
			return nil, lerr
		}
		return nil, &DeclarativeLoaderError{Path: path, Err: err}
	}
	return spec, nil
}

// LoadSpec parses a YAML workflow document from bytes.
func LoadSpec(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, &DeclarativeLoaderError{Err: fmt.Errorf("parse yaml: %w", err)}
	}
	if spec.Name == "" {
		return nil, &DeclarativeLoaderError{Err: fmt.Errorf("workflow spec missing required \"name\" field")}
	}
	if spec.Start == "" {
		return nil, &DeclarativeLoaderError{Err: fmt.Errorf("workflow spec missing required \"start\" field")}
	}
	if len(spec.Nodes) == 0 {
		return nil, &DeclarativeLoaderError{Err: fmt.Errorf("workflow spec has no nodes")}
	}
	return &spec, nil
}
