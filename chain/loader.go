package chain

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/reportflow/validation"
)

// Loader loads chain definitions by name.
type Loader interface {
	Load(name string) (*Definition, error)
}

// FileLoader loads definitions from YAML files on disk.
type FileLoader struct {
	dirs []string
}

// NewFileLoader creates a loader that searches dirs for {name}.yaml and
// {name}.yml, directly and one level of subdirectories deep.
func NewFileLoader(dirs ...string) *FileLoader {
	return &FileLoader{dirs: dirs}
}

// Load returns the first definition found for name.
func (l *FileLoader) Load(name string) (*Definition, error) {
	if err := validation.Var(name, "chainname"); err != nil {
		return nil, fmt.Errorf("chain %q: %w", name, ErrNotFound)
	}
	for _, dir := range l.dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			candidates := []string{filepath.Join(dir, name+ext)}
			matches, _ := filepath.Glob(filepath.Join(dir, "*", name+ext))
			candidates = append(candidates, matches...)
			for _, path := range candidates {
				if _, err := os.Stat(path); err != nil {
					continue
				}
				return LoadFile(path)
			}
		}
	}
	return nil, fmt.Errorf("chain %q not found in %v: %w", name, l.dirs, ErrNotFound)
}

// LoadFile reads and parses one definition file.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a definition. Unknown fields are rejected.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := decodeStrict(data, &def); err != nil {
		return nil, err
	}
	if def.Name == "" {
		return nil, fmt.Errorf("%w: definition has no name", ErrInvalidNode)
	}
	if err := validation.Var(def.Name, "chainname"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}
	return &def, nil
}

// MapLoader serves definitions held in memory, keyed by name.
type MapLoader map[string]*Definition

// Load implements Loader.
func (m MapLoader) Load(name string) (*Definition, error) {
	def, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("chain %q: %w", name, ErrNotFound)
	}
	return def, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
