package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store edits the YAML config file itself. Unlike viper it only holds what
// the file contains, so saving never writes defaults or environment values
// back to disk.
type Store struct {
	path string
	data map[string]interface{}
}

// OpenStore loads the file at path. A missing file gives an empty store.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path, data: map[string]interface{}{}}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if s.data == nil {
		s.data = map[string]interface{}{}
	}
	return s, nil
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Set stores a value under the given dot-notation key, creating the
// intermediate sections.
func (s *Store) Set(key string, value interface{}) {
	parts := strings.Split(key, ".")
	m := s.data
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// Get returns the raw value for a dot-notation key.
func (s *Store) Get(key string) (interface{}, bool) {
	v, ok := flatten("", s.data)[key]
	return v, ok
}

// Keys returns every dot-notation key in the file, sorted.
func (s *Store) Keys() []string {
	flat := flatten("", s.data)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the store back to its file.
func (s *Store) Save() error {
	out, err := yaml.Marshal(s.data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(s.path, out, 0o644)
}

// flatten converts a nested map into dot-notation keys.
func flatten(prefix string, m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			for fk, fv := range flatten(key, val) {
				out[fk] = fv
			}
		case map[interface{}]interface{}:
			// YAML sometimes produces map[interface{}]interface{}.
			converted := make(map[string]interface{}, len(val))
			for mk, mv := range val {
				converted[fmt.Sprint(mk)] = mv
			}
			for fk, fv := range flatten(key, converted) {
				out[fk] = fv
			}
		default:
			out[key] = v
		}
	}
	return out
}
