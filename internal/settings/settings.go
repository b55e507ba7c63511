// Package settings reads the flat JSON settings documents that drive
// individual detlab operations (dataset credentials, training parameters).
// Defaults, where they exist, are the caller's responsibility.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// ErrNotFound indicates the settings file does not exist.
var ErrNotFound = errors.New("settings file not found")

// ErrMalformed indicates the settings file is not a valid JSON object.
var ErrMalformed = errors.New("settings file malformed")

// readFile is a seam for tests that need to observe or fail reads.
var readFile = os.ReadFile

// Load parses the JSON object at path into a mapping.
func Load(path string) (map[string]any, error) {
	data, err := readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return parsed, nil
}

// LoadSection re-reads the full settings file and extracts a top-level
// object. Each call performs its own file read; the file is not cached
// between calls.
func LoadSection(path, section string) (map[string]any, error) {
	parsed, err := Load(path)
	if err != nil {
		return nil, err
	}
	raw, ok := parsed[section]
	if !ok {
		return nil, fmt.Errorf("settings %s: missing %q section", path, section)
	}
	mapped, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("settings %s: %q is not an object", path, section)
	}
	return mapped, nil
}

// MissingKeys returns the required keys absent from the mapping, sorted.
func MissingKeys(values map[string]any, required []string) []string {
	var missing []string
	for _, key := range required {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// StringValue extracts a string-typed key, with "" for absent or non-string.
func StringValue(values map[string]any, key string) string {
	if raw, ok := values[key]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return ""
}
