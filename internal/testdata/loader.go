package testdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"api-path-tester/internal/types"
)

// ErrFixtureNotFound is returned when no fixture file exists for a data key and dataset
var ErrFixtureNotFound = errors.New("fixture not found")

// Loader handles loading fixture payloads from files laid out as <dir>/<dataset>/<data_key>.json
type Loader struct {
	dir string
}

// NewLoader creates a new fixture loader
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Dir returns the fixture root directory
func (l *Loader) Dir() string {
	return l.dir
}

// FixturePath returns the file that holds the fixture for a data key and dataset
func (l *Loader) FixturePath(dataKey, dataset string) string {
	return filepath.Join(l.dir, dataset, dataKey+".json")
}

// Load reads the fixture payload for a data key. Every call decodes the file again,
// so callers may mutate the returned map freely.
func (l *Loader) Load(dataKey string, useInvalidData bool) (map[string]interface{}, error) {
	dataset := types.DatasetValid
	if useInvalidData {
		dataset = types.DatasetInvalid
	}
	return l.LoadDataset(dataKey, dataset)
}

// LoadDataset reads the fixture payload for a data key from the named dataset
func (l *Loader) LoadDataset(dataKey, dataset string) (map[string]interface{}, error) {
	path := l.FixturePath(dataKey, dataset)
	file, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFixtureNotFound, path)
		}
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(file, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}

	return payload, nil
}

// Save writes a fixture payload, creating the dataset directory if needed
func (l *Loader) Save(dataKey, dataset string, payload map[string]interface{}) error {
	path := l.FixturePath(dataKey, dataset)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create fixture directory: %w", err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fixture: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write fixture file: %w", err)
	}
	return nil
}
