package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrIndexCorrupt marks an index document that failed to parse; the store
// recovers by starting from an empty index and letting the next save
// overwrite the broken file.
var ErrIndexCorrupt = errors.New("corrupt submission index")

// indexMap maps submission id to record path, relative to the cache root in
// slash form.
type indexMap = map[string]string

// loadIndexFile reads the index document. Missing means empty; corrupt
// returns an empty map alongside ErrIndexCorrupt.
func loadIndexFile(path string) (indexMap, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(indexMap), nil
	}
	if err != nil {
		return make(indexMap), fmt.Errorf("failed to read index: %w", err)
	}
	index := make(indexMap)
	if err := json.Unmarshal(data, &index); err != nil {
		return make(indexMap), fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	return index, nil
}

// writeJSONAtomic writes v as indented JSON through a temp file in the
// target directory followed by a rename, so a concurrent reader never
// observes a partial document.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".write-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
