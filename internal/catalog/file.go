package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource serves a catalog from a JSON array on disk. The file is re-read
// on every call so a sync picks up edits.
type FileSource struct {
	path string
}

// NewFileSource returns a FileSource reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// ListProducts decodes the file.
func (f *FileSource) ListProducts(_ context.Context) ([]Product, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", f.path, err)
	}
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", f.path, err)
	}
	return products, nil
}
