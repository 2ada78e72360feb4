package osm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Open returns the feed matching the extension of path:
// .pbf for protobuf extracts, .json for Overpass documents.
func Open(path string) (Feed, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("input %s is a directory", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pbf":
		return NewPBFFeed(path), nil
	case ".json":
		return NewOverpassFeed(path), nil
	default:
		return nil, fmt.Errorf("unsupported input format %q (want .pbf or .json)", ext)
	}
}
