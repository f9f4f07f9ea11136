// Package tdb provides optional, read-only access to a study stored as
// TileDB dense arrays. It exists for DROs too large to hold as flat files;
// the directory loader in internal/data/dro remains the default source.
//
// Build with "-tags tiledb" to enable; without the tag every read returns
// ErrUnsupported.
package tdb

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported indicates this binary was built without TileDB support.
var ErrUnsupported = errors.New("tiledb support is not enabled in this build (build server with: go build -tags tiledb)")

// ResolveStudyURI normalizes and validates a TileDB study group path.
// The group must contain study.json next to its member arrays.
func ResolveStudyURI(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", errors.New("empty study path")
	}
	p = os.ExpandEnv(p)
	p = filepath.Clean(p)
	if _, err := os.Stat(filepath.Join(p, "study.json")); err != nil {
		return "", err
	}
	return p, nil
}
