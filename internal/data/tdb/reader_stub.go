//go:build !tiledb

package tdb

import (
	"github.com/droview/server/internal/data/dro"
)

// Reader is a stub when built without "-tags tiledb".
type Reader struct {
	studyURI string
}

// NewReader creates a TileDB study reader (stub). It still resolves and
// validates the study path so config issues are caught early, but Load
// returns ErrUnsupported.
func NewReader(path string) (*Reader, error) {
	uri, err := ResolveStudyURI(path)
	if err != nil {
		return nil, err
	}
	return &Reader{studyURI: uri}, nil
}

func (r *Reader) Supported() bool { return false }

func (r *Reader) StudyURI() string { return r.studyURI }

// Load reads the full study into a Dataset.
func (r *Reader) Load() (*dro.Dataset, error) {
	return nil, ErrUnsupported
}
