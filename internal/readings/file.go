package readings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"fieldmap/internal/types"
)

// FileSource reads a CSV reading table from the local filesystem. The file
// may be gzip or zstd compressed.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements types.ReadingSource.
func (s *FileSource) Name() string { return "file:" + s.path }

// Load implements types.ReadingSource.
func (s *FileSource) Load(ctx context.Context) ([]types.SensorReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		msg := fmt.Sprintf("could not open reading table %s", s.path)
		if errors.Is(err, fs.ErrNotExist) {
			msg = "could not find specified data for the period mentioned"
		}
		return nil, sourceError(msg, err, map[string]any{"path": s.path})
	}
	defer f.Close()

	return DecodeStream(f)
}
