package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/clipmark/clipmark-agent/internal/export"
)

// DirSaver writes clips into a single flat directory, creating it on
// first use.
type DirSaver struct {
	Dir string
}

// NewDirSaver validates the target before creating it; a dir that does
// not exist yet is fine, anything else ValidateOutputDir rejects is not.
func NewDirSaver(dir string) (*DirSaver, error) {
	if err := export.ValidateOutputDir(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("clip dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create clip dir: %w", err)
	}
	return &DirSaver{Dir: dir}, nil
}

func (s *DirSaver) Save(filename string, data []byte) error {
	if filename == "" {
		return fmt.Errorf("clip filename is required")
	}
	if filepath.Base(filename) != filename {
		return fmt.Errorf("clip filename cannot contain path separators")
	}

	path := filepath.Join(s.Dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write clip: %w", err)
	}
	return nil
}

// Path resolves a saved clip's location, rejecting traversal.
func (s *DirSaver) Path(filename string) (string, error) {
	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid clip filename")
	}
	return filepath.Join(s.Dir, filename), nil
}
