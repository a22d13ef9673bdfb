package bundler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrRefuseClean indicates the output directory is a filesystem root.
var ErrRefuseClean = errors.New("refusing to clean filesystem root")

// CleanDir removes everything inside dir, keeping dir itself. A missing
// directory is not an error. Returns the number of top level entries removed.
func CleanDir(dir string) (int, error) {
	dir = filepath.Clean(dir)
	if filepath.Dir(dir) == dir {
		return 0, fmt.Errorf("%w: %s", ErrRefuseClean, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
		removed++
	}

	return removed, nil
}
