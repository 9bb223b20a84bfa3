package bundle

import (
	"fmt"
	"os"
	"path/filepath"
)

// PrepareWorkDir makes dir exist and be empty.
func PrepareWorkDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create working directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read working directory: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clean working directory: %w", err)
		}
	}
	return nil
}
