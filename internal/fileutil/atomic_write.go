package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to filename through a temporary file in the
// same directory, so readers see either the old or the new content. Missing
// parent directories are created with mode 0700.
func AtomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	dir, name := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpfile, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmpfile.Name()) // no-op after a successful rename

	if _, err := tmpfile.Write(data); err != nil {
		tmpfile.Close()
		return err
	}
	if err := tmpfile.Sync(); err != nil {
		tmpfile.Close()
		return err
	}
	if err := tmpfile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpfile.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmpfile.Name(), filename)
}
