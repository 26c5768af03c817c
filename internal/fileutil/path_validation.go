package fileutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned by JoinInside when the joined path escapes root.
var ErrOutsideRoot = errors.New("path escapes root directory")

// JoinInside joins elem onto root and returns the absolute result, failing
// when it does not stay below root.
func JoinInside(root string, elem ...string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("could not get absolute path for root '%s': %w", root, err)
	}
	path := filepath.Join(append([]string{absRoot}, elem...)...)

	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return "", fmt.Errorf("could not get relative path: %w", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, filepath.Join(elem...))
	}
	return path, nil
}
