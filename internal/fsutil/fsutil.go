// Package fsutil holds the small filesystem policies shared by the
// commands: atomic whole-file commits and overwrite confirmation.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrOverwriteDeclined means an existing destination was not confirmed for overwrite.
var ErrOverwriteDeclined = errors.New("refusing to overwrite existing file")

// OverwriteFunc decides whether an existing path may be replaced.
type OverwriteFunc func(path string) bool

// Always allows every overwrite.
func Always(string) bool { return true }

// Never refuses every overwrite.
func Never(string) bool { return false }

// CheckOverwrite returns nil when path does not exist or allow confirms it.
func CheckOverwrite(path string, allow OverwriteFunc) error {
	_, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if allow == nil || !allow(path) {
		return fmt.Errorf("%w: %s", ErrOverwriteDeclined, path)
	}
	return nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so path is never left partially written.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// SafeName makes an archive name usable as a single path element.
func SafeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
