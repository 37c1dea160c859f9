// Package views lays out per-module directory views over exported payload
// blobs, so each module can be browsed with its files in slot order.
package views

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ossyrian/modarc/internal/archive"
	"github.com/ossyrian/modarc/internal/fsutil"
	"github.com/ossyrian/modarc/internal/manifest"
)

// Dir is the directory, under the export directory, holding module views.
const Dir = "modules"

// ErrUnknownMode means a view mode name was not recognised.
var ErrUnknownMode = errors.New("unknown view mode")

// Mode selects how a view entry refers to its blob.
type Mode int

const (
	ModeHardlink Mode = iota
	ModeSymlink
	ModeCopy
)

func (m Mode) String() string {
	switch m {
	case ModeHardlink:
		return "hardlink"
	case ModeSymlink:
		return "symlink"
	case ModeCopy:
		return "copy"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name. The empty string selects ModeHardlink.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hardlink", "link":
		return ModeHardlink, nil
	case "symlink":
		return ModeSymlink, nil
	case "copy":
		return ModeCopy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Options configures Materialize.
type Options struct {
	Mode Mode
	// Overwrite confirms replacing existing view entries. Nil refuses.
	Overwrite fsutil.OverwriteFunc
	Logger    *slog.Logger
}

// Materialize creates modules/<module>/<slot>_<name> under dir for every
// slot of a that references a file. The blobs must already exist under dir,
// as written by manifest.Export. It returns the number of entries created.
func Materialize(dir string, a *archive.Archive, opts Options) (int, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	created := 0
	for m := range a.Modules {
		modDir := filepath.Join(dir, Dir, fsutil.SafeName(a.ModuleName(m)))
		if err := os.MkdirAll(modDir, 0o755); err != nil {
			return created, fmt.Errorf("failed to create view directory: %w", err)
		}

		for s, slot := range a.Slots(m) {
			if slot.Kind != archive.SlotFile {
				opts.Logger.Debug("skipping slot",
					"module", a.ModuleName(m),
					"slot", s,
					"kind", slot.Kind,
				)
				continue
			}

			idx := slot.Index()
			blob := filepath.Join(dir, filepath.FromSlash(manifest.BlobName(idx)))
			entry := filepath.Join(modDir, EntryName(s, a.FileName(idx)))

			if err := place(blob, entry, opts); err != nil {
				return created, fmt.Errorf("failed to create view %s: %w", entry, err)
			}
			created++
		}
	}

	opts.Logger.Info("materialized module views",
		"dir", filepath.Join(dir, Dir),
		"mode", opts.Mode,
		"entries", created,
	)
	return created, nil
}

// EntryName is the view file name of a slot.
func EntryName(slot int, name string) string {
	return fmt.Sprintf("%04d_%s", slot, fsutil.SafeName(name))
}

func place(blob, entry string, opts Options) error {
	if err := fsutil.CheckOverwrite(entry, opts.Overwrite); err != nil {
		return err
	}
	if err := os.Remove(entry); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	switch opts.Mode {
	case ModeHardlink:
		return os.Link(blob, entry)
	case ModeSymlink:
		target, err := filepath.Rel(filepath.Dir(entry), blob)
		if err != nil {
			return err
		}
		return os.Symlink(target, entry)
	case ModeCopy:
		return copyFile(blob, entry)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMode, opts.Mode)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
