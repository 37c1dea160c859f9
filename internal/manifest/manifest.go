// Package manifest converts archives to and from a JSON structural
// description with one payload blob per file-table index, so an archive can
// be exported, edited by hand and rebuilt verbatim.
package manifest

import (
	_ "crypto/sha256" // registers digest.SHA256
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/ossyrian/modarc/internal/archive"
	"github.com/ossyrian/modarc/internal/dostime"
	"github.com/ossyrian/modarc/internal/fsutil"
)

const (
	// FileName is the manifest document inside an export directory.
	FileName = "manifest.json"
	// BlobDir holds the payload blobs inside an export directory.
	BlobDir = "files"
)

var (
	// ErrInvalidManifest means the manifest cannot describe an archive.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrDigestMismatch means a blob does not match the digest recorded for it.
	ErrDigestMismatch = errors.New("payload digest mismatch")
)

// BlobName returns the blob path of file-table index i, relative to the
// export directory.
func BlobName(i int) string {
	return path.Join(BlobDir, fmt.Sprintf("%05d.bin", i))
}

// FromArchive describes a. Payload digests are recorded for every file.
func FromArchive(a *archive.Archive) *Manifest {
	h := a.Header
	m := &Manifest{
		Format:       FormatName,
		NameEncoding: a.Names().String(),
		Header: Header{
			Signature:         hex.EncodeToString(h.Signature[:]),
			Version:           h.Version,
			FileTableSize:     h.FileTableSize,
			FileTableOffset:   h.FileTableOffset,
			FileCount:         h.FileCount,
			DataOffset:        h.DataOffset,
			ModuleTableSize:   h.ModuleTableSize,
			ModuleTableOffset: h.ModuleTableOffset,
			ModuleCount:       h.ModuleCount,
			ModMapOffset:      h.ModMapOffset,
			Reserved:          hex.EncodeToString(h.Reserved[:]),
		},
		Files:   make([]File, len(a.Files)),
		Modules: make([]Module, len(a.Modules)),
		ModMap:  append([]uint16(nil), a.ModMap...),
	}

	for i, f := range a.Files {
		m.Files[i] = File{
			Index:     i,
			Name:      a.FileName(i),
			RawName:   hex.EncodeToString(f.RawName[:]),
			Reserved:  f.Reserved,
			Size:      f.Size,
			Timestamp: f.Timestamp,
			Time:      calendar(f.Timestamp),
			Reserved2: f.Reserved2,
			Offset:    f.Offset,
			Blob:      BlobName(i),
			Digest:    digest.FromBytes(a.Payload(i)),
		}
	}

	for i, mod := range a.Modules {
		slots := a.Slots(i)
		values := make([]SlotValue, len(slots))
		for s, ref := range slots {
			values[s] = SlotValue(ref.Value)
		}
		m.Modules[i] = Module{
			Index:       i,
			Name:        a.ModuleName(i),
			RawName:     hex.EncodeToString(mod.RawName[:]),
			SlotCount:   mod.SlotCount,
			Timestamp:   mod.Timestamp,
			Time:        calendar(mod.Timestamp),
			Reserved:    mod.Reserved,
			ModMapStart: mod.StartIndex(),
			Slots:       values,
		}
	}

	return m
}

func calendar(ts uint32) string {
	t, ok := dostime.Decode(ts)
	if !ok {
		return ""
	}
	return t.Format(time.DateTime)
}

// Layout converts the manifest into an archive layout. Raw name hex, when
// present, takes precedence over the display name.
func (m *Manifest) Layout() (*archive.Layout, error) {
	names, err := archive.LookupNameCodec(m.NameEncoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	l := &archive.Layout{
		Files:   make([]archive.FileEntry, len(m.Files)),
		Modules: make([]archive.LayoutModule, len(m.Modules)),
	}
	if m.ModMap != nil {
		l.ModMap = append([]uint16(nil), m.ModMap...)
	}

	h := &l.Header
	if err := decodeHex(m.Header.Signature, h.Signature[:], "header signature"); err != nil {
		return nil, err
	}
	if err := decodeHex(m.Header.Reserved, h.Reserved[:], "header reserved"); err != nil {
		return nil, err
	}
	h.Version = m.Header.Version
	h.FileTableSize = m.Header.FileTableSize
	h.FileTableOffset = m.Header.FileTableOffset
	h.FileCount = m.Header.FileCount
	h.DataOffset = m.Header.DataOffset
	h.ModuleTableSize = m.Header.ModuleTableSize
	h.ModuleTableOffset = m.Header.ModuleTableOffset
	h.ModuleCount = m.Header.ModuleCount
	h.ModMapOffset = m.Header.ModMapOffset

	for i, f := range m.Files {
		if f.Index != i {
			return nil, fmt.Errorf("%w: file at position %d has index %d", ErrInvalidManifest, i, f.Index)
		}
		e := &l.Files[i]
		if err := rawName(names, f.RawName, f.Name, e.RawName[:], fmt.Sprintf("file %d", i)); err != nil {
			return nil, err
		}
		e.Reserved = f.Reserved
		e.Size = f.Size
		e.Timestamp = f.Timestamp
		e.Reserved2 = f.Reserved2
		e.Offset = f.Offset
	}

	for i, mod := range m.Modules {
		if mod.Index != i {
			return nil, fmt.Errorf("%w: module at position %d has index %d", ErrInvalidManifest, i, mod.Index)
		}
		if mod.ModMapStart < 0 {
			return nil, fmt.Errorf("%w: module %d modmap start %d", ErrInvalidManifest, i, mod.ModMapStart)
		}
		e := archive.ModuleEntry{
			SlotCount:    mod.SlotCount,
			Timestamp:    mod.Timestamp,
			Reserved:     mod.Reserved,
			ModMapOffset: uint32(mod.ModMapStart) * archive.ModMapEntrySize,
		}
		if err := rawName(names, mod.RawName, mod.Name, e.RawName[:], fmt.Sprintf("module %d", i)); err != nil {
			return nil, err
		}
		slots := make([]uint16, len(mod.Slots))
		for s, v := range mod.Slots {
			slots[s] = uint16(v)
		}
		l.Modules[i] = archive.LayoutModule{Entry: e, Slots: slots}
	}

	return l, nil
}

func decodeHex(s string, dst []byte, what string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidManifest, what, err)
	}
	if len(b) != len(dst) {
		return fmt.Errorf("%w: %s is %d bytes, want %d", ErrInvalidManifest, what, len(b), len(dst))
	}
	copy(dst, b)
	return nil
}

func rawName(names archive.NameCodec, rawHex, name string, dst []byte, what string) error {
	if rawHex != "" {
		return decodeHex(rawHex, dst, what+" raw name")
	}
	b, err := names.Encode(name, len(dst))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidManifest, what, err)
	}
	copy(dst, b)
	return nil
}

// ExportOptions configures Export.
type ExportOptions struct {
	// Overwrite confirms replacing existing files. Nil refuses.
	Overwrite fsutil.OverwriteFunc
	Logger    *slog.Logger
}

// Export writes the manifest and one blob per file under dir.
func Export(dir string, a *archive.Archive, opts ExportOptions) (*Manifest, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := FromArchive(a)

	if err := os.MkdirAll(filepath.Join(dir, BlobDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	for i := range a.Files {
		p := filepath.Join(dir, filepath.FromSlash(m.Files[i].Blob))
		if err := fsutil.CheckOverwrite(p, opts.Overwrite); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, a.Payload(i), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write blob %d: %w", i, err)
		}
	}

	doc, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestPath := filepath.Join(dir, FileName)
	if err := fsutil.CheckOverwrite(manifestPath, opts.Overwrite); err != nil {
		return nil, err
	}
	if err := fsutil.WriteFileAtomic(manifestPath, append(doc, '\n'), 0o644); err != nil {
		return nil, err
	}

	opts.Logger.Info("exported archive",
		"dir", dir,
		"files", len(m.Files),
		"modules", len(m.Modules),
	)
	return m, nil
}

// Load reads the manifest in dir and every blob it references, verifying
// recorded digests.
func Load(dir string) (*Manifest, [][]byte, error) {
	doc, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m := &Manifest{}
	if err := json.Unmarshal(doc, m); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	payloads := make([][]byte, len(m.Files))
	for i, f := range m.Files {
		blob := f.Blob
		if blob == "" {
			blob = BlobName(i)
		}
		if !filepath.IsLocal(filepath.FromSlash(blob)) {
			return nil, nil, fmt.Errorf("%w: file %d blob path %q leaves the export directory",
				ErrInvalidManifest, i, blob)
		}

		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(blob)))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read blob %d: %w", i, err)
		}
		if err := verify(f.Digest, data); err != nil {
			return nil, nil, fmt.Errorf("file %d (%s): %w", i, blob, err)
		}
		payloads[i] = data
	}

	return m, payloads, nil
}

func verify(d digest.Digest, data []byte) error {
	if d == "" {
		return nil
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if got := d.Algorithm().FromBytes(data); got != d {
		return fmt.Errorf("%w: have %s, want %s", ErrDigestMismatch, got, d)
	}
	return nil
}
