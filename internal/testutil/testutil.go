// Package testutil builds small archives for tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ossyrian/modarc/internal/archive"
)

// TestFile is one file-table row.
type TestFile struct {
	Name string
	Data []byte
}

// TestModule is one module with its raw slot values.
type TestModule struct {
	Name  string
	Slots []uint16
}

// Quiet returns archive options that discard log output.
func Quiet() archive.Options {
	return archive.Options{Logger: DiscardLogger()}
}

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// BuildArchive returns the bytes of a compact archive holding files and
// modules, and the archive parsed back from those bytes. Module slot ranges
// are laid out back to back in the modmap.
func BuildArchive(tb testing.TB, files []TestFile, modules []TestModule) ([]byte, *archive.Archive) {
	tb.Helper()

	layout := &archive.Layout{
		Header: archive.Header{
			Signature:   [4]byte{'M', 'A', 'R', 'C'},
			Version:     1,
			FileCount:   uint16(len(files)),
			ModuleCount: uint16(len(modules)),
		},
	}

	payloads := make([][]byte, len(files))
	for i, f := range files {
		raw, err := archive.CP437.Encode(f.Name, archive.FileNameSize)
		if err != nil {
			tb.Fatalf("encode file name %q: %v", f.Name, err)
		}
		entry := archive.FileEntry{Size: uint32(len(f.Data)), Timestamp: 0x1CCF6DAF}
		copy(entry.RawName[:], raw)
		layout.Files = append(layout.Files, entry)
		payloads[i] = f.Data
	}

	start := 0
	for _, m := range modules {
		raw, err := archive.CP437.Encode(m.Name, archive.ModuleNameSize)
		if err != nil {
			tb.Fatalf("encode module name %q: %v", m.Name, err)
		}
		entry := archive.ModuleEntry{
			SlotCount:    uint32(len(m.Slots)),
			Timestamp:    0x1CCF6DAF,
			ModMapOffset: uint32(start * archive.ModMapEntrySize),
		}
		copy(entry.RawName[:], raw)
		layout.Modules = append(layout.Modules, archive.LayoutModule{Entry: entry, Slots: m.Slots})
		start += len(m.Slots)
	}

	// every offset is zero here; Repack lays the archive out properly
	draft, _, err := archive.Build(layout, payloads, Quiet())
	if err != nil {
		tb.Fatalf("build draft archive: %v", err)
	}
	data, err := draft.Repack(payloads)
	if err != nil {
		tb.Fatalf("repack draft archive: %v", err)
	}

	a, err := archive.Read(data, Quiet())
	if err != nil {
		tb.Fatalf("read test archive: %v", err)
	}
	return data, a
}
