// Package archive implements the module archive container: a 48-byte header,
// a module table, a file table, a modmap translating (module, slot) pairs to
// file-table indices, and a data region holding every file's payload.
//
// An Archive is built in one of three ways: Read parses an archive buffer,
// Build reconstructs one verbatim from a Layout, and Repack rewrites a parsed
// one into a compact layout. Write serializes whatever offsets are set and
// never computes any itself.
package archive

import (
	"log/slog"
	"strings"
)

// Archive is the in-memory form of one container file.
//
// Files, Modules and ModMap are index-addressed tables; the index of a file
// entry is the value stored in the modmap.
type Archive struct {
	Header  Header
	Files   []FileEntry
	Modules []ModuleEntry
	ModMap  []uint16

	slots    [][]Slot
	payloads [][]byte
	warnings []error

	names  NameCodec
	logger *slog.Logger
}

// Options configures parsing and building.
type Options struct {
	// Logger receives integrity warnings. Defaults to slog.Default().
	Logger *slog.Logger
	// Names decodes raw name fields. Defaults to CP437.
	Names NameCodec
	// Strict makes Build reject payloads whose length differs from the declared size.
	Strict bool
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Names.enc == nil {
		o.Names = CP437
	}
}

// FileName returns the decoded display name of file i.
func (a *Archive) FileName(i int) string {
	return a.names.Decode(a.Files[i].RawName[:])
}

// ModuleName returns the decoded display name of module m.
func (a *Archive) ModuleName(m int) string {
	return a.names.Decode(a.Modules[m].RawName[:])
}

// Names returns the codec used for display names.
func (a *Archive) Names() NameCodec { return a.names }

// Payload returns the payload bytes of file i. The slice is owned by the archive.
func (a *Archive) Payload(i int) []byte {
	return a.payloads[i]
}

// Payloads returns a copy of the payload list indexed by file-table position.
func (a *Archive) Payloads() [][]byte {
	out := make([][]byte, len(a.payloads))
	copy(out, a.payloads)
	return out
}

// Slots returns the resolved slots of module m.
func (a *Archive) Slots(m int) []Slot {
	return a.slots[m]
}

// Warnings returns the non-fatal integrity problems found while parsing.
func (a *Archive) Warnings() []error {
	return a.warnings
}

// FindModule returns the index of the first module whose name matches
// (case-insensitive).
func (a *Archive) FindModule(name string) (int, bool) {
	for m := range a.Modules {
		if strings.EqualFold(a.ModuleName(m), name) {
			return m, true
		}
	}
	return -1, false
}

// FindFile scans the slot range of module m for the first file slot whose
// file name matches (case-insensitive). It returns the slot position and the
// file-table index.
func (a *Archive) FindFile(m int, name string) (slot int, index int, ok bool) {
	for s, ref := range a.slots[m] {
		if ref.Kind != SlotFile {
			continue
		}
		if strings.EqualFold(a.FileName(ref.Index()), name) {
			return s, ref.Index(), true
		}
	}
	return -1, -1, false
}

// Lookup resolves a (module, filename) pair to a file-table index.
func (a *Archive) Lookup(module, name string) (index int, ok bool) {
	m, ok := a.FindModule(module)
	if !ok {
		return -1, false
	}
	_, index, ok = a.FindFile(m, name)
	return index, ok
}

// modMapLength is max(start+slotCount) over modules.
func modMapLength(modules []ModuleEntry) int64 {
	var n int64
	for i := range modules {
		end := int64(modules[i].StartIndex()) + int64(modules[i].SlotCount)
		if end > n {
			n = end
		}
	}
	return n
}

// resolve rebuilds the slot table from ModMap, collecting out-of-range
// references as warnings.
func (a *Archive) resolve() {
	a.slots = make([][]Slot, len(a.Modules))
	a.warnings = a.warnings[:0]

	for m := range a.Modules {
		start := a.Modules[m].StartIndex()
		count := int(a.Modules[m].SlotCount)
		slots := make([]Slot, count)

		for s := 0; s < count; s++ {
			slots[s] = resolveSlot(a.ModMap[start+s], len(a.Files))
			if slots[s].Kind == SlotUnresolved {
				err := &IndexError{
					Module: a.ModuleName(m),
					Slot:   s,
					Value:  slots[s].Value,
					Files:  len(a.Files),
				}
				a.warnings = append(a.warnings, err)
				a.logger.Warn("modmap references missing file entry",
					"module", err.Module,
					"slot", s,
					"value", err.Value,
					"file_count", err.Files,
				)
			}
		}
		a.slots[m] = slots
	}
}
