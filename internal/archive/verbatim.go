package archive

import (
	"fmt"
	"slices"
)

// Layout is a complete structural description of an archive. Build takes
// every field as given.
type Layout struct {
	Header  Header
	Files   []FileEntry
	Modules []LayoutModule

	// ModMap is the raw modmap. When nil it is derived from the module slot
	// lists, with positions outside every module's range set to Dummy.
	ModMap []uint16
}

// LayoutModule is a module entry together with its slot values.
type LayoutModule struct {
	Entry ModuleEntry
	Slots []uint16
}

// LayoutOf describes a parsed archive so that Build can reproduce it.
func LayoutOf(a *Archive) *Layout {
	l := &Layout{
		Header:  a.Header,
		Files:   slices.Clone(a.Files),
		Modules: make([]LayoutModule, len(a.Modules)),
		ModMap:  slices.Clone(a.ModMap),
	}
	for m := range a.Modules {
		slots := make([]uint16, len(a.slots[m]))
		for s, ref := range a.slots[m] {
			slots[s] = ref.Value
		}
		l.Modules[m] = LayoutModule{Entry: a.Modules[m], Slots: slots}
	}
	return l
}

// Build reconstructs an archive from layout and payloads without computing
// any offset, validates it, and returns it with its serialized bytes.
//
// Every inconsistency is an error: table lengths against declared counts,
// slot lists against slot counts, slot values against the file count, the
// raw modmap against the slot lists and, when opts.Strict is set, payload
// lengths against declared sizes. Nothing is returned on failure.
func Build(layout *Layout, payloads [][]byte, opts Options) (*Archive, []byte, error) {
	opts.applyDefaults()

	if err := validateLayout(layout, payloads, opts); err != nil {
		return nil, nil, err
	}

	modmap, err := layoutModMap(layout)
	if err != nil {
		return nil, nil, err
	}

	if err := checkPayloadSizes(layout, payloads, opts); err != nil {
		return nil, nil, err
	}

	a := &Archive{
		Header:   layout.Header,
		Files:    slices.Clone(layout.Files),
		Modules:  make([]ModuleEntry, len(layout.Modules)),
		ModMap:   modmap,
		payloads: slices.Clone(payloads),
		names:    opts.Names,
		logger:   opts.Logger,
	}
	for m := range layout.Modules {
		a.Modules[m] = layout.Modules[m].Entry
	}
	a.resolve()

	data, err := a.Bytes()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write verbatim archive: %w", err)
	}

	opts.Logger.Info("built archive",
		"files", len(a.Files),
		"modules", len(a.Modules),
		"size", len(data),
	)
	return a, data, nil
}

func validateLayout(layout *Layout, payloads [][]byte, opts Options) error {
	h := layout.Header

	if len(payloads) != len(layout.Files) {
		return fmt.Errorf("%w: got %d payloads for %d files",
			ErrArgumentCountMismatch, len(payloads), len(layout.Files))
	}
	if len(layout.Files) != int(h.FileCount) {
		return fmt.Errorf("%w: %d file entries, header declares %d",
			ErrCountMismatch, len(layout.Files), h.FileCount)
	}
	if len(layout.Modules) != int(h.ModuleCount) {
		return fmt.Errorf("%w: %d module entries, header declares %d",
			ErrCountMismatch, len(layout.Modules), h.ModuleCount)
	}

	for m, mod := range layout.Modules {
		if len(mod.Slots) != int(mod.Entry.SlotCount) {
			return fmt.Errorf("%w: module %d has %d slots, declares %d",
				ErrCountMismatch, m, len(mod.Slots), mod.Entry.SlotCount)
		}
		if mod.Entry.ModMapOffset%ModMapEntrySize != 0 {
			return fmt.Errorf("%w: module %d modmap offset %d is not even",
				ErrMalformedHeader, m, mod.Entry.ModMapOffset)
		}
		for s, v := range mod.Slots {
			if v != Dummy && int(v) >= len(layout.Files) {
				return &IndexError{
					Module: opts.Names.Decode(mod.Entry.RawName[:]),
					Slot:   s,
					Value:  v,
					Files:  len(layout.Files),
				}
			}
		}
	}

	return nil
}

func checkPayloadSizes(layout *Layout, payloads [][]byte, opts Options) error {
	if opts.Strict {
		for i := range layout.Files {
			if len(payloads[i]) != int(layout.Files[i].Size) {
				return fmt.Errorf("%w: file %d declares %d bytes, payload has %d",
					ErrPayloadSizeMismatch, i, layout.Files[i].Size, len(payloads[i]))
			}
		}
	} else {
		for i := range layout.Files {
			if len(payloads[i]) != int(layout.Files[i].Size) {
				opts.Logger.Warn("payload size differs from declared size",
					"index", i,
					"declared", layout.Files[i].Size,
					"actual", len(payloads[i]),
				)
			}
		}
	}

	return nil
}

// layoutModMap returns the raw modmap, checked against the slot lists, or
// derives one from them.
func layoutModMap(layout *Layout) ([]uint16, error) {
	entries := make([]ModuleEntry, len(layout.Modules))
	for m := range layout.Modules {
		entries[m] = layout.Modules[m].Entry
	}
	n := modMapLength(entries)

	if layout.ModMap != nil {
		if int64(len(layout.ModMap)) != n {
			return nil, fmt.Errorf("%w: raw modmap has %d entries, modules require %d",
				ErrModMapMismatch, len(layout.ModMap), n)
		}
		for m, mod := range layout.Modules {
			start := mod.Entry.StartIndex()
			for s, v := range mod.Slots {
				if layout.ModMap[start+s] != v {
					return nil, fmt.Errorf("%w: module %d slot %d is %#04x, modmap[%d] is %#04x",
						ErrModMapMismatch, m, s, v, start+s, layout.ModMap[start+s])
				}
			}
		}
		return slices.Clone(layout.ModMap), nil
	}

	modmap := make([]uint16, n)
	written := make([]bool, n)
	for i := range modmap {
		modmap[i] = Dummy
	}
	for m, mod := range layout.Modules {
		start := mod.Entry.StartIndex()
		for s, v := range mod.Slots {
			pos := start + s
			if written[pos] && modmap[pos] != v {
				return nil, fmt.Errorf("%w: module %d slot %d conflicts with an overlapping module at modmap[%d]",
					ErrModMapMismatch, m, s, pos)
			}
			modmap[pos] = v
			written[pos] = true
		}
	}
	return modmap, nil
}
