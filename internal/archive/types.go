package archive

import (
	"github.com/ossyrian/modarc/internal/bytestream"
)

// Header is the fixed 48-byte archive header.
//
// Offsets below DataOffset are absolute; entry offsets are relative to it.
type Header struct {
	Signature [4]byte
	Version   uint32

	FileTableSize   uint16 // declared file-table entry count
	FileTableOffset uint32
	FileCount       uint16
	DataOffset      uint32 // start of the data region

	ModuleTableSize   uint16 // declared module-table entry count
	ModuleTableOffset uint32
	ModuleCount       uint16
	ModMapOffset      uint32

	Reserved [ReservedSize]byte
}

func (h *Header) decode(r *bytestream.Reader) error {
	var err error
	if err = r.ReadInto(h.Signature[:]); err != nil {
		return err
	}
	if h.Version, err = r.ReadU32(); err != nil {
		return err
	}
	if h.FileTableSize, err = r.ReadU16(); err != nil {
		return err
	}
	if h.FileTableOffset, err = r.ReadU32(); err != nil {
		return err
	}
	if h.FileCount, err = r.ReadU16(); err != nil {
		return err
	}
	if h.DataOffset, err = r.ReadU32(); err != nil {
		return err
	}
	if h.ModuleTableSize, err = r.ReadU16(); err != nil {
		return err
	}
	if h.ModuleTableOffset, err = r.ReadU32(); err != nil {
		return err
	}
	if h.ModuleCount, err = r.ReadU16(); err != nil {
		return err
	}
	if h.ModMapOffset, err = r.ReadU32(); err != nil {
		return err
	}
	return r.ReadInto(h.Reserved[:])
}

func (h *Header) encode(w *bytestream.Writer) error {
	steps := []func() error{
		func() error { return w.WriteFixed(h.Signature[:]) },
		func() error { return w.WriteU32(h.Version) },
		func() error { return w.WriteU16(h.FileTableSize) },
		func() error { return w.WriteU32(h.FileTableOffset) },
		func() error { return w.WriteU16(h.FileCount) },
		func() error { return w.WriteU32(h.DataOffset) },
		func() error { return w.WriteU16(h.ModuleTableSize) },
		func() error { return w.WriteU32(h.ModuleTableOffset) },
		func() error { return w.WriteU16(h.ModuleCount) },
		func() error { return w.WriteU32(h.ModMapOffset) },
		func() error { return w.WriteFixed(h.Reserved[:]) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// tableEntry is the shared contract of the two fixed-size table records.
type tableEntry interface {
	decode(r *bytestream.Reader) error
	encode(w *bytestream.Writer) error
	rawName() []byte
}

// FileEntry is one 28-byte file-table record.
type FileEntry struct {
	RawName   [FileNameSize]byte // stored verbatim, trailing garbage included
	Reserved  byte
	Size      uint32
	Timestamp uint32 // packed DOS timestamp
	Reserved2 uint16
	Offset    uint32 // relative to Header.DataOffset
}

func (e *FileEntry) rawName() []byte { return e.RawName[:] }

func (e *FileEntry) decode(r *bytestream.Reader) error {
	var err error
	if err = r.ReadInto(e.RawName[:]); err != nil {
		return err
	}
	if e.Reserved, err = r.ReadU8(); err != nil {
		return err
	}
	if e.Size, err = r.ReadU32(); err != nil {
		return err
	}
	if e.Timestamp, err = r.ReadU32(); err != nil {
		return err
	}
	if e.Reserved2, err = r.ReadU16(); err != nil {
		return err
	}
	e.Offset, err = r.ReadU32()
	return err
}

func (e *FileEntry) encode(w *bytestream.Writer) error {
	if err := w.WriteFixed(e.RawName[:]); err != nil {
		return err
	}
	if err := w.WriteU8(e.Reserved); err != nil {
		return err
	}
	if err := w.WriteU32(e.Size); err != nil {
		return err
	}
	if err := w.WriteU32(e.Timestamp); err != nil {
		return err
	}
	if err := w.WriteU16(e.Reserved2); err != nil {
		return err
	}
	return w.WriteU32(e.Offset)
}

// ModuleEntry is one 28-byte module-table record.
type ModuleEntry struct {
	RawName      [ModuleNameSize]byte
	SlotCount    uint32
	Timestamp    uint32
	Reserved     uint16
	ModMapOffset uint32 // byte offset into the modmap, always even
}

// StartIndex is the module's first position in the modmap array.
func (e *ModuleEntry) StartIndex() int {
	return int(e.ModMapOffset / ModMapEntrySize)
}

func (e *ModuleEntry) rawName() []byte { return e.RawName[:] }

func (e *ModuleEntry) decode(r *bytestream.Reader) error {
	var err error
	if err = r.ReadInto(e.RawName[:]); err != nil {
		return err
	}
	if e.SlotCount, err = r.ReadU32(); err != nil {
		return err
	}
	if e.Timestamp, err = r.ReadU32(); err != nil {
		return err
	}
	if e.Reserved, err = r.ReadU16(); err != nil {
		return err
	}
	e.ModMapOffset, err = r.ReadU32()
	return err
}

func (e *ModuleEntry) encode(w *bytestream.Writer) error {
	if err := w.WriteFixed(e.RawName[:]); err != nil {
		return err
	}
	if err := w.WriteU32(e.SlotCount); err != nil {
		return err
	}
	if err := w.WriteU32(e.Timestamp); err != nil {
		return err
	}
	if err := w.WriteU16(e.Reserved); err != nil {
		return err
	}
	return w.WriteU32(e.ModMapOffset)
}

// SlotKind classifies a resolved modmap value.
type SlotKind uint8

const (
	// SlotFile maps to a valid file-table index.
	SlotFile SlotKind = iota
	// SlotDummy holds the 0xFFFF sentinel.
	SlotDummy
	// SlotUnresolved holds an index past the end of the file table.
	SlotUnresolved
)

func (k SlotKind) String() string {
	switch k {
	case SlotFile:
		return "file"
	case SlotDummy:
		return "dummy"
	case SlotUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// Slot is one resolved (module, slot) position.
type Slot struct {
	Value uint16
	Kind  SlotKind
}

// Index returns the file-table index, or -1 for dummy and unresolved slots.
func (s Slot) Index() int {
	if s.Kind != SlotFile {
		return -1
	}
	return int(s.Value)
}

func resolveSlot(v uint16, fileCount int) Slot {
	switch {
	case v == Dummy:
		return Slot{Value: v, Kind: SlotDummy}
	case int(v) < fileCount:
		return Slot{Value: v, Kind: SlotFile}
	default:
		return Slot{Value: v, Kind: SlotUnresolved}
	}
}
