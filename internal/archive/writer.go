package archive

import (
	"fmt"

	"github.com/ossyrian/modarc/internal/bytestream"
)

// RequiredSize returns the smallest buffer that holds every region the
// current offsets describe: header, both tables, modmap and data region.
func (a *Archive) RequiredSize() int64 {
	size := int64(HeaderSize)
	grow := func(end int64) {
		if end > size {
			size = end
		}
	}

	if n := len(a.Modules); n > 0 {
		grow(int64(a.Header.ModuleTableOffset) + int64(n)*ModuleEntrySize)
	}
	if n := len(a.Files); n > 0 {
		grow(int64(a.Header.FileTableOffset) + int64(n)*FileEntrySize)
	}
	if n := len(a.ModMap); n > 0 {
		grow(int64(a.Header.ModMapOffset) + int64(n)*ModMapEntrySize)
	}
	for i := range a.Files {
		length := int64(a.Files[i].Size)
		if i < len(a.payloads) && int64(len(a.payloads[i])) > length {
			length = int64(len(a.payloads[i]))
		}
		grow(int64(a.Header.DataOffset) + int64(a.Files[i].Offset) + length)
	}
	return size
}

// Write serializes the archive into w at the offsets already set on it:
// header, module table, file table, modmap, then each file's payload at
// DataOffset+Offset. w must be large enough; see RequiredSize.
func (a *Archive) Write(w *bytestream.Writer) error {
	if err := w.Seek(0); err != nil {
		return overrun("header", err)
	}
	if err := a.Header.encode(w); err != nil {
		return overrun("header", err)
	}

	if err := writeTable(w, int64(a.Header.ModuleTableOffset), a.Modules, "module"); err != nil {
		return err
	}
	if err := writeTable(w, int64(a.Header.FileTableOffset), a.Files, "file"); err != nil {
		return err
	}

	if len(a.ModMap) > 0 {
		if err := w.Seek(int(a.Header.ModMapOffset)); err != nil {
			return overrun("modmap", err)
		}
		for i, v := range a.ModMap {
			if err := w.WriteU16(v); err != nil {
				return overrun(fmt.Sprintf("modmap entry %d", i), err)
			}
		}
	}

	for i := range a.Files {
		if i >= len(a.payloads) || len(a.payloads[i]) == 0 {
			continue
		}
		pos := int64(a.Header.DataOffset) + int64(a.Files[i].Offset)
		if pos > int64(w.Len()) {
			return fmt.Errorf("%w: payload %d at %d, buffer is %d bytes", ErrBufferOverrun, i, pos, w.Len())
		}
		if err := w.Seek(int(pos)); err != nil {
			return overrun(fmt.Sprintf("payload %d", i), err)
		}
		if err := w.WriteFixed(a.payloads[i]); err != nil {
			return overrun(fmt.Sprintf("payload %d", i), err)
		}
	}

	return nil
}

// Bytes allocates RequiredSize bytes and writes the archive into them.
func (a *Archive) Bytes() ([]byte, error) {
	w := bytestream.NewWriter(int(a.RequiredSize()))
	if err := a.Write(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func writeTable[T any, P interface {
	*T
	tableEntry
}](w *bytestream.Writer, offset int64, entries []T, kind string) error {
	if len(entries) == 0 {
		return nil
	}
	if offset > int64(w.Len()) {
		return fmt.Errorf("%w: %s table at %d, buffer is %d bytes", ErrBufferOverrun, kind, offset, w.Len())
	}
	if err := w.Seek(int(offset)); err != nil {
		return overrun(kind+" table", err)
	}
	for i := range entries {
		if err := P(&entries[i]).encode(w); err != nil {
			return overrun(fmt.Sprintf("%s entry %d", kind, i), err)
		}
	}
	return nil
}

func overrun(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBufferOverrun, what, err)
}
