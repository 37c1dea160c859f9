package archive

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/ossyrian/modarc/internal/bytestream"
)

// PackedSize returns the exact length of the archive Repack would produce
// for payloads: header, module table, file table, modmap and the sum of all
// payload lengths.
func (a *Archive) PackedSize(payloads [][]byte) (int64, error) {
	if len(payloads) != len(a.Files) {
		return 0, fmt.Errorf("%w: got %d payloads for %d files",
			ErrArgumentCountMismatch, len(payloads), len(a.Files))
	}

	data := lo.SumBy(payloads, func(p []byte) int64 { return int64(len(p)) })

	return a.tablesEnd() + data, nil
}

// tablesEnd is where the data region starts in a packed layout.
func (a *Archive) tablesEnd() int64 {
	return HeaderSize +
		int64(len(a.Modules))*ModuleEntrySize +
		int64(len(a.Files))*FileEntrySize +
		int64(len(a.ModMap))*ModMapEntrySize
}

// Repack lays the archive out again with no gaps and returns the new bytes.
//
// Each file's size becomes its payload length and its offset the running sum
// of the sizes before it in file-table order. The module table follows the
// header, then the file table, the modmap and the data region. The modmap and
// the module slot ranges are not touched. The archive is updated in place.
func (a *Archive) Repack(payloads [][]byte) ([]byte, error) {
	size, err := a.PackedSize(payloads)
	if err != nil {
		return nil, err
	}
	if a.tablesEnd() > math.MaxUint32 || size-a.tablesEnd() > math.MaxUint32 {
		return nil, fmt.Errorf("%w: packed archive is %d bytes", ErrSizeOverflow, size)
	}

	files := make([]FileEntry, len(a.Files))
	copy(files, a.Files)

	var offset uint32
	for i := range files {
		files[i].Size = uint32(len(payloads[i]))
		files[i].Offset = offset
		offset += files[i].Size
	}

	h := a.Header
	h.ModuleTableOffset = HeaderSize
	h.ModuleTableSize = uint16(len(a.Modules))
	h.ModuleCount = uint16(len(a.Modules))
	h.FileTableOffset = h.ModuleTableOffset + uint32(len(a.Modules))*ModuleEntrySize
	h.FileTableSize = uint16(len(a.Files))
	h.FileCount = uint16(len(a.Files))
	h.ModMapOffset = h.FileTableOffset + uint32(len(a.Files))*FileEntrySize
	h.DataOffset = h.ModMapOffset + uint32(len(a.ModMap))*ModMapEntrySize

	a.Header = h
	a.Files = files
	a.payloads = make([][]byte, len(payloads))
	copy(a.payloads, payloads)

	a.logger.Debug("repacked layout",
		"module_table_offset", h.ModuleTableOffset,
		"file_table_offset", h.FileTableOffset,
		"modmap_offset", h.ModMapOffset,
		"data_offset", h.DataOffset,
		"size", size,
	)

	w := bytestream.NewWriter(int(size))
	if err := a.Write(w); err != nil {
		return nil, fmt.Errorf("failed to write repacked archive: %w", err)
	}
	return w.Bytes(), nil
}
