package archive

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/ossyrian/modarc/internal/bytestream"
)

// Reader parses an archive buffer table by table.
type Reader struct {
	stream *bytestream.Reader
	logger *slog.Logger
	header *Header

	// modMapLen is the modmap length implied by the module table,
	// known only after ReadModuleTable.
	modMapLen int64
}

// NewReader returns a Reader over data.
func NewReader(data []byte, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		stream: bytestream.NewReader(data),
		logger: logger,
	}
}

// ReadHeader reads the fixed header at offset 0.
func (r *Reader) ReadHeader() (*Header, error) {
	if r.stream.Len() < HeaderSize {
		return nil, fmt.Errorf("%w: buffer is %d bytes, header needs %d",
			ErrMalformedHeader, r.stream.Len(), HeaderSize)
	}

	h := &Header{}
	if err := r.stream.Seek(0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}
	if err := h.decode(r.stream); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	r.logger.Debug("read header",
		"signature", fmt.Sprintf("%q", h.Signature[:]),
		"version", h.Version,
		"file_count", h.FileCount,
		"file_table_offset", h.FileTableOffset,
		"module_count", h.ModuleCount,
		"module_table_offset", h.ModuleTableOffset,
		"modmap_offset", h.ModMapOffset,
		"data_offset", h.DataOffset,
	)

	r.header = h
	return h, nil
}

// ReadModuleTable reads ModuleCount records and sizes the modmap.
func (r *Reader) ReadModuleTable() ([]ModuleEntry, error) {
	modules := make([]ModuleEntry, r.header.ModuleCount)
	if err := readTable(r.stream, int(r.header.ModuleTableOffset), modules, "module"); err != nil {
		return nil, err
	}

	for i := range modules {
		if modules[i].ModMapOffset%ModMapEntrySize != 0 {
			return nil, fmt.Errorf("%w: module %d modmap offset %d is not even",
				ErrMalformedHeader, i, modules[i].ModMapOffset)
		}
	}
	r.modMapLen = modMapLength(modules)

	r.logger.Debug("read module table",
		"module_count", len(modules),
		"modmap_length", r.modMapLen,
	)
	return modules, nil
}

// ReadFileTable reads FileCount records.
func (r *Reader) ReadFileTable() ([]FileEntry, error) {
	files := make([]FileEntry, r.header.FileCount)
	if err := readTable(r.stream, int(r.header.FileTableOffset), files, "file"); err != nil {
		return nil, err
	}

	r.logger.Debug("read file table", "file_count", len(files))
	return files, nil
}

// ReadModMap reads exactly the number of values the module table requires.
func (r *Reader) ReadModMap() ([]uint16, error) {
	need := r.modMapLen * ModMapEntrySize
	if need == 0 {
		return []uint16{}, nil
	}
	if int64(r.header.ModMapOffset)+need > int64(r.stream.Len()) {
		return nil, fmt.Errorf("%w: modmap needs %d bytes at %d, buffer is %d bytes",
			ErrMalformedHeader, need, r.header.ModMapOffset, r.stream.Len())
	}
	if err := r.stream.Seek(int(r.header.ModMapOffset)); err != nil {
		return nil, fmt.Errorf("%w: modmap: %w", ErrMalformedHeader, err)
	}

	modmap := make([]uint16, r.modMapLen)
	for i := range modmap {
		v, err := r.stream.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("%w: modmap entry %d: %w", ErrMalformedHeader, i, err)
		}
		modmap[i] = v
	}
	return modmap, nil
}

// ReadPayloads copies each file's bytes out of the data region.
func (r *Reader) ReadPayloads(files []FileEntry) ([][]byte, error) {
	payloads := make([][]byte, len(files))
	for i := range files {
		start := int64(r.header.DataOffset) + int64(files[i].Offset)
		end := start + int64(files[i].Size)
		if end > int64(r.stream.Len()) {
			return nil, fmt.Errorf("%w: file %d spans [%d, %d), buffer is %d bytes",
				ErrTruncatedBuffer, i, start, end, r.stream.Len())
		}
		if err := r.stream.Seek(int(start)); err != nil {
			return nil, fmt.Errorf("%w: file %d: %w", ErrTruncatedBuffer, i, err)
		}
		b, err := r.stream.ReadFixed(int(files[i].Size))
		if err != nil {
			return nil, fmt.Errorf("%w: file %d: %w", ErrTruncatedBuffer, i, err)
		}
		payloads[i] = bytes.Clone(b)
	}
	return payloads, nil
}

// readTable seeks to offset and decodes len(entries) fixed-size records.
func readTable[T any, P interface {
	*T
	tableEntry
}](s *bytestream.Reader, offset int, entries []T, kind string) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.Seek(offset); err != nil {
		return fmt.Errorf("%w: %s table: %w", ErrMalformedHeader, kind, err)
	}
	for i := range entries {
		if err := P(&entries[i]).decode(s); err != nil {
			return fmt.Errorf("%w: %s entry %d: %w", ErrMalformedHeader, kind, i, err)
		}
	}
	return nil
}

// Read parses data into an Archive. Out-of-range modmap values are not fatal:
// the slot is left unresolved and reported through Warnings and the logger.
func Read(data []byte, opts Options) (*Archive, error) {
	opts.applyDefaults()

	r := NewReader(data, opts.Logger)

	h, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}

	modules, err := r.ReadModuleTable()
	if err != nil {
		return nil, err
	}

	files, err := r.ReadFileTable()
	if err != nil {
		return nil, err
	}

	modmap, err := r.ReadModMap()
	if err != nil {
		return nil, err
	}

	payloads, err := r.ReadPayloads(files)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		Header:   *h,
		Files:    files,
		Modules:  modules,
		ModMap:   modmap,
		payloads: payloads,
		names:    opts.Names,
		logger:   opts.Logger,
	}
	a.resolve()

	opts.Logger.Info("parsed archive",
		"files", len(files),
		"modules", len(modules),
		"modmap_length", len(modmap),
		"warnings", len(a.warnings),
	)
	return a, nil
}
