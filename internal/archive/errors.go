package archive

import (
	"errors"
	"fmt"
)

// Sentinel errors for archive operations. Use errors.Is in callers.
var (
	// ErrMalformedHeader means the header or a table it declares does not fit the buffer.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrTruncatedBuffer means a payload region extends past the end of the buffer.
	ErrTruncatedBuffer = errors.New("truncated buffer")
	// ErrIndexOutOfRange means a modmap value references a nonexistent file-table row.
	ErrIndexOutOfRange = errors.New("modmap index out of range")
	// ErrPayloadSizeMismatch means a supplied payload differs in length from its declared size.
	ErrPayloadSizeMismatch = errors.New("payload size mismatch")
	// ErrArgumentCountMismatch means the payload list length differs from the file count.
	ErrArgumentCountMismatch = errors.New("payload count does not match file count")
	// ErrCountMismatch means a table length differs from the count declared for it.
	ErrCountMismatch = errors.New("declared count mismatch")
	// ErrModMapMismatch means a raw modmap disagrees with the module slot lists.
	ErrModMapMismatch = errors.New("modmap does not match module slots")
	// ErrBufferOverrun means a write would pass the end of the precomputed output buffer.
	ErrBufferOverrun = errors.New("write exceeds output buffer")
	// ErrSizeOverflow means a computed size or offset does not fit its on-disk field.
	ErrSizeOverflow = errors.New("size exceeds on-disk field width")
	// ErrUnknownEncoding means the requested name encoding is not supported.
	ErrUnknownEncoding = errors.New("unknown name encoding")
	// ErrNameTooLong means an encoded name does not fit its raw field.
	ErrNameTooLong = errors.New("name does not fit raw field")
)

// IndexError describes a modmap value that points past the file table.
type IndexError struct {
	Module string
	Slot   int
	Value  uint16
	Files  int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("module %q slot %d: file index %d out of range (file count %d)",
		e.Module, e.Slot, e.Value, e.Files)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }
