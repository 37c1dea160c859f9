package archive

// On-disk geometry of the container. All integers are little-endian.
const (
	HeaderSize      = 48
	FileEntrySize   = 28
	ModuleEntrySize = 28

	// FileNameSize and ModuleNameSize are the raw NUL-padded name widths.
	FileNameSize   = 13
	ModuleNameSize = 14

	// ReservedSize is the trailing reserved block of the header.
	ReservedSize = 16

	// ModMapEntrySize is the width of one modmap value in bytes.
	ModMapEntrySize = 2
)

// Dummy is the modmap sentinel for a slot that maps to no file.
const Dummy uint16 = 0xFFFF
