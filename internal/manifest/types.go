package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/ossyrian/modarc/internal/archive"
)

// FormatName identifies manifest documents written by this package.
const FormatName = "modarc-manifest/1"

// Manifest is the JSON structural description of one archive.
type Manifest struct {
	Format       string   `json:"format"`
	NameEncoding string   `json:"name_encoding"`
	Header       Header   `json:"header"`
	Files        []File   `json:"files"`
	Modules      []Module `json:"modules"`
	ModMap       []uint16 `json:"modmap,omitempty"`
}

// Header mirrors archive.Header. Byte arrays are hex strings.
type Header struct {
	Signature         string `json:"signature"`
	Version           uint32 `json:"version"`
	FileTableSize     uint16 `json:"file_table_size"`
	FileTableOffset   uint32 `json:"file_table_offset"`
	FileCount         uint16 `json:"file_count"`
	DataOffset        uint32 `json:"data_offset"`
	ModuleTableSize   uint16 `json:"module_table_size"`
	ModuleTableOffset uint32 `json:"module_table_offset"`
	ModuleCount       uint16 `json:"module_count"`
	ModMapOffset      uint32 `json:"modmap_offset"`
	Reserved          string `json:"reserved"`
}

// File mirrors one file-table row plus its payload address.
type File struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	RawName   string `json:"raw_name,omitempty"`
	Reserved  byte   `json:"reserved"`
	Size      uint32 `json:"size"`
	Timestamp uint32 `json:"timestamp"`
	// Time is the calendar form of Timestamp; informational only.
	Time      string        `json:"time,omitempty"`
	Reserved2 uint16        `json:"reserved2"`
	Offset    uint32        `json:"offset"`
	Blob      string        `json:"blob"`
	Digest    digest.Digest `json:"digest,omitempty"`
}

// Module mirrors one module-table row and its resolved slots.
type Module struct {
	Index       int         `json:"index"`
	Name        string      `json:"name"`
	RawName     string      `json:"raw_name,omitempty"`
	SlotCount   uint32      `json:"slot_count"`
	Timestamp   uint32      `json:"timestamp"`
	Time        string      `json:"time,omitempty"`
	Reserved    uint16      `json:"reserved"`
	ModMapStart int         `json:"modmap_start"`
	Slots       []SlotValue `json:"slots"`
}

// SlotValue is a modmap value. Dummy slots are encoded as JSON null.
type SlotValue uint16

// IsDummy reports whether the slot holds the sentinel.
func (v SlotValue) IsDummy() bool { return uint16(v) == archive.Dummy }

func (v SlotValue) MarshalJSON() ([]byte, error) {
	if v.IsDummy() {
		return []byte("null"), nil
	}
	return json.Marshal(uint16(v))
}

func (v *SlotValue) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = SlotValue(archive.Dummy)
		return nil
	}
	var n uint16
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid slot value %s: %w", b, err)
	}
	*v = SlotValue(n)
	return nil
}
