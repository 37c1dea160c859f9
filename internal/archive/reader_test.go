package archive_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/ossyrian/modarc/internal/archive"
)

// buildHeader creates a header byte sequence for testing
func buildHeader(h archive.Header) []byte {
	buf := new(bytes.Buffer)

	buf.Write(h.Signature[:])
	binary.Write(buf, binary.LittleEndian, h.Version)
	binary.Write(buf, binary.LittleEndian, h.FileTableSize)
	binary.Write(buf, binary.LittleEndian, h.FileTableOffset)
	binary.Write(buf, binary.LittleEndian, h.FileCount)
	binary.Write(buf, binary.LittleEndian, h.DataOffset)
	binary.Write(buf, binary.LittleEndian, h.ModuleTableSize)
	binary.Write(buf, binary.LittleEndian, h.ModuleTableOffset)
	binary.Write(buf, binary.LittleEndian, h.ModuleCount)
	binary.Write(buf, binary.LittleEndian, h.ModMapOffset)
	buf.Write(h.Reserved[:])

	return buf.Bytes()
}

func TestReader_ReadHeader(t *testing.T) {
	full := archive.Header{
		Signature:         [4]byte{'M', 'A', 'R', 'C'},
		Version:           0x00010002,
		FileTableSize:     300,
		FileTableOffset:   0x01020304,
		FileCount:         299,
		DataOffset:        0x0A0B0C0D,
		ModuleTableSize:   12,
		ModuleTableOffset: 48,
		ModuleCount:       11,
		ModMapOffset:      0x7FFFFFFE,
		Reserved:          [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
	}

	tests := []struct {
		name    string
		input   []byte
		want    *archive.Header
		wantErr error
	}{
		{
			name:  "all fields",
			input: buildHeader(full),
			want:  &full,
		},
		{
			name:  "zero header",
			input: buildHeader(archive.Header{}),
			want:  &archive.Header{},
		},
		{
			name:  "trailing bytes ignored",
			input: append(buildHeader(full), 0xEE, 0xEE),
			want:  &full,
		},
		{
			name:    "one byte short",
			input:   buildHeader(full)[:archive.HeaderSize-1],
			wantErr: archive.ErrMalformedHeader,
		},
		{
			name:    "empty input",
			input:   []byte{},
			wantErr: archive.ErrMalformedHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := archive.NewReader(tt.input, slog.New(slog.NewTextHandler(io.Discard, nil)))

			got, err := r.ReadHeader()

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ReadHeader() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("ReadHeader() failed: %v", err)
			}

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadHeader() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReader_ModuleTablePastEnd(t *testing.T) {
	// module table declared past the end of the buffer
	h := archive.Header{ModuleCount: 1, ModuleTableOffset: 4096}
	r := archive.NewReader(buildHeader(h), nil)

	if _, err := r.ReadHeader(); err != nil {
		t.Fatalf("ReadHeader() failed: %v", err)
	}
	if _, err := r.ReadModuleTable(); !errors.Is(err, archive.ErrMalformedHeader) {
		t.Fatalf("ReadModuleTable() error = %v, want ErrMalformedHeader", err)
	}
}
