package archive_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossyrian/modarc/internal/archive"
	"github.com/ossyrian/modarc/internal/bytestream"
)

func TestRead_TwoFileScenario(t *testing.T) {
	a, err := archive.Read(twoFileFixture().bytes(), quietOptions())
	require.NoError(t, err)

	assert.Equal(t, uint16(2), a.Header.FileCount)
	assert.Equal(t, uint16(1), a.Header.ModuleCount)
	require.Len(t, a.Slots(0), 2)
	assert.Equal(t, 0, a.Slots(0)[0].Index())
	assert.Equal(t, 1, a.Slots(0)[1].Index())
	assert.Equal(t, "MAIN", a.ModuleName(0))
	assert.Equal(t, "B.BIN", a.FileName(1))
	assert.Equal(t, []byte("bbbbbbbb"), a.Payload(1))
	assert.Empty(t, a.Warnings())
}

func TestRead_DummySlots(t *testing.T) {
	f := fixture{
		files:   []fixtureFile{{raw: "ONLY.BIN", data: []byte("x")}},
		modules: []fixtureModule{{raw: "M", slots: []uint16{archive.Dummy, 0}}},
	}
	a, err := archive.Read(f.bytes(), quietOptions())
	require.NoError(t, err)

	slots := a.Slots(0)
	assert.Equal(t, archive.SlotDummy, slots[0].Kind)
	assert.Equal(t, -1, slots[0].Index())
	assert.Equal(t, archive.SlotFile, slots[1].Kind)
	assert.Equal(t, 0, slots[1].Index())
	assert.Equal(t, []uint16{archive.Dummy, 0}, a.ModMap)
}

func TestRead_OutOfRangeIndexIsAWarning(t *testing.T) {
	f := fixture{
		files:   []fixtureFile{{raw: "ONLY.BIN", data: []byte("x")}},
		modules: []fixtureModule{{raw: "M", slots: []uint16{0, 5}}},
	}
	a, err := archive.Read(f.bytes(), quietOptions())
	require.NoError(t, err)

	assert.Equal(t, archive.SlotUnresolved, a.Slots(0)[1].Kind)
	require.Len(t, a.Warnings(), 1)
	assert.ErrorIs(t, a.Warnings()[0], archive.ErrIndexOutOfRange)

	var idxErr *archive.IndexError
	require.ErrorAs(t, a.Warnings()[0], &idxErr)
	assert.Equal(t, 1, idxErr.Slot)
	assert.Equal(t, uint16(5), idxErr.Value)
}

func TestRead_Errors(t *testing.T) {
	valid := twoFileFixture().bytes()

	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{
			name:    "empty input",
			input:   nil,
			wantErr: archive.ErrMalformedHeader,
		},
		{
			name:    "header only",
			input:   valid[:archive.HeaderSize],
			wantErr: archive.ErrMalformedHeader,
		},
		{
			name:    "file table cut short",
			input:   valid[:archive.HeaderSize+archive.ModuleEntrySize+archive.FileEntrySize],
			wantErr: archive.ErrMalformedHeader,
		},
		{
			name:    "modmap cut short",
			input:   valid[:archive.HeaderSize+archive.ModuleEntrySize+2*archive.FileEntrySize+2],
			wantErr: archive.ErrMalformedHeader,
		},
		{
			name:    "payload cut short",
			input:   valid[:len(valid)-1],
			wantErr: archive.ErrTruncatedBuffer,
		},
		{
			name: "odd modmap offset",
			input: func() []byte {
				b := bytes.Clone(valid)
				binary.LittleEndian.PutUint32(b[archive.HeaderSize+24:], 1)
				return b
			}(),
			wantErr: archive.ErrMalformedHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := archive.Read(tt.input, quietOptions())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRead_WriteRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		f    fixture
	}{
		{name: "two files", f: twoFileFixture()},
		{name: "dummies, shared files, quirky names", f: richFixture()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.f.bytes()

			a, err := archive.Read(in, quietOptions())
			require.NoError(t, err)

			out, err := a.Bytes()
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestRead_RawNamesPreserved(t *testing.T) {
	in := richFixture().bytes()
	a, err := archive.Read(in, quietOptions())
	require.NoError(t, err)

	assert.Equal(t, "LEVEL1.MAP", a.FileName(1))
	assert.Equal(t, []byte("LEVEL1.MAP\x00xy"), a.Files[1].RawName[:])
	assert.Equal(t, "LEVEL1", a.ModuleName(1))
	assert.Equal(t, byte(0x02), a.Modules[1].RawName[8])
}

func TestLookup_CaseInsensitiveFirstMatch(t *testing.T) {
	a, err := archive.Read(richFixture().bytes(), quietOptions())
	require.NoError(t, err)

	m, ok := a.FindModule("level1")
	require.True(t, ok)
	assert.Equal(t, 1, m)

	slot, idx, ok := a.FindFile(m, "intro.snd")
	require.True(t, ok)
	assert.Equal(t, 2, slot)
	assert.Equal(t, 0, idx)

	idx, ok = a.Lookup("COMMON", "Intro.Snd")
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok = a.Lookup("COMMON", "LEVEL1.MAP")
	assert.False(t, ok, "file not in the module's slot range")

	_, ok = a.Lookup("NOPE", "INTRO.SND")
	assert.False(t, ok)
}

func TestWrite_BufferOverrun(t *testing.T) {
	a, err := archive.Read(twoFileFixture().bytes(), quietOptions())
	require.NoError(t, err)

	a.Files[1].Offset += 100

	w := bytestream.NewWriter(int(a.RequiredSize()) - 100)
	assert.ErrorIs(t, a.Write(w), archive.ErrBufferOverrun)
}
