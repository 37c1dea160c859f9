package archive_test

import (
	"encoding/binary"
	"io"
	"log/slog"

	"github.com/ossyrian/modarc/internal/archive"
)

type fixtureFile struct {
	raw  string // raw name bytes, padded/truncated to 13
	data []byte
}

type fixtureModule struct {
	raw   string
	slots []uint16
}

// fixture describes a synthetic archive. With reverseData the payloads are
// laid out in reverse file order, which is still gap-free but not what
// Repack produces.
type fixture struct {
	files       []fixtureFile
	modules     []fixtureModule
	reverseData bool
}

func quietOptions() archive.Options {
	return archive.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// bytes encodes the fixture by hand, independently of archive.Write.
func (f fixture) bytes() []byte {
	le := binary.LittleEndian

	modmapLen := 0
	for _, m := range f.modules {
		modmapLen += len(m.slots)
	}
	dataLen := 0
	for _, file := range f.files {
		dataLen += len(file.data)
	}

	moduleTable := archive.HeaderSize
	fileTable := moduleTable + len(f.modules)*archive.ModuleEntrySize
	modmap := fileTable + len(f.files)*archive.FileEntrySize
	data := modmap + modmapLen*2
	buf := make([]byte, data+dataLen)

	copy(buf[0:4], "MARC")
	le.PutUint32(buf[4:], 1)
	le.PutUint16(buf[8:], uint16(len(f.files)))
	le.PutUint32(buf[10:], uint32(fileTable))
	le.PutUint16(buf[14:], uint16(len(f.files)))
	le.PutUint32(buf[16:], uint32(data))
	le.PutUint16(buf[20:], uint16(len(f.modules)))
	le.PutUint32(buf[22:], uint32(moduleTable))
	le.PutUint16(buf[26:], uint16(len(f.modules)))
	le.PutUint32(buf[28:], uint32(modmap))
	copy(buf[32:48], "reserved-bytes!!")

	start := 0
	for i, m := range f.modules {
		rec := buf[moduleTable+i*archive.ModuleEntrySize:]
		copy(rec[:archive.ModuleNameSize], m.raw)
		le.PutUint32(rec[14:], uint32(len(m.slots)))
		le.PutUint32(rec[18:], 0x1CCF6DAF)
		le.PutUint16(rec[22:], 0)
		le.PutUint32(rec[24:], uint32(start*2))
		for s, v := range m.slots {
			le.PutUint16(buf[modmap+(start+s)*2:], v)
		}
		start += len(m.slots)
	}

	offsets := make([]int, len(f.files))
	pos := 0
	order := make([]int, len(f.files))
	for i := range order {
		order[i] = i
		if f.reverseData {
			order[i] = len(f.files) - 1 - i
		}
	}
	for _, i := range order {
		offsets[i] = pos
		pos += len(f.files[i].data)
	}

	for i, file := range f.files {
		rec := buf[fileTable+i*archive.FileEntrySize:]
		copy(rec[:archive.FileNameSize], file.raw)
		rec[13] = 0
		le.PutUint32(rec[14:], uint32(len(file.data)))
		le.PutUint32(rec[18:], 0x1CCF6DAF)
		le.PutUint16(rec[22:], 7)
		le.PutUint32(rec[24:], uint32(offsets[i]))
		copy(buf[data+offsets[i]:], file.data)
	}

	return buf
}

// twoFileFixture is one module with two slots over files of 4 and 8 bytes.
func twoFileFixture() fixture {
	return fixture{
		files: []fixtureFile{
			{raw: "A.BIN", data: []byte("aaaa")},
			{raw: "B.BIN", data: []byte("bbbbbbbb")},
		},
		modules: []fixtureModule{
			{raw: "MAIN", slots: []uint16{0, 1}},
		},
	}
}

// richFixture has dummies, a shared file, quirky raw names and an empty file.
func richFixture() fixture {
	return fixture{
		files: []fixtureFile{
			{raw: "INTRO.SND", data: []byte("intro sound payload")},
			{raw: "LEVEL1.MAP\x00xy", data: []byte("level one map data......")},
			{raw: "EMPTY.DAT", data: nil},
			{raw: "LEVEL2.MAP", data: []byte("L2")},
		},
		modules: []fixtureModule{
			{raw: "COMMON", slots: []uint16{archive.Dummy, 0}},
			{raw: "LEVEL1\x00\x01\x02", slots: []uint16{1, archive.Dummy, 0, 2}},
			{raw: "LEVEL2", slots: []uint16{3}},
		},
		reverseData: true,
	}
}
