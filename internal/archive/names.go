package archive

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// NameCodec converts between raw NUL-padded name fields and display strings.
type NameCodec struct {
	label string
	enc   encoding.Encoding
}

// CP437 is the default codec; names in these archives are DOS 8.3 names.
var CP437 = NameCodec{label: "cp437", enc: charmap.CodePage437}

var nameCodecs = map[string]NameCodec{
	"cp437":        CP437,
	"ibm437":       CP437,
	"windows-1252": {label: "windows-1252", enc: charmap.Windows1252},
	"cp1252":       {label: "windows-1252", enc: charmap.Windows1252},
	"latin1":       {label: "iso-8859-1", enc: charmap.ISO8859_1},
	"iso-8859-1":   {label: "iso-8859-1", enc: charmap.ISO8859_1},
}

// LookupNameCodec returns the codec registered under label (case-insensitive).
// An empty label selects CP437.
func LookupNameCodec(label string) (NameCodec, error) {
	if label == "" {
		return CP437, nil
	}
	c, ok := nameCodecs[strings.ToLower(label)]
	if !ok {
		return NameCodec{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	return c, nil
}

// String returns the canonical label.
func (c NameCodec) String() string {
	if c.enc == nil {
		return CP437.label
	}
	return c.label
}

func (c NameCodec) encoding() encoding.Encoding {
	if c.enc == nil {
		return CP437.enc
	}
	return c.enc
}

// Decode returns the display name stored in raw: bytes up to the first NUL.
// Anything after the NUL is ignored here but kept in the raw field.
func (c NameCodec) Decode(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	s, err := c.encoding().NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(s)
}

// Encode renders name into a NUL-padded field of exactly size bytes.
func (c NameCodec) Encode(name string, size int) ([]byte, error) {
	b, err := c.encoding().NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("failed to encode name %q as %s: %w", name, c, err)
	}
	if len(b) > size {
		return nil, fmt.Errorf("%w: %q is %d bytes, field is %d", ErrNameTooLong, name, len(b), size)
	}
	out := make([]byte, size)
	copy(out, b)
	return out, nil
}
