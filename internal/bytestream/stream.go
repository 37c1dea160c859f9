// Package bytestream provides positioned little-endian reads and writes over
// a fixed in-memory buffer. Every access is bounds-checked; nothing grows.
package bytestream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrShortRead is returned when a read extends past the end of the buffer.
	ErrShortRead = errors.New("read past end of buffer")
	// ErrShortWrite is returned when a write extends past the end of the buffer.
	ErrShortWrite = errors.New("write past end of buffer")
	// ErrInvalidSeek is returned for a negative or out-of-range position.
	ErrInvalidSeek = errors.New("invalid seek position")
)

// Reader reads fixed-width values from a byte slice.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the total buffer length.
func (r *Reader) Len() int { return len(r.buf) }

// Pos returns the current absolute position.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the number of bytes left after the current position.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Seek moves to an absolute position. Seeking to exactly Len() is allowed.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return fmt.Errorf("%w: %d (buffer is %d bytes)", ErrInvalidSeek, pos, len(r.buf))
	}
	r.pos = pos
	return nil
}

// ReadFixed returns the next n bytes. The returned slice aliases the buffer.
func (r *Reader) ReadFixed(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at %d, have %d", ErrShortRead, n, r.pos, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadInto copies len(dst) bytes into dst.
func (r *Reader) ReadInto(dst []byte) error {
	b, err := r.ReadFixed(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// ReadU8 reads one byte.
func (r *Reader) ReadU8() (byte, error) {
	b, err := r.ReadFixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.ReadFixed(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadFixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Writer writes fixed-width values into a pre-sized byte slice.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter returns a Writer over a zeroed buffer of size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

// NewWriterOver returns a Writer that writes into buf in place.
func NewWriterOver(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Bytes returns the underlying buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the buffer length.
func (w *Writer) Len() int { return len(w.buf) }

// Pos returns the current absolute position.
func (w *Writer) Pos() int { return w.pos }

// Seek moves to an absolute position.
func (w *Writer) Seek(pos int) error {
	if pos < 0 || pos > len(w.buf) {
		return fmt.Errorf("%w: %d (buffer is %d bytes)", ErrInvalidSeek, pos, len(w.buf))
	}
	w.pos = pos
	return nil
}

// WriteFixed copies b at the current position.
func (w *Writer) WriteFixed(b []byte) error {
	if w.pos+len(b) > len(w.buf) {
		return fmt.Errorf("%w: %d bytes at %d, buffer is %d bytes", ErrShortWrite, len(b), w.pos, len(w.buf))
	}
	copy(w.buf[w.pos:], b)
	w.pos += len(b)
	return nil
}

// WriteU8 writes one byte.
func (w *Writer) WriteU8(v byte) error {
	return w.WriteFixed([]byte{v})
}

// WriteU16 writes a little-endian uint16.
func (w *Writer) WriteU16(v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return w.WriteFixed(b[:])
}

// WriteU32 writes a little-endian uint32.
func (w *Writer) WriteU32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return w.WriteFixed(b[:])
}
