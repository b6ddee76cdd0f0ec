// Package ioutil provides the random-access byte reader/writer and varint
// codecs that the PMTiles directory model and header are built on (spec
// component "Byte I/O primitives"). Readers are single-threaded; callers
// serialize access themselves, matching the teacher's use of bufio.Reader
// and encoding/binary directly rather than a shared concurrent abstraction.
package ioutil

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/protomaps/tilekiln/tkerr"
)

func float32FromBits(v uint32) float32 { return math.Float32frombits(v) }
func float64FromBits(v uint64) float64 { return math.Float64frombits(v) }

// maxVarintBytes bounds a varint read: after this many continuation bytes
// without a terminator the stream is malformed.
const maxVarintBytes = 10

// Reader is a random-access, little-endian byte reader over an in-memory
// buffer. It never retains a position across goroutines.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential/random-access reads starting at 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the total number of bytes in the underlying buffer.
func (r *Reader) Len() int { return len(r.buf) }

// Position returns the current read offset.
func (r *Reader) Position() int { return r.pos }

// SetPosition moves the read cursor; it fails if p >= len(buf) and buf is
// non-empty, or p > len(buf) otherwise.
func (r *Reader) SetPosition(p int) error {
	if p < 0 || p > len(r.buf) || (p == len(r.buf) && len(r.buf) > 0) {
		return fmt.Errorf("%w: position %d out of range for length %d", tkerr.ErrIO, p, len(r.buf))
	}
	r.pos = p
	return nil
}

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes at %d, have %d", tkerr.ErrIO, n, r.pos, len(r.buf))
	}
	return nil
}

// Bytes reads n raw bytes and advances the cursor.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// SubReader returns a zero-copy reader limited to the next n bytes,
// advancing this reader's cursor past them.
func (r *Reader) SubReader(n int) (*Reader, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}

func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) Uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return float32FromBits(v), nil
}

func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return float64FromBits(v), nil
}

// Varint reads a base-128 little-endian unsigned varint, failing with
// ErrMalformedVarint after maxVarintBytes continuation bytes.
func (r *Reader) Varint() (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < maxVarintBytes; i++ {
		b, err := r.Uint8()
		if err != nil {
			return 0, err
		}
		if b < 0x80 {
			if i == maxVarintBytes-1 && b > 1 {
				return 0, fmt.Errorf("%w: overflow", tkerr.ErrMalformedVarint)
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, fmt.Errorf("%w: exceeded %d continuation bytes", tkerr.ErrMalformedVarint, maxVarintBytes)
}

// SignedVarint reads a zig-zag encoded signed varint.
func (r *Reader) SignedVarint() (int64, error) {
	u, err := r.Varint()
	if err != nil {
		return 0, err
	}
	return zigzagDecode(u), nil
}

func zigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// Writer accumulates bytes with the same primitive widths Reader consumes.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteUint64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }
func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

// WriteVarint appends a base-128 little-endian unsigned varint.
func (w *Writer) WriteVarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf = append(w.buf, tmp[:n]...)
}

// WriteSignedVarint appends a zig-zag encoded signed varint.
func (w *Writer) WriteSignedVarint(v int64) {
	w.WriteVarint(zigzagEncode(v))
}

// ReadVarintFrom reads a single unsigned varint directly from an io.ByteReader,
// used by the directory codec which streams through (de)compression readers
// rather than a fully materialized Reader.
func ReadVarintFrom(r io.ByteReader) (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < maxVarintBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b < 0x80 {
			if i == maxVarintBytes-1 && b > 1 {
				return 0, fmt.Errorf("%w: overflow", tkerr.ErrMalformedVarint)
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, fmt.Errorf("%w: exceeded %d continuation bytes", tkerr.ErrMalformedVarint, maxVarintBytes)
}
