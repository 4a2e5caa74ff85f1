package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
)

// Writer accumulates a deterministic, length-prefixed, little-endian binary
// encoding of a consensus artifact (spec.md §4.A).
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// WriteUint64 appends a fixed-width little-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteBool appends a single byte, 1 for true.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// WriteFixed appends raw bytes with no length prefix. Only safe for
// statically-sized fields.
func (w *Writer) WriteFixed(b []byte) {
	w.buf.Write(b)
}

// WriteBytes appends a length-prefixed byte slice.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint64(uint64(len(b)))
	w.buf.Write(b)
}

// WriteOptionalBytes appends a presence flag followed by the bytes if
// present.
func (w *Writer) WriteOptionalBytes(b []byte, present bool) {
	w.WriteBool(present)
	if present {
		w.WriteBytes(b)
	}
}

// Reader decodes a Writer-produced encoding, propagating the first error
// encountered to every subsequent call.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader wraps raw bytes for decoding.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Err returns the first decode error encountered, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.fail(fmt.Errorf("codec: short buffer: need %d bytes, have %d", n, len(r.buf)-r.off))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// ReadUint64 reads a fixed-width little-endian uint64.
func (r *Reader) ReadUint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// ReadBool reads a single boolean byte.
func (r *Reader) ReadBool() bool {
	b := r.take(1)
	if b == nil {
		return false
	}
	return b[0] != 0
}

// ReadFixed reads exactly n raw bytes.
func (r *Reader) ReadFixed(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// ReadBytes reads a length-prefixed byte slice.
func (r *Reader) ReadBytes() []byte {
	n := r.ReadUint64()
	if r.err != nil {
		return nil
	}
	return r.ReadFixed(int(n))
}

// ReadOptionalBytes reads a presence flag and, if set, a length-prefixed
// byte slice.
func (r *Reader) ReadOptionalBytes() []byte {
	if !r.ReadBool() {
		return nil
	}
	return r.ReadBytes()
}

// Done requires that the reader has consumed the entire buffer, catching
// truncated or over-long encodings.
func (r *Reader) Done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("codec: %d trailing bytes after decode", len(r.buf)-r.off)
	}
	return nil
}

// blob compression tags, prefixed by CompressBlob to its output. No storage
// path in this module calls CompressBlob: BLOB columns (vid_share2.data,
// da_proposal2.data included) are stored uncompressed and untagged.
const (
	blobTagRaw    byte = 0
	blobTagSnappy byte = 1
)

// CompressBlob snappy-compresses b if doing so shrinks it, tagging the
// result so DecompressBlob can tell compressed and raw blobs apart.
func CompressBlob(b []byte) []byte {
	compressed := snappy.Encode(nil, b)
	if len(compressed)+1 >= len(b) {
		return append([]byte{blobTagRaw}, b...)
	}
	return append([]byte{blobTagSnappy}, compressed...)
}

// DecompressBlob reverses CompressBlob. An empty buffer decodes to nil.
// There is no fallback for untagged blobs: a buffer whose first byte is
// not a known tag is an error.
func DecompressBlob(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case blobTagRaw:
		return rest, nil
	case blobTagSnappy:
		return snappy.Decode(nil, rest)
	default:
		return nil, fmt.Errorf("codec: unknown blob compression tag %d", tag)
	}
}
