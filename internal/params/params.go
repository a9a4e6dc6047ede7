// Package params implements the packed parameter-cell wire format (spec
// §4.B): a length-prefixed, 4/8-byte-aligned vector of tagged NULL / INT64 /
// DOUBLE / TEXT / BLOB cells, and the client-facing coercion rules over a
// single cell (spec §4.K).
package params

import (
	"encoding/binary"
	"math"
)

// Tag identifies a cell's wire type.
type Tag uint32

// Cell tags, as they appear on the wire.
const (
	TagNull Tag = iota
	TagInt
	TagFloat
	TagText
	TagBlob
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "NULL"
	case TagInt:
		return "INT"
	case TagFloat:
		return "FLOAT"
	case TagText:
		return "TEXT"
	case TagBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Cell is a tagged parameter or result value. Text carries its trailing NUL
// in Bytes (so its declared wire size is len(Bytes)); Blob carries raw bytes with no
// terminator.
type Cell struct {
	Tag   Tag
	Int   int64
	Float float64
	Bytes []byte
}

// Null returns a NULL cell.
func Null() Cell { return Cell{Tag: TagNull} }

// Int64 returns an INT cell.
func Int64(v int64) Cell { return Cell{Tag: TagInt, Int: v} }

// Float64 returns a FLOAT cell.
func Float64(v float64) Cell { return Cell{Tag: TagFloat, Float: v} }

// Text returns a TEXT cell; the trailing NUL is appended and included in
// the cell's declared size, per spec §3.
func Text(s string) Cell {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return Cell{Tag: TagText, Bytes: b}
}

// Blob returns a BLOB cell from raw bytes.
func Blob(b []byte) Cell {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Cell{Tag: TagBlob, Bytes: cp}
}

func align(n, to int) int {
	if r := n % to; r != 0 {
		return n + (to - r)
	}
	return n
}

// builder accumulates a packed byte buffer with alignment bookkeeping.
type builder struct {
	buf []byte
}

func (b *builder) alignTo(to int) {
	want := align(len(b.buf), to)
	for len(b.buf) < want {
		b.buf = append(b.buf, 0)
	}
}

func (b *builder) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *builder) i64(v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	b.buf = append(b.buf, tmp[:]...)
}

func (b *builder) f64(v float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	b.buf = append(b.buf, tmp[:]...)
}

func (b *builder) bytes(p []byte) { b.buf = append(b.buf, p...) }

// Pack serializes a vector of cells per spec §4.B. It never fails: callers
// construct well-formed cells through the constructors above, which cannot
// produce a malformed TEXT cell.
func Pack(cells []Cell) []byte {
	b := &builder{}
	b.alignTo(8)
	b.u32(uint32(len(cells)))
	for _, c := range cells {
		b.alignTo(4)
		b.u32(uint32(c.Tag))
		switch c.Tag {
		case TagNull:
			// no payload
		case TagInt:
			b.alignTo(8)
			b.i64(c.Int)
		case TagFloat:
			b.alignTo(8)
			b.f64(c.Float)
		case TagBlob:
			b.u32(uint32(len(c.Bytes)))
			b.bytes(c.Bytes)
		case TagText:
			b.u32(uint32(len(c.Bytes)))
			b.bytes(c.Bytes)
		}
	}
	b.alignTo(4)
	return b.buf
}

// reader walks a packed byte buffer with the same alignment bookkeeping
// Pack used to write it.
type reader struct {
	buf []byte
	pos int
	err bool
}

func (r *reader) alignTo(to int) {
	r.pos = align(r.pos, to)
}

func (r *reader) need(n int) bool {
	if r.err || r.pos+n > len(r.buf) {
		r.err = true
		return false
	}
	return true
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *reader) i64() int64 {
	if !r.need(8) {
		return 0
	}
	v := int64(binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8]))
	r.pos += 8
	return v
}

func (r *reader) f64() float64 {
	if !r.need(8) {
		return 0
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8]))
	r.pos += 8
	return v
}

func (r *reader) take(n int) []byte {
	if !r.need(n) {
		return nil
	}
	p := make([]byte, n)
	copy(p, r.buf[r.pos:r.pos+n])
	r.pos += n
	return p
}

// Unpack decodes a packed cell vector. consumed is 0 on any failure
// (malformed buffer, bad STRING termination, unknown tag), per spec §4.B —
// no partial result is returned in that case.
func Unpack(buf []byte) (cells []Cell, consumed int) {
	r := &reader{buf: buf}
	r.alignTo(8)
	count := r.u32()
	if r.err {
		return nil, 0
	}
	out := make([]Cell, 0, count)
	for i := uint32(0); i < count; i++ {
		r.alignTo(4)
		tag := Tag(r.u32())
		if r.err {
			return nil, 0
		}
		var c Cell
		c.Tag = tag
		switch tag {
		case TagNull:
			// no payload
		case TagInt:
			r.alignTo(8)
			c.Int = r.i64()
		case TagFloat:
			r.alignTo(8)
			c.Float = r.f64()
		case TagBlob:
			size := r.u32()
			if r.err {
				return nil, 0
			}
			c.Bytes = r.take(int(size))
		case TagText:
			size := r.u32()
			if r.err || size == 0 {
				return nil, 0
			}
			c.Bytes = r.take(int(size))
			if r.err {
				return nil, 0
			}
			if c.Bytes[len(c.Bytes)-1] != 0 {
				return nil, 0
			}
		default:
			return nil, 0
		}
		if r.err {
			return nil, 0
		}
		out = append(out, c)
	}
	r.alignTo(4)
	if r.err || r.pos > len(buf) {
		return nil, 0
	}
	return out, r.pos
}
