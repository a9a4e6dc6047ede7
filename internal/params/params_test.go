package params

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	cases := [][]Cell{
		nil,
		{Null()},
		{Int64(42), Int64(-1)},
		{Float64(3.5), Null()},
		{Text("hello")},
		{Text("")},
		{Blob([]byte{1, 2, 3, 4, 5})},
		{Blob(nil)},
		{Int64(1), Text("two"), Float64(3), Blob([]byte("four")), Null()},
	}
	for _, cells := range cases {
		buf := Pack(cells)
		got, consumed := Unpack(buf)
		require.NotZero(t, consumed, "unpack of packed well-formed cells must succeed")
		require.Equal(t, len(buf), consumed)
		require.Equal(t, len(cells), len(got))
		for i := range cells {
			assert.Equal(t, cells[i].Tag, got[i].Tag)
			switch cells[i].Tag {
			case TagInt:
				assert.Equal(t, cells[i].Int, got[i].Int)
			case TagFloat:
				assert.Equal(t, cells[i].Float, got[i].Float)
			case TagText, TagBlob:
				assert.Equal(t, cells[i].Bytes, got[i].Bytes)
			}
		}
	}
}

func TestPackAlignment(t *testing.T) {
	buf := Pack([]Cell{Int64(1), Float64(2), Int64(3)})
	// Walk the buffer by hand: after the 8-byte-aligned count word, each
	// cell's tag is 4-aligned and its INT/FLOAT body is 8-aligned.
	require.Equal(t, 0, len(buf)%4, "overall buffer must end 4-aligned")
	pos := align(0, 8)
	require.Zero(t, pos % 8)

	// count@0, INT tag@4 body@8, FLOAT tag@16 body@24, INT tag@32 body@40.
	require.Len(t, buf, 48)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[0:4]))
	assert.Equal(t, uint32(TagInt), binary.LittleEndian.Uint32(buf[4:8]))
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(buf[8:16]))
	assert.Equal(t, uint32(TagFloat), binary.LittleEndian.Uint32(buf[16:20]))
	assert.Equal(t, math.Float64bits(2), binary.LittleEndian.Uint64(buf[24:32]))
	assert.Equal(t, uint32(TagInt), binary.LittleEndian.Uint32(buf[32:36]))
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(buf[40:48]))
}

func TestUnpackRejectsMalformed(t *testing.T) {
	cases := [][]byte{
		nil,
		{1, 2, 3},
		make([]byte, 3),
	}
	for _, buf := range cases {
		cells, consumed := Unpack(buf)
		assert.Nil(t, cells)
		assert.Zero(t, consumed)
	}
}

func TestUnpackRejectsBadStringTermination(t *testing.T) {
	// A TEXT cell whose declared size is 0 is rejected.
	b := &builder{}
	b.alignTo(8)
	b.u32(1)
	b.alignTo(4)
	b.u32(uint32(TagText))
	b.u32(0)
	b.alignTo(4)
	cells, consumed := Unpack(b.buf)
	assert.Nil(t, cells)
	assert.Zero(t, consumed)

	// A TEXT cell whose last byte isn't NUL is rejected.
	b2 := &builder{}
	b2.alignTo(8)
	b2.u32(1)
	b2.alignTo(4)
	b2.u32(uint32(TagText))
	b2.u32(1)
	b2.bytes([]byte{'x'})
	b2.alignTo(4)
	cells, consumed = Unpack(b2.buf)
	assert.Nil(t, cells)
	assert.Zero(t, consumed)
}

func TestToInt64Clamp(t *testing.T) {
	big := Float64(math.MaxFloat64)
	v, code := big.ToInt64()
	assert.Equal(t, int64(math.MaxInt64), v)
	assert.Equal(t, CoercionCoerced, code)

	small := Float64(-math.MaxFloat64)
	v, code = small.ToInt64()
	assert.Equal(t, int64(math.MinInt64), v)
	assert.Equal(t, CoercionCoerced, code)
}

func TestCoercionImpossible(t *testing.T) {
	_, code := Null().ToInt64()
	assert.Equal(t, CoercionFailed, code)

	_, code = Blob([]byte{1}).ToFloat64()
	assert.Equal(t, CoercionFailed, code)

	_, code = Int64(5).ToBlob()
	assert.Equal(t, CoercionFailed, code)
}

func TestTextCellIncludesNUL(t *testing.T) {
	c := Text("abc")
	require.Len(t, c.Bytes, 4)
	assert.Equal(t, byte(0), c.Bytes[3])
}
