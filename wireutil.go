package sqlbox

import (
	"encoding/binary"
	"fmt"
)

func u32le(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func readU32(buf []byte) (uint32, error) {
	if len(buf) < 4 {
		return 0, fmt.Errorf("sqlbox: reply too short for a u32")
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func readI64(buf []byte) (int64, error) {
	if len(buf) < 8 {
		return 0, fmt.Errorf("sqlbox: reply too short for an i64")
	}
	return int64(binary.LittleEndian.Uint64(buf)), nil
}
