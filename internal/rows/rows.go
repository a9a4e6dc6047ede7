// Package rows implements the STEP reply's row-record framing (spec §6):
// one or more concatenated (completion code, packed parameter vector)
// pairs, with an empty-cell vector marking end of rows. Both the server
// (encoding) and the client facade (decoding) import this package so the
// layout is defined exactly once.
package rows

import (
	"encoding/binary"
	"fmt"

	"github.com/sqlboxdb/sqlbox/internal/opcode"
	"github.com/sqlboxdb/sqlbox/internal/params"
)

// Record is one row record: a completion code plus the row's cell vector.
// An empty Cells with CodeOK means end of rows; CodeConstraint means a
// caught constraint violation ended the statement.
type Record struct {
	Code  opcode.Code
	Cells []params.Cell
}

// Append encodes rec onto dst and returns the grown slice.
func Append(dst []byte, rec Record) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(rec.Code))
	dst = append(dst, tmp[:]...)
	dst = append(dst, params.Pack(rec.Cells)...)
	return dst
}

// DecodeAll decodes every row record concatenated in buf, in order.
func DecodeAll(buf []byte) ([]Record, error) {
	var out []Record
	pos := 0
	for pos < len(buf) {
		if pos+4 > len(buf) {
			return nil, fmt.Errorf("rows: truncated record header at byte %d", pos)
		}
		code := opcode.Code(binary.LittleEndian.Uint32(buf[pos : pos+4]))
		pos += 4
		cells, n := params.Unpack(buf[pos:])
		if n == 0 {
			return nil, fmt.Errorf("rows: malformed packed params at byte %d", pos)
		}
		pos += n
		out = append(out, Record{Code: code, Cells: cells})
	}
	return out, nil
}
