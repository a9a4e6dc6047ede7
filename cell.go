package sqlbox

import "github.com/sqlboxdb/sqlbox/internal/params"

// NullCell returns a NULL cell.
func NullCell() Cell { return params.Null() }

// IntCell returns an INT cell.
func IntCell(v int64) Cell { return params.Int64(v) }

// FloatCell returns a FLOAT cell.
func FloatCell(v float64) Cell { return params.Float64(v) }

// TextCell returns a TEXT cell; the trailing NUL is appended and included
// in the cell's declared wire size (spec §3).
func TextCell(s string) Cell { return params.Text(s) }

// BlobCell returns a BLOB cell from raw bytes.
func BlobCell(b []byte) Cell { return params.Blob(b) }

// Coercion is the client-facade return code for a cell coercion (spec
// §4.K): 0 native, 1 coerced, -1 impossible.
type Coercion = params.Coercion

// Coercion outcomes.
const (
	CoercionNative  = params.CoercionNative
	CoercionCoerced = params.CoercionCoerced
	CoercionFailed  = params.CoercionFailed
)
