package server

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/sqlboxdb/sqlbox/internal/params"
)

// cellsToValues converts a packed parameter vector into the engine's bind
// argument list. go-sqlite3's Stmt.Query always copies TEXT/BLOB values
// before returning, so there is no separate "mark transient" step to
// perform here: every bind is transient by construction.
func cellsToValues(cells []params.Cell) []driver.Value {
	args := make([]driver.Value, len(cells))
	for i, c := range cells {
		switch c.Tag {
		case params.TagNull:
			args[i] = nil
		case params.TagInt:
			args[i] = c.Int
		case params.TagFloat:
			args[i] = c.Float
		case params.TagBlob:
			args[i] = c.Bytes
		case params.TagText:
			s, _ := c.ToString()
			args[i] = s
		}
	}
	return args
}

// cellFromColumn converts one engine result column into a wire cell (spec
// §4.H's materialization rules). An unrecognized driver value type is a
// protocol-level error: the engine promised one of the shapes below.
func cellFromColumn(v driver.Value) (params.Cell, error) {
	switch t := v.(type) {
	case nil:
		return params.Null(), nil
	case int64:
		return params.Int64(t), nil
	case float64:
		return params.Float64(t), nil
	case []byte:
		return params.Blob(t), nil
	case string:
		return params.Text(t), nil
	case bool:
		if t {
			return params.Int64(1), nil
		}
		return params.Int64(0), nil
	case time.Time:
		return params.Text(t.Format(time.RFC3339Nano)), nil
	default:
		return params.Cell{}, fmt.Errorf("server: unrecognized engine column type %T", v)
	}
}
