package sqlbox

import (
	"fmt"

	"github.com/sqlboxdb/sqlbox/internal/opcode"
	"github.com/sqlboxdb/sqlbox/internal/params"
	"github.com/sqlboxdb/sqlbox/internal/rows"
)

// Statement is a prepared, bound statement (spec §3, "stmt-id").
type Statement struct {
	sb       *Sqlbox
	db       *Database
	id       uint32
	multiRow bool
	cache    resultCache
}

// Step advances the statement's row cursor. When the result cache still
// holds buffered rows (possible only after a multi-row batch; a
// single-row reply carries exactly one record, consumed by the Step that
// fetched it) it is served from memory with no I/O (spec
// §5, "cache-hit returns immediately"); otherwise one STEP request is
// issued. Once the statement has reached end of rows, it is DONE: a
// further Step without an intervening Rebind is not repeated locally but
// sent on to the server, whose own state machine rejects it (spec §8,
// "double-stepping a DONE statement without REBIND fails").
func (st *Statement) Step() (Code, []Cell, bool, error) {
	if st.cache.exhausted() {
		if err := st.fetch(); err != nil {
			return 0, nil, false, err
		}
	}
	rec, ok := st.cache.next()
	if !ok {
		return 0, nil, false, fmt.Errorf("sqlbox: step: empty reply")
	}
	if len(rec.Cells) == 0 {
		return rec.Code, nil, true, nil
	}
	return rec.Code, rec.Cells, false, nil
}

func (st *Statement) fetch() error {
	reply, err := st.sb.call(opcode.Step, u32le(st.id))
	if err != nil {
		return err
	}
	records, err := rows.DecodeAll(reply)
	if err != nil {
		return fmt.Errorf("sqlbox: step: %w", err)
	}
	st.cache.fill(records)
	return nil
}

// Rebind resets the engine cursor, binds args as the statement's new
// parameters, and discards the client-side result cache (spec §4.H). A
// rebind whose engine-side bind fails leaves the statement in an error
// state that the next Step call surfaces.
func (st *Statement) Rebind(args []Cell) error {
	payload := append(u32le(st.id), params.Pack(args)...)
	if _, err := st.sb.call(opcode.Rebind, payload); err != nil {
		return err
	}
	st.cache.reset()
	return nil
}

// Final finalizes the statement and discards its cached results.
func (st *Statement) Final() error {
	_, err := st.sb.call(opcode.Final, u32le(st.id))
	st.cache.reset()
	return err
}
