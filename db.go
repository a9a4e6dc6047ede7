package sqlbox

import (
	"fmt"

	"github.com/sqlboxdb/sqlbox/internal/opcode"
	"github.com/sqlboxdb/sqlbox/internal/params"
)

// Database is an opened source handle (spec §3, "db-id").
type Database struct {
	sb *Sqlbox
	id uint32
}

// Open opens sourceIdx, the position of a Source in Config.Sources, and
// returns its handle.
func (sb *Sqlbox) Open(sourceIdx int) (*Database, error) {
	reply, err := sb.call(opcode.OpenSync, u32le(uint32(sourceIdx)))
	if err != nil {
		return nil, err
	}
	id, err := readU32(reply)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("sqlbox: open: server returned id 0")
	}
	return &Database{sb: sb, id: id}, nil
}

// Close closes db. It fails server-side if db still owns live statements
// or an open transaction (spec §4.E) — the child does not auto-finalize
// or auto-rollback on a refused close. CLOSE is an async opcode, so a
// server-side refusal is not reported by this call; it surfaces as a
// failure of the next synchronous call this Sqlbox issues (spec §5).
func (db *Database) Close() error {
	_, err := db.sb.call(opcode.Close, u32le(db.id))
	return err
}

// LastInsertID returns the engine's last-insert-rowid for db.
func (db *Database) LastInsertID() (int64, error) {
	reply, err := db.sb.call(opcode.LastID, u32le(db.id))
	if err != nil {
		return 0, err
	}
	return readI64(reply)
}

// TransOpen begins a transaction of the given kind (DEFERRED, IMMEDIATE,
// or EXCLUSIVE). tid must be non-zero and is the caller's own correlation
// token, passed again to TransClose.
func (db *Database) TransOpen(tid uint32, kind TxnKind) error {
	payload := append(u32le(db.id), u32le(tid)...)
	payload = append(payload, u32le(uint32(kind))...)
	_, err := db.sb.call(opcode.TransOpen, payload)
	return err
}

// TransClose ends the open transaction (COMMIT or ROLLBACK). tid must
// match the value passed to TransOpen.
func (db *Database) TransClose(tid uint32, kind TxnKind) error {
	payload := append(u32le(db.id), u32le(tid)...)
	payload = append(payload, u32le(uint32(kind))...)
	_, err := db.sb.call(opcode.TransClose, payload)
	return err
}

func flagsFor(acceptConstraint, multiRow bool) uint32 {
	var f opcode.Flag
	if acceptConstraint {
		f |= opcode.FlagAcceptConstraint
	}
	if multiRow {
		f |= opcode.FlagMultiRow
	}
	return uint32(f)
}

func prepareBindPayload(flags uint32, dbID uint32, stmtIdx int, args []Cell) []byte {
	payload := u32le(flags)
	payload = append(payload, u32le(dbID)...)
	payload = append(payload, u32le(uint32(stmtIdx))...)
	payload = append(payload, params.Pack(args)...)
	return payload
}

// PrepareBind prepares stmtIdx (a position in Config.Statements) against
// db and binds args, returning a live Statement. acceptConstraint
// translates a CONSTRAINT violation during stepping into Code rather than
// tearing down the connection; multiRow batches STEP replies (spec
// §4.H).
func (db *Database) PrepareBind(stmtIdx int, args []Cell, acceptConstraint, multiRow bool) (*Statement, error) {
	flags := flagsFor(acceptConstraint, multiRow)
	reply, err := db.sb.call(opcode.PrepareBindSync, prepareBindPayload(flags, db.id, stmtIdx, args))
	if err != nil {
		return nil, err
	}
	id, err := readU32(reply)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, fmt.Errorf("sqlbox: prepare-bind: server returned id 0")
	}
	return &Statement{sb: db.sb, db: db, id: id, multiRow: multiRow}, nil
}

// Exec runs stmtIdx to completion for its side effects, ignoring any rows
// it produces. With no args it takes the engine's direct exec path (spec
// §4.J); otherwise it prepares, binds, steps to completion, and
// finalizes in one round trip.
func (db *Database) Exec(stmtIdx int, args []Cell, acceptConstraint bool) (Code, error) {
	flags := flagsFor(acceptConstraint, false)
	reply, err := db.sb.call(opcode.ExecSync, prepareBindPayload(flags, db.id, stmtIdx, args))
	if err != nil {
		return 0, err
	}
	code, err := readU32(reply)
	return Code(code), err
}
