package server

import (
	"fmt"

	"github.com/sqlboxdb/sqlbox/internal/opcode"
)

func beginSQL(k opcode.TxnKind) (string, error) {
	switch k {
	case opcode.TxnDeferred:
		return "BEGIN DEFERRED TRANSACTION", nil
	case opcode.TxnImmediate:
		return "BEGIN IMMEDIATE TRANSACTION", nil
	case opcode.TxnExclusive:
		return "BEGIN EXCLUSIVE TRANSACTION", nil
	default:
		return "", fmt.Errorf("server: trans-open: kind %s is not an open kind", k)
	}
}

func endSQL(k opcode.TxnKind) (string, error) {
	switch k {
	case opcode.TxnCommit:
		return "COMMIT TRANSACTION", nil
	case opcode.TxnRollback:
		return "ROLLBACK TRANSACTION", nil
	default:
		return "", fmt.Errorf("server: trans-close: kind %s is not a close kind", k)
	}
}

// handleTrans implements TRANS-OPEN and TRANS-CLOSE (spec §4.I): at most
// one open transaction per database, realized as a fixed SQL statement
// executed through the retrying engine exec path.
func (s *Server) handleTrans(op opcode.Op, payload []byte) error {
	r := &payloadReader{buf: payload}
	srcID, err := r.u32()
	if err != nil {
		return err
	}
	tid, err := r.u32()
	if err != nil {
		return err
	}
	kindWord, err := r.u32()
	if err != nil {
		return err
	}
	kind := opcode.TxnKind(kindWord)

	db, ok := s.reg.LookupDB(srcID)
	if !ok {
		return fmt.Errorf("server: trans: no open database %d", srcID)
	}

	if op == opcode.TransOpen {
		// tid==0 is checked first: a regression fixture in the original
		// source (test-trans-open-bad-zero-id.c) pins this ordering ahead
		// of the already-open check.
		if tid == 0 {
			return fmt.Errorf("server: trans-open: tid must be non-zero")
		}
		if db.TxnID != 0 {
			return fmt.Errorf("server: trans-open: db %d already has transaction %d open", db.ID, db.TxnID)
		}
		sql, err := beginSQL(kind)
		if err != nil {
			return err
		}
		if _, err := db.Engine.Exec(sql, false); err != nil {
			return err
		}
		db.TxnID = tid
		db.TxnKind = uint32(kind)
		return nil
	}

	// TRANS-CLOSE
	if db.TxnID == 0 {
		return fmt.Errorf("server: trans-close: db %d has no open transaction", db.ID)
	}
	if db.TxnID != tid {
		return fmt.Errorf("server: trans-close: tid %d does not match open transaction %d", tid, db.TxnID)
	}
	sql, err := endSQL(kind)
	if err != nil {
		return err
	}
	if _, err := db.Engine.Exec(sql, false); err != nil {
		return err
	}
	db.TxnID = 0
	db.TxnKind = 0
	return nil
}
