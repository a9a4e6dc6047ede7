package sqlbox

import "github.com/sqlboxdb/sqlbox/internal/opcode"

// TxnKind selects the BEGIN/COMMIT/ROLLBACK flavor a transaction opcode
// carries (spec §4.I).
type TxnKind = opcode.TxnKind

// Transaction kinds.
const (
	TxnDeferred  = opcode.TxnDeferred
	TxnImmediate = opcode.TxnImmediate
	TxnExclusive = opcode.TxnExclusive
	TxnCommit    = opcode.TxnCommit
	TxnRollback  = opcode.TxnRollback
)

// Code is the completion code attached to a row record or an EXEC-SYNC
// reply (spec §6).
type Code = opcode.Code

// Completion codes.
const (
	CodeOK         = opcode.CodeOK
	CodeConstraint = opcode.CodeConstraint
)
