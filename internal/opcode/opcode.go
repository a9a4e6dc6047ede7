// Package opcode defines the fixed set of wire opcodes shared by the
// client facade and the server dispatch loop.
package opcode

// Op identifies a request frame's operation.
type Op uint32

// Opcodes, in the order the dispatch table is built (see spec §4.G).
const (
	Close Op = iota + 1
	ExecAsync
	ExecSync
	Final
	LastID
	OpenAsync
	OpenSync
	Ping
	PrepareBindAsync
	PrepareBindSync
	Rebind
	Role
	Step
	TransOpen
	TransClose
	MsgSetDat
)

var names = map[Op]string{
	Close:            "CLOSE",
	ExecAsync:        "EXEC-ASYNC",
	ExecSync:         "EXEC-SYNC",
	Final:            "FINAL",
	LastID:           "LASTID",
	OpenAsync:        "OPEN-ASYNC",
	OpenSync:         "OPEN-SYNC",
	Ping:             "PING",
	PrepareBindAsync: "PREPARE-BIND-ASYNC",
	PrepareBindSync:  "PREPARE-BIND-SYNC",
	Rebind:           "REBIND",
	Role:             "ROLE",
	Step:             "STEP",
	TransOpen:        "TRANS-OPEN",
	TransClose:       "TRANS-CLOSE",
	MsgSetDat:        "MSG-SET-DAT",
}

func (o Op) String() string {
	if s, ok := names[o]; ok {
		return s
	}
	return "UNKNOWN"
}

// Sync reports whether the opcode expects exactly one reply frame.
func (o Op) Sync() bool {
	switch o {
	case ExecSync, LastID, OpenSync, Ping, PrepareBindSync, Step:
		return true
	default:
		return false
	}
}

// Flag bits carried in the flags word of EXEC/PREPARE-BIND payloads.
type Flag uint32

const (
	// FlagAcceptConstraint translates a constraint violation into a
	// returned code instead of a fatal engine error.
	FlagAcceptConstraint Flag = 1 << 0
	// FlagMultiRow batches step replies until the cache ceiling or
	// end-of-rows, instead of returning a single row per reply.
	FlagMultiRow Flag = 1 << 1
)

// Has reports whether f is set in the flag word.
func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Transaction kinds carried on the wire (spec §4.I).
type TxnKind uint32

const (
	TxnDeferred TxnKind = iota
	TxnImmediate
	TxnExclusive
	TxnCommit
	TxnRollback
)

func (k TxnKind) String() string {
	switch k {
	case TxnDeferred:
		return "DEFERRED"
	case TxnImmediate:
		return "IMMEDIATE"
	case TxnExclusive:
		return "EXCLUSIVE"
	case TxnCommit:
		return "COMMIT"
	case TxnRollback:
		return "ROLLBACK"
	default:
		return "UNKNOWN"
	}
}

// Code is the completion code attached to a row record or EXEC-SYNC reply.
type Code uint32

const (
	CodeOK Code = iota
	CodeConstraint
)
