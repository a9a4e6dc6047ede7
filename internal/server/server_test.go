package server

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlboxdb/sqlbox/internal/boxcfg"
	"github.com/sqlboxdb/sqlbox/internal/opcode"
	"github.com/sqlboxdb/sqlbox/internal/params"
	"github.com/sqlboxdb/sqlbox/internal/rows"
	"github.com/sqlboxdb/sqlbox/internal/wire"
)

func startServer(t *testing.T, cfg *boxcfg.Config) net.Conn {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	srv := New(cfg)
	go func() {
		srv.Run(serverConn)
		serverConn.Close()
	}()
	t.Cleanup(func() { clientConn.Close() })
	return clientConn
}

// doCall writes one request frame and, for synchronous opcodes, reads its
// reply. Async opcodes return a nil payload immediately.
func doCall(t *testing.T, conn net.Conn, op opcode.Op, payload []byte) []byte {
	t.Helper()
	require.NoError(t, wire.WriteFrame(conn, op, payload))
	if !op.Sync() {
		return nil
	}
	frame, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	return frame.Payload
}

func prepareBindPayload(flags, dbID, stmtIdx uint32, cells []params.Cell) []byte {
	buf := u32le(flags)
	buf = append(buf, u32le(dbID)...)
	buf = append(buf, u32le(stmtIdx)...)
	buf = append(buf, params.Pack(cells)...)
	return buf
}

func memCfg(statements []string) *boxcfg.Config {
	return &boxcfg.Config{
		Sources:    []boxcfg.Source{{Filename: ":memory:", Mode: boxcfg.ReadWriteCreate}},
		Statements: statements,
	}
}

func TestPingLiveness(t *testing.T) {
	conn := startServer(t, memCfg(nil))
	for _, nonce := range []uint32{1, 2, 3} {
		reply := doCall(t, conn, opcode.Ping, u32le(nonce))
		require.Len(t, reply, 4)
		assert.Equal(t, nonce, binaryLE(reply))
	}
}

func binaryLE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func TestInsertAndReadBack(t *testing.T) {
	cfg := memCfg([]string{
		"CREATE TABLE t(c INT)",
		"INSERT INTO t VALUES(?)",
		"SELECT c FROM t",
	})
	conn := startServer(t, cfg)

	dbIDBuf := doCall(t, conn, opcode.OpenSync, u32le(0))
	dbID := binaryLE(dbIDBuf)
	require.NotZero(t, dbID)

	doCall(t, conn, opcode.ExecAsync, prepareBindPayload(0, dbID, 0, nil))
	doCall(t, conn, opcode.ExecAsync, prepareBindPayload(0, dbID, 1, []params.Cell{params.Int64(42)}))

	stmtIDBuf := doCall(t, conn, opcode.PrepareBindSync, prepareBindPayload(0, dbID, 2, nil))
	stmtID := binaryLE(stmtIDBuf)
	require.NotZero(t, stmtID)

	reply := doCall(t, conn, opcode.Step, u32le(stmtID))
	recs, err := rows.DecodeAll(reply)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Len(t, recs[0].Cells, 1)
	assert.EqualValues(t, 42, recs[0].Cells[0].Int)

	reply = doCall(t, conn, opcode.Step, u32le(stmtID))
	recs, err = rows.DecodeAll(reply)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Cells)

	doCall(t, conn, opcode.Final, u32le(stmtID))
	doCall(t, conn, opcode.Close, u32le(dbID))

	pingReply := doCall(t, conn, opcode.Ping, u32le(99))
	assert.Equal(t, uint32(99), binaryLE(pingReply))
}

func TestConstraintCaught(t *testing.T) {
	cfg := memCfg([]string{
		"CREATE TABLE t(c INT UNIQUE)",
		"INSERT INTO t VALUES(?)",
	})
	conn := startServer(t, cfg)
	dbID := binaryLE(doCall(t, conn, opcode.OpenSync, u32le(0)))
	doCall(t, conn, opcode.ExecAsync, prepareBindPayload(0, dbID, 0, nil))

	acceptFlags := uint32(opcode.FlagAcceptConstraint)
	doCall(t, conn, opcode.ExecAsync, prepareBindPayload(acceptFlags, dbID, 1, []params.Cell{params.Int64(10)}))
	doCall(t, conn, opcode.ExecAsync, prepareBindPayload(acceptFlags, dbID, 1, []params.Cell{params.Int64(10)}))

	pingReply := doCall(t, conn, opcode.Ping, u32le(7))
	assert.Equal(t, uint32(7), binaryLE(pingReply), "accept-constraint flag must keep the connection alive")
}

func TestConstraintFatalWithoutFlag(t *testing.T) {
	cfg := memCfg([]string{
		"CREATE TABLE t(c INT UNIQUE)",
		"INSERT INTO t VALUES(?)",
	})
	conn := startServer(t, cfg)
	dbID := binaryLE(doCall(t, conn, opcode.OpenSync, u32le(0)))
	doCall(t, conn, opcode.ExecAsync, prepareBindPayload(0, dbID, 0, nil))
	doCall(t, conn, opcode.ExecAsync, prepareBindPayload(0, dbID, 1, []params.Cell{params.Int64(10)}))
	doCall(t, conn, opcode.ExecAsync, prepareBindPayload(0, dbID, 1, []params.Cell{params.Int64(10)}))

	require.NoError(t, wire.WriteFrame(conn, opcode.Ping, u32le(7)))
	_, err := wire.ReadFrame(conn)
	assert.Error(t, err, "an unflagged constraint violation must kill the connection")
}

func TestRoleTransitionGatesStatement(t *testing.T) {
	cfg := memCfg([]string{"SELECT 1"})
	cfg.Roles = []boxcfg.Role{
		{Sources: []int{0}, Stmts: nil, Targets: []int{1}},
		{Sources: []int{0}, Stmts: []int{0}, Targets: nil},
	}
	cfg.DefaultRole = 0
	conn := startServer(t, cfg)

	dbID := binaryLE(doCall(t, conn, opcode.OpenSync, u32le(0)))

	require.NoError(t, wire.WriteFrame(conn, opcode.PrepareBindSync, prepareBindPayload(0, dbID, 0, nil)))
	_, err := wire.ReadFrame(conn)
	assert.Error(t, err, "role 0 may not use statement 0")

	conn2 := startServer(t, cfg)
	dbID2 := binaryLE(doCall(t, conn2, opcode.OpenSync, u32le(0)))
	doCall(t, conn2, opcode.Role, u32le(1))
	stmtIDBuf := doCall(t, conn2, opcode.PrepareBindSync, prepareBindPayload(0, dbID2, 0, nil))
	assert.NotZero(t, binaryLE(stmtIDBuf))
}

func TestCloseRequiresSourceRole(t *testing.T) {
	cfg := memCfg(nil)
	cfg.Roles = []boxcfg.Role{
		{Sources: []int{0}, Targets: []int{1}},
		{Sources: []int{}, Targets: []int{}},
	}
	cfg.DefaultRole = 0
	conn := startServer(t, cfg)

	dbID := binaryLE(doCall(t, conn, opcode.OpenSync, u32le(0)))
	doCall(t, conn, opcode.Role, u32le(1))

	require.NoError(t, wire.WriteFrame(conn, opcode.Close, u32le(dbID)))
	_, err := wire.ReadFrame(conn)
	assert.Error(t, err, "close must be gated by can_use_source like open")
}

func TestMultiRowBatch(t *testing.T) {
	cfg := memCfg([]string{
		"CREATE TABLE t(c INT)",
		"INSERT INTO t VALUES(?)",
		"SELECT c FROM t ORDER BY c",
	})
	conn := startServer(t, cfg)
	dbID := binaryLE(doCall(t, conn, opcode.OpenSync, u32le(0)))
	doCall(t, conn, opcode.ExecAsync, prepareBindPayload(0, dbID, 0, nil))

	const n = 200
	for i := 0; i < n; i++ {
		doCall(t, conn, opcode.ExecAsync, prepareBindPayload(0, dbID, 1, []params.Cell{params.Int64(int64(i))}))
	}

	stmtID := binaryLE(doCall(t, conn, opcode.PrepareBindSync, prepareBindPayload(uint32(opcode.FlagMultiRow), dbID, 2, nil)))

	var got []int64
	done := false
	for !done {
		reply := doCall(t, conn, opcode.Step, u32le(stmtID))
		recs, err := rows.DecodeAll(reply)
		require.NoError(t, err)
		for _, r := range recs {
			if len(r.Cells) == 0 {
				done = true
				break
			}
			got = append(got, r.Cells[0].Int)
		}
	}
	require.Len(t, got, n)
	for i, v := range got {
		assert.EqualValues(t, i, v)
	}

	require.NoError(t, wire.WriteFrame(conn, opcode.Step, u32le(stmtID)))
	_, err := wire.ReadFrame(conn)
	assert.Error(t, err, "stepping a DONE statement without REBIND must fail")
}

func TestTransactionMachine(t *testing.T) {
	cfg := memCfg([]string{"CREATE TABLE t(c INT)"})
	conn := startServer(t, cfg)
	dbID := binaryLE(doCall(t, conn, opcode.OpenSync, u32le(0)))

	open := func(tid, kind uint32) []byte {
		buf := u32le(dbID)
		buf = append(buf, u32le(tid)...)
		buf = append(buf, u32le(kind)...)
		return buf
	}

	require.NoError(t, wire.WriteFrame(conn, opcode.TransOpen, open(0, uint32(opcode.TxnDeferred))))
	_, err := wire.ReadFrame(conn)
	assert.Error(t, err, "tid==0 must be rejected")
}

func TestTransactionRefusesSecondOpen(t *testing.T) {
	cfg := memCfg([]string{"CREATE TABLE t(c INT)"})
	conn := startServer(t, cfg)
	dbID := binaryLE(doCall(t, conn, opcode.OpenSync, u32le(0)))

	openPayload := func(tid, kind uint32) []byte {
		buf := u32le(dbID)
		buf = append(buf, u32le(tid)...)
		buf = append(buf, u32le(kind)...)
		return buf
	}
	doCall(t, conn, opcode.TransOpen, openPayload(1, uint32(opcode.TxnDeferred)))

	require.NoError(t, wire.WriteFrame(conn, opcode.TransOpen, openPayload(2, uint32(opcode.TxnDeferred))))
	_, err := wire.ReadFrame(conn)
	assert.Error(t, err, "a second TRANS-OPEN before close must fail")
}
