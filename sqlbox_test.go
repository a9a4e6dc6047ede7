package sqlbox

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlboxdb/sqlbox/internal/boxcfg"
	"github.com/sqlboxdb/sqlbox/internal/server"
)

// newTestSqlbox wires a *Sqlbox directly to an in-process server over a
// net.Pipe, bypassing Alloc's re-exec — the dispatch loop under test is
// the same one the real child process would run.
func newTestSqlbox(t *testing.T, cfg *boxcfg.Config) *Sqlbox {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	srv := server.New(cfg)
	go func() {
		srv.Run(serverConn)
		serverConn.Close()
	}()
	sb := &Sqlbox{conn: clientConn}
	t.Cleanup(func() { clientConn.Close() })
	return sb
}

func TestFacadePingRoundTrip(t *testing.T) {
	sb := newTestSqlbox(t, &boxcfg.Config{
		Sources: []boxcfg.Source{{Filename: ":memory:", Mode: boxcfg.ReadWriteCreate}},
	})
	nonce, err := sb.Ping(12345)
	require.NoError(t, err)
	assert.Equal(t, uint32(12345), nonce)
}

func TestFacadeInsertAndReadBack(t *testing.T) {
	cfg := &boxcfg.Config{
		Sources: []boxcfg.Source{{Filename: ":memory:", Mode: boxcfg.ReadWriteCreate}},
		Statements: []string{
			"CREATE TABLE t(c INT)",
			"INSERT INTO t VALUES(?)",
			"SELECT c FROM t",
		},
	}
	sb := newTestSqlbox(t, cfg)
	db, err := sb.Open(0)
	require.NoError(t, err)

	_, err = db.Exec(0, nil, false)
	require.NoError(t, err)
	_, err = db.Exec(1, []Cell{IntCell(42)}, false)
	require.NoError(t, err)

	stmt, err := db.PrepareBind(2, nil, false, false)
	require.NoError(t, err)

	code, cells, done, err := stmt.Step()
	require.NoError(t, err)
	assert.Equal(t, CodeOK, code)
	require.Len(t, cells, 1)
	v, coercion := cells[0].ToInt64()
	assert.Equal(t, CoercionNative, coercion)
	assert.EqualValues(t, 42, v)
	assert.False(t, done)

	_, _, done, err = stmt.Step()
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, stmt.Final())
	require.NoError(t, db.Close())
}

func TestFacadeStepPastDoneFails(t *testing.T) {
	cfg := &boxcfg.Config{
		Sources: []boxcfg.Source{{Filename: ":memory:", Mode: boxcfg.ReadWriteCreate}},
		Statements: []string{
			"CREATE TABLE t(c INT)",
			"SELECT c FROM t",
		},
	}
	sb := newTestSqlbox(t, cfg)
	db, err := sb.Open(0)
	require.NoError(t, err)
	_, err = db.Exec(0, nil, false)
	require.NoError(t, err)

	stmt, err := db.PrepareBind(1, nil, false, false)
	require.NoError(t, err)

	_, _, done, err := stmt.Step()
	require.NoError(t, err)
	assert.True(t, done)

	_, _, _, err = stmt.Step()
	assert.Error(t, err, "stepping a DONE statement without a Rebind must fail")
}

func TestFacadeRebindReusesStatement(t *testing.T) {
	cfg := &boxcfg.Config{
		Sources: []boxcfg.Source{{Filename: ":memory:", Mode: boxcfg.ReadWriteCreate}},
		Statements: []string{
			"CREATE TABLE t(c INT)",
			"INSERT INTO t VALUES(?)",
		},
	}
	sb := newTestSqlbox(t, cfg)
	db, err := sb.Open(0)
	require.NoError(t, err)
	_, err = db.Exec(0, nil, false)
	require.NoError(t, err)

	stmt, err := db.PrepareBind(1, []Cell{IntCell(1)}, false, false)
	require.NoError(t, err)
	_, _, _, err = stmt.Step()
	require.NoError(t, err)

	require.NoError(t, stmt.Rebind([]Cell{IntCell(2)}))
	_, _, done, err := stmt.Step()
	require.NoError(t, err)
	assert.True(t, done, "an INSERT yields no rows, so the rebound step reaches end of rows")
}

func TestFacadeRoleTransition(t *testing.T) {
	cfg := &boxcfg.Config{
		Sources:    []boxcfg.Source{{Filename: ":memory:", Mode: boxcfg.ReadWriteCreate}},
		Statements: []string{"SELECT 1"},
		Roles: []boxcfg.Role{
			{Sources: []int{0}, Targets: []int{1}},
			{Sources: []int{0}, Stmts: []int{0}},
		},
	}
	sb := newTestSqlbox(t, cfg)
	db, err := sb.Open(0)
	require.NoError(t, err)

	require.NoError(t, sb.Role(1))
	_, err = db.PrepareBind(0, nil, false, false)
	require.NoError(t, err)
}
