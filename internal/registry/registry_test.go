package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlboxdb/sqlbox/internal/engine"
)

func open(t *testing.T) *engine.Conn {
	t.Helper()
	conn, err := engine.Open(":memory:", engine.ReadWriteCreate)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpenDBAssignsMonotonicNonZeroIDs(t *testing.T) {
	r := New()
	a := r.OpenDB(0, open(t))
	b := r.OpenDB(1, open(t))
	assert.NotZero(t, a.ID)
	assert.NotZero(t, b.ID)
	assert.Greater(t, b.ID, a.ID)
}

func TestLookupDBZeroMeansMostRecent(t *testing.T) {
	r := New()
	r.OpenDB(0, open(t))
	b := r.OpenDB(1, open(t))

	got, ok := r.LookupDB(0)
	require.True(t, ok)
	assert.Equal(t, b.ID, got.ID)

	_, ok = r.LookupDB(0)
	_ = ok
}

func TestLookupDBZeroFailsWhenEmpty(t *testing.T) {
	r := New()
	_, ok := r.LookupDB(0)
	assert.False(t, ok)
}

func TestCloseDBFailsWithLiveStatements(t *testing.T) {
	r := New()
	eng := open(t)
	db := r.OpenDB(0, eng)
	stmt, err := eng.Prepare("SELECT 1", false)
	require.NoError(t, err)
	r.AddStmt(db, 0, stmt, false, false)

	assert.Error(t, r.CloseDB(db))
}

func TestCloseDBFailsWithOpenTransaction(t *testing.T) {
	r := New()
	db := r.OpenDB(0, open(t))
	db.TxnID = 7
	assert.Error(t, r.CloseDB(db))
}

func TestFinalizeStmtUnlinksFromBothLists(t *testing.T) {
	r := New()
	eng := open(t)
	db := r.OpenDB(0, eng)
	stmt, err := eng.Prepare("SELECT 1", false)
	require.NoError(t, err)
	st := r.AddStmt(db, 0, stmt, false, false)

	r.FinalizeStmt(st)
	_, ok := r.LookupStmt(st.ID)
	assert.False(t, ok)
	assert.NoError(t, r.CloseDB(db))
}

func TestShutdownFinalizesLeftoverStatements(t *testing.T) {
	r := New()
	eng := open(t)
	db := r.OpenDB(0, eng)
	stmt, err := eng.Prepare("SELECT 1", false)
	require.NoError(t, err)
	r.AddStmt(db, 0, stmt, false, false)

	var warned int
	r.Shutdown(func(db *DB, st *Statement) { warned++ })
	assert.Equal(t, 1, warned)
}
