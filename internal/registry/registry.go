// Package registry tracks live database and statement handles on the
// server side (spec §4.E): insertion-ordered, monotonically-id'd, looked up
// by id with id 0 meaning "most recent." The dispatch loop is single
// goroutine (spec §5: no threads on either side), so the registry needs no
// locking of its own.
//
// container/list gives the doubly-linked, O(1)-unlink-by-element list the
// spec's design notes call for (§9, "pick whichever container gives O(1)
// append and acceptable scan"); no pack repo implements a bespoke
// intrusive list, and reaching for a third-party linked-list package would
// add a dependency the standard library already covers exactly.
package registry

import (
	"container/list"
	"fmt"

	"github.com/sqlboxdb/sqlbox/internal/assert"
	"github.com/sqlboxdb/sqlbox/internal/engine"
)

// DB is one open database handle.
type DB struct {
	ID        uint32
	SourceIdx int
	Engine    *engine.Conn
	TxnID     uint32
	TxnKind   uint32

	stmts *list.List
	elem  *list.Element
}

// StmtState is a statement's position in the NEW→BOUND→STEPPING→DONE
// machine (spec §4.H). NEW collapses into Bound: PREPARE-BIND only ever
// hands back a statement that has already bound its parameters.
type StmtState int

const (
	StateBound StmtState = iota
	StateStepping
	StateDone
)

// Statement is one live prepared statement.
type Statement struct {
	ID               uint32
	DB               *DB
	StmtIdx          int
	Engine           *engine.Stmt
	AcceptConstraint bool
	MultiRow         bool
	State            StmtState

	// Err is set when a REBIND's engine bind fails. Spec §4.H: "a rebind
	// that fails leaves the statement in an error state ... the protocol
	// does not rewind" — the next STEP surfaces Err instead of retrying
	// the bind.
	Err error

	dbElem     *list.Element
	globalElem *list.Element
}

// Registry owns the live database and statement lists.
type Registry struct {
	dbs       *list.List
	allStmts  *list.List
	nextDBID  uint32
	nextStmtID uint32
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		dbs:        list.New(),
		allStmts:   list.New(),
		nextDBID:   1,
		nextStmtID: 1,
	}
}

// OpenDB registers a freshly opened engine connection and assigns it a
// non-zero id.
func (r *Registry) OpenDB(sourceIdx int, eng *engine.Conn) *DB {
	db := &DB{
		ID:        r.nextDBID,
		SourceIdx: sourceIdx,
		Engine:    eng,
		stmts:     list.New(),
	}
	r.nextDBID++
	db.elem = r.dbs.PushBack(db)
	return db
}

// LookupDB finds a database by id; id 0 means "most recent" and succeeds
// only when at least one database is open.
func (r *Registry) LookupDB(id uint32) (*DB, bool) {
	if id == 0 {
		if back := r.dbs.Back(); back != nil {
			return back.Value.(*DB), true
		}
		return nil, false
	}
	for e := r.dbs.Front(); e != nil; e = e.Next() {
		db := e.Value.(*DB)
		if db.ID == id {
			return db, true
		}
	}
	return nil, false
}

// CloseDB unregisters db. It fails if db still owns live statements or has
// an open transaction (spec §4.E's CLOSE invariant). It does not close the
// engine connection; the caller does that once CloseDB has succeeded.
func (r *Registry) CloseDB(db *DB) error {
	if db.stmts.Len() != 0 {
		return fmt.Errorf("registry: close db %d: %d statement(s) still live", db.ID, db.stmts.Len())
	}
	if db.TxnID != 0 {
		return fmt.Errorf("registry: close db %d: transaction %d still open", db.ID, db.TxnID)
	}
	r.dbs.Remove(db.elem)
	return nil
}

// AddStmt registers a freshly prepared statement under db and in the
// global lookup list, assigning it a non-zero id.
func (r *Registry) AddStmt(db *DB, stmtIdx int, eng *engine.Stmt, acceptConstraint, multiRow bool) *Statement {
	st := &Statement{
		ID:               r.nextStmtID,
		DB:               db,
		StmtIdx:          stmtIdx,
		Engine:           eng,
		AcceptConstraint: acceptConstraint,
		MultiRow:         multiRow,
		State:            StateBound,
	}
	r.nextStmtID++
	st.dbElem = db.stmts.PushBack(st)
	st.globalElem = r.allStmts.PushBack(st)
	return st
}

// LookupStmt finds a statement by id; id 0 means "most recently prepared."
func (r *Registry) LookupStmt(id uint32) (*Statement, bool) {
	if id == 0 {
		if back := r.allStmts.Back(); back != nil {
			return back.Value.(*Statement), true
		}
		return nil, false
	}
	for e := r.allStmts.Front(); e != nil; e = e.Next() {
		st := e.Value.(*Statement)
		if st.ID == id {
			return st, true
		}
	}
	return nil, false
}

// FinalizeStmt unlinks st from both lists. The caller is responsible for
// having finalized the engine statement.
func (r *Registry) FinalizeStmt(st *Statement) {
	st.DB.stmts.Remove(st.dbElem)
	r.allStmts.Remove(st.globalElem)
}

// Shutdown finalizes every live statement (warning for each, per spec
// §4.E), then closes every database's engine connection. warn is called
// once per leftover statement before it is finalized.
func (r *Registry) Shutdown(warn func(db *DB, st *Statement)) {
	for e := r.dbs.Front(); e != nil; e = e.Next() {
		db := e.Value.(*DB)
		for se := db.stmts.Front(); se != nil; {
			st := se.Value.(*Statement)
			next := se.Next()
			warn(db, st)
			st.Engine.Finalize()
			db.stmts.Remove(st.dbElem)
			r.allStmts.Remove(st.globalElem)
			se = next
		}
		assert.EmptyRegistry(0, db.stmts.Len())
		db.Engine.Close()
	}
	assert.EmptyRegistry(r.allStmts.Len(), 0)
	r.dbs.Init()
}
