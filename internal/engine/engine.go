// Package engine wraps the embedded SQLite library (spec treats it as an
// external collaborator, §1) with the three retry-wrapped primitives spec
// §4.F requires: prepare, step, and the no-param exec fast path. BUSY,
// LOCKED, and PROTOCOL are retried under backoff.Schedule; CONSTRAINT is
// escalated to a returned code only for statements flagged
// accept-constraint; anything else is an engine error surfaced to the
// caller.
//
// There is no context.Context threaded through this package: spec §5
// states plainly that the engine has no cancellation or timeout — a
// misbehaving call retries indefinitely until the process is torn down —
// so a cancellable context would advertise a capability this engine does
// not have.
package engine

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"io"

	"github.com/mattn/go-sqlite3"

	"github.com/sqlboxdb/sqlbox/internal/backoff"
	"github.com/sqlboxdb/sqlbox/internal/opcode"
)

// OpenMode mirrors the source descriptor's open mode (spec §3).
type OpenMode int

const (
	ReadOnly OpenMode = iota
	ReadWrite
	ReadWriteCreate
)

func dsn(filename string, mode OpenMode) string {
	switch mode {
	case ReadOnly:
		return filename + "?mode=ro"
	case ReadWrite:
		return filename + "?mode=rw"
	default:
		return filename + "?mode=rwc"
	}
}

var baseDriver = &sqlite3.SQLiteDriver{}

// Conn is one engine database connection.
type Conn struct {
	raw *sqlite3.SQLiteConn
}

// Open opens filename under mode, without any retry: spec §4.F's retry
// wrapper covers prepare/step/exec, not the initial open.
func Open(filename string, mode OpenMode) (*Conn, error) {
	c, err := baseDriver.Open(dsn(filename, mode))
	if err != nil {
		return nil, fmt.Errorf("engine: open %q: %w", filename, err)
	}
	sc, ok := c.(*sqlite3.SQLiteConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("engine: unexpected connection type %T", c)
	}
	return &Conn{raw: sc}, nil
}

// Close closes the underlying engine connection.
func (c *Conn) Close() error { return c.raw.Close() }

// LastInsertID returns the engine's last-insert-rowid for this connection.
func (c *Conn) LastInsertID() int64 { return c.raw.LastInsertId() }

func isTransient(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrProtocol:
		return true
	default:
		return false
	}
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

// retry runs fn, sleeping under backoff.Schedule and retrying indefinitely
// while fn's error is transient, and returning on success or any other
// error.
func retry(fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		backoff.Sleep(attempt)
	}
}

// Stmt is one prepared statement together with its active row cursor.
type Stmt struct {
	raw              driver.Stmt
	rows             driver.Rows
	acceptConstraint bool
}

// Prepare prepares query, retrying on transient engine errors.
func (c *Conn) Prepare(query string, acceptConstraint bool) (*Stmt, error) {
	var raw driver.Stmt
	err := retry(func() error {
		s, err := c.raw.Prepare(query)
		if err != nil {
			return err
		}
		raw = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("engine: prepare %q: %w", query, err)
	}
	return &Stmt{raw: raw, acceptConstraint: acceptConstraint}, nil
}

// NumInput returns the statement's bound-parameter count.
func (s *Stmt) NumInput() int { return s.raw.NumInput() }

// Bind binds args and resets the statement's step cursor to the first row,
// retrying prepare-adjacent transient errors. It does not itself execute a
// step; the first Step call does.
func (s *Stmt) Bind(args []driver.Value) error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	return retry(func() error {
		rows, err := s.raw.Query(args)
		if err != nil {
			return err
		}
		s.rows = rows
		return nil
	})
}

// StepResult is the outcome of one engine-level step (spec §4.H).
type StepResult struct {
	Code    opcode.Code
	Columns []string
	Row     []driver.Value
	Done    bool
}

// Step advances the statement by one row, translating DONE into an
// empty-cell OK result and CONSTRAINT into either a returned code (if the
// statement accepts constraints) or a fatal engine error.
func (s *Stmt) Step() (StepResult, error) {
	if s.rows == nil {
		return StepResult{}, fmt.Errorf("engine: step called before bind")
	}
	cols := s.rows.Columns()
	row := make([]driver.Value, len(cols))

	var stepErr error
	err := retry(func() error {
		stepErr = s.rows.Next(row)
		if stepErr == nil || stepErr == io.EOF {
			return nil
		}
		return stepErr
	})
	if err != nil {
		if isConstraint(err) {
			if s.acceptConstraint {
				return StepResult{Code: opcode.CodeConstraint, Done: true}, nil
			}
			return StepResult{}, fmt.Errorf("engine: constraint violation on non-accepting statement: %w", err)
		}
		return StepResult{}, fmt.Errorf("engine: step: %w", err)
	}
	if stepErr == io.EOF {
		return StepResult{Code: opcode.CodeOK, Done: true}, nil
	}
	return StepResult{Code: opcode.CodeOK, Columns: cols, Row: row}, nil
}

// Reset clears the statement's step cursor, as REBIND requires before
// binding fresh parameters.
func (s *Stmt) Reset() error {
	if s.rows != nil {
		err := s.rows.Close()
		s.rows = nil
		return err
	}
	return nil
}

// Finalize releases the prepared statement.
func (s *Stmt) Finalize() error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	return s.raw.Close()
}

// Exec runs a parameterless statement to completion via the engine's
// direct exec call (spec §4.J), bypassing prepare/step. CONSTRAINT
// translates the same way Step's does, keyed off acceptConstraint.
func (c *Conn) Exec(query string, acceptConstraint bool) (opcode.Code, error) {
	err := retry(func() error {
		_, err := c.raw.Exec(query, nil)
		return err
	})
	if err != nil {
		if isConstraint(err) {
			if acceptConstraint {
				return opcode.CodeConstraint, nil
			}
			return 0, fmt.Errorf("engine: constraint violation on non-accepting exec: %w", err)
		}
		return 0, fmt.Errorf("engine: exec %q: %w", query, err)
	}
	return opcode.CodeOK, nil
}
