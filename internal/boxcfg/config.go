// Package boxcfg holds the Config data model shared by the public sqlbox
// package (the parent-side facade) and internal/server (the child-side
// dispatch loop), so neither has to import the other to agree on its
// shape.
package boxcfg

import (
	"fmt"

	"github.com/sqlboxdb/sqlbox/internal/engine"
	"github.com/sqlboxdb/sqlbox/internal/params"
	"github.com/sqlboxdb/sqlbox/internal/rbac"
)

// OpenMode is a source's open mode (spec §3).
type OpenMode = engine.OpenMode

// Open modes for a Source.
const (
	ReadOnly        = engine.ReadOnly
	ReadWrite       = engine.ReadWrite
	ReadWriteCreate = engine.ReadWriteCreate
)

// Source is one entry in the externally supplied, stable list of database
// files (spec §3, "Source descriptor").
type Source struct {
	Filename string
	Mode     OpenMode
}

// Role is a compiled role's permission sets (spec §3, "Role").
type Role = rbac.Role

// FilterDirection tags a filter slot as bind-side or result-side (spec
// §4.H). The server consults only FilterResult slots, when it converts a
// stepped row's column into a cell; FilterBind slots are accepted in the
// table but never invoked.
type FilterDirection int

const (
	FilterBind FilterDirection = iota
	FilterResult
)

// FilterKey identifies one (statement index, column index, direction)
// filter slot (spec §6, Config).
type FilterKey struct {
	StmtIdx   int
	ColIdx    int
	Direction FilterDirection
}

// Cell is a tagged parameter or result value (spec §3, "Parameter cell").
type Cell = params.Cell

// FilterFunc computes a cell in place of the cell the server would build
// from an engine result column; scratch is the engine's value for that
// column. If it returns an error the server logs a warning and sends a
// NULL cell. Per the spec's design notes (§9), this returns owned data
// instead of a pointer-plus-free-callback pair: Go's allocator already
// releases it once the reply has been serialized and the Cell goes out of
// scope, so there is no separate free step to record.
type FilterFunc func(scratch any) (Cell, error)

// Config is the single in-process configuration record (spec §6). There is
// no CLI, environment variable, or persisted state at this layer.
type Config struct {
	// Sources is the stable, position-indexed list of database files.
	Sources []Source
	// Statements is the stable, position-indexed list of SQL texts the
	// engine will ever prepare.
	Statements []string
	// Roles is the compiled, position-indexed role list. An empty list
	// disables RBAC entirely.
	Roles []Role
	// DefaultRole is the role index in effect immediately after fork.
	DefaultRole int
	// Filters computes selected result cells in place of the engine's
	// column value (spec §4.H). Only FilterResult keys are used; bind
	// parameters are never filtered.
	Filters map[FilterKey]FilterFunc
	// MessageSink receives one formatted diagnostic line per call; if
	// nil, diagnostics are discarded.
	MessageSink func(string)
	// DropPrivileges is invoked by the child, once, immediately after the
	// transport handshake and before the first frame is read. The actual
	// OS-level capability reduction is the caller's concern (spec §1).
	DropPrivileges func() error
}

// Validate checks the Configuration-invalid cases spec §7.1 calls out:
// empty filenames or statement texts, and any role reference — default
// role, a role's own source/statement bag, or its target set — that falls
// outside the lists actually supplied.
func (c *Config) Validate() error {
	for i, s := range c.Sources {
		if s.Filename == "" {
			return fmt.Errorf("sqlbox: source %d: empty filename", i)
		}
	}
	for i, s := range c.Statements {
		if s == "" {
			return fmt.Errorf("sqlbox: statement %d: empty text", i)
		}
	}
	if len(c.Roles) == 0 {
		return nil
	}
	if c.DefaultRole < 0 || c.DefaultRole >= len(c.Roles) {
		return fmt.Errorf("sqlbox: default role %d out of range [0,%d)", c.DefaultRole, len(c.Roles))
	}
	for i, r := range c.Roles {
		for _, s := range r.Sources {
			if s < 0 || s >= len(c.Sources) {
				return fmt.Errorf("sqlbox: role %d: source index %d out of range", i, s)
			}
		}
		for _, s := range r.Stmts {
			if s < 0 || s >= len(c.Statements) {
				return fmt.Errorf("sqlbox: role %d: statement index %d out of range", i, s)
			}
		}
		for _, t := range r.Targets {
			if t < 0 || t >= len(c.Roles) {
				return fmt.Errorf("sqlbox: role %d: target role %d out of range", i, t)
			}
		}
	}
	return nil
}
