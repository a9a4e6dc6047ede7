package sqlbox

import (
	"github.com/sqlboxdb/sqlbox/internal/boxcfg"
	"github.com/sqlboxdb/sqlbox/internal/rbac"
)

// OpenMode is a source's open mode (spec §3).
type OpenMode = boxcfg.OpenMode

// Open modes for a Source.
const (
	ReadOnly        = boxcfg.ReadOnly
	ReadWrite       = boxcfg.ReadWrite
	ReadWriteCreate = boxcfg.ReadWriteCreate
)

// Source is one entry in the externally supplied, stable list of database
// files (spec §3, "Source descriptor").
type Source = boxcfg.Source

// Role is a compiled role's permission sets (spec §3, "Role"). Build one
// with RoleBuilder when roles form a hierarchy, or construct the slice
// directly when they don't.
type Role = boxcfg.Role

// FilterDirection tags a filter slot as bind-side or result-side (spec
// §4.H). Only FilterResult slots are invoked; FilterBind slots are
// accepted but never run.
type FilterDirection = boxcfg.FilterDirection

// Filter directions.
const (
	FilterBind   = boxcfg.FilterBind
	FilterResult = boxcfg.FilterResult
)

// FilterKey identifies one (statement index, column index, direction)
// filter slot (spec §6, Config).
type FilterKey = boxcfg.FilterKey

// Cell is a tagged parameter or result value (spec §3, "Parameter cell").
type Cell = boxcfg.Cell

// FilterFunc computes a cell in place of the one built from an engine
// result column; it receives the engine's column value (spec §4.H, §9).
type FilterFunc = boxcfg.FilterFunc

// Config is the single in-process configuration record (spec §6).
type Config = boxcfg.Config

// RoleBuilder turns a parent-pointer DAG plus per-role permission bags into
// a flattened []Role (spec §4.C). Roles start as their own parent (roots).
type RoleBuilder struct {
	b *rbac.Builder
}

// NewRoleBuilder returns a RoleBuilder for n roles.
func NewRoleBuilder(n int) *RoleBuilder { return &RoleBuilder{b: rbac.NewBuilder(n)} }

// MakeChild reparents child under parent. A self-edge is a no-op success;
// a cycle or a child that already has a non-self parent fails.
func (rb *RoleBuilder) MakeChild(parent, child int) error { return rb.b.MakeChild(parent, child) }

// SetSources assigns role's own permitted-source bag.
func (rb *RoleBuilder) SetSources(role int, idx ...int) error { return rb.b.SetSources(role, idx...) }

// SetStmts assigns role's own permitted-statement bag.
func (rb *RoleBuilder) SetStmts(role int, idx ...int) error { return rb.b.SetStmts(role, idx...) }

// Compile flattens the DAG into the []Role Config.Roles expects.
func (rb *RoleBuilder) Compile() []Role { return rb.b.Compile() }
