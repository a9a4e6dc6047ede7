// Package rbac implements the role-based access control guard and the
// hierarchical role compiler (spec §4.C/§4.D): a DAG of roles compiled into
// flattened per-role permission sets, checked with three O(n) membership
// primitives over those (deliberately tiny) sets.
package rbac

// Role is one compiled role's permission sets (spec §3, "Role").
type Role struct {
	// Sources holds the source indices this role may OPEN/CLOSE.
	Sources []int
	// Stmts holds the statement indices this role may PREPARE-BIND/EXEC.
	Stmts []int
	// Targets holds the role indices this role may transition into.
	Targets []int
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Table is a compiled, position-indexed role list. An empty Table disables
// RBAC: every check below passes vacuously.
type Table []Role

// CanUseSource reports whether role may OPEN/CLOSE source index src.
func (t Table) CanUseSource(role, src int) bool {
	if len(t) == 0 {
		return true
	}
	if role < 0 || role >= len(t) {
		return false
	}
	return contains(t[role].Sources, src)
}

// CanUseStmt reports whether role may PREPARE-BIND/EXEC statement index
// stmt.
func (t Table) CanUseStmt(role, stmt int) bool {
	if len(t) == 0 {
		return true
	}
	if role < 0 || role >= len(t) {
		return false
	}
	return contains(t[role].Stmts, stmt)
}

// CanTransitionRole reports whether role may transition into target. A
// transition into the current role is always allowed (spec §4.D: "a
// logged no-op").
func (t Table) CanTransitionRole(role, target int) bool {
	if len(t) == 0 {
		return true
	}
	if role == target {
		return true
	}
	if role < 0 || role >= len(t) {
		return false
	}
	return contains(t[role].Targets, target)
}
