package rbac

import "fmt"

// Builder produces a compiled Table from a parent-pointer DAG: each role
// starts as its own parent (a root) and accumulates a local bag of
// permitted source and statement indices. MakeChild reparents one role
// under another; Compile flattens ancestor permissions and descendant
// reachability per role.
//
// Grounded on original_source/hier.c's two-pass approach (count
// descendants while walking each node upward, allocate, walk up again to
// assign); this port uses growable slices instead of a
// count-then-allocate pass since Go has no benefit from preallocating a
// fixed C array here.
type Builder struct {
	parent  []int
	sources [][]int
	stmts   [][]int
}

// NewBuilder returns a Builder for n roles, each initially its own parent
// with empty permission bags.
func NewBuilder(n int) *Builder {
	b := &Builder{
		parent:  make([]int, n),
		sources: make([][]int, n),
		stmts:   make([][]int, n),
	}
	for i := range b.parent {
		b.parent[i] = i
	}
	return b
}

func (b *Builder) checkIndex(i int) error {
	if i < 0 || i >= len(b.parent) {
		return fmt.Errorf("rbac: role index %d out of range [0,%d)", i, len(b.parent))
	}
	return nil
}

// SetSources assigns role's own permitted-source bag (duplicates are
// discarded).
func (b *Builder) SetSources(role int, idx ...int) error {
	if err := b.checkIndex(role); err != nil {
		return err
	}
	b.sources[role] = appendUnique(nil, idx...)
	return nil
}

// SetStmts assigns role's own permitted-statement bag (duplicates are
// discarded).
func (b *Builder) SetStmts(role int, idx ...int) error {
	if err := b.checkIndex(role); err != nil {
		return err
	}
	b.stmts[role] = appendUnique(nil, idx...)
	return nil
}

func appendUnique(dst []int, src ...int) []int {
	for _, v := range src {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

// isAncestor reports whether anc is p or an ancestor of p.
func (b *Builder) isAncestor(p, anc int) bool {
	for {
		if p == anc {
			return true
		}
		if b.parent[p] == p {
			return false
		}
		p = b.parent[p]
	}
}

// MakeChild reparents child under parent. make-child(x, x) is a no-op
// success. It fails if child already has a non-self parent, or if child is
// already an ancestor of parent (which would create a cycle).
func (b *Builder) MakeChild(parent, child int) error {
	if err := b.checkIndex(parent); err != nil {
		return err
	}
	if err := b.checkIndex(child); err != nil {
		return err
	}
	if parent == child {
		return nil
	}
	if b.parent[child] != child {
		return fmt.Errorf("rbac: role %d already has a parent", child)
	}
	if b.isAncestor(parent, child) {
		return fmt.Errorf("rbac: making %d a child of %d would create a cycle", child, parent)
	}
	b.parent[child] = parent
	return nil
}

// Compile flattens the DAG into a Table: each role's Sources/Stmts become
// the union of its own bag and every ancestor's, and each role's Targets
// become every descendant reachable downward.
func (b *Builder) Compile() Table {
	n := len(b.parent)
	table := make(Table, n)
	for i := 0; i < n; i++ {
		var sources, stmts []int
		for p := i; ; {
			sources = appendUnique(sources, b.sources[p]...)
			stmts = appendUnique(stmts, b.stmts[p]...)
			if b.parent[p] == p {
				break
			}
			p = b.parent[p]
		}
		table[i].Sources = sources
		table[i].Stmts = stmts
	}
	// targets: for every node, register it as a descendant of every one
	// of its ancestors (excluding itself).
	for i := 0; i < n; i++ {
		for p := i; ; {
			if b.parent[p] == p {
				break
			}
			p = b.parent[p]
			table[p].Targets = appendUnique(table[p].Targets, i)
		}
	}
	return table
}
