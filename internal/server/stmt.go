package server

import (
	"fmt"

	"github.com/sqlboxdb/sqlbox/internal/boxcfg"
	"github.com/sqlboxdb/sqlbox/internal/opcode"
	"github.com/sqlboxdb/sqlbox/internal/params"
	"github.com/sqlboxdb/sqlbox/internal/registry"
	"github.com/sqlboxdb/sqlbox/internal/rows"
	"github.com/sqlboxdb/sqlbox/internal/wire"
)

func (s *Server) lookupStmtTarget(payload []byte) (uint32, int, int, []params.Cell, error) {
	r := &payloadReader{buf: payload}
	flags, err := r.u32()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	srcID, err := r.u32()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	stmtIdx, err := r.u32()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	cells, n := params.Unpack(r.rest())
	if n == 0 {
		return 0, 0, 0, nil, fmt.Errorf("server: malformed parameter vector")
	}
	return flags, srcID, int(stmtIdx), cells, nil
}

func (s *Server) lookupDBForStmt(srcID uint32, stmtIdx int) (*registry.DB, error) {
	db, ok := s.reg.LookupDB(srcID)
	if !ok {
		return nil, fmt.Errorf("server: no open database %d", srcID)
	}
	if stmtIdx < 0 || stmtIdx >= len(s.cfg.Statements) {
		return nil, fmt.Errorf("server: statement index %d out of range", stmtIdx)
	}
	if !s.roles.CanUseStmt(s.role, stmtIdx) {
		return nil, fmt.Errorf("server: role %d may not use statement %d", s.role, stmtIdx)
	}
	return db, nil
}

func (s *Server) handlePrepareBind(payload []byte, sync bool) ([]byte, error) {
	flags, srcID, stmtIdx, cells, err := s.lookupStmtTarget(payload)
	if err != nil {
		return nil, err
	}
	db, err := s.lookupDBForStmt(srcID, stmtIdx)
	if err != nil {
		return nil, err
	}
	f := opcode.Flag(flags)
	acceptConstraint := f.Has(opcode.FlagAcceptConstraint)
	multiRow := f.Has(opcode.FlagMultiRow)

	eng, err := db.Engine.Prepare(s.cfg.Statements[stmtIdx], acceptConstraint)
	if err != nil {
		s.logger.Error("prepare", "query", s.cfg.Statements[stmtIdx], "err", err)
		return nil, err
	}
	if err := eng.Bind(cellsToValues(cells)); err != nil {
		s.logger.Error("bind", "query", s.cfg.Statements[stmtIdx], "err", err)
		eng.Finalize()
		return nil, err
	}
	st := s.reg.AddStmt(db, stmtIdx, eng, acceptConstraint, multiRow)
	if sync {
		return u32le(st.ID), nil
	}
	return nil, nil
}

func (s *Server) handleExec(payload []byte, sync bool) ([]byte, error) {
	flags, srcID, stmtIdx, cells, err := s.lookupStmtTarget(payload)
	if err != nil {
		return nil, err
	}
	db, err := s.lookupDBForStmt(srcID, stmtIdx)
	if err != nil {
		return nil, err
	}
	acceptConstraint := opcode.Flag(flags).Has(opcode.FlagAcceptConstraint)
	query := s.cfg.Statements[stmtIdx]

	if len(cells) == 0 {
		code, err := db.Engine.Exec(query, acceptConstraint)
		if err != nil {
			s.logger.Error("exec", "query", query, "err", err)
			return nil, err
		}
		if sync {
			return u32le(uint32(code)), nil
		}
		return nil, nil
	}

	eng, err := db.Engine.Prepare(query, acceptConstraint)
	if err != nil {
		s.logger.Error("exec prepare", "query", query, "err", err)
		return nil, err
	}
	if err := eng.Bind(cellsToValues(cells)); err != nil {
		eng.Finalize()
		s.logger.Error("exec bind", "query", query, "err", err)
		return nil, err
	}
	var code opcode.Code
	warnedCols := false
	for {
		res, err := eng.Step()
		if err != nil {
			eng.Finalize()
			return nil, err
		}
		code = res.Code
		if len(res.Columns) > 0 && !warnedCols {
			s.logger.Warn("exec: produced columns ignored", "query", query)
			warnedCols = true
		}
		if res.Done {
			break
		}
	}
	if err := eng.Finalize(); err != nil {
		return nil, err
	}
	if sync {
		return u32le(uint32(code)), nil
	}
	return nil, nil
}

func (s *Server) handleRebind(payload []byte) error {
	r := &payloadReader{buf: payload}
	stmtID, err := r.u32()
	if err != nil {
		return err
	}
	cells, n := params.Unpack(r.rest())
	if n == 0 {
		return fmt.Errorf("server: rebind: malformed parameter vector")
	}
	st, ok := s.reg.LookupStmt(stmtID)
	if !ok {
		return fmt.Errorf("server: rebind: no statement %d", stmtID)
	}
	if err := st.Engine.Reset(); err != nil {
		st.Err = err
		s.logger.Warn("rebind reset", "stmt", st.ID, "err", err)
		return nil
	}
	if err := st.Engine.Bind(cellsToValues(cells)); err != nil {
		st.Err = err
		s.logger.Warn("rebind bind", "stmt", st.ID, "err", err)
		return nil
	}
	st.Err = nil
	st.State = registry.StateBound
	return nil
}

func (s *Server) handleFinal(payload []byte) error {
	r := &payloadReader{buf: payload}
	stmtID, err := r.u32()
	if err != nil {
		return err
	}
	st, ok := s.reg.LookupStmt(stmtID)
	if !ok {
		return fmt.Errorf("server: final: no statement %d", stmtID)
	}
	if err := st.Engine.Finalize(); err != nil {
		return err
	}
	s.reg.FinalizeStmt(st)
	return nil
}

func (s *Server) handleStep(payload []byte) ([]byte, error) {
	r := &payloadReader{buf: payload}
	stmtID, err := r.u32()
	if err != nil {
		return nil, err
	}
	st, ok := s.reg.LookupStmt(stmtID)
	if !ok {
		return nil, fmt.Errorf("server: step: no statement %d", stmtID)
	}
	if st.Err != nil {
		return nil, fmt.Errorf("server: step: statement %d in error state: %w", st.ID, st.Err)
	}
	if st.State == registry.StateDone {
		return nil, fmt.Errorf("server: step: statement %d already done; rebind required", st.ID)
	}

	var buf []byte
	for {
		rec, done, err := s.stepOnce(st)
		if err != nil {
			return nil, err
		}
		buf = rows.Append(buf, rec)
		if done {
			st.State = registry.StateDone
			break
		}
		st.State = registry.StateStepping
		if !st.MultiRow || len(buf) >= wire.Baseline*10 {
			break
		}
	}
	return buf, nil
}

// stepOnce runs one engine step, applying any configured result filters,
// and reports whether the statement has reached end-of-rows/constraint.
func (s *Server) stepOnce(st *registry.Statement) (rows.Record, bool, error) {
	res, err := st.Engine.Step()
	if err != nil {
		return rows.Record{}, false, err
	}
	if res.Done {
		return rows.Record{Code: res.Code}, true, nil
	}
	cells := make([]params.Cell, len(res.Row))
	for i, v := range res.Row {
		key := boxcfg.FilterKey{StmtIdx: st.StmtIdx, ColIdx: i, Direction: boxcfg.FilterResult}
		if fn, ok := s.cfg.Filters[key]; ok {
			c, err := fn(v)
			if err != nil {
				s.logger.Warn("result filter", "stmt_idx", st.StmtIdx, "col", i, "err", err)
				cells[i] = params.Null()
				continue
			}
			cells[i] = c
			continue
		}
		c, err := cellFromColumn(v)
		if err != nil {
			return rows.Record{}, false, err
		}
		cells[i] = c
	}
	return rows.Record{Code: res.Code, Cells: cells}, false, nil
}
