package server

import (
	"fmt"

	"github.com/sqlboxdb/sqlbox/internal/diag"
	"github.com/sqlboxdb/sqlbox/internal/engine"
)

func (s *Server) handleClose(payload []byte) error {
	r := &payloadReader{buf: payload}
	id, err := r.u32()
	if err != nil {
		return err
	}
	db, ok := s.reg.LookupDB(id)
	if !ok {
		return fmt.Errorf("server: close: no open database %d", id)
	}
	if !s.roles.CanUseSource(s.role, db.SourceIdx) {
		return fmt.Errorf("server: close: role %d may not use source %d", s.role, db.SourceIdx)
	}
	if err := s.reg.CloseDB(db); err != nil {
		s.logger.Warn("close", "err", err)
		return err
	}
	return db.Engine.Close()
}

func (s *Server) handleOpen(payload []byte) ([]byte, error) {
	r := &payloadReader{buf: payload}
	idx, err := r.u32()
	if err != nil {
		return nil, err
	}
	srcIdx := int(idx)
	if srcIdx < 0 || srcIdx >= len(s.cfg.Sources) {
		return nil, fmt.Errorf("server: open: source index %d out of range", srcIdx)
	}
	if !s.roles.CanUseSource(s.role, srcIdx) {
		return nil, fmt.Errorf("server: open: role %d may not use source %d", s.role, srcIdx)
	}
	src := s.cfg.Sources[srcIdx]
	eng, err := engine.Open(src.Filename, src.Mode)
	if err != nil {
		s.logger.Error("open", "file", src.Filename, "err", err)
		return nil, err
	}
	db := s.reg.OpenDB(srcIdx, eng)
	return u32le(db.ID), nil
}

func (s *Server) handlePing(payload []byte) ([]byte, error) {
	echo := make([]byte, len(payload))
	copy(echo, payload)
	return echo, nil
}

func (s *Server) handleLastID(payload []byte) ([]byte, error) {
	r := &payloadReader{buf: payload}
	id, err := r.u32()
	if err != nil {
		return nil, err
	}
	db, ok := s.reg.LookupDB(id)
	if !ok {
		return nil, fmt.Errorf("server: lastid: no open database %d", id)
	}
	return i64le(db.Engine.LastInsertID()), nil
}

func (s *Server) handleRole(payload []byte) error {
	r := &payloadReader{buf: payload}
	idx, err := r.u32()
	if err != nil {
		return err
	}
	target := int(idx)
	if !s.roles.CanTransitionRole(s.role, target) {
		return fmt.Errorf("server: role: %d may not transition to %d", s.role, target)
	}
	if target == s.role {
		s.logger.Info("role: no-op transition", "role", target)
		return nil
	}
	s.role = target
	return nil
}

func (s *Server) handleMsgSetDat(payload []byte) error {
	s.logger = diag.NewLogger(s.cfg.MessageSink).With("ctx", string(payload))
	return nil
}
