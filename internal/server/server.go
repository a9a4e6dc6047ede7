// Package server implements the child process's side of the protocol
// (spec §4.G/§4.H/§4.I): one dispatch loop, reading frames off the
// transport handed to it by the caller and driving the engine, registry,
// and RBAC table in response.
//
// Every handler failure is treated uniformly: the loop logs it, sweeps
// live statements and databases, and returns the error to its caller
// (who exits the child process). Spec §7 separates "domain error" from
// "engine error" by rationale, not by wire behavior — there is no
// in-band error code on most replies, so in both cases the only way the
// failure reaches the client is the connection closing on its next
// synchronous call (spec §5, "the next synchronous call ... exposes any
// accumulated failure").
package server

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/sqlboxdb/sqlbox/internal/boxcfg"
	"github.com/sqlboxdb/sqlbox/internal/diag"
	"github.com/sqlboxdb/sqlbox/internal/opcode"
	"github.com/sqlboxdb/sqlbox/internal/rbac"
	"github.com/sqlboxdb/sqlbox/internal/registry"
	"github.com/sqlboxdb/sqlbox/internal/wire"
)

// Server holds one child process's RPC-facing state: the live registry,
// the compiled role table, and the role currently in effect.
type Server struct {
	cfg    *boxcfg.Config
	reg    *registry.Registry
	roles  rbac.Table
	role   int
	logger *slog.Logger
}

// New returns a Server ready to run cfg's dispatch loop. cfg must already
// have passed Validate.
func New(cfg *boxcfg.Config) *Server {
	return &Server{
		cfg:    cfg,
		reg:    registry.New(),
		roles:  cfg.Roles,
		role:   cfg.DefaultRole,
		logger: diag.NewLogger(cfg.MessageSink),
	}
}

// Run drives rw until EOF or the first fatal error, per spec §4.G. It
// calls cfg.DropPrivileges exactly once, before reading the first frame.
func (s *Server) Run(rw io.ReadWriter) error {
	if s.cfg.DropPrivileges != nil {
		if err := s.cfg.DropPrivileges(); err != nil {
			return fmt.Errorf("server: drop privileges: %w", err)
		}
	}
	for {
		frame, err := wire.ReadFrame(rw)
		if err != nil {
			if err == io.EOF {
				s.shutdown()
				return nil
			}
			s.logger.Error("frame read", "err", err)
			s.shutdown()
			return err
		}
		reply, err := s.dispatch(frame.Op, frame.Payload)
		if err != nil {
			s.logger.Error("handler failed", "op", frame.Op, "err", err)
			s.shutdown()
			return err
		}
		if frame.Op.Sync() {
			if err := wire.WriteFrame(rw, frame.Op, reply); err != nil {
				s.shutdown()
				return err
			}
		}
	}
}

func (s *Server) shutdown() {
	s.reg.Shutdown(func(db *registry.DB, st *registry.Statement) {
		s.logger.Warn("shutdown: finalizing live statement", "db", db.ID, "stmt", st.ID)
	})
}

func (s *Server) dispatch(op opcode.Op, payload []byte) ([]byte, error) {
	switch op {
	case opcode.Close:
		return nil, s.handleClose(payload)
	case opcode.OpenAsync, opcode.OpenSync:
		return s.handleOpen(payload)
	case opcode.Ping:
		return s.handlePing(payload)
	case opcode.PrepareBindAsync:
		_, err := s.handlePrepareBind(payload, false)
		return nil, err
	case opcode.PrepareBindSync:
		return s.handlePrepareBind(payload, true)
	case opcode.ExecAsync:
		_, err := s.handleExec(payload, false)
		return nil, err
	case opcode.ExecSync:
		return s.handleExec(payload, true)
	case opcode.Rebind:
		return nil, s.handleRebind(payload)
	case opcode.Step:
		return s.handleStep(payload)
	case opcode.Final:
		return nil, s.handleFinal(payload)
	case opcode.LastID:
		return s.handleLastID(payload)
	case opcode.Role:
		return nil, s.handleRole(payload)
	case opcode.TransOpen, opcode.TransClose:
		return nil, s.handleTrans(op, payload)
	case opcode.MsgSetDat:
		return nil, s.handleMsgSetDat(payload)
	default:
		return nil, fmt.Errorf("server: unknown opcode %d", op)
	}
}
