// Package sqlbox is a privilege-separated SQLite RPC engine: the caller's
// process (the parent) never touches the database file directly. Alloc
// re-execs the running binary into a dedicated child process that owns
// the engine and serves requests over a socketpair (spec §0/§1/§5).
package sqlbox

import (
	"fmt"
	"net"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/sqlboxdb/sqlbox/internal/opcode"
	"github.com/sqlboxdb/sqlbox/internal/server"
	"github.com/sqlboxdb/sqlbox/internal/wire"
)

// childEnvVar is the re-exec sentinel: its presence in the environment,
// not its value, tells Alloc it is running inside the child image.
const childEnvVar = "SQLBOX_CHILD"

// Sqlbox is the parent-side handle returned by Alloc. A method that
// issues a synchronous opcode blocks until its reply arrives (spec §5:
// "the parent is synchronous per statement"); one that issues an
// asynchronous opcode returns as soon as the request is written.
type Sqlbox struct {
	conn net.Conn
	cmd  *exec.Cmd
}

// Alloc validates cfg, then either returns a parent-side *Sqlbox (normal
// call) or never returns at all, having re-exec'd into the child role and
// run the dispatch loop to completion (spec §0).
//
// Call it unconditionally near the top of main(), before any other setup
// that isn't safe to run twice — the child re-runs the same main() up to
// this call.
func Alloc(cfg Config) (*Sqlbox, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sqlbox: %w", err)
	}
	if _, isChild := os.LookupEnv(childEnvVar); isChild {
		runChild(cfg)
		panic("sqlbox: dispatch loop returned without exiting")
	}
	return allocParent(cfg)
}

func allocParent(cfg Config) (*Sqlbox, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("sqlbox: socketpair: %w", err)
	}
	parentFile := os.NewFile(uintptr(fds[0]), "sqlbox-parent")
	childFile := os.NewFile(uintptr(fds[1]), "sqlbox-child")

	exe, err := os.Executable()
	if err != nil {
		parentFile.Close()
		childFile.Close()
		return nil, fmt.Errorf("sqlbox: locate executable: %w", err)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), childEnvVar+"=1")
	cmd.ExtraFiles = []*os.File{childFile}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		parentFile.Close()
		childFile.Close()
		return nil, fmt.Errorf("sqlbox: start child: %w", err)
	}
	childFile.Close()

	conn, err := net.FileConn(parentFile)
	parentFile.Close()
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("sqlbox: wrap parent socket: %w", err)
	}

	return &Sqlbox{conn: conn, cmd: cmd}, nil
}

// runChild wraps fd 3 (the child half of the socketpair, passed via
// ExtraFiles) in a net.Conn and runs the dispatch loop until EOF or a
// fatal error, then exits the process. It never returns.
func runChild(cfg Config) {
	f := os.NewFile(3, "sqlbox-child-socket")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqlbox: child: wrap socket: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	srv := server.New(&cfg)
	if err := srv.Run(conn); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}

// call issues a request and, for opcodes with a reply, waits for it.
func (sb *Sqlbox) call(op opcode.Op, payload []byte) ([]byte, error) {
	if err := wire.WriteFrame(sb.conn, op, payload); err != nil {
		return nil, fmt.Errorf("sqlbox: write %s: %w", op, err)
	}
	if !op.Sync() {
		return nil, nil
	}
	frame, err := wire.ReadFrame(sb.conn)
	if err != nil {
		return nil, fmt.Errorf("sqlbox: read %s reply: %w", op, err)
	}
	return frame.Payload, nil
}

// Close shuts down the transport. The child observes EOF, finalizes any
// live statements (with a warning each), closes any open databases, and
// exits.
func (sb *Sqlbox) Close() error {
	err := sb.conn.Close()
	if sb.cmd != nil {
		sb.cmd.Wait()
	}
	return err
}

// Ping round-trips nonce through the child and back (spec §6).
func (sb *Sqlbox) Ping(nonce uint32) (uint32, error) {
	reply, err := sb.call(opcode.Ping, u32le(nonce))
	if err != nil {
		return 0, err
	}
	return readU32(reply)
}

// SetMessageData replaces the child's logging context (spec §6,
// MSG-SET-DAT); subsequent diagnostics are tagged with it.
func (sb *Sqlbox) SetMessageData(data []byte) error {
	_, err := sb.call(opcode.MsgSetDat, data)
	return err
}

// Role transitions the child's active role (spec §4.D). A transition
// into the current role is a logged no-op.
func (sb *Sqlbox) Role(roleIdx int) error {
	_, err := sb.call(opcode.Role, u32le(uint32(roleIdx)))
	return err
}
