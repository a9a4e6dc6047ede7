// Package wire implements the length-prefixed frame transport used between
// the sqlbox client and its privilege-separated server: a blocking
// full-read/full-write primitive plus baseline-padded frame assembly.
//
// Unlike the C original (spec §4.A), the non-blocking-socket-plus-poll-loop
// machinery is not reimplemented by hand: wrapping the socketpair file
// descriptor in a net.Conn (via os.NewFile/net.FileConn) already gets the
// same property — a goroutine-blocking call that never blocks an OS thread
// — from the Go runtime's netpoller, which is the idiomatic Go rendition of
// "non-blocking and polled."
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sqlboxdb/sqlbox/internal/opcode"
)

// Baseline is the minimum wire unit: every frame occupies at least this many
// bytes on the wire.
const Baseline = 1024

// headerSize is the 4-byte little-endian length word plus the 4-byte opcode.
const headerSize = 8

// Frame is one decoded request or reply.
type Frame struct {
	Op      opcode.Op
	Payload []byte
}

// ReadFull reads exactly len(buf) bytes, translating a zero-byte clean EOF
// into io.EOF and any other short read into an error (spec §4.A: "fail on
// HUP/ERR/NVAL" becomes, at the net.Conn level, any non-nil Read error).
func ReadFull(r io.Reader, buf []byte) error {
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("wire: short read after %d of %d bytes: %w", n, len(buf), io.ErrUnexpectedEOF)
		}
		return err
	}
	return nil
}

// ReadFrame reads one frame. It returns io.EOF only on a clean end of
// stream with no bytes consumed; any other error is fatal to the caller's
// loop.
func ReadFrame(r io.Reader) (Frame, error) {
	hdr := make([]byte, Baseline)
	n, err := io.ReadFull(r, hdr[:4])
	if err != nil {
		if err == io.EOF && n == 0 {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("wire: read length word: %w", err)
	}
	length := binary.LittleEndian.Uint32(hdr[:4])
	if length < 4 {
		return Frame{}, fmt.Errorf("wire: malformed frame: length %d shorter than opcode", length)
	}

	total := int(length) + 4 // length word itself plus the bytes it counts
	if total < Baseline {
		if err := ReadFull(r, hdr[4:Baseline]); err != nil {
			return Frame{}, fmt.Errorf("wire: read baseline body: %w", err)
		}
	} else {
		buf := make([]byte, total)
		copy(buf, hdr[:4])
		if err := ReadFull(r, buf[4:]); err != nil {
			return Frame{}, fmt.Errorf("wire: read grown body: %w", err)
		}
		hdr = buf
	}

	op := opcode.Op(binary.LittleEndian.Uint32(hdr[4:8]))
	payload := make([]byte, length-4)
	copy(payload, hdr[8:8+int(length-4)])
	return Frame{Op: op, Payload: payload}, nil
}

// WriteFrame writes one frame, zero-padding up to Baseline when the opcode
// plus payload is smaller than the baseline.
func WriteFrame(w io.Writer, op opcode.Op, payload []byte) error {
	length := uint32(4 + len(payload)) // opcode + payload, excludes itself
	total := int(length) + 4
	size := total
	if size < Baseline {
		size = Baseline
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], length)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(op))
	copy(buf[8:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("wire: write frame %s: %w", op, err)
	}
	return nil
}
