// Package diag adapts the single formatted-string callback spec §6's
// Config.MessageSink describes into an slog.Handler, so the rest of the
// server can log with ordinary structured slog call sites (the ambient
// style every package in this tree uses) while the caller still only ever
// sees flat lines.
package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// sinkHandler formats each record as "LEVEL msg key=val key=val ..." and
// hands the line to sink.
type sinkHandler struct {
	sink  func(string)
	attrs []slog.Attr
}

func (h *sinkHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *sinkHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	h.sink(b.String())
	return nil
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &sinkHandler{sink: h.sink, attrs: merged}
}

// WithGroup is unsupported: the sink's output is a single flat line, and
// no call site in this tree nests slog groups.
func (h *sinkHandler) WithGroup(string) slog.Handler { return h }

// NewLogger returns an slog.Logger that formats through sink. A nil sink
// discards everything, matching spec §6's "or nil" default.
func NewLogger(sink func(string)) *slog.Logger {
	if sink == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(&sinkHandler{sink: sink})
}
