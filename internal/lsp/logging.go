// ABOUTME: slog.Handler that forwards log records to the editor as window/logMessage.
// ABOUTME: Records are also mirrored to a text handler, normally stderr.
package lsp

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// LSP MessageType values for window/logMessage.
const (
	MessageTypeError   = 1
	MessageTypeWarning = 2
	MessageTypeInfo    = 3
	MessageTypeLog     = 4
)

// Notifier sends a notification to the editor.
type Notifier interface {
	Notify(method string, params any) error
}

type logMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

// LogHandler is a slog.Handler writing to the editor's log.
type LogHandler struct {
	notifier Notifier
	level    slog.Leveler
	mirror   slog.Handler
	attrs    []slog.Attr
	prefix   string
}

// NewLogHandler creates a LogHandler. mirror may be nil to skip the text copy.
func NewLogHandler(notifier Notifier, mirror io.Writer, level slog.Leveler) *LogHandler {
	h := &LogHandler{notifier: notifier, level: level}
	if mirror != nil {
		h.mirror = slog.NewTextHandler(mirror, &slog.HandlerOptions{Level: level})
	}
	return h
}

// Enabled reports whether records at level are handled.
func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends r to the editor and the mirror.
func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.mirror != nil {
		// Mirror failures must not keep the message from the editor.
		_ = h.mirror.Handle(ctx, r.Clone())
	}

	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})

	return h.notifier.Notify("window/logMessage", logMessageParams{
		Type:    messageType(r.Level),
		Message: b.String(),
	})
}

// WithAttrs returns a handler that includes attrs in every message.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		next.attrs = append(next.attrs, prefixed(h.prefix, a))
	}
	if h.mirror != nil {
		next.mirror = h.mirror.WithAttrs(attrs)
	}
	return next
}

// WithGroup returns a handler that qualifies later attribute keys with name.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = h.prefix + name + "."
	if h.mirror != nil {
		next.mirror = h.mirror.WithGroup(name)
	}
	return next
}

func (h *LogHandler) clone() *LogHandler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	return &next
}

func prefixed(prefix string, a slog.Attr) slog.Attr {
	if prefix == "" {
		return a
	}
	return slog.Attr{Key: prefix + a.Key, Value: a.Value}
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		next := prefix
		if a.Key != "" {
			next = prefix + a.Key + "."
		}
		for _, ga := range group {
			writeAttr(b, next, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}

func messageType(level slog.Level) int {
	switch {
	case level >= slog.LevelError:
		return MessageTypeError
	case level >= slog.LevelWarn:
		return MessageTypeWarning
	case level >= slog.LevelInfo:
		return MessageTypeInfo
	default:
		return MessageTypeLog
	}
}
