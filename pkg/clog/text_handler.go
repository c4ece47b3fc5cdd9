package clog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type TextHandlerConfig struct {
	Color bool
	Level *slog.Level
}

type TextHandlerOption func(*TextHandlerConfig)

func WithColor(c bool) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Color = c
	}
}

func WithLevel(level slog.Level) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Level = &level
	}
}

// TextHandler is a human oriented slog handler for local development. A few
// well-known request attributes are printed as leading columns and the rest
// are listed one per line below the message.
type TextHandler struct {
	cfg     TextHandlerConfig
	columns []string
	quote   bool
	groups  []string
	attrs   []slog.Attr

	mu *sync.Mutex
	w  io.Writer
}

// NewConnectTextHandler prints RPC logs as `method stream_type procedure "[code] msg"`.
func NewConnectTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	return newTextHandler(w, []string{"method", "stream_type", "procedure"}, true, opts)
}

// NewHTTPTextHandler prints REST and CLI logs as `proto method path status msg`.
func NewHTTPTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	return newTextHandler(w, []string{"proto", "method", "path", "status"}, false, opts)
}

func newTextHandler(w io.Writer, columns []string, quote bool, opts []TextHandlerOption) *TextHandler {
	cfg := TextHandlerConfig{
		Color: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TextHandler{
		cfg:     cfg,
		columns: columns,
		quote:   quote,
		mu:      &sync.Mutex{},
		w:       w,
	}
}

func (h *TextHandler) clone() *TextHandler {
	nh := *h
	nh.groups = append([]string(nil), h.groups...)
	nh.attrs = append([]slog.Attr(nil), h.attrs...)
	return &nh
}

func (h *TextHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.cfg.Level != nil {
		minLevel = *h.cfg.Level
	}
	return l >= minLevel
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	return nh
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, h.qualify(a))
	}
	return nh
}

func (h *TextHandler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	a.Key = strings.Join(h.groups, ".") + "." + a.Key
	return a
}

func (h *TextHandler) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if h.cfg.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (h *TextHandler) Handle(_ context.Context, record slog.Record) error {
	buf := bytes.NewBuffer(make([]byte, 0, 1024))

	if _, err := h.paint().Fprintf(buf, "%s ", record.Time.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("can't write time: %w", err)
	}
	if _, err := h.paint(levelColor(record.Level)).Fprintf(buf, "%s ", record.Level); err != nil {
		return fmt.Errorf("can't write level: %w", err)
	}

	kv := map[string]slog.Value{}
	for _, attr := range h.attrs {
		kv[attr.Key] = attr.Value
	}
	record.Attrs(func(attr slog.Attr) bool {
		attr = h.qualify(attr)
		kv[attr.Key] = attr.Value
		return true
	})

	plain := h.paint()
	for _, key := range h.columns {
		if v, ok := kv[key]; ok {
			if _, err := plain.Fprintf(buf, "%s ", v); err != nil {
				return fmt.Errorf("can't write %s: %w", key, err)
			}
			delete(kv, key)
		}
	}

	msg := record.Message
	if h.quote {
		if v, ok := kv["code"]; ok {
			delete(kv, "code")
			msg = fmt.Sprintf("[%s] %s", v, msg)
		}
		msg = `"` + msg + `"`
	}
	if _, err := h.paint(color.FgGreen).Fprint(buf, msg); err != nil {
		return fmt.Errorf("can't write message: %w", err)
	}
	if e, ok := kv[ErrorAttributeKey]; ok {
		delete(kv, ErrorAttributeKey)
		if _, err := h.paint(color.FgRed).Fprintf(buf, " %q", e.String()); err != nil {
			return fmt.Errorf("can't write err: %w", err)
		}
	}
	buf.WriteByte('\n')

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := plain.Fprintf(buf, "    %s=%s\n", k, kv[k]); err != nil {
			return fmt.Errorf("can't write %s: %w", k, err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func levelColor(l slog.Level) color.Attribute {
	switch {
	case l >= slog.LevelError:
		return color.FgRed
	case l >= slog.LevelWarn:
		return color.FgYellow
	case l >= slog.LevelInfo:
		return color.FgBlue
	default:
		return color.FgCyan
	}
}
