package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// SystemKey is the attribute rendered as the [SYSTEM] bracket.
const SystemKey = "system"

// MavenHandler is a slog.Handler that formats logs in Maven-style:
// [LEVEL] [SYSTEM] [HH:MM:SS] message key=value key=value
//
// Grouped attributes are flattened to group.key. Values containing spaces
// or quotes are quoted.
type MavenHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	system    string // e.g., "transfer", "recurring", "api"
	prefix    string // open groups, joined with "."
	preformat []byte // attrs from WithAttrs, already rendered
	colors    bool
	clock     bool
}

// MavenOptions configures a MavenHandler.
type MavenOptions struct {
	Level slog.Leveler
	// HideTime drops the [HH:MM:SS] bracket, for deterministic output.
	HideTime bool
	// Colors forces ANSI colors on or off. Nil detects a terminal.
	Colors *bool
}

// NewMavenHandler creates a new Maven-style handler
func NewMavenHandler(w io.Writer, opts *MavenOptions) *MavenHandler {
	if opts == nil {
		opts = &MavenOptions{}
	}
	h := &MavenHandler{
		w:      w,
		mu:     &sync.Mutex{},
		level:  opts.Level,
		colors: isTerminal(w),
		clock:  !opts.HideTime,
	}
	if h.level == nil {
		h.level = slog.LevelInfo
	}
	if opts.Colors != nil {
		h.colors = *opts.Colors
	}
	return h
}

// isTerminal checks if the writer is a terminal (for color output)
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Enabled reports whether the handler handles records at the given level.
func (h *MavenHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes a log record
func (h *MavenHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = h.bracket(buf, levelString(r.Level), levelColor(r.Level))
	system := h.system
	var attrs []byte
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == SystemKey && h.prefix == "" {
			system = a.Value.String()
			return true
		}
		attrs = appendAttr(attrs, h.prefix, a)
		return true
	})
	if system != "" {
		buf = append(buf, ' ')
		buf = h.bracket(buf, system, "")
	}
	if h.clock && !r.Time.IsZero() {
		buf = append(buf, ' ')
		buf = h.bracket(buf, r.Time.Format("15:04:05"), colorGray)
	}

	buf = append(buf, ' ')
	buf = append(buf, r.Message...)
	buf = append(buf, h.preformat...)
	buf = append(buf, attrs...)
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func (h *MavenHandler) bracket(buf []byte, text, color string) []byte {
	if h.colors && color != "" {
		buf = append(buf, color...)
	}
	buf = append(buf, '[')
	buf = append(buf, text...)
	buf = append(buf, ']')
	if h.colors && color != "" {
		buf = append(buf, colorReset...)
	}
	return buf
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			buf = appendAttr(buf, key, ga)
		}
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, key...)
	buf = append(buf, '=')
	return append(buf, formatValue(a.Value)...)
}

func formatValue(v slog.Value) string {
	s := v.String()
	if v.Kind() == slog.KindString && (s == "" || strings.ContainsAny(s, " \"=")) {
		return strconv.Quote(s)
	}
	return s
}

// WithAttrs returns a new handler with the given attributes added.
// A top-level "system" attribute becomes the [SYSTEM] bracket.
func (h *MavenHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.preformat = append([]byte(nil), h.preformat...)
	for _, a := range attrs {
		if a.Key == SystemKey && h.prefix == "" {
			clone.system = a.Value.String()
			continue
		}
		clone.preformat = appendAttr(clone.preformat, h.prefix, a)
	}
	return &clone
}

// WithGroup returns a new handler that prefixes later keys with name.
func (h *MavenHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix += "." + name
	}
	return &clone
}

// levelColor returns the ANSI color code for a log level (Maven-style)
func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorCyan
	default:
		return colorGray
	}
}

// levelString returns a short, uppercase string for the log level
func levelString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
