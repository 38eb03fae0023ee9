package bridge

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"

	"orion/internal/logger"
)

// SlogHandler adapts the bridge as an slog.Handler for libraries using the
// standard structured logger:
//
//	lg := slog.New(br.SlogHandler("httpsrv"))
//
// The name plays the role of the foreign logger's dotted namespace.
type SlogHandler struct {
	b     *Bridge
	name  string
	attrs []slog.Attr
}

func (b *Bridge) SlogHandler(name string) *SlogHandler {
	return &SlogHandler{b: b, name: name}
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return !h.b.silenced(h.name, levelFromSlog(level))
}

func (h *SlogHandler) Handle(ctx context.Context, r slog.Record) error {
	extra := map[string]any{}
	for _, a := range h.attrs {
		extra[a.Key] = a.Value.Any()
	}
	var traceback string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "stack" {
			traceback, _ = a.Value.Any().(string)
			return true
		}
		extra[a.Key] = a.Value.Any()
		return true
	})
	if len(extra) == 0 {
		extra = nil
	}

	// The calling flow's ambient bindings ride in on ctx and apply to this
	// record only; other flows' records keep their own attribution.
	h.b.emit(ctx, h.name, levelFromSlog(r.Level), r.Message, moduleFromPC(r.PC), traceback, extra)
	return nil
}

func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	all := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	all = append(all, h.attrs...)
	all = append(all, attrs...)
	return &SlogHandler{b: h.b, name: h.name, attrs: all}
}

// Groups are flattened away; the bridge record keeps plain keys.
func (h *SlogHandler) WithGroup(string) slog.Handler { return h }

// levelFromSlog maps by numeric threshold; slog has no CRITICAL, so
// anything a full step above ERROR counts as one.
func levelFromSlog(l slog.Level) logger.Level {
	switch {
	case l >= slog.LevelError+4:
		return logger.LevelCritical
	case l >= slog.LevelError:
		return logger.LevelError
	case l >= slog.LevelWarn:
		return logger.LevelWarn
	case l >= slog.LevelInfo:
		return logger.LevelInfo
	default:
		return logger.LevelDebug
	}
}

func moduleFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	fr, _ := frames.Next()
	if fr.File == "" {
		return ""
	}
	return filepath.Base(fr.File)
}
