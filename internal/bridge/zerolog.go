package bridge

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"orion/internal/logger"
)

// ZerologWriter adapts the bridge as a zerolog sink:
//
//	zl := zerolog.New(br.ZerologWriter()).With().Timestamp().Logger()
//
// Wiring a library's zerolog output here (instead of to stdout) also keeps
// the foreign ecosystem from printing its own duplicate lines.
type ZerologWriter struct {
	b *Bridge
}

func (b *Bridge) ZerologWriter() *ZerologWriter { return &ZerologWriter{b: b} }

func (w *ZerologWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *ZerologWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	name, msg, module, traceback, extra := decodeZerologLine(p)
	// zerolog lines carry no context; the bound flow attributes them.
	w.b.emit(nil, name, levelFromZerolog(level), msg, module, traceback, extra)
	return len(p), nil
}

// levelFromZerolog maps by numeric threshold: fatal and above → CRITICAL,
// error → ERROR, and so on down to DEBUG.
func levelFromZerolog(l zerolog.Level) logger.Level {
	switch {
	case l >= zerolog.FatalLevel:
		return logger.LevelCritical
	case l >= zerolog.ErrorLevel:
		return logger.LevelError
	case l >= zerolog.WarnLevel:
		return logger.LevelWarn
	case l >= zerolog.InfoLevel:
		return logger.LevelInfo
	default:
		return logger.LevelDebug
	}
}

// decodeZerologLine best-effort decodes one zerolog JSON line. A non-JSON
// payload becomes the message verbatim.
func decodeZerologLine(p []byte) (name, msg, module, traceback string, extra map[string]any) {
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(p), &m); err != nil {
		return "", strings.TrimSpace(string(p)), "", "", nil
	}

	if v, ok := m["message"].(string); ok {
		msg = v
	} else if v, ok := m["msg"].(string); ok {
		msg = v
	}
	name, _ = m["logger"].(string)
	if caller, ok := m["caller"].(string); ok {
		// "file.go:123" → "file.go"
		module, _, _ = strings.Cut(caller, ":")
	}
	if v, ok := m["stack"].(string); ok {
		traceback = v
	}

	extra = map[string]any{}
	for k, v := range m {
		switch k {
		case "time", "level", "message", "msg", "logger", "caller", "stack":
			continue
		}
		extra[k] = v
	}
	if len(extra) == 0 {
		extra = nil
	}
	return name, msg, module, traceback, extra
}
