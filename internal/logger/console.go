package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"orion/internal/logdb"
)

// ANSI foreground color per level. ERROR and CRITICAL share red.
var levelColors = map[Level]int{
	LevelDebug:    34, // blue
	LevelInfo:     32, // green
	LevelWarn:     33, // yellow
	LevelError:    31, // red
	LevelCritical: 31, // red
}

const consoleTimeFormat = "[2006.01.02 15:04:05.000000]"

func renderLine(r logdb.Record) string {
	return fmt.Sprintf("[%s]\t%s (%s) %s", r.Level, r.Time().Format(consoleTimeFormat), r.Module, r.Message)
}

func writeConsole(w io.Writer, level Level, line string, color bool) {
	if color {
		code, ok := levelColors[level]
		if !ok {
			code = 37 // white
		}
		fmt.Fprintf(w, "\033[%dm%s\033[0m\n", code, line)
		return
	}
	fmt.Fprintln(w, line)
}

// resolveColor decides whether console output is colored.
//
// NO_COLOR always wins, FORCE_COLOR wins next, then the configured
// preference ("on"/"off"), and "auto" falls back to a TTY probe.
func resolveColor(pref string, tty func() bool) bool {
	if envFlag("NO_COLOR") {
		return false
	}
	if envFlag("FORCE_COLOR") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(pref)) {
	case "on", "true", "always":
		return true
	case "off", "false", "never":
		return false
	default:
		return tty()
	}
}

func stdoutIsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func envFlag(name string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on", "y":
		return true
	default:
		return false
	}
}
