package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"orion/internal/logctx"
	"orion/internal/logdb"
)

// Options configures the core. Zero values fall back to sensible defaults
// (source "orion", version "dev", level INFO, color auto).
type Options struct {
	Source  string
	Version string
	Level   string // console threshold: CRITICAL..DEBUG
	Color   string // "auto", "on", "off"

	// Writer persists records; typically *logdb.Store. Nil means
	// console-only operation (used by tests and early bootstrap).
	Writer Writer

	// Console and Diag default to stdout and stderr.
	Console io.Writer
	Diag    io.Writer
}

// Core holds the shared logger state. All facades reference one Core; it
// lives for the process lifetime.
type Core struct {
	source  string
	version string

	mu        sync.RWMutex
	threshold Level
	color     bool

	console io.Writer
	pipe    *pipeline

	mirrorMu sync.RWMutex
	mirror   *Mirror
}

func newCore(opts Options) *Core {
	if opts.Source == "" {
		opts.Source = "orion"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Diag == nil {
		opts.Diag = os.Stderr
	}
	return &Core{
		source:    opts.Source,
		version:   opts.Version,
		threshold: ParseLevel(opts.Level),
		color:     resolveColor(opts.Color, stdoutIsTTY),
		console:   opts.Console,
		pipe:      newPipeline(opts.Writer, opts.Diag),
	}
}

// Start launches the background writer. Records logged before Start are
// written synchronously, so nothing is lost either way.
func (c *Core) Start() { c.pipe.Start() }

// Stop drains the pipeline best-effort. The core itself stays usable;
// later records fall back to synchronous writes.
func (c *Core) Stop(ctx context.Context) { c.pipe.Stop(ctx) }

// Apply retunes the console threshold and color policy at runtime.
func (c *Core) Apply(level, color string) {
	c.mu.Lock()
	c.threshold = ParseLevel(level)
	c.color = resolveColor(color, stdoutIsTTY)
	c.mu.Unlock()
}

// SetMirror attaches (or detaches, with nil) the high-severity mirror sink.
func (c *Core) SetMirror(m *Mirror) {
	c.mirrorMu.Lock()
	c.mirror = m
	c.mirrorMu.Unlock()
}

// Facade returns a call-site handle. Only Module and Source fields are
// meaningful as facade defaults.
func (c *Core) Facade(fields ...Field) Facade {
	var e entry
	for _, f := range fields {
		f(&e)
	}
	return Facade{core: c, module: e.module, source: e.source}
}

// log resolves the record fields and dispatches to console, mirror and
// pipeline. The caller frame for module auto-detection sits four frames up:
// runtime.Caller < callerModule < log < emit < facade method < call site.
const emitCallerSkip = 4

func (c *Core) log(ctx context.Context, level Level, msg string, e *entry) {
	// A log call must never crash the caller, nil ctx included.
	if ctx == nil {
		ctx = context.Background()
	}
	if e.module == "" {
		e.module = callerModule(emitCallerSkip)
	}
	if e.source == "" {
		e.source = c.source
	}

	rec := logdb.Record{
		Timestamp: time.Now().UTC().UnixMilli(),
		Level:     level.String(),
		Source:    e.source,
		Module:    e.module,
		Version:   c.version,
		Message:   msg,
		Traceback: e.traceback,
		Context:   e.context,
	}
	if p, ok := logctx.Process(ctx); ok {
		rec.Process = p
	}
	if e.eventID != "" {
		rec.EventRunID = e.eventID
	} else if id, ok := logctx.EventID(ctx); ok {
		rec.EventRunID = id
	}

	c.mu.RLock()
	show := level <= c.threshold
	color := c.color
	c.mu.RUnlock()

	var line string
	if show || c.hasMirror() {
		line = renderLine(rec)
	}
	if show {
		writeConsole(c.console, level, line, color)
	}
	c.publishMirror(level, line)

	// Storage keeps full history regardless of console gating.
	c.pipe.Enqueue(rec)
}

func (c *Core) hasMirror() bool {
	c.mirrorMu.RLock()
	defer c.mirrorMu.RUnlock()
	return c.mirror != nil
}

func (c *Core) publishMirror(level Level, line string) {
	c.mirrorMu.RLock()
	m := c.mirror
	c.mirrorMu.RUnlock()
	if m != nil && line != "" {
		m.publish(level, line)
	}
}

func callerModule(skip int) string {
	_, file, _, ok := runtime.Caller(skip)
	if !ok || file == "" {
		return "unknown"
	}
	return filepath.Base(file)
}

func stackTrace(skip, maxFrames int) string {
	if maxFrames <= 0 {
		maxFrames = 16
	}
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	i := 0
	for {
		fr, more := frames.Next()
		if fr.File != "" {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fr.Function)
			b.WriteString("\n  ")
			b.WriteString(fr.File)
			b.WriteString(":")
			b.WriteString(strconv.Itoa(fr.Line))
			i++
		}
		if !more || i >= maxFrames {
			break
		}
	}
	return b.String()
}

// ---- Facade ----

// Facade is a per-call-site handle over the shared core.
type Facade struct {
	core   *Core
	module string
	source string
}

func (f Facade) Debug(ctx context.Context, msg string, fields ...Field) {
	f.emit(ctx, LevelDebug, msg, "", fields)
}

func (f Facade) Info(ctx context.Context, msg string, fields ...Field) {
	f.emit(ctx, LevelInfo, msg, "", fields)
}

func (f Facade) Warn(ctx context.Context, msg string, fields ...Field) {
	f.emit(ctx, LevelWarn, msg, "", fields)
}

func (f Facade) Error(ctx context.Context, msg string, fields ...Field) {
	f.emit(ctx, LevelError, msg, "", fields)
}

func (f Facade) Critical(ctx context.Context, msg string, fields ...Field) {
	f.emit(ctx, LevelCritical, msg, "", fields)
}

// Exception appends the error text to the message, attaches a formatted
// trace of the current call stack, and logs at ERROR.
func (f Facade) Exception(ctx context.Context, msg string, err error, fields ...Field) {
	if err != nil {
		msg = msg + "\n→ " + err.Error()
	}
	f.emit(ctx, LevelError, msg, stackTrace(3, 32), fields)
}

func (f Facade) emit(ctx context.Context, level Level, msg, tb string, fields []Field) {
	e := entry{module: f.module, source: f.source, traceback: tb}
	for _, fn := range fields {
		fn(&e)
	}
	f.core.log(ctx, level, msg, &e)
}

// ---- Singleton ----

var (
	globalMu sync.Mutex
	global   *Core
)

// Init creates the process-wide core. The first call wins; later calls
// return the existing core unchanged, matching the once-at-startup
// contract.
func Init(opts Options) *Core {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = newCore(opts)
	}
	return global
}

// Initialized reports whether Init has run.
func Initialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global != nil
}

// Get returns a facade over the singleton. Calling it before Init is a
// wiring bug and panics.
func Get(fields ...Field) Facade {
	globalMu.Lock()
	core := global
	globalMu.Unlock()
	if core == nil {
		panic("logger: not initialized; call logger.Init at service start")
	}
	return core.Facade(fields...)
}
