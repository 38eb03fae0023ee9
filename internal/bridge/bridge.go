// Package bridge relays records from foreign structured-logging ecosystems
// (zerolog, slog) into the orion logging core.
//
// Foreign severities map onto the five orion levels by numeric threshold.
// The source tag defaults to the namespace root of the foreign logger name
// ("telebot.poller" → "telebot"); records arriving with no ambient process
// get a configurable default so they are never left unattributed. Noisy
// loggers can be silenced per name. If the logging core is not initialized
// yet, the bridge prints the record directly instead of panicking, so
// early-startup logging is never lost.
package bridge

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"orion/internal/logctx"
	"orion/internal/logger"
)

type Config struct {
	// DefaultProcess is bound when the ambient context carries no process.
	// Default "bootstrap".
	DefaultProcess string

	// FixedSource, when set, overrides namespace-root source derivation.
	FixedSource string

	// Silence maps a foreign logger name (exact, or namespace root) to the
	// least severe level still relayed. By default access-style loggers
	// are quieted to WARN.
	Silence map[string]string
}

func (c Config) withDefaults() Config {
	if c.DefaultProcess == "" {
		c.DefaultProcess = "bootstrap"
	}
	if c.Silence == nil {
		c.Silence = map[string]string{"http.access": "WARN"}
	}
	return c
}

type Bridge struct {
	cfg Config

	mu  sync.RWMutex
	ctx context.Context

	// fallback output for records arriving before logger.Init
	out io.Writer
}

func New(cfg Config) *Bridge {
	return &Bridge{cfg: cfg.withDefaults(), out: os.Stdout}
}

// BindContext adopts a flow's ambient bindings as the fallback for foreign
// records that arrive without a context of their own (the zerolog path).
func (b *Bridge) BindContext(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()
}

// resolveContext picks the ambient bindings for one record. A per-record
// context that carries flow bindings wins; anything else falls back to the
// bound context so the record is never attributed to an unrelated flow.
func (b *Bridge) resolveContext(ctx context.Context) context.Context {
	if ctx == nil || !hasBindings(ctx) {
		b.mu.RLock()
		ctx = b.ctx
		b.mu.RUnlock()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := logctx.Process(ctx); !ok {
		ctx = logctx.WithProcess(ctx, b.cfg.DefaultProcess)
	}
	return ctx
}

func hasBindings(ctx context.Context) bool {
	if _, ok := logctx.EventID(ctx); ok {
		return true
	}
	_, ok := logctx.Process(ctx)
	return ok
}

// silenced reports whether a record of the given level from the named
// logger should be dropped.
func (b *Bridge) silenced(name string, level logger.Level) bool {
	min, ok := b.cfg.Silence[name]
	if !ok {
		min, ok = b.cfg.Silence[namespaceRoot(name)]
	}
	if !ok {
		return false
	}
	return level > logger.ParseLevel(min)
}

func (b *Bridge) source(name string) string {
	if b.cfg.FixedSource != "" {
		return b.cfg.FixedSource
	}
	if root := namespaceRoot(name); root != "" {
		return root
	}
	return "ext"
}

func namespaceRoot(name string) string {
	name, _, _ = strings.Cut(name, ".")
	return name
}

// emit relays one foreign record through the facade, or prints it directly
// when the core is not up yet. ctx is the record's own context when the
// foreign ecosystem provides one, nil otherwise.
func (b *Bridge) emit(ctx context.Context, name string, level logger.Level, msg, module, traceback string, extra map[string]any) {
	if b.silenced(name, level) {
		return
	}
	src := b.source(name)
	if module == "" {
		module = "external"
	}

	if !logger.Initialized() {
		fmt.Fprintf(b.out, "[orion-log][%s] (%s|%s) %s\n", level, src, module, msg)
		if traceback != "" {
			fmt.Fprintln(b.out, traceback)
		}
		return
	}

	if extra == nil {
		extra = map[string]any{}
	}
	extra["logger"] = name

	fields := []logger.Field{
		logger.Source(src),
		logger.Module(module),
		logger.Context(extra),
	}
	if traceback != "" {
		fields = append(fields, logger.Traceback(traceback))
	}

	ctx = b.resolveContext(ctx)
	f := logger.Get()
	switch level {
	case logger.LevelCritical:
		f.Critical(ctx, msg, fields...)
	case logger.LevelError:
		f.Error(ctx, msg, fields...)
	case logger.LevelWarn:
		f.Warn(ctx, msg, fields...)
	case logger.LevelInfo:
		f.Info(ctx, msg, fields...)
	default:
		f.Debug(ctx, msg, fields...)
	}
}
