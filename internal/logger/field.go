package logger

// Field mutates the draft of a record before it is resolved.
//
// Fields are applied in order: facade defaults first, then per-call fields,
// so an explicit per-call value always wins over a facade default, which in
// turn wins over auto-detection.
type Field func(e *entry)

type entry struct {
	module    string
	source    string
	eventID   string
	traceback string
	context   any
}

// Module overrides the emitting code unit. Without it the module is derived
// from the call site.
func Module(name string) Field { return func(e *entry) { e.module = name } }

// Source overrides the logical origin tag, e.g. for records relayed on
// behalf of a foreign library.
func Source(name string) Field { return func(e *entry) { e.source = name } }

// EventID overrides the ambient correlation id for this call only.
func EventID(id string) Field { return func(e *entry) { e.eventID = id } }

// Traceback attaches a formatted failure trace.
func Traceback(tb string) Field { return func(e *entry) { e.traceback = tb } }

// Context attaches a structured payload; it is serialized to text for
// storage.
func Context(v any) Field { return func(e *entry) { e.context = v } }
