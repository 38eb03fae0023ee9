// Package logctx carries the event/process bindings of a logical flow on a
// context.Context.
//
// A "flow" is one end-to-end operation (a handled connection, a scheduled
// job run, a startup phase). BeginEvent binds a correlation id plus a stage
// name to the flow's context; WithProcess rebinds only the stage name.
// Because the bindings are plain derived context values, goroutines spawned
// with the flow's context inherit them at spawn time, while rebinding in a
// child never leaks back to the parent or sideways to sibling flows.
package logctx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	eventIDKey ctxKey = iota
	processKey
)

// BeginEvent starts a logical chain: it binds process and either the given
// or a freshly generated correlation id to ctx. The id is returned so
// callers can hand it across boundaries ambient propagation does not cross
// (e.g. into a detached worker started with its own root context).
func BeginEvent(ctx context.Context, process, eventID string) (context.Context, string) {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	ctx = context.WithValue(ctx, eventIDKey, eventID)
	ctx = context.WithValue(ctx, processKey, process)
	return ctx, eventID
}

// WithProcess rebinds only the stage name; the correlation id is untouched.
func WithProcess(ctx context.Context, process string) context.Context {
	return context.WithValue(ctx, processKey, process)
}

// EventID reports the correlation id bound to ctx, if any.
func EventID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(eventIDKey).(string)
	return v, ok && v != ""
}

// Process reports the stage name bound to ctx, if any.
func Process(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(processKey).(string)
	return v, ok && v != ""
}
