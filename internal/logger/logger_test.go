package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"orion/internal/logctx"
	"orion/internal/logdb"
)

// fakeWriter records appends and can be told to fail a number of times.
type fakeWriter struct {
	mu       sync.Mutex
	recs     []logdb.Record
	failures int
	wrote    chan struct{}
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{wrote: make(chan struct{}, 128)}
}

func (w *fakeWriter) Append(_ context.Context, r logdb.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer func() { w.wrote <- struct{}{} }()
	if w.failures > 0 {
		w.failures--
		return errors.New("writer down")
	}
	w.recs = append(w.recs, r)
	return nil
}

func (w *fakeWriter) records() []logdb.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]logdb.Record(nil), w.recs...)
}

func (w *fakeWriter) waitWrites(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-w.wrote:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for write %d of %d", i+1, n)
		}
	}
}

func testCore(t *testing.T, level string, w Writer) (*Core, *bytes.Buffer) {
	t.Helper()
	var console bytes.Buffer
	c := newCore(Options{
		Source:  "orion",
		Version: "test",
		Level:   level,
		Color:   "off",
		Writer:  w,
		Console: &console,
		Diag:    io.Discard,
	})
	return c, &console
}

func TestConsoleGatingDoesNotGateStorage(t *testing.T) {
	w := newFakeWriter()
	c, console := testCore(t, "WARN", w)
	f := c.Facade()
	ctx := context.Background()

	// Pipeline not started: writes are synchronous, which keeps this
	// deterministic and also covers the pre-startup fallback path.
	f.Debug(ctx, "too quiet")
	f.Info(ctx, "still quiet")
	f.Warn(ctx, "warned")
	f.Critical(ctx, "burning")

	out := console.String()
	if strings.Contains(out, "too quiet") || strings.Contains(out, "still quiet") {
		t.Fatalf("below-threshold lines reached the console:\n%s", out)
	}
	if !strings.Contains(out, "warned") || !strings.Contains(out, "burning") {
		t.Fatalf("at-or-above-threshold lines missing:\n%s", out)
	}

	recs := w.records()
	if len(recs) != 4 {
		t.Fatalf("storage got %d records, want all 4", len(recs))
	}
}

func TestModuleAutoDetection(t *testing.T) {
	w := newFakeWriter()
	c, _ := testCore(t, "DEBUG", w)

	c.Facade().Info(context.Background(), "where am I")

	recs := w.records()
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].Module != "logger_test.go" {
		t.Fatalf("auto-detected module = %q, want logger_test.go", recs[0].Module)
	}
}

func TestFieldPrecedence(t *testing.T) {
	w := newFakeWriter()
	c, _ := testCore(t, "DEBUG", w)
	ctx := context.Background()

	f := c.Facade(Module("facade.go"), Source("libfoo"))
	f.Info(ctx, "facade defaults")
	f.Info(ctx, "per-call wins", Module("call.go"), Source("libbar"))

	recs := w.records()
	if recs[0].Module != "facade.go" || recs[0].Source != "libfoo" {
		t.Fatalf("facade defaults not applied: %+v", recs[0])
	}
	if recs[1].Module != "call.go" || recs[1].Source != "libbar" {
		t.Fatalf("per-call fields did not win: %+v", recs[1])
	}
}

func TestAmbientContextResolution(t *testing.T) {
	w := newFakeWriter()
	c, _ := testCore(t, "DEBUG", w)

	ctx, id := logctx.BeginEvent(context.Background(), "bootstrap", "")
	f := c.Facade()
	f.Info(ctx, "ambient")
	f.Info(ctx, "explicit", EventID("other-run"))
	f.Info(logctx.WithProcess(ctx, "poller"), "restaged")

	recs := w.records()
	if recs[0].Process != "bootstrap" || recs[0].EventRunID != id {
		t.Fatalf("ambient bindings not picked up: %+v", recs[0])
	}
	if recs[1].EventRunID != "other-run" {
		t.Fatalf("explicit event id did not override: %+v", recs[1])
	}
	if recs[2].Process != "poller" || recs[2].EventRunID != id {
		t.Fatalf("process rebinding broke the chain: %+v", recs[2])
	}
}

func TestExceptionAppendsErrorAndTrace(t *testing.T) {
	w := newFakeWriter()
	c, _ := testCore(t, "DEBUG", w)

	c.Facade().Exception(context.Background(), "load failed", errors.New("boom"))

	recs := w.records()
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	r := recs[0]
	if r.Level != "ERROR" {
		t.Fatalf("Exception logged at %s, want ERROR", r.Level)
	}
	if !strings.Contains(r.Message, "load failed") || !strings.Contains(r.Message, "→ boom") {
		t.Fatalf("message = %q", r.Message)
	}
	if !strings.Contains(r.Traceback, "logger_test.go") {
		t.Fatalf("traceback does not reach the call site:\n%s", r.Traceback)
	}
}

func TestRecordCarriesSourceVersionTimestamp(t *testing.T) {
	w := newFakeWriter()
	c, _ := testCore(t, "DEBUG", w)

	before := time.Now().UTC().UnixMilli()
	c.Facade().Info(context.Background(), "stamped")
	after := time.Now().UTC().UnixMilli()

	r := w.records()[0]
	if r.Source != "orion" || r.Version != "test" {
		t.Fatalf("source/version = %q/%q", r.Source, r.Version)
	}
	if r.Timestamp < before || r.Timestamp > after {
		t.Fatalf("timestamp %d outside [%d, %d]", r.Timestamp, before, after)
	}
}

func TestApplyRetunesThreshold(t *testing.T) {
	w := newFakeWriter()
	c, console := testCore(t, "ERROR", w)
	ctx := context.Background()

	c.Facade().Info(ctx, "muted")
	c.Apply("DEBUG", "off")
	c.Facade().Info(ctx, "audible")

	out := console.String()
	if strings.Contains(out, "muted") {
		t.Fatalf("line leaked before Apply:\n%s", out)
	}
	if !strings.Contains(out, "audible") {
		t.Fatalf("line missing after Apply:\n%s", out)
	}
}

func TestNilContextDoesNotPanic(t *testing.T) {
	w := newFakeWriter()
	c, _ := testCore(t, "DEBUG", w)

	c.Facade().Info(nil, "careless caller")

	recs := w.records()
	if len(recs) != 1 || recs[0].Message != "careless caller" {
		t.Fatalf("record with nil ctx not persisted: %+v", recs)
	}
	if recs[0].Process != "" || recs[0].EventRunID != "" {
		t.Fatalf("nil ctx invented ambient bindings: %+v", recs[0])
	}
}

func TestGetBeforeInitPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Get before Init did not panic")
		}
	}()
	// The test binary never calls Init, so the singleton is unset here.
	Get()
}
