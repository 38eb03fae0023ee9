package logger

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"orion/internal/logdb"
)

// Writer persists one record. *logdb.Store satisfies it.
type Writer interface {
	Append(ctx context.Context, r logdb.Record) error
}

const writeTimeout = 5 * time.Second

// pipeline decouples log call sites from storage writes.
//
// The queue is an unbounded FIFO: Enqueue never blocks and never rejects.
// Exactly one consumer goroutine dequeues records one at a time and calls
// the writer; a failed write is reported on the diagnostic writer and the
// loop moves on. While no consumer is running, Enqueue degrades to a
// synchronous best-effort write so early records are not lost.
type pipeline struct {
	writer Writer
	diag   io.Writer

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []logdb.Record
	running  bool
	stopping bool
	done     chan struct{}
}

func newPipeline(w Writer, diag io.Writer) *pipeline {
	p := &pipeline{writer: w, diag: diag}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the consumer. Calling it twice is a no-op.
func (p *pipeline) Start() {
	if p.writer == nil {
		return
	}
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopping = false
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.consume()
}

func (p *pipeline) consume() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopping {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// Stopping and drained.
			p.running = false
			p.mu.Unlock()
			return
		}
		rec := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.write(rec)
	}
}

// Enqueue hands a record to the consumer, or writes it directly when no
// consumer is running.
func (p *pipeline) Enqueue(rec logdb.Record) {
	if p.writer == nil {
		return
	}
	p.mu.Lock()
	if p.running && !p.stopping {
		p.queue = append(p.queue, rec)
		p.cond.Signal()
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.write(rec)
}

// write persists one record; the error path deliberately avoids the logger
// itself so a storage outage cannot feed back into the pipeline.
func (p *pipeline) write(rec logdb.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.writer.Append(ctx, rec); err != nil {
		fmt.Fprintln(p.diag, "[log-writer error]", err)
	}
}

// Stop drains the queue best-effort and waits for the consumer to exit, or
// for ctx to expire.
func (p *pipeline) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	done := p.done
	p.cond.Broadcast()
	p.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
	}
}
