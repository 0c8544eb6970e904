// Package report forwards failures to a structured log without blocking the caller.
package report

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultBuffer is the queue size used when New gets a non-positive size.
const DefaultBuffer = 64

type entry struct {
	err    error
	fields []zap.Field
}

// Reporter drains reports on a single goroutine. Report never blocks; when the queue
// is full the report is dropped and counted.
type Reporter struct {
	log     *zap.Logger
	ch      chan entry
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// New starts the drain goroutine. Call Close to flush and stop it.
func New(log *zap.Logger, size int) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	if size <= 0 {
		size = DefaultBuffer
	}
	r := &Reporter{
		log:  log,
		ch:   make(chan entry, size),
		done: make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Reporter) drain() {
	defer close(r.done)
	for e := range r.ch {
		r.log.Error("reported failure", append(e.fields, zap.Error(e.err))...)
	}
}

// Report enqueues err. Nil errors and reports after Close are ignored.
func (r *Reporter) Report(err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.ch <- entry{err: err, fields: fields}:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many reports were discarded.
func (r *Reporter) Dropped() int64 { return r.dropped.Load() }

// Close stops accepting reports and waits until queued ones are logged.
func (r *Reporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done
	if n := r.dropped.Load(); n > 0 {
		r.log.Warn("reports dropped", zap.Int64("count", n))
	}
}
