// ABOUTME: Single lazily started worker draining a FIFO queue of payloads
// ABOUTME: Idle/Running transitions are decided under the queue lock so no item is stranded

package pipeline

import (
	"sync"
	"time"

	"github.com/harper/rpc-engine/internal/logger"
)

// State is the worker state of a pipeline.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

type pendingItem struct {
	payload string
	promise *Future
}

type worker struct {
	mu     sync.Mutex
	queue  []pendingItem
	state  State
	starts int

	// wake is buffered so a submit never blocks on a busy worker.
	wake chan struct{}

	idle    time.Duration
	process func(payload string) Result
	onPanic func(payload string, panicked any) Result
	log     *logger.Logger
}

func newWorker(idle time.Duration, log *logger.Logger) *worker {
	return &worker{
		wake: make(chan struct{}, 1),
		idle: idle,
		log:  log,
	}
}

// submit enqueues payload and starts the worker when it is idle.
func (w *worker) submit(payload string) *Future {
	f := newFuture()

	w.mu.Lock()
	w.queue = append(w.queue, pendingItem{payload: payload, promise: f})
	start := w.state == Idle
	if start {
		w.state = Running
		w.starts++
	}
	w.mu.Unlock()

	if start {
		go w.run()
		return f
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return f
}

func (w *worker) next() (pendingItem, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return pendingItem{}, false
	}
	item := w.queue[0]
	w.queue[0] = pendingItem{}
	w.queue = w.queue[1:]
	return item, true
}

// stopIfEmpty moves the worker to Idle when no work arrived in the meantime.
func (w *worker) stopIfEmpty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) > 0 {
		return false
	}
	w.state = Idle
	w.queue = nil
	return true
}

func (w *worker) run() {
	w.log.Debug("worker started")
	timer := time.NewTimer(w.idle)
	defer timer.Stop()

	for {
		if item, ok := w.next(); ok {
			item.promise.complete(w.handle(item.payload))
			continue
		}

		timer.Reset(w.idle)
		select {
		case <-w.wake:
		case <-timer.C:
			if w.stopIfEmpty() {
				w.log.Debug("worker stopped after %s idle", w.idle)
				return
			}
		}
	}
}

func (w *worker) handle(payload string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Warn("recovered panic while processing payload: %v", r)
			res = w.onPanic(payload, r)
		}
	}()
	return w.process(payload)
}

func (w *worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Starts counts Idle to Running transitions.
func (w *worker) Starts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.starts
}
