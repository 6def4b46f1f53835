package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/openarchive/openarchive/pkg/errors"
)

// workItem is a unit of dispatched iopx work: an operation closure capturing
// whatever file/request/decorator state it needs.
type workItem func()

// Executor is the single-producer-multi-consumer work queue described in
// spec.md §4.2/§5: submission is non-blocking (a full queue rejects rather
// than blocking the caller), execution runs on one of a fixed thread group,
// and a "keepalive" token keeps worker goroutines alive between items —
// releasing it (Stop) lets every worker drain its current item and exit.
type Executor struct {
	name  string
	queue chan workItem
	wg    sync.WaitGroup

	keepalive chan struct{}
	stopOnce  sync.Once

	numThreads int
	logger     *slog.Logger
}

// ErrQueueFull is returned by Submit when the executor's backlog is full.
var ErrQueueFull = fmt.Errorf("executor: work queue is full")

// ErrStopped is returned by Submit after Stop has been called.
var ErrStopped = fmt.Errorf("executor: executor is stopped")

// newExecutor starts numThreads worker goroutines, each first calling
// installLocal(workerID) to set up its thread-local resource pools (spec.md
// §4.2: "threads created by the engine MUST install thread-local resource
// pools before servicing any work") before entering its service loop.
func newExecutor(name string, numThreads, queueDepth int, installLocal func(workerID int), logger *slog.Logger) *Executor {
	if numThreads <= 0 {
		numThreads = 1
	}
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		name:       name,
		queue:      make(chan workItem, queueDepth),
		keepalive:  make(chan struct{}),
		numThreads: numThreads,
		logger:     logger.With("executor", name),
	}
	for i := 0; i < numThreads; i++ {
		e.wg.Add(1)
		go e.serviceLoop(i, installLocal)
	}
	return e
}

func (e *Executor) serviceLoop(workerID int, installLocal func(workerID int)) {
	defer e.wg.Done()
	if installLocal != nil {
		installLocal(workerID)
	}
	for {
		select {
		case item, ok := <-e.queue:
			if !ok {
				return
			}
			e.runItem(item)
		case <-e.keepalive:
			// Keepalive closed: drain whatever is already queued, then exit.
			for {
				select {
				case item, ok := <-e.queue:
					if !ok {
						return
					}
					e.runItem(item)
				default:
					return
				}
			}
		}
	}
}

// runItem executes item, converting a panic into a logged
// ErrCodePanicRecovered error rather than taking down the whole worker
// pool — one bad request should not stop the executor from servicing the
// rest of its queue.
func (e *Executor) runItem(item workItem) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.New(errors.ErrCodePanicRecovered, fmt.Sprintf("work item panicked: %v", r)).
				WithComponent("engine").WithStack()
			e.logger.Error("recovered from panic in work item", "error", err)
		}
	}()
	item()
}

// Submit enqueues fn for execution on a worker thread without blocking the
// caller. Returns ErrQueueFull if the backlog is saturated, ErrStopped once
// the executor has been stopped.
func (e *Executor) Submit(fn func()) error {
	select {
	case <-e.keepalive:
		return ErrStopped
	default:
	}
	select {
	case e.queue <- workItem(fn):
		return nil
	default:
		return ErrQueueFull
	}
}

// NumThreads reports the worker thread count this executor was built with.
func (e *Executor) NumThreads() int { return e.numThreads }

// Stop releases the keepalive token, causing every worker to drain its
// remaining queued items and exit, then joins the thread group. Stop is
// idempotent: calling it twice is a no-op the second time.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		close(e.keepalive)
	})
	e.wg.Wait()
}
