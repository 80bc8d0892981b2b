package engine

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// Loop is a single-consumer FIFO of tasks. Producers — signal handlers,
// subprocess-watcher goroutines, the control-socket accept goroutine, timer
// fires, bus-reader goroutines — marshal their results in by calling
// Enqueue, which is non-blocking and safe from any goroutine. The loop
// dequeues and invokes tasks serially on a single goroutine, so state
// mutations performed by tasks never race with each other.
type Loop struct {
	log zerolog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	tasks    []func()
	stopping bool

	// goroutineID of the goroutine currently executing Run's dequeue loop,
	// or 0 if the loop isn't running. Used by AssertOnLoop to catch state
	// mutations attempted from a worker goroutine.
	runnerGoroutine uint64
}

// NewLoop constructs a Loop. log should already be scoped to this component.
func NewLoop(log zerolog.Logger) *Loop {
	l := &Loop{log: log}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Enqueue appends a task to the queue and wakes the loop if it is waiting.
// Safe to call from any goroutine, including after Stop has been called
// (the task is simply dropped once the loop has exited).
func (l *Loop) Enqueue(f func()) {
	if f == nil {
		return
	}
	l.mu.Lock()
	if l.stopping && len(l.tasks) == 0 {
		// The loop may already have drained and exited. The task is still
		// appended; if Run has returned, nothing dequeues it and it never
		// runs, mirroring a producer racing a shutdown it lost.
	}
	l.tasks = append(l.tasks, f)
	l.mu.Unlock()
	l.cond.Signal()
}

// Stop requests the loop to drain its queue and exit. Run returns once the
// queue is empty; tasks enqueued concurrently with Stop still run.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopping = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Run dequeues and invokes tasks serially until Stop has been called and
// the queue is empty. Panics from individual tasks are caught and logged
// so that one bad handler cannot kill the daemon.
func (l *Loop) Run() {
	l.mu.Lock()
	l.runnerGoroutine = currentGoroutineID()
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.runnerGoroutine = 0
		l.mu.Unlock()
	}()

	for {
		l.mu.Lock()
		for len(l.tasks) == 0 && !l.stopping {
			l.cond.Wait()
		}
		if len(l.tasks) == 0 && l.stopping {
			l.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		l.runTask(task)
	}
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("event loop task panicked, continuing")
		}
	}()
	task()
}

// AssertOnLoop panics if called from a goroutine other than the one
// currently executing Run. The Reconciler calls this at the top of Update
// as a correctness guard: state mutations must only ever be observed on
// the Event Loop.
func (l *Loop) AssertOnLoop() {
	l.mu.Lock()
	runner := l.runnerGoroutine
	l.mu.Unlock()
	if runner == 0 {
		// Loop isn't running yet (e.g. unit tests driving the reconciler
		// directly) — treat as on-loop so tests don't need a live Loop.
		return
	}
	if got := currentGoroutineID(); got != runner {
		panic("engine: state mutation observed off the event loop goroutine")
	}
}

// currentGoroutineID extracts the calling goroutine's numeric ID by
// parsing the header line of its own stack trace. Go deliberately omits a
// public API for this; parsing runtime.Stack's own output is the standard
// idiom for goroutine-local ownership assertions.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Format: "goroutine 123 [running]: ..."
	b := buf[:n]
	const prefix = "goroutine "
	if len(b) < len(prefix) {
		return 0
	}
	b = b[len(prefix):]
	i := 0
	for i < len(b) && b[i] != ' ' {
		i++
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
