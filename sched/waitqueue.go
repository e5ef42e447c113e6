// Package sched implements the cooperative scheduling primitives: FIFO
// wait-queues with cancellable sleep, and the mutex built atop them.
// Grounded on original_source/kernel/proc/{kthread,kmutex,sched_helper}.c
// for the exact sleep/wakeup/cancel semantics and on per-thread state
// (killed/doomed flags) carried on each Thread_t.
//
// A single-CPU, non-preemptive kernel can keep "current thread" as a
// goroutine-local global, relying on the fact that nothing else runs
// until it yields. This kernel runs atop the stock Go runtime, where
// goroutines are preemptively scheduled by design; the design resolves
// that by threading "current" identity explicitly through calls rather
// than through globals, which is exactly what real channels + mutexes
// let us do here: every wait-queue and mutex operation takes its
// Thread_t explicitly, and correctness (FIFO discharge order,
// exactly-once cancellation, direct mutex hand-off) is enforced with
// real synchronization instead of by disabling preemption.
package sched

import (
	"container/list"
	"sync"

	"minikern/stats"
)

// State is a thread's scheduling state.
type State int

const (
	Running State = iota
	Sleeping
	CancellableSleeping
	Exited
)

type waiter_t struct {
	thr       *Thread_t
	wake      chan struct{}
	viaCancel bool
	elem      *list.Element
}

func (w *waiter_t) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

/// Waitqueue_t is a FIFO of sleeping threads, discharged by wakeup or
/// broadcast. The embedded mutex models "raising IPL" over the
/// enqueue/dequeue critical section (§5).
type Waitqueue_t struct {
	mu sync.Mutex
	l  *list.List
}

/// MkWaitqueue allocates an empty wait-queue.
func MkWaitqueue() *Waitqueue_t {
	return &Waitqueue_t{l: list.New()}
}

func (q *Waitqueue_t) push(w *waiter_t) {
	q.mu.Lock()
	w.elem = q.l.PushBack(w)
	q.mu.Unlock()
}

func (q *Waitqueue_t) popFront() *waiter_t {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.l.Front()
	if e == nil {
		return nil
	}
	q.l.Remove(e)
	w := e.Value.(*waiter_t)
	w.elem = nil
	return w
}

// removeSpecific removes w from the queue if it is still present,
// reporting whether it did. Racing with popFront for the same waiter,
// at most one of the two calls succeeds — the invariant that a
// cancelled thread returns from its sleep exactly once relies on that.
func (q *Waitqueue_t) removeSpecific(w *waiter_t) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w.elem == nil {
		return false
	}
	q.l.Remove(w.elem)
	w.elem = nil
	return true
}

/// Empty reports whether the queue currently has no waiters.
func (q *Waitqueue_t) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len() == 0
}

/// SleepOn transitions self to Sleeping, appends it to q, and blocks
/// until some WakeupOn/BroadcastOn discharges it. Non-cancellable: the
/// only way out is a wakeup.
func SleepOn(self *Thread_t, q *Waitqueue_t) {
	w := &waiter_t{thr: self, wake: make(chan struct{}, 1)}
	self.setState(Sleeping)
	q.push(w)
	<-w.wake
	self.setState(Running)
}

/// CancellableSleepOn transitions self to CancellableSleeping, appends
/// it to q, and blocks until woken or cancelled. Returns true if the
/// wait was discharged by cancellation rather than a normal wakeup.
func CancellableSleepOn(self *Thread_t, q *Waitqueue_t) bool {
	self.mu.Lock()
	if self.Cancelled {
		self.mu.Unlock()
		return true
	}
	w := &waiter_t{thr: self, wake: make(chan struct{}, 1)}
	self.curWaiter = w
	self.curQ = q
	self.State = CancellableSleeping
	self.mu.Unlock()

	q.push(w)
	<-w.wake

	self.mu.Lock()
	self.curWaiter = nil
	self.curQ = nil
	self.State = Running
	cancelled := w.viaCancel
	self.mu.Unlock()
	return cancelled
}

/// WakeupOn dequeues and makes runnable the head of q, if any, and
/// returns the woken thread (or nil if q was empty).
func WakeupOn(q *Waitqueue_t) *Thread_t {
	w := q.popFront()
	if w == nil {
		return nil
	}
	w.signal()
	stats.Wakeups.Inc()
	return w.thr
}

/// BroadcastOn wakes every thread currently waiting on q.
func BroadcastOn(q *Waitqueue_t) {
	for {
		w := q.popFront()
		if w == nil {
			return
		}
		w.signal()
		stats.Wakeups.Inc()
	}
}

/// Cancel sets thr.Cancelled and, if thr is in a cancellable sleep,
/// removes it from that wait-queue and makes it runnable with a
/// cancelled indication. Otherwise the flag is merely recorded for the
/// thread to observe at its next cancellable point.
func Cancel(thr *Thread_t, retval int) {
	thr.mu.Lock()
	thr.Cancelled = true
	thr.Retval = retval
	w := thr.curWaiter
	q := thr.curQ
	thr.mu.Unlock()

	if w == nil || q == nil {
		return
	}
	if q.removeSpecific(w) {
		w.viaCancel = true
		w.signal()
	}
	// If removeSpecific lost the race to a concurrent WakeupOn/
	// BroadcastOn, that call already owns discharging this waiter
	// exactly once; §5 explicitly allows no ordering guarantee here.
}
