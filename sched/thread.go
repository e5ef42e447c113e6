package sched

import (
	"runtime"
	"sync"

	"minikern/defs"
)

/// Thread_t is a kernel thread: saved state, errno, return value, and
/// the cancellation/sleep bookkeeping consumed by Waitqueue_t and
/// Mutex_t. Unlike a single-CPU kernel that keeps "current thread" as a
/// goroutine-local pointer, this kernel threads it explicitly through
/// call arguments instead.
type Thread_t struct {
	Tid defs.Tid_t

	mu        sync.Mutex
	State     State
	Cancelled bool
	Retval    int
	Errno     defs.Err_t

	curWaiter *waiter_t
	curQ      *Waitqueue_t

	onExit func(retval int)
}

/// NewThread allocates a Thread_t in the Running state.
func NewThread(tid defs.Tid_t, onExit func(retval int)) *Thread_t {
	return &Thread_t{Tid: tid, State: Running, onExit: onExit}
}

func (t *Thread_t) setState(s State) {
	t.mu.Lock()
	t.State = s
	t.mu.Unlock()
}

/// GetState returns the thread's current scheduling state.
func (t *Thread_t) GetState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.State
}

/// IsCancelled reports whether the thread has been cancelled, for
/// threads that poll the flag at their own cancellable points.
func (t *Thread_t) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Cancelled
}

/// Spawn starts entry(self) as a new goroutine, the kernel-thread
/// analogue of allocating a kernel stack and a context that resumes at
/// entry(arg) (§4.3's create_thread).
func Spawn(self *Thread_t, entry func(self *Thread_t)) {
	go entry(self)
}

/// KthreadExit records retval, transitions self to Exited, invokes the
/// owning process's exit hook (proc_thread_exited), and never returns —
/// the calling goroutine parks permanently, mirroring a thread that
/// yields for the last time.
func KthreadExit(self *Thread_t, retval int) {
	self.mu.Lock()
	self.Retval = retval
	self.State = Exited
	hook := self.onExit
	self.mu.Unlock()
	if hook != nil {
		hook(retval)
	}
	runtime.Goexit()
}
