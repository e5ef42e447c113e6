package sched

// Mutex_t is a non-recursive mutex built atop a Waitqueue_t, grounded on
// original_source/kernel/proc/kmutex.c. Unlock hands ownership directly
// to the next waiter (§4.2) rather than clearing the owner and letting
// everyone re-race for it.
type Mutex_t struct {
	owner *Thread_t
	waitq *Waitqueue_t
	lk    internalLock // guards owner/waitq; models raising IPL over them
}

/// MkMutex allocates a free mutex.
func MkMutex() *Mutex_t {
	return &Mutex_t{waitq: MkWaitqueue()}
}

func (m *Mutex_t) criticalLock()   { m.lk.Lock() }
func (m *Mutex_t) criticalUnlock() { m.lk.Unlock() }

/// Lock acquires the mutex, sleeping on its wait-queue while held.
/// Locking a mutex the caller already owns is a programming error.
func (m *Mutex_t) Lock(self *Thread_t) {
	for {
		m.criticalLock()
		if m.owner == nil {
			m.owner = self
			m.criticalUnlock()
			return
		}
		if m.owner == self {
			m.criticalUnlock()
			panic("sched: mutex self-deadlock")
		}
		m.criticalUnlock()
		SleepOn(self, m.waitq)
		// Woken only via Unlock's hand-off, which already set
		// m.owner = self before signaling — re-check the loop once
		// more so a thread that lost a race to acquire directly
		// (owner still nil at the time it looked) still converges.
		m.criticalLock()
		if m.owner == self {
			m.criticalUnlock()
			return
		}
		m.criticalUnlock()
	}
}

/// LockCancellable is like Lock but the wait can be interrupted by
/// cancellation. It returns true if the thread was cancelled while
/// waiting, or immediately after acquiring — in the latter case the
/// lock is released before returning.
func (m *Mutex_t) LockCancellable(self *Thread_t) bool {
	for {
		m.criticalLock()
		if m.owner == nil {
			m.owner = self
			m.criticalUnlock()
			if self.IsCancelled() {
				m.Unlock(self)
				return true
			}
			return false
		}
		if m.owner == self {
			m.criticalUnlock()
			panic("sched: mutex self-deadlock")
		}
		m.criticalUnlock()
		cancelled := CancellableSleepOn(self, m.waitq)
		if cancelled {
			// If hand-off raced us and set m.owner = self anyway,
			// release it; otherwise we were never granted it.
			m.criticalLock()
			got := m.owner == self
			m.criticalUnlock()
			if got {
				m.Unlock(self)
			}
			return true
		}
		m.criticalLock()
		if m.owner == self {
			m.criticalUnlock()
			return false
		}
		m.criticalUnlock()
	}
}

/// Unlock releases the mutex. The caller must be the current owner. If
/// any thread is waiting, ownership transfers directly to it — the
/// awakened thread never re-races for the lock.
func (m *Mutex_t) Unlock(self *Thread_t) {
	m.criticalLock()
	if m.owner != self {
		m.criticalUnlock()
		panic("sched: unlock by non-owner")
	}
	next := m.waitq.popFront()
	if next == nil {
		m.owner = nil
		m.criticalUnlock()
		return
	}
	m.owner = next.thr
	m.criticalUnlock()
	next.signal()
}

/// Locked reports whether the mutex is currently held, for assertions.
func (m *Mutex_t) Locked() bool {
	m.criticalLock()
	defer m.criticalUnlock()
	return m.owner != nil
}
