package vm

import (
	"minikern/defs"
	"minikern/mem"
	"minikern/sched"
)

// Anon_t is an anonymous memory object: demand-zeroed pages with no
// backing store, grounded on original_source/kernel/vm/anon.c.
type Anon_t struct {
	base_t
}

/// NewAnon creates an anonymous object with reference count 1.
func NewAnon(alloc mem.Allocator_i) *Anon_t {
	return &Anon_t{base_t: newBase(alloc)}
}

func (a *Anon_t) Ref() { a.ref() }

// Put decrements the reference count; when it reaches the resident page
// count the object is unreachable except through its own pages (§4.6),
// so every resident page is freed and the object discarded.
func (a *Anon_t) Put() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refcount--
	if a.refcount == len(a.pages) {
		a.drainLocked()
	}
}

func (a *Anon_t) Lookuppage(self *sched.Thread_t, index PgIndex, forwrite bool) (*Pframe_t, defs.Err_t) {
	return a.lookupOrFill(self, a, index, a.Fillpage)
}

/// Fillpage zeroes the page; AllocNoZero pages are explicitly zeroed
/// here rather than relying on the allocator, matching anon semantics.
func (a *Anon_t) Fillpage(self *sched.Thread_t, pf *Pframe_t) defs.Err_t {
	*pf.Page = mem.Pg_t{}
	return 0
}

func (a *Anon_t) Dirtypage(pf *Pframe_t) defs.Err_t {
	pf.mu.Lock()
	pf.Dirty = true
	pf.mu.Unlock()
	return 0
}

func (a *Anon_t) Cleanpage(pf *Pframe_t) defs.Err_t {
	pf.mu.Lock()
	pf.Dirty = false
	pf.mu.Unlock()
	return 0
}
