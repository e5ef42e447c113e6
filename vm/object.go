// Package vm implements the polymorphic memory-object graph: anonymous,
// shadow, file-backed and device-special objects with ref/put and
// demand-paged fillpage, and the page-frame cache they share. Grounded
// on original_source/kernel/vm/{anon,shadow}.c for the variant semantics,
// adapted from raw pmap bits to an object-addressed cache since the
// hardware page-table layer is out of scope (§1); the page-frame/pin/
// busy conventions below are this cache's own.
package vm

import (
	"sync"

	"minikern/defs"
	"minikern/mem"
	"minikern/sched"
	"minikern/stats"
)

/// PgIndex is a page index within a memory object.
type PgIndex = uint64

/// Mmobj_i is the memory-object vtable every variant implements (§4.6).
type Mmobj_i interface {
	Ref()
	Put()
	Lookuppage(self *sched.Thread_t, index PgIndex, forwrite bool) (*Pframe_t, defs.Err_t)
	Fillpage(self *sched.Thread_t, pf *Pframe_t) defs.Err_t
	Dirtypage(pf *Pframe_t) defs.Err_t
	Cleanpage(pf *Pframe_t) defs.Err_t
	RefCount() int
	NRes() int
	ResidentPage(index PgIndex) (*Pframe_t, bool)
}

// shadowLink_i is implemented only by Shadow_t; Bottom() below uses it to
// walk to the base of a shadow chain without a shadow-specific import
// cycle back from the base object types.
type shadowLink_i interface {
	ShadowedObj() Mmobj_i
	BottomObj() Mmobj_i
}

/// Bottom returns the non-shadow object terminating o's shadow chain (o
/// itself if it is not a shadow).
func Bottom(o Mmobj_i) Mmobj_i {
	if sl, ok := o.(shadowLink_i); ok {
		return sl.BottomObj()
	}
	return o
}

/// Pframe_t is a cached page of some (object, index) pair (§3). At most
/// one Pframe_t exists per pair at a time; a pinned frame cannot be
/// reclaimed.
type Pframe_t struct {
	Obj   Mmobj_i
	Index PgIndex

	mu    sync.Mutex
	Page  *mem.Pg_t
	Busy  bool
	Pin   int
	Dirty bool
	busyq *sched.Waitqueue_t
}

func newPframe(obj Mmobj_i, index PgIndex) *Pframe_t {
	return &Pframe_t{Obj: obj, Index: index, busyq: sched.MkWaitqueue()}
}

func (pf *Pframe_t) waitNotBusy(self *sched.Thread_t) {
	pf.mu.Lock()
	for pf.Busy {
		pf.mu.Unlock()
		sched.SleepOn(self, pf.busyq)
		pf.mu.Lock()
	}
	pf.mu.Unlock()
}

func (pf *Pframe_t) clearBusy() {
	pf.mu.Lock()
	pf.Busy = false
	pf.mu.Unlock()
	sched.BroadcastOn(pf.busyq)
}

/// PinUp increments the pin count, preventing reclaim.
func (pf *Pframe_t) PinUp() {
	pf.mu.Lock()
	pf.Pin++
	pf.mu.Unlock()
}

/// PinDown decrements the pin count.
func (pf *Pframe_t) PinDown() {
	pf.mu.Lock()
	pf.Pin--
	pf.mu.Unlock()
}

/// Pinned reports whether the frame is currently pinned.
func (pf *Pframe_t) Pinned() bool {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.Pin > 0
}

// base_t is the common state every variant embeds: refcount, resident
// page cache, and the allocator for new frames. Invariant: refcount >=
// len(pages) at every quiescent point (§3, §8 property 2).
type base_t struct {
	mu       sync.Mutex
	refcount int
	pages    map[PgIndex]*Pframe_t
	alloc    mem.Allocator_i
}

func newBase(alloc mem.Allocator_i) base_t {
	return base_t{refcount: 1, pages: make(map[PgIndex]*Pframe_t), alloc: alloc}
}

func (b *base_t) RefCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refcount
}

func (b *base_t) NRes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pages)
}

func (b *base_t) ResidentPage(index PgIndex) (*Pframe_t, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pf, ok := b.pages[index]
	return pf, ok
}

func (b *base_t) ref() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refcount < len(b.pages) {
		panic("vm: refcount < nres before ref")
	}
	b.refcount++
}

// drainLocked frees every resident page and the backing physical pages.
// Caller must hold b.mu.
func (b *base_t) drainLocked() {
	for idx, pf := range b.pages {
		for pf.Pinned() {
			pf.PinDown()
		}
		if pf.Page != nil {
			b.alloc.Free(pf.Page)
		}
		delete(b.pages, idx)
	}
}

// lookupOrFill is the cache-then-demand-page path shared by the
// non-shadow variants (anon, file-backed, device-special): return a
// resident page if cached, otherwise allocate a frame, mark it busy,
// invoke fill, then clear busy and hand it back.
func (b *base_t) lookupOrFill(self *sched.Thread_t, o Mmobj_i, index PgIndex,
	fill func(self *sched.Thread_t, pf *Pframe_t) defs.Err_t) (*Pframe_t, defs.Err_t) {
	b.mu.Lock()
	if pf, ok := b.pages[index]; ok {
		b.mu.Unlock()
		pf.waitNotBusy(self)
		return pf, 0
	}
	pf := newPframe(o, index)
	pg, ok := b.alloc.AllocNoZero()
	if !ok {
		b.mu.Unlock()
		return nil, -defs.ENOMEM
	}
	pf.Page = pg
	pf.Busy = true
	b.pages[index] = pf
	b.mu.Unlock()

	if err := fill(self, pf); err != 0 {
		b.mu.Lock()
		delete(b.pages, index)
		b.mu.Unlock()
		b.alloc.Free(pg)
		pf.clearBusy()
		return nil, err
	}
	pf.clearBusy()
	stats.PageFills.Inc()
	return pf, 0
}
