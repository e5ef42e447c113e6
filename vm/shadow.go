package vm

import (
	"minikern/defs"
	"minikern/mem"
	"minikern/sched"
	"minikern/stats"
)

// Shadow_t interposes in a COW chain, owning privately-modified pages
// above a shared bottom object. Grounded on
// original_source/kernel/vm/shadow.c; the lookuppage/fillpage walks are
// iterative rather than recursive because shadow chains can be
// arbitrarily deep (the C comment's stack-overflow warning, §4.6/§9).
type Shadow_t struct {
	base_t
	Shadowed Mmobj_i
	Bottom   Mmobj_i
}

/// NewShadow creates a shadow object with reference count 1, shadowing
/// shadowed and rooted at bottom.
func NewShadow(alloc mem.Allocator_i, shadowed, bottom Mmobj_i) *Shadow_t {
	if shadowed == nil || bottom == nil {
		panic("vm: shadow requires non-nil shadowed and bottom")
	}
	return &Shadow_t{base_t: newBase(alloc), Shadowed: shadowed, Bottom: bottom}
}

func (s *Shadow_t) ShadowedObj() Mmobj_i { return s.Shadowed }
func (s *Shadow_t) BottomObj() Mmobj_i   { return s.Bottom }

func (s *Shadow_t) Ref() { s.ref() }

// Put: once every remaining reference is held by this object's own
// resident pages, the shadow can never be reached again — drain its
// pages, release its shadowed and (if distinct) bottom references, and
// discard it.
func (s *Shadow_t) Put() {
	s.mu.Lock()
	s.refcount--
	collapse := s.refcount == len(s.pages)
	if collapse {
		s.drainLocked()
	}
	s.mu.Unlock()
	if collapse {
		s.Shadowed.Put()
		if s.Bottom != s.Shadowed {
			s.Bottom.Put()
		}
		stats.ShadowCollapses.Inc()
	}
}

// Lookuppage: a write fault wants a page privately owned by this
// shadow, so it uses the ordinary cache-or-fill path on its own
// resident set. A read fault is satisfied by the first resident page
// found walking down the shadowed chain, falling back to a full lookup
// on the bottom object.
func (s *Shadow_t) Lookuppage(self *sched.Thread_t, index PgIndex, forwrite bool) (*Pframe_t, defs.Err_t) {
	if forwrite {
		return s.lookupOrFill(self, s, index, s.Fillpage)
	}
	var cur Mmobj_i = s
	for {
		sl, isShadow := cur.(shadowLink_i)
		if !isShadow {
			break
		}
		if pf, ok := cur.ResidentPage(index); ok {
			return pf, 0
		}
		cur = sl.ShadowedObj()
	}
	return cur.Lookuppage(self, index, false)
}

// Fillpage copies the first resident page found walking down the
// shadowed chain into pf; if none is resident anywhere in the chain, it
// fetches (and demand-fills, if necessary) the page from the bottom
// object.
func (s *Shadow_t) Fillpage(self *sched.Thread_t, pf *Pframe_t) defs.Err_t {
	var cur Mmobj_i = s.Shadowed
	var srcpf *Pframe_t
	for cur != nil {
		if p, ok := cur.ResidentPage(pf.Index); ok {
			srcpf = p
			break
		}
		sl, isShadow := cur.(shadowLink_i)
		if !isShadow {
			break
		}
		cur = sl.ShadowedObj()
	}
	if srcpf == nil {
		bpf, err := s.Bottom.Lookuppage(self, pf.Index, false)
		if err != 0 {
			return err
		}
		srcpf = bpf
	}
	*pf.Page = *srcpf.Page
	return 0
}

func (s *Shadow_t) Dirtypage(pf *Pframe_t) defs.Err_t {
	pf.mu.Lock()
	pf.Dirty = true
	pf.mu.Unlock()
	return 0
}

func (s *Shadow_t) Cleanpage(pf *Pframe_t) defs.Err_t {
	pf.mu.Lock()
	pf.Dirty = false
	pf.mu.Unlock()
	return 0
}
