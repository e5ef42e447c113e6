package vm

import (
	"minikern/defs"
	"minikern/mem"
	"minikern/sched"
)

// Backend_i is the I/O backend a file-backed memory object demand-pages
// from — implemented by the VFS layer's vnode wrapper. The on-disk
// filesystem format itself is out of scope (§1); this is the interface
// the VM core consumes from it (§4.6's "exact semantics are the
// filesystem's concern").
type Backend_i interface {
	ReadPage(index PgIndex) ([]byte, defs.Err_t)
	WritePage(index PgIndex, data []byte) defs.Err_t
}

/// FileBacked_t is a memory object backed by a vnode's page contents.
type FileBacked_t struct {
	base_t
	Backend Backend_i
	Shared  bool
}

/// NewFileBacked creates a file-backed object with reference count 1.
func NewFileBacked(alloc mem.Allocator_i, backend Backend_i, shared bool) *FileBacked_t {
	return &FileBacked_t{base_t: newBase(alloc), Backend: backend, Shared: shared}
}

func (f *FileBacked_t) Ref() { f.ref() }

func (f *FileBacked_t) Put() {
	f.mu.Lock()
	f.refcount--
	collapse := f.refcount == len(f.pages)
	if collapse {
		f.drainLocked()
	}
	f.mu.Unlock()
}

func (f *FileBacked_t) Lookuppage(self *sched.Thread_t, index PgIndex, forwrite bool) (*Pframe_t, defs.Err_t) {
	return f.lookupOrFill(self, f, index, f.Fillpage)
}

func (f *FileBacked_t) Fillpage(self *sched.Thread_t, pf *Pframe_t) defs.Err_t {
	data, err := f.Backend.ReadPage(pf.Index)
	if err != 0 {
		return err
	}
	n := copy(pf.Page[:], data)
	for i := n; i < len(pf.Page); i++ {
		pf.Page[i] = 0
	}
	return 0
}

func (f *FileBacked_t) Dirtypage(pf *Pframe_t) defs.Err_t {
	pf.mu.Lock()
	pf.Dirty = true
	pf.mu.Unlock()
	return 0
}

func (f *FileBacked_t) Cleanpage(pf *Pframe_t) defs.Err_t {
	pf.mu.Lock()
	dirty := pf.Dirty
	pf.Dirty = false
	data := append([]byte(nil), pf.Page[:]...)
	pf.mu.Unlock()
	if !dirty {
		return 0
	}
	return f.Backend.WritePage(pf.Index, data)
}
