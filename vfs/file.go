package vfs

import (
	"minikern/defs"
	"minikern/mem"
	"minikern/vm"
)

// regOps implements the regular-file vnode operations. Lookup/Create/
// Mkdir/etc. are left nil: a non-directory vnode used as a path
// component yields "not a directory" (§4.4).
var regOps = Ops{
	Read:  regRead,
	Write: regWrite,
	Mmap:  regMmap,
	Stat:  vnodeStat,
}

func regRead(v *Vnode_t, off int, buf []byte) (int, defs.Err_t) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if off >= len(v.data) {
		return 0, 0
	}
	n := copy(buf, v.data[off:])
	return n, 0
}

func regWrite(v *Vnode_t, off int, buf []byte) (int, defs.Err_t) {
	v.mu.Lock()
	defer v.mu.Unlock()
	need := off + len(buf)
	if need > len(v.data) {
		grown := make([]byte, need)
		copy(grown, v.data)
		v.data = grown
	}
	copy(v.data[off:need], buf)
	return len(buf), 0
}

// regMmap hands back a file-backed memory object, shared or (the
// caller's mmap-flags decide) eligible for private COW shadowing. Each
// call allocates a fresh FileBacked_t with its own page cache, filled
// from the vnode through vnodeBackend. Two mappings of one vnode do not
// share frames, and a page written through a mapping is not copied back
// to the vnode, so other mappings and read(2) do not see the write.
func regMmap(v *Vnode_t, shared bool) (MmapObj_i, defs.Err_t) {
	backend := &vnodeBackend{v: v}
	return vm.NewFileBacked(mem.DefaultAllocator(), backend, shared), 0
}
