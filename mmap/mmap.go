// Package mmap implements the mmap/munmap syscalls atop a process's
// vmm.Vmmap_t, bridging the fd layer's vnode handle to the memory-object
// graph via fileMapper. brk/sbrk live on proc.Process_t directly
// (proc/brk.go) since they only ever touch the heap region, never the
// fd table. Grounded on original_source/kernel/vm/vmmap.c's
// vmmap_map_range and original_source/kernel/fs/vfs_syscall.c's
// do_mmap/do_munmap.
package mmap

import (
	"minikern/defs"
	"minikern/fd"
	"minikern/mem"
	"minikern/proc"
	"minikern/vfs"
	"minikern/vm"
	"minikern/vmm"
)

// fileMapper adapts a *vfs.Vnode_t, already ref'd for the lifetime of
// the mapping, to vmm.FileMapper_i.
type fileMapper struct {
	vn     *vfs.Vnode_t
	shared bool
}

func (m *fileMapper) Mmap(region *vmm.Vmarea_t) (vm.Mmobj_i, defs.Err_t) {
	obj, err := m.vn.Mmap(m.shared)
	if err != 0 {
		return nil, err
	}
	return obj.(vm.Mmobj_i), 0
}

/// Mmap implements mmap(2) for fdn == -1 (pure anonymous mapping) or a
/// valid open descriptor (file-backed). lopage == 0 asks the map to pick
/// a free range; otherwise the mapping is fixed at lopage. Returns the
/// region's starting page number.
func Mmap(p *proc.Process_t, fdn int, lopage, n uint64, prot, flags uint, off uint64) (uint64, defs.Err_t) {
	if fdn < 0 {
		vma, err := p.Vmmap.Map(mem.DefaultAllocator(), nil, lopage, n, prot, flags, off, vmm.LOHI)
		if err != 0 {
			return 0, err
		}
		return vma.Start, 0
	}

	vn, perms, err := p.Fd.VnodeForMmap(fdn)
	if err != 0 {
		return 0, err
	}
	if flags&vmm.SHARED != 0 && prot&vmm.PROT_WRITE != 0 && perms&fd.FD_WRITE == 0 {
		vn.Put()
		return 0, -defs.EPERM
	}

	// vn's extra reference is intentionally not released here: the
	// mapping's backing vnodeBackend holds the raw pointer without its
	// own refcount (vfs/vnode.go), so this reference is what keeps the
	// vnode alive for the mapping's lifetime. It has no release hook
	// until munmap gains vnode-aware teardown.
	mapper := &fileMapper{vn: vn, shared: flags&vmm.SHARED != 0}
	vma, err := p.Vmmap.Map(mem.DefaultAllocator(), mapper, lopage, n, prot, flags, off, vmm.LOHI)
	if err != 0 {
		vn.Put()
		return 0, err
	}
	return vma.Start, 0
}

/// Munmap implements munmap(2): drop [lopage, lopage+n) from p's map.
func Munmap(p *proc.Process_t, lopage, n uint64) defs.Err_t {
	return p.Vmmap.Remove(lopage, n)
}
