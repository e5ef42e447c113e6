package proc

import (
	"minikern/defs"
	"minikern/mem"
	"minikern/util"
	"minikern/vmm"
)

/// InitBrk sets p's initial heap break, normally the loader's job (out of
/// scope here); tests and boot code call this once before the first Brk.
func (p *Process_t) InitBrk(start uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startBrk = start
	p.brk = start
}

/// CurBrk returns p's current break without changing it.
func (p *Process_t) CurBrk() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.brk
}

// pageAlignUp mirrors PAGE_ALIGN_UP from brk.c.
func pageAlignUp(addr uint64) uint64 {
	return util.Roundup(addr, uint64(mem.PGSIZE))
}

/// Brk implements brk(2): newbrk == 0 returns the current break (the
/// sbrk(0) query form); otherwise it grows or shrinks the single heap
/// vma, which must stay at or above startBrk and below the next
/// mapping. Grounded on vm/brk.c's do_brk.
func (p *Process_t) Brk(newbrk uint64) (uint64, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if newbrk == 0 {
		return p.brk, 0
	}
	if newbrk < p.startBrk {
		return 0, -defs.ENOMEM
	}
	if newbrk >= vmm.UserHighPage*uint64(mem.PGSIZE) {
		return 0, -defs.ENOMEM
	}
	if newbrk == p.brk {
		return p.brk, 0
	}

	pgsize := uint64(mem.PGSIZE)
	oldEndVfn := pageAlignUp(p.brk) / pgsize
	newEndVfn := pageAlignUp(newbrk) / pgsize
	startVfn := p.startBrk / pgsize

	if newEndVfn == oldEndVfn {
		p.brk = newbrk
		return p.brk, 0
	}

	if newbrk > p.brk {
		if _, ok := p.Vmmap.Lookup(startVfn); ok {
			if !p.Vmmap.IsRangeEmpty(oldEndVfn, newEndVfn-oldEndVfn) {
				return 0, -defs.ENOMEM
			}
			if err := p.Vmmap.ExtendRegion(startVfn, newEndVfn); err != 0 {
				return 0, err
			}
		} else {
			if !p.Vmmap.IsRangeEmpty(startVfn, newEndVfn-startVfn) {
				return 0, -defs.ENOMEM
			}
			flags := vmm.PRIVATE | vmm.FIXED
			_, err := p.Vmmap.Map(mem.DefaultAllocator(), nil, startVfn, newEndVfn-startVfn,
				vmm.PROT_READ|vmm.PROT_WRITE, flags, 0, vmm.LOHI)
			if err != 0 {
				return 0, err
			}
		}
	} else {
		if _, ok := p.Vmmap.Lookup(startVfn); !ok {
			return 0, -defs.EFAULT
		}
		if err := p.Vmmap.Remove(newEndVfn, oldEndVfn-newEndVfn); err != 0 {
			return 0, err
		}
	}

	p.brk = newbrk
	return p.brk, 0
}
