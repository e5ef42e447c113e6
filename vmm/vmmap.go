package vmm

import (
	"sort"
	"sync"

	"minikern/defs"
	"minikern/mem"
	"minikern/sched"
	"minikern/vm"
)

/// FileMapper_i is implemented by whatever the fd layer hands mmap — a
/// file's vnode mmap op (§6: "mmap(file, region, &obj) returns a memory
/// object whose ref the kernel uses to back the region").
type FileMapper_i interface {
	Mmap(region *Vmarea_t) (vm.Mmobj_i, defs.Err_t)
}

/// Vmmap_t is a process's ordered, disjoint set of mapped regions (§3).
type Vmmap_t struct {
	mu      sync.Mutex
	Regions []*Vmarea_t
}

/// MkVmmap allocates an empty address-space map.
func MkVmmap() *Vmmap_t {
	return &Vmmap_t{}
}

// assertOrderedLocked panics if the region ordering invariant (§8
// property 3) is violated; caller holds m.mu.
func (m *Vmmap_t) assertOrderedLocked() {
	for i := 1; i < len(m.Regions); i++ {
		if m.Regions[i-1].End > m.Regions[i].Start {
			panic("vmm: region ordering/disjointness violated")
		}
	}
}

/// Lookup returns the region containing page vfn, if any.
func (m *Vmmap_t) Lookup(vfn uint64) (*Vmarea_t, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookupLocked(vfn)
}

func (m *Vmmap_t) lookupLocked(vfn uint64) (*Vmarea_t, bool) {
	i := sort.Search(len(m.Regions), func(i int) bool { return m.Regions[i].End > vfn })
	if i < len(m.Regions) && m.Regions[i].Start <= vfn {
		return m.Regions[i], true
	}
	return nil, false
}

/// Insert adds vma to the map, keeping Regions sorted by Start.
func (m *Vmmap_t) Insert(vma *Vmarea_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vma.vmmap = m
	i := sort.Search(len(m.Regions), func(i int) bool { return m.Regions[i].Start >= vma.Start })
	m.Regions = append(m.Regions, nil)
	copy(m.Regions[i+1:], m.Regions[i:])
	m.Regions[i] = vma
	m.assertOrderedLocked()
}

/// IsRangeEmpty reports whether no region intersects [lo, lo+n).
func (m *Vmmap_t) IsRangeEmpty(lo, n uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	hi := lo + n
	for _, v := range m.Regions {
		if v.Start < hi && lo < v.End {
			return false
		}
	}
	return true
}

/// FindRange first-fit searches for n free contiguous pages between
/// UserLowPage and UserHighPage. dir selects ascending (LOHI) or
/// descending (HILO) search. Returns (0, false) if no range fits.
func (m *Vmmap_t) FindRange(n uint64, dir Dir) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dir == LOHI {
		cur := UserLowPage
		for _, v := range m.Regions {
			if v.Start >= cur+n {
				break
			}
			if v.End > cur {
				cur = v.End
			}
		}
		if cur+n <= UserHighPage {
			return cur, true
		}
		return 0, false
	}

	cur := UserHighPage
	for i := len(m.Regions) - 1; i >= 0; i-- {
		v := m.Regions[i]
		if v.End <= cur-n {
			break
		}
		if v.Start < cur {
			cur = v.Start
		}
	}
	if cur >= UserLowPage+n {
		return cur - n, true
	}
	return 0, false
}

/// Clone deep-copies every region with Obj left nil; the caller (fork)
/// is responsible for populating objects per §4.7/§4.8.
func (m *Vmmap_t) Clone() *Vmmap_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	nm := MkVmmap()
	for _, v := range m.Regions {
		nv := &Vmarea_t{Start: v.Start, End: v.End, Off: v.Off, Prot: v.Prot, Flags: v.Flags}
		nm.Insert(nv)
	}
	return nm
}

/// Map creates a new region of n pages at lopage (or a freshly found
/// free range if lopage == 0), backed by file (nil for a pure anonymous
/// mapping). Implements §4.7's map operation, including private-mapping
/// shadow interposition.
func (m *Vmmap_t) Map(alloc mem.Allocator_i, file FileMapper_i, lopage, n uint64,
	prot, flags uint, off uint64, dir Dir) (*Vmarea_t, defs.Err_t) {
	if n == 0 {
		return nil, -defs.EINVAL
	}
	if flags&(SHARED|PRIVATE) == 0 || flags&SHARED != 0 && flags&PRIVATE != 0 {
		return nil, -defs.EINVAL
	}

	if lopage == 0 {
		start, ok := m.FindRange(n, dir)
		if !ok {
			return nil, -defs.ENOMEM
		}
		lopage = start
	} else {
		if err := m.Remove(lopage, n); err != 0 {
			return nil, err
		}
	}

	vma := &Vmarea_t{Start: lopage, End: lopage + n, Off: off, Prot: prot, Flags: flags}

	var obj vm.Mmobj_i
	var err defs.Err_t
	if file == nil {
		obj = vm.NewAnon(alloc)
	} else {
		obj, err = file.Mmap(vma)
		if err != 0 {
			return nil, err
		}
	}

	if flags&PRIVATE != 0 && file != nil {
		shadow := vm.NewShadow(alloc, obj, vm.Bottom(obj))
		vma.Obj = shadow
	} else {
		vma.Obj = obj
	}

	m.Insert(vma)
	registerBottomVma(vm.Bottom(vma.Obj), vma)
	return vma, 0
}

/// Remove unmaps [lo, lo+n), handling the four overlap cases of §4.7:
/// fully contained, overlap-right, overlap-left, and interior (split).
func (m *Vmmap_t) Remove(lo, n uint64) defs.Err_t {
	if n == 0 {
		return -defs.EINVAL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hi := lo + n

	var kept []*Vmarea_t
	var toSplit []*Vmarea_t
	for _, v := range m.Regions {
		switch {
		case v.End <= lo || v.Start >= hi:
			// disjoint: untouched
			kept = append(kept, v)
		case lo <= v.Start && hi >= v.End:
			// fully contained: drop it
			v.Obj.Put()
			unregisterBottomVma(vm.Bottom(v.Obj), v)
		case lo <= v.Start && hi < v.End:
			// overlap-left: advance start and offset together
			delta := hi - v.Start
			v.Start = hi
			v.Off += delta
			kept = append(kept, v)
		case lo > v.Start && hi >= v.End:
			// overlap-right: shrink end
			v.End = lo
			kept = append(kept, v)
		default:
			// strictly interior: split into two siblings sharing Obj
			toSplit = append(toSplit, v)
		}
	}
	for _, v := range toSplit {
		right := &Vmarea_t{
			Start: hi, End: v.End,
			Off:   v.Off + (hi - v.Start),
			Prot:  v.Prot, Flags: v.Flags, Obj: v.Obj,
		}
		v.Obj.Ref()
		registerBottomVma(vm.Bottom(v.Obj), right)
		v.End = lo
		kept = append(kept, v, right)
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	for _, v := range kept {
		v.vmmap = m
	}
	m.Regions = kept
	m.assertOrderedLocked()
	return 0
}

/// ExtendRegion grows the region starting at lo so it ends at newEnd,
/// failing if doing so would overlap the next region or run past
/// UserHighPage — used by brk to grow the heap vma in place (vm/brk.c's
/// do_brk, the "extend the existing vmarea" branch).
func (m *Vmmap_t) ExtendRegion(lo, newEnd uint64) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.Search(len(m.Regions), func(i int) bool { return m.Regions[i].Start >= lo })
	if i >= len(m.Regions) || m.Regions[i].Start != lo {
		return -defs.EFAULT
	}
	if newEnd > UserHighPage {
		return -defs.ENOMEM
	}
	if i+1 < len(m.Regions) && newEnd > m.Regions[i+1].Start {
		return -defs.ENOMEM
	}
	m.Regions[i].End = newEnd
	m.assertOrderedLocked()
	return 0
}

/// Clear unmaps every region in the map, releasing all object
/// references — used when tearing down an address space.
func (m *Vmmap_t) Clear() {
	m.mu.Lock()
	regions := m.Regions
	m.Regions = nil
	m.mu.Unlock()
	for _, v := range regions {
		v.Obj.Put()
		unregisterBottomVma(vm.Bottom(v.Obj), v)
	}
}

func pageOf(vfn uint64, v *Vmarea_t) uint64 {
	return v.Off + (vfn - v.Start)
}

/// ReadAt copies len(buf) bytes starting at virtual byte address
/// vaddrBytes into buf, handling partial first and last pages and
/// looping across page boundaries as needed (§4.7's read/write).
func (m *Vmmap_t) ReadAt(self *sched.Thread_t, vaddrBytes uint64, buf []byte) (int, defs.Err_t) {
	return m.copyAt(self, vaddrBytes, buf, false)
}

/// WriteAt copies len(buf) bytes from buf into the address space
/// starting at vaddrBytes, dirtying each touched page.
func (m *Vmmap_t) WriteAt(self *sched.Thread_t, vaddrBytes uint64, buf []byte) (int, defs.Err_t) {
	return m.copyAt(self, vaddrBytes, buf, true)
}

func (m *Vmmap_t) copyAt(self *sched.Thread_t, vaddrBytes uint64, buf []byte, write bool) (int, defs.Err_t) {
	pgsize := uint64(mem.PGSIZE)
	done := 0
	for done < len(buf) {
		addr := vaddrBytes + uint64(done)
		vfn := addr / pgsize
		pgoff := addr % pgsize

		v, ok := m.Lookup(vfn)
		if !ok {
			return done, -defs.EFAULT
		}
		if write && v.Prot&PROT_WRITE == 0 {
			return done, -defs.EFAULT
		}
		if !write && v.Prot&PROT_READ == 0 {
			return done, -defs.EFAULT
		}

		objpg := pageOf(vfn, v)
		pf, err := v.Obj.Lookuppage(self, objpg, write)
		if err != 0 {
			return done, err
		}

		n := pgsize - pgoff
		remaining := uint64(len(buf) - done)
		if n > remaining {
			n = remaining
		}
		if write {
			copy(pf.Page[pgoff:pgoff+n], buf[done:uint64(done)+n])
			v.Obj.Dirtypage(pf)
		} else {
			copy(buf[done:uint64(done)+n], pf.Page[pgoff:pgoff+n])
		}
		done += int(n)
	}
	return done, 0
}
