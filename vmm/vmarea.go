// Package vmm implements the per-process address-space map: an ordered,
// disjoint set of regions (vmareas) each backed by a memory object, plus
// find_range/insert/clone/map/remove and the page-granular read/write
// helpers used by user-copy routines. Grounded on
// original_source/kernel/vm/vmmap.c.
package vmm

import (
	"sync"

	"minikern/vm"
)

/// Dir selects the search direction for FindRange.
type Dir int

const (
	LOHI Dir = iota
	HILO
)

/// Protection bits for a region.
const (
	PROT_READ  uint = 1 << 0
	PROT_WRITE uint = 1 << 1
	PROT_EXEC  uint = 1 << 2
)

/// Region flag bits; exactly one of SHARED/PRIVATE must be set.
const (
	SHARED  uint = 1 << 0
	PRIVATE uint = 1 << 1
	FIXED   uint = 1 << 2
	ANON    uint = 1 << 3
)

// Bounds for the user portion of the address space, expressed in page
// numbers. The hardware page-table layer that would otherwise constrain
// these is out of scope (§1); the bounds exist purely so find_range has
// a search interval.
const (
	UserLowPage  uint64 = 1
	UserHighPage uint64 = 1 << 40
)

/// Vmarea_t is a mapped region: a half-open virtual-page interval paired
/// with a memory object and a page offset into it (§3).
type Vmarea_t struct {
	Start, End uint64 // [Start, End) in page numbers
	Off        uint64 // offset into Obj, in pages
	Prot       uint
	Flags      uint
	Obj        vm.Mmobj_i

	vmmap *Vmmap_t
}

/// Len returns the region's length in pages.
func (v *Vmarea_t) Len() uint64 { return v.End - v.Start }

/// Private reports whether the region is a private (COW-eligible) mapping.
func (v *Vmarea_t) Private() bool { return v.Flags&PRIVATE != 0 }

/// Shared reports whether the region is a shared mapping.
func (v *Vmarea_t) Shared() bool { return v.Flags&SHARED != 0 }

// bottomVmaRegistry is the reverse-enumeration index from a bottom
// object to every region derived from it, read only through BottomVmas
// (RevertShadow does not consult it) — it is a lookup, never an
// ownership edge (§9's design note).
type bottomVmaRegistry struct {
	mu   sync.Mutex
	list map[vm.Mmobj_i][]*Vmarea_t
}

var bottomVmas = &bottomVmaRegistry{list: make(map[vm.Mmobj_i][]*Vmarea_t)}

func registerBottomVma(bottom vm.Mmobj_i, vma *Vmarea_t) {
	bottomVmas.mu.Lock()
	defer bottomVmas.mu.Unlock()
	bottomVmas.list[bottom] = append(bottomVmas.list[bottom], vma)
}

func unregisterBottomVma(bottom vm.Mmobj_i, vma *Vmarea_t) {
	bottomVmas.mu.Lock()
	defer bottomVmas.mu.Unlock()
	l := bottomVmas.list[bottom]
	for i, v := range l {
		if v == vma {
			bottomVmas.list[bottom] = append(l[:i], l[i+1:]...)
			break
		}
	}
}

/// BottomVmas returns every region currently derived from bottom,
/// for reverse enumeration (fork rollback, debugging).
func BottomVmas(bottom vm.Mmobj_i) []*Vmarea_t {
	bottomVmas.mu.Lock()
	defer bottomVmas.mu.Unlock()
	out := make([]*Vmarea_t, len(bottomVmas.list[bottom]))
	copy(out, bottomVmas.list[bottom])
	return out
}
