// Package mem abstracts the physical page allocator the VM subsystem
// consumes. The allocator itself, the slab allocator, and the hardware
// page-table layer are out of scope (§1) — this package defines the
// interface the core consumes from them plus a simple allocator good
// enough to drive tests.
package mem

import "minikern/oommsg"

/// PGSIZE is the size of a single page in bytes.
const PGSIZE = 4096

/// Pg_t is one physical page's worth of bytes.
type Pg_t [PGSIZE]byte

/// Allocator_i is the physical page allocator interface the VM core
/// consumes; a real kernel backs it with a buddy/slab allocator, out of
/// scope here.
type Allocator_i interface {
	// Alloc returns a fresh zero-filled page, or ok=false if none are
	// available (the caller should treat this as ENOMEM).
	Alloc() (pg *Pg_t, ok bool)
	// AllocNoZero is like Alloc but the contents are unspecified, a
	// fast path for callers about to overwrite the whole page
	// immediately (COW copies).
	AllocNoZero() (pg *Pg_t, ok bool)
	// Free returns pg to the allocator.
	Free(pg *Pg_t)
}

// poolAllocator is a bump/free-list allocator over a fixed-size arena,
// standing in for the real physical allocator in tests and small
// deployments.
type poolAllocator struct {
	free []*Pg_t
	cap  int
}

/// NewBoundedAllocator returns an Allocator_i backed by up to n pages.
/// Exhaustion is reported via ok=false and, on each exhaustion, by a
/// non-blocking send on oommsg.OomCh (delivered only if a receiver waits).
func NewBoundedAllocator(n int) Allocator_i {
	return &poolAllocator{cap: n}
}

func (p *poolAllocator) Alloc() (*Pg_t, bool) {
	if len(p.free) > 0 {
		pg := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		*pg = Pg_t{}
		return pg, true
	}
	if p.cap <= 0 {
		p.notifyOOM()
		return nil, false
	}
	p.cap--
	return &Pg_t{}, true
}

func (p *poolAllocator) AllocNoZero() (*Pg_t, bool) {
	if len(p.free) > 0 {
		pg := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		return pg, true
	}
	if p.cap <= 0 {
		p.notifyOOM()
		return nil, false
	}
	p.cap--
	return &Pg_t{}, true
}

func (p *poolAllocator) Free(pg *Pg_t) {
	p.free = append(p.free, pg)
}

// Default is a generously sized allocator for subsystems that don't
// plumb their own — the in-memory vfs regular-file backing and boot
// wiring. Components that care about allocator pressure should
// construct and thread through their own via NewBoundedAllocator.
var Default Allocator_i = NewBoundedAllocator(1 << 16)

/// DefaultAllocator returns the package-wide default allocator.
func DefaultAllocator() Allocator_i { return Default }

func (p *poolAllocator) notifyOOM() {
	select {
	case oommsg.OomCh <- oommsg.Oommsg_t{Need: 1, Resume: nil}:
	default:
		// No reclaimer listening; §1 places actual reclaim out of
		// scope, so a full arena simply surfaces ENOMEM to the caller.
	}
}
