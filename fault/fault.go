// Package fault implements the page-fault handler: translate a faulting
// virtual address into a region, validate the access against the
// region's protection, demand-page the backing object, and decide
// whether the resulting mapping may be installed writable. Grounded on
// original_source/kernel/vm/vmmap.c's vmmap_fault_handler (§4.9).
package fault

import (
	"github.com/sirupsen/logrus"

	"minikern/defs"
	"minikern/mem"
	"minikern/proc"
	"minikern/sched"
	"minikern/stats"
	"minikern/vmm"
)

// Log is the structured logger fatal faults report through, a
// package-level logger each subsystem can override in tests.
var Log = logrus.New()

/// Handle services a fault at the byte address vaddr raised by p's
/// thread self, for a write access if write is true. On success it
/// reports whether the mapping may be installed writable; a fault that
/// cannot be serviced (no region, protection violation, or a fatal
/// Lookuppage error) never returns to the caller — it terminates p via
/// proc.DoExit, matching the propagation policy that page faults failing
/// validation are not reported back to the faulting thread.
func Handle(self *sched.Thread_t, p *proc.Process_t, vaddr uint64, write bool) (writable bool) {
	stats.Faults.Inc()

	vfn := vaddr / uint64(mem.PGSIZE)
	region, ok := p.Vmmap.Lookup(vfn)
	if !ok {
		Log.WithFields(logrus.Fields{"pid": p.Pid, "vaddr": vaddr}).Warn("fault: no mapped region")
		proc.DoExit(self, int(-defs.EFAULT))
		panic("unreachable")
	}

	if write && region.Prot&vmm.PROT_WRITE == 0 {
		Log.WithFields(logrus.Fields{"pid": p.Pid, "vaddr": vaddr}).Warn("fault: write to read-only region")
		proc.DoExit(self, int(-defs.EFAULT))
		panic("unreachable")
	}
	if !write && region.Prot&vmm.PROT_READ == 0 {
		Log.WithFields(logrus.Fields{"pid": p.Pid, "vaddr": vaddr}).Warn("fault: read from unreadable region")
		proc.DoExit(self, int(-defs.EFAULT))
		panic("unreachable")
	}

	objpg := region.Off + (vfn - region.Start)
	forwrite := write && region.Private()

	pf, err := region.Obj.Lookuppage(self, objpg, forwrite)
	if err != 0 {
		Log.WithFields(logrus.Fields{"pid": p.Pid, "vaddr": vaddr, "err": err}).Error("fault: lookuppage failed")
		proc.DoExit(self, int(err))
		panic("unreachable")
	}

	if write {
		pf.PinUp()
		region.Obj.Dirtypage(pf)
		pf.PinDown()
	}

	switch {
	case region.Shared():
		writable = region.Prot&vmm.PROT_WRITE != 0
	case region.Private():
		writable = region.Prot&vmm.PROT_WRITE != 0 && pf.Obj == region.Obj
	}

	return writable
}
