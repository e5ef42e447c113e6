package proc

import (
	"minikern/defs"
	"minikern/mem"
	"minikern/sched"
	"minikern/vmm"
)

/// Fork implements fork(2): clones self's address space (interposing
/// shadow objects above every private region so parent and child diverge
/// on next write), duplicates its fd table, and starts a new thread
/// running childEntry. Returns the child's pid to the parent; childEntry
/// itself is the child's "return 0" — it runs as the new thread's entry
/// point rather than as a resumed trap frame, since there are no
/// registers to restore here. Grounded on fork.c's do_fork/copy_vmmap.
//
// selfThread must be self.Thread, the calling thread; Fork takes it
// explicitly rather than reading self.Thread to keep every blocking-
// capable entry point in this package taking its acting thread as an
// argument (§9's design note), even though fork itself never blocks.
func Fork(self *Process_t, selfThread *sched.Thread_t, childEntry func(child *Process_t, self *sched.Thread_t)) (defs.Pid_t, defs.Err_t) {
	if selfThread != self.Thread {
		panic("proc: Fork called with a thread that is not self.Thread")
	}

	child, err := CreateProcess(self)
	if err != 0 {
		return 0, err
	}

	newmap := self.Vmmap.Clone()
	if err := vmm.CopyForFork(mem.DefaultAllocator(), self.Vmmap, newmap); err != 0 {
		unregister(child)
		self.removeChild(child)
		return 0, err
	}
	child.Vmmap = newmap

	child.Fd = self.Fd.CloneForFork()
	child.startBrk, child.brk = self.startBrk, self.brk

	thr := CreateThread(child)
	sched.Spawn(thr, func(childSelf *sched.Thread_t) {
		childEntry(child, childSelf)
	})

	return child.Pid, 0
}
