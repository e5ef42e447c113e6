package vmm

import (
	"minikern/defs"
	"minikern/mem"
	"minikern/vm"
)

// CopyForFork populates new's regions (produced by old.Clone(), which
// leaves every Obj nil) by either ref-sharing a SHARED region's object or
// interposing a fresh pair of shadow objects above a PRIVATE region's
// object — fork.c's copy_vmmap/setup_shadow_objects. old and new must
// have the same region count and order; CopyForFork assumes new was
// produced by old.Clone() with nothing inserted or removed since.
func CopyForFork(alloc mem.Allocator_i, old, new *Vmmap_t) defs.Err_t {
	old.mu.Lock()
	defer old.mu.Unlock()
	new.mu.Lock()
	defer new.mu.Unlock()

	if len(old.Regions) != len(new.Regions) {
		return -defs.EINVAL
	}

	for i, oldvma := range old.Regions {
		newvma := new.Regions[i]
		if oldvma.Shared() {
			oldvma.Obj.Ref()
			newvma.Obj = oldvma.Obj
			registerBottomVma(vm.Bottom(newvma.Obj), newvma)
			continue
		}
		setupShadowObjects(alloc, oldvma, newvma)
	}
	return 0
}

// setupShadowObjects interposes shadow S1 above oldvma (stealing oldvma's
// existing reference to the shared object) and shadow S2 above newvma
// (after taking a fresh reference on the shared object for S2 to steal),
// both rooted at the shared object's bottom. Grounded on fork.c's
// setup_shadow_obj, called twice by setup_shadow_objects.
//
// Unlike the C original, NewShadow cannot fail here: a shadow object is
// pure bookkeeping until its first Fillpage, which is exactly why fork's
// ENOSPC/vmmap_revert rollback path (below) has no reachable trigger in
// this port — it is kept, and exercised directly by tests, against the
// day a bounded shadow allocator makes that failure real again.
func setupShadowObjects(alloc mem.Allocator_i, oldvma, newvma *Vmarea_t) {
	shared := oldvma.Obj
	bottom := vm.Bottom(shared)

	bottom.Ref()
	s1 := vm.NewShadow(alloc, shared, bottom)
	oldvma.Obj = s1

	shared.Ref()
	bottom.Ref()
	s2 := vm.NewShadow(alloc, shared, bottom)
	newvma.Obj = s2

	registerBottomVma(bottom, newvma)
}

// RevertShadow undoes setupShadowObjects on a single region pair still
// holding its shadow S1: restores oldvma.Obj to what S1 shadowed,
// re-Ref'ing it since S1's own Put below will release the reference it
// stole. Mirrors fork.c's vmmap_revert body for one list element. It
// handles one region only; no code in this module calls it (its tests
// do), and nothing walks the region lists to revert a partial fork.
func RevertShadow(oldvma *Vmarea_t) {
	s1, ok := oldvma.Obj.(*vm.Shadow_t)
	if !ok {
		return
	}
	restored := s1.ShadowedObj()
	restored.Ref()
	s1.Put()
	oldvma.Obj = restored
}
