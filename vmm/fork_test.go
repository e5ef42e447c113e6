package vmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/mem"
	"minikern/vm"
)

func TestCopyForForkSharesSharedRegionObject(t *testing.T) {
	old := MkVmmap()
	_, err := old.Map(mem.DefaultAllocator(), nil, 5, 1, PROT_READ|PROT_WRITE, SHARED|ANON, 0, LOHI)
	require.Equal(t, 0, int(err))

	nw := old.Clone()
	err = CopyForFork(mem.DefaultAllocator(), old, nw)
	require.Equal(t, 0, int(err))

	assert.Same(t, old.Regions[0].Obj, nw.Regions[0].Obj)
}

func TestCopyForForkInterposesShadowsOverPrivateRegion(t *testing.T) {
	old := MkVmmap()
	_, err := old.Map(mem.DefaultAllocator(), nil, 5, 1, PROT_READ|PROT_WRITE, PRIVATE|ANON, 0, LOHI)
	require.Equal(t, 0, int(err))
	bottom := old.Regions[0].Obj

	nw := old.Clone()
	err = CopyForFork(mem.DefaultAllocator(), old, nw)
	require.Equal(t, 0, int(err))

	oldShadow, ok := old.Regions[0].Obj.(*vm.Shadow_t)
	require.True(t, ok, "old region must now be shadowed")
	newShadow, ok := nw.Regions[0].Obj.(*vm.Shadow_t)
	require.True(t, ok, "new region must be shadowed")

	assert.NotSame(t, oldShadow, newShadow)
	assert.Same(t, bottom, vm.Bottom(oldShadow))
	assert.Same(t, bottom, vm.Bottom(newShadow))
}

func TestRevertShadowRestoresOriginalObject(t *testing.T) {
	old := MkVmmap()
	_, err := old.Map(mem.DefaultAllocator(), nil, 5, 1, PROT_READ|PROT_WRITE, PRIVATE|ANON, 0, LOHI)
	require.Equal(t, 0, int(err))
	bottom := old.Regions[0].Obj

	nw := old.Clone()
	setupShadowObjects(mem.DefaultAllocator(), old.Regions[0], nw.Regions[0])
	_, ok := old.Regions[0].Obj.(*vm.Shadow_t)
	require.True(t, ok)

	RevertShadow(old.Regions[0])

	assert.Same(t, bottom, old.Regions[0].Obj)
}

func TestRevertShadowOnNonShadowObjectIsNoop(t *testing.T) {
	vma := &Vmarea_t{Obj: vm.NewAnon(mem.DefaultAllocator())}
	before := vma.Obj
	RevertShadow(vma)
	assert.Same(t, before, vma.Obj)
}
