package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/mem"
	"minikern/sched"
)

func TestAnonLookuppageZerosFreshPages(t *testing.T) {
	a := NewAnon(mem.DefaultAllocator())
	self := sched.NewThread(1, nil)

	pf, err := a.Lookuppage(self, 3, false)
	require.Equal(t, 0, int(err))
	for _, b := range pf.Page {
		require.Equal(t, byte(0), b)
	}
	assert.Equal(t, 1, a.NRes())
}

func TestAnonPutCollapsesWhenRefcountDropsToResidentCount(t *testing.T) {
	a := NewAnon(mem.DefaultAllocator())
	a.Ref() // two owners, e.g. mirroring a shared mapping plus a shadow's steal
	self := sched.NewThread(1, nil)
	_, err := a.Lookuppage(self, 0, false)
	require.Equal(t, 0, int(err))
	require.Equal(t, 2, a.RefCount())
	require.Equal(t, 1, a.NRes())

	a.Put()
	assert.Equal(t, 0, a.NRes(), "dropping to refcount == nres must drain resident pages")
}

func TestShadowWriteFaultCopiesIntoOwnPageLeavingBottomUntouched(t *testing.T) {
	alloc := mem.DefaultAllocator()
	self := sched.NewThread(1, nil)

	bottom := NewAnon(alloc)
	pf, err := bottom.Lookuppage(self, 0, true)
	require.Equal(t, 0, int(err))
	copy(pf.Page[:], []byte("bottom-data"))

	bottom.Ref()
	shadow := NewShadow(alloc, bottom, bottom)

	// Read fault on the shadow falls through to the bottom's content.
	readPf, err := shadow.Lookuppage(self, 0, false)
	require.Equal(t, 0, int(err))
	assert.Equal(t, "bottom-data", string(readPf.Page[:len("bottom-data")]))
	assert.Equal(t, 0, shadow.NRes(), "a read fault must not populate the shadow's own cache")

	// Write fault forces a private copy into the shadow.
	writePf, err := shadow.Lookuppage(self, 0, true)
	require.Equal(t, 0, int(err))
	copy(writePf.Page[:], []byte("shadow-data"))
	assert.Equal(t, 1, shadow.NRes())

	bottomPf, err := bottom.Lookuppage(self, 0, false)
	require.Equal(t, 0, int(err))
	assert.Equal(t, "bottom-data", string(bottomPf.Page[:len("bottom-data")]))
}

func TestShadowBottomReportsChainRoot(t *testing.T) {
	alloc := mem.DefaultAllocator()
	bottom := NewAnon(alloc)
	bottom.Ref()
	s1 := NewShadow(alloc, bottom, bottom)
	s1.Ref()
	s2 := NewShadow(alloc, s1, bottom)

	assert.Same(t, bottom, Bottom(s2))
	assert.Same(t, bottom, Bottom(bottom))
}
