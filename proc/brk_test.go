package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/defs"
	"minikern/mem"
)

func TestBrkQueryReturnsCurrentBreak(t *testing.T) {
	freshProcTable(t)
	p, _ := CreateProcess(nil)
	p.InitBrk(4096 * 100)

	cur, err := p.Brk(0)
	require.Equal(t, 0, int(err))
	assert.EqualValues(t, 4096*100, cur)
}

func TestBrkGrowsWithinSamePageIsPureBookkeeping(t *testing.T) {
	freshProcTable(t)
	p, _ := CreateProcess(nil)
	p.InitBrk(4096*100 + 10)

	newbrk, err := p.Brk(4096*100 + 20)
	require.Equal(t, 0, int(err))
	assert.EqualValues(t, 4096*100+20, newbrk)
	_, ok := p.Vmmap.Lookup(100)
	assert.False(t, ok, "same-page growth must not create a vma")
}

func TestBrkGrowsPastPageCreatesHeapVma(t *testing.T) {
	freshProcTable(t)
	p, _ := CreateProcess(nil)
	start := uint64(4096 * 100)
	p.InitBrk(start)

	newbrk, err := p.Brk(start + uint64(mem.PGSIZE) + 10)
	require.Equal(t, 0, int(err))
	assert.Equal(t, start+uint64(mem.PGSIZE)+10, newbrk)

	region, ok := p.Vmmap.Lookup(100)
	require.True(t, ok)
	assert.Equal(t, uint64(100), region.Start)
	assert.Equal(t, uint64(102), region.End)
}

func TestBrkGrowsAgainExtendsExistingHeapVma(t *testing.T) {
	freshProcTable(t)
	p, _ := CreateProcess(nil)
	start := uint64(4096 * 100)
	p.InitBrk(start)

	_, err := p.Brk(start + uint64(mem.PGSIZE) + 10)
	require.Equal(t, 0, int(err))
	_, err = p.Brk(start + 3*uint64(mem.PGSIZE))
	require.Equal(t, 0, int(err))

	regions := p.Vmmap.Regions
	require.Len(t, regions, 1, "growth should extend the one heap vma, not add another")
	assert.Equal(t, uint64(103), regions[0].End)
}

func TestBrkShrinkReducesHeapVma(t *testing.T) {
	freshProcTable(t)
	p, _ := CreateProcess(nil)
	start := uint64(4096 * 100)
	p.InitBrk(start)

	_, err := p.Brk(start + 3*uint64(mem.PGSIZE))
	require.Equal(t, 0, int(err))

	newbrk, err := p.Brk(start + uint64(mem.PGSIZE))
	require.Equal(t, 0, int(err))
	assert.Equal(t, start+uint64(mem.PGSIZE), newbrk)

	region, ok := p.Vmmap.Lookup(100)
	require.True(t, ok)
	assert.Equal(t, uint64(101), region.End)
}

func TestBrkBelowStartIsENOMEM(t *testing.T) {
	freshProcTable(t)
	p, _ := CreateProcess(nil)
	p.InitBrk(4096 * 100)

	_, err := p.Brk(4096 * 50)
	assert.Equal(t, int(-defs.ENOMEM), int(err))
}
