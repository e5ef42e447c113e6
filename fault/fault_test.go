package fault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/mem"
	"minikern/proc"
	"minikern/stats"
	"minikern/vfs"
	"minikern/vmm"
)

func freshState(t *testing.T) {
	t.Helper()
	vfs.ResetForTests()
	proc.ResetForTests()
}

// waitUntilDead polls p's state, since a fatal fault terminates the
// faulting thread's goroutine via runtime.Goexit deep inside DoExit and
// never returns to the caller.
func waitUntilDead(t *testing.T, p *proc.Process_t) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.GetState() == proc.Dead {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("process %d never exited", p.Pid)
}

func TestHandleWritableAnonRegionDirtiesPage(t *testing.T) {
	freshState(t)
	p, _ := proc.CreateProcess(nil)
	thr := proc.CreateThread(p)

	vma, err := p.Vmmap.Map(mem.DefaultAllocator(), nil, 10, 1,
		vmm.PROT_READ|vmm.PROT_WRITE, vmm.PRIVATE|vmm.ANON, 0, vmm.LOHI)
	require.Equal(t, 0, int(err))

	prevEnabled := stats.Enabled
	stats.Enabled = true
	defer func() { stats.Enabled = prevEnabled }()
	before := stats.Faults.Get()

	writable := Handle(thr, p, 10*uint64(mem.PGSIZE), true)

	assert.True(t, writable)
	assert.Equal(t, before+1, stats.Faults.Get())
	pf, ok := vma.Obj.ResidentPage(0)
	require.True(t, ok)
	assert.True(t, pf.Dirty)
}

func TestHandleReadOnlyRegionAllowsRead(t *testing.T) {
	freshState(t)
	p, _ := proc.CreateProcess(nil)
	thr := proc.CreateThread(p)

	_, err := p.Vmmap.Map(mem.DefaultAllocator(), nil, 10, 1,
		vmm.PROT_READ, vmm.PRIVATE|vmm.ANON, 0, vmm.LOHI)
	require.Equal(t, 0, int(err))

	writable := Handle(thr, p, 10*uint64(mem.PGSIZE), false)
	assert.False(t, writable)
}

func TestHandleWriteToReadOnlyRegionKillsProcess(t *testing.T) {
	freshState(t)
	p, _ := proc.CreateProcess(nil)
	thr := proc.CreateThread(p)

	_, err := p.Vmmap.Map(mem.DefaultAllocator(), nil, 10, 1,
		vmm.PROT_READ, vmm.PRIVATE|vmm.ANON, 0, vmm.LOHI)
	require.Equal(t, 0, int(err))

	go Handle(thr, p, 10*uint64(mem.PGSIZE), true)
	waitUntilDead(t, p)
}

func TestHandleUnmappedAddressKillsProcess(t *testing.T) {
	freshState(t)
	p, _ := proc.CreateProcess(nil)
	thr := proc.CreateThread(p)

	go Handle(thr, p, 999*uint64(mem.PGSIZE), false)
	waitUntilDead(t, p)
}
