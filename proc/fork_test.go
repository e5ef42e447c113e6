package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/fd"
	"minikern/mem"
	"minikern/sched"
	"minikern/vmm"
)

func TestForkCopyOnWriteDiverges(t *testing.T) {
	freshProcTable(t)
	idle, _ := CreateProcess(nil)
	init, _ := CreateProcess(idle)

	parent, _ := CreateProcess(init)
	parent.Fd = fd.NewTable(fd.MkRootCwd())
	_, err := parent.Vmmap.Map(mem.DefaultAllocator(), nil, 16, 1,
		vmm.PROT_READ|vmm.PROT_WRITE, vmm.PRIVATE|vmm.ANON, 0, vmm.LOHI)
	require.Equal(t, 0, int(err))

	parentThread := CreateThread(parent)
	addr := 16 * uint64(mem.PGSIZE)
	_, werr := parent.Vmmap.WriteAt(parentThread, addr, []byte("before-fork"))
	require.Equal(t, 0, int(werr))

	// The child reads its copy before exiting: ProcCleanup clears a dead
	// process's address-space map, so it cannot be read afterwards.
	parentWrote := make(chan struct{})
	buf := make([]byte, len("before-fork"))
	var rerr int
	childPid, ferr := Fork(parent, parentThread, func(child *Process_t, childSelf *sched.Thread_t) {
		<-parentWrote
		_, e := child.Vmmap.ReadAt(childSelf, addr, buf)
		rerr = int(e)
		DoExit(childSelf, 0)
	})
	require.Equal(t, 0, int(ferr))

	child, ok := Lookup(childPid)
	require.True(t, ok)

	_, werr = parent.Vmmap.WriteAt(parentThread, addr, []byte("after-fork!!"))
	require.Equal(t, 0, int(werr))
	close(parentWrote)
	waitUntilDead(t, child)

	require.Equal(t, 0, rerr)
	assert.Equal(t, "before-fork", string(buf))

	buf2 := make([]byte, len("after-fork!!"))
	_, rerr2 := parent.Vmmap.ReadAt(parentThread, addr, buf2)
	require.Equal(t, 0, int(rerr2))
	assert.Equal(t, "after-fork!!", string(buf2))
}
