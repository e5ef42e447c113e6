package proc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/fd"
	"minikern/sched"
)

func TestKillAllCancelsEveryoneButSelfAndReserved(t *testing.T) {
	freshProcTable(t)
	idle, _ := CreateProcess(nil)
	init, _ := CreateProcess(idle)
	init.Fd = fd.NewTable(fd.MkRootCwd())
	_, _ = CreateProcess(init) // consumes pid 2, reserved
	a, _ := CreateProcess(init)
	b, _ := CreateProcess(init)

	aThr := CreateThread(a)
	bThr := CreateThread(b)
	sched.Spawn(aThr, func(self *sched.Thread_t) { sched.SleepOn(self, sched.MkWaitqueue()) })
	sched.Spawn(bThr, func(self *sched.Thread_t) { sched.SleepOn(self, sched.MkWaitqueue()) })

	waitForState(t, aThr, sched.Sleeping)
	waitForState(t, bThr, sched.Sleeping)

	selfThread := CreateThread(init)
	err := KillAll(init, selfThread)
	require.NoError(t, err)

	assert.True(t, aThr.IsCancelled())
	assert.True(t, bThr.IsCancelled())
}

func TestReapMergesChildAccountingIntoParent(t *testing.T) {
	freshProcTable(t)
	idle, _ := CreateProcess(nil)
	init, _ := CreateProcess(idle)
	child, _ := CreateProcess(init)

	child.Accnt.Systadd(1000)
	ProcCleanup(child, 0)

	pid, status := reap(init, child)
	assert.Equal(t, child.Pid, pid)
	assert.Equal(t, 0, status)
	assert.GreaterOrEqual(t, init.Usage().Sys.Nanoseconds(), int64(1000))
}

func waitForState(t *testing.T, thr *sched.Thread_t, want sched.State) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if thr.GetState() == want {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("thread never reached state %v", want)
	return false
}
