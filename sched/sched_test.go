package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForState(t *testing.T, thr *Thread_t, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if thr.GetState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("thread never reached state %v", want)
}

func TestWakeupOnDischargesFIFOOrder(t *testing.T) {
	q := MkWaitqueue()
	a := NewThread(1, nil)
	b := NewThread(2, nil)

	done := make(chan int, 2)
	go func() { SleepOn(a, q); done <- 1 }()
	waitForState(t, a, Sleeping)
	go func() { SleepOn(b, q); done <- 2 }()
	waitForState(t, b, Sleeping)

	first := WakeupOn(q)
	assert.Same(t, a, first)
	assert.Equal(t, 1, <-done)

	second := WakeupOn(q)
	assert.Same(t, b, second)
	assert.Equal(t, 2, <-done)

	assert.Nil(t, WakeupOn(q))
}

func TestBroadcastOnWakesEveryWaiter(t *testing.T) {
	q := MkWaitqueue()
	threads := []*Thread_t{NewThread(1, nil), NewThread(2, nil), NewThread(3, nil)}
	done := make(chan struct{}, len(threads))
	for _, thr := range threads {
		thr := thr
		go func() { SleepOn(thr, q); done <- struct{}{} }()
	}
	for _, thr := range threads {
		waitForState(t, thr, Sleeping)
	}

	BroadcastOn(q)
	for range threads {
		<-done
	}
	assert.True(t, q.Empty())
}

func TestCancelDischargesACancellableSleeper(t *testing.T) {
	q := MkWaitqueue()
	thr := NewThread(1, nil)
	result := make(chan bool, 1)
	go func() { result <- CancellableSleepOn(thr, q) }()
	waitForState(t, thr, CancellableSleeping)

	Cancel(thr, -1)

	assert.True(t, <-result)
	assert.True(t, thr.IsCancelled())
}

func TestMutexHandsOffDirectlyToWaiter(t *testing.T) {
	m := MkMutex()
	owner := NewThread(1, nil)
	waiter := NewThread(2, nil)

	m.Lock(owner)
	require.True(t, m.Locked())

	acquired := make(chan struct{})
	go func() {
		m.Lock(waiter)
		close(acquired)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && m.waitq.Empty() {
		time.Sleep(time.Millisecond)
	}

	m.Unlock(owner)
	<-acquired

	m.criticalLock()
	gotOwner := m.owner
	m.criticalUnlock()
	assert.Same(t, waiter, gotOwner)

	m.Unlock(waiter)
	assert.False(t, m.Locked())
}

func TestMutexLockSelfDeadlockPanics(t *testing.T) {
	m := MkMutex()
	self := NewThread(1, nil)
	m.Lock(self)
	assert.Panics(t, func() { m.Lock(self) })
}

func TestMutexUnlockByNonOwnerPanics(t *testing.T) {
	m := MkMutex()
	owner := NewThread(1, nil)
	other := NewThread(2, nil)
	m.Lock(owner)
	assert.Panics(t, func() { m.Unlock(other) })
}
