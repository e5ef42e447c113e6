// Package proc implements process and thread lifecycle atop sched: pid
// allocation, parent/child/init reparenting, fork, waitpid, and kill_all.
// Grounded on original_source/kernel/proc/proc.c and fork.c for the exact
// bookkeeping and ordering. There is no goroutine-local "curproc" —
// every operation takes the acting process and thread explicitly,
// consistent with sched/vfs/fd.
package proc

import (
	"sync"
	"time"

	"minikern/accnt"
	"minikern/caller"
	"minikern/defs"
	"minikern/fd"
	"minikern/hashtable"
	"minikern/sched"
	"minikern/vmm"
)

// ProcMaxCount bounds pid allocation's wraparound, standing in for
// proc.c's PROC_MAX_COUNT.
const ProcMaxCount = 1 << 14

// Process states, mirroring PROC_RUNNING/PROC_DEAD.
type State int

const (
	Running State = iota
	Dead
)

/// Process_t is a process: its address space, fd table, thread, and
/// family ties. This kernel has no multi-threaded user processes (a
/// Non-goal), so a process owns exactly one thread.
type Process_t struct {
	Pid   defs.Pid_t
	Pproc *Process_t /// nil only for the idle process

	mu       sync.Mutex
	children []*Process_t
	state    State
	status   int

	Thread *sched.Thread_t
	Vmmap  *vmm.Vmmap_t
	Fd     *fd.Table_t
	Wait   *sched.Waitqueue_t
	Accnt  accnt.Accnt_t

	startBrk, brk uint64
	startTime     time.Time
}

/// Usage returns p's accumulated CPU-time accounting, merged with every
/// reaped child's (accnt.Add, called from reap).
func (p *Process_t) Usage() accnt.Usage {
	return p.Accnt.Fetch()
}

var (
	tableMu  sync.Mutex
	byPid    = hashtable.MkHash[defs.Pid_t, *Process_t](64, func(p defs.Pid_t) uint32 { return uint32(p) })
	allProcs []*Process_t
	nextPid  defs.Pid_t
	initProc *Process_t
)

// allocPid finds the next free pid by linear probing, wrapping at
// ProcMaxCount, exactly as proc.c's _proc_getid.
func allocPid() (defs.Pid_t, bool) {
	tableMu.Lock()
	defer tableMu.Unlock()
	start := nextPid
	pid := start
	for {
		if _, ok := byPid.Get(pid); !ok {
			nextPid = (pid + 1) % ProcMaxCount
			return pid, true
		}
		pid = (pid + 1) % ProcMaxCount
		if pid == start {
			return 0, false
		}
	}
}

func register(p *Process_t) {
	tableMu.Lock()
	defer tableMu.Unlock()
	byPid.Set(p.Pid, p)
	allProcs = append(allProcs, p)
	if p.Pid == defs.Pid_t(1) {
		initProc = p
	}
}

func unregister(p *Process_t) {
	tableMu.Lock()
	defer tableMu.Unlock()
	byPid.Del(p.Pid)
	for i, q := range allProcs {
		if q == p {
			allProcs = append(allProcs[:i], allProcs[i+1:]...)
			break
		}
	}
}

/// Lookup returns the process registered under pid, if any.
func Lookup(pid defs.Pid_t) (*Process_t, bool) {
	tableMu.Lock()
	defer tableMu.Unlock()
	return byPid.Get(pid)
}

/// All returns a snapshot of every currently registered process.
func All() []*Process_t {
	tableMu.Lock()
	defer tableMu.Unlock()
	out := make([]*Process_t, len(allProcs))
	copy(out, allProcs)
	return out
}

/// ResetForTests discards every registered process and rewinds pid
/// allocation, giving each test a clean global table. Test-only.
func ResetForTests() {
	tableMu.Lock()
	defer tableMu.Unlock()
	byPid = hashtable.MkHash[defs.Pid_t, *Process_t](64, func(p defs.Pid_t) uint32 { return uint32(p) })
	allProcs = nil
	nextPid = 0
	initProc = nil
	Idle, Init = nil, nil
}

/// CreateProcess allocates a process, linking it under parent (nil only
/// for the idle process, pid 0) and inheriting parent's cwd for pid > 2,
/// exactly as proc_create (§4.3).
func CreateProcess(parent *Process_t) (*Process_t, defs.Err_t) {
	pid, ok := allocPid()
	if !ok {
		return nil, -defs.ENOMEM
	}

	p := &Process_t{
		Pid:       pid,
		Pproc:     parent,
		state:     Running,
		Vmmap:     vmm.MkVmmap(),
		Wait:      sched.MkWaitqueue(),
		startTime: time.Now(),
	}

	if parent != nil {
		parent.addChild(p)
	}
	if pid > 2 && parent != nil {
		p.Fd = fd.NewTable(fd.NewCwdFrom(parent.Fd.Cwd))
	}

	register(p)
	return p, 0
}

/// CreateThread allocates p's single thread and installs the exit hook
/// that routes through ProcThreadExited, mirroring setup_thread without
/// the trap-frame machinery (no real registers to restore here).
func CreateThread(p *Process_t) *sched.Thread_t {
	if p.Thread != nil {
		panic("proc: process already has a thread (no multi-threaded user processes)\n" + caller.Dump(2))
	}
	thr := sched.NewThread(defs.Tid_t(p.Pid), func(retval int) {
		ProcThreadExited(p, retval)
	})
	p.Thread = thr
	return thr
}

/// Spawn creates a process under parent, its thread, and starts entry
/// running on it — a convenience combining CreateProcess/CreateThread/
/// sched.Spawn for boot and test code.
func Spawn(parent *Process_t, entry func(self *sched.Thread_t)) (*Process_t, defs.Err_t) {
	p, err := CreateProcess(parent)
	if err != 0 {
		return nil, err
	}
	thr := CreateThread(p)
	sched.Spawn(thr, entry)
	return p, 0
}

func (p *Process_t) addChild(c *Process_t) {
	p.mu.Lock()
	p.children = append(p.children, c)
	p.mu.Unlock()
}

func (p *Process_t) removeChild(c *Process_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, ch := range p.children {
		if ch == c {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

/// Children returns a snapshot of p's current children.
func (p *Process_t) Children() []*Process_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Process_t, len(p.children))
	copy(out, p.children)
	return out
}

/// GetState returns p's current lifecycle state.
func (p *Process_t) GetState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

/// Status returns the exit status p recorded in ProcCleanup.
func (p *Process_t) Status() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
