package proc

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"minikern/defs"
	"minikern/sched"
)

/// ProcThreadExited is wired as every process's thread's exit hook; it is
/// only ever called from sched.KthreadExit, which already transitioned
/// the thread to Exited. Mirrors proc_thread_exited's direct call into
/// proc_cleanup.
func ProcThreadExited(p *Process_t, retval int) {
	ProcCleanup(p, retval)
}

/// ProcCleanup tears p down from within its own exiting thread: closes
/// every fd, reparents children to init, drops the vmmap, records the
/// exit status, and wakes the parent — proc_cleanup (§4.3).
func ProcCleanup(p *Process_t, status int) {
	p.Accnt.Finish(p.startTime)

	if p.Fd != nil {
		p.Fd.CloseAll()
	}

	if initProc != nil && p != initProc {
		for _, ch := range p.Children() {
			ch.Pproc = initProc
			initProc.addChild(ch)
		}
		p.mu.Lock()
		p.children = nil
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.state = Dead
	p.status = status
	p.mu.Unlock()

	if p.Vmmap != nil {
		p.Vmmap.Clear()
	}

	if p.Pproc != nil {
		sched.BroadcastOn(p.Pproc.Wait)
	}

	Log.WithFields(logrus.Fields{"pid": p.Pid, "status": status}).Debug("proc: exited")
}

/// DoExit terminates the calling thread/process with status, never
/// returning. Equivalent to do_exit(status) -> kthread_cancel(curthr,
/// status): since curthr is the caller itself and not sleeping, the
/// original's cancel-then-return-through-the-trampoline reduces, absent a
/// trampoline here, to exiting directly.
func DoExit(self *sched.Thread_t, status int) {
	sched.KthreadExit(self, status)
}

/// Kill terminates p with status: if p is the thread identified by self
/// (p == selfProc), exiting never returns; otherwise p's thread is
/// cancelled asynchronously. Mirrors proc_kill.
func Kill(p *Process_t, status int, selfProc *Process_t, self *sched.Thread_t) {
	if p == selfProc {
		DoExit(self, status)
		return
	}
	sched.Cancel(p.Thread, status)
}

/// KillAll cancels every process with pid > 2 other than selfProc (fanning
/// the cancellations out concurrently via errgroup, as the pack's
/// dominant fan-out idiom), then — unless selfProc is the idle or init
/// process — kills selfProc itself, which never returns. Mirrors
/// proc_kill_all.
func KillAll(selfProc *Process_t, self *sched.Thread_t) error {
	var g errgroup.Group
	for _, p := range All() {
		if p.Pid <= 2 || p == selfProc {
			continue
		}
		p := p
		g.Go(func() error {
			if p.Thread == nil {
				return nil
			}
			Kill(p, 0, selfProc, self)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if selfProc.Pid != 0 && selfProc.Pid != 1 {
		Kill(selfProc, 0, selfProc, self)
	}
	return nil
}

// reap removes a dead child from both the parent's child list and the
// global process table, returning its exit status — cleanup_child_proc,
// minus the pagedir/slab teardown this port has no equivalent of (the
// vmmap was already released in ProcCleanup). Folds the child's
// accounting into the parent's, the same rusage-accumulation a wait4
// call performs in a real kernel.
func reap(parent, child *Process_t) (defs.Pid_t, int) {
	parent.Accnt.Add(&child.Accnt)
	parent.removeChild(child)
	unregister(child)
	return child.Pid, child.Status()
}

/// Waitpid implements do_waitpid: pid == -1 reaps any dead child, pid > 0
/// waits for that specific child, blocking on self's wait queue in
/// between. Returns ESRCH where the original returns -ECHILD (no
/// equivalent constant in this kernel's error taxonomy).
func Waitpid(self *sched.Thread_t, p *Process_t, pid defs.Pid_t) (defs.Pid_t, int, defs.Err_t) {
	if pid == 0 || pid < -1 {
		return 0, 0, -defs.EINVAL
	}

	if pid == -1 {
		for {
			for _, ch := range p.Children() {
				if ch.GetState() == Dead {
					cpid, status := reap(p, ch)
					return cpid, status, 0
				}
			}
			if len(p.Children()) == 0 {
				return 0, 0, -defs.ESRCH
			}
			sched.SleepOn(self, p.Wait)
		}
	}

	var target *Process_t
	for _, ch := range p.Children() {
		if ch.Pid == pid {
			target = ch
			break
		}
	}
	if target == nil {
		return 0, 0, -defs.ESRCH
	}
	for {
		if target.GetState() == Dead {
			cpid, status := reap(p, target)
			return cpid, status, 0
		}
		sched.SleepOn(self, p.Wait)
	}
}
