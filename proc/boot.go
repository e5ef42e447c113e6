package proc

import (
	"github.com/sirupsen/logrus"

	"minikern/defs"
	"minikern/fd"
	"minikern/sched"
)

// Log is this package's structured logger, overridable in tests.
var Log = logrus.New()

// Idle and Init hold the bootstrap processes once Boot has run; nil
// beforehand.
var (
	Idle *Process_t
	Init *Process_t
)

/// Boot creates the idle process (pid 0, the parent of last resort
/// before init exists) and the init process (pid 1, which inherits
/// every orphan once a real parent dies), both rooted at "/" rather
/// than inheriting a cwd, mirroring proc.c's special-cased pid <= 2
/// path in proc_create. initEntry is run as init's thread; idle never
/// runs user code of its own, so it gets no thread.
func Boot(initEntry func(self *sched.Thread_t)) (idle, init *Process_t, err defs.Err_t) {
	idle, err = CreateProcess(nil)
	if err != 0 {
		return nil, nil, err
	}
	idle.Fd = fd.NewTable(fd.MkRootCwd())

	init, err = CreateProcess(idle)
	if err != 0 {
		return nil, nil, err
	}
	init.Fd = fd.NewTable(fd.MkRootCwd())

	thr := CreateThread(init)
	sched.Spawn(thr, initEntry)

	Idle, Init = idle, init
	Log.WithFields(logrus.Fields{"idle": idle.Pid, "init": init.Pid}).Info("boot: idle and init running")
	return idle, init, 0
}
