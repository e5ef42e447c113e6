package vfs

import (
	"github.com/sirupsen/logrus"

	"minikern/defs"
	"minikern/device"
)

// Log is this package's structured logger, overridable in tests.
var Log = logrus.New()

var root *Vnode_t

/// Root returns the global root vnode, creating it (along with the
/// pre-wired /dev tree of §6) on first call.
func Root() *Vnode_t {
	if root == nil {
		root = bootFs()
	}
	return root
}

func bootFs() *Vnode_t {
	device.BootWire()

	r := NewDir(0, nil, 0755)
	r.Parent = r

	dev := NewDir(0, r, 0755)
	r.children["dev"] = dev

	mkdev := func(name string, devid int) {
		d, ok := device.Lookup(defs.Mkdev(0, devid))
		if !ok {
			return
		}
		vn := NewDevice(0, VCHR, 0666, defs.Mkdev(0, devid), d)
		dev.children[name] = vn
	}
	mkdev("null", defs.D_DEVNULL)
	mkdev("zero", defs.D_DEVZERO)
	mkdev("tty0", defs.D_TTY0)
	mkdev("tty1", defs.D_TTY1)
	mkdev("tty2", defs.D_TTY2)

	Log.Info("vfs: root filesystem and /dev tree wired")
	return r
}

/// ResetForTests discards the cached root so a fresh in-memory
/// filesystem tree is built on the next Root() call. Test-only.
func ResetForTests() {
	root = nil
}
