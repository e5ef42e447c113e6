package vfs

import (
	"minikern/defs"
	"minikern/mem"
	"minikern/vm"
)

// devOps implements a device-special vnode: read/write/mmap delegate
// to the device table, directory/link/lookup operations are absent
// (§4.6). Block devices reject read/write through this path.
var devOps = Ops{
	Read:  devRead,
	Write: devWrite,
	Mmap:  devMmap,
	Stat:  vnodeStat,
}

func devRead(v *Vnode_t, off int, buf []byte) (int, defs.Err_t) {
	if v.Kind == VBLK {
		return 0, -defs.ENOSYS
	}
	return v.Dev.Read(int64(off), buf)
}

func devWrite(v *Vnode_t, off int, buf []byte) (int, defs.Err_t) {
	if v.Kind == VBLK {
		return 0, -defs.ENOSYS
	}
	return v.Dev.Write(int64(off), buf)
}

func devMmap(v *Vnode_t, shared bool) (MmapObj_i, defs.Err_t) {
	if v.Kind == VBLK {
		return nil, -defs.ENOSYS
	}
	return vm.NewDeviceSpecial(mem.DefaultAllocator(), v.Dev), 0
}
