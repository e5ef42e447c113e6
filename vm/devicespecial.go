package vm

import (
	"minikern/defs"
	"minikern/device"
	"minikern/mem"
	"minikern/sched"
)

/// DeviceSpecial_t backs a memory mapping of a character device (e.g.
/// mmap of /dev/zero); directory, link and lookup operations make no
/// sense for it and are handled above this layer (§4.6).
type DeviceSpecial_t struct {
	base_t
	Dev device.Device_i
}

/// NewDeviceSpecial creates a device-backed memory object with
/// reference count 1.
func NewDeviceSpecial(alloc mem.Allocator_i, dev device.Device_i) *DeviceSpecial_t {
	return &DeviceSpecial_t{base_t: newBase(alloc), Dev: dev}
}

func (d *DeviceSpecial_t) Ref() { d.ref() }

func (d *DeviceSpecial_t) Put() {
	d.mu.Lock()
	d.refcount--
	collapse := d.refcount == len(d.pages)
	if collapse {
		d.drainLocked()
	}
	d.mu.Unlock()
}

func (d *DeviceSpecial_t) Lookuppage(self *sched.Thread_t, index PgIndex, forwrite bool) (*Pframe_t, defs.Err_t) {
	return d.lookupOrFill(self, d, index, d.Fillpage)
}

func (d *DeviceSpecial_t) Fillpage(self *sched.Thread_t, pf *Pframe_t) defs.Err_t {
	data, err := d.Dev.Fillpage(pf.Index)
	if err != 0 {
		return err
	}
	n := copy(pf.Page[:], data)
	for i := n; i < len(pf.Page); i++ {
		pf.Page[i] = 0
	}
	return 0
}

func (d *DeviceSpecial_t) Dirtypage(pf *Pframe_t) defs.Err_t {
	pf.mu.Lock()
	pf.Dirty = true
	pf.mu.Unlock()
	return 0
}

func (d *DeviceSpecial_t) Cleanpage(pf *Pframe_t) defs.Err_t {
	pf.mu.Lock()
	pf.Dirty = false
	pf.mu.Unlock()
	return 0
}
