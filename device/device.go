// Package device implements the character/block device vtable (§6) and
// the pre-wired /dev entries boot creates: /dev/null, /dev/zero,
// /dev/tty0..2. The underlying tty/block drivers are out of scope (§1);
// this package is the interface the VFS and VM layers consume plus the
// small in-memory devices needed to make the system runnable end to end.
package device

import (
	"sync"

	"minikern/circbuf"
	"minikern/defs"
)

/// Kind distinguishes character from block devices; block devices reject
/// read/write through the special-file path per §4.6/§7.
type Kind int

const (
	Char Kind = iota
	Block
)

/// Device_i is the device vtable the kernel expects (§6): read, write,
/// and fillpage for device-backed mmap.
type Device_i interface {
	Kind() Kind
	Read(off int64, buf []byte) (int, defs.Err_t)
	Write(off int64, buf []byte) (int, defs.Err_t)
	// Fillpage returns the contents of page index for a memory object
	// backed by this device (e.g. /dev/zero always yields a zero page).
	Fillpage(index uint64) ([]byte, defs.Err_t)
}

var (
	mu      sync.Mutex
	devices = map[uint]Device_i{}
)

/// Register installs d under device id devid, overwriting any prior
/// registration — used at boot to wire up /dev/null, /dev/zero, ttys.
func Register(devid uint, d Device_i) {
	mu.Lock()
	defer mu.Unlock()
	devices[devid] = d
}

/// Lookup returns the device registered under devid, if any.
func Lookup(devid uint) (Device_i, bool) {
	mu.Lock()
	defer mu.Unlock()
	d, ok := devices[devid]
	return d, ok
}

// blockRejectRW is embedded by block devices so read/write through the
// special-file path uniformly return ENOSYS (§4.6, §7).
type blockRejectRW struct{}

func (blockRejectRW) Read(off int64, buf []byte) (int, defs.Err_t)  { return 0, -defs.ENOSYS }
func (blockRejectRW) Write(off int64, buf []byte) (int, defs.Err_t) { return 0, -defs.ENOSYS }

/// NullDevice implements /dev/null: reads report EOF, writes discard.
type NullDevice struct{}

func (NullDevice) Kind() Kind                           { return Char }
func (NullDevice) Read(off int64, buf []byte) (int, defs.Err_t)  { return 0, 0 }
func (NullDevice) Write(off int64, buf []byte) (int, defs.Err_t) { return len(buf), 0 }
func (NullDevice) Fillpage(index uint64) ([]byte, defs.Err_t)    { return make([]byte, 4096), 0 }

/// ZeroDevice implements /dev/zero: reads yield zero bytes, writes
/// discard, mmap pages are all-zero.
type ZeroDevice struct{}

func (ZeroDevice) Kind() Kind { return Char }
func (ZeroDevice) Read(off int64, buf []byte) (int, defs.Err_t) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), 0
}
func (ZeroDevice) Write(off int64, buf []byte) (int, defs.Err_t) { return len(buf), 0 }
func (ZeroDevice) Fillpage(index uint64) ([]byte, defs.Err_t)    { return make([]byte, 4096), 0 }

/// TtyDevice is a minimal in-memory stand-in for a tty line discipline:
/// writes echo into a ring buffer that reads drain from.
type TtyDevice struct {
	mu  sync.Mutex
	buf *circbuf.Circbuf_t
}

/// MkTtyDevice allocates a tty with the given ring-buffer capacity.
func MkTtyDevice(bufsz int) *TtyDevice {
	return &TtyDevice{buf: circbuf.MkCircbuf(bufsz)}
}

func (t *TtyDevice) Kind() Kind { return Char }

func (t *TtyDevice) Read(off int64, buf []byte) (int, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Copyout(buf), 0
}

func (t *TtyDevice) Write(off int64, buf []byte) (int, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Copyin(buf), 0
}

func (t *TtyDevice) Fillpage(index uint64) ([]byte, defs.Err_t) {
	return nil, -defs.ENOSYS
}

/// RawDisk is a block-device placeholder (§1: the underlying disk driver
/// and s5fs format are out of scope). Nothing in this module registers
/// or attaches it; mknod creates block-special vnodes without a device.
type RawDisk struct {
	blockRejectRW
}

func (RawDisk) Kind() Kind                        { return Block }
func (RawDisk) Fillpage(index uint64) ([]byte, defs.Err_t) { return nil, -defs.ENOSYS }

/// BootWire registers the pre-wired device set named in §6.
func BootWire() {
	Register(defs.Mkdev(0, defs.D_DEVNULL), NullDevice{})
	Register(defs.Mkdev(0, defs.D_DEVZERO), ZeroDevice{})
	Register(defs.Mkdev(0, defs.D_TTY0), MkTtyDevice(4096))
	Register(defs.Mkdev(0, defs.D_TTY1), MkTtyDevice(4096))
	Register(defs.Mkdev(0, defs.D_TTY2), MkTtyDevice(4096))
}
