// Package vfs implements pathname resolution and the in-memory
// filesystem tree: vnodes, the per-type operations vtable, lookup,
// dir_namev and open_namev. Grounded on
// original_source/kernel/fs/namev.c and original_source/kernel/fs/vfs_syscall.c
// for exact reference-counting and error semantics; directory and
// regular-file storage themselves are an in-memory tree since the
// on-disk format is out of scope.
package vfs

import (
	"sync"
	"sync/atomic"

	"minikern/defs"
	"minikern/device"
	"minikern/mem"
	"minikern/stat"
	"minikern/ustr"
)

/// Kind tags which variant of vnode this is; it decides which Ops
/// entries are meaningful (§9's "tagged-variant plus a fixed operation
/// set with optional entries" design note).
type Kind int

const (
	VDIR Kind = iota
	VREG
	VCHR
	VBLK
)

/// Ops is a vnode's operations vtable. Every entry is optional; a nil
/// entry means "not supported for this variant" and the caller maps
/// that to the appropriate error kind (§4.4).
type Ops struct {
	Lookup  func(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t)
	Create  func(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t)
	Mknod   func(dir *Vnode_t, name ustr.Ustr, kind Kind, rdev uint) (*Vnode_t, defs.Err_t)
	Mkdir   func(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t)
	Rmdir   func(dir *Vnode_t, name ustr.Ustr) defs.Err_t
	Link    func(dir *Vnode_t, name ustr.Ustr, target *Vnode_t) defs.Err_t
	Unlink  func(dir *Vnode_t, name ustr.Ustr) defs.Err_t
	Readdir func(dir *Vnode_t, off int) (name string, nextoff int, eof bool, err defs.Err_t)
	Read    func(v *Vnode_t, off int, buf []byte) (int, defs.Err_t)
	Write   func(v *Vnode_t, off int, buf []byte) (int, defs.Err_t)
	Mmap    func(v *Vnode_t, shared bool) (MmapObj_i, defs.Err_t)
	Stat    func(v *Vnode_t, st *stat.Stat_t) defs.Err_t
}

// MmapObj_i is the narrow slice of vm.Mmobj_i that the Ops vtable's
// Mmap entry returns. The objects handed back are vm objects (vfs
// imports vm for them); the fd/mmap glue layer upcasts this to the real
// vm.Mmobj_i.
type MmapObj_i interface {
	Ref()
	Put()
}

/// Vnode_t is an in-memory handle for a filesystem object (§3). It is
/// reference-counted; every acquisition must be paired with a Put.
type Vnode_t struct {
	mu       sync.Mutex
	refcount int

	Fsid int /// identifies which filesystem this vnode belongs to (cross-device checks)
	Kind Kind
	Mode uint /// permission bits, combined with the stat.IFxxx kind bit on Stat
	Ino  uint

	Parent *Vnode_t /// nil only for the global root

	// Directory content, valid when Kind == VDIR.
	children map[string]*Vnode_t

	// Regular-file content, valid when Kind == VREG. Guarded by mu; the
	// backing memory object (vm.FileBacked_t) pages through vnodeBackend
	// below, which reads/writes directly into this slice.
	data []byte

	// Device-special content, valid when Kind == VCHR/VBLK.
	Dev  device.Device_i
	Rdev uint

	ops *Ops
}

var nextIno uint64

func allocIno() uint {
	// runtime vnode creation holds only the parent directory's mu, so
	// creations under different directories can race; the counter is
	// advanced atomically. Numbers start at 1.
	return uint(atomic.AddUint64(&nextIno, 1))
}

/// NewDir allocates a fresh, empty directory vnode with refcount 1.
func NewDir(fsid int, parent *Vnode_t, mode uint) *Vnode_t {
	v := &Vnode_t{
		Fsid: fsid, Kind: VDIR, Mode: mode, Ino: allocIno(),
		Parent: parent, children: make(map[string]*Vnode_t),
		refcount: 1,
	}
	v.ops = &dirOps
	return v
}

/// NewReg allocates a fresh, empty regular-file vnode with refcount 1.
func NewReg(fsid int, mode uint) *Vnode_t {
	v := &Vnode_t{Fsid: fsid, Kind: VREG, Mode: mode, Ino: allocIno(), refcount: 1}
	v.ops = &regOps
	return v
}

/// NewDevice allocates a device-special vnode wrapping dev, with refcount 1.
func NewDevice(fsid int, kind Kind, mode, rdev uint, dev device.Device_i) *Vnode_t {
	v := &Vnode_t{Fsid: fsid, Kind: kind, Mode: mode, Ino: allocIno(), Dev: dev, Rdev: rdev, refcount: 1}
	v.ops = &devOps
	return v
}

/// Ref adds a reference to v.
func (v *Vnode_t) Ref() {
	v.mu.Lock()
	v.refcount++
	v.mu.Unlock()
}

/// Put releases a reference to v. The in-memory tree keeps vnodes alive
/// as long as a directory entry or open fd references them; dropping to
/// zero here simply means no live handle remains (this implementation
/// does not reclaim: there is no on-disk eviction to perform).
func (v *Vnode_t) Put() {
	v.mu.Lock()
	v.refcount--
	v.mu.Unlock()
}

/// RefCount returns v's current reference count, for tests.
func (v *Vnode_t) RefCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.refcount
}

/// IsDir reports whether v is a directory.
func (v *Vnode_t) IsDir() bool { return v.Kind == VDIR }

/// Len returns the current content length in bytes.
func (v *Vnode_t) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.data)
}

/// Read dispatches to v's read op.
func (v *Vnode_t) Read(off int, buf []byte) (int, defs.Err_t) {
	if v.ops.Read == nil {
		return 0, -defs.ENOSYS
	}
	return v.ops.Read(v, off, buf)
}

/// Write dispatches to v's write op.
func (v *Vnode_t) Write(off int, buf []byte) (int, defs.Err_t) {
	if v.ops.Write == nil {
		return 0, -defs.ENOSYS
	}
	return v.ops.Write(v, off, buf)
}

/// Mmap dispatches to v's mmap op.
func (v *Vnode_t) Mmap(shared bool) (MmapObj_i, defs.Err_t) {
	if v.ops.Mmap == nil {
		return nil, -defs.ENOSYS
	}
	return v.ops.Mmap(v, shared)
}

/// Stat dispatches to v's stat op.
func (v *Vnode_t) Stat(st *stat.Stat_t) defs.Err_t {
	if v.ops.Stat == nil {
		return -defs.ENOSYS
	}
	return v.ops.Stat(v, st)
}

/// Mkdir dispatches to v's mkdir op (v must be a directory).
func (v *Vnode_t) Mkdir(name ustr.Ustr) (*Vnode_t, defs.Err_t) {
	if v.ops.Mkdir == nil {
		return nil, -defs.ENOTDIR
	}
	return v.ops.Mkdir(v, name)
}

/// Rmdir dispatches to v's rmdir op.
func (v *Vnode_t) Rmdir(name ustr.Ustr) defs.Err_t {
	if v.ops.Rmdir == nil {
		return -defs.ENOTDIR
	}
	return v.ops.Rmdir(v, name)
}

/// Unlink dispatches to v's unlink op.
func (v *Vnode_t) Unlink(name ustr.Ustr) defs.Err_t {
	if v.ops.Unlink == nil {
		return -defs.ENOTDIR
	}
	return v.ops.Unlink(v, name)
}

/// Link dispatches to v's link op, installing target under name.
func (v *Vnode_t) Link(name ustr.Ustr, target *Vnode_t) defs.Err_t {
	if v.ops.Link == nil {
		return -defs.ENOTDIR
	}
	return v.ops.Link(v, name, target)
}

/// Mknod dispatches to v's mknod op.
func (v *Vnode_t) Mknod(name ustr.Ustr, kind Kind, rdev uint) (*Vnode_t, defs.Err_t) {
	if v.ops.Mknod == nil {
		return nil, -defs.ENOTDIR
	}
	return v.ops.Mknod(v, name, kind, rdev)
}

/// Readdir dispatches to v's readdir op, additionally resolving the
/// returned name's inode number for getdent's Dirent_t.
func (v *Vnode_t) Readdir(off int) (name string, ino uint, nextoff int, eof bool, err defs.Err_t) {
	if v.ops.Readdir == nil {
		return "", 0, off, true, -defs.ENOTDIR
	}
	name, nextoff, eof, err = v.ops.Readdir(v, off)
	if err != 0 || eof {
		return name, 0, nextoff, eof, err
	}
	child, e := dirLookup(v, ustr.Ustr(name))
	if e == 0 {
		ino = child.Ino
		child.Put()
	}
	return name, ino, nextoff, eof, 0
}

func (v *Vnode_t) statMode() uint {
	switch v.Kind {
	case VDIR:
		return stat.IFDIR | v.Mode
	case VCHR:
		return stat.IFCHR | v.Mode
	case VBLK:
		return stat.IFBLK | v.Mode
	default:
		return stat.IFREG | v.Mode
	}
}

// vnodeBackend adapts a regular-file vnode's byte content to
// vm.Backend_i so a FileBacked_t memory object can page through it.
// Kept deliberately page-granular and allocation-light: ReadPage copies
// out at most a page (a short slice at EOF, nil past it; the caller
// zero-fills the rest), WritePage copies in and grows the file if
// necessary.
type vnodeBackend struct {
	v *Vnode_t
}

func (b *vnodeBackend) ReadPage(index uint64) ([]byte, defs.Err_t) {
	b.v.mu.Lock()
	defer b.v.mu.Unlock()
	start := int(index) * mem.PGSIZE
	if start >= len(b.v.data) {
		return nil, 0
	}
	end := start + mem.PGSIZE
	if end > len(b.v.data) {
		end = len(b.v.data)
	}
	out := make([]byte, end-start)
	copy(out, b.v.data[start:end])
	return out, 0
}

func (b *vnodeBackend) WritePage(index uint64, page []byte) defs.Err_t {
	b.v.mu.Lock()
	defer b.v.mu.Unlock()
	start := int(index) * mem.PGSIZE
	need := start + len(page)
	if need > len(b.v.data) {
		grown := make([]byte, need)
		copy(grown, b.v.data)
		b.v.data = grown
	}
	copy(b.v.data[start:start+len(page)], page)
	return 0
}
