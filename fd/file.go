package fd

import (
	"sync"

	"minikern/vfs"
)

/// File_t is an open-file object shared by every descriptor that
/// dup'd from the same open() (§4.5); it is reference-counted
/// independently of the vnode it wraps.
type File_t struct {
	mu    sync.Mutex
	Vnode *vfs.Vnode_t
	Perms int /// FD_READ and/or FD_WRITE
	Pos   int

	refcount int
}

func newFile(vn *vfs.Vnode_t, perms int) *File_t {
	return &File_t{Vnode: vn, Perms: perms, refcount: 1}
}

// fget adds a reference to f, as every fd-table operation must before
// touching it and fput before returning (§4.5's fget/fput discipline).
func (f *File_t) fget() {
	f.mu.Lock()
	f.refcount++
	f.mu.Unlock()
}

// fput releases a reference; once the last reference is gone the
// underlying vnode reference is released too.
func (f *File_t) fput() {
	f.mu.Lock()
	f.refcount--
	drop := f.refcount == 0
	f.mu.Unlock()
	if drop {
		f.Vnode.Put()
	}
}
