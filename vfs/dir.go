package vfs

import (
	"sort"

	"minikern/defs"
	"minikern/stat"
	"minikern/ustr"
)

// dirOps implements the directory-vnode operations. Grounded on
// original_source/kernel/fs/namev.c's lookup() contract: "." and ".."
// are resolved here rather than stored as real entries, matching the
// in-memory tree's parent pointer.
var dirOps = Ops{
	Lookup:  dirLookup,
	Create:  dirCreate,
	Mknod:   dirMknod,
	Mkdir:   dirMkdir,
	Rmdir:   dirRmdir,
	Link:    dirLink,
	Unlink:  dirUnlink,
	Readdir: dirReaddir,
	Stat:    vnodeStat,
}

func dirLookup(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t) {
	if name.Isdot() {
		dir.Ref()
		return dir, 0
	}
	if name.Isdotdot() {
		p := dir.Parent
		if p == nil {
			p = dir
		}
		p.Ref()
		return p, 0
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	child, ok := dir.children[name.String()]
	if !ok {
		return nil, -defs.ENOENT
	}
	child.Ref()
	return child, 0
}

func dirCreate(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t) {
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if _, ok := dir.children[name.String()]; ok {
		return nil, -defs.EEXIST
	}
	child := NewReg(dir.Fsid, 0644)
	dir.children[name.String()] = child
	child.Ref()
	return child, 0
}

func dirMknod(dir *Vnode_t, name ustr.Ustr, kind Kind, rdev uint) (*Vnode_t, defs.Err_t) {
	if kind != VCHR && kind != VBLK {
		return nil, -defs.EINVAL
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if _, ok := dir.children[name.String()]; ok {
		return nil, -defs.EEXIST
	}
	child := &Vnode_t{Fsid: dir.Fsid, Kind: kind, Mode: 0600, Ino: allocIno(), Rdev: rdev, refcount: 1}
	child.ops = &devOps
	dir.children[name.String()] = child
	child.Ref()
	return child, 0
}

func dirMkdir(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t) {
	if name.Isdot() || name.Isdotdot() {
		return nil, -defs.EEXIST
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if _, ok := dir.children[name.String()]; ok {
		return nil, -defs.EEXIST
	}
	child := NewDir(dir.Fsid, dir, 0755)
	dir.children[name.String()] = child
	child.Ref()
	return child, 0
}

func dirRmdir(dir *Vnode_t, name ustr.Ustr) defs.Err_t {
	if name.Isdot() {
		return -defs.EINVAL
	}
	if name.Isdotdot() {
		return -defs.ENOTEMPTY
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	child, ok := dir.children[name.String()]
	if !ok {
		return -defs.ENOENT
	}
	if child.Kind != VDIR {
		return -defs.ENOTDIR
	}
	child.mu.Lock()
	empty := len(child.children) == 0
	child.mu.Unlock()
	if !empty {
		return -defs.ENOTEMPTY
	}
	delete(dir.children, name.String())
	return 0
}

func dirLink(dir *Vnode_t, name ustr.Ustr, target *Vnode_t) defs.Err_t {
	if target.Kind == VDIR {
		return -defs.EPERM
	}
	if target.Fsid != dir.Fsid {
		return -defs.EXDEV
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	if _, ok := dir.children[name.String()]; ok {
		return -defs.EEXIST
	}
	target.Ref()
	dir.children[name.String()] = target
	return 0
}

func dirUnlink(dir *Vnode_t, name ustr.Ustr) defs.Err_t {
	if name.Isdot() || name.Isdotdot() {
		return -defs.EPERM
	}
	dir.mu.Lock()
	defer dir.mu.Unlock()
	child, ok := dir.children[name.String()]
	if !ok {
		return -defs.ENOENT
	}
	if child.Kind == VDIR {
		return -defs.EPERM
	}
	delete(dir.children, name.String())
	child.Put()
	return 0
}

// dirReaddir presents a deterministic (sorted) fixed-record iteration
// by integer offset, so getdent can resume across calls.
func dirReaddir(dir *Vnode_t, off int) (string, int, bool, defs.Err_t) {
	dir.mu.Lock()
	names := make([]string, 0, len(dir.children))
	for n := range dir.children {
		names = append(names, n)
	}
	dir.mu.Unlock()
	sort.Strings(names)
	if off >= len(names) {
		return "", off, true, 0
	}
	return names[off], off + 1, false, 0
}

func vnodeStat(v *Vnode_t, st *stat.Stat_t) defs.Err_t {
	st.Wdev(uint(v.Fsid))
	st.Wino(v.Ino)
	st.Wmode(v.statMode())
	st.Wsize(uint(v.Len()))
	st.Wrdev(v.Rdev)
	return 0
}
