// Package fd implements the per-process file-descriptor table and the
// syscall-level operations that dispatch through it onto the vfs
// layer: open, close, dup, dup2, read, write, lseek, getdent, stat,
// chdir, mkdir, rmdir, unlink, link, rename, mknod (§4.5). Grounded on
// original_source/kernel/fs/{open,vfs_syscall}.c for exact semantics.
package fd

import (
	"sync"

	"minikern/defs"
	"minikern/limits"
	"minikern/stat"
	"minikern/ustr"
	"minikern/vfs"
)

/// Dirent_t is a fixed-size directory-entry record, as getdent returns
/// it to the caller one at a time.
type Dirent_t struct {
	Ino  uint
	Name string
}

// DirentSize is the fixed record size getdent reports on success,
// standing in for sizeof(struct dirent) in the original (§4.5).
const DirentSize = 64

/// Table_t is a process's open-file table plus its current working
/// directory (§3's "per-process fd table").
type Table_t struct {
	mu  sync.Mutex
	fds []*File_t

	Cwd *Cwd_t
}

/// Cwd_t tracks a process's current working directory.
type Cwd_t struct {
	mu   sync.Mutex
	Vn   *vfs.Vnode_t
	Path ustr.Ustr
}

/// MkRootCwd constructs a Cwd_t rooted at "/".
func MkRootCwd() *Cwd_t {
	vn := vfs.Root()
	vn.Ref()
	return &Cwd_t{Vn: vn, Path: ustr.MkUstrRoot()}
}

/// NewCwdFrom copies parent's cwd, taking a new reference on its vnode,
/// for a newly created process,
/// matching proc_create's p_cwd inheritance for pid > 2 (proc.c).
func NewCwdFrom(parent *Cwd_t) *Cwd_t {
	parent.mu.Lock()
	vn := parent.Vn
	path := append(ustr.Ustr{}, parent.Path...)
	parent.mu.Unlock()
	vn.Ref()
	return &Cwd_t{Vn: vn, Path: path}
}

/// NewTable allocates an empty fd table inheriting cwd.
func NewTable(cwd *Cwd_t) *Table_t {
	return &Table_t{fds: make([]*File_t, limits.Syslimit.MaxFdsPerProc), Cwd: cwd}
}

// lowestFree returns the lowest unused slot index, or -1 (EMFILE) if
// the table is full.
func (t *Table_t) lowestFree() int {
	for i, f := range t.fds {
		if f == nil {
			return i
		}
	}
	return -1
}

// fget validates fdn against the table and returns the file with an
// added reference; every caller must fput it on every exit path.
func (t *Table_t) fget(fdn int) (*File_t, defs.Err_t) {
	t.mu.Lock()
	if fdn < 0 || fdn >= len(t.fds) || t.fds[fdn] == nil {
		t.mu.Unlock()
		return nil, -defs.EBADF
	}
	f := t.fds[fdn]
	t.mu.Unlock()
	f.fget()
	return f, 0
}

/// Open implements open(2): validates the access mode, resolves the
/// path (optionally creating it), rejects write-mode opens on
/// directories, and installs the result at the lowest free fd.
func (t *Table_t) Open(path ustr.Ustr, flags int) (int, defs.Err_t) {
	accmode := flags & O_ACCMODE
	if accmode != O_RDONLY && accmode != O_WRONLY && accmode != O_RDWR {
		return 0, -defs.EINVAL
	}

	t.mu.Lock()
	fdn := t.lowestFree()
	if fdn < 0 {
		t.mu.Unlock()
		return 0, -defs.EMFILE
	}
	t.fds[fdn] = &File_t{} // reserve the slot while we resolve the path
	t.mu.Unlock()

	t.Cwd.mu.Lock()
	cwd := t.Cwd.Vn
	t.Cwd.mu.Unlock()

	vn, err := vfs.OpenNamev(path, flags&O_CREAT != 0, nil, cwd)
	if err != 0 {
		t.mu.Lock()
		t.fds[fdn] = nil
		t.mu.Unlock()
		return 0, err
	}

	if vn.IsDir() && (accmode == O_WRONLY || accmode == O_RDWR) {
		vn.Put()
		t.mu.Lock()
		t.fds[fdn] = nil
		t.mu.Unlock()
		return 0, -defs.EISDIR
	}

	perms := 0
	if accmode == O_RDONLY || accmode == O_RDWR {
		perms |= FD_READ
	}
	if accmode == O_WRONLY || accmode == O_RDWR {
		perms |= FD_WRITE
	}

	f := newFile(vn, perms)
	if flags&O_APPEND != 0 {
		f.Pos = vn.Len()
	}

	t.mu.Lock()
	t.fds[fdn] = f
	t.mu.Unlock()
	return fdn, 0
}

/// Close implements close(2): clears the fd slot and releases the
/// table's own reference to the file.
func (t *Table_t) Close(fdn int) defs.Err_t {
	t.mu.Lock()
	if fdn < 0 || fdn >= len(t.fds) || t.fds[fdn] == nil {
		t.mu.Unlock()
		return -defs.EBADF
	}
	f := t.fds[fdn]
	t.fds[fdn] = nil
	t.mu.Unlock()
	f.fput()
	return 0
}

/// Dup implements dup(2): installs a new fd referencing the same File_t.
func (t *Table_t) Dup(fdn int) (int, defs.Err_t) {
	f, err := t.fget(fdn)
	if err != 0 {
		return 0, err
	}
	defer f.fput()

	t.mu.Lock()
	defer t.mu.Unlock()
	nfd := t.lowestFree()
	if nfd < 0 {
		return 0, -defs.EMFILE
	}
	f.fget()
	t.fds[nfd] = f
	return nfd, 0
}

/// Dup2 implements dup2(2): makes nfd refer to the same file as ofd,
/// closing nfd first if it is different and already in use. dup2(fd,fd)
/// is a no-op that just validates fd.
func (t *Table_t) Dup2(ofd, nfd int) (int, defs.Err_t) {
	if ofd == nfd {
		f, err := t.fget(ofd)
		if err != 0 {
			return 0, err
		}
		f.fput()
		return nfd, 0
	}

	f, err := t.fget(ofd)
	if err != 0 {
		return 0, err
	}
	defer f.fput()

	t.mu.Lock()
	if nfd < 0 || nfd >= len(t.fds) {
		t.mu.Unlock()
		return 0, -defs.EBADF
	}
	old := t.fds[nfd]
	f.fget()
	t.fds[nfd] = f
	t.mu.Unlock()
	if old != nil {
		old.fput()
	}
	return nfd, 0
}

/// Read implements read(2): dispatches to the vnode's read op,
/// rejecting directories and mode mismatch, and advances the position.
func (t *Table_t) Read(fdn int, buf []byte) (int, defs.Err_t) {
	f, err := t.fget(fdn)
	if err != 0 {
		return 0, err
	}
	defer f.fput()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Perms&FD_READ == 0 {
		return 0, -defs.EBADF
	}
	if f.Vnode.IsDir() {
		return 0, -defs.EISDIR
	}
	n, e := f.Vnode.Read(f.Pos, buf)
	if e != 0 {
		return 0, e
	}
	f.Pos += n
	return n, 0
}

/// VnodeForMmap returns fdn's vnode with an added reference for a
/// memory mapping to hold independently of the descriptor's own
/// lifetime, plus the descriptor's open mode (so mmap can reject a
/// write-shared mapping on a read-only descriptor).
func (t *Table_t) VnodeForMmap(fdn int) (*vfs.Vnode_t, int, defs.Err_t) {
	f, err := t.fget(fdn)
	if err != 0 {
		return nil, 0, err
	}
	defer f.fput()

	f.mu.Lock()
	vn := f.Vnode
	perms := f.Perms
	f.mu.Unlock()

	vn.Ref()
	return vn, perms, 0
}

/// Write implements write(2) at the descriptor's current position.
/// O_APPEND only places the position at the file's length when the file
/// is opened; Write does not move to the current length before each
/// write, so in append mode it overwrites data another descriptor has
/// appended since.
func (t *Table_t) Write(fdn int, buf []byte) (int, defs.Err_t) {
	f, err := t.fget(fdn)
	if err != 0 {
		return 0, err
	}
	defer f.fput()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Perms&FD_WRITE == 0 {
		return 0, -defs.EBADF
	}
	if f.Vnode.IsDir() {
		return 0, -defs.EISDIR
	}
	n, e := f.Vnode.Write(f.Pos, buf)
	if e != 0 {
		return 0, e
	}
	f.Pos += n
	return n, 0
}

/// Lseek implements lseek(2) over {SEEK_SET, SEEK_CUR, SEEK_END}.
func (t *Table_t) Lseek(fdn, off, whence int) (int, defs.Err_t) {
	f, err := t.fget(fdn)
	if err != 0 {
		return 0, err
	}
	defer f.fput()

	f.mu.Lock()
	defer f.mu.Unlock()

	var newpos int
	switch whence {
	case SEEK_SET:
		newpos = off
	case SEEK_CUR:
		newpos = f.Pos + off
	case SEEK_END:
		newpos = f.Vnode.Len() + off
	default:
		return 0, -defs.EINVAL
	}
	if newpos < 0 {
		return 0, -defs.EINVAL
	}
	f.Pos = newpos
	return newpos, 0
}

/// Getdent implements getdent(2): dispatches to readdir, returning
/// DirentSize bytes consumed per entry or 0 at end of directory.
func (t *Table_t) Getdent(fdn int, out *Dirent_t) (int, defs.Err_t) {
	f, err := t.fget(fdn)
	if err != 0 {
		return 0, err
	}
	defer f.fput()

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.Vnode.IsDir() {
		return 0, -defs.ENOTDIR
	}
	name, ino, nextoff, eof, e := f.Vnode.Readdir(f.Pos)
	if e != 0 {
		return 0, e
	}
	if eof {
		return 0, 0
	}
	f.Pos = nextoff
	out.Name = name
	out.Ino = ino
	return DirentSize, 0
}

/// Stat implements stat(2) by resolving path and dispatching to the
/// vnode's stat op.
func (t *Table_t) Stat(path ustr.Ustr, st *stat.Stat_t) defs.Err_t {
	t.Cwd.mu.Lock()
	cwd := t.Cwd.Vn
	t.Cwd.mu.Unlock()

	vn, err := vfs.OpenNamev(path, false, nil, cwd)
	if err != 0 {
		return err
	}
	defer vn.Put()
	return vn.Stat(st)
}

/// Chdir implements chdir(2): resolves path to a directory and installs
/// it as cwd, releasing the prior one.
func (t *Table_t) Chdir(path ustr.Ustr) defs.Err_t {
	t.Cwd.mu.Lock()
	cwd := t.Cwd.Vn
	t.Cwd.mu.Unlock()

	vn, err := vfs.OpenNamev(path, false, nil, cwd)
	if err != 0 {
		return err
	}
	if !vn.IsDir() {
		vn.Put()
		return -defs.ENOTDIR
	}

	t.Cwd.mu.Lock()
	old := t.Cwd.Vn
	t.Cwd.Vn = vn
	t.Cwd.Path = t.Cwd.Canonicalize(path)
	t.Cwd.mu.Unlock()
	old.Put()
	return 0
}

/// Mkdir implements mkdir(2).
func (t *Table_t) Mkdir(path ustr.Ustr) defs.Err_t {
	dir, name, err := t.resolveParent(path)
	if err != 0 {
		return err
	}
	defer dir.Put()
	if len(name) == 0 {
		return -defs.EEXIST
	}
	_, err = dir.Mkdir(name)
	return err
}

/// Rmdir implements rmdir(2). Rmdir of "." is rejected at the
/// directory-vnode-op level.
func (t *Table_t) Rmdir(path ustr.Ustr) defs.Err_t {
	dir, name, err := t.resolveParent(path)
	if err != 0 {
		return err
	}
	defer dir.Put()
	if len(name) == 0 {
		return -defs.EINVAL
	}
	return dir.Rmdir(name)
}

/// Unlink implements unlink(2).
func (t *Table_t) Unlink(path ustr.Ustr) defs.Err_t {
	dir, name, err := t.resolveParent(path)
	if err != 0 {
		return err
	}
	defer dir.Put()
	if len(name) == 0 {
		return -defs.EPERM
	}
	return dir.Unlink(name)
}

/// Link implements link(2): oldpath must already exist; newpath's
/// parent directory receives a new entry pointing at the same vnode.
/// Fails with "cross-device" across filesystems and "not permitted"
/// if oldpath is a directory.
func (t *Table_t) Link(oldpath, newpath ustr.Ustr) defs.Err_t {
	t.Cwd.mu.Lock()
	cwd := t.Cwd.Vn
	t.Cwd.mu.Unlock()

	target, err := vfs.OpenNamev(oldpath, false, nil, cwd)
	if err != 0 {
		return err
	}
	defer target.Put()

	dir, name, err := t.resolveParent(newpath)
	if err != 0 {
		return err
	}
	defer dir.Put()
	if len(name) == 0 {
		return -defs.EEXIST
	}
	return dir.Link(name, target)
}

/// Rename implements rename(2) as link-then-unlink (non-atomic, per
/// original_source's own acknowledged design).
func (t *Table_t) Rename(oldpath, newpath ustr.Ustr) defs.Err_t {
	if err := t.Link(oldpath, newpath); err != 0 {
		return err
	}
	return t.Unlink(oldpath)
}

/// Mknod implements mknod(2), accepting only character/block modes.
func (t *Table_t) Mknod(path ustr.Ustr, kind vfs.Kind, rdev uint) defs.Err_t {
	if kind != vfs.VCHR && kind != vfs.VBLK {
		return -defs.EINVAL
	}
	dir, name, err := t.resolveParent(path)
	if err != 0 {
		return err
	}
	defer dir.Put()
	if len(name) == 0 {
		return -defs.EEXIST
	}
	_, err = dir.Mknod(name, kind, rdev)
	return err
}

func (t *Table_t) resolveParent(path ustr.Ustr) (*vfs.Vnode_t, ustr.Ustr, defs.Err_t) {
	t.Cwd.mu.Lock()
	cwd := t.Cwd.Vn
	t.Cwd.mu.Unlock()
	return vfs.DirNamev(path, nil, cwd)
}

/// Canonicalize returns an absolute p unchanged and otherwise joins p
/// onto cwd.Path with a "/". It does not resolve "." or ".."
/// components; they are kept in the result as written.
func (c *Cwd_t) Canonicalize(p ustr.Ustr) ustr.Ustr {
	if p.IsAbsolute() {
		return p
	}
	full := append(append(ustr.Ustr{}, c.Path...), '/')
	return append(full, p...)
}

/// CloneForFork duplicates every open file descriptor (incrementing
/// each file's refcount) and the cwd reference, for fork(2) (§4.8 step 4).
func (t *Table_t) CloneForFork() *Table_t {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Cwd.mu.Lock()
	cwdVn := t.Cwd.Vn
	cwdPath := append(ustr.Ustr{}, t.Cwd.Path...)
	t.Cwd.mu.Unlock()
	cwdVn.Ref()

	nt := &Table_t{fds: make([]*File_t, len(t.fds)), Cwd: &Cwd_t{Vn: cwdVn, Path: cwdPath}}
	for i, f := range t.fds {
		if f == nil {
			continue
		}
		f.fget()
		nt.fds[i] = f
	}
	return nt
}

/// CloseAll closes every open descriptor and releases the cwd
/// reference, used by proc_cleanup (§4.3).
func (t *Table_t) CloseAll() {
	t.mu.Lock()
	fds := t.fds
	t.fds = make([]*File_t, len(fds))
	t.mu.Unlock()
	for _, f := range fds {
		if f != nil {
			f.fput()
		}
	}
	t.Cwd.mu.Lock()
	cwd := t.Cwd.Vn
	t.Cwd.Vn = nil
	t.Cwd.mu.Unlock()
	if cwd != nil {
		cwd.Put()
	}
}
