package vfs

import (
	"minikern/defs"
	"minikern/limits"
	"minikern/ustr"
)

/// Lookup dispatches to dir's lookup op (§4.4). On success out carries
/// one added reference.
func Lookup(dir *Vnode_t, name ustr.Ustr) (*Vnode_t, defs.Err_t) {
	if len(name) > limits.Syslimit.MaxNameLen {
		return nil, -defs.ENAMETOOLONG
	}
	if dir.ops.Lookup == nil {
		if dir.IsDir() {
			return nil, -defs.ENOENT
		}
		return nil, -defs.ENOTDIR
	}
	return dir.ops.Lookup(dir, name)
}

/// DirNamev walks path component by component, yielding the parent
/// directory vnode, the final component (name, possibly empty for a
/// trailing slash), per original_source/kernel/fs/namev.c's dir_namev.
/// The returned vnode carries one added reference.
func DirNamev(path ustr.Ustr, base, cwd *Vnode_t) (dir *Vnode_t, name ustr.Ustr, err defs.Err_t) {
	if len(path) == 0 {
		return nil, nil, -defs.EINVAL
	}

	var cur *Vnode_t
	if path.IsAbsolute() {
		cur = Root()
	} else if base != nil {
		cur = base
	} else {
		cur = cwd
	}
	cur.Ref()

	s := 0
	i := 0
	var compStart, compLen int
	for {
		if i == len(path) {
			compStart = s
			compLen = i - s
			break
		}
		if path[i] == '/' {
			segLen := i - s
			if segLen > 0 {
				if segLen > limits.Syslimit.MaxNameLen {
					cur.Put()
					return nil, nil, -defs.ENAMETOOLONG
				}
				next, e := Lookup(cur, path[s:i])
				cur.Put()
				if e != 0 {
					return nil, nil, e
				}
				cur = next
			}
			for i+1 < len(path) && path[i+1] == '/' {
				i++
			}
			s = i + 1
		}
		i++
	}

	if compLen > limits.Syslimit.MaxNameLen {
		cur.Put()
		return nil, nil, -defs.ENAMETOOLONG
	}

	return cur, path[compStart : compStart+compLen], 0
}

/// OpenNamev resolves path to a vnode for open(2), optionally creating
/// it when creat is set, per original_source/kernel/fs/namev.c's
/// open_namev.
func OpenNamev(path ustr.Ustr, creat bool, base, cwd *Vnode_t) (*Vnode_t, defs.Err_t) {
	dir, name, err := DirNamev(path, base, cwd)
	if err != 0 {
		return nil, err
	}

	if len(name) == 0 {
		if !dir.IsDir() {
			dir.Put()
			return nil, -defs.ENOTDIR
		}
		return dir, 0
	}

	vn, err := Lookup(dir, name)
	if err == 0 {
		dir.Put()
		return vn, 0
	}

	if err == -defs.ENOENT && creat {
		if dir.ops.Create == nil {
			dir.Put()
			return nil, -defs.ENOSYS
		}
		vn, err = dir.ops.Create(dir, name)
		dir.Put()
		return vn, err
	}

	dir.Put()
	return nil, err
}
