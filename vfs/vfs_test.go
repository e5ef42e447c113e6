package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/defs"
	"minikern/ustr"
)

func freshRoot(t *testing.T) *Vnode_t {
	t.Helper()
	ResetForTests()
	return Root()
}

func TestOpenNamevCreatesThenFindsRegularFile(t *testing.T) {
	root := freshRoot(t)

	vn, err := OpenNamev(ustr.Ustr("/greeting"), true, nil, root)
	require.Equal(t, 0, int(err))
	require.NotNil(t, vn)
	assert.False(t, vn.IsDir())
	vn.Put()

	vn2, err := OpenNamev(ustr.Ustr("/greeting"), false, nil, root)
	require.Equal(t, 0, int(err))
	assert.False(t, vn2.IsDir())
	vn2.Put()
}

func TestOpenNamevMissingWithoutCreatIsENOENT(t *testing.T) {
	root := freshRoot(t)
	_, err := OpenNamev(ustr.Ustr("/nope"), false, nil, root)
	assert.Equal(t, int(-defs.ENOENT), int(err))
}

func TestMkdirThenLookupThenRmdir(t *testing.T) {
	root := freshRoot(t)

	sub, err := root.Mkdir(ustr.Ustr("sub"))
	require.Equal(t, 0, int(err))
	require.True(t, sub.IsDir())

	found, err := Lookup(root, ustr.Ustr("sub"))
	require.Equal(t, 0, int(err))
	assert.Same(t, sub, found)
	found.Put()

	err = root.Rmdir(ustr.Ustr("sub"))
	require.Equal(t, 0, int(err))

	_, err = Lookup(root, ustr.Ustr("sub"))
	assert.Equal(t, int(-defs.ENOENT), int(err))
	sub.Put()
}

func TestRmdirOnNonEmptyDirIsENOTEMPTY(t *testing.T) {
	root := freshRoot(t)
	sub, err := root.Mkdir(ustr.Ustr("sub"))
	require.Equal(t, 0, int(err))
	defer sub.Put()

	child, err := OpenNamev(ustr.Ustr("/sub/f"), true, nil, root)
	require.Equal(t, 0, int(err))
	defer child.Put()

	err = root.Rmdir(ustr.Ustr("sub"))
	assert.Equal(t, int(-defs.ENOTEMPTY), int(err))
}

func TestDirNamevResolvesParentAndFinalComponent(t *testing.T) {
	root := freshRoot(t)
	sub, err := root.Mkdir(ustr.Ustr("sub"))
	require.Equal(t, 0, int(err))
	defer sub.Put()

	dir, name, err := DirNamev(ustr.Ustr("/sub/file.txt"), nil, root)
	require.Equal(t, 0, int(err))
	assert.Same(t, sub, dir)
	assert.Equal(t, "file.txt", name.String())
	dir.Put()
}

func TestLinkThenUnlinkDropsDirectoryEntryNotVnode(t *testing.T) {
	root := freshRoot(t)
	vn, err := OpenNamev(ustr.Ustr("/orig"), true, nil, root)
	require.Equal(t, 0, int(err))

	err = root.Link(ustr.Ustr("alias"), vn)
	require.Equal(t, 0, int(err))

	aliased, err := Lookup(root, ustr.Ustr("alias"))
	require.Equal(t, 0, int(err))
	assert.Same(t, vn, aliased)
	aliased.Put()

	err = root.Unlink(ustr.Ustr("alias"))
	require.Equal(t, 0, int(err))

	_, err = Lookup(root, ustr.Ustr("alias"))
	assert.Equal(t, int(-defs.ENOENT), int(err))

	stillThere, err := Lookup(root, ustr.Ustr("orig"))
	require.Equal(t, 0, int(err))
	assert.Same(t, vn, stillThere)
	stillThere.Put()
	vn.Put()
}

func TestUnlinkOnDirectoryIsEPERM(t *testing.T) {
	root := freshRoot(t)
	sub, err := root.Mkdir(ustr.Ustr("sub"))
	require.Equal(t, 0, int(err))
	defer sub.Put()

	err = root.Unlink(ustr.Ustr("sub"))
	assert.Equal(t, int(-defs.EPERM), int(err))

	stillThere, err := Lookup(root, ustr.Ustr("sub"))
	require.Equal(t, 0, int(err))
	assert.Same(t, sub, stillThere)
	stillThere.Put()
}

func TestLookupDotAndDotDot(t *testing.T) {
	root := freshRoot(t)
	sub, err := root.Mkdir(ustr.Ustr("sub"))
	require.Equal(t, 0, int(err))
	defer sub.Put()

	dot, err := Lookup(sub, ustr.MkUstrDot())
	require.Equal(t, 0, int(err))
	assert.Same(t, sub, dot)
	dot.Put()

	dotdot, err := Lookup(sub, ustr.DotDot)
	require.Equal(t, 0, int(err))
	assert.Same(t, root, dotdot)
	dotdot.Put()
}
