package fd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/defs"
	"minikern/ustr"
	"minikern/vfs"
)

func freshTable(t *testing.T) *Table_t {
	t.Helper()
	vfs.ResetForTests()
	return NewTable(MkRootCwd())
}

func TestOpenWriteReadRoundTrips(t *testing.T) {
	tbl := freshTable(t)

	fdn, err := tbl.Open(ustr.Ustr("/note"), O_RDWR|O_CREAT)
	require.Equal(t, 0, int(err))

	n, werr := tbl.Write(fdn, []byte("hello"))
	require.Equal(t, 0, int(werr))
	assert.Equal(t, 5, n)

	_, serr := tbl.Lseek(fdn, 0, SEEK_SET)
	require.Equal(t, 0, int(serr))

	buf := make([]byte, 5)
	n, rerr := tbl.Read(fdn, buf)
	require.Equal(t, 0, int(rerr))
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
}

func TestReadOnWriteOnlyDescriptorIsEBADF(t *testing.T) {
	tbl := freshTable(t)
	fdn, err := tbl.Open(ustr.Ustr("/note"), O_WRONLY|O_CREAT)
	require.Equal(t, 0, int(err))

	_, rerr := tbl.Read(fdn, make([]byte, 1))
	assert.Equal(t, int(-defs.EBADF), int(rerr))
}

func TestCloseThenOperateIsEBADF(t *testing.T) {
	tbl := freshTable(t)
	fdn, err := tbl.Open(ustr.Ustr("/note"), O_RDWR|O_CREAT)
	require.Equal(t, 0, int(err))

	require.Equal(t, 0, int(tbl.Close(fdn)))
	_, rerr := tbl.Read(fdn, make([]byte, 1))
	assert.Equal(t, int(-defs.EBADF), int(rerr))
}

func TestDupSharesPositionThroughSameFile(t *testing.T) {
	tbl := freshTable(t)
	fdn, err := tbl.Open(ustr.Ustr("/note"), O_RDWR|O_CREAT)
	require.Equal(t, 0, int(err))
	_, werr := tbl.Write(fdn, []byte("0123456789"))
	require.Equal(t, 0, int(werr))

	dupfd, err := tbl.Dup(fdn)
	require.Equal(t, 0, int(err))

	_, serr := tbl.Lseek(fdn, 0, SEEK_SET)
	require.Equal(t, 0, int(serr))

	buf := make([]byte, 10)
	_, rerr := tbl.Read(dupfd, buf)
	require.Equal(t, 0, int(rerr))
	assert.Equal(t, "0123456789", string(buf))
}

func TestMkdirRmdir(t *testing.T) {
	tbl := freshTable(t)
	require.Equal(t, 0, int(tbl.Mkdir(ustr.Ustr("/sub"))))

	err := tbl.Mkdir(ustr.Ustr("/sub"))
	assert.Equal(t, int(-defs.EEXIST), int(err))

	require.Equal(t, 0, int(tbl.Rmdir(ustr.Ustr("/sub"))))
	_, lerr := tbl.Open(ustr.Ustr("/sub"), O_RDONLY)
	assert.Equal(t, int(-defs.ENOENT), int(lerr))
}

func TestChdirUpdatesCwdPath(t *testing.T) {
	tbl := freshTable(t)
	require.Equal(t, 0, int(tbl.Mkdir(ustr.Ustr("/sub"))))
	require.Equal(t, 0, int(tbl.Chdir(ustr.Ustr("/sub"))))
	assert.Equal(t, "/sub", tbl.Cwd.Path.String())

	fdn, err := tbl.Open(ustr.Ustr("rel"), O_RDWR|O_CREAT)
	require.Equal(t, 0, int(err))
	assert.GreaterOrEqual(t, fdn, 0)
}

func TestVnodeForMmapAddsReference(t *testing.T) {
	tbl := freshTable(t)
	fdn, err := tbl.Open(ustr.Ustr("/note"), O_RDWR|O_CREAT)
	require.Equal(t, 0, int(err))

	vn, perms, verr := tbl.VnodeForMmap(fdn)
	require.Equal(t, 0, int(verr))
	assert.Equal(t, FD_READ|FD_WRITE, perms)
	assert.GreaterOrEqual(t, vn.RefCount(), 2)
	vn.Put()
}

func TestCloseAllReleasesEveryDescriptor(t *testing.T) {
	tbl := freshTable(t)
	fdn, err := tbl.Open(ustr.Ustr("/a"), O_RDWR|O_CREAT)
	require.Equal(t, 0, int(err))

	tbl.CloseAll()
	_, rerr := tbl.Read(fdn, make([]byte, 1))
	assert.Equal(t, int(-defs.EBADF), int(rerr))
}
