package mmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/defs"
	"minikern/fd"
	"minikern/mem"
	"minikern/proc"
	"minikern/ustr"
	"minikern/vfs"
	"minikern/vmm"
)

func freshState(t *testing.T) {
	t.Helper()
	vfs.ResetForTests()
	proc.ResetForTests()
}

func TestMmapAnonymousReturnsUsableRegion(t *testing.T) {
	freshState(t)
	p, _ := proc.CreateProcess(nil)
	thr := proc.CreateThread(p)

	lopage, err := Mmap(p, -1, 20, 2, vmm.PROT_READ|vmm.PROT_WRITE, vmm.PRIVATE|vmm.ANON, 0)
	require.Equal(t, 0, int(err))
	assert.EqualValues(t, 20, lopage)

	addr := lopage * uint64(mem.PGSIZE)
	_, werr := p.Vmmap.WriteAt(thr, addr, []byte("hello"))
	require.Equal(t, 0, int(werr))

	buf := make([]byte, 5)
	_, rerr := p.Vmmap.ReadAt(thr, addr, buf)
	require.Equal(t, 0, int(rerr))
	assert.Equal(t, "hello", string(buf))
}

func TestMmapFileBackedSharesVnodeContent(t *testing.T) {
	freshState(t)
	p, _ := proc.CreateProcess(nil)
	thr := proc.CreateThread(p)
	p.Fd = fd.NewTable(fd.MkRootCwd())

	fdn, err := p.Fd.Open(ustr.Ustr("/greeting"), fd.O_RDWR|fd.O_CREAT)
	require.Equal(t, 0, int(err))

	_, werr := p.Fd.Write(fdn, []byte("on-disk content"))
	require.Equal(t, 0, int(werr))

	lopage, merr := Mmap(p, fdn, 0, 1, vmm.PROT_READ, vmm.PRIVATE, 0)
	require.Equal(t, 0, int(merr))

	buf := make([]byte, len("on-disk content"))
	_, rerr := p.Vmmap.ReadAt(thr, lopage*uint64(mem.PGSIZE), buf)
	require.Equal(t, 0, int(rerr))
	assert.Equal(t, "on-disk content", string(buf))
}

func TestMmapSharedWriteRejectsReadOnlyDescriptor(t *testing.T) {
	freshState(t)
	p, _ := proc.CreateProcess(nil)
	proc.CreateThread(p)
	p.Fd = fd.NewTable(fd.MkRootCwd())

	fdn, err := p.Fd.Open(ustr.Ustr("/ro"), fd.O_RDONLY|fd.O_CREAT)
	require.Equal(t, 0, int(err))

	_, merr := Mmap(p, fdn, 0, 1, vmm.PROT_READ|vmm.PROT_WRITE, vmm.SHARED, 0)
	assert.Equal(t, int(-defs.EPERM), int(merr))
}

func TestMunmapDropsRegion(t *testing.T) {
	freshState(t)
	p, _ := proc.CreateProcess(nil)

	lopage, err := Mmap(p, -1, 30, 1, vmm.PROT_READ|vmm.PROT_WRITE, vmm.PRIVATE|vmm.ANON, 0)
	require.Equal(t, 0, int(err))

	merr := Munmap(p, lopage, 1)
	require.Equal(t, 0, int(merr))

	_, ok := p.Vmmap.Lookup(lopage)
	assert.False(t, ok)
}
