package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, lfs.MkdirAll(dir, 0o755))

	fpath := filepath.Join(dir, "test.txt")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.NoError(t, f.Sync())

	info, err := f.Stat()
	assert.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	assert.NoError(t, f.Close())

	b, err := ReadFile(lfs, fpath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	newPath := filepath.Join(dir, "renamed.txt")
	assert.NoError(t, lfs.Rename(fpath, newPath))
	assert.NoError(t, SyncDir(lfs, dir))

	assert.NoError(t, lfs.Truncate(newPath, 3))
	info, err = lfs.Stat(newPath)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), info.Size())

	assert.NoError(t, lfs.Remove(newPath))
	_, err = lfs.Stat(newPath)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})

	ffs.AddRule("faulty", Fault{FailAfterBytes: 5})

	fpath := filepath.Join(tmp, "faulty.txt")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	n, err := f.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = f.Write([]byte("!"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(5), ffs.Written())
	assert.NoError(t, f.Close())

	// Files not matching a rule are untouched.
	other, err := ffs.OpenFile(filepath.Join(tmp, "other.txt"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = other.Write([]byte("no limit here"))
	assert.NoError(t, err)
	assert.NoError(t, other.Close())
}

func TestFaultyFS_SyncClose(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)
	boom := errors.New("boom")
	ffs.AddRule("x", Fault{FailAfterBytes: -1, FailOnSync: true, FailOnClose: true, Err: boom})

	f, err := ffs.OpenFile(filepath.Join(tmp, "x.bin"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), boom)
	assert.ErrorIs(t, f.Close(), boom)
}

func TestFaultyFS_RenameTruncate(t *testing.T) {
	tmp := t.TempDir()
	ffs := NewFaultyFS(nil)

	fpath := filepath.Join(tmp, "a.tmp")
	f, err := ffs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ffs.FailRename(".tmp", nil)
	assert.ErrorIs(t, ffs.Rename(fpath, filepath.Join(tmp, "a")), ErrInjected)
	_, err = ffs.Stat(fpath)
	assert.NoError(t, err)

	ffs.FailTruncate(nil)
	assert.ErrorIs(t, ffs.Truncate(fpath, 0), ErrInjected)

	ffs.Reset()
	assert.NoError(t, ffs.Rename(fpath, filepath.Join(tmp, "a")))
	assert.NoError(t, ffs.Truncate(filepath.Join(tmp, "a"), 0))
	assert.NoError(t, ffs.MkdirAll(filepath.Join(tmp, "d"), 0o755))
	assert.NoError(t, ffs.Remove(filepath.Join(tmp, "a")))
}
