//go:build linux

package wal

import (
	"golang.org/x/sys/unix"

	"github.com/hupe1980/openvdb/internal/fs"
)

// syncData flushes file data (not necessarily metadata) to stable storage.
func syncData(f fs.File) error {
	if fd, ok := f.(interface{ Fd() uintptr }); ok {
		return unix.Fdatasync(int(fd.Fd()))
	}
	return f.Sync()
}
