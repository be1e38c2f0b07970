//go:build !linux

package wal

import "github.com/hupe1980/openvdb/internal/fs"

func syncData(f fs.File) error {
	return f.Sync()
}
