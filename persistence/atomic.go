package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/openvdb/internal/fs"
)

// tempSuffix marks in-progress snapshot files.
const tempSuffix = ".tmp"

// atomicWriteFile replaces dir/name with data. The data is written to a
// temp file in the same directory and fsynced, the temp file is renamed
// over the target, and the directory is fsynced. If any step before the
// rename fails the target is untouched.
func atomicWriteFile(fsys fs.FileSystem, dir, name string, data []byte) error {
	if err := fsys.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("persistence: failed to create directory %s: %w", dir, err)
	}

	target := filepath.Join(dir, name)
	tmpPath := target + tempSuffix

	tmp, err := fsys.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("persistence: failed to create temp file for %s: %w", name, err)
	}

	renamed := false
	defer func() {
		if !renamed {
			_ = fsys.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persistence: failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persistence: failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persistence: failed to close %s: %w", name, err)
	}

	if err := fsys.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("persistence: failed to rename %s: %w", name, err)
	}
	renamed = true

	if err := fs.SyncDir(fsys, dir); err != nil {
		return fmt.Errorf("persistence: failed to sync directory %s: %w", dir, err)
	}

	return nil
}
