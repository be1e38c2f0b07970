// Package fs abstracts the handful of filesystem calls the log and snapshot
// code make, so tests can inject failures.
//
//   - [LocalFS]: the os package
//   - [FaultyFS]: wraps another FileSystem and fails selected writes,
//     syncs, closes, renames or truncates
//
// Production code uses fs.Default:
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
//
// Tests inject a FaultyFS:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("wal.jsonl", fs.Fault{FailAfterBytes: 0})
//	ffs.FailRename(".tmp", errors.New("disk gone"))
//
// Operations take no context.Context: local filesystem calls are not
// interruptible at the syscall level.
package fs
