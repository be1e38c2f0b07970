// Package persistence provides unified persistence management for openvdb.
//
// The Manager coordinates the write-ahead log, snapshots and recovery:
//
//   - Recover loads snapshot.json (if any) into a Target and replays the
//     WAL on top of it. The manager then moves from Cold through Replaying
//     to Live.
//   - Append writes WAL records in log sequence number (LSN) order, even
//     when callers arrive out of order.
//   - Snapshot writes the full state to a temp file, fsyncs it, renames it
//     over snapshot.json, fsyncs the directory and only then truncates the
//     WAL. A failure before the rename leaves the WAL untouched.
//
// Snapshots may be compressed (zstd or lz4) and mirrored to a
// blobstore.Store for disaster recovery.
package persistence
