// Package blobstore provides object storage for mirrored snapshots.
//
// Store is a flat key/value namespace of immutable blobs. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: a directory on the local filesystem
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3 via the AWS SDK
package blobstore
