// Package registry holds every tenant's collections behind a single
// reader/writer lock.
//
// Writers (collection create/delete, vector upsert/delete) take the lock
// exclusively and readers share it. The lock is global, so a long writer
// on one tenant delays readers on every other tenant.
//
// Each successful mutation is stamped with a log sequence number (LSN)
// while the exclusive lock is held. Callers hand the LSN to the durability
// layer so log records are written in the order the mutations were applied.
package registry
