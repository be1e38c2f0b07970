// Package index defines the per-collection vector index contract.
//
// Two implementations satisfy [Index]:
//
//   - flat: exact cosine similarity by linear scan. Correct for any n, O(n·d)
//     per query.
//   - hnsw: approximate search over an append-only navigable small-world
//     graph. Deletes are tombstones; recall is high but not guaranteed.
//
// # Index Selection
//
// Both variants share the same API shape. The active variant only changes
// score computation cost and recall:
//
//   - Flat: small collections, or when the true top-K is required
//   - HNSW: large collections where latency matters more than exactness
//
// An Index is not safe for concurrent mutation. Callers serialize writers
// and may run any number of concurrent readers (Query, Export, Stats) while
// no writer is active.
package index
