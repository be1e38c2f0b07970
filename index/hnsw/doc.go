// Package hnsw implements an approximate cosine-similarity index on top of a
// Hierarchical Navigable Small World graph.
//
// The graph is append-only: every upsert adds a node with a fresh internal
// ID and deletes only tombstone the node. Tombstoned nodes keep routing
// searches but never appear in results. Nodes orphaned this way are not
// reclaimed; Stats reports how many there are.
package hnsw
