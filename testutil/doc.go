// Package testutil provides testing utilities for openvdb.
//
// This package is intended for use in tests only. It provides helpers for
// generating seeded random vectors, computing exact cosine nearest neighbors,
// and verifying approximate search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformRangeVectors(1000, 32) // uniform [-1, 1)
//
// # Exact Search (Ground Truth)
//
//	ids := testutil.ExactTopK(query, ids, vecs, k)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(exact, approx)
package testutil
