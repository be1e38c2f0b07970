// Package distance provides the vector arithmetic behind cosine scoring.
//
// Indexes score with cosine similarity; the graph index navigates by cosine
// distance (1 - similarity) over L2-normalized vectors.
//
// # Usage
//
//	sim := distance.Cosine(a, b)
//	d := distance.CosineDistance(a, b)
//	unit, ok := distance.NormalizeL2Copy(vec)
package distance
