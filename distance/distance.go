package distance

import (
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var s0, s1, s2, s3 float32

	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}

	return s0 + s1 + s2 + s3
}

// SquaredNorm returns the squared L2 norm of v.
func SquaredNorm(v []float32) float32 {
	return Dot(v, v)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(SquaredNorm(v))))
}

// IsDegenerate reports whether a squared norm cannot be used as a cosine
// denominator: zero, negative, NaN or infinite.
func IsDegenerate(squaredNorm float32) bool {
	f := float64(squaredNorm)
	return !(f > 0) || math.IsInf(f, 0)
}

// Cosine calculates the cosine similarity between two vectors.
// Returns 0 if either vector has zero norm.
func Cosine(a, b []float32) float32 {
	na := Norm(a)
	nb := Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// CosineWithNorms calculates the cosine similarity using precomputed norms.
func CosineWithNorms(a, b []float32, normA, normB float32) float32 {
	return Dot(a, b) / (normA * normB)
}

// CosineDistance returns 1 - cosine similarity, in [0, 2].
func CosineDistance(a, b []float32) float32 {
	return 1 - clamp(Cosine(a, b))
}

// UnitCosineDistance returns the cosine distance of two L2-normalized vectors.
func UnitCosineDistance(a, b []float32) float32 {
	return 1 - clamp(Dot(a, b))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := SquaredNorm(v)
	if IsDegenerate(norm2) {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// clamp keeps rounding error from pushing a similarity outside [-1, 1].
func clamp(sim float32) float32 {
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}
