package testutil

import (
	"cmp"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/openvdb/distance"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*(maxVal-minVal)
	}
}

// UniformRangeVectors generates num vectors with values in [-1, 1).
// Zero-norm vectors are re-drawn so every result is a valid cosine operand.
func (r *RNG) UniformRangeVectors(num int, dimensions int) [][]float32 {
	out := make([][]float32, num)
	for i := range out {
		v := make([]float32, dimensions)
		for {
			r.FillUniformRange(v, -1, 1)
			if !distance.IsDegenerate(distance.SquaredNorm(v)) {
				break
			}
		}
		out[i] = v
	}
	return out
}

// GaussianVectors generates num vectors with standard normal components.
func (r *RNG) GaussianVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]float32, num)
	for i := range out {
		v := make([]float32, dimensions)
		for j := range v {
			v[j] = float32(r.rand.NormFloat64())
		}
		out[i] = v
	}
	return out
}

// IDs returns num string IDs of the form prefix-<i>.
func IDs(prefix string, num int) []string {
	out := make([]string, num)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return out
}

// Neighbor is an exact search result.
type Neighbor struct {
	ID    string
	Score float32
}

// ExactTopK returns the k IDs most cosine-similar to query, ties broken by ID.
func ExactTopK(query []float32, ids []string, vectors [][]float32, k int) []Neighbor {
	all := make([]Neighbor, len(ids))
	for i, id := range ids {
		all[i] = Neighbor{ID: id, Score: distance.Cosine(query, vectors[i])}
	}
	slices.SortFunc(all, func(a, b Neighbor) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if k < len(all) {
		all = all[:k]
	}
	return all
}

// ComputeRecall returns the fraction of groundTruth IDs present in approximate.
func ComputeRecall(groundTruth []Neighbor, approximate []string) float64 {
	if len(groundTruth) == 0 {
		return 1
	}

	found := make(map[string]struct{}, len(approximate))
	for _, id := range approximate {
		found[id] = struct{}{}
	}

	hits := 0
	for _, n := range groundTruth {
		if _, ok := found[n.ID]; ok {
			hits++
		}
	}

	return float64(hits) / float64(len(groundTruth))
}

// AlmostEqual reports whether a and b differ by at most eps.
func AlmostEqual(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) <= float64(eps)
}
