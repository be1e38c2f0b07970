package flat

import "github.com/hupe1980/openvdb/index"

// resultHeap is a bounded min-heap keyed on result quality; the root is the
// weakest retained result.
type resultHeap []index.ScoredPoint

// worse reports whether a ranks below b in the final order.
func (resultHeap) worse(a, b index.ScoredPoint) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return h.worse(h[i], h[j]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) { *h = append(*h, x.(index.ScoredPoint)) }

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
