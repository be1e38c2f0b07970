package hnsw

import (
	"container/heap"
	"math"
	"math/rand"
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/openvdb/distance"
)

// distItem pairs a node's internal ID with its distance to a query vector.
type distItem struct {
	id   uint32
	dist float32
}

// minDistHeap is a min-heap ordered by distance (closest first).
type minDistHeap []distItem

func (h minDistHeap) Len() int           { return len(h) }
func (h minDistHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h minDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *minDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// maxDistHeap is a max-heap ordered by distance (farthest first).
type maxDistHeap []distItem

func (h maxDistHeap) Len() int           { return len(h) }
func (h maxDistHeap) Less(i, j int) bool { return h[i].dist > h[j].dist }
func (h maxDistHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxDistHeap) Push(x any)        { *h = append(*h, x.(distItem)) }
func (h *maxDistHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// node is a single vector in the graph. Vectors are unit length.
type node struct {
	vector  []float32
	level   int
	friends [][]uint32 // friends[layer] = neighbor internal IDs at that layer
}

// graph is the navigable small-world structure. Internal IDs are dense
// indexes into nodes and are never reused.
type graph struct {
	m              int
	maxLevels      int
	efConstruction int
	levelMul       float64
	rng            *rand.Rand

	nodes    []*node
	entryID  int32 // -1 if empty
	maxLevel int
}

func newGraph(opts Options) *graph {
	return &graph{
		m:              opts.M,
		maxLevels:      opts.MaxLevels,
		efConstruction: opts.EfConstruction,
		levelMul:       1.0 / math.Log(float64(opts.M)),
		rng:            rand.New(rand.NewSource(opts.Seed)),
		entryID:        -1,
	}
}

func (g *graph) len() int { return len(g.nodes) }

// maxConns returns the maximum number of connections at the given layer.
// Layer 0 allows 2*M; higher layers allow M.
func (g *graph) maxConns(layer int) int {
	if layer == 0 {
		return g.m * 2
	}
	return g.m
}

// randomLevel draws a layer from an exponential distribution so that
// P(level >= l) = M^-l, capped at the configured number of layers.
func (g *graph) randomLevel() int {
	r := max(g.rng.Float64(), math.SmallestNonzeroFloat64)
	level := int(-math.Log(r) * g.levelMul)
	return min(level, g.maxLevels-1)
}

// insert adds a unit vector to the graph and returns its internal ID.
func (g *graph) insert(vec []float32) uint32 {
	idx := uint32(len(g.nodes))
	level := g.randomLevel()

	nd := &node{
		vector:  vec,
		level:   level,
		friends: make([][]uint32, level+1),
	}
	g.nodes = append(g.nodes, nd)

	if g.entryID < 0 {
		g.entryID = int32(idx)
		g.maxLevel = level
		return idx
	}

	cur := g.greedy(vec, uint32(g.entryID), g.maxLevel, level)

	ep := []distItem{cur}
	for lev := min(level, g.maxLevel); lev >= 0; lev-- {
		candidates := g.searchLayer(vec, ep, g.efConstruction, lev)

		maxC := g.maxConns(lev)
		neighbors := closest(candidates, maxC)
		nd.friends[lev] = neighbors

		for _, nID := range neighbors {
			nn := g.nodes[nID]
			nn.friends[lev] = append(nn.friends[lev], idx)
			if len(nn.friends[lev]) > maxC {
				nn.friends[lev] = g.prune(nn.vector, nn.friends[lev], maxC)
			}
		}

		ep = candidates
	}

	if level > g.maxLevel {
		g.entryID = int32(idx)
		g.maxLevel = level
	}

	return idx
}

// greedy walks from the entry point down to (but not including) layer
// stop, tracking only the single closest node.
func (g *graph) greedy(q []float32, start uint32, top, stop int) distItem {
	cur := distItem{id: start, dist: distance.UnitCosineDistance(q, g.nodes[start].vector)}

	for lev := top; lev > stop; lev-- {
		changed := true
		for changed {
			changed = false
			nd := g.nodes[cur.id]
			if lev >= len(nd.friends) {
				break
			}
			for _, fID := range nd.friends[lev] {
				d := distance.UnitCosineDistance(q, g.nodes[fID].vector)
				if d < cur.dist {
					cur = distItem{id: fID, dist: d}
					changed = true
				}
			}
		}
	}

	return cur
}

// search returns up to ef nodes closest to q, ordered by ascending
// distance.
func (g *graph) search(q []float32, ef int) []distItem {
	if g.entryID < 0 {
		return nil
	}

	cur := g.greedy(q, uint32(g.entryID), g.maxLevel, 0)
	return g.searchLayer(q, []distItem{cur}, ef, 0)
}

// searchLayer performs a beam search on a single layer. The result is
// ordered by ascending distance, ties broken by descending internal ID.
func (g *graph) searchLayer(q []float32, entryPoints []distItem, ef int, layer int) []distItem {
	visited := bitset.New(uint(len(g.nodes)))

	var candidates minDistHeap
	var results maxDistHeap

	for _, ep := range entryPoints {
		if visited.Test(uint(ep.id)) {
			continue
		}
		visited.Set(uint(ep.id))
		heap.Push(&candidates, ep)
		heap.Push(&results, ep)
		if results.Len() > ef {
			heap.Pop(&results)
		}
	}

	for candidates.Len() > 0 {
		c := heap.Pop(&candidates).(distItem)

		if results.Len() >= ef && c.dist > results[0].dist {
			break
		}

		nd := g.nodes[c.id]
		if layer >= len(nd.friends) {
			continue
		}

		for _, fID := range nd.friends[layer] {
			if visited.Test(uint(fID)) {
				continue
			}
			visited.Set(uint(fID))

			d := distance.UnitCosineDistance(q, g.nodes[fID].vector)
			if results.Len() < ef || d < results[0].dist {
				item := distItem{id: fID, dist: d}
				heap.Push(&candidates, item)
				heap.Push(&results, item)
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := []distItem(results)
	sortByDistance(out)
	return out
}

// closest returns the IDs of the first n items of a distance-ordered slice.
func closest(items []distItem, n int) []uint32 {
	n = min(n, len(items))
	out := make([]uint32, n)
	for i := range n {
		out[i] = items[i].id
	}
	return out
}

// prune keeps the maxN neighbors closest to vec.
func (g *graph) prune(vec []float32, ids []uint32, maxN int) []uint32 {
	items := make([]distItem, len(ids))
	for i, id := range ids {
		items[i] = distItem{id: id, dist: distance.UnitCosineDistance(vec, g.nodes[id].vector)}
	}
	sortByDistance(items)
	return closest(items, maxN)
}

func sortByDistance(items []distItem) {
	slices.SortFunc(items, func(a, b distItem) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		case a.id > b.id:
			return -1
		case a.id < b.id:
			return 1
		}
		return 0
	})
}
