package ann

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"
)

// cancelCheckEvery is how many popped branches pass between context checks.
const cancelCheckEvery = 64

// SearchResult holds the ranked neighbors and traversal counters.
type SearchResult struct {
	Neighbors []Neighbor
	// Examined counts leaf entries visited across all trees, duplicates included.
	Examined int
	// Candidates counts distinct items whose exact distance was computed.
	Candidates int
}

// Search returns up to k items nearest to query by angular distance, sorted
// ascending; ties keep discovery order. Traversal stops once budget leaf
// entries were examined and at least k distinct candidates were found, or
// when every branch was visited. Pass Unbounded to visit all leaves.
//
// An empty index yields an empty result. Otherwise the result has exactly
// min(k, Len()) entries.
func (x *Index) Search(ctx context.Context, query []float32, k, budget int) (*SearchResult, error) {
	if !x.Loaded() {
		return nil, ErrNotLoaded
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d components, want %d", ErrDimensionMismatch, len(query), x.dim)
	}
	if len(x.ids) == 0 {
		return &SearchResult{}, nil
	}

	want := min(k, len(x.ids))
	q := unit(query)

	seen := make([]uint64, (len(x.ids)+63)/64)
	candidates := make([]int32, 0, want*2)
	examined := 0

	pq := make(branchQueue, 0, len(x.roots)*4)
	for _, r := range x.roots {
		pq = append(pq, branch{node: r, priority: math.Inf(1)})
	}
	heap.Init(&pq)

	for popped := 0; pq.Len() > 0; popped++ {
		if budget >= 0 && examined >= budget && len(candidates) >= want {
			break
		}
		if popped%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err //nolint:wrapcheck // caller inspects ctx errors directly
			}
		}

		b := heap.Pop(&pq).(branch)
		cur, priority := b.node, b.priority
		for {
			n := &x.nodes[cur]
			if n.isLeaf() {
				for _, pos := range x.leafItems[n.leafStart : n.leafStart+n.leafCount] {
					examined++
					if seen[pos/64]&(1<<(uint(pos)%64)) != 0 {
						continue
					}
					seen[pos/64] |= 1 << (uint(pos) % 64)
					candidates = append(candidates, pos)
				}
				break
			}

			margin := dot(x.normal(n.normal), q)
			near, far := n.left, n.right
			if margin > 0 {
				near, far = n.right, n.left
			}
			heap.Push(&pq, branch{node: far, priority: math.Min(priority, -math.Abs(margin))})
			priority = math.Min(priority, math.Abs(margin))
			cur = near
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // caller inspects ctx errors directly
	}

	ranked := make([]Neighbor, len(candidates))
	for i, pos := range candidates {
		ranked[i] = Neighbor{ID: x.ids[pos], Distance: AngularDistance(query, x.vector(pos))}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Distance < ranked[j].Distance })
	if len(ranked) > want {
		ranked = ranked[:want]
	}

	return &SearchResult{
		Neighbors:  ranked,
		Examined:   examined,
		Candidates: len(candidates),
	}, nil
}

// branch is a deferred subtree; priority is the smallest signed margin on
// the path to it, so the branch the query sits deepest inside pops first.
type branch struct {
	node     int32
	priority float64
}

type branchQueue []branch

func (q branchQueue) Len() int            { return len(q) }
func (q branchQueue) Less(i, j int) bool  { return q[i].priority > q[j].priority }
func (q branchQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *branchQueue) Push(x interface{}) { *q = append(*q, x.(branch)) }
func (q *branchQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
