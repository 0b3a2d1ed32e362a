package ann

import (
	"context"
	"math/rand/v2"
	"testing"
)

func randomItems(n, dim int, seed uint64) []Item {
	rng := rand.New(rand.NewPCG(seed, 0))
	items := make([]Item, n)
	for i := range items {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		items[i] = Item{ID: int64(i), Vector: v}
	}
	return items
}

func mustBuild(t *testing.T, items []Item, cfg BuildConfig) *Index {
	t.Helper()
	x, err := Build(context.Background(), items, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return x
}

// leafMembers walks one tree and returns item positions in leaf order.
func leafMembers(x *Index, root int32) []int32 {
	var out []int32
	stack := []int32{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := x.nodes[cur]
		if n.isLeaf() {
			out = append(out, x.leafItems[n.leafStart:n.leafStart+n.leafCount]...)
			continue
		}
		stack = append(stack, n.right, n.left)
	}
	return out
}

func bruteForce(items []Item, query []float32, k int) []Neighbor {
	all := make([]Neighbor, len(items))
	for i, it := range items {
		all[i] = Neighbor{ID: it.ID, Distance: AngularDistance(query, it.Vector)}
	}
	sortNeighbors(all)
	if len(all) > k {
		all = all[:k]
	}
	return all
}

func sortNeighbors(ns []Neighbor) {
	for i := 1; i < len(ns); i++ {
		for j := i; j > 0 && ns[j].Distance < ns[j-1].Distance; j-- {
			ns[j], ns[j-1] = ns[j-1], ns[j]
		}
	}
}
