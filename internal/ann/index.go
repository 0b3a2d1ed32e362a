// Package ann is a static random-projection forest for approximate nearest
// neighbor search under angular distance.
//
// Each tree recursively splits the item set with a hyperplane that bisects
// two sampled items, until a node holds at most LeafSize items. Queries walk
// all trees best-first, ordered by the query's margin to the hyperplanes they
// skipped, gather the items of the visited leaves, and rank the deduplicated
// candidates by exact distance.
//
// An Index is built once (Build) or loaded once (Load) and is read-only
// afterwards; concurrent Search calls need no locking.
package ann

import "math"

// Unbounded as a search budget visits every leaf of every tree.
const Unbounded = -1

// Item is an input vector with its document id.
type Item struct {
	ID     int64
	Vector []float32
}

// Neighbor is a search hit.
type Neighbor struct {
	ID       int64
	Distance float64
}

// node is one arena slot. Leaves have left == right == normal == -1 and
// reference leafCount entries of leafItems starting at leafStart. Split nodes
// reference a row of normals and two children with larger arena indexes.
type node struct {
	left      int32
	right     int32
	normal    int32
	leafStart int32
	leafCount int32
}

const nodeSize = 5 * 4

func (n *node) isLeaf() bool { return n.left < 0 }

// Index is a loaded forest. The zero value is an unloaded index.
type Index struct {
	loaded   bool
	dim      int
	leafSize int
	seed     uint64

	ids       []int64
	vectors   []float32 // len(ids) rows of dim
	roots     []int32
	nodes     []node
	normals   []float32 // rows of dim, unit length
	leafItems []int32   // item positions

	size    int64
	mapped  bool
	release func() error
}

// Stats describes a loaded index.
type Stats struct {
	Dimensions int
	Items      int
	Trees      int
	Nodes      int
	LeafSize   int
	Seed       uint64
	Bytes      int64
	Mapped     bool
}

// Loaded reports whether the index was built or loaded.
func (x *Index) Loaded() bool { return x != nil && x.loaded }

// Dimensions returns the fixed vector length D.
func (x *Index) Dimensions() int { return x.dim }

// Len returns the number of indexed items.
func (x *Index) Len() int { return len(x.ids) }

// Stats returns structural counters.
func (x *Index) Stats() Stats {
	return Stats{
		Dimensions: x.dim,
		Items:      len(x.ids),
		Trees:      len(x.roots),
		Nodes:      len(x.nodes),
		LeafSize:   x.leafSize,
		Seed:       x.seed,
		Bytes:      x.size,
		Mapped:     x.mapped,
	}
}

// Close releases a memory-mapped artifact. It must not run concurrently
// with Search; it is meant for process shutdown.
func (x *Index) Close() error {
	if x == nil || x.release == nil {
		return nil
	}
	release := x.release
	x.release = nil
	x.loaded = false
	return release()
}

func (x *Index) vector(pos int32) []float32 {
	off := int(pos) * x.dim
	return x.vectors[off : off+x.dim]
}

func (x *Index) normal(row int32) []float32 {
	off := int(row) * x.dim
	return x.normals[off : off+x.dim]
}

// AngularDistance is the chord distance between a and b projected onto the
// unit sphere: sqrt(2 - 2·cos(a, b)), in [0, 2]. A zero vector is treated as
// orthogonal to everything (distance √2).
func AngularDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return math.Sqrt2
	}
	cos := dot / math.Sqrt(na*nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Sqrt(2 - 2*cos)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func unit(v []float32) []float32 {
	out := make([]float32, len(v))
	n := math.Sqrt(dot(v, v))
	if n == 0 {
		return out
	}
	for i, f := range v {
		out[i] = float32(float64(f) / n)
	}
	return out
}

func finite(v []float32) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
