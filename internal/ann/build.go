package ann

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Build defaults.
const (
	DefaultTrees    = 16
	DefaultLeafSize = 64

	// maxSplitAttempts bounds how many anchor pairs a node samples before
	// giving up and becoming an oversized leaf.
	maxSplitAttempts = 3
)

// BuildConfig controls forest construction.
type BuildConfig struct {
	// Dimensions is the fixed vector length D. Required.
	Dimensions int
	// Trees is the number of independent trees. More trees improve recall
	// for a given search budget at the cost of memory.
	Trees int
	// LeafSize is the largest item count stored in a leaf without splitting.
	LeafSize int
	// Seed makes construction reproducible: tree t draws from PCG(Seed, t).
	Seed uint64
	// Workers caps parallel tree construction (default GOMAXPROCS).
	Workers int
}

func (c *BuildConfig) applyDefaults() {
	if c.Trees <= 0 {
		c.Trees = DefaultTrees
	}
	if c.LeafSize <= 0 {
		c.LeafSize = DefaultLeafSize
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}

// Build constructs a loaded index over items. Vectors are copied; the caller
// keeps ownership of items. Every vector must have exactly cfg.Dimensions
// finite components and ids must be unique.
func Build(ctx context.Context, items []Item, cfg BuildConfig) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidConfig, cfg.Dimensions)
	}
	cfg.applyDefaults()

	x := &Index{
		loaded:   true,
		dim:      cfg.Dimensions,
		leafSize: cfg.LeafSize,
		seed:     cfg.Seed,
		ids:      make([]int64, len(items)),
		vectors:  make([]float32, 0, len(items)*cfg.Dimensions),
	}

	seen := make(map[int64]struct{}, len(items))
	for i, it := range items {
		if len(it.Vector) != cfg.Dimensions {
			return nil, fmt.Errorf("%w: item %d has %d components, want %d",
				ErrDimensionMismatch, it.ID, len(it.Vector), cfg.Dimensions)
		}
		if !finite(it.Vector) {
			return nil, fmt.Errorf("%w: item %d", ErrInvalidVector, it.ID)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateID, it.ID)
		}
		seen[it.ID] = struct{}{}
		x.ids[i] = it.ID
		x.vectors = append(x.vectors, it.Vector...)
	}

	if len(items) == 0 {
		return x, nil
	}

	trees := make([]*treeBuilder, cfg.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for t := range trees {
		tb := &treeBuilder{
			ctx:      gctx,
			index:    x,
			leafSize: cfg.LeafSize,
			rng:      rand.New(rand.NewPCG(cfg.Seed, uint64(t))),
		}
		trees[t] = tb
		g.Go(func() error {
			positions := make([]int32, len(items))
			for i := range positions {
				positions[i] = int32(i)
			}
			root, err := tb.build(positions)
			tb.root = root
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build trees: %w", err)
	}

	x.merge(trees)
	x.size = x.encodedSize()
	return x, nil
}

// merge concatenates per-tree arenas, rebasing node, normal and leaf offsets.
func (x *Index) merge(trees []*treeBuilder) {
	var nodes, normals, leafItems int
	for _, tb := range trees {
		nodes += len(tb.nodes)
		normals += len(tb.normals)
		leafItems += len(tb.leafItems)
	}
	x.roots = make([]int32, 0, len(trees))
	x.nodes = make([]node, 0, nodes)
	x.normals = make([]float32, 0, normals)
	x.leafItems = make([]int32, 0, leafItems)

	for _, tb := range trees {
		nodeBase := int32(len(x.nodes))
		normalBase := int32(len(x.normals) / x.dim)
		leafBase := int32(len(x.leafItems))
		for _, n := range tb.nodes {
			if n.isLeaf() {
				n.leafStart += leafBase
			} else {
				n.left += nodeBase
				n.right += nodeBase
				n.normal += normalBase
			}
			x.nodes = append(x.nodes, n)
		}
		x.roots = append(x.roots, tb.root+nodeBase)
		x.normals = append(x.normals, tb.normals...)
		x.leafItems = append(x.leafItems, tb.leafItems...)
	}
}

// treeBuilder grows one tree into its own arena.
type treeBuilder struct {
	ctx      context.Context
	index    *Index
	leafSize int
	rng      *rand.Rand

	root      int32
	nodes     []node
	normals   []float32
	leafItems []int32
}

func (b *treeBuilder) build(items []int32) (int32, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err //nolint:wrapcheck // cancellation is reported as-is
	}
	if len(items) <= b.leafSize {
		return b.leaf(items), nil
	}

	for range maxSplitAttempts {
		normal, ok := b.sampleNormal(items)
		if !ok {
			continue
		}
		split := b.partition(items, normal)
		if split == 0 || split == len(items) {
			continue
		}

		self := b.splitNode(normal)
		left, err := b.build(items[:split])
		if err != nil {
			return 0, err
		}
		right, err := b.build(items[split:])
		if err != nil {
			return 0, err
		}
		b.nodes[self].left = left
		b.nodes[self].right = right
		return self, nil
	}

	// Identical or degenerate vectors: stop regardless of the threshold.
	return b.leaf(items), nil
}

// sampleNormal draws two distinct items and returns the unit normal of the
// hyperplane equidistant (in angle) from both. ok is false when the anchors
// point the same way.
func (b *treeBuilder) sampleNormal(items []int32) ([]float32, bool) {
	i := b.rng.IntN(len(items))
	j := b.rng.IntN(len(items) - 1)
	if j >= i {
		j++
	}
	p := unit(b.index.vector(items[i]))
	q := unit(b.index.vector(items[j]))
	for k := range p {
		p[k] -= q[k]
	}
	if dot(p, p) == 0 {
		return nil, false
	}
	return unit(p), true
}

// partition reorders items in place so that those on the negative side of
// normal come first and returns the boundary. Items exactly on the plane
// take a random side.
func (b *treeBuilder) partition(items []int32, normal []float32) int {
	lo, hi := 0, len(items)
	for lo < hi {
		if b.side(normal, b.index.vector(items[lo])) {
			hi--
			items[lo], items[hi] = items[hi], items[lo]
		} else {
			lo++
		}
	}
	return lo
}

// side reports whether v falls on the positive side of the plane.
func (b *treeBuilder) side(normal, v []float32) bool {
	m := dot(normal, v)
	if m == 0 {
		return b.rng.IntN(2) == 1
	}
	return m > 0
}

func (b *treeBuilder) leaf(items []int32) int32 {
	n := node{
		left:      -1,
		right:     -1,
		normal:    -1,
		leafStart: int32(len(b.leafItems)),
		leafCount: int32(len(items)),
	}
	b.leafItems = append(b.leafItems, items...)
	b.nodes = append(b.nodes, n)
	return int32(len(b.nodes) - 1)
}

func (b *treeBuilder) splitNode(normal []float32) int32 {
	row := int32(len(b.normals) / b.index.dim)
	b.normals = append(b.normals, normal...)
	b.nodes = append(b.nodes, node{normal: row, leafStart: -1})
	return int32(len(b.nodes) - 1)
}
