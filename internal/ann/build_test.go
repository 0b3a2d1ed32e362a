package ann

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"
)

func TestBuild_Validation(t *testing.T) {
	good := randomItems(4, 3, 1)
	tests := []struct {
		name    string
		items   []Item
		cfg     BuildConfig
		wantErr error
	}{
		{
			name:    "zero dimensions",
			items:   good,
			cfg:     BuildConfig{},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "wrong vector length",
			items:   append([]Item{{ID: 99, Vector: []float32{1, 2}}}, good...),
			cfg:     BuildConfig{Dimensions: 3},
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "NaN component",
			items:   []Item{{ID: 1, Vector: []float32{1, float32(math.NaN()), 0}}},
			cfg:     BuildConfig{Dimensions: 3},
			wantErr: ErrInvalidVector,
		},
		{
			name:    "infinite component",
			items:   []Item{{ID: 1, Vector: []float32{float32(math.Inf(-1)), 0, 0}}},
			cfg:     BuildConfig{Dimensions: 3},
			wantErr: ErrInvalidVector,
		},
		{
			name: "duplicate id",
			items: []Item{
				{ID: 7, Vector: []float32{1, 0, 0}},
				{ID: 7, Vector: []float32{0, 1, 0}},
			},
			cfg:     BuildConfig{Dimensions: 3},
			wantErr: ErrDuplicateID,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(context.Background(), tc.items, tc.cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	x := mustBuild(t, nil, BuildConfig{Dimensions: 5})
	if !x.Loaded() {
		t.Fatal("empty index should be loaded")
	}
	if x.Len() != 0 || len(x.roots) != 0 {
		t.Fatalf("expected no items and no trees, got %d items %d trees", x.Len(), len(x.roots))
	}
}

func TestBuild_Defaults(t *testing.T) {
	x := mustBuild(t, randomItems(10, 4, 1), BuildConfig{Dimensions: 4})
	if len(x.roots) != DefaultTrees {
		t.Errorf("trees = %d, want %d", len(x.roots), DefaultTrees)
	}
	if x.leafSize != DefaultLeafSize {
		t.Errorf("leaf size = %d, want %d", x.leafSize, DefaultLeafSize)
	}
}

func TestBuild_DeterministicForSeed(t *testing.T) {
	items := randomItems(2000, 16, 5)
	cfg := BuildConfig{Dimensions: 16, Trees: 8, LeafSize: 20, Seed: 42}

	a := mustBuild(t, items, cfg)
	cfg.Workers = 1
	b := mustBuild(t, items, cfg)

	if !reflect.DeepEqual(a.roots, b.roots) {
		t.Fatal("roots differ between builds with the same seed")
	}
	if !reflect.DeepEqual(a.nodes, b.nodes) {
		t.Fatal("nodes differ between builds with the same seed")
	}
	if !reflect.DeepEqual(a.normals, b.normals) {
		t.Fatal("normals differ between builds with the same seed")
	}
	if !reflect.DeepEqual(a.leafItems, b.leafItems) {
		t.Fatal("leaf items differ between builds with the same seed")
	}
}

func TestBuild_SeedChangesTrees(t *testing.T) {
	items := randomItems(500, 8, 5)
	a := mustBuild(t, items, BuildConfig{Dimensions: 8, Trees: 2, LeafSize: 10, Seed: 1})
	b := mustBuild(t, items, BuildConfig{Dimensions: 8, Trees: 2, LeafSize: 10, Seed: 2})
	if reflect.DeepEqual(a.normals, b.normals) {
		t.Fatal("different seeds produced identical hyperplanes")
	}
}

func TestBuild_EveryTreeCoversEveryItemOnce(t *testing.T) {
	const n = 1500
	x := mustBuild(t, randomItems(n, 12, 9), BuildConfig{Dimensions: 12, Trees: 5, LeafSize: 32, Seed: 3})

	for ti, root := range x.roots {
		members := leafMembers(x, root)
		if len(members) != n {
			t.Fatalf("tree %d holds %d entries, want %d", ti, len(members), n)
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		for i, pos := range members {
			if pos != int32(i) {
				t.Fatalf("tree %d: item %d missing or duplicated", ti, i)
			}
		}
	}
}

func TestBuild_LeavesRespectLeafSize(t *testing.T) {
	x := mustBuild(t, randomItems(1000, 10, 2), BuildConfig{Dimensions: 10, Trees: 3, LeafSize: 25, Seed: 8})
	for i, n := range x.nodes {
		if n.isLeaf() && n.leafCount > 25 {
			t.Errorf("leaf %d holds %d items, limit 25", i, n.leafCount)
		}
	}
	if err := x.validate(); err != nil {
		t.Fatalf("built index fails validation: %v", err)
	}
}

func TestBuild_IdenticalVectorsTerminate(t *testing.T) {
	items := make([]Item, 300)
	for i := range items {
		items[i] = Item{ID: int64(i), Vector: []float32{0.5, 0.5, 0.5, 0.5}}
	}
	x := mustBuild(t, items, BuildConfig{Dimensions: 4, Trees: 3, LeafSize: 10, Seed: 1})

	for ti, root := range x.roots {
		n := x.nodes[root]
		if !n.isLeaf() || int(n.leafCount) != len(items) {
			t.Fatalf("tree %d: identical vectors should collapse into one leaf", ti)
		}
	}
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, randomItems(500, 4, 1), BuildConfig{Dimensions: 4, LeafSize: 8})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuild_CopiesVectors(t *testing.T) {
	items := randomItems(20, 3, 1)
	x := mustBuild(t, items, BuildConfig{Dimensions: 3, Trees: 1})
	want := items[0].Vector[0]
	items[0].Vector[0] = 1000
	if got := x.vector(0)[0]; got != want {
		t.Fatalf("index aliases caller vectors: got %v, want %v", got, want)
	}
}
