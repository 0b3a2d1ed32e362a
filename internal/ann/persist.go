package ann

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"path/filepath"
)

// Artifact layout, little-endian:
//
//	header   64 bytes
//	ids      int64   × items
//	vectors  float32 × items·dim
//	roots    int32   × trees
//	nodes    int32   × nodes·5 (left, right, normal, leafStart, leafCount)
//	normals  float32 × normals·dim
//	leaves   int32   × leafItems
const (
	headerSize    = 64
	formatVersion = 1
	metricAngular = 1
)

var magic = [8]byte{'S', 'C', 'I', 'A', 'N', 'N', '0', '1'}

type header struct {
	Magic     [8]byte
	Version   uint32
	Metric    uint32
	Dim       uint32
	Items     uint32
	Trees     uint32
	Nodes     uint32
	Normals   uint32
	LeafItems uint32
	LeafSize  uint32
	_         uint32
	Seed      uint64
	_         [8]byte
}

func (h *header) sectionSizes() [6]int64 {
	return [6]int64{
		int64(h.Items) * 8,
		int64(h.Items) * int64(h.Dim) * 4,
		int64(h.Trees) * 4,
		int64(h.Nodes) * nodeSize,
		int64(h.Normals) * int64(h.Dim) * 4,
		int64(h.LeafItems) * 4,
	}
}

// boundedSizes is sectionSizes for untrusted headers: every product is
// computed without wrapping and no section may exceed limit bytes.
func (h *header) boundedSizes(limit int64) ([6]int64, bool) {
	var out [6]int64
	shapes := [6][3]uint64{
		{uint64(h.Items), 1, 8},
		{uint64(h.Items), uint64(h.Dim), 4},
		{uint64(h.Trees), 1, 4},
		{uint64(h.Nodes), 1, nodeSize},
		{uint64(h.Normals), uint64(h.Dim), 4},
		{uint64(h.LeafItems), 1, 4},
	}
	for i, sh := range shapes {
		hi, n := bits.Mul64(sh[0], sh[1])
		if hi != 0 {
			return out, false
		}
		hi, n = bits.Mul64(n, sh[2])
		if hi != 0 || n > math.MaxInt64 || int64(n) > limit {
			return out, false
		}
		out[i] = int64(n)
	}
	return out, true
}

func (h *header) fileSize() int64 {
	total := int64(headerSize)
	for _, s := range h.sectionSizes() {
		total += s
	}
	return total
}

func (x *Index) header() header {
	return header{
		Magic:     magic,
		Version:   formatVersion,
		Metric:    metricAngular,
		Dim:       uint32(x.dim),
		Items:     uint32(len(x.ids)),
		Trees:     uint32(len(x.roots)),
		Nodes:     uint32(len(x.nodes)),
		Normals:   uint32(len(x.normals) / x.dim),
		LeafItems: uint32(len(x.leafItems)),
		LeafSize:  uint32(x.leafSize),
		Seed:      x.seed,
	}
}

func (x *Index) encodedSize() int64 {
	h := x.header()
	return h.fileSize()
}

// WriteTo serializes the index in artifact format.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	if !x.Loaded() {
		return 0, ErrNotLoaded
	}
	bw := bufio.NewWriterSize(w, 1<<20)
	h := x.header()
	sections := []any{&h, x.ids, x.vectors, x.roots, flattenNodes(x.nodes), x.normals, x.leafItems}
	for _, s := range sections {
		if err := binary.Write(bw, binary.LittleEndian, s); err != nil {
			return 0, fmt.Errorf("write index: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("flush index: %w", err)
	}
	return h.fileSize(), nil
}

// Save writes the artifact to path atomically (temp file + rename).
func (x *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(filepath.Clean(tmp))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := x.WriteTo(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

// LoadOptions controls artifact loading.
type LoadOptions struct {
	// Mmap maps the file read-only instead of reading it into memory.
	// Ignored on platforms without mmap support.
	Mmap bool
}

// Load opens a persisted artifact. The returned index must be closed when
// mapped.
func Load(path string, opts LoadOptions) (*Index, error) {
	var (
		data    []byte
		release func() error
		err     error
		mapped  bool
	)
	if opts.Mmap && mmapSupported {
		data, release, err = mapFile(path)
		mapped = err == nil
	} else {
		data, err = os.ReadFile(filepath.Clean(path))
	}
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}

	x, err := decode(data)
	if err != nil {
		if release != nil {
			_ = release()
		}
		return nil, fmt.Errorf("load index %s: %w", path, err)
	}
	x.mapped = mapped
	x.release = release
	return x, nil
}

// decode builds an index over data without copying where the host allows it.
func decode(data []byte) (*Index, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: file shorter than header (%d bytes)", ErrCorrupt, len(data))
	}
	var h header
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, h.Magic[:])
	}
	if h.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}
	if h.Metric != metricAngular {
		return nil, fmt.Errorf("%w: unsupported metric %d", ErrCorrupt, h.Metric)
	}
	if h.Dim == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrCorrupt)
	}
	sizes, ok := h.boundedSizes(int64(len(data)))
	if !ok {
		return nil, fmt.Errorf("%w: header describes sections larger than the file (%d bytes)", ErrCorrupt, len(data))
	}
	size := int64(headerSize)
	for _, s := range sizes {
		size += s
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("%w: size %d, header describes %d", ErrCorrupt, len(data), size)
	}

	var sec [6][]byte
	off := int64(headerSize)
	for i, s := range sizes {
		sec[i] = data[off : off+s]
		off += s
	}

	x := &Index{
		loaded:    true,
		dim:       int(h.Dim),
		leafSize:  int(h.LeafSize),
		seed:      h.Seed,
		ids:       int64View(sec[0]),
		vectors:   float32View(sec[1]),
		roots:     int32View(sec[2]),
		nodes:     nodeView(sec[3]),
		normals:   float32View(sec[4]),
		leafItems: int32View(sec[5]),
		size:      int64(len(data)),
	}
	if err := x.validate(); err != nil {
		return nil, err
	}
	return x, nil
}

var errEmptyTrees = errors.New("items without trees")

// validate checks every reference so traversal cannot index out of range or loop.
func (x *Index) validate() error {
	items := int32(len(x.ids))
	nodes := int32(len(x.nodes))
	normals := int32(len(x.normals) / x.dim)
	leaves := int32(len(x.leafItems))

	if items > 0 && len(x.roots) == 0 {
		return fmt.Errorf("%w: %w", ErrCorrupt, errEmptyTrees)
	}
	for t, r := range x.roots {
		if r < 0 || r >= nodes {
			return fmt.Errorf("%w: tree %d root %d out of range", ErrCorrupt, t, r)
		}
	}
	for i := range x.nodes {
		n := &x.nodes[i]
		self := int32(i)
		if n.isLeaf() {
			if n.right != -1 || n.normal != -1 || n.leafStart < 0 || n.leafCount < 0 ||
				int64(n.leafStart)+int64(n.leafCount) > int64(leaves) {
				return fmt.Errorf("%w: leaf node %d has bad references", ErrCorrupt, i)
			}
			continue
		}
		// Children always follow their parent in the arena, which rules out cycles.
		if n.left <= self || n.left >= nodes || n.right <= self || n.right >= nodes {
			return fmt.Errorf("%w: node %d children out of range", ErrCorrupt, i)
		}
		if n.normal < 0 || n.normal >= normals {
			return fmt.Errorf("%w: node %d normal out of range", ErrCorrupt, i)
		}
	}
	for i, pos := range x.leafItems {
		if pos < 0 || pos >= items {
			return fmt.Errorf("%w: leaf entry %d references item %d", ErrCorrupt, i, pos)
		}
	}
	return x.validateCoverage()
}

// validateCoverage checks that trees do not share nodes and that the leaves
// of every tree hold each item exactly once.
func (x *Index) validateCoverage() error {
	owner := make([]int32, len(x.nodes)) // tree+1 that reached the node
	holder := make([]int32, len(x.ids))  // tree+1 that reached the item
	var stack []int32
	for t, root := range x.roots {
		stamp := int32(t + 1)
		covered := 0
		stack = append(stack[:0], root)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if owner[cur] != 0 {
				return fmt.Errorf("%w: node %d reached twice in tree %d", ErrCorrupt, cur, t)
			}
			owner[cur] = stamp
			n := &x.nodes[cur]
			if !n.isLeaf() {
				stack = append(stack, n.left, n.right)
				continue
			}
			for _, pos := range x.leafItems[n.leafStart : n.leafStart+n.leafCount] {
				if holder[pos] == stamp {
					return fmt.Errorf("%w: tree %d holds item %d twice", ErrCorrupt, t, pos)
				}
				holder[pos] = stamp
				covered++
			}
		}
		if covered != len(x.ids) {
			return fmt.Errorf("%w: tree %d covers %d of %d items", ErrCorrupt, t, covered, len(x.ids))
		}
	}
	return nil
}

func flattenNodes(nodes []node) []int32 {
	out := make([]int32, 0, len(nodes)*5)
	for _, n := range nodes {
		out = append(out, n.left, n.right, n.normal, n.leafStart, n.leafCount)
	}
	return out
}
