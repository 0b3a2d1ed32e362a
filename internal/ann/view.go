package ann

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Section views alias the artifact bytes when the host is little-endian and
// the section is aligned; otherwise they decode a copy.

var littleEndianHost = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

func aliasable(b []byte, align uintptr) bool {
	return littleEndianHost && uintptr(unsafe.Pointer(&b[0]))%align == 0
}

func float32View(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	if aliasable(b, 4) {
		return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

func int32View(b []byte) []int32 {
	if len(b) == 0 {
		return nil
	}
	if aliasable(b, 4) {
		return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)
	}
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

func int64View(b []byte) []int64 {
	if len(b) == 0 {
		return nil
	}
	if aliasable(b, 8) {
		return unsafe.Slice((*int64)(unsafe.Pointer(&b[0])), len(b)/8)
	}
	out := make([]int64, len(b)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out
}

func nodeView(b []byte) []node {
	if len(b) == 0 {
		return nil
	}
	if aliasable(b, 4) && unsafe.Sizeof(node{}) == nodeSize {
		return unsafe.Slice((*node)(unsafe.Pointer(&b[0])), len(b)/nodeSize)
	}
	flat := int32View(b)
	out := make([]node, len(flat)/5)
	for i := range out {
		f := flat[5*i : 5*i+5]
		out[i] = node{left: f[0], right: f[1], normal: f[2], leafStart: f[3], leafCount: f[4]}
	}
	return out
}
