package util

/*
Encoding utilities for the octree file format. These helpers do not check
lengths - callers must ensure buffers are large enough, or a panic may
result. All values are little-endian.
*/

import (
	"encoding/binary"
	"math"
)

// ReadU8 reads a uint8 from src and stores it in x, returning the read length.
func ReadU8(src []byte, x *uint8) int {
	*x = src[0]
	return 1
}

// ReadU32 reads a uint32 from src and stores it in x, returning the read length.
func ReadU32(src []byte, x *uint32) int {
	*x = binary.LittleEndian.Uint32(src)
	return 4
}

// ReadU64 reads a uint64 from src and stores it in x, returning the read length.
func ReadU64(src []byte, x *uint64) int {
	*x = binary.LittleEndian.Uint64(src)
	return 8
}

// ReadF32 reads a float32 from src and stores it in x, returning the read length.
func ReadF32(src []byte, x *float32) int {
	*x = math.Float32frombits(binary.LittleEndian.Uint32(src))
	return 4
}

// U8 writes a uint8 to dst and returns the written length.
func U8(dst []byte, src uint8) int {
	dst[0] = src
	return 1
}

// U32 writes a uint32 to dst and returns the written length.
func U32(dst []byte, src uint32) int {
	binary.LittleEndian.PutUint32(dst, src)
	return 4
}

// U64 writes a uint64 to dst and returns the written length.
func U64(dst []byte, src uint64) int {
	binary.LittleEndian.PutUint64(dst, src)
	return 8
}

// F32 writes a float32 to dst and returns the written length.
func F32(dst []byte, src float32) int {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(src))
	return 4
}
