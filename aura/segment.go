// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import (
	"unsafe"
)

// segmentKind is a closed tag selecting the block-layout constants for a
// segment; spec.md §9 ("Polymorphism"): no dynamic dispatch on this in the
// hot path, it only ever gates which constants apply.
type segmentKind uint8

const (
	kindSmall segmentKind = iota
	kindLarge
	kindHuge
)

// SegmentHeader occupies the first blockSize bytes of a segment; spec.md
// §3. Its own size plus the per-segment BlockHeader array is rounded up to
// blockSize so that "blocks start after the header at offset block_size"
// (spec §4.5) holds uniformly across segment kinds: the header region is
// defined to be exactly one block_size wide, and block bodies tile the
// remainder.
type SegmentHeader struct {
	kind      segmentKind
	blockSize int // bytes per block body, also the header region width
	numBlocks int
	total     int            // total segment bytes (== blockSize*(numBlocks+1) for small/large)
	base      unsafe.Pointer // == &SegmentHeader itself
}

// segmentHeaderPayload is how much of the header region is "real" data: the
// SegmentHeader struct plus numBlocks BlockHeaders. The remainder, up to
// blockSize, is unused padding that keeps the block-index arithmetic in
// blockIndexAt simple (spec §4.5).
func segmentHeaderPayload(numBlocks int) int {
	return int(unsafe.Sizeof(SegmentHeader{})) + numBlocks*int(unsafe.Sizeof(BlockHeader{}))
}

// blockHeader returns the i'th BlockHeader embedded in this segment's
// header region.
func (s *SegmentHeader) blockHeader(i int) *BlockHeader {
	invariant(i >= 0 && i < s.numBlocks, "segment block index out of range", i)
	off := int(unsafe.Sizeof(SegmentHeader{})) + i*int(unsafe.Sizeof(BlockHeader{}))
	return (*BlockHeader)(unsafe.Add(unsafe.Pointer(s), off))
}

// blockBody returns the base address of the i'th block's object region.
func (s *SegmentHeader) blockBody(i int) unsafe.Pointer {
	invariant(i >= 0 && i < s.numBlocks, "segment block index out of range", i)
	return unsafe.Add(s.base, s.blockSize*(i+1))
}

// newSegment reserves a fresh aligned VM region and lays out a
// SegmentHeader, its embedded BlockHeader array, and the block bodies, per
// spec.md §3/§4.5. Every BlockHeader is left unformatted (count == 0);
// formatting for a specific object size happens lazily in
// BlockHeader.format when the block is first sourced by a bucket.
func newSegment(vm VirtualRegion, kind segmentKind, blockSize int, numBlocks int) (*SegmentHeader, error) {
	total := blockSize * (numBlocks + 1)
	region, err := vm.Reserve(total, segmentSize)
	if err != nil {
		return nil, err
	}

	if segmentHeaderPayload(numBlocks) > blockSize {
		// Should never happen for the schedules this package builds
		// (small: 63*sizeof(BlockHeader) fits well under 64 KiB); kept
		// as a hard invariant rather than a silent truncation.
		invariant(false, "segment header payload exceeds header region", segmentHeaderPayload(numBlocks))
	}

	s := (*SegmentHeader)(region.Base)
	*s = SegmentHeader{kind: kind, blockSize: blockSize, numBlocks: numBlocks, total: total, base: region.Base}

	for i := 0; i < numBlocks; i++ {
		bh := s.blockHeader(i)
		*bh = BlockHeader{interior: s.blockBody(i), segmentIdx: i}
	}

	return s, nil
}

func newSmallSegment(vm VirtualRegion) (*SegmentHeader, error) {
	return newSegment(vm, kindSmall, smallBlockSize, smallBlockCount)
}

func newLargeSegment(vm VirtualRegion) (*SegmentHeader, error) {
	return newSegment(vm, kindLarge, segmentSize/2, largeBlockCount)
}

// hugeHeaderWidth is the fixed header-region size for a huge segment,
// large enough to hold a SegmentHeader and a single BlockHeader with room
// to spare. Unlike small/large segments, a huge segment's body is sized
// to the caller's request rather than to the header, so it cannot reuse
// newSegment's "header is exactly one block wide" convention; the two
// regions are laid out independently here.
const hugeHeaderWidth = 4096

// newHugeSegment reserves a dedicated region sized to fit a hugeHeaderWidth
// header plus one block body of objectSize bytes rounded up to
// hugeHeaderWidth, for objects at or above largeObjectBoundary (spec §3
// lists Huge in the segment-kind tag; §6 never gives it bucket math, so
// this package treats a huge request as a direct, unshared, single-object
// segment, never revisited by the top-level pool). The region is
// 4MiB-aligned and the object starts hugeHeaderWidth past its base, so
// segmentAt's masked-to-4MiB resolution (spec I6) maps the object's start
// address back to this header for any objectSize. An address more than
// 4MiB into a larger object would mask to a different window; Free only
// takes the start address.
func newHugeSegment(vm VirtualRegion, objectSize int) (*SegmentHeader, error) {
	invariant(segmentHeaderPayload(1) <= hugeHeaderWidth, "huge segment header payload exceeds reserved header page", segmentHeaderPayload(1))

	bodyWidth := objectSize
	if bodyWidth%hugeHeaderWidth != 0 {
		bodyWidth += hugeHeaderWidth - bodyWidth%hugeHeaderWidth
	}
	total := hugeHeaderWidth + bodyWidth

	region, err := vm.Reserve(total, segmentSize)
	if err != nil {
		return nil, err
	}

	s := (*SegmentHeader)(region.Base)
	*s = SegmentHeader{kind: kindHuge, blockSize: bodyWidth, numBlocks: 1, total: total, base: region.Base}
	bh := s.blockHeader(0)
	*bh = BlockHeader{interior: unsafe.Add(region.Base, hugeHeaderWidth), segmentIdx: 0}
	return s, nil
}

// blockIndexAt returns the index of the block whose object region contains
// p, the inverse of blockBody. Large and huge segments hold exactly one
// block each and are resolved trivially; their body layout does not
// follow the small-segment "header is one block wide" convention that the
// general formula below assumes.
func (s *SegmentHeader) blockIndexAt(p unsafe.Pointer) int {
	if s.numBlocks == 1 {
		return 0
	}
	off := uintptr(p) - uintptr(s.base)
	idx := int(off/uintptr(s.blockSize)) - 1
	invariant(idx >= 0 && idx < s.numBlocks, "pointer resolves outside segment's block range", p)
	return idx
}

// segmentAt masks a pointer down to its containing segment's base address;
// spec.md I6 is exactly this operation. It is the sole mechanism for
// resolving an arbitrary application pointer back to allocator metadata.
func segmentAt(p unsafe.Pointer) *SegmentHeader {
	addr := uintptr(p) &^ uintptr(segmentSize-1)
	return (*SegmentHeader)(unsafe.Pointer(addr))
}
