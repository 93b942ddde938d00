// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import (
	"sync/atomic"
	"unsafe"
)

// Bucket is a single size-class container inside a Heap (spec.md §4.2).
// active is the block currently serving allocations; maybeFreeList is an
// MPSC stack of blocks a freeing goroutine has advertised as possibly
// empty, drained by sourceBlock the next time this bucket needs a block.
type Bucket struct {
	active        unsafe.Pointer // atomic *BlockHeader
	maybeFreeList unsafe.Pointer // atomic *BlockHeader, linked via nextInMaybeFree
	maybeMeshList unsafe.Pointer // atomic *BlockHeader, linked via nextInMaybeMesh
	blockCount    int64          // atomic, blocks ever owned by this bucket
}

func (bk *Bucket) loadActive() *BlockHeader {
	return (*BlockHeader)(atomic.LoadPointer(&bk.active))
}

func (bk *Bucket) storeActive(b *BlockHeader) {
	atomic.StorePointer(&bk.active, unsafe.Pointer(b))
}

// alloc implements spec §4.2 "Operation: alloc(bucket_idx)".
func (bk *Bucket) alloc(shard *heapShard, bucketIdx int, top *TopLevel) unsafe.Pointer {
	active := bk.loadActive()
	if active == nil {
		bh := bk.sourceBlock(shard, bucketIdx, top)
		if bh == nil {
			return nil
		}
		bh.nextInBucket = nil
		bk.storeActive(bh)
		return bh.alloc()
	}

	if obj := active.alloc(); obj != nil {
		return obj
	}

	bh := bk.sourceBlock(shard, bucketIdx, top)
	if bh == nil {
		return nil
	}
	bh.nextInBucket = bk.loadActive()
	bh.nextInBucket.prepInactive()
	bk.storeActive(bh)
	return bh.alloc()
}

// maybeFree publishes a block onto this bucket's maybe-free list; called
// by the goroutine that wins the CAS in BlockHeader.free (spec I2: "block
// in bucket.maybe_free_list => flags.MAYBE_FREE", which the caller has
// already established before calling this).
func (bk *Bucket) maybeFree(b *BlockHeader) {
	for {
		cur := atomic.LoadPointer(&bk.maybeFreeList)
		atomic.StorePointer(&b.nextInMaybeFree, cur)
		if atomic.CompareAndSwapPointer(&bk.maybeFreeList, cur, unsafe.Pointer(b)) {
			return
		}
	}
}

// sourceBlock implements spec §4.2 "Operation: source_block". It first
// drains maybeFreeList, retaining exactly one candidate block for
// reactivation and returning the rest to the top-level pool under their
// own size class; failing that, it asks the top-level pool directly.
func (bk *Bucket) sourceBlock(shard *heapShard, bucketIdx int, top *TopLevel) *BlockHeader {
	var first *BlockHeader

	freeList := (*BlockHeader)(atomic.SwapPointer(&bk.maybeFreeList, nil))
	for freeList != nil {
		next := (*BlockHeader)(atomic.LoadPointer(&freeList.nextInMaybeFree))

		// The active block can be observed here if a concurrent free
		// set MAYBE_FREE on it; per spec §9's open-question
		// resolution, the active block is never handed back to the
		// top level mid-drain — only its MAYBE_FREE bit is cleared.
		if freeList == bk.loadActive() {
			clearFlag(&freeList.flags, flagMaybeFree)
			freeList = next
			continue
		}

		// Toggle FREE_LOCK on, MAYBE_FREE off in one atomic step, per
		// spec §4.2.
		xorFlags(&freeList.flags, flagFreeLock|flagMaybeFree)

		if first == nil {
			clearFlag(&freeList.flags, flagFreeLock)
			first = freeList
		} else {
			freeList.prepFree()
			top.receive(bucketSelect(freeList.objectSize), freeList)
		}
		freeList = next
	}

	var bh *BlockHeader
	if first != nil {
		bh = first
	} else {
		bh = top.request(bucketIdx)
		if bh == nil {
			return nil
		}
	}

	bh.prepActive(shard, bk)
	atomic.AddInt64(&bk.blockCount, 1)
	return bh
}

func xorFlags(addr *uint64, mask uint64) {
	for {
		old := atomic.LoadUint64(addr)
		if atomic.CompareAndSwapUint64(addr, old, old^mask) {
			return
		}
	}
}

func clearFlag(addr *uint64, mask uint64) {
	for {
		old := atomic.LoadUint64(addr)
		if atomic.CompareAndSwapUint64(addr, old, old&^mask) {
			return
		}
	}
}
