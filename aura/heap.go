// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import "unsafe"

// shardCount is the size of the fixed heapShard array a Heap hashes into.
// Go gives no portable way to bind data to the calling goroutine's OS
// thread the way the original design assumes (spec §9 Open Question,
// "thread affinity"): there is no stable goroutine ID, and one can't be
// faked without defeating the scheduler's freedom to migrate goroutines
// across threads. This package substitutes a fixed table of shards
// selected by hashing a stack-local address, which gives most callers
// consistent affinity across repeated allocations without it, since a
// goroutine's own stack rarely moves relative to other goroutines'
// between one call and the next. Correctness never depends on that
// affinity holding: the free-list protocol (spec I2, localList vs.
// publicList in freelist.go) already tolerates a free observed from a
// shard other than the one that allocated the object, and only pays for
// it with a publicList CAS instead of an uncontended localList push.
const shardCount = 32

// heapShard is one row of a Heap's bucket table together with the
// goroutines currently hashed onto it.
type heapShard struct {
	buckets []Bucket
}

func newHeapShard(bucketCount int) *heapShard {
	return &heapShard{buckets: make([]Bucket, bucketCount)}
}

// pickShard hashes a stack-local address to an index in [0, shardCount).
// The multiplier is Knuth's 2654435761 (the standard 32-bit Fibonacci
// hash constant), chosen only to spread adjacent stack addresses across
// shards; it carries no cryptographic weight.
func pickShard(shards []*heapShard) *heapShard {
	var probe byte
	addr := uintptr(unsafe.Pointer(&probe))
	h := (addr >> 4) * 2654435761
	return shards[(h>>8)%uintptr(len(shards))]
}

// Heap is a complete, self-contained allocator instance: a TopLevel pool
// plus the shard table that gives callers cheap, usually-uncontended
// access into it (spec.md §4's Heap/TopLevel split). Multiple Heaps never
// share segments; the package-level Alloc/Free functions (api.go) keep
// one lazily-constructed Heap for callers who just want one shared
// allocator.
type Heap struct {
	cfg    Config
	top    *TopLevel
	shards []*heapShard
}

// NewHeap constructs a Heap from cfg, applying defaults for any zero
// fields (see Config.check).
func NewHeap(cfg Config) (*Heap, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	shards := make([]*heapShard, shardCount)
	for i := range shards {
		shards[i] = newHeapShard(totalBucketCount)
	}
	return &Heap{
		cfg:    cfg,
		top:    newTopLevel(cfg.VM, cfg.DeterministicSlotOrder),
		shards: shards,
	}, nil
}

// Alloc returns a pointer to a region of at least size bytes, or nil if
// size is negative or the platform is out of virtual memory. The region
// is not cleared: a reused slot keeps its previous object's bytes, and the
// first word of a slot holds the free-list link it carried while it was
// free. size == 0 is not special-cased: it is routed through
// bucketSelect like any other size and returns a real pointer into the
// smallest size class (spec.md's §4.5, "size 0 returns the smallest
// size class"). Objects at or above largeObjectBoundary bypass the
// bucketed schedule entirely (spec §6: "Huge" segment kind).
func (h *Heap) Alloc(size int) unsafe.Pointer {
	if size < 0 {
		return nil
	}
	if size >= largeObjectBoundary {
		return h.allocHuge(size)
	}

	bucketIdx := bucketSelect(size)
	shard := pickShard(h.shards)
	return shard.buckets[bucketIdx].alloc(shard, bucketIdx, h.top)
}

func (h *Heap) allocHuge(size int) unsafe.Pointer {
	seg, err := newHugeSegment(h.cfg.VM, size)
	if err != nil {
		return nil
	}
	bh := seg.blockHeader(0)
	bh.format(size, h.cfg.DeterministicSlotOrder)
	return bh.alloc()
}

// Free returns obj, previously returned by Alloc on this same Heap, to
// the allocator. Freeing a nil pointer is a no-op, matching spec.md's
// silence on the case. Double-freeing a pointer, or freeing one that
// resolves outside its block's object region, is an invariant violation
// and panics (see BlockHeader.free). Free does not check that obj came
// from this Heap: it resolves obj through whatever segment header sits at
// obj's 4 MiB-aligned base.
func (h *Heap) Free(obj unsafe.Pointer) {
	if obj == nil {
		return
	}
	seg := segmentAt(obj)
	idx := seg.blockIndexAt(obj)
	bh := seg.blockHeader(idx)

	cur := pickShard(h.shards)
	isOwner := bh.ownerShard() == cur

	if bh.free(obj, isOwner) {
		if bkt := bh.bucketRef(); bkt != nil {
			bkt.maybeFree(bh)
		} else if seg.kind != kindHuge {
			// A block freed before it was ever claimed by a bucket has no
			// bucket to notify. A huge segment's block has no bucket
			// either, but stays with its segment and is never handed to
			// the top-level pool (see newHugeSegment).
			h.top.free(bh)
		}
	}
}

// DebugSegments exposes the underlying TopLevel's segment registry,
// ordered by base address (spec §7).
func (h *Heap) DebugSegments() []*SegmentHeader { return h.top.DebugSegments() }

// Stats returns a point-in-time snapshot of this Heap's top-level pool
// (spec §8's "Top-level accounting" testable property).
func (h *Heap) Stats() Stats { return h.top.Stats() }
