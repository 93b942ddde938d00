// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import (
	"sort"
	"sync"

	"github.com/cznic/sortutil"
)

// TopLevel is the shared pool every heapShard falls back to once its own
// buckets run dry (spec.md §4.3). It owns every segment carved on behalf
// of a given Heap and recycles blocks returned by Bucket.sourceBlock
// between size classes.
type TopLevel struct {
	vm            VirtualRegion
	deterministic bool

	mu        sync.Mutex
	perBucket [][]*BlockHeader // blocks already formatted for bucket i, awaiting reuse
	empty     []*BlockHeader   // unformatted blocks, any size class

	segMu    sync.Mutex
	segments []*SegmentHeader // every segment ever carved, for DebugSegments
}

func newTopLevel(vm VirtualRegion, deterministic bool) *TopLevel {
	return &TopLevel{
		vm:            vm,
		deterministic: deterministic,
		perBucket:     make([][]*BlockHeader, totalBucketCount),
	}
}

// request implements spec §4.3 "Operation: request(bucket_idx) -> block".
// It prefers a block already formatted for bucketIdx, falls back to an
// unformatted empty block reformatted on the spot, and only carves a new
// segment when both are exhausted.
func (t *TopLevel) request(bucketIdx int) *BlockHeader {
	t.mu.Lock()
	if n := len(t.perBucket[bucketIdx]); n > 0 {
		bh := t.perBucket[bucketIdx][n-1]
		t.perBucket[bucketIdx] = t.perBucket[bucketIdx][:n-1]
		t.mu.Unlock()
		return bh
	}

	if n := len(t.empty); n > 0 {
		bh := t.empty[n-1]
		t.empty = t.empty[:n-1]
		t.mu.Unlock()
		bh.format(bucketToSize(bucketIdx), t.deterministic)
		return bh
	}
	t.mu.Unlock()

	return t.carveSegment(bucketIdx)
}

// receive implements "Operation: receive(bucket_idx, block)": a block
// Bucket.sourceBlock drained from a maybe-free list is filed under
// bucketIdx if it still holds live objects, or into the plain empty pool
// if it doesn't; either way FREE_LOCK is cleared last, the rendezvous
// point sourceBlock's drain loop depends on.
func (t *TopLevel) receive(bucketIdx int, bh *BlockHeader) {
	t.mu.Lock()
	if bh.Allocated() == 0 {
		t.empty = append(t.empty, bh)
	} else {
		t.perBucket[bucketIdx] = append(t.perBucket[bucketIdx], bh)
	}
	t.mu.Unlock()

	clearFlag(&bh.flags, flagFreeLock)
}

// free implements "Operation: free(block)": a block with no remaining
// live objects and no bucket claim is filed as a plain, unformatted
// block available to any size class.
func (t *TopLevel) free(bh *BlockHeader) {
	t.mu.Lock()
	t.empty = append(t.empty, bh)
	t.mu.Unlock()
}

// carveSegment reserves a fresh segment sized for bucketIdx's segment
// class, formats its first block for bucketIdx, and files the rest as
// empty blocks (spec §4.5: segments are never released once carved).
func (t *TopLevel) carveSegment(bucketIdx int) *BlockHeader {
	class := segmentClassForBucket(bucketIdx)

	var seg *SegmentHeader
	var err error
	if class == segmentSmall {
		seg, err = newSmallSegment(t.vm)
	} else {
		seg, err = newLargeSegment(t.vm)
	}
	if err != nil {
		return nil
	}

	t.segMu.Lock()
	t.segments = append(t.segments, seg)
	t.segMu.Unlock()

	first := seg.blockHeader(0)
	first.format(bucketToSize(bucketIdx), t.deterministic)

	if seg.numBlocks > 1 {
		t.mu.Lock()
		for i := 1; i < seg.numBlocks; i++ {
			t.empty = append(t.empty, seg.blockHeader(i))
		}
		t.mu.Unlock()
	}

	return first
}

// Stats is a point-in-time snapshot of a TopLevel's bookkeeping, the
// AllocStats-equivalent spec §8's "Top-level accounting" property names.
// It is a plain value, not a live view: nothing under this package's
// hot path consults it.
type Stats struct {
	Segments     int // segments ever carved
	Blocks       int // blocks ever carved, across every segment
	Idle         int // unformatted blocks available for any bucket
	ReadyBuckets int // buckets with at least one pre-formatted block waiting
}

// Stats returns a snapshot of this pool's current bookkeeping.
func (t *TopLevel) Stats() Stats {
	t.segMu.Lock()
	segCount := len(t.segments)
	blockCount := 0
	for _, seg := range t.segments {
		blockCount += seg.numBlocks
	}
	t.segMu.Unlock()

	t.mu.Lock()
	ready := 0
	for _, bucket := range t.perBucket {
		if len(bucket) > 0 {
			ready++
		}
	}
	idle := len(t.empty)
	t.mu.Unlock()

	return Stats{Segments: segCount, Blocks: blockCount, Idle: idle, ReadyBuckets: ready}
}

// DebugSegments returns every segment this pool has carved, ordered by
// base address, for diagnostics and tests (spec §7's segment registry).
// Sorting, not iteration order, is what callers rely on: the registry
// itself is append-only and never reordered in place.
func (t *TopLevel) DebugSegments() []*SegmentHeader {
	t.segMu.Lock()
	out := make([]*SegmentHeader, len(t.segments))
	copy(out, t.segments)
	t.segMu.Unlock()

	bases := make(sortutil.Int64Slice, len(out))
	index := make(map[int64]*SegmentHeader, len(out))
	for i, seg := range out {
		addr := int64(uintptr(seg.base))
		bases[i] = addr
		index[addr] = seg
	}
	sort.Sort(bases)

	sorted := make([]*SegmentHeader, len(out))
	for i, addr := range bases {
		sorted[i] = index[addr]
	}
	return sorted
}
