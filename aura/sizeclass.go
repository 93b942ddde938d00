// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import "github.com/cznic/mathutil"

// Size-class schedule (spec.md §6). Sizes below tinyObjectBoundary use an
// 8-byte-granularity linear schedule; sizes up to largeObjectBoundary use a
// semi-logarithmic schedule with 4 buckets per power of two (<= 25%
// internal fragmentation). Everything at or above largeObjectBoundary is
// "huge" and is out of the bucketed schedule entirely (one object per
// segment, sized to exactly what was asked, rounded up to a page).
const (
	tinyObjectBoundary  = 512       // 512 B
	tinyBucketStep      = 8         // bytes per tiny bucket
	smallObjectBoundary = 8 * 1024  // 8 KiB: small/large segment-class split
	largeObjectBoundary = 512 * 1024 // 512 KiB: top of the bucketed schedule

	segmentSize      = 4 * 1024 * 1024 // 4 MiB, see segment.go
	smallBlockSize   = 64 * 1024       // 64 KiB
	smallBlockCount  = 63              // blocks per small-class segment
	largeBlockCount  = 1               // blocks per large-class segment
)

// tinySmallBuckets is the number of tiny-schedule buckets: one bucket per
// 8-byte step up to, but not including, tinyObjectBoundary (strides 16, 24,
// ..., 504).
const tinySmallBuckets = tinyObjectBoundary/tinyBucketStep - 2

// bitLen is floor(log2(n))+1 for n > 0, i.e. the Rust original's
// extrinsic_bsr. Grounded on mathutil.BitLen, used the same way by the
// cznic/memory allocator to turn a requested size into a size-class log.
func bitLen(n int) int { return mathutil.BitLen(n) }

// nonTinySmallBuckets and largeBucketCount are computed once from the bucket
// math below rather than hand-derived, mirroring how the Rust source
// defines them as consts in terms of bucketSelect itself. Sizes just below
// largeObjectBoundary round up to the bucket whose stride is
// largeObjectBoundary, so that bucket is counted too.
var (
	nonTinySmallBuckets = bucketSelect(smallObjectBoundary) - bucketSelect(tinyObjectBoundary)
	largeBucketCount    = bucketSelect(largeObjectBoundary) - bucketSelect(smallObjectBoundary) + 1
	smallBucketCount    = tinySmallBuckets + nonTinySmallBuckets
	totalBucketCount    = smallBucketCount + largeBucketCount
)

func bucketSelectTiny(size int) int {
	if size < 16 {
		return 0
	}
	return (size - 16) / tinyBucketStep
}

func bucketSelectSemiLog(size, boundary int) int {
	sizeBits := bitLen(size)
	mult := sizeBits - bitLen(boundary)
	idx := sizeBits - 3
	det := (size >> uint(idx)) & 3
	return 4*mult + det
}

// bucketSelect maps a requested object size to the smallest bucket whose
// stride (bucketToSize) is at least size. The tiny and semi-logarithmic
// formulas give the bucket with the largest stride not above size; a size
// that falls strictly between two strides moves up one bucket.
func bucketSelect(size int) int {
	var b int
	if size < tinyObjectBoundary {
		b = bucketSelectTiny(size)
	} else {
		b = bucketSelectSemiLog(size, tinyObjectBoundary) + tinySmallBuckets
	}
	if bucketToSize(b) < size {
		b++
	}
	return b
}

// bucketToSize returns the object stride served by the given bucket, with
// bucketSelect(bucketToSize(b)) == b for every bucket. It is used to format
// newly sourced blocks and to verify the fragmentation bound in tests.
func bucketToSize(bucket int) int {
	if bucket < tinySmallBuckets {
		return bucket*tinyBucketStep + 16
	}
	bucket -= tinySmallBuckets
	sizeBits := bucket/4 + bitLen(tinyObjectBoundary)
	det := (bucket % 4) | 4
	idx := sizeBits - 3
	return det << uint(idx)
}

// segmentClass identifies which of the two bucketed VM-reservation
// granularities a bucket belongs to. Huge (>= largeObjectBoundary) objects
// are served directly by the VirtualRegion provider and never flow through
// a bucket at all (see Heap.Alloc in heap.go).
type segmentClass uint8

const (
	segmentSmall segmentClass = iota
	segmentLarge
)

func segmentClassForBucket(bucket int) segmentClass {
	if bucket < smallBucketCount {
		return segmentSmall
	}
	return segmentLarge
}

func (c segmentClass) blocksPerSegment() int {
	if c == segmentSmall {
		return smallBlockCount
	}
	return largeBlockCount
}

func (c segmentClass) blockSize() int {
	if c == segmentSmall {
		return smallBlockSize
	}
	return segmentSize
}
