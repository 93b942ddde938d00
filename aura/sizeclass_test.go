// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import "testing"

func TestBucketSelectTiny(t *testing.T) {
	table := []struct{ size, want int }{
		{1, 0},
		{8, 0},
		{16, 0},
		{17, 0},
		{24, 1},
		{32, 1},
		{504, 61},
		{511, 61},
	}
	for _, tt := range table {
		if got := bucketSelectTiny(tt.size); got != tt.want {
			t.Errorf("bucketSelectTiny(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

// TestBucketToSizeRoundTrip checks that every bucket's stride, when fed
// back through bucketSelect, resolves to that same bucket: the schedule
// must not alias two buckets onto one another.
func TestBucketToSizeRoundTrip(t *testing.T) {
	for b := 0; b < totalBucketCount; b++ {
		size := bucketToSize(b)
		if size <= 0 {
			t.Fatalf("bucketToSize(%d) = %d, want positive", b, size)
		}
		if got := bucketSelect(size); got != b {
			t.Errorf("bucketSelect(bucketToSize(%d)=%d) = %d, want %d", b, size, got, b)
		}
	}
}

// TestFragmentationBound checks spec's <=25% internal fragmentation bound
// for the semi-logarithmic schedule (sizes >= tinyObjectBoundary): the
// bucket a size maps to must never waste more than a quarter of its
// stride.
func TestFragmentationBound(t *testing.T) {
	for size := tinyObjectBoundary; size < largeObjectBoundary; size += 37 {
		b := bucketSelect(size)
		stride := bucketToSize(b)
		if stride < size {
			t.Fatalf("bucket %d stride %d smaller than requested size %d", b, stride, size)
		}
		waste := float64(stride-size) / float64(stride)
		if waste > 0.25 {
			t.Errorf("size %d -> bucket %d stride %d wastes %.2f%%, want <=25%%", size, b, stride, waste*100)
		}
	}
}

func TestBucketMonotonic(t *testing.T) {
	prev := -1
	for size := 1; size < largeObjectBoundary; size++ {
		b := bucketSelect(size)
		if b < prev {
			t.Fatalf("bucketSelect not monotonic at size %d: got %d after %d", size, b, prev)
		}
		prev = b
	}
}

func TestSegmentClassForBucket(t *testing.T) {
	if segmentClassForBucket(0) != segmentSmall {
		t.Error("bucket 0 should be segmentSmall")
	}
	last := totalBucketCount - 1
	if segmentClassForBucket(last) != segmentLarge {
		t.Error("last bucket should be segmentLarge")
	}
}
