// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import (
	"sync"
	"unsafe"
)

var (
	defaultHeapOnce sync.Once
	defaultHeap     *Heap
)

func theDefaultHeap() *Heap {
	defaultHeapOnce.Do(func() {
		h, err := NewHeap(Config{})
		if err != nil {
			// Config{} never fails check(); a default VirtualRegion is
			// always constructible.
			panic(err)
		}
		defaultHeap = h
	})
	return defaultHeap
}

// Alloc returns a pointer to a region of at least size bytes from the
// package's default Heap, or nil if size is negative or virtual memory is
// exhausted. The region is not cleared (see Heap.Alloc). size == 0 returns a real pointer into the
// smallest size class rather than nil. Most callers want a dedicated
// Heap (NewHeap) instead; Alloc/Free exist for callers that just want
// one shared allocator, the way a C allocator's malloc/free are ambient.
func Alloc(size int) unsafe.Pointer { return theDefaultHeap().Alloc(size) }

// Free returns obj, previously returned by Alloc, to the default Heap.
func Free(obj unsafe.Pointer) { theDefaultHeap().Free(obj) }
