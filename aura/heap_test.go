// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import (
	"sync"
	"testing"
	"unsafe"
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	h, err := NewHeap(Config{VM: fakeVM{}, DeterministicSlotOrder: true})
	if err != nil {
		t.Fatalf("NewHeap: %v", err)
	}
	return h
}

func TestHeapAllocFreeRoundTrip(t *testing.T) {
	h := newTestHeap(t)

	sizes := []int{1, 15, 16, 64, 513, 9000, 600000}
	for _, sz := range sizes {
		p := h.Alloc(sz)
		if p == nil {
			t.Fatalf("Alloc(%d) returned nil", sz)
		}
		b := unsafe.Slice((*byte)(p), sz)
		for i := range b {
			b[i] = byte(i)
		}
		h.Free(p)
	}
}

func TestHeapAllocNeverAliases(t *testing.T) {
	h := newTestHeap(t)
	const n = 500

	seen := make(map[unsafe.Pointer]bool, n)
	var ptrs []unsafe.Pointer
	for i := 0; i < n; i++ {
		p := h.Alloc(48)
		if p == nil {
			t.Fatalf("Alloc returned nil at i=%d", i)
		}
		if seen[p] {
			t.Fatalf("Alloc returned an already-live pointer: %p", p)
		}
		seen[p] = true
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		h.Free(p)
	}
}

func TestHeapAllocNegativeReturnsNil(t *testing.T) {
	h := newTestHeap(t)
	if p := h.Alloc(-1); p != nil {
		t.Error("Alloc(-1) should return nil")
	}
}

// TestHeapAllocZeroReturnsSmallestSizeClass checks that size 0 is routed
// through bucketSelect like any other size rather than short-circuited to
// nil (spec.md: size 0 returns a pointer to the smallest size class).
func TestHeapAllocZeroReturnsSmallestSizeClass(t *testing.T) {
	h := newTestHeap(t)
	p := h.Alloc(0)
	if p == nil {
		t.Fatal("Alloc(0) should return a valid pointer, not nil")
	}
	h.Free(p)
}

func TestHeapFreeNilIsNoop(t *testing.T) {
	h := newTestHeap(t)
	h.Free(nil) // must not panic
}

func TestHeapHugeAllocation(t *testing.T) {
	h := newTestHeap(t)
	p := h.Alloc(largeObjectBoundary + 1024)
	if p == nil {
		t.Fatal("huge Alloc returned nil")
	}
	h.Free(p)
}

// TestHeapConcurrentAllocFree stresses a single bucket from many
// goroutines at once, checking that no two goroutines ever observe the
// same live pointer.
func TestHeapConcurrentAllocFree(t *testing.T) {
	h := newTestHeap(t)
	const goroutines = 16
	const perGoroutine = 200

	var mu sync.Mutex
	seen := make(map[unsafe.Pointer]bool)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				p := h.Alloc(96)
				if p == nil {
					t.Errorf("Alloc returned nil")
					return
				}
				mu.Lock()
				dup := seen[p]
				seen[p] = true
				mu.Unlock()
				if dup {
					t.Errorf("two goroutines observed the same live pointer %p", p)
				}
				h.Free(p)
				mu.Lock()
				delete(seen, p)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

// TestHeapForeignFree allocates on one goroutine and frees on another, the
// scenario the public free-list exists for (spec.md's concurrency model).
func TestHeapForeignFree(t *testing.T) {
	h := newTestHeap(t)
	const n = 100

	ptrs := make(chan unsafe.Pointer, n)
	var producer sync.WaitGroup
	producer.Add(1)
	go func() {
		defer producer.Done()
		for i := 0; i < n; i++ {
			p := h.Alloc(72)
			if p == nil {
				t.Errorf("Alloc returned nil")
			}
			ptrs <- p
		}
		close(ptrs)
	}()

	var consumer sync.WaitGroup
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		for p := range ptrs {
			h.Free(p)
		}
	}()

	producer.Wait()
	consumer.Wait()
}
