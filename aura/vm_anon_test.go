// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import (
	"testing"
	"unsafe"
)

func TestAnonMmapRegionReserveAligned(t *testing.T) {
	vm := NewVirtualRegion()
	r, err := vm.Reserve(64*1024, 64*1024)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	defer vm.Release(r)

	if r.Size != 64*1024 {
		t.Fatalf("Size = %d, want %d", r.Size, 64*1024)
	}
	if uintptr(r.Base)%(64*1024) != 0 {
		t.Fatalf("Base %p not aligned to 64 KiB", r.Base)
	}

	b := unsafe.Slice((*byte)(r.Base), r.Size)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("region not zero-filled at offset %d: %v", i, v)
		}
	}
	b[0] = 1
	b[len(b)-1] = 1
}

func TestAnonMmapRegionRejectsBadArgs(t *testing.T) {
	vm := NewVirtualRegion()
	if _, err := vm.Reserve(0, 4096); err == nil {
		t.Error("Reserve with size 0 should fail")
	}
	if _, err := vm.Reserve(4096, 3); err == nil {
		t.Error("Reserve with non-power-of-two align should fail")
	}
}
