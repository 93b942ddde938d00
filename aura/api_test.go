// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import "testing"

func TestPackageLevelAllocFree(t *testing.T) {
	p := Alloc(128)
	if p == nil {
		t.Fatal("Alloc(128) returned nil")
	}
	q := Alloc(128)
	if q == nil {
		t.Fatal("Alloc(128) returned nil")
	}
	if p == q {
		t.Fatal("two live allocations aliased the same pointer")
	}
	Free(p)
	Free(q)
}

func TestPackageLevelFreeNil(t *testing.T) {
	Free(nil) // must not panic
}
