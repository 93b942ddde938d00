// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import (
	"unsafe"
)

// fakeVM is an in-memory VirtualRegion used by tests that want segment
// and block behavior without exercising the real mmap path. It hands out
// segmentSize-aligned slices backed by ordinary Go heap memory; this is
// safe only because this package never munmaps a live segment (spec
// §4.5, segments are never released) and because fakeVM's Release is a
// no-op, matching that same guarantee.
type fakeVM struct{}

func (fakeVM) Reserve(size, align int) (Region, error) {
	// Over-allocate so an aligned interior slice can always be found,
	// same strategy as anonMmapRegion.Reserve.
	buf := make([]byte, size+align)
	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (base + uintptr(align) - 1) &^ (uintptr(align) - 1)
	return Region{Base: unsafe.Pointer(aligned), Size: size}, nil
}

func (fakeVM) Release(Region) error { return nil }
