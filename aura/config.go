// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

// Config amends the behavior of NewHeap, in the same spirit as
// dbm.Options: a struct of optional fields, validated once, with
// unexported bookkeeping fields appended at the end.
type Config struct {
	// VM supplies virtual memory for new segments. Left nil, a default
	// OS-backed provider (NewVirtualRegion) is used. Tests substitute an
	// in-memory fake to run without touching the OS mmap path.
	VM VirtualRegion

	// DeterministicSlotOrder, if true, makes BlockHeader.format build a
	// reproducible (non-random) slot permutation instead of drawing
	// entropy from the runtime, so that tests exercising the allocation
	// fast path get stable slot orders. Production callers should leave
	// this false.
	DeterministicSlotOrder bool

	checked bool
}

func (c *Config) check() error {
	if c.checked {
		return nil
	}
	if c.VM == nil {
		c.VM = NewVirtualRegion()
	}
	c.checked = true
	return nil
}
