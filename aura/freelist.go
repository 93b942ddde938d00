// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import (
	"sync/atomic"
	"unsafe"
)

// A cell is a free object slot. The first machine word of a free cell
// holds the address of the next free cell in whichever list it is on; the
// rest of the cell's bytes are untouched until the cell is reissued by
// alloc. No cell is ever on more than one list at a time (spec.md I7).
type cell unsafe.Pointer

func cellNext(c unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(c)
}

func cellSetNext(c, next unsafe.Pointer) {
	*(*unsafe.Pointer)(c) = next
}

// localList is a LIFO stack of free cells touched only by a block's owning
// goroutine: alloc_list and free_list in spec.md §3. It carries no
// synchronization of its own, matching spec §5's "thread-private,
// unsynchronised" classification.
type localList struct {
	head unsafe.Pointer
}

func (l *localList) empty() bool { return l.head == nil }

func (l *localList) push(c unsafe.Pointer) {
	cellSetNext(c, l.head)
	l.head = c
}

func (l *localList) pop() unsafe.Pointer {
	c := l.head
	if c != nil {
		l.head = cellNext(c)
	}
	return c
}

// swap atomically, from the perspective of the owning goroutine only,
// replaces the list head and returns the old one. It has no memory
// ordering requirement of its own since localList is never touched by any
// other goroutine; the name mirrors the Rust BiFreeList::swap it is
// grounded on.
func (l *localList) swap(newHead unsafe.Pointer) unsafe.Pointer {
	old := l.head
	l.head = newHead
	return old
}

// publicList is a multi-producer, single-consumer LIFO stack of free
// cells: pub_free_list in spec.md §3. Any goroutine may push (a foreign
// free); only the owning goroutine may drain it, and only via swap, never
// via a concurrent pop (spec §4.1 "Free-list swap semantics").
type publicList struct {
	head unsafe.Pointer // atomic
}

func (l *publicList) empty() bool {
	return atomic.LoadPointer(&l.head) == nil
}

// push is safe for any number of concurrent callers.
func (l *publicList) push(c unsafe.Pointer) {
	for {
		old := atomic.LoadPointer(&l.head)
		cellSetNext(c, old)
		if atomic.CompareAndSwapPointer(&l.head, old, c) {
			return
		}
	}
}

// swap is the drain operation's linearisation point (spec §5).
func (l *publicList) swap(newHead unsafe.Pointer) unsafe.Pointer {
	return atomic.SwapPointer(&l.head, newHead)
}
