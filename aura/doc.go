// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*

Package aura implements a general purpose, multi-threaded, size-class heap
allocator with a mesh-friendly block layout.

The package exposes exactly two entry points to application code: Alloc,
which returns a pointer to an object of at least the requested size, and
Free, which releases a pointer previously returned by Alloc. Everything
else in this package exists to make those two operations fast under
concurrent use from many goroutines, including the case where a goroutine
frees an object it did not allocate.

Segments, blocks and handles

A Segment is a 4 MiB region of virtual memory, aligned to a 4 MiB boundary.
The alignment is the only mechanism by which a pointer is resolved back to
the SegmentHeader that owns it: masking off the low 22 bits of any pointer
returned by Alloc yields the base address of its segment.

A segment is carved into a small number of equal-sized Blocks, each a slab
of equally sized objects. "Small" segments (object size <= 8 KiB) hold 63
blocks of 64 KiB each; "large" segments (8 KiB <= object size < 512 KiB)
hold a single 2 MiB block in the second half of the segment, the first
half being the header region.

Handles are plain pointers. There is no separate logical handle space as
in an on-disk allocator: the segment's alignment trick means a raw pointer
is enough to recover everything needed to free it.

Buckets, heaps, and the top-level pool

Every distinct object size used in the program maps onto one size class
("bucket") via the schedule in sizeclass.go. Each bucket owns one "active" block at a
time; allocation drains the active block until it's empty, at which point
the bucket asks the process-wide TopLevel pool for another block of the
same size class (or formats a fresh one from a freshly reserved segment).

Buckets are grouped into a Heap. Heaps are sharded across goroutines (see
heap.go) rather than pinned to native OS threads, since Go exposes no
portable handle for the latter; the free-list protocol in block.go is
designed to tolerate objects freed by a goroutine other than the one that
allocated them, so this substitution changes performance characteristics
but not correctness.

Concurrency model

Block metadata that is touched only by the owning goroutine (the two
"local" free-lists, object_size, count, the mesh mask) is left entirely
unsynchronized. Metadata that can be touched by a freeing goroutine other
than the owner (the public free-list, alloc_count, flags) is atomic. The
top-level pool guards all of its per-size-class slot vectors and its pool
of empty blocks with one mutex, and its segment registry with a second;
the per-size-class vectors have no locks of their own. The two mutexes
are never held at once, so the pool is deadlock-free by construction.

*/
package aura
