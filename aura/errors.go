// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package aura

import "fmt"

// ErrINVAL reports an invalid argument passed to a constructor or a Config
// field that failed validation. It never refers to anything an application
// allocation could trigger; those are reported by a nil Alloc result, per
// the allocator interface (see doc.go).
type ErrINVAL struct {
	Msg string
	Arg interface{}
}

func (e *ErrINVAL) Error() string { return fmt.Sprintf("aura: %s: %v", e.Msg, e.Arg) }

// InvariantError reports that a documented structural invariant of the
// allocator no longer holds: a pointer passed to Free lies outside its
// block's object region, an allocation count underflowed, or an object
// was freed twice. Any of these means the heap may be silently corrupted, so
// InvariantError is always followed by a panic; it is exported only so
// that test code can recover() it and inspect what went wrong.
type InvariantError struct {
	Msg string
	Arg interface{}
}

func (e *InvariantError) Error() string { return fmt.Sprintf("aura: invariant violated: %s: %v", e.Msg, e.Arg) }

// invariant panics with an *InvariantError if cond is false. Call sites
// describe the broken invariant in msg.
func invariant(cond bool, msg string, arg interface{}) {
	if !cond {
		panic(&InvariantError{Msg: msg, Arg: arg})
	}
}
