// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package safeptr gives cut-through activation records a way to refer
// to an owning connection without keeping it alive and without a data
// race against its teardown.
//
// Go has no weak pointers usable across arbitrary goroutines the way
// the router needs here, so this package reimplements the pattern by
// hand: a Pool hands out generation-tagged slots, and a Ref pairs a raw
// pointer with the generation it was captured under. Get refuses to
// hand the pointer back once the slot has been recycled for something
// else, even if the same memory address is reused.
package safeptr

import "sync/atomic"

// Pool issues Refs for values of type T and invalidates them on Evict.
type Pool[T any] struct {
	seq atomic.Uint64
}

// NewPool creates an empty Pool.
func NewPool[T any]() *Pool[T] {
	return &Pool[T]{}
}

// Slot owns one generation-tagged value. Callers embed a Slot in the
// type they want to hand out safe references to (a connection, a
// session) and call Capture once, at construction.
type Slot[T any] struct {
	pool *Pool[T]
	gen  uint64
	val  atomic.Pointer[T]
}

// Capture registers val with pool under a fresh generation and returns
// the Slot that owns it.
func Capture[T any](pool *Pool[T], val *T) *Slot[T] {
	s := &Slot[T]{pool: pool, gen: pool.seq.Add(1)}
	s.val.Store(val)
	return s
}

// Ref hands out a (pointer, generation) pair that can be validated
// later without dereferencing the pointer first.
func (s *Slot[T]) Ref() Ref[T] {
	return Ref[T]{slot: s, gen: s.gen}
}

// Evict invalidates every Ref taken from this slot. Subsequent Get
// calls return (nil, false) even though the underlying memory may
// still be reachable (e.g. pooled and reused by something else).
func (s *Slot[T]) Evict() {
	s.val.Store(nil)
}

// Ref is a safe pointer: it never dereferences stale memory. It is
// valid to copy and to hold across goroutines.
type Ref[T any] struct {
	slot *Slot[T]
	gen  uint64
}

// Valid reports whether the Ref was ever successfully captured.
func (r Ref[T]) Valid() bool {
	return r.slot != nil
}

// Get returns the referenced value and true, or (nil, false) if the
// owning Slot has been evicted or belongs to a later generation than
// the one this Ref was captured under.
func (r Ref[T]) Get() (*T, bool) {
	if r.slot == nil || r.slot.gen != r.gen {
		return nil, false
	}
	v := r.slot.val.Load()
	if v == nil {
		return nil, false
	}
	return v, true
}
