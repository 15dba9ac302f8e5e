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

package bufferpool

// Chain is a doubly-linked list of Buffers with O(1) append and release.
// It is not safe for concurrent mutation; callers serialize structural
// changes (the Content mutex, in the router's case).
type Chain struct {
	pool       *Pool
	head, tail *Buffer
	count      int
}

// NewChain returns an empty chain backed by pool.
func NewChain(pool *Pool) *Chain {
	return &Chain{pool: pool}
}

// Count returns the number of buffers currently in the chain.
func (c *Chain) Count() int { return c.count }

// Head returns the first buffer in the chain, or nil if empty.
func (c *Chain) Head() *Buffer { return c.head }

// Tail returns the last buffer in the chain, or nil if empty.
func (c *Chain) Tail() *Buffer { return c.tail }

// Append writes p into the chain, acquiring new buffers from the pool as
// needed, and returns the number of buffers newly appended (0 if p fit
// entirely in the previous tail's free space).
func (c *Chain) Append(p []byte) int {
	added := 0
	for len(p) > 0 {
		if c.tail == nil || c.tail.Free() == 0 {
			b := c.pool.Acquire()
			c.linkTail(b)
			added++
		}
		n := c.tail.Append(p)
		p = p[n:]
	}
	return added
}

func (c *Chain) linkTail(b *Buffer) {
	b.prev = c.tail
	b.next = nil
	if c.tail != nil {
		c.tail.next = b
	}
	c.tail = b
	if c.head == nil {
		c.head = b
	}
	c.count++
}

// ReleaseFront releases the first n buffers of the chain back to the
// pool. It is the caller's responsibility to ensure no FieldLocation
// still references a released buffer.
func (c *Chain) ReleaseFront(n int) {
	for i := 0; i < n && c.head != nil; i++ {
		next := c.head.next
		b := c.head
		c.head = next
		if next != nil {
			next.prev = nil
		} else {
			c.tail = nil
		}
		c.count--
		c.pool.Release(b)
	}
}

// ReleaseAll releases every buffer in the chain.
func (c *Chain) ReleaseAll() {
	c.ReleaseFront(c.count)
}

// Walk calls f for every buffer in order, starting at from (or the head
// if from is nil), until f returns false or the chain is exhausted.
func (c *Chain) Walk(from *Buffer, f func(b *Buffer) bool) {
	b := from
	if b == nil {
		b = c.head
	}
	for b != nil {
		if !f(b) {
			return
		}
		b = b.next
	}
}

// Next returns the buffer following b in this chain, or nil at the tail.
func (c *Chain) Next(b *Buffer) *Buffer {
	if b == nil {
		return nil
	}
	return b.next
}

// Bytes copies out length octets starting at offset octets into the
// chain beginning at buffer from (from==nil means the chain head). It is
// used by field iterators and the annotations codec, which need a
// contiguous view over a field that may span buffer boundaries.
func (c *Chain) Bytes(from *Buffer, offset, length int) []byte {
	out := make([]byte, 0, length)
	b := from
	if b == nil {
		b = c.head
	}
	remainingOffset := offset
	for b != nil && len(out) < length {
		data := b.Bytes()
		if remainingOffset > 0 {
			if remainingOffset >= len(data) {
				remainingOffset -= len(data)
				b = b.next
				continue
			}
			data = data[remainingOffset:]
			remainingOffset = 0
		}
		need := length - len(out)
		if need < len(data) {
			data = data[:need]
		}
		out = append(out, data...)
		b = b.next
	}
	return out
}
