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

// Package bufferpool implements the fixed-size octet buffer pool that
// backs every Content's buffer chain.
//
// Buffers are uniform 512-byte regions drawn from a per-thread free list.
// Chains are doubly-linked for O(1) append and release. Allocation never
// fails: the pool grows on demand and rebalances in batches across the
// per-thread free lists so buffers released on one goroutine can be
// reused by another.
package bufferpool

const (
	// Size is the fixed capacity of every Buffer, matching the wire
	// router's historical default.
	Size = 512
)

// Buffer is an owned octet region with a fill cursor. A Buffer is a
// member of at most one Chain at a time.
type Buffer struct {
	data [Size]byte
	fill int

	next *Buffer
	prev *Buffer
}

// Cap returns the buffer's total capacity.
func (b *Buffer) Cap() int { return Size }

// Len returns the number of filled octets.
func (b *Buffer) Len() int { return b.fill }

// Free returns the remaining unfilled capacity.
func (b *Buffer) Free() int { return Size - b.fill }

// Bytes returns the filled prefix of the buffer. The slice aliases the
// buffer's backing array and must not be retained past release.
func (b *Buffer) Bytes() []byte { return b.data[:b.fill] }

// Append copies as much of p as fits into the buffer's free space and
// returns the number of bytes consumed.
func (b *Buffer) Append(p []byte) int {
	n := copy(b.data[b.fill:], p)
	b.fill += n
	return n
}

// reset clears the fill cursor and chain links, preparing the buffer for
// reuse by the pool.
func (b *Buffer) reset() {
	b.fill = 0
	b.next = nil
	b.prev = nil
}
