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

// Package cutthrough implements the single-producer/single-consumer
// ring that lets an inbound link hand buffer lists straight to an
// outbound link without the content ever passing through the router
// core's normal store-and-forward path.
package cutthrough

import (
	"sync"

	"github.com/skupperproject/skupper-router/bufferpool"
)

// SlotCount is the fixed depth of the ring. It is small on purpose: the
// ring exists to smooth out scheduling jitter between the producing and
// consuming threads, not to buffer a whole message.
const SlotCount = 8

// ResumeThreshold is the slot-count hysteresis point: once the ring
// fills and stalls the producer, it only resumes the producer after
// draining back down to this many full slots.
const ResumeThreshold = 4

// Ring is a fixed-size SPSC queue of buffer lists. There is exactly one
// producer goroutine and one consumer goroutine for the lifetime of a
// Ring; the mutex only serializes the rare case where both sides touch
// count and stalled at once, it is not protecting against concurrent
// producers or concurrent consumers.
type Ring struct {
	mu    sync.Mutex
	slots [SlotCount][]*bufferpool.Buffer

	produceIdx int
	consumeIdx int
	count      int

	stalled  bool
	onResume func()
}

// NewRing creates an empty ring. onResume, if non-nil, is invoked
// (never while the ring's own lock is held) the first time the ring
// drains from full back down to ResumeThreshold after having stalled.
func NewRing(onResume func()) *Ring {
	return &Ring{onResume: onResume}
}

// CanProduce reports whether Produce would currently succeed.
func (r *Ring) CanProduce() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count < SlotCount
}

// CanConsume reports whether Consume would currently succeed.
func (r *Ring) CanConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count > 0
}

// FullSlotCount returns the number of occupied slots.
func (r *Ring) FullSlotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Produce pushes one buffer list into the next slot. It returns false
// (and marks the ring stalled) if the ring is full; the caller must
// stop producing until CanProduce reports true again, which will
// happen no later than the next onResume callback.
func (r *Ring) Produce(bufs []*bufferpool.Buffer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count >= SlotCount {
		r.stalled = true
		return false
	}

	r.slots[r.produceIdx%SlotCount] = bufs
	r.produceIdx++
	r.count++
	return true
}

// Consume pops the oldest buffer list. ok is false if the ring is
// empty.
func (r *Ring) Consume() (bufs []*bufferpool.Buffer, ok bool) {
	r.mu.Lock()

	if r.count == 0 {
		r.mu.Unlock()
		return nil, false
	}

	idx := r.consumeIdx % SlotCount
	bufs = r.slots[idx]
	r.slots[idx] = nil
	r.consumeIdx++
	r.count--

	resumed := r.stalled && r.count <= ResumeThreshold
	if resumed {
		r.stalled = false
	}
	r.mu.Unlock()

	if resumed && r.onResume != nil {
		r.onResume()
	}
	return bufs, true
}
