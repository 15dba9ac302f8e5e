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

// Package content implements Content, the shared, reference-counted,
// append-only object backing every message body as it moves through
// the router. A Content grows monotonically (bytes are only ever
// appended, never rewritten) so that many readers can hold field
// locations into it, each pinned to a specific buffer, without any
// copying and without invalidating each other.
package content

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/cutthrough"
	"github.com/skupperproject/skupper-router/field"
	"github.com/skupperproject/skupper-router/flowcontrol"
)

// ErrOversize is returned by Receive once the configured maximum
// message size has been exceeded. The content is latched for discard;
// further Receive calls are no-ops.
var ErrOversize = errors.New("content: message exceeds maximum size")

// ErrInvalidSection names the out-of-order-section fault. The parser
// does not return it: it marks the content invalid, and CheckDepth
// surfaces that as DepthInvalid.
var ErrInvalidSection = errors.New("content: section out of order")

// sectionOrder is the fixed order sections may appear in. BODY and
// RAW_BODY may repeat (a message can carry several data sections);
// every other tag appears at most once.
var sectionOrder = []field.Tag{
	field.TagRouterAnnotations,
	field.TagHeader,
	field.TagDeliveryAnnotations,
	field.TagMessageAnnotations,
	field.TagProperties,
	field.TagApplicationProperties,
	field.TagBody,
	field.TagRawBody,
	field.TagFooter,
}

func depthIndex(tag field.Tag) int {
	for i, t := range sectionOrder {
		if t == tag {
			return i
		}
	}
	return -1
}

// DepthResult is the outcome of CheckDepth.
type DepthResult int

const (
	DepthOK DepthResult = iota
	DepthIncomplete
	DepthInvalid
)

// Content is the shared body object. It is created with one reference
// held by its creator; Ref/Unref manage the count from there.
type Content struct {
	pool  *bufferpool.Pool
	chain *bufferpool.Chain

	mu sync.Mutex

	// parse cursor: the next unparsed byte, named as a buffer plus an
	// offset within it. Both nil/0 until the first Receive.
	parseBuf    *bufferpool.Buffer
	parseOffset int
	depthIdx    int
	invalid     bool

	locators     map[field.Tag]field.Location
	bodySegments []field.Location
	footer       field.Location

	// stream_data_next cursor over bodySegments, independent of the
	// parser's own cursor so a consumer can trail behind the producer.
	streamNext int

	maxMessageSize int64
	bytesReceived  int64

	receiveComplete atomic.Bool
	aborted         atomic.Bool
	discard         atomic.Bool
	oversize        atomic.Bool
	noBody          atomic.Bool
	priorityParsed  atomic.Bool
	cutThroughOn    atomic.Bool

	refCount atomic.Int32

	q2 *flowcontrol.Q2

	producerActMu sync.Mutex
	producerAct   cutthrough.Activation
	consumerActMu sync.Mutex
	consumerAct   cutthrough.Activation

	ring *cutthrough.Ring
}

// Options configures a new Content.
type Options struct {
	MaxMessageSize int64
	Q2Upper        int
	Q2Lower        int
	OnQ2Unblock    func()
}

// New creates an empty Content with one reference held.
func New(pool *bufferpool.Pool, opts Options) *Content {
	c := &Content{
		pool:           pool,
		chain:          bufferpool.NewChain(pool),
		locators:       make(map[field.Tag]field.Location, len(sectionOrder)),
		maxMessageSize: opts.MaxMessageSize,
	}
	c.q2 = flowcontrol.NewQ2(opts.Q2Upper, opts.Q2Lower, opts.OnQ2Unblock)
	c.refCount.Store(1)
	return c
}

// Ref increments the reference count and returns c for chaining.
func (c *Content) Ref() *Content {
	c.refCount.Add(1)
	return c
}

// Unref decrements the reference count, releasing every buffer back to
// the pool once it reaches zero. Calling Unref more times than the
// content has been referenced is a programming error.
func (c *Content) Unref() {
	if c.refCount.Add(-1) == 0 {
		c.mu.Lock()
		c.chain.ReleaseAll()
		c.mu.Unlock()
	}
}

// RefCount reports the current reference count, for diagnostics.
func (c *Content) RefCount() int32 {
	return c.refCount.Load()
}

// BufferCount reports the number of buffers currently held, the
// quantity Q2 watermarks against.
func (c *Content) BufferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chain.Count()
}

// SetReceiveComplete marks that no further Receive calls will occur.
// Sections that never appeared are then treated as legitimately
// absent rather than merely not-yet-arrived.
func (c *Content) SetReceiveComplete() {
	c.receiveComplete.Store(true)
}

// ReceiveComplete reports whether SetReceiveComplete was called.
func (c *Content) ReceiveComplete() bool {
	return c.receiveComplete.Load()
}

// SetAborted marks the content aborted; all in-flight consumers must
// stop consuming further body data.
func (c *Content) SetAborted() {
	c.aborted.Store(true)
}

// Aborted reports whether SetAborted was called.
func (c *Content) Aborted() bool {
	return c.aborted.Load()
}

// SetDiscard latches the content for discard. It only ever transitions
// false -> true; later calls are no-ops.
func (c *Content) SetDiscard() {
	c.discard.CompareAndSwap(false, true)
}

// Discard reports whether the content is latched for discard.
func (c *Content) Discard() bool {
	return c.discard.Load()
}

// SetOversize marks the content oversize and implicitly latches
// discard, matching the sender-side reject path.
func (c *Content) SetOversize() {
	c.oversize.Store(true)
	c.SetDiscard()
}

// Oversize reports whether the content exceeded MaxMessageSize.
func (c *Content) Oversize() bool {
	return c.oversize.Load()
}

// SetNoBody records that the message has no body sections at all (an
// empty-body message, a valid edge case rather than an error).
func (c *Content) SetNoBody() {
	c.noBody.Store(true)
}

// NoBody reports whether SetNoBody was called.
func (c *Content) NoBody() bool {
	return c.noBody.Load()
}

// SetPriorityParsed records that the header section's priority field
// has been parsed and cached, so later lookups skip re-parsing it.
func (c *Content) SetPriorityParsed() {
	c.priorityParsed.Store(true)
}

// PriorityParsed reports whether SetPriorityParsed was called.
func (c *Content) PriorityParsed() bool {
	return c.priorityParsed.Load()
}

// DisableQ2 idempotently turns off Q2 back-pressure for this message
// (used for messages the router itself produces, e.g. management
// replies, which must never block on buffer-count watermarks).
func (c *Content) DisableQ2() {
	c.q2.Disable()
}

// EnableCutThrough wires a ring to this content's producer side. It
// fails if cut-through is already enabled, or if the content has
// already accumulated body data through the classical path (the two
// are mutually exclusive, per the content's single-producer
// invariant).
func (c *Content) EnableCutThrough(ring *cutthrough.Ring) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cutThroughOn.Load() {
		return false
	}
	if len(c.bodySegments) > 0 {
		return false
	}
	c.ring = ring
	c.cutThroughOn.Store(true)
	return true
}

// CutThroughEnabled reports whether EnableCutThrough succeeded.
func (c *Content) CutThroughEnabled() bool {
	return c.cutThroughOn.Load()
}

// Ring returns the cut-through ring, or nil if cut-through was never
// enabled.
func (c *Content) Ring() *cutthrough.Ring {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ring
}

// ProducerActivation returns the activation record guarding the
// producer side of cut-through, under its own lock, separate from the
// content lock per the router's lock-order discipline.
func (c *Content) ProducerActivation() (cutthrough.Activation, func(cutthrough.Activation)) {
	c.producerActMu.Lock()
	act := c.producerAct
	return act, func(next cutthrough.Activation) {
		c.producerAct = next
		c.producerActMu.Unlock()
	}
}

// ConsumerActivation mirrors ProducerActivation for the consumer side.
func (c *Content) ConsumerActivation() (cutthrough.Activation, func(cutthrough.Activation)) {
	c.consumerActMu.Lock()
	act := c.consumerAct
	return act, func(next cutthrough.Activation) {
		c.consumerAct = next
		c.consumerActMu.Unlock()
	}
}

// Locator returns the recorded location of a non-repeating section, or
// an absent Location if it hasn't been seen (yet, or ever).
func (c *Content) Locator(tag field.Tag) field.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tag == field.TagFooter {
		return c.footer
	}
	return c.locators[tag]
}

// Chain exposes the underlying buffer chain for field materialization.
// Callers must hold a reference to the content for as long as they use
// the returned chain.
func (c *Content) Chain() *bufferpool.Chain {
	return c.chain
}
