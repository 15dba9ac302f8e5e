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

// Package delivery implements Delivery and Link, the state the router
// keeps per in-flight message transfer and per link (the AMQP sense:
// a durable named channel of one-directional transfers within a
// session).
package delivery

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/skupperproject/skupper-router/content"
	"github.com/skupperproject/skupper-router/message"
)

// Disposition names the settlement outcome of a Delivery.
type Disposition uint8

const (
	DispositionUnset Disposition = iota
	DispositionAccepted
	DispositionRejected
	DispositionReleased
	DispositionModified
)

// Delivery tracks one message transfer's settlement state as it moves
// between a link's undelivered and unsettled queues.
type Delivery struct {
	mu sync.Mutex

	msg *message.Message

	localDisposition  Disposition
	remoteDisposition Disposition
	settled           atomic.Bool
	rejectReason      string

	// ctx is an opaque per-delivery context pointer the owning
	// component (the HTTP/2 adaptor, the forwarder) may stash its own
	// bookkeeping in. Delivery itself never interprets it.
	ctx interface{}
}

// New creates a Delivery pairing a fresh Message handle with c. It
// does not take a reference on c; the caller owns that separately.
// The final decref of a Delivery releases its Message handle.
func New(c *content.Content) *Delivery {
	return &Delivery{msg: message.New(c)}
}

// Content returns the delivery's message content.
func (d *Delivery) Content() *content.Content {
	return d.msg.Content()
}

// Message returns the delivery's per-direction message handle.
func (d *Delivery) Message() *message.Message {
	return d.msg
}

// SetContext stores an opaque per-delivery context value.
func (d *Delivery) SetContext(ctx interface{}) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
}

// Context returns the previously stored context value, or nil.
func (d *Delivery) Context() interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// SetLocalDisposition records this end's disposition for the delivery.
func (d *Delivery) SetLocalDisposition(disp Disposition) {
	d.mu.Lock()
	d.localDisposition = disp
	d.mu.Unlock()
}

// LocalDisposition returns this end's disposition.
func (d *Delivery) LocalDisposition() Disposition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.localDisposition
}

// SetRejectReason records why a Rejected disposition was chosen, for
// the DISPOSITION frame's error condition. A delivery settled Rejected
// without a reason set carries an empty string.
func (d *Delivery) SetRejectReason(reason string) {
	d.mu.Lock()
	d.rejectReason = reason
	d.mu.Unlock()
}

// RejectReason returns the reason previously recorded by
// SetRejectReason, or "" if none was set.
func (d *Delivery) RejectReason() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rejectReason
}

// SetRemoteDisposition records the peer's disposition for the
// delivery, as reported on a DISPOSITION frame.
func (d *Delivery) SetRemoteDisposition(disp Disposition) {
	d.mu.Lock()
	d.remoteDisposition = disp
	d.mu.Unlock()
}

// RemoteDisposition returns the peer's disposition.
func (d *Delivery) RemoteDisposition() Disposition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteDisposition
}

// Settle marks the delivery settled. Idempotent.
func (d *Delivery) Settle() {
	d.settled.Store(true)
}

// Settled reports whether Settle was called.
func (d *Delivery) Settled() bool {
	return d.settled.Load()
}

// StuckSince reports how long this delivery has sat unsettled, given
// the time it was first enqueued. Callers compare the result against a
// configured threshold to flag stuck deliveries for the admin surface.
func StuckSince(enqueuedAt time.Time, now time.Time) time.Duration {
	return now.Sub(enqueuedAt)
}
