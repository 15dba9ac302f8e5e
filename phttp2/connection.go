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

package phttp2

import (
	"sync"

	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/cutthrough"
	"github.com/skupperproject/skupper-router/delivery"
	"github.com/skupperproject/skupper-router/internal/safeptr"
)

// connPool hands out safe pointers to live Connections so a cut-through
// Activation can refer back to the Connection it tunnels over without
// pinning it alive.
var connPool = safeptr.NewPool[Connection]()

// Connection owns every Stream tunneled over one HTTP/2-over-AMQP
// transport and enforces MaxConcurrentStreams.
type Connection struct {
	mu      sync.Mutex
	pool    *bufferpool.Pool
	streams map[uint32]*Stream
	goAway  bool
	slot    *safeptr.Slot[Connection]
}

// NewConnection creates an empty Connection.
func NewConnection(pool *bufferpool.Pool) *Connection {
	c := &Connection{pool: pool, streams: make(map[uint32]*Stream)}
	c.slot = safeptr.Capture(connPool, c)
	return c
}

// Activation returns a cutthrough.Activation whose ConnRef resolves
// back to c for as long as c stays open; it goes stale the instant
// Close runs even if the Connection's memory is later reused.
func (c *Connection) Activation(kind cutthrough.Kind, deliveryID uint64) cutthrough.Activation {
	return cutthrough.Activation{Kind: kind, ConnRef: c.slot.Ref(), DeliveryID: deliveryID}
}

// ResolveActivation recovers the Connection an Activation's ConnRef
// points at, or (nil, false) if it has since closed.
func ResolveActivation(act cutthrough.Activation) (*Connection, bool) {
	ref, ok := act.ConnRef.(safeptr.Ref[Connection])
	if !ok {
		return nil, false
	}
	return ref.Get()
}

// Close evicts c's safe pointer slot, invalidating every Ref handed out
// by Activation; streams already open are left for the caller to drain
// or abandon.
func (c *Connection) Close() {
	c.slot.Evict()
}

// OpenStream creates and registers a new Stream, refusing if the
// connection already has MaxConcurrentStreams open or has sent/
// received GOAWAY.
func (c *Connection) OpenStream(id uint32) (*Stream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.goAway {
		return nil, false
	}
	if len(c.streams) >= MaxConcurrentStreams {
		return nil, false
	}

	s := NewStream(id, c.pool)
	c.streams[id] = s
	return s, true
}

// Stream looks up a previously opened stream.
func (c *Connection) Stream(id uint32) (*Stream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[id]
	return s, ok
}

// CloseStream removes a fully-closed stream's bookkeeping.
func (c *Connection) CloseStream(id uint32) {
	c.mu.Lock()
	delete(c.streams, id)
	c.mu.Unlock()
}

// HandleGoAway marks the connection as shutting down: no further
// streams may be opened, streams at or below f.LastStreamID run to
// completion, and every stream above it is released on the spot, since
// the peer has just said it will never process them.
func (c *Connection) HandleGoAway(f GoAwayFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goAway = true
	for id, s := range c.streams {
		if id > f.LastStreamID {
			s.HandleRSTStream(RSTStreamFrame{StreamID: id})
			delete(c.streams, id)
		}
	}
}

// StreamCount reports how many streams are currently open, for
// MaxConcurrentStreams enforcement and diagnostics.
func (c *Connection) StreamCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// ErrorStatus maps a delivery's terminal disposition to the HTTP
// status the adaptor reports on the response stream: Rejected means
// the request itself was invalid (400), Released/Modified mean the
// router could not deliver it for reasons outside the request's own
// validity (503, retryable).
func ErrorStatus(disp delivery.Disposition) (status int, retryable bool) {
	switch disp {
	case delivery.DispositionRejected:
		return 400, false
	case delivery.DispositionReleased, delivery.DispositionModified:
		return 503, true
	case delivery.DispositionAccepted:
		return 200, false
	default:
		return 500, false
	}
}

// TransportErrorGoAway reports that an unrecoverable transport-level
// error (as opposed to a per-delivery disposition) must tear down the
// whole connection with a GOAWAY rather than fail one stream.
func TransportErrorGoAway(err error) bool {
	return err != nil
}
