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
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/skupperproject/skupper-router/content"
	"github.com/skupperproject/skupper-router/delivery"
	"github.com/skupperproject/skupper-router/field"
	"github.com/skupperproject/skupper-router/forwarder"
	"github.com/skupperproject/skupper-router/router"
)

// streamLinks is the pair of one-directional links created for one
// tunneled HTTP/2 stream: an incoming link carrying the request to
// Core.Forward, and a dynamic outgoing link the response rides back
// out on.
type streamLinks struct {
	in  *delivery.Link
	out *delivery.Link
}

// Adaptor owns one connection's worth of tunneled HTTP/2 streams and is
// the only thing in this package that talks to a router.Core: every
// other type here (Connection, Stream) is transport-level plumbing with
// no notion of addresses, forwarding, or sessions. sessionID identifies
// this connection's delivery.Session the same way the rest of the
// router keys sessions by connection.
type Adaptor struct {
	core    *router.Core
	conn    *Connection
	session *delivery.Session

	mu    sync.Mutex
	links map[uint32]*streamLinks
}

// NewAdaptor creates an Adaptor bound to core and to the session core
// tracks for sessionID (typically the underlying transport's connection
// id).
func NewAdaptor(core *router.Core, sessionID string) *Adaptor {
	return &Adaptor{
		core:    core,
		conn:    NewConnection(core.Pool()),
		session: core.Session(sessionID),
		links:   make(map[uint32]*streamLinks),
	}
}

// Connection exposes the underlying transport-level Connection, for a
// caller that needs to feed it GOAWAY/SETTINGS/RST_STREAM frames
// directly.
func (a *Adaptor) Connection() *Connection { return a.conn }

// HandleRequestHeaders opens a new tunneled stream for hf, builds its
// inbound delivery, and wires up the incoming/outgoing link pair that
// will carry it through the router core. If hf already ends the
// request (no body), the delivery is forwarded immediately.
func (a *Adaptor) HandleRequestHeaders(hf HeadersFrame, opts content.Options) error {
	s, ok := a.conn.OpenStream(hf.StreamID)
	if !ok {
		return errStreamClosed
	}
	if err := s.HandleRequestHeaders(hf, opts); err != nil {
		return err
	}

	in := delivery.NewLink(delivery.Incoming, fmt.Sprintf("h2-in-%d", hf.StreamID))
	out := delivery.NewLink(delivery.Outgoing, fmt.Sprintf("h2-out-%d", hf.StreamID))
	a.session.AddLink(in, func() {})
	a.session.AddLink(out, func() {})

	a.mu.Lock()
	a.links[hf.StreamID] = &streamLinks{in: in, out: out}
	a.mu.Unlock()

	if hf.EndStream {
		a.forward(s, in, out)
	}
	return nil
}

// HandleData extends streamID's inbound delivery with df, forwarding it
// once df closes the request.
func (a *Adaptor) HandleData(streamID uint32, df DataFrame) error {
	s, ok := a.conn.Stream(streamID)
	if !ok {
		return errStreamClosed
	}
	if err := s.HandleData(df); err != nil {
		return err
	}
	if df.EndStream {
		a.forwardIfLinked(streamID, s)
	}
	return nil
}

// HandleTrailer applies hf as streamID's footer and forwards the now-
// complete inbound delivery.
func (a *Adaptor) HandleTrailer(streamID uint32, hf HeadersFrame) error {
	s, ok := a.conn.Stream(streamID)
	if !ok {
		return errStreamClosed
	}
	if err := s.HandleTrailer(hf); err != nil {
		return err
	}
	a.forwardIfLinked(streamID, s)
	return nil
}

func (a *Adaptor) forwardIfLinked(streamID uint32, s *Stream) {
	a.mu.Lock()
	links := a.links[streamID]
	a.mu.Unlock()
	if links == nil {
		return
	}
	a.forward(s, links.in, links.out)
}

// forward hands a stream's inbound delivery to the router core and
// composes a response delivery from the outcome, so the stream always
// has something to emit a HEADERS frame for, Forwarded or not.
func (a *Adaptor) forward(s *Stream, in, out *delivery.Link) {
	d := s.InboundDelivery()
	if d == nil {
		return
	}

	address := addressFromDelivery(d)
	outcome := a.core.Forward(address, d, in)

	status := 200
	if outcome != forwarder.OutcomeForwarded {
		status, _ = ErrorStatus(d.LocalDisposition())
	}

	respContent, err := content.Compose(a.core.Pool(), content.Options{}, content.Fragment{
		Tag:     field.TagProperties,
		Payload: encodeHeaderBlock([]HeaderField{{Name: "subject", Value: strconv.Itoa(status)}}),
	})
	if err != nil {
		return
	}
	respContent.SetNoBody()

	resp := delivery.New(respContent)
	s.SetOutbound(resp)
	out.Enqueue(resp, time.Now())
}

// addressFromDelivery reads the to field HandleRequestHeaders mapped
// from :path, the address Core.Forward routes on.
func addressFromDelivery(d *delivery.Delivery) string {
	c := d.Content()
	loc := c.Locator(field.TagProperties)
	if loc.Absent() {
		return ""
	}
	for _, f := range decodeHeaderBlock(loc.Bytes(c.Chain())) {
		if f.Name == "to" {
			return f.Value
		}
	}
	return ""
}
