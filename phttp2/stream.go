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
	"encoding/binary"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/content"
	"github.com/skupperproject/skupper-router/delivery"
	"github.com/skupperproject/skupper-router/field"
	"github.com/skupperproject/skupper-router/streamdata"
)

// HeaderContentLength is the pseudo-header name this adaptor uses for
// a response's content-length, not an HTTP/2 pseudo-header but carried
// the same way through Fields.
const HeaderContentLength = "content-length"

// Status is a stream's lifecycle state, mirroring half-close semantics:
// a stream is HalfClosed once one side has sent its END_STREAM and
// FullyClosed once both have.
type Status uint8

const (
	StatusOpen Status = iota
	StatusHalfClosed
	StatusFullyClosed
)

var (
	errStreamClosed  = errors.New("phttp2: frame received on fully-closed stream")
	errBadPseudoHdr  = errors.New("phttp2: missing required pseudo-header")
)

// Stream maps one HTTP/2 stream, tunneled over a connection, onto a
// pair of AMQP deliveries: inDelivery carries the request (or the
// server push, for a server-initiated tunnel) and outDelivery carries
// the response, built up as DATA frames are produced for it.
type Stream struct {
	mu sync.Mutex

	ID     uint32
	status Status

	inDelivery  *delivery.Delivery
	outDelivery *delivery.Delivery

	headerComposed    bool
	footerPending     bool
	outHeaderComposed bool

	bodyBuffers int
	bytesIn     int64
	bytesOut    int64

	pool *bufferpool.Pool
	out  *streamdata.Segmenter
}

// NewStream creates a Stream in the Open state.
func NewStream(id uint32, pool *bufferpool.Pool) *Stream {
	return &Stream{ID: id, status: StatusOpen, pool: pool}
}

// Status returns the stream's current lifecycle state.
func (s *Stream) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func encodeHeaderBlock(fields []HeaderField) []byte {
	out := make([]byte, 0, 64)
	for _, f := range fields {
		var nameLen, valLen [2]byte
		binary.BigEndian.PutUint16(nameLen[:], uint16(len(f.Name)))
		binary.BigEndian.PutUint16(valLen[:], uint16(len(f.Value)))
		out = append(out, nameLen[:]...)
		out = append(out, f.Name...)
		out = append(out, valLen[:]...)
		out = append(out, f.Value...)
	}
	return out
}

// decodeHeaderBlock is encodeHeaderBlock's inverse, used to read back a
// PROPERTIES or APPLICATION_PROPERTIES fragment this package produced.
func decodeHeaderBlock(data []byte) []HeaderField {
	var out []HeaderField
	for len(data) >= 2 {
		nameLen := int(binary.BigEndian.Uint16(data[0:2]))
		data = data[2:]
		if len(data) < nameLen+2 {
			break
		}
		name := string(data[:nameLen])
		data = data[nameLen:]
		valLen := int(binary.BigEndian.Uint16(data[0:2]))
		data = data[2:]
		if len(data) < valLen {
			break
		}
		value := string(data[:valLen])
		data = data[valLen:]
		out = append(out, HeaderField{Name: name, Value: value})
	}
	return out
}

func requirePseudoHeaders(fields []HeaderField, names ...string) error {
	seen := make(map[string]bool, len(names))
	for _, f := range fields {
		seen[f.Name] = true
	}
	for _, n := range names {
		if !seen[n] {
			return errors.Wrapf(errBadPseudoHdr, "%s", n)
		}
	}
	return nil
}

// HandleRequestHeaders builds this stream's inbound delivery from the
// opening HEADERS frame of a client-initiated stream. :method and :path
// carry routing meaning, so they become the PROPERTIES subject and to
// fields; every other header (including the remaining pseudo-headers)
// goes into an APPLICATION_PROPERTIES fragment instead of being dumped
// verbatim into one opaque blob.
func (s *Stream) HandleRequestHeaders(hf HeadersFrame, opts content.Options) error {
	if err := requirePseudoHeaders(hf.Fields, HeaderMethod, HeaderScheme, HeaderPath); err != nil {
		return err
	}

	var props, appProps []HeaderField
	for _, f := range hf.Fields {
		switch f.Name {
		case HeaderMethod:
			props = append(props, HeaderField{Name: "subject", Value: f.Value})
		case HeaderPath:
			props = append(props, HeaderField{Name: "to", Value: f.Value})
		default:
			appProps = append(appProps, f)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusFullyClosed {
		return errStreamClosed
	}

	c, err := content.Compose(s.pool, opts,
		content.Fragment{Tag: field.TagProperties, Payload: encodeHeaderBlock(props)},
		content.Fragment{Tag: field.TagApplicationProperties, Payload: encodeHeaderBlock(appProps)},
	)
	if err != nil {
		return err
	}
	s.headerComposed = true
	s.inDelivery = delivery.New(c)

	if hf.EndStream {
		c.SetNoBody()
		c.SetReceiveComplete()
		s.advanceHalfClose()
	}
	return nil
}

// HandleData extends the inbound delivery's content with one more body
// segment.
func (s *Stream) HandleData(df DataFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusFullyClosed || s.inDelivery == nil {
		return errStreamClosed
	}

	c := s.inDelivery.Content()
	c.Extend(content.Fragment{Tag: field.TagBody, Payload: df.Payload})
	s.bodyBuffers = c.BufferCount()
	s.bytesIn += int64(len(df.Payload))

	if df.EndStream {
		c.SetReceiveComplete()
		s.advanceHalfClose()
	}
	return nil
}

// HandleTrailer applies a trailing HEADERS frame as the inbound
// delivery's footer section.
func (s *Stream) HandleTrailer(hf HeadersFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inDelivery == nil {
		return errStreamClosed
	}
	c := s.inDelivery.Content()
	c.Extend(content.Fragment{Tag: field.TagFooter, Payload: encodeHeaderBlock(hf.Fields)})
	c.SetReceiveComplete()
	s.footerPending = false
	s.advanceHalfClose()
	return nil
}

// InboundDelivery returns the delivery built up by HandleRequestHeaders
// / HandleData / HandleTrailer, or nil before the first HEADERS frame
// has arrived.
func (s *Stream) InboundDelivery() *delivery.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inDelivery
}

// advanceHalfClose must be called with s.mu held.
func (s *Stream) advanceHalfClose() {
	switch s.status {
	case StatusOpen:
		s.status = StatusHalfClosed
	case StatusHalfClosed:
		s.status = StatusFullyClosed
	}
}

// HandleRSTStream force-closes the stream and aborts both deliveries'
// content, so any in-progress production stops.
func (s *Stream) HandleRSTStream(RSTStreamFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFullyClosed
	if s.inDelivery != nil {
		s.inDelivery.Content().SetAborted()
	}
	if s.outDelivery != nil {
		s.outDelivery.Content().SetAborted()
	}
}

// ProduceResult is the outcome of ProduceData, following the same
// DEFERRED-suspension pattern the router uses everywhere an outgoing
// body producer must wait for more upstream data without busy-polling.
type ProduceResult uint8

const (
	// ProduceOK means frame holds a DATA (or trailing HEADERS, for
	// Footer) frame ready to send.
	ProduceOK ProduceResult = iota
	// ProduceDeferred means no frame is ready yet; the caller must
	// stop calling ProduceData until more outbound data has arrived
	// rather than spin-poll. Nothing in this package notifies the
	// caller when that happens.
	ProduceDeferred
	// ProduceDone means the stream has emitted its trailing frame (or
	// end-of-stream DATA) and there is nothing further to produce.
	ProduceDone
	// ProduceAborted means the outbound content was aborted mid-
	// stream; the caller should emit RST_STREAM instead of any further
	// DATA.
	ProduceAborted
)

// SetOutbound wires d as this stream's outgoing delivery and begins
// walking its content for production.
func (s *Stream) SetOutbound(d *delivery.Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outDelivery = d
	s.out = streamdata.New(d.Content())
}

// ResponseHeaders composes this stream's outbound HEADERS frame exactly
// once. :status comes from the outbound delivery's subject field if the
// composer left one (a router-originated subject overrides the generic
// mapping from disp); otherwise it falls back to ErrorStatus(disp). A
// delivery composed with SetNoBody carries content-length: 0 and the
// frame is marked EndStream, since no DATA frame will follow. The
// second return value is false once already produced, or if no
// outbound delivery has been wired yet.
func (s *Stream) ResponseHeaders(disp delivery.Disposition) (HeadersFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outHeaderComposed || s.outDelivery == nil {
		return HeadersFrame{}, false
	}
	s.outHeaderComposed = true

	status, _ := ErrorStatus(disp)
	c := s.outDelivery.Content()
	if loc := c.Locator(field.TagProperties); !loc.Absent() {
		for _, f := range decodeHeaderBlock(loc.Bytes(c.Chain())) {
			if f.Name == "subject" {
				if v, err := strconv.Atoi(f.Value); err == nil {
					status = v
				}
			}
		}
	}

	fields := []HeaderField{{Name: HeaderStatus, Value: strconv.Itoa(status)}}
	endStream := false
	if c.NoBody() {
		fields = append(fields, HeaderField{Name: HeaderContentLength, Value: "0"})
		endStream = true
	}
	return HeadersFrame{StreamID: s.ID, Fields: fields, EndStream: endStream}, true
}

// TrailerHeaders decodes a footer fragment produced by ProduceData's
// FooterOK branch into the trailing HEADERS frame that closes the
// response, the HTTP/2 analog of an AMQP footer section.
func TrailerHeaders(streamID uint32, footer []byte) HeadersFrame {
	return HeadersFrame{
		StreamID:  streamID,
		EndStream: true,
		Trailer:   true,
		Fields:    decodeHeaderBlock(footer),
	}
}

// ProduceData pulls the next piece of outbound body (or footer) data,
// returning it as a ready-to-send DATA or trailing-HEADERS payload.
func (s *Stream) ProduceData() (ProduceResult, []byte, bool) {
	s.mu.Lock()
	seg := s.out
	s.mu.Unlock()
	if seg == nil {
		return ProduceDeferred, nil, false
	}

	res, loc := seg.Next()
	switch res {
	case streamdata.BodyOK:
		bytes := loc.Bytes(s.outDelivery.Content().Chain())
		seg.Release(res)
		s.mu.Lock()
		s.bytesOut += int64(len(bytes))
		s.mu.Unlock()
		return ProduceOK, bytes, false
	case streamdata.FooterOK:
		seg.Release(res)
		if loc.Absent() {
			return ProduceDone, nil, false
		}
		return ProduceOK, loc.Bytes(s.outDelivery.Content().Chain()), true
	case streamdata.Incomplete:
		return ProduceDeferred, nil, false
	case streamdata.Aborted:
		return ProduceAborted, nil, false
	default: // NoMore, Invalid
		return ProduceDone, nil, false
	}
}
