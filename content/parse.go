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

package content

import (
	"encoding/binary"

	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/field"
)

// sectionHeaderLen is the on-wire header preceding every section's
// payload: a one-byte tag and a four-byte big-endian length. Sections
// arrive incrementally, sometimes split mid-header or mid-payload
// across network reads, so the parser must be resumable at any byte
// boundary rather than assuming a header arrives whole.
const sectionHeaderLen = 5

// Receive appends data to the content and advances the parser as far
// as the currently available bytes allow. It is the single entry point
// octets arrive through, whether from a wire read or a local producer
// composing a message a fragment at a time.
func (c *Content) Receive(data []byte) error {
	if c.Discard() {
		return nil
	}

	c.mu.Lock()

	if c.maxMessageSize > 0 {
		c.bytesReceived += int64(len(data))
		if c.bytesReceived > c.maxMessageSize {
			c.mu.Unlock()
			c.SetOversize()
			return ErrOversize
		}
	}

	c.chain.Append(data)
	c.parseForward()

	count := c.chain.Count()
	fireUnblock := c.q2.Observe(count)
	c.mu.Unlock()

	if fireUnblock {
		c.q2.FireUnblock()
	}
	return nil
}

// parseForward must be called with c.mu held. It consumes as many
// complete sections as are currently buffered, recording a
// field.Location for each and advancing depthIdx. It stops (without
// error) the moment the next section's header or payload is not yet
// fully available; that is the ordinary incomplete case, not a fault.
func (c *Content) parseForward() {
	if c.invalid {
		return
	}

	for {
		buf, offset := c.parseBuf, c.parseOffset
		if buf == nil {
			buf = c.chain.Head()
			offset = 0
		}
		if buf == nil {
			return
		}

		header := c.chain.Bytes(buf, offset, sectionHeaderLen)
		if len(header) < sectionHeaderLen {
			return
		}

		tag := field.Tag(header[0])
		length := int(binary.BigEndian.Uint32(header[1:5]))
		total := sectionHeaderLen + length

		if c.availableFrom(buf, offset) < total {
			return
		}

		pos := depthIndex(tag)
		if pos < 0 || pos < c.depthIdx {
			c.invalid = true
			return
		}

		loc := field.Location{
			Anchor:       buf,
			Offset:       offset,
			HeaderLength: sectionHeaderLen,
			Length:       length,
			Tag:          tag,
			Parsed:       true,
		}

		switch tag {
		case field.TagBody, field.TagRawBody:
			c.bodySegments = append(c.bodySegments, loc)
			if c.depthIdx < pos {
				c.depthIdx = pos
			}
		case field.TagFooter:
			c.footer = loc
			c.depthIdx = pos + 1
		default:
			c.locators[tag] = loc
			c.depthIdx = pos + 1
		}

		c.parseBuf, c.parseOffset = c.advanceCursor(buf, offset, total)
	}
}

// availableFrom counts how many bytes are available starting at
// (buf, offset) through to the current tail of the chain.
func (c *Content) availableFrom(buf *bufferpool.Buffer, offset int) int {
	total := 0
	first := true
	c.chain.Walk(buf, func(b *bufferpool.Buffer) bool {
		if first {
			total += b.Len() - offset
			first = false
		} else {
			total += b.Len()
		}
		return true
	})
	return total
}

// advanceCursor walks n bytes forward from (buf, offset), crossing
// buffer boundaries as needed, and returns the resulting position.
func (c *Content) advanceCursor(buf *bufferpool.Buffer, offset, n int) (*bufferpool.Buffer, int) {
	remaining := n
	for buf != nil {
		avail := buf.Len() - offset
		if remaining <= avail {
			return buf, offset + remaining
		}
		remaining -= avail
		buf = c.chain.Next(buf)
		offset = 0
	}
	return nil, 0
}

// CheckDepth reports whether the section named by target has been
// fully resolved (present or, once receive is complete, legitimately
// absent), is still pending more data, or the content has been marked
// invalid by an out-of-order section.
func (c *Content) CheckDepth(target field.Tag) DepthResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.invalid {
		return DepthInvalid
	}

	pos := depthIndex(target)
	if pos < 0 {
		return DepthInvalid
	}

	if c.depthIdx > pos {
		return DepthOK
	}
	if c.depthIdx == pos && (target == field.TagBody || target == field.TagRawBody) && len(c.bodySegments) > 0 {
		return DepthOK
	}
	if c.receiveComplete.Load() || c.aborted.Load() {
		return DepthOK
	}
	return DepthIncomplete
}

// BodySegmentCount returns the number of data sections parsed so far.
func (c *Content) BodySegmentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodySegments)
}

// BodySegment returns the i'th data section's location. The caller
// must have already confirmed i < BodySegmentCount().
func (c *Content) BodySegment(i int) field.Location {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bodySegments[i]
}
