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

	"github.com/pkg/errors"

	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/field"
)

// maxFragments bounds how many sections a single Compose call may
// build a message from: at most five pre-built section fragments.
const maxFragments = 5

// ErrTooManyFragments is returned by Compose when called with more
// than maxFragments sections.
var ErrTooManyFragments = errors.New("content: too many fragments for compose")

// Fragment is one section a local producer wants to append: a tag and
// its already-encoded payload (not yet section-framed).
type Fragment struct {
	Tag     field.Tag
	Payload []byte
}

// Compose builds a new, locally-produced Content from a small set of
// sections, typically used for router-originated messages (management
// replies, rejection dispositions) that are built whole rather than
// streamed in off the wire.
func Compose(pool *bufferpool.Pool, opts Options, fragments ...Fragment) (*Content, error) {
	if len(fragments) > maxFragments {
		return nil, ErrTooManyFragments
	}
	c := New(pool, opts)
	for _, f := range fragments {
		c.appendFragment(f)
	}
	c.SetReceiveComplete()
	return c, nil
}

// Extend appends one more fragment to an in-progress Content, for
// producers that build a message up a piece at a time (e.g. an HTTP/2
// adaptor composing HEADERS then streaming DATA frames as BODY
// sections). It returns whether this push crossed Q2's high watermark.
func (c *Content) Extend(f Fragment) (blocked bool) {
	wasBlocked := c.q2.Blocked()
	c.appendFragment(f)
	return !wasBlocked && c.q2.Blocked()
}

func (c *Content) appendFragment(f Fragment) {
	encoded := encodeSection(f.Tag, f.Payload)

	c.mu.Lock()
	c.chain.Append(encoded)
	c.parseForward()
	count := c.chain.Count()
	fireUnblock := c.q2.Observe(count)
	c.mu.Unlock()

	if fireUnblock {
		c.q2.FireUnblock()
	}
}

func encodeSection(tag field.Tag, payload []byte) []byte {
	out := make([]byte, sectionHeaderLen, sectionHeaderLen+len(payload))
	out[0] = byte(tag)
	binary.BigEndian.PutUint32(out[1:5], uint32(len(payload)))
	return append(out, payload...)
}
