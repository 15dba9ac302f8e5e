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

// Package streamdata presents a Content's body as a pull sequence of
// segments, for consumers (an outgoing AMQP transfer, an HTTP/2 DATA
// writer) that want to walk body data as it arrives rather than wait
// for the whole message.
package streamdata

import (
	"sync"
	"sync/atomic"

	"github.com/skupperproject/skupper-router/content"
	"github.com/skupperproject/skupper-router/field"
)

// Result is the outcome of Next.
type Result int

const (
	// BodyOK means the returned Location names a fully-available data
	// section.
	BodyOK Result = iota
	// FooterOK means there is no more body data; the returned Location
	// names the footer section (which may itself be absent, in which
	// case its Absent() is true).
	FooterOK
	// Incomplete means more data is needed before the next segment can
	// be resolved; callers should retry after the next Receive.
	Incomplete
	// NoMore means the consumer has already walked every segment
	// including the footer; there is nothing further to produce.
	NoMore
	// Invalid means the underlying content was marked invalid by an
	// out-of-order section.
	Invalid
	// Aborted means the content was aborted mid-stream; the consumer
	// must stop producing further output for this message.
	Aborted
)

// Segmenter walks one Content's body segments and footer in order. It
// holds its own cursor, independent of any other Segmenter over the
// same Content, so multiple consumers (e.g. cut-through fan-out) can
// trail the producer at different paces.
type Segmenter struct {
	mu      sync.Mutex
	c       *content.Content
	next    int  // index into the content's body segments not yet handed out
	gaveFoo bool // whether the footer segment has already been handed out
	aborted atomic.Bool
}

// New creates a Segmenter over c. It does not take a reference on c;
// the caller owns that.
func New(c *content.Content) *Segmenter {
	return &Segmenter{c: c}
}

// SetAborted marks the segmenter aborted. Idempotent.
func (s *Segmenter) SetAborted() {
	s.aborted.Store(true)
}

// IsAborted reports whether SetAborted was called either on this
// segmenter or on the underlying content.
func (s *Segmenter) IsAborted() bool {
	return s.aborted.Load() || s.c.Aborted()
}

// Next resolves the next unconsumed segment. Calling it again before
// Release-ing the previous result just re-returns the same segment
// (Next does not itself advance the cursor past what Release confirms
// was consumed).
func (s *Segmenter) Next() (Result, field.Location) {
	if s.IsAborted() {
		return Aborted, field.Location{}
	}

	depth := s.c.CheckDepth(field.TagBody)
	if depth == content.DepthInvalid {
		return Invalid, field.Location{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next < s.c.BodySegmentCount() {
		return BodyOK, s.c.BodySegment(s.next)
	}

	if depth == content.DepthIncomplete {
		return Incomplete, field.Location{}
	}

	// No more body segments will ever arrive (receive complete or
	// aborted at the content level): the footer, if any, is next.
	if s.gaveFoo {
		return NoMore, field.Location{}
	}
	footerDepth := s.c.CheckDepth(field.TagFooter)
	if footerDepth == content.DepthIncomplete {
		return Incomplete, field.Location{}
	}
	if footerDepth == content.DepthInvalid {
		return Invalid, field.Location{}
	}
	return FooterOK, s.c.Locator(field.TagFooter)
}

// Release confirms the segment last returned by Next has been consumed
// and advances the cursor past it. It is idempotent: releasing a
// segment that was already released (or never handed out) is a no-op.
func (s *Segmenter) Release(result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch result {
	case BodyOK:
		if s.next < s.c.BodySegmentCount() {
			s.next++
		}
	case FooterOK:
		s.gaveFoo = true
	}
}

// ReleaseUpTo advances the cursor to release every body segment with
// index < upTo, for consumers that batch several Next results before
// confirming them. Indices already released are left untouched.
func (s *Segmenter) ReleaseUpTo(upTo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if upTo > s.next {
		if max := s.c.BodySegmentCount(); upTo > max {
			upTo = max
		}
		s.next = upTo
	}
}
