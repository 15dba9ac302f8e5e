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

// Package message implements Message, a lightweight per-direction view
// over a shared Content: the outgoing send cursor, per-send
// router-annotation overrides, and a send-complete flag. Many Messages
// may reference the same Content; each owns only its own cursor, so
// handles for the same Content may be driven concurrently by different
// workers.
package message

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/skupperproject/skupper-router/annotations"
	"github.com/skupperproject/skupper-router/content"
	"github.com/skupperproject/skupper-router/field"
	"github.com/skupperproject/skupper-router/streamdata"
)

// ErrNoRouterAnnotations is returned by Send when the caller supplied
// overrides but the content never carried a router-annotations section
// to begin with.
var ErrNoRouterAnnotations = errors.New("message: no router-annotations section present")

// Message is a per-direction handle onto a shared Content.
type Message struct {
	c *content.Content

	mu           sync.Mutex
	sendCursor   int // leading-section bytes already emitted by Send
	sendComplete bool

	// overrides applied by Send when it recomputes the outgoing
	// router-annotations section; nil means "leave as received".
	overrides *annotations.Annotations

	out *streamdata.Segmenter
}

// New wraps c in a Message handle. The handle does not take its own
// reference on c; callers manage Content lifetime themselves via
// Ref/Unref.
func New(c *content.Content) *Message {
	return &Message{c: c}
}

// Content returns the underlying shared Content.
func (m *Message) Content() *content.Content {
	return m.c
}

// SetOverrides installs router-annotation overrides applied the next
// time Send recomputes the outgoing annotations section.
func (m *Message) SetOverrides(a annotations.Annotations) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides = &a
}

// SetSendComplete marks that every byte of the content destined for
// this handle's link has been emitted.
func (m *Message) SetSendComplete() {
	m.mu.Lock()
	m.sendComplete = true
	m.mu.Unlock()
}

// SendComplete reports whether SetSendComplete was called.
func (m *Message) SendComplete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendComplete
}

// SetAborted propagates abort to the underlying content; every
// downstream consumer of this Message observes it.
func (m *Message) SetAborted() {
	m.c.SetAborted()
}

// IsAborted reports whether the content has been aborted.
func (m *Message) IsAborted() bool {
	return m.c.Aborted()
}

// CheckDepth reports the parse state of the named section without
// blocking, delegating to the shared content.
func (m *Message) CheckDepth(tag field.Tag) content.DepthResult {
	return m.c.CheckDepth(tag)
}

// FieldIterator returns the named field's octets (nil if the field is
// absent), copied out of the chain into one contiguous slice when it is
// called. It is not a lazy view: octets are materialized up front, and
// the slice stays valid after the content is released.
func (m *Message) FieldIterator(tag field.Tag) []byte {
	loc := m.c.Locator(tag)
	return loc.Bytes(m.c.Chain())
}

// Compose wraps a freshly content.Compose-d Content in a Message.
func Compose(c *content.Content, err error) (*Message, error) {
	if err != nil {
		return nil, err
	}
	return New(c), nil
}

// Extend appends another fragment for a streaming producer, reporting
// whether this push crossed Q2's high watermark.
func (m *Message) Extend(f content.Fragment) (blocked bool) {
	return m.c.Extend(f)
}

// outSegmenter lazily creates the stream-data cursor used by
// StreamDataNext: one per Message, so each handle trails the producer
// independently.
func (m *Message) outSegmenter() *streamdata.Segmenter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.out == nil {
		m.out = streamdata.New(m.c)
	}
	return m.out
}

// StreamDataNext yields the next body-data or footer section as a unit
// released independently of the others.
func (m *Message) StreamDataNext() (streamdata.Result, field.Location) {
	return m.outSegmenter().Next()
}

// StreamDataRelease frees one previously yielded segment.
func (m *Message) StreamDataRelease(result streamdata.Result) {
	m.outSegmenter().Release(result)
}

// StreamDataReleaseUpTo frees every still-held body segment with index
// below upTo.
func (m *Message) StreamDataReleaseUpTo(upTo int) {
	m.outSegmenter().ReleaseUpTo(upTo)
}

// RAFlags controls which parts of the router-annotations section Send
// recomputes before emitting a message to a link.
type RAFlags = annotations.Strip

const (
	StripNone    = annotations.StripNone
	StripIngress = annotations.StripIngress
	StripTrace   = annotations.StripTrace
	StripAll     = annotations.StripAll
)

// SessionAccounter is the subset of delivery.Session's Q3 accounting
// Send needs: it never touches link or session state directly, only
// the octet counter that decides whether the session has stalled.
type SessionAccounter interface {
	AccountAppend(n int) (blocked bool)
}

// Send recomputes the outgoing router-annotations section per raFlags
// (appending localRouterID to the trace list, interior-only, unless
// stripped), then emits the leading fixed-position sections not yet
// handed to sess, accounting the octets against the session's Q3
// watermark. The returned q3Stalled reports whether that accounting
// crossed the Q3 upper bound; callers drive StreamDataNext separately
// for the body/footer.
func (m *Message) Send(sess SessionAccounter, localRouterID string, raFlags RAFlags) (emitted []byte, q3Stalled bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recomputed, err := m.recomputeAnnotationsLocked(localRouterID, raFlags)
	if err != nil {
		return nil, false, err
	}

	chunk := m.leadingSectionsLocked(recomputed)
	unsent := chunk[minInt(m.sendCursor, len(chunk)):]
	if len(unsent) == 0 {
		return nil, false, nil
	}
	q3Stalled = sess.AccountAppend(len(unsent))
	m.sendCursor += len(unsent)
	return unsent, q3Stalled, nil
}

// leadingSectionsLocked concatenates the fixed-position sections that
// precede the body, substituting recomputed router-annotations for
// whatever the content originally carried (or omitting the section
// entirely when recomputed is nil: none was ever present, or raFlags
// was StripAll).
func (m *Message) leadingSectionsLocked(recomputed *annotations.Annotations) []byte {
	var out []byte
	if recomputed != nil {
		out = append(out, annotations.Encode(*recomputed)...)
	}
	for _, tag := range []field.Tag{
		field.TagHeader,
		field.TagDeliveryAnnotations,
		field.TagMessageAnnotations,
		field.TagProperties,
		field.TagApplicationProperties,
	} {
		loc := m.c.Locator(tag)
		if loc.Absent() {
			continue
		}
		out = append(out, loc.RawBytes(m.c.Chain())...)
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (m *Message) recomputeAnnotationsLocked(localRouterID string, raFlags RAFlags) (*annotations.Annotations, error) {
	existing := m.c.Locator(field.TagRouterAnnotations)
	if existing.Absent() {
		if m.overrides == nil {
			return nil, nil
		}
		return nil, ErrNoRouterAnnotations
	}

	ann, err := annotations.Decode(existing.Bytes(m.c.Chain()))
	if err != nil {
		return nil, err
	}

	switch raFlags {
	case annotations.StripAll:
		return nil, nil
	case annotations.StripIngress:
		ann.IngressRouter = nil
		ann.IngressMesh = nil
	case annotations.StripTrace:
		ann.Trace = nil
	}

	if raFlags != annotations.StripAll && localRouterID != "" {
		ann.Trace = append(append([]string{}, ann.Trace...), localRouterID)
	}
	if m.overrides != nil {
		ann.ToOverride = m.overrides.ToOverride
	}
	return &ann, nil
}
