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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/cutthrough"
	"github.com/skupperproject/skupper-router/field"
)

func newTestContent(t *testing.T) (*Content, *bufferpool.Pool) {
	t.Helper()
	pool := bufferpool.New(bufferpool.Options{})
	return New(pool, Options{}), pool
}

func TestReceiveParsesSectionsInOrder(t *testing.T) {
	c, _ := newTestContent(t)

	c.Receive(encodeSection(field.TagHeader, []byte("hdr")))
	assert.Equal(t, DepthOK, c.CheckDepth(field.TagHeader))
	assert.Equal(t, DepthIncomplete, c.CheckDepth(field.TagProperties))

	c.Receive(encodeSection(field.TagProperties, []byte("props")))
	assert.Equal(t, DepthOK, c.CheckDepth(field.TagProperties))

	loc := c.Locator(field.TagHeader)
	require.False(t, loc.Absent())
	assert.Equal(t, []byte("hdr"), loc.Bytes(c.Chain()))
}

func TestReceiveResumesAcrossPartialWrites(t *testing.T) {
	c, _ := newTestContent(t)
	full := encodeSection(field.TagProperties, []byte("hello world"))

	// Split the section header itself across two Receive calls.
	c.Receive(full[:3])
	assert.Equal(t, DepthIncomplete, c.CheckDepth(field.TagProperties))

	c.Receive(full[3:7])
	assert.Equal(t, DepthIncomplete, c.CheckDepth(field.TagProperties))

	c.Receive(full[7:])
	assert.Equal(t, DepthOK, c.CheckDepth(field.TagProperties))
	loc := c.Locator(field.TagProperties)
	assert.Equal(t, []byte("hello world"), loc.Bytes(c.Chain()))
}

func TestOutOfOrderSectionInvalidatesContent(t *testing.T) {
	c, _ := newTestContent(t)
	c.Receive(encodeSection(field.TagProperties, []byte("p")))
	c.Receive(encodeSection(field.TagHeader, []byte("h")))
	assert.Equal(t, DepthInvalid, c.CheckDepth(field.TagHeader))
}

func TestAbsentOptionalSectionResolvesOnceReceiveComplete(t *testing.T) {
	c, _ := newTestContent(t)
	c.Receive(encodeSection(field.TagHeader, []byte("h")))
	assert.Equal(t, DepthIncomplete, c.CheckDepth(field.TagProperties))
	c.SetReceiveComplete()
	assert.Equal(t, DepthOK, c.CheckDepth(field.TagProperties))
}

func TestBodySectionsRepeat(t *testing.T) {
	c, _ := newTestContent(t)
	c.Receive(encodeSection(field.TagBody, []byte("part1")))
	c.Receive(encodeSection(field.TagBody, []byte("part2")))
	require.Equal(t, 2, c.BodySegmentCount())
	assert.Equal(t, []byte("part1"), c.BodySegment(0).Bytes(c.Chain()))
	assert.Equal(t, []byte("part2"), c.BodySegment(1).Bytes(c.Chain()))
	assert.Equal(t, DepthOK, c.CheckDepth(field.TagBody))
}

func TestOversizeLatchesDiscard(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := New(pool, Options{MaxMessageSize: 4})

	err := c.Receive([]byte("toolong"))
	assert.ErrorIs(t, err, ErrOversize)
	assert.True(t, c.Oversize())
	assert.True(t, c.Discard())

	// Further receives after discard are silently dropped.
	err = c.Receive([]byte("more"))
	assert.NoError(t, err)
}

func TestRefCountReleasesBuffersAtZero(t *testing.T) {
	c, _ := newTestContent(t)
	c.Ref()
	c.Receive(encodeSection(field.TagHeader, []byte("h")))
	require.Greater(t, c.BufferCount(), 0)

	c.Unref()
	assert.Greater(t, c.BufferCount(), 0, "still one ref outstanding")

	c.Unref()
	assert.Equal(t, 0, c.BufferCount())
}

func TestComposeBuildsReceiveCompleteContent(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c, err := Compose(pool, Options{},
		Fragment{Tag: field.TagHeader, Payload: []byte("h")},
		Fragment{Tag: field.TagProperties, Payload: []byte("p")},
	)
	require.NoError(t, err)
	assert.True(t, c.ReceiveComplete())
	assert.Equal(t, DepthOK, c.CheckDepth(field.TagApplicationProperties))
}

func TestComposeRejectsTooManyFragments(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	frags := make([]Fragment, maxFragments+1)
	_, err := Compose(pool, Options{}, frags...)
	assert.ErrorIs(t, err, ErrTooManyFragments)
}

func TestQ2BlocksAcrossManyBuffers(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := New(pool, Options{Q2Upper: 2, Q2Lower: 1})

	big := make([]byte, bufferpool.Size*4)
	c.Receive(encodeSection(field.TagBody, big))
	assert.Greater(t, c.BufferCount(), 2)
}

func TestEnableCutThroughOnlyOnce(t *testing.T) {
	c, _ := newTestContent(t)
	assert.True(t, c.EnableCutThrough(cutthrough.NewRing(nil)))
	assert.False(t, c.EnableCutThrough(cutthrough.NewRing(nil)))
}
