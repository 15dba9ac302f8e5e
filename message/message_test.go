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

package message

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skupperproject/skupper-router/annotations"
	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/content"
	"github.com/skupperproject/skupper-router/field"
	"github.com/skupperproject/skupper-router/streamdata"
)

func encodeSection(tag field.Tag, payload []byte) []byte {
	out := make([]byte, 5, 5+len(payload))
	out[0] = byte(tag)
	binary.BigEndian.PutUint32(out[1:5], uint32(len(payload)))
	return append(out, payload...)
}

type fakeAccounter struct {
	total int
}

func (f *fakeAccounter) AccountAppend(n int) bool {
	f.total += n
	return false
}

func TestSendEmitsLeadingSectionsOnce(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := content.New(pool, content.Options{})
	require.NoError(t, c.Receive(encodeSection(field.TagHeader, []byte("hdr"))))
	require.NoError(t, c.Receive(encodeSection(field.TagProperties, []byte("props"))))
	c.SetReceiveComplete()

	m := New(c)
	acct := &fakeAccounter{}

	first, stalled, err := m.Send(acct, "router1", StripNone)
	require.NoError(t, err)
	assert.False(t, stalled)
	assert.NotEmpty(t, first)

	second, _, err := m.Send(acct, "router1", StripNone)
	require.NoError(t, err)
	assert.Empty(t, second, "second Send call must not re-emit already-sent bytes")
}

func TestSendAppendsLocalRouterToTrace(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := content.New(pool, content.Options{})

	ann := annotations.Annotations{Trace: []string{"r0"}}
	require.NoError(t, c.Receive(encodeSection(field.TagRouterAnnotations, annotations.Encode(ann))))
	c.SetReceiveComplete()

	m := New(c)
	acct := &fakeAccounter{}

	emitted, _, err := m.Send(acct, "r1", StripNone)
	require.NoError(t, err)

	decoded, err := annotations.Decode(emitted)
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r1"}, decoded.Trace)
}

func TestSendRejectsOverridesWithNoRouterAnnotations(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := content.New(pool, content.Options{})
	c.SetReceiveComplete()

	m := New(c)
	to := "override-addr"
	m.SetOverrides(annotations.Annotations{ToOverride: &to})

	_, _, err := m.Send(&fakeAccounter{}, "r1", StripNone)
	assert.ErrorIs(t, err, ErrNoRouterAnnotations)
}

func TestStreamDataNextDelegatesToSegmenter(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := content.New(pool, content.Options{})
	require.NoError(t, c.Receive(encodeSection(field.TagBody, []byte("payload"))))
	c.SetReceiveComplete()

	m := New(c)
	result, loc := m.StreamDataNext()
	assert.Equal(t, streamdata.BodyOK, result)
	assert.Equal(t, []byte("payload"), loc.Bytes(c.Chain()))

	m.StreamDataRelease(result)
	result, _ = m.StreamDataNext()
	assert.Equal(t, streamdata.FooterOK, result)
}

func TestFieldIteratorReadsProperties(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := content.New(pool, content.Options{})
	require.NoError(t, c.Receive(encodeSection(field.TagProperties, []byte("subject=hi"))))
	c.SetReceiveComplete()

	m := New(c)
	assert.Equal(t, []byte("subject=hi"), m.FieldIterator(field.TagProperties))
}

func TestSendCompleteFlag(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	m := New(content.New(pool, content.Options{}))
	assert.False(t, m.SendComplete())
	m.SetSendComplete()
	assert.True(t, m.SendComplete())
}
