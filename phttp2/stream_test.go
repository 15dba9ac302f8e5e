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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/content"
	"github.com/skupperproject/skupper-router/delivery"
	"github.com/skupperproject/skupper-router/field"
)

func assertHeader(t *testing.T, fields []HeaderField, name, value string) {
	t.Helper()
	for _, f := range fields {
		if f.Name == name {
			assert.Equal(t, value, f.Value)
			return
		}
	}
	t.Fatalf("header %s not found in %v", name, fields)
}

func TestStreamRequestWithBodyHalfClosesOnEndStream(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	s := NewStream(1, pool)

	err := s.HandleRequestHeaders(HeadersFrame{
		StreamID: 1,
		Fields: []HeaderField{
			{Name: HeaderMethod, Value: "POST"},
			{Name: HeaderScheme, Value: "https"},
			{Name: HeaderPath, Value: "/x"},
		},
	}, content.Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, s.Status())

	err = s.HandleData(DataFrame{StreamID: 1, Payload: []byte("hello"), EndStream: true})
	require.NoError(t, err)
	assert.Equal(t, StatusHalfClosed, s.Status())
}

func TestStreamMissingPseudoHeaderRejected(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	s := NewStream(1, pool)
	err := s.HandleRequestHeaders(HeadersFrame{
		StreamID: 1,
		Fields:   []HeaderField{{Name: HeaderMethod, Value: "GET"}},
	}, content.Options{})
	assert.Error(t, err)
}

func TestHandleRequestHeadersSplitsPropertiesAndApplicationProperties(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	s := NewStream(1, pool)

	err := s.HandleRequestHeaders(HeadersFrame{
		StreamID: 1,
		Fields: []HeaderField{
			{Name: HeaderMethod, Value: "GET"},
			{Name: HeaderScheme, Value: "https"},
			{Name: HeaderPath, Value: "/widgets"},
			{Name: "x-request-id", Value: "abc"},
		},
		EndStream: true,
	}, content.Options{})
	require.NoError(t, err)

	c := s.InboundDelivery().Content()
	props := decodeHeaderBlock(c.Locator(field.TagProperties).Bytes(c.Chain()))
	assertHeader(t, props, "subject", "GET")
	assertHeader(t, props, "to", "/widgets")

	appProps := decodeHeaderBlock(c.Locator(field.TagApplicationProperties).Bytes(c.Chain()))
	assertHeader(t, appProps, HeaderScheme, "https")
	assertHeader(t, appProps, "x-request-id", "abc")
}

func TestResponseHeadersComposesStatusAndContentLength(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	s := NewStream(4, pool)
	c := content.New(pool, content.Options{})
	c.SetNoBody()
	d := delivery.New(c)
	s.SetOutbound(d)

	hf, ok := s.ResponseHeaders(delivery.DispositionReleased)
	require.True(t, ok)
	assert.True(t, hf.EndStream)
	assertHeader(t, hf.Fields, HeaderStatus, "503")
	assertHeader(t, hf.Fields, HeaderContentLength, "0")

	_, ok = s.ResponseHeaders(delivery.DispositionReleased)
	assert.False(t, ok, "ResponseHeaders should compose only once")
}

func TestStreamProduceDataDefersWithoutData(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := content.New(pool, content.Options{})
	d := delivery.New(c)

	s := NewStream(2, pool)
	s.SetOutbound(d)

	res, _, _ := s.ProduceData()
	assert.Equal(t, ProduceDeferred, res)

	c.Receive(encodeSectionForTest())
	res, payload, _ := s.ProduceData()
	assert.Equal(t, ProduceOK, res)
	assert.Equal(t, []byte("body"), payload)

	c.SetReceiveComplete()
	res, _, trailer := s.ProduceData()
	assert.Equal(t, ProduceDone, res)
	assert.False(t, trailer)
}

func TestRSTStreamAbortsBothDeliveries(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	s := NewStream(3, pool)
	in := delivery.New(content.New(pool, content.Options{}))
	out := delivery.New(content.New(pool, content.Options{}))
	s.mu.Lock()
	s.inDelivery = in
	s.mu.Unlock()
	s.SetOutbound(out)

	s.HandleRSTStream(RSTStreamFrame{StreamID: 3})
	assert.Equal(t, StatusFullyClosed, s.Status())
	assert.True(t, in.Content().Aborted())
	assert.True(t, out.Content().Aborted())
}

func TestErrorStatusMapping(t *testing.T) {
	status, retryable := ErrorStatus(delivery.DispositionRejected)
	assert.Equal(t, 400, status)
	assert.False(t, retryable)

	status, retryable = ErrorStatus(delivery.DispositionReleased)
	assert.Equal(t, 503, status)
	assert.True(t, retryable)
}

func encodeSectionForTest() []byte {
	// field.TagBody == 7
	payload := []byte("body")
	out := make([]byte, 5, 5+len(payload))
	out[0] = 7
	out[1], out[2], out[3], out[4] = 0, 0, 0, byte(len(payload))
	return append(out, payload...)
}
