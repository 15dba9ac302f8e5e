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

	"github.com/skupperproject/skupper-router/content"
	"github.com/skupperproject/skupper-router/forwarder"
	"github.com/skupperproject/skupper-router/router"
)

func TestAdaptorForwardsRequestThroughCore(t *testing.T) {
	core := router.New(router.Config{}, forwarder.Null{})
	a := NewAdaptor(core, "conn-1")

	err := a.HandleRequestHeaders(HeadersFrame{
		StreamID:  1,
		EndStream: true,
		Fields: []HeaderField{
			{Name: HeaderMethod, Value: "GET"},
			{Name: HeaderScheme, Value: "https"},
			{Name: HeaderPath, Value: "widgets"},
		},
	}, content.Options{})
	require.NoError(t, err)

	s, ok := a.Connection().Stream(1)
	require.True(t, ok)

	hf, ok := s.ResponseHeaders(0)
	require.True(t, ok)
	assert.True(t, hf.EndStream)

	var status string
	for _, f := range hf.Fields {
		if f.Name == HeaderStatus {
			status = f.Value
		}
	}
	// forwarder.Null{} always reports OutcomeNoRoute, so the composed
	// response maps through ErrorStatus(DispositionReleased) == 503.
	assert.Equal(t, "503", status)
}

func TestAdaptorForwardsOnTrailingHeaders(t *testing.T) {
	core := router.New(router.Config{}, forwarder.Null{})
	a := NewAdaptor(core, "conn-2")

	err := a.HandleRequestHeaders(HeadersFrame{
		StreamID: 3,
		Fields: []HeaderField{
			{Name: HeaderMethod, Value: "POST"},
			{Name: HeaderScheme, Value: "https"},
			{Name: HeaderPath, Value: "widgets"},
		},
	}, content.Options{})
	require.NoError(t, err)

	require.NoError(t, a.HandleData(3, DataFrame{StreamID: 3, Payload: []byte("hi")}))
	require.NoError(t, a.HandleTrailer(3, HeadersFrame{StreamID: 3, Trailer: true}))

	s, ok := a.Connection().Stream(3)
	require.True(t, ok)

	hf, ok := s.ResponseHeaders(0)
	require.True(t, ok)
	assert.True(t, hf.EndStream)
}
