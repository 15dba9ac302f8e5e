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
)

func TestConnectionOpenStreamEnforcesLimit(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := NewConnection(pool)

	for i := uint32(1); i <= MaxConcurrentStreams; i++ {
		_, ok := c.OpenStream(i)
		require.True(t, ok)
	}
	_, ok := c.OpenStream(MaxConcurrentStreams + 1)
	assert.False(t, ok)
	assert.Equal(t, MaxConcurrentStreams, c.StreamCount())
}

func TestConnectionGoAwayRejectsNewStreams(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := NewConnection(pool)
	c.HandleGoAway(GoAwayFrame{LastStreamID: 5})

	_, ok := c.OpenStream(7)
	assert.False(t, ok)
}

func TestConnectionGoAwayPrunesStreamsAboveLastStreamID(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := NewConnection(pool)

	var pruned []*Stream
	for _, id := range []uint32{1, 3, 5, 7, 9} {
		s, ok := c.OpenStream(id)
		require.True(t, ok)
		if id > 5 {
			pruned = append(pruned, s)
		}
	}

	c.HandleGoAway(GoAwayFrame{LastStreamID: 5})

	assert.Equal(t, 3, c.StreamCount())
	for _, id := range []uint32{1, 3, 5} {
		_, ok := c.Stream(id)
		assert.True(t, ok, "stream %d should survive", id)
	}
	for _, id := range []uint32{7, 9} {
		_, ok := c.Stream(id)
		assert.False(t, ok, "stream %d should be freed", id)
	}
	for _, s := range pruned {
		assert.Equal(t, StatusFullyClosed, s.Status())
	}
}

func TestConnectionCloseStreamRemovesIt(t *testing.T) {
	pool := bufferpool.New(bufferpool.Options{})
	c := NewConnection(pool)
	c.OpenStream(1)
	c.CloseStream(1)
	_, ok := c.Stream(1)
	assert.False(t, ok)
}
