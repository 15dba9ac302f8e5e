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

package cutthrough

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skupperproject/skupper-router/bufferpool"
)

func TestRingProduceConsumeOrder(t *testing.T) {
	r := NewRing(nil)
	pool := bufferpool.New(bufferpool.Options{})

	for i := 0; i < SlotCount; i++ {
		b := pool.Acquire()
		b.Append([]byte{byte(i)})
		ok := r.Produce([]*bufferpool.Buffer{b})
		require.True(t, ok)
	}
	assert.False(t, r.CanProduce())

	for i := 0; i < SlotCount; i++ {
		bufs, ok := r.Consume()
		require.True(t, ok)
		require.Len(t, bufs, 1)
		assert.Equal(t, byte(i), bufs[0].Bytes()[0])
	}
	assert.False(t, r.CanConsume())
}

func TestRingStallsWhenFullAndResumesAtThreshold(t *testing.T) {
	resumed := 0
	r := NewRing(func() { resumed++ })
	pool := bufferpool.New(bufferpool.Options{})

	for i := 0; i < SlotCount; i++ {
		require.True(t, r.Produce([]*bufferpool.Buffer{pool.Acquire()}))
	}
	assert.False(t, r.Produce([]*bufferpool.Buffer{pool.Acquire()}))

	// Draining down to ResumeThreshold+1 must not resume yet.
	for i := 0; i < SlotCount-ResumeThreshold-1; i++ {
		_, ok := r.Consume()
		require.True(t, ok)
	}
	assert.Equal(t, 0, resumed)

	// The next consume crosses ResumeThreshold and fires exactly once.
	_, ok := r.Consume()
	require.True(t, ok)
	assert.Equal(t, 1, resumed)

	_, ok = r.Consume()
	require.True(t, ok)
	assert.Equal(t, 1, resumed)
}

func TestActivationEmpty(t *testing.T) {
	var a Activation
	assert.True(t, a.Empty())
	a.Kind = KindAMQP
	assert.False(t, a.Empty())
}
