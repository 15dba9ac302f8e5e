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

package bufferpool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireRelease(t *testing.T) {
	p := New(Options{})
	b := p.Acquire()
	require.NotNil(t, b)
	assert.Equal(t, Size, b.Free())

	b.Append([]byte("hello"))
	assert.Equal(t, 5, b.Len())

	p.Release(b)
	b2 := p.Acquire()
	assert.Equal(t, 0, b2.Len(), "released buffer must be reset before reuse")
}

func TestPoolRebalancesAcrossGoroutines(t *testing.T) {
	p := New(Options{TransferBatchSize: 2, LocalFreeListMax: 2, GlobalFreeListMax: 16})

	var released []*Buffer
	for i := 0; i < 10; i++ {
		released = append(released, p.Acquire())
	}
	for _, b := range released {
		p.Release(b)
	}

	// A different call path (simulating another thread) must be able to
	// reuse buffers spilled to the global list.
	reused := p.Acquire()
	require.NotNil(t, reused)
}

func TestChainAppendAndRelease(t *testing.T) {
	p := New(Options{})
	c := NewChain(p)

	payload := bytes.Repeat([]byte("x"), Size+10)
	added := c.Append(payload)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, c.Count())

	got := c.Bytes(nil, 0, len(payload))
	assert.Equal(t, payload, got)

	c.ReleaseFront(1)
	assert.Equal(t, 1, c.Count())
	assert.Equal(t, c.head, c.tail)
}
