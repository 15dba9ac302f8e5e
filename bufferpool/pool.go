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

import "sync"

// Options tunes the pool. Zero values fall back to the historical
// defaults.
type Options struct {
	// TransferBatchSize is how many buffers move between a thread-local
	// free list and the global free list at once.
	TransferBatchSize int `config:"transfer_batch_size"`

	// LocalFreeListMax caps the thread-local free list before buffers
	// spill to the global list.
	LocalFreeListMax int `config:"local_free_list_max"`

	// GlobalFreeListMax caps the global free list before buffers are
	// simply dropped (and garbage collected).
	GlobalFreeListMax int `config:"global_free_list_max"`
}

const (
	defaultTransferBatchSize = 64
	defaultLocalFreeListMax  = 256
	defaultGlobalFreeListMax = 4096
)

func (o Options) normalize() Options {
	if o.TransferBatchSize <= 0 {
		o.TransferBatchSize = defaultTransferBatchSize
	}
	if o.LocalFreeListMax <= 0 {
		o.LocalFreeListMax = defaultLocalFreeListMax
	}
	if o.GlobalFreeListMax <= 0 {
		o.GlobalFreeListMax = defaultGlobalFreeListMax
	}
	return o
}

// Pool is a process-wide buffer allocator with per-thread free lists that
// rebalance against one global free list in batches. It has no failure
// mode: Acquire always returns a usable Buffer, growing the process heap
// if every free list is empty.
//
// A Pool is safe for concurrent use; buffers acquired on one goroutine
// may be released on any other (per §5's shared resource policy).
type Pool struct {
	opts Options

	mut    sync.Mutex
	global []*Buffer

	local sync.Pool // each P gets its own []*Buffer via *localList
}

type localList struct {
	bufs []*Buffer
}

// New creates a Pool tuned by opts.
func New(opts Options) *Pool {
	opts = opts.normalize()
	p := &Pool{opts: opts}
	p.local.New = func() any { return &localList{} }
	return p
}

// Acquire returns a zeroed Buffer, preferring the calling goroutine's
// local free list, then the global list, then a fresh allocation.
func (p *Pool) Acquire() *Buffer {
	ll := p.local.Get().(*localList)
	defer p.local.Put(ll)

	if len(ll.bufs) == 0 {
		p.refillLocal(ll)
	}

	if len(ll.bufs) > 0 {
		b := ll.bufs[len(ll.bufs)-1]
		ll.bufs = ll.bufs[:len(ll.bufs)-1]
		return b
	}

	return &Buffer{}
}

// Release returns a Buffer to the pool. The buffer must not be used
// afterward by the releasing side.
func (p *Pool) Release(b *Buffer) {
	if b == nil {
		return
	}
	b.reset()

	ll := p.local.Get().(*localList)
	defer p.local.Put(ll)

	ll.bufs = append(ll.bufs, b)
	if len(ll.bufs) >= p.opts.LocalFreeListMax {
		p.spillLocal(ll)
	}
}

// refillLocal pulls a batch from the global list into ll. Caller holds
// no lock; refillLocal takes the pool mutex itself.
func (p *Pool) refillLocal(ll *localList) {
	p.mut.Lock()
	defer p.mut.Unlock()

	n := p.opts.TransferBatchSize
	if n > len(p.global) {
		n = len(p.global)
	}
	if n == 0 {
		return
	}
	ll.bufs = append(ll.bufs, p.global[len(p.global)-n:]...)
	p.global = p.global[:len(p.global)-n]
}

// spillLocal pushes a batch from ll back to the global list, capped at
// GlobalFreeListMax; anything beyond the cap is simply dropped so the
// garbage collector reclaims it.
func (p *Pool) spillLocal(ll *localList) {
	n := p.opts.TransferBatchSize
	if n > len(ll.bufs) {
		n = len(ll.bufs)
	}

	moved := ll.bufs[len(ll.bufs)-n:]
	ll.bufs = ll.bufs[:len(ll.bufs)-n]

	p.mut.Lock()
	defer p.mut.Unlock()

	room := p.opts.GlobalFreeListMax - len(p.global)
	if room < 0 {
		room = 0
	}
	if room < len(moved) {
		moved = moved[:room]
	}
	p.global = append(p.global, moved...)
}
