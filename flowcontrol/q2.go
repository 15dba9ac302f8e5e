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

// Package flowcontrol implements the two-level AMQP back-pressure the
// router applies: Q2 bounds the buffer-chain length of a single
// message, Q3 bounds the pending octets of a whole session.
package flowcontrol

import "sync/atomic"

// Default watermarks, overridable via confengine.
const (
	DefaultQ2Upper = 64
	DefaultQ2Lower = 32
)

// Q2 tracks the per-message high/low buffer-count watermark. should_block
// and should_unblock are evaluated by the caller while holding the
// content lock (Observe expresses both predicates); the registered
// unblock handler itself is invoked by the caller only after releasing
// that lock, since the handler must be safe to run on any thread and
// must not re-enter content locking.
type Q2 struct {
	upper, lower int

	blocked  atomic.Bool
	disabled atomic.Bool

	onUnblock func()
}

// NewQ2 creates a Q2 controller. onUnblock may be nil.
func NewQ2(upper, lower int, onUnblock func()) *Q2 {
	if upper <= 0 {
		upper = DefaultQ2Upper
	}
	if lower <= 0 || lower >= upper {
		lower = DefaultQ2Lower
	}
	return &Q2{upper: upper, lower: lower, onUnblock: onUnblock}
}

// Disable permanently turns off Q2 for this message. Idempotent: a
// second call is a no-op.
func (q *Q2) Disable() {
	q.disabled.Store(true)
}

// Disabled reports whether Disable was ever called.
func (q *Q2) Disabled() bool {
	return q.disabled.Load()
}

// Blocked reports the last-observed blocked state.
func (q *Q2) Blocked() bool {
	return q.blocked.Load()
}

// Observe evaluates should_block/should_unblock against the current
// buffer count. It must be called with the content lock held. It
// returns whether the caller must invoke the unblock handler after
// releasing that lock (a rising edge: blocked -> unblocked).
func (q *Q2) Observe(bufferCount int) (fireUnblock bool) {
	if q.disabled.Load() {
		return false
	}

	switch {
	case bufferCount > q.upper:
		q.blocked.Store(true)

	case bufferCount <= q.lower:
		if q.blocked.CompareAndSwap(true, false) {
			return q.onUnblock != nil
		}
	}
	return false
}

// FireUnblock invokes the registered handler. Callers must not hold the
// content lock when calling this.
func (q *Q2) FireUnblock() {
	if q.onUnblock != nil {
		q.onUnblock()
	}
}
