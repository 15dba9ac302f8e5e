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

// Package router wires Content, Delivery, Link, the flow-control
// watermarks, cut-through and the HTTP/2 adaptor together into the
// single router-core thread that owns all routing-level state.
package router

import (
	"context"

	"github.com/skupperproject/skupper-router/internal/rescue"
)

// Action is one unit of work run exclusively on the core thread. Every
// mutation of routing-level state (as opposed to a single Content's
// own lock-protected state) happens inside an Action, serialized by
// there being only one goroutine draining the queue. Core's own mutex
// covers only its session map and config, which other goroutines also
// read.
type Action func(core *Core)

// ActionQueue is the single-writer queue the core thread drains.
// Multiple goroutines (connection readers, the timer thread) may call
// Enqueue concurrently; only the core thread ever calls Run.
type ActionQueue struct {
	ch chan Action
}

// NewActionQueue creates a queue with the given buffer depth.
func NewActionQueue(depth int) *ActionQueue {
	if depth <= 0 {
		depth = 1024
	}
	return &ActionQueue{ch: make(chan Action, depth)}
}

// Enqueue schedules act to run on the core thread. It blocks if the
// queue is full, which is the back-pressure signal that propagates up
// into Q2/Q3: a saturated core means every feeding link must also
// slow down.
func (q *ActionQueue) Enqueue(act Action) {
	q.ch <- act
}

// TryEnqueue attempts to schedule act without blocking, reporting
// whether it was accepted.
func (q *ActionQueue) TryEnqueue(act Action) bool {
	select {
	case q.ch <- act:
		return true
	default:
		return false
	}
}

// Run drains the queue on the calling goroutine until ctx is done,
// recovering any panic out of an individual Action so one bad action
// cannot take down the whole router core.
func (q *ActionQueue) Run(ctx context.Context, core *Core) {
	for {
		select {
		case <-ctx.Done():
			return
		case act := <-q.ch:
			runAction(act, core)
		}
	}
}

func runAction(act Action, core *Core) {
	defer rescue.HandleCrash()
	act(core)
}
