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

package router

import (
	"context"
	"time"

	"github.com/skupperproject/skupper-router/internal/wait"
)

// defaultStuckDeliveryThreshold is used when Config leaves the field
// at its zero value.
const defaultStuckDeliveryThreshold = 10 * time.Second

// defaultTickInterval is used when Config leaves SettleRateTickInterval
// at its zero value.
const defaultTickInterval = time.Second

// RunTimerThread drives the core's per-uptime-tick maintenance: it
// advances every link's settle-rate ring and scans for stuck
// deliveries, publishing a Notification for each one found. It never
// touches Core's own maps directly; all of that happens by enqueuing
// an Action, so the timer thread never needs to take Core's lock
// order into account itself.
func RunTimerThread(ctx context.Context, core *Core) {
	interval := core.Config().SettleRateTickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}

	wait.UntilEvery(ctx, interval, func() {
		threshold := core.Config().StuckDeliveryThreshold
		if threshold <= 0 {
			threshold = defaultStuckDeliveryThreshold
		}

		done := make(chan struct{})
		core.Queue().Enqueue(func(c *Core) {
			defer close(done)
			tick(c, threshold)
		})
		select {
		case <-done:
		case <-ctx.Done():
		}
	})
}

func tick(core *Core, threshold time.Duration) {
	now := time.Now()
	for connID, sess := range core.Sessions() {
		for _, link := range sess.Links() {
			link.SettleRate().Tick()
			if link.Stuck(now, threshold) {
				core.publish(Notification{
					Kind:      NotifyDeliveryStuck,
					ConnID:    connID,
					LinkName:  link.Name(),
					Timestamp: now,
				})
			}
		}
	}
}
