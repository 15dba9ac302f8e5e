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

// Package wait implements the small "run this forever until told to
// stop" loop helper the controller and the router core's timer
// threads are built on.
package wait

import (
	"context"
	"time"

	"github.com/skupperproject/skupper-router/internal/rescue"
)

// Until calls fn repeatedly, recovering and logging any panic via
// internal/rescue rather than letting it kill the calling goroutine,
// until ctx is done. Each call to fn runs back-to-back with no delay;
// callers that need a period use UntilEvery instead.
func Until(ctx context.Context, fn func()) {
	UntilEvery(ctx, 0, fn)
}

// UntilEvery calls fn repeatedly with at least period between the
// start of one call and the start of the next, until ctx is done.
func UntilEvery(ctx context.Context, period time.Duration, fn func()) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		runOnce(fn)

		if period <= 0 {
			continue
		}
		elapsed := time.Since(start)
		if elapsed < period {
			select {
			case <-ctx.Done():
				return
			case <-time.After(period - elapsed):
			}
		}
	}
}

func runOnce(fn func()) {
	defer rescue.HandleCrash()
	fn()
}
