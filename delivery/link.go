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

package delivery

import (
	"sync"
	"time"
)

// Direction names which way a link carries transfers.
type Direction uint8

const (
	Incoming Direction = iota
	Outgoing
)

// SettleRateDepth is the default number of uptime ticks a Link's
// settle-rate ring retains.
const SettleRateDepth = 8

type enqueued struct {
	delivery   *Delivery
	enqueuedAt time.Time
}

// Link is one named, one-directional channel of transfers within a
// session: a credit window, an undelivered queue (deliveries not yet
// handed to the peer, for Outgoing; not yet handed to the forwarder,
// for Incoming), and an unsettled map (deliveries sent/received but not
// yet settled).
type Link struct {
	mu sync.Mutex

	name      string
	direction Direction
	credit    int32

	undelivered []enqueued
	unsettled   map[*Delivery]enqueued

	settleRate *SettleRate

	zeroCreditSet   bool
	firstZeroCredit time.Time

	// routerLink is true when the peer at the other end of this link
	// was admitted as another router (an inter-router connection), and
	// false for an ordinary client/edge attach. It defaults to false:
	// a link is treated as client-facing until whatever classifies
	// connections on attach says otherwise, since that is the safe
	// default for the router-annotations ingress check.
	routerLink bool
}

// NewLink creates an empty Link named name, used by the management
// table walk to identify it; name carries no routing meaning.
func NewLink(dir Direction, name string) *Link {
	return &Link{
		name:       name,
		direction:  dir,
		unsettled:  make(map[*Delivery]enqueued),
		settleRate: NewSettleRate(SettleRateDepth),
	}
}

// Name returns the link's management-facing name.
func (l *Link) Name() string {
	return l.name
}

// Direction returns the link's direction.
func (l *Link) Direction() Direction {
	return l.direction
}

// SetRouterLink records whether this link's peer was admitted as
// another router, which determines whether an incoming delivery may
// legally carry the router-annotations section.
func (l *Link) SetRouterLink(router bool) {
	l.mu.Lock()
	l.routerLink = router
	l.mu.Unlock()
}

// RouterLink reports whether this link's peer was admitted as another
// router.
func (l *Link) RouterLink() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.routerLink
}

// SetCredit sets the link's credit window (as granted by a FLOW frame
// for Outgoing links, or offered to the peer for Incoming links). It
// tracks the timestamp of the first transition to zero credit, used by
// the stuck-link detector: a link sitting at zero credit with a
// nonempty undelivered queue for longer than the configured threshold
// is reported stuck.
func (l *Link) SetCredit(credit int32, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if credit == 0 {
		if !l.zeroCreditSet {
			l.zeroCreditSet = true
			l.firstZeroCredit = now
		}
	} else {
		l.zeroCreditSet = false
	}
	l.credit = credit
}

// Credit returns the current credit window.
func (l *Link) Credit() int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit
}

// Enqueue adds d to the undelivered queue.
func (l *Link) Enqueue(d *Delivery, now time.Time) {
	l.mu.Lock()
	l.undelivered = append(l.undelivered, enqueued{delivery: d, enqueuedAt: now})
	l.mu.Unlock()
}

// UndeliveredCount reports the size of the undelivered queue.
func (l *Link) UndeliveredCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undelivered)
}

// DequeueForSend pops the oldest undelivered delivery and moves it to
// the unsettled map, decrementing credit by one. It returns false if
// there is no credit or nothing queued.
func (l *Link) DequeueForSend(now time.Time) (*Delivery, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.credit <= 0 || len(l.undelivered) == 0 {
		return nil, false
	}

	e := l.undelivered[0]
	l.undelivered = l.undelivered[1:]
	l.unsettled[e.delivery] = enqueued{delivery: e.delivery, enqueuedAt: now}
	l.credit--
	if l.credit == 0 {
		l.zeroCreditSet = true
		l.firstZeroCredit = now
	}
	return e.delivery, true
}

// Settle moves d out of the unsettled map and records it in the
// settle-rate ring. Settling a delivery not present is a no-op.
func (l *Link) Settle(d *Delivery) {
	l.mu.Lock()
	_, present := l.unsettled[d]
	delete(l.unsettled, d)
	l.mu.Unlock()

	if present {
		d.Settle()
		l.settleRate.RecordSettle()
	}
}

// UnsettledCount reports the size of the unsettled map.
func (l *Link) UnsettledCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.unsettled)
}

// SettleRate exposes the link's settle-rate ring for the management
// table walk and for the router core's per-tick advance.
func (l *Link) SettleRate() *SettleRate {
	return l.settleRate
}

// Stuck reports whether this link has sat at zero credit with a
// nonempty undelivered queue for at least threshold, as of now.
func (l *Link) Stuck(now time.Time, threshold time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.zeroCreditSet || len(l.undelivered) == 0 {
		return false
	}
	return now.Sub(l.firstZeroCredit) >= threshold
}
