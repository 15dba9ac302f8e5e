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
	"sync"
	"time"

	"github.com/skupperproject/skupper-router/annotations"
	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/delivery"
	"github.com/skupperproject/skupper-router/field"
	"github.com/skupperproject/skupper-router/flowcontrol"
	"github.com/skupperproject/skupper-router/forwarder"
	"github.com/skupperproject/skupper-router/internal/pubsub"
)

// Notification is published on the core's notification bus for
// every event an external observer (the admin surface, the settle-
// rate/stuck-delivery scans themselves) might want to react to.
type Notification struct {
	Kind      NotificationKind
	ConnID    string
	LinkName  string
	Timestamp time.Time
	Detail    string
}

// NotificationKind names the event a Notification reports.
type NotificationKind uint8

const (
	NotifyOversizeRejected NotificationKind = iota
	NotifyQ2Blocked
	NotifyQ2Unblocked
	NotifyQ3Blocked
	NotifyQ3Unblocked
	NotifyStreamAborted
	NotifyDeliveryStuck
)

// Config bundles the tunables SPEC_FULL's ambient config layer
// produces for the core, via confengine.
type Config struct {
	Pool                   bufferpool.Options `config:"pool"`
	Q2Upper                int                `config:"q2_upper"`
	Q2Lower                int                `config:"q2_lower"`
	Q3Upper                int                `config:"q3_upper"`
	Q3Lower                int                `config:"q3_lower"`
	MaxMessageSize         int64              `config:"max_message_size"`
	StuckDeliveryThreshold time.Duration      `config:"stuck_delivery_threshold"`
	SettleRateTickInterval time.Duration      `config:"settle_rate_tick_interval"`
}

// normalize fills in the documented defaults for any field left at its
// zero value, mirroring flowcontrol's own Default* constants.
func (c Config) normalize() Config {
	if c.Q2Upper <= 0 {
		c.Q2Upper = flowcontrol.DefaultQ2Upper
	}
	if c.Q2Lower <= 0 {
		c.Q2Lower = flowcontrol.DefaultQ2Lower
	}
	if c.Q3Upper <= 0 {
		c.Q3Upper = flowcontrol.DefaultQ3Upper
	}
	if c.Q3Lower <= 0 {
		c.Q3Lower = flowcontrol.DefaultQ3Lower
	}
	return c
}

// Core owns every piece of routing-level state: the buffer pool,
// every live session and its links, the forwarder collaborator, and
// the notification bus. Routing work runs as Actions on the
// ActionQueue. The session map and the config are also guarded by mu,
// since the management walk, the admin routes and transport adaptors
// read them (and create sessions) from other goroutines; the
// notification bus and the action queue are safe for concurrent use
// by design.
//
// Lock-order discipline for anything this package touches directly:
// a server/connection-level lock (owned by whatever transport package
// drives the core) is acquired before any per-connection state, which
// is acquired before a Content's own lock, which is acquired before
// either of a Content's two activation locks. None of those is ever
// re-acquired in the reverse order.
type Core struct {
	mu       sync.Mutex
	pool     *bufferpool.Pool
	sessions map[string]*delivery.Session
	fwd      forwarder.Forwarder
	cfg      Config

	notify *pubsub.PubSub
	queue  *ActionQueue
}

// New creates a Core. fwd may be forwarder.Null{} where no real
// routing table is wired in yet.
func New(cfg Config, fwd forwarder.Forwarder) *Core {
	cfg = cfg.normalize()
	return &Core{
		pool:     bufferpool.New(cfg.Pool),
		sessions: make(map[string]*delivery.Session),
		fwd:      fwd,
		cfg:      cfg,
		notify:   pubsub.New(),
		queue:    NewActionQueue(0),
	}
}

// Pool returns the core's shared buffer pool.
func (c *Core) Pool() *bufferpool.Pool { return c.pool }

// Queue returns the core's action queue, the only sanctioned way to
// mutate routing-level state from outside the core-thread goroutine.
func (c *Core) Queue() *ActionQueue { return c.queue }

// Notifications subscribes to the core's notification bus.
func (c *Core) Notifications(bufSize int) pubsub.Queue {
	return c.notify.Subscribe(bufSize)
}

func (c *Core) publish(n Notification) {
	c.notify.Publish(n)
}

// Session returns (creating if necessary) the named session.
func (c *Core) Session(id string) *delivery.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		s = delivery.NewSession(c.cfg.Q3Upper, c.cfg.Q3Lower)
		c.sessions[id] = s
	}
	return s
}

// Sessions returns a snapshot of every live session, for the
// management table walk.
func (c *Core) Sessions() map[string]*delivery.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*delivery.Session, len(c.sessions))
	for k, v := range c.sessions {
		out[k] = v
	}
	return out
}

// RemoveSession drops a session's bookkeeping once its connection
// closes.
func (c *Core) RemoveSession(id string) {
	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
}

// Config returns a copy of the core's current tunables, for the
// management config table and for diagnostics. The buffer pool itself
// is never rebuilt by UpdateConfig; only the fields that new Sessions
// (the Q3 watermarks) and the timer thread read take effect. Nothing
// in this package applies the Q2 watermarks or MaxMessageSize to a
// Content; they are reported in the management config table.
func (c *Core) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// UpdateConfig replaces the watermark and threshold tunables newly
// created Sessions and the timer thread observe. Existing Sessions
// keep whatever Q3 watermarks they were created with; Q2/Q3 are
// per-object settings, not a globally mutable knob.
func (c *Core) UpdateConfig(cfg Config) {
	cfg = cfg.normalize()
	c.mu.Lock()
	cfg.Pool = c.cfg.Pool // the buffer pool is fixed at construction
	c.cfg = cfg
	c.mu.Unlock()
}

// Forward hands a delivery to the forwarder collaborator and settles
// it itself (Released/Rejected) if no route exists, so a delivery
// never sits unsettled forever just because routing failed. inLink is
// the link the delivery arrived on; it is used only to classify
// ingress for the router-annotations check below and may be nil for
// deliveries originated locally (e.g. the management reply path).
func (c *Core) Forward(address string, d *delivery.Delivery, inLink *delivery.Link) forwarder.Outcome {
	if inLink != nil && !inLink.RouterLink() {
		if !d.Content().Locator(field.TagRouterAnnotations).Absent() {
			d.SetLocalDisposition(delivery.DispositionRejected)
			d.SetRejectReason(annotations.ErrNotRouterIngress.Error())
			d.Settle()
			return forwarder.OutcomeRejected
		}
	}

	outcome := c.fwd.Forward(address, d)
	switch outcome {
	case forwarder.OutcomeNoRoute:
		d.SetLocalDisposition(delivery.DispositionReleased)
		d.Settle()
	case forwarder.OutcomeRejected:
		d.SetLocalDisposition(delivery.DispositionRejected)
		d.Settle()
	}
	return outcome
}
