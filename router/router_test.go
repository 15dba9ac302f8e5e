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
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skupperproject/skupper-router/annotations"
	"github.com/skupperproject/skupper-router/bufferpool"
	"github.com/skupperproject/skupper-router/content"
	"github.com/skupperproject/skupper-router/delivery"
	"github.com/skupperproject/skupper-router/field"
	"github.com/skupperproject/skupper-router/forwarder"
)

func encodeSection(tag field.Tag, payload []byte) []byte {
	out := make([]byte, 5, 5+len(payload))
	out[0] = byte(tag)
	binary.BigEndian.PutUint32(out[1:5], uint32(len(payload)))
	return append(out, payload...)
}

func TestActionQueueRunsActionsInOrder(t *testing.T) {
	core := New(Config{}, forwarder.Null{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Queue().Run(ctx, core)

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		core.Queue().Enqueue(func(c *Core) {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("actions did not complete")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestActionQueueRecoversPanickingAction(t *testing.T) {
	core := New(Config{}, forwarder.Null{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Queue().Run(ctx, core)

	core.Queue().Enqueue(func(c *Core) { panic("boom") })

	done := make(chan struct{})
	core.Queue().Enqueue(func(c *Core) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue stalled after a panicking action")
	}
}

func TestCoreForwardSettlesReleasedOnNoRoute(t *testing.T) {
	core := New(Config{}, forwarder.Null{})
	pool := bufferpool.New(bufferpool.Options{})
	d := delivery.New(content.New(pool, content.Options{}))

	outcome := core.Forward("some/address", d, nil)
	assert.Equal(t, forwarder.OutcomeNoRoute, outcome)
	assert.Equal(t, delivery.DispositionReleased, d.LocalDisposition())
	assert.True(t, d.Settled())
}

func TestCoreForwardRejectsRouterAnnotationsOnClientIngress(t *testing.T) {
	core := New(Config{}, forwarder.Null{})
	pool := bufferpool.New(bufferpool.Options{})
	c := content.New(pool, content.Options{})
	require.NoError(t, c.Receive(encodeSection(field.TagRouterAnnotations, annotations.Encode(annotations.Annotations{
		Trace: []string{},
	}))))
	d := delivery.New(c)

	clientLink := delivery.NewLink(delivery.Incoming, "client-link")

	outcome := core.Forward("some/address", d, clientLink)
	assert.Equal(t, forwarder.OutcomeRejected, outcome)
	assert.Equal(t, delivery.DispositionRejected, d.LocalDisposition())
	assert.True(t, d.Settled())
	assert.Contains(t, d.RejectReason(), "not allowed on non-router ingress")
}

func TestCoreForwardAllowsRouterAnnotationsOnRouterIngress(t *testing.T) {
	core := New(Config{}, forwarder.Null{})
	pool := bufferpool.New(bufferpool.Options{})
	c := content.New(pool, content.Options{})
	require.NoError(t, c.Receive(encodeSection(field.TagRouterAnnotations, annotations.Encode(annotations.Annotations{
		Trace: []string{},
	}))))
	d := delivery.New(c)

	routerLink := delivery.NewLink(delivery.Incoming, "inter-router-link")
	routerLink.SetRouterLink(true)

	outcome := core.Forward("some/address", d, routerLink)
	assert.Equal(t, forwarder.OutcomeNoRoute, outcome)
	assert.Equal(t, delivery.DispositionReleased, d.LocalDisposition())
}

func TestRunTimerThreadPublishesStuckDeliveryNotification(t *testing.T) {
	core := New(Config{
		StuckDeliveryThreshold: 10 * time.Millisecond,
		SettleRateTickInterval: 5 * time.Millisecond,
	}, forwarder.Null{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Queue().Run(ctx, core)
	go RunTimerThread(ctx, core)

	sub := core.Notifications(4)
	defer sub.Close()

	done := make(chan struct{})
	core.Queue().Enqueue(func(c *Core) {
		sess := c.Session("conn-1")
		link := delivery.NewLink(delivery.Outgoing, "link")
		d := delivery.New(content.New(c.Pool(), content.Options{}))
		link.Enqueue(d, time.Now())
		link.SetCredit(0, time.Now())
		sess.AddLink(link, func() {})
		close(done)
	})
	<-done

	time.Sleep(40 * time.Millisecond)

	msg, ok := sub.PopTimeout(time.Second)
	require.True(t, ok)
	n, ok := msg.(Notification)
	require.True(t, ok)
	assert.Equal(t, NotifyDeliveryStuck, n.Kind)
}
