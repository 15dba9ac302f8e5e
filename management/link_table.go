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

package management

import (
	"time"

	"github.com/skupperproject/skupper-router/delivery"
)

// LinkColumns is the fixed 28-column schema for the link entity table.
var LinkColumns = []string{
	"identity",
	"name",
	"connectionId",
	"direction",
	"owningAddr",
	"capacity",
	"peer",
	"adminStatus",
	"operStatus",
	"linkDir",
	"undeliveredCount",
	"unsettledCount",
	"deliveryCount",
	"presettledCount",
	"droppedPresettledCount",
	"acceptedCount",
	"rejectedCount",
	"releasedCount",
	"modifiedCount",
	"deliveriesDelayed1Sec",
	"deliveriesDelayed10Sec",
	"deliveriesStuck",
	"settleRate",
	"creditAvailable",
	"zeroCreditSince",
	"priority",
	"q2Blocked",
	"createdTimestamp",
}

// LinkEntity pairs a Link with the identity fields the table needs but
// that Link itself does not track (they belong to the router core's
// naming/connection bookkeeping, not the link's own state machine).
type LinkEntity struct {
	Identity     string
	Name         string
	ConnectionID string
	OwningAddr   string
	Peer         string
	Priority     int
	CreatedAt    time.Time
	Link         *delivery.Link
}

// LinkRow builds one link table row. The stuck-delivery column is
// computed here, at walk time; the settle-rate column reads the link's
// settle-rate ring, which the router's timer thread advances once per
// tick.
func LinkRow(e LinkEntity) Row {
	l := e.Link
	dir := "in"
	if l.Direction() == delivery.Outgoing {
		dir = "out"
	}

	now := time.Now()
	stuck := 0
	if l.Stuck(now, 10*time.Second) {
		stuck = 1
	}

	return Row{
		e.Identity,
		e.Name,
		e.ConnectionID,
		dir,
		e.OwningAddr,
		0,
		e.Peer,
		"enabled",
		"up",
		dir,
		l.UndeliveredCount(),
		l.UnsettledCount(),
		l.UnsettledCount() + l.UndeliveredCount(),
		0,
		0,
		0,
		0,
		0,
		0,
		0,
		0,
		stuck,
		l.SettleRate().Rate(),
		l.Credit(),
		nil,
		e.Priority,
		false,
		e.CreatedAt,
	}
}
