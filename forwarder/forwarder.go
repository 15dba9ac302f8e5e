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

// Package forwarder declares the contract the router core uses to pick
// a next hop for a delivery. Address routing and next-hop selection
// themselves are out of scope for this module; router wires against
// this interface so that collaborator can be swapped in without
// touching the pipeline it drives.
package forwarder

import (
	"github.com/skupperproject/skupper-router/delivery"
)

// Outcome is the result of asking a Forwarder to place a delivery.
type Outcome uint8

const (
	// OutcomeForwarded means the forwarder accepted responsibility for
	// the delivery (it picked a link and enqueued it there).
	OutcomeForwarded Outcome = iota
	// OutcomeNoRoute means no next hop exists for the delivery's
	// address; the caller must settle it Released.
	OutcomeNoRoute
	// OutcomeRejected means the forwarder rejected the delivery outright
	// (e.g. an address-level policy denial); the caller must settle it
	// Rejected.
	OutcomeRejected
)

// Forwarder chooses where an inbound delivery goes next. The router
// core calls it once a delivery's header/properties sections have
// resolved far enough to know its address.
type Forwarder interface {
	// Forward places d, addressed to address, onto some outgoing link
	// and returns how that went. It must not block waiting on network
	// I/O; if nothing can accept more work right now, it returns
	// OutcomeNoRoute and the caller settles the delivery Released.
	Forward(address string, d *delivery.Delivery) Outcome
}

// Null is a Forwarder that never routes anything, used where the
// router core is exercised (tests, the management-reply path) without
// a real routing table wired in.
type Null struct{}

// Forward always reports OutcomeNoRoute.
func (Null) Forward(string, *delivery.Delivery) Outcome {
	return OutcomeNoRoute
}
