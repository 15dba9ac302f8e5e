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

	"github.com/skupperproject/skupper-router/flowcontrol"
)

// Session groups the links of one AMQP session and owns the Q3
// controller that back-pressures all of them together once the
// session's total pending octets cross the high watermark.
type Session struct {
	mu    sync.Mutex
	links []*Link
	q3    *flowcontrol.Q3
}

// NewSession creates a Session with Q3 configured at upper/lower (pass
// 0 for either to use flowcontrol's defaults).
func NewSession(upper, lower int) *Session {
	return &Session{q3: flowcontrol.NewQ3(upper, lower)}
}

// AddLink registers a new link with the session and hooks the
// session's Q3 resume callback to pausing/resuming that one link's
// production. The resume callback itself is supplied by the caller
// (the router core), since resuming a link means re-arming whatever
// goroutine is pulling undelivered deliveries off it.
func (s *Session) AddLink(l *Link, resume func()) {
	s.mu.Lock()
	s.links = append(s.links, l)
	s.mu.Unlock()
	s.q3.RegisterLink(resume)
}

// Links returns the session's registered links.
func (s *Session) Links() []*Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Link, len(s.links))
	copy(out, s.links)
	return out
}

// AccountAppend records n more pending outgoing octets for the
// session, returning whether this crossed Q3's high watermark.
func (s *Session) AccountAppend(n int) bool {
	return s.q3.Add(n)
}

// AccountDrain records n fewer pending outgoing octets, resuming every
// registered link if this crosses Q3's low watermark.
func (s *Session) AccountDrain(n int) {
	s.q3.Remove(n)
}

// Q3 exposes the session's Q3 controller, for diagnostics.
func (s *Session) Q3() *flowcontrol.Q3 {
	return s.q3
}
