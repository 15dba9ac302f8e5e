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

package phttp2

// Connection-level SETTINGS values the router advertises. These are
// not negotiable per tunnel; every HTTP/2-tunneling connection the
// router accepts or initiates uses exactly these.
const (
	MaxConcurrentStreams = 100
	InitialWindowSize    = 65536
	MaxFrameSize         = 16384
	EnablePush           = 0
)

// ALPN is the protocol id peers must negotiate for this adaptor to
// apply; a TLS handshake that completes with anything else is not an
// HTTP/2 tunnel and must be handled elsewhere.
const ALPN = "h2"
