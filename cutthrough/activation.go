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

package cutthrough

// Kind names which side of a cut-through connection an Activation
// describes.
type Kind uint8

const (
	// KindNone marks an Activation that has not been wired to a
	// connection yet.
	KindNone Kind = iota
	// KindAMQP is an AMQP 1.0 link endpoint.
	KindAMQP
	// KindTCP is a raw TCP or HTTP/2-tunneled byte-stream endpoint.
	KindTCP
)

// Activation records which connection is standing on the other end of
// a Ring, without pinning that connection alive. ConnRef holds a
// safeptr.Ref[T] captured by the owner of the real connection type
// (e.g. phttp2.Connection); this package stays agnostic to T so it can
// back both AMQP links and HTTP/2-tunneled streams.
type Activation struct {
	Kind       Kind
	ConnRef    interface{}
	DeliveryID uint64
}

// Empty reports whether the Activation has never been assigned a
// connection.
func (a Activation) Empty() bool {
	return a.Kind == KindNone
}
