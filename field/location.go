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

// Package field implements FieldLocation, a cursor that names one AMQP
// field inside a buffer chain without copying it.
package field

import "github.com/skupperproject/skupper-router/bufferpool"

// Tag identifies which section or sub-field a Location refers to.
type Tag uint8

const (
	TagNone Tag = iota
	TagRouterAnnotations
	TagHeader
	TagDeliveryAnnotations
	TagMessageAnnotations
	TagProperties
	TagApplicationProperties
	TagBody
	TagRawBody
	TagFooter
)

// Location is a (buffer, offset, length, header-length, tag, parsed)
// cursor into a bufferpool.Chain naming one AMQP field without copying.
//
// A zero-value Location (Anchor == nil) means "absent". Locations are
// never moved once Parsed is set to true; the buffers they reference
// stay pinned for as long as the owning Content's reference count is
// held, since the chain is append-only and never rewritten in place.
type Location struct {
	Anchor       *bufferpool.Buffer
	Offset       int
	Length       int
	HeaderLength int
	Tag          Tag
	Parsed       bool
}

// Absent reports whether the location names nothing.
func (l Location) Absent() bool {
	return l.Anchor == nil
}

// TotalLength returns the header bytes plus the field payload length.
func (l Location) TotalLength() int {
	return l.HeaderLength + l.Length
}

// Bytes materializes the field's payload (excluding its header) as a
// contiguous slice, walking buffer boundaries via chain. The chain must
// be the one that owns l.Anchor.
func (l Location) Bytes(chain *bufferpool.Chain) []byte {
	if l.Absent() {
		return nil
	}
	return chain.Bytes(l.Anchor, l.Offset+l.HeaderLength, l.Length)
}

// RawBytes materializes the field including its header.
func (l Location) RawBytes(chain *bufferpool.Chain) []byte {
	if l.Absent() {
		return nil
	}
	return chain.Bytes(l.Anchor, l.Offset, l.TotalLength())
}
