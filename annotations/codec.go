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

// Package annotations implements the router-annotations codec: the
// custom leading AMQP section carrying ingress-router id, trace list,
// to-override, flags and ingress-mesh id.
//
// The section is a composite with reserved domain 0x534B5052 and code
// 0x2D2D5241. It MUST be first in the message, MUST be absent on
// non-router ingress (reject such messages), and is stripped on
// non-router egress.
package annotations

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// DescriptorDomain is the reserved domain half of the composite
	// descriptor code.
	DescriptorDomain uint32 = 0x534B5052

	// DescriptorCode is the code half of the composite descriptor.
	DescriptorCode uint32 = 0x2D2D5241

	// descriptorLength is the encoded size of the 8-byte descriptor.
	descriptorLength = 8
)

// Version is advertised in the connection open properties under key
// qd.annotations-version. Peers use the numerical minimum of the two
// sides' versions.
const (
	PropertyKey    = "qd.annotations-version"
	CurrentVersion = 2
)

// NegotiateVersion returns the minimum of the two peers' advertised
// annotations versions.
func NegotiateVersion(local, remote int) int {
	if remote < local {
		return remote
	}
	return local
}

// Flag bits within the annotations flags field. The streaming bit is
// flags bit 0; all other bits are reserved and must be passed through
// unchanged by implementations that do not understand them.
const (
	FlagStreaming uint32 = 1 << 0
)

// Strip controls how Send recomputes the annotations section for
// egress.
type Strip uint8

const (
	StripNone Strip = iota
	StripIngress
	StripTrace
	StripAll
)

// Annotations is the decoded content of the router-annotations section.
type Annotations struct {
	Flags uint32

	// ToOverride replaces the message's normal "to" address for routing
	// purposes. Absent is represented by a nil pointer.
	ToOverride *string

	// IngressRouter names the interior router a message first entered
	// through. Edge routers send nil.
	IngressRouter *string

	// Trace lists the interior-router ids a message has traversed.
	// Edge routers send an empty (non-nil) slice.
	Trace []string

	// IngressMesh names the mesh a message entered through.
	IngressMesh *string
}

// Streaming reports whether the streaming bit is set.
func (a Annotations) Streaming() bool {
	return a.Flags&FlagStreaming != 0
}

var (
	// ErrNotRouterIngress is raised when the section is present on a
	// non-router ingress link (client ingress).
	ErrNotRouterIngress = errors.New("annotations: router-annotations section not allowed on non-router ingress")

	errTruncated       = errors.New("annotations: truncated section")
	errBadDescriptor   = errors.New("annotations: descriptor mismatch")
	errFieldTooLong    = errors.New("annotations: field exceeds encoding limit")
)

const (
	presentToOverride    = 1 << 0
	presentIngressRouter = 1 << 1
	presentIngressMesh   = 1 << 2
)

// Encode serializes ann (including its 8-byte descriptor) to the wire
// representation consumed by Decode.
func Encode(ann Annotations) []byte {
	buf := make([]byte, 0, 64)

	var descriptor [descriptorLength]byte
	binary.BigEndian.PutUint32(descriptor[0:4], DescriptorDomain)
	binary.BigEndian.PutUint32(descriptor[4:8], DescriptorCode)
	buf = append(buf, descriptor[:]...)

	var flagsBuf [4]byte
	binary.BigEndian.PutUint32(flagsBuf[:], ann.Flags)
	buf = append(buf, flagsBuf[:]...)

	var present byte
	if ann.ToOverride != nil {
		present |= presentToOverride
	}
	if ann.IngressRouter != nil {
		present |= presentIngressRouter
	}
	if ann.IngressMesh != nil {
		present |= presentIngressMesh
	}
	buf = append(buf, present)

	if ann.ToOverride != nil {
		buf = appendStr32(buf, *ann.ToOverride)
	}
	if ann.IngressRouter != nil {
		buf = appendStr8(buf, *ann.IngressRouter)
	}

	buf = append(buf, byte(len(ann.Trace)))
	for _, id := range ann.Trace {
		buf = appendStr8(buf, id)
	}

	if ann.IngressMesh != nil {
		buf = appendStr8(buf, *ann.IngressMesh)
	}

	return buf
}

func appendStr8(buf []byte, s string) []byte {
	// Best-effort: callers are expected to keep router/mesh ids short;
	// truncation is preferable to corrupting the frame.
	if len(s) > 255 {
		s = s[:255]
	}
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

func appendStr32(buf []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

// Decode parses a router-annotations section, including its leading
// descriptor, from b. Decode never backtracks: b must hold the complete
// section.
func Decode(b []byte) (Annotations, error) {
	var ann Annotations

	if len(b) < descriptorLength+4+1 {
		return ann, errTruncated
	}
	domain := binary.BigEndian.Uint32(b[0:4])
	code := binary.BigEndian.Uint32(b[4:8])
	if domain != DescriptorDomain || code != DescriptorCode {
		return ann, errBadDescriptor
	}
	b = b[descriptorLength:]

	ann.Flags = binary.BigEndian.Uint32(b[0:4])
	b = b[4:]

	present := b[0]
	b = b[1:]

	if present&presentToOverride != 0 {
		s, rest, err := readStr32(b)
		if err != nil {
			return ann, err
		}
		ann.ToOverride = &s
		b = rest
	}

	if present&presentIngressRouter != 0 {
		s, rest, err := readStr8(b)
		if err != nil {
			return ann, err
		}
		ann.IngressRouter = &s
		b = rest
	}

	if len(b) < 1 {
		return ann, errTruncated
	}
	traceCount := int(b[0])
	b = b[1:]
	ann.Trace = make([]string, 0, traceCount)
	for i := 0; i < traceCount; i++ {
		s, rest, err := readStr8(b)
		if err != nil {
			return ann, err
		}
		ann.Trace = append(ann.Trace, s)
		b = rest
	}

	if present&presentIngressMesh != 0 {
		s, _, err := readStr8(b)
		if err != nil {
			return ann, err
		}
		ann.IngressMesh = &s
	}

	return ann, nil
}

func readStr8(b []byte) (string, []byte, error) {
	if len(b) < 1 {
		return "", nil, errTruncated
	}
	n := int(b[0])
	b = b[1:]
	if len(b) < n {
		return "", nil, errTruncated
	}
	return string(b[:n]), b[n:], nil
}

func readStr32(b []byte) (string, []byte, error) {
	if len(b) < 4 {
		return "", nil, errTruncated
	}
	n := int(binary.BigEndian.Uint32(b[0:4]))
	b = b[4:]
	if n < 0 || len(b) < n {
		return "", nil, errTruncated
	}
	return string(b[:n]), b[n:], nil
}

// ForwardTrace returns a copy of trace with routerID appended exactly
// once, for the interior-router forwarding invariant (spec §8 property
// 7). Edge routers never call this; they forward with an empty trace.
func ForwardTrace(trace []string, routerID string) []string {
	out := make([]string, 0, len(trace)+1)
	out = append(out, trace...)
	out = append(out, routerID)
	return out
}

// ApplyStrip recomputes ann for egress according to mode, stripping the
// ingress-router and/or trace fields as directed. StripAll drops the
// whole section (callers should simply not emit it).
func ApplyStrip(ann Annotations, mode Strip) Annotations {
	switch mode {
	case StripIngress:
		ann.IngressRouter = nil
	case StripTrace:
		ann.Trace = nil
	case StripAll:
		return Annotations{}
	}
	return ann
}

// validateFieldLength returns errFieldTooLong when s is longer than
// max, for a caller that must fail rather than silently truncate (e.g.
// to-override addresses). Nothing in this repository calls it; Encode
// itself truncates str8 fields.
func validateFieldLength(s string, max int) error {
	if len(s) > max {
		return errFieldTooLong
	}
	return nil
}
