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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skupperproject/skupper-router/delivery"
)

func TestSliceTableWalksFromOffset(t *testing.T) {
	entities := []int{10, 20, 30}
	tbl := NewSliceTable(
		[]string{"value"},
		func() []int { return entities },
		func(v int) Row { return Row{v} },
	)

	row, ok := tbl.GetFirst(1)
	require.True(t, ok)
	assert.Equal(t, Row{20}, row)

	row, ok = tbl.GetNext()
	require.True(t, ok)
	assert.Equal(t, Row{30}, row)

	_, ok = tbl.GetNext()
	assert.False(t, ok)
}

func TestSliceTableOffsetOutOfRange(t *testing.T) {
	tbl := NewSliceTable(
		[]string{"value"},
		func() []int { return []int{1} },
		func(v int) Row { return Row{v} },
	)
	_, ok := tbl.GetFirst(5)
	assert.False(t, ok)
}

func TestLinkRowColumnCountMatchesSchema(t *testing.T) {
	l := delivery.NewLink(delivery.Outgoing, "link")
	row := LinkRow(LinkEntity{Identity: "L1", Link: l, CreatedAt: time.Now()})
	assert.Len(t, row, len(LinkColumns))
}

func TestConnectionRowColumnCountMatchesSchema(t *testing.T) {
	row := ConnectionRow(ConnectionEntity{Identity: "C1", StartedAt: time.Now()})
	assert.Len(t, row, len(ConnectionColumns))
}

func TestAddressRowColumnCountMatchesSchema(t *testing.T) {
	row := AddressRow(AddressEntity{Identity: "A1"})
	assert.Len(t, row, len(AddressColumns))
}

func TestConfigRowColumnCountMatchesSchema(t *testing.T) {
	row := ConfigRow(ConfigEntity{})
	assert.Len(t, row, len(ConfigColumns))
}
