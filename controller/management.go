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

package controller

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/skupperproject/skupper-router/management"
)

// registerManagementRoutes exposes the management entity-table walk
// over HTTP: GET /management/links walks every link on every live
// session, GET /management/config returns the single config row.
// Both walk the whole table with GetFirst/GetNext and serialize it in
// one response, since an HTTP response has no notion of a held-open
// cursor between requests.
func (c *Controller) registerManagementRoutes() {
	c.svr.RegisterGetRoute("/management/links", func(w http.ResponseWriter, r *http.Request) {
		writeTable(w, c.linkTable())
	})
	c.svr.RegisterGetRoute("/management/config", func(w http.ResponseWriter, r *http.Request) {
		writeTable(w, c.configTable())
	})
}

func (c *Controller) linkTable() management.Table {
	return management.NewSliceTable(management.LinkColumns, func() []management.LinkEntity {
		var entities []management.LinkEntity
		for connID, sess := range c.core.Sessions() {
			for _, l := range sess.Links() {
				entities = append(entities, management.LinkEntity{
					Identity:     fmt.Sprintf("%s/%s", connID, l.Name()),
					Name:         l.Name(),
					ConnectionID: connID,
					Link:         l,
				})
			}
		}
		return entities
	}, management.LinkRow)
}

func (c *Controller) configTable() management.Table {
	return management.NewSliceTable(management.ConfigColumns, func() []management.ConfigEntity {
		cfg := c.core.Config()
		return []management.ConfigEntity{{
			Q2Upper:                       cfg.Q2Upper,
			Q2Lower:                       cfg.Q2Lower,
			Q3Upper:                       cfg.Q3Upper,
			Q3Lower:                       cfg.Q3Lower,
			TransferBatchSize:             cfg.Pool.TransferBatchSize,
			LocalFreeListMax:              cfg.Pool.LocalFreeListMax,
			GlobalFreeListMax:             cfg.Pool.GlobalFreeListMax,
			MaxMessageSize:                cfg.MaxMessageSize,
			StuckDeliveryThresholdSeconds: int(cfg.StuckDeliveryThreshold.Seconds()),
		}}
	}, management.ConfigRow)
}

func writeTable(w http.ResponseWriter, t management.Table) {
	rows := []management.Row{}
	for row, ok := t.GetFirst(0); ok; row, ok = t.GetNext() {
		rows = append(rows, row)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"columns": t.Columns(),
		"rows":    rows,
	})
}
