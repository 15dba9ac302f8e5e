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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skupperproject/skupper-router/common"
	"github.com/skupperproject/skupper-router/router"
)

var (
	uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "uptime",
			Help:      "Uptime in seconds",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "git_hash", "build_time"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "router_notifications_total",
			Help:      "Router core notifications total, by kind",
		},
		[]string{"kind"},
	)
)

func notificationKindName(k router.NotificationKind) string {
	switch k {
	case router.NotifyOversizeRejected:
		return "oversize_rejected"
	case router.NotifyQ2Blocked:
		return "q2_blocked"
	case router.NotifyQ2Unblocked:
		return "q2_unblocked"
	case router.NotifyQ3Blocked:
		return "q3_blocked"
	case router.NotifyQ3Unblocked:
		return "q3_unblocked"
	case router.NotifyStreamAborted:
		return "stream_aborted"
	case router.NotifyDeliveryStuck:
		return "delivery_stuck"
	default:
		return "unknown"
	}
}
