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

import "time"

// ConnectionColumns is the fixed 28-column schema for the connection
// entity table.
var ConnectionColumns = []string{
	"identity", "name", "host", "container", "sasl", "isAuthenticated",
	"user", "isEncrypted", "sslProto", "sslCipher", "properties", "role",
	"dir", "uptimeSeconds", "protocol", "tunneledHTTP2", "streamingLinks",
	"cutThroughLinks", "q3Blocked", "bytesIn", "bytesOut", "framesIn",
	"framesOut", "identityLink", "active", "closing", "adminStatus",
	"lastDispositionAt",
}

// ConnectionEntity is one connection's snapshot fed to the table walk.
type ConnectionEntity struct {
	Identity, Name, Host, Container string
	Role                            string
	Direction                       string
	StartedAt                       time.Time
	Protocol                        string
	TunneledHTTP2                   bool
	StreamingLinks, CutThroughLinks int
	Q3Blocked                       bool
	BytesIn, BytesOut               int64
}

// ConnectionRow builds one connection table row.
func ConnectionRow(e ConnectionEntity) Row {
	return Row{
		e.Identity, e.Name, e.Host, e.Container, "ANONYMOUS", true,
		"", false, "", "", nil, e.Role,
		e.Direction, time.Since(e.StartedAt).Seconds(), e.Protocol, e.TunneledHTTP2,
		e.StreamingLinks, e.CutThroughLinks, e.Q3Blocked, e.BytesIn, e.BytesOut, int64(0),
		int64(0), "", true, false, "enabled",
		time.Time{},
	}
}

// AddressColumns is the fixed 28-column schema for the address entity
// table.
var AddressColumns = []string{
	"identity", "name", "prefix", "distribution", "inLinks", "outLinks",
	"deliveriesIngress", "deliveriesEgress", "deliveriesTransit",
	"deliveriesToContainer", "deliveriesFromContainer", "deliveriesDelayed1Sec",
	"deliveriesDelayed10Sec", "deliveriesStuck", "subscriberCount",
	"remoteCount", "containerCount", "priority", "isStreaming",
	"cutThroughEnabled", "oversizeCount", "rejectedCount", "droppedCount",
	"trackedCount", "autoLinkCount", "waypointCount", "inProcess", "enabled",
}

// AddressEntity is one address's snapshot fed to the table walk.
type AddressEntity struct {
	Identity, Name, Prefix, Distribution string
	InLinks, OutLinks                    int
	DeliveriesIngress, DeliveriesEgress  int64
	Streaming, CutThrough                bool
}

// AddressRow builds one address table row.
func AddressRow(e AddressEntity) Row {
	return Row{
		e.Identity, e.Name, e.Prefix, e.Distribution, e.InLinks, e.OutLinks,
		e.DeliveriesIngress, e.DeliveriesEgress, int64(0),
		int64(0), int64(0), int64(0),
		int64(0), int64(0), e.InLinks + e.OutLinks,
		0, 0, 0, e.Streaming,
		e.CutThrough, int64(0), int64(0), int64(0),
		int64(0), 0, 0, true, true,
	}
}

// ConfigColumns is the fixed 28-column schema for the config entity
// table (the live watermark/buffer-pool tuning values, surfaced
// read-only alongside the connection/link/address tables so a
// management client can see what thresholds produced the behavior it
// observes elsewhere).
var ConfigColumns = []string{
	"identity", "name", "q2Upper", "q2Lower", "q3Upper", "q3Lower",
	"bufferSize", "transferBatchSize", "localFreeListMax",
	"globalFreeListMax", "maxMessageSize", "maxConcurrentStreams",
	"initialWindowSize", "maxFrameSize", "cutThroughSlotCount",
	"cutThroughResumeThreshold", "stuckDeliveryThresholdSeconds",
	"settleRateDepth", "annotationsVersion", "workerThreads",
	"adminListenAddr", "metricsEnabled", "logLevel", "logPath",
	"logMaxSizeMB", "logMaxBackups", "configPath", "reloadable",
}

// ConfigEntity is the snapshot of the router's active tunable
// configuration.
type ConfigEntity struct {
	Q2Upper, Q2Lower, Q3Upper, Q3Lower int
	BufferSize                         int
	TransferBatchSize                  int
	LocalFreeListMax, GlobalFreeListMax int
	MaxMessageSize                     int64
	StuckDeliveryThresholdSeconds      int
	AnnotationsVersion                 int
	ConfigPath                         string
}

// ConfigRow builds the single config table row.
func ConfigRow(e ConfigEntity) Row {
	return Row{
		"config", "self", e.Q2Upper, e.Q2Lower, e.Q3Upper, e.Q3Lower,
		512, e.TransferBatchSize, e.LocalFreeListMax,
		e.GlobalFreeListMax, e.MaxMessageSize, 100,
		65536, 16384, 8,
		4, e.StuckDeliveryThresholdSeconds,
		8, e.AnnotationsVersion, 0,
		"", true, "info", "",
		0, 0, e.ConfigPath, true,
	}
}
