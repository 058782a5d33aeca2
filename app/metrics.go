// Copyright Huawei Cloud Computing Technologies Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the gauges/counters every "ts-xxx" process registers
// against the default prometheus registry (spec.md §2.1): the compaction
// scheduler's admission state on ts-store, and the raft member's term/
// leadership on ts-meta. Both binaries serve these from the same
// ReportServer's "/metrics" endpoint.
var Metrics = struct {
	CompactionCurrentTasks prometheus.Gauge
	CompactionPartitions   *prometheus.GaugeVec
	RaftTerm               prometheus.Gauge
	RaftIsLeader           prometheus.Gauge
	ForwardRetries         prometheus.Counter
}{
	CompactionCurrentTasks: prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chronogrid",
		Subsystem: "compaction",
		Name:      "current_task_num",
		Help:      "Number of compaction tasks currently admitted by the scheduler.",
	}),
	CompactionPartitions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chronogrid",
		Subsystem: "compaction",
		Name:      "partition_compacting",
		Help:      "1 if the (storage-group, time-partition) is currently compacting, 0 otherwise.",
	}, []string{"storage_group", "time_partition"}),
	RaftTerm: prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chronogrid",
		Subsystem: "meta",
		Name:      "raft_term",
		Help:      "Current observed raft term of this meta-group member.",
	}),
	RaftIsLeader: prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chronogrid",
		Subsystem: "meta",
		Name:      "raft_is_leader",
		Help:      "1 if this meta-group member currently believes itself leader.",
	}),
	ForwardRetries: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chronogrid",
		Subsystem: "meta",
		Name:      "forward_retries_total",
		Help:      "Number of times a non-query plan retried storage-group auto-creation after a routing miss.",
	}),
}

func init() {
	prometheus.MustRegister(
		Metrics.CompactionCurrentTasks,
		Metrics.CompactionPartitions,
		Metrics.RaftTerm,
		Metrics.RaftIsLeader,
		Metrics.ForwardRetries,
	)
}
