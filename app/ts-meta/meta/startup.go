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

package meta

import (
	"fmt"
	"sort"

	"github.com/chronogrid/chronogrid/lib/config"
)

// StartUpStatus is the tuple every meta-group member must agree on
// bit-for-bit before it is allowed to join or form a cluster.
type StartUpStatus struct {
	PartitionInterval int64
	HashSalt          string
	ReplicationNum    int
	ClusterName       string
	SeedNodes         []string
}

func startUpStatusFromConfig(c *config.Meta) StartUpStatus {
	seeds := append([]string(nil), c.JoinPeers...)
	sort.Strings(seeds)
	return StartUpStatus{
		PartitionInterval: int64(c.PartitionInterval),
		HashSalt:          c.HashSalt,
		ReplicationNum:    c.ReplicationNum,
		ClusterName:       c.ClusterName,
		SeedNodes:         seeds,
	}
}

// Diff returns a field-by-field description of every field on which s and
// other disagree, in a stable order. An empty result means the two are
// identical, i.e. the join may proceed.
func (s StartUpStatus) Diff(other StartUpStatus) []string {
	var diffs []string
	if s.PartitionInterval != other.PartitionInterval {
		diffs = append(diffs, fmt.Sprintf("partition-interval: local=%d remote=%d", s.PartitionInterval, other.PartitionInterval))
	}
	if s.HashSalt != other.HashSalt {
		diffs = append(diffs, fmt.Sprintf("hash-salt: local=%q remote=%q", s.HashSalt, other.HashSalt))
	}
	if s.ReplicationNum != other.ReplicationNum {
		diffs = append(diffs, fmt.Sprintf("replication-num: local=%d remote=%d", s.ReplicationNum, other.ReplicationNum))
	}
	if s.ClusterName != other.ClusterName {
		diffs = append(diffs, fmt.Sprintf("cluster-name: local=%q remote=%q", s.ClusterName, other.ClusterName))
	}
	if !equalStrings(s.SeedNodes, other.SeedNodes) {
		diffs = append(diffs, fmt.Sprintf("seed-nodes: local=%v remote=%v", s.SeedNodes, other.SeedNodes))
	}
	return diffs
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
