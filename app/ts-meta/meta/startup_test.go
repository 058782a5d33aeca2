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
	"testing"

	"github.com/chronogrid/chronogrid/lib/config"
	"github.com/stretchr/testify/assert"
)

func TestStartUpStatusDiffEmptyWhenIdentical(t *testing.T) {
	a := StartUpStatus{PartitionInterval: 1, HashSalt: "s", ReplicationNum: 3, ClusterName: "c", SeedNodes: []string{"a:1", "b:1"}}
	b := a
	assert.Empty(t, a.Diff(b))
}

func TestStartUpStatusDiffReportsEveryMismatchedField(t *testing.T) {
	a := StartUpStatus{PartitionInterval: 1, HashSalt: "s1", ReplicationNum: 3, ClusterName: "c1", SeedNodes: []string{"a:1"}}
	b := StartUpStatus{PartitionInterval: 2, HashSalt: "s2", ReplicationNum: 2, ClusterName: "c2", SeedNodes: []string{"b:1"}}

	diffs := a.Diff(b)
	assert.Len(t, diffs, 5)
}

func TestStartUpStatusFromConfigSortsSeedNodes(t *testing.T) {
	c := &config.Meta{JoinPeers: []string{"b:1", "a:1"}}
	got := startUpStatusFromConfig(c)
	assert.Equal(t, []string{"a:1", "b:1"}, got.SeedNodes)
}
