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
	"context"
	"errors"
	"testing"

	"github.com/chronogrid/chronogrid/partition"
	"github.com/stretchr/testify/assert"
)

func node(id uint32) partition.Node { return partition.Node{ID: id} }

func group(ids ...uint32) partition.ReplicaGroup {
	nodes := make([]partition.Node, len(ids))
	for i, id := range ids {
		nodes[i] = node(id)
	}
	return partition.ReplicaGroup{Nodes: nodes}
}

func TestGroupBallotSatisfiedAtMajority(t *testing.T) {
	g := group(1, 2, 3)
	b := NewGroupBallot([]partition.ReplicaGroup{g})
	assert.False(t, b.Satisfied())
	b.Accept(1)
	assert.False(t, b.Satisfied())
	b.Accept(2)
	assert.True(t, b.Satisfied())
}

func TestGroupBallotTracksOverlappingGroupsIndependently(t *testing.T) {
	groups := []partition.ReplicaGroup{group(1, 2, 3), group(2, 3, 4)}
	b := NewGroupBallot(groups)
	b.Accept(2) // member of both groups
	assert.Len(t, b.PendingGroups(), 2)
	b.Accept(1) // satisfies the first group only
	pending := b.PendingGroups()
	assert.Len(t, pending, 1)
	assert.True(t, pending[0].Contains(4))
}

type fakeAcker struct {
	fail map[uint32]bool
}

func (f *fakeAcker) SendEntry(_ context.Context, n partition.Node, _ []byte) error {
	if f.fail[n.ID] {
		return errors.New("send failed")
	}
	return nil
}

func TestSendLogToAllGroupsSucceedsWhenEveryGroupReachesQuorum(t *testing.T) {
	nodes := []partition.Node{node(1), node(2), node(3)}
	groups := []partition.ReplicaGroup{group(1, 2, 3)}
	result := sendLogToAllGroups(context.Background(), nodes, groups, []byte("x"), &fakeAcker{}, func() bool { return true })
	assert.Equal(t, BroadcastOK, result)
}

func TestSendLogToAllGroupsReportsTimeoutWhenStillLeader(t *testing.T) {
	nodes := []partition.Node{node(1), node(2), node(3)}
	groups := []partition.ReplicaGroup{group(1, 2, 3)}
	acker := &fakeAcker{fail: map[uint32]bool{1: true, 2: true, 3: true}}
	result := sendLogToAllGroups(context.Background(), nodes, groups, []byte("x"), acker, func() bool { return true })
	assert.Equal(t, BroadcastTimeout, result)
}

func TestSendLogToAllGroupsReportsLeadershipStaleWhenNoLongerLeader(t *testing.T) {
	nodes := []partition.Node{node(1), node(2), node(3)}
	groups := []partition.ReplicaGroup{group(1, 2, 3)}
	acker := &fakeAcker{fail: map[uint32]bool{1: true, 2: true, 3: true}}
	result := sendLogToAllGroups(context.Background(), nodes, groups, []byte("x"), acker, func() bool { return false })
	assert.Equal(t, BroadcastLeadershipStale, result)
}
