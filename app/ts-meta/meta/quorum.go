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

	"github.com/chronogrid/chronogrid/partition"
)

// BroadcastResult is the outcome of sendLogToAllGroups.
type BroadcastResult int

const (
	BroadcastOK BroadcastResult = iota
	BroadcastTimeout
	BroadcastLeadershipStale
)

func quorumSize(replicationFactor int) int { return replicationFactor/2 + 1 }

// GroupBallot tracks, for every replica group in the ring, how many more
// acceptances it needs to reach quorum. A node belongs to R overlapping
// groups (the one it heads, and R-1 where it participates as a ring
// successor); one acceptance from that node counts toward all of them, so
// a single per-node counter cannot answer "has every group reached
// quorum" - the remaining-votes array is kept per group instead.
type GroupBallot struct {
	groups    []partition.ReplicaGroup
	remaining []int
}

// NewGroupBallot seeds one counter per group at ceil((R+1)/2) = R/2+1.
func NewGroupBallot(groups []partition.ReplicaGroup) *GroupBallot {
	remaining := make([]int, len(groups))
	for i, g := range groups {
		remaining[i] = quorumSize(len(g.Nodes))
	}
	return &GroupBallot{groups: groups, remaining: remaining}
}

// Accept records an acceptance from node, decrementing the remaining count
// of every group node participates in.
func (b *GroupBallot) Accept(node uint32) {
	for i, g := range b.groups {
		if b.remaining[i] <= 0 {
			continue
		}
		if g.Contains(node) {
			b.remaining[i]--
		}
	}
}

// Satisfied reports whether every group has reached quorum.
func (b *GroupBallot) Satisfied() bool {
	for _, r := range b.remaining {
		if r > 0 {
			return false
		}
	}
	return true
}

// PendingGroups returns the groups that have not yet reached quorum, for
// diagnostics on a timeout.
func (b *GroupBallot) PendingGroups() []partition.ReplicaGroup {
	var pending []partition.ReplicaGroup
	for i, r := range b.remaining {
		if r > 0 {
			pending = append(pending, b.groups[i])
		}
	}
	return pending
}

// NodeAcker delivers a raft-log-entry payload to one node and blocks for
// its acknowledgement, honoring ctx's deadline.
type NodeAcker interface {
	SendEntry(ctx context.Context, node partition.Node, entry []byte) error
}

// sendLogToAllGroups replicates entry to every node in the cluster and
// requires, for every replica group the ring induces, at least
// floor(R/2)+1 of its members to accept. ctx bounds the whole call
// (writeOperationTimeoutMs). isLeader is consulted only once quorum has
// not been reached by the time ctx expires or every node has been tried,
// to distinguish an ordinary timeout from a leadership change mid-flight.
func sendLogToAllGroups(ctx context.Context, nodes []partition.Node, groups []partition.ReplicaGroup, entry []byte, acker NodeAcker, isLeader func() bool) BroadcastResult {
	ballot := NewGroupBallot(groups)

	for _, n := range nodes {
		select {
		case <-ctx.Done():
			if !isLeader() {
				return BroadcastLeadershipStale
			}
			return BroadcastTimeout
		default:
		}

		if err := acker.SendEntry(ctx, n, entry); err == nil {
			ballot.Accept(n.ID)
			if ballot.Satisfied() {
				return BroadcastOK
			}
		}
	}

	if ballot.Satisfied() {
		return BroadcastOK
	}
	if !isLeader() {
		return BroadcastLeadershipStale
	}
	return BroadcastTimeout
}
