// Copyright 2025 Huawei Cloud Computing Technologies Co., Ltd.
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

package partition_test

import (
	"testing"

	"github.com/chronogrid/chronogrid/partition"
	"github.com/stretchr/testify/require"
)

func fiveNodeTable(t *testing.T) *partition.Table {
	t.Helper()
	tbl := partition.New(42, 3, 256)
	for i := uint32(1); i <= 5; i++ {
		_, err := tbl.AddNode(partition.Node{ID: i, Host: "h", MetaPort: 8088})
		require.NoError(t, err)
	}
	return tbl
}

func TestRoutePureAndDistinct(t *testing.T) {
	tbl := fiveNodeTable(t)

	g1, err := tbl.Route("sg.one", 7)
	require.NoError(t, err)
	g2, err := tbl.Route("sg.one", 7)
	require.NoError(t, err)
	require.Equal(t, g1, g2)

	require.Len(t, g1.Nodes, 3)
	seen := map[uint32]bool{}
	for _, n := range g1.Nodes {
		require.False(t, seen[n.ID], "replica group has duplicate node")
		seen[n.ID] = true
	}
}

func TestRouteRequiresReplicationFactorNodes(t *testing.T) {
	tbl := partition.New(1, 3, 64)
	_, err := tbl.AddNode(partition.Node{ID: 1})
	require.NoError(t, err)
	_, err = tbl.Route("sg", 0)
	require.ErrorIs(t, err, partition.ErrNotEnoughNodes)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	tbl := fiveNodeTable(t)
	before, err := tbl.Route("sg.a", 100)
	require.NoError(t, err)

	blob := tbl.Serialize()

	other := partition.New(0, 0, 0)
	require.NoError(t, other.Deserialize(blob))

	require.Equal(t, blob, other.Serialize())

	after, err := other.Route("sg.a", 100)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestAddNodeDeterministic(t *testing.T) {
	build := func() *partition.Table {
		tbl := partition.New(7, 2, 512)
		for i := uint32(1); i <= 4; i++ {
			_, _ = tbl.AddNode(partition.Node{ID: i})
		}
		return tbl
	}
	a := build()
	b := build()
	require.Equal(t, a.Serialize(), b.Serialize())
}

func TestAddNodeReturnsMovedSlots(t *testing.T) {
	tbl := partition.New(3, 1, 64)
	_, err := tbl.AddNode(partition.Node{ID: 1})
	require.NoError(t, err)

	res, err := tbl.AddNode(partition.Node{ID: 2})
	require.NoError(t, err)
	require.NotEmpty(t, res.Moved, "adding a second node should reassign some slots")
	for _, mv := range res.Moved {
		require.Equal(t, uint32(1), mv.PreviousOwner)
		require.Equal(t, uint32(2), mv.NewOwner)
	}
}

func TestRemoveNodeRejectsUnderflow(t *testing.T) {
	tbl := partition.New(1, 3, 32)
	for i := uint32(1); i <= 3; i++ {
		_, _ = tbl.AddNode(partition.Node{ID: i})
	}
	_, err := tbl.RemoveNode(1)
	require.ErrorIs(t, err, partition.ErrWouldUnderflow)
}

func TestRemoveNodeRedistributesSlots(t *testing.T) {
	tbl := fiveNodeTable(t)
	res, err := tbl.RemoveNode(3)
	require.NoError(t, err)
	for _, mv := range res.Moved {
		require.Equal(t, uint32(3), mv.PreviousOwner)
		require.NotEqual(t, uint32(3), mv.NewOwner)
	}
	require.Equal(t, 4, tbl.NodeCount())
}

func TestDeterministicApplicationAcrossFollowers(t *testing.T) {
	replay := func() *partition.Table {
		tbl := partition.New(9, 2, 128)
		ops := []uint32{10, 20, 30, 40}
		for _, id := range ops {
			_, _ = tbl.AddNode(partition.Node{ID: id})
		}
		_, _ = tbl.RemoveNode(20)
		_, _ = tbl.AddNode(partition.Node{ID: 50})
		return tbl
	}
	leader := replay()
	follower := replay()
	require.Equal(t, leader.Serialize(), follower.Serialize())
}
